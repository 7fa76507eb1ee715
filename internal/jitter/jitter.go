// Package jitter randomizes a poll interval by a variance fraction, the
// same shape as internal/common/helper.go's RandomizeDuration, adapted
// from k8s.io/apimachinery/pkg/util/rand to math/rand/v2: a thundering
// herd of sites on the same interval has nothing to do with API-machinery
// types, so the stdlib generator replaces it rather than pulling that
// dependency in for one function.
package jitter

import (
	"math/rand/v2"
	"time"
)

// Duration returns d randomized within +/-variance (0.1 == 10%).
func Duration(d time.Duration, variance float64) time.Duration {
	if d <= 0 || variance <= 0 {
		return d
	}

	lower := float64(d) * (1.0 - variance)
	upper := float64(d) * (1.0 + variance)
	if upper <= lower {
		return d
	}
	return time.Duration(lower + rand.Float64()*(upper-lower))
}
