package lease

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenarios(t *testing.T) {
	l := Parse("owner=primary exp=1700000000")
	require.Equal(t, Lease{Owner: Primary, ExpiresAt: 1700000000}, l)

	l = Parse("")
	require.Equal(t, Lease{Owner: Unknown, ExpiresAt: 0}, l)

	l = Parse("owner=dr junk exp=42 extra=x")
	require.Equal(t, Lease{Owner: DR, ExpiresAt: 42}, l)
}

func TestParseMalformedIsLogicSafe(t *testing.T) {
	for _, txt := range []string{"garbage", "owner=", "exp=notanumber", "owner=primarystuff exp=-1x"} {
		l := Parse(txt)
		assert.NotEqual(t, Primary, l.Owner, "malformed input %q must not decode to a claimed owner other than dr/primary being intentional", txt)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, owner := range []Owner{Primary, DR} {
		for _, exp := range []int64{0, 1, 1700000000, 9999999999} {
			encoded := Encode(owner, exp)
			decoded := Parse(encoded)
			require.Equal(t, owner, decoded.Owner)
			require.Equal(t, exp, decoded.ExpiresAt)
		}
	}
}

func TestExpired(t *testing.T) {
	l := Lease{Owner: Primary, ExpiresAt: 100}
	assert.True(t, l.Expired(101))
	assert.False(t, l.Expired(100))
	assert.False(t, l.Expired(99))
}

func ExampleEncode() {
	fmt.Println(Encode(Primary, 1700000000))
	// Output: owner=primary exp=1700000000
}
