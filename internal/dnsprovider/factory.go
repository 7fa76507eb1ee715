package dnsprovider

import (
	"context"
	"fmt"
	"sync"
)

// Constructor builds a Provider from the shared Config plus whatever
// provider-specific credentials the caller has already resolved (from
// environment variables, by convention — see internal/config).
type Constructor func(ctx context.Context, cfg Config, creds map[string]string) (Provider, error)

var (
	constructorsLock sync.RWMutex
	constructors     = make(map[Name]Constructor)
)

// Register makes a provider constructor available under name. Variants
// call this from an init() function, generalizing a
// constructor-registry pattern from "secret-typed, per-zone" to
// "env-configured, single-record".
func Register(name Name, c Constructor) {
	constructorsLock.Lock()
	defer constructorsLock.Unlock()
	constructors[name] = c
}

// Build looks up the constructor registered for name and invokes it.
func Build(ctx context.Context, name Name, cfg Config, creds map[string]string) (Provider, error) {
	constructorsLock.RLock()
	c, ok := constructors[name]
	constructorsLock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dnsprovider: %q is not registered", name)
	}
	return c(ctx, cfg, creds)
}

// Registered lists the names currently registered, for validate/help output.
func Registered() []Name {
	constructorsLock.RLock()
	defer constructorsLock.RUnlock()
	names := make([]Name, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	return names
}
