// Package environment resolves named values, such as provider API keys, from
// a chain of sources.
package environment

import (
	"context"
	"os"
)

type Provider interface {
	// Get returns the value of name and whether it was found.
	Get(ctx context.Context, name string) (string, bool)
}

// OsEnvProvider reads the process environment.
type OsEnvProvider struct{}

func NewOsEnvProvider() *OsEnvProvider {
	return &OsEnvProvider{}
}

func (p *OsEnvProvider) Get(_ context.Context, name string) (string, bool) {
	return os.LookupEnv(name)
}

// MultiProvider asks each provider in order and returns the first hit.
type MultiProvider struct {
	providers []Provider
}

func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

func (p *MultiProvider) Get(ctx context.Context, name string) (string, bool) {
	for _, provider := range p.providers {
		if value, found := provider.Get(ctx, name); found {
			return value, true
		}
	}
	return "", false
}

// Lookup returns the value of name, treating empty values as missing.
func Lookup(ctx context.Context, env Provider, name string) (string, bool) {
	value, found := env.Get(ctx, name)
	if !found || value == "" {
		return "", false
	}
	return value, true
}
