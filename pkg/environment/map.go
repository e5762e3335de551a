package environment

import (
	"context"
	"maps"
)

// MapProvider serves values from memory, for flag overrides and tests.
type MapProvider struct {
	values map[string]string
}

// NewMapProvider copies values, so the caller may keep modifying its map.
func NewMapProvider(values map[string]string) *MapProvider {
	return &MapProvider{
		values: maps.Clone(values),
	}
}

func (p *MapProvider) Get(_ context.Context, name string) (string, bool) {
	val, found := p.values[name]
	return val, found
}
