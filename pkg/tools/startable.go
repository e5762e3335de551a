package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// StartableToolSet wraps a ToolSet so that Start and Stop are idempotent.
// Tool sets that don't implement Startable are treated as always started.
type StartableToolSet struct {
	ToolSet

	mu      sync.Mutex
	started bool
}

func NewStartable(ts ToolSet) *StartableToolSet {
	if s, ok := ts.(*StartableToolSet); ok {
		return s
	}
	return &StartableToolSet{ToolSet: ts}
}

func (s *StartableToolSet) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start starts the wrapped tool set once. A failed start can be retried.
func (s *StartableToolSet) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if startable, ok := s.ToolSet.(Startable); ok {
		if err := startable.Start(ctx); err != nil {
			return err
		}
	}
	s.started = true
	return nil
}

// Stop stops the wrapped tool set if it was started.
func (s *StartableToolSet) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	if startable, ok := s.ToolSet.(Startable); ok {
		return startable.Stop(ctx)
	}
	return nil
}

func (s *StartableToolSet) Unwrap() ToolSet {
	return s.ToolSet
}

// Unwrapper is implemented by tool sets that wrap another tool set.
type Unwrapper interface {
	Unwrap() ToolSet
}

// DeepAs performs a type assertion on ts, unwrapping wrappers until one
// matches or there is nothing left to unwrap.
func DeepAs[T any](ts ToolSet) (T, bool) {
	for {
		if result, ok := ts.(T); ok {
			return result, true
		}

		unwrapper, ok := ts.(Unwrapper)
		if !ok {
			var zero T
			return zero, false
		}
		ts = unwrapper.Unwrap()
	}
}

// CombinedToolSet exposes several tool sets as one. Start is all-or-nothing:
// if a member fails to start, the members already started are stopped again.
type CombinedToolSet struct {
	sets []*StartableToolSet
}

var (
	_ ToolSet      = (*CombinedToolSet)(nil)
	_ Startable    = (*CombinedToolSet)(nil)
	_ Instructable = (*CombinedToolSet)(nil)
)

func Combine(sets ...ToolSet) *CombinedToolSet {
	c := &CombinedToolSet{}
	for _, ts := range sets {
		if ts != nil {
			c.sets = append(c.sets, NewStartable(ts))
		}
	}
	return c
}

func (c *CombinedToolSet) Start(ctx context.Context) error {
	for i, ts := range c.sets {
		if err := ts.Start(ctx); err != nil {
			for _, started := range c.sets[:i] {
				_ = started.Stop(ctx)
			}
			return err
		}
	}
	return nil
}

func (c *CombinedToolSet) Stop(ctx context.Context) error {
	var errs []error
	for _, ts := range c.sets {
		if err := ts.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tools lists every member's tools. Duplicate names are rejected since the
// agent could not tell them apart.
func (c *CombinedToolSet) Tools(ctx context.Context) ([]Tool, error) {
	var all []Tool
	seen := map[string]bool{}
	for _, ts := range c.sets {
		list, err := ts.Tools(ctx)
		if err != nil {
			return nil, err
		}
		for _, tool := range list {
			if seen[tool.Name] {
				return nil, fmt.Errorf("duplicate tool name %q", tool.Name)
			}
			seen[tool.Name] = true
			all = append(all, tool)
		}
	}
	return all, nil
}

func (c *CombinedToolSet) Instructions() string {
	var parts []string
	for _, ts := range c.sets {
		if s := strings.TrimSpace(GetInstructions(ts)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
