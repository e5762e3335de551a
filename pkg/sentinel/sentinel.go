// Package sentinel holds the one predicate that decides whether agent output
// carries a completion phrase, and the counter used for per-step progress.
//
// Every caller that needs to know "did the agent say it" goes through
// Contains, Count or Indices so the verdict and the progress line never
// disagree on casing or overlap rules.
package sentinel

import (
	"slices"
	"strings"
)

const (
	// DefaultPassed is the phrase the agent states when the test succeeded.
	DefaultPassed = "test passed"
	// DefaultFailed is the phrase the agent states when the test failed.
	DefaultFailed = "test failed"
)

// Contains reports whether text contains phrase, ignoring case.
// An empty phrase never matches.
func Contains(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(phrase))
}

// Count returns the number of non-overlapping, case-insensitive occurrences
// of phrase in text.
func Count(text, phrase string) int {
	if phrase == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(phrase))
}

// Indices returns the byte offsets (in the lower-cased text) of every
// non-overlapping, case-insensitive occurrence of phrase, in order.
func Indices(text, phrase string) []int {
	if phrase == "" {
		return nil
	}

	haystack := strings.ToLower(text)
	needle := strings.ToLower(phrase)

	var out []int
	offset := 0
	for {
		i := strings.Index(haystack[offset:], needle)
		if i < 0 {
			return out
		}
		out = append(out, offset+i)
		offset += i + len(needle)
	}
}

// Kind tells a passing marker from a failing one.
type Kind int

const (
	Passed Kind = iota
	Failed
)

func (k Kind) String() string {
	if k == Failed {
		return "failed"
	}
	return "passed"
}

// Symbol is the compact glyph printed on the progress line.
func (k Kind) Symbol() string {
	if k == Failed {
		return "✗"
	}
	return "✓"
}

// Markers are the per-step progress phrases the aggregator counts.
type Markers struct {
	Passed string `json:"passed,omitempty" yaml:"passed,omitempty"`
	Failed string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Phrase returns the phrase associated with kind.
func (m Markers) Phrase(kind Kind) string {
	if kind == Failed {
		return m.Failed
	}
	return m.Passed
}

// Policy fixes, for one run, which phrases end the run and which one of them
// means success. The mode never changes mid-run.
type Policy struct {
	// Completion lists every phrase that ends the run.
	Completion []string `json:"completion,omitempty" yaml:"completion,omitempty"`
	// Success is the phrase whose presence makes the verdict a pass.
	Success string `json:"success,omitempty" yaml:"success,omitempty"`
	// Markers are the per-step progress phrases.
	Markers Markers `json:"markers,omitzero" yaml:"markers,omitempty"`
}

// DefaultPolicy is single-phrase mode: "test passed" / "test failed" both end
// the run, "test passed" is success, and the same phrases mark steps.
func DefaultPolicy() Policy {
	return Policy{
		Completion: []string{DefaultPassed, DefaultFailed},
		Success:    DefaultPassed,
		Markers: Markers{
			Passed: DefaultPassed,
			Failed: DefaultFailed,
		},
	}
}

// WithDefaults fills every empty field from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if p.Success == "" {
		p.Success = def.Success
	}
	if len(p.Completion) == 0 {
		p.Completion = def.Completion
	}
	if !slices.ContainsFunc(p.Completion, func(s string) bool { return strings.EqualFold(s, p.Success) }) {
		p.Completion = append(slices.Clone(p.Completion), p.Success)
	}
	if p.Markers.Passed == "" {
		p.Markers.Passed = def.Markers.Passed
	}
	if p.Markers.Failed == "" {
		p.Markers.Failed = def.Markers.Failed
	}
	return p
}

// Completed reports whether text contains any completion phrase.
func (p Policy) Completed(text string) bool {
	return slices.ContainsFunc(p.Completion, func(phrase string) bool {
		return Contains(text, phrase)
	})
}

// Succeeded reports whether text contains the success phrase.
func (p Policy) Succeeded(text string) bool {
	return Contains(text, p.Success)
}
