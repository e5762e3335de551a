// Package scenario extracts structured test scenarios from loosely
// structured Markdown documents.
package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSteps is returned by Validate for a scenario without any step.
var ErrNoSteps = errors.New("scenario has no steps")

// Scenario is the structured form of a test document. It is a value: the
// parser builds it once and nothing mutates it afterwards.
type Scenario struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Steps        []string `json:"steps"`
	Expectations []string `json:"expectations"`
}

// Validate reports scenarios that cannot be executed meaningfully.
func (s Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return ErrNoSteps
	}
	return nil
}

// Markdown renders the scenario back to a canonical Markdown document using
// the English section labels.
func (s Scenario) Markdown() string {
	var sections []string

	if s.Title != "" {
		sections = append(sections, "# "+s.Title)
	}
	if s.Description != "" {
		sections = append(sections, "## Test Scenario\n\n"+s.Description)
	}
	if len(s.Steps) > 0 {
		var sb strings.Builder
		sb.WriteString("## Steps\n\n")
		for i, step := range s.Steps {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%d. %s", i+1, step)
		}
		sections = append(sections, sb.String())
	}
	if len(s.Expectations) > 0 {
		var sb strings.Builder
		sb.WriteString("## Expected Results\n\n")
		for i, exp := range s.Expectations {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- " + exp)
		}
		sections = append(sections, sb.String())
	}

	return strings.Join(sections, "\n\n") + "\n"
}

// ParseError reports a document that could not be read or decoded.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("parse scenario: %v", e.Err)
	}
	return fmt.Sprintf("parse scenario %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
