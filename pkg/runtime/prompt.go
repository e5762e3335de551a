package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/scenario"
	"github.com/playwrighty/playwrighty/pkg/sentinel"
)

var errEmptyInput = errors.New("test input is empty")

// Input is the test handed to a run. In raw prompt mode Raw is embedded
// as-is; in structured mode the scenario is sent in its canonical Markdown
// form. Either field may be left empty and is derived from the other.
type Input struct {
	// Name identifies the test, usually its file path.
	Name     string
	Raw      string
	Scenario *scenario.Scenario
}

// testContent returns the text embedded in the initial prompt.
func (in Input) testContent(mode config.PromptMode) (string, error) {
	switch mode {
	case config.PromptModeStructured:
		sc := in.Scenario
		if sc == nil {
			if strings.TrimSpace(in.Raw) == "" {
				return "", errEmptyInput
			}
			parsed, err := scenario.Parse(in.Name, []byte(in.Raw))
			if err != nil {
				return "", err
			}
			sc = &parsed
		}
		return sc.Markdown(), nil
	default:
		if strings.TrimSpace(in.Raw) != "" {
			return in.Raw, nil
		}
		if in.Scenario != nil {
			return in.Scenario.Markdown(), nil
		}
		return "", errEmptyInput
	}
}

// initialPrompt is the first user turn: the instructions, the test itself
// and, when the tool set ships some, the tool usage notes.
func initialPrompt(content string, policy sentinel.Policy, toolInstructions string) string {
	var sb strings.Builder

	sb.WriteString("You are an E2E test automation assistant. I will provide you with a test description in Markdown format.\n")
	sb.WriteString("Your role is as follows:\n\n")
	sb.WriteString("1. Understand the test steps in the Markdown\n")
	sb.WriteString("2. Execute each step using the browser tools\n")
	sb.WriteString("3. Evaluate the results of each step\n")
	sb.WriteString("4. Report the overall test results after all steps are completed\n\n")

	if toolInstructions = strings.TrimSpace(toolInstructions); toolInstructions != "" {
		sb.WriteString("Tool notes:\n\n")
		sb.WriteString(toolInstructions)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Test content:\n\n")
	sb.WriteString(strings.TrimSpace(content))
	sb.WriteString("\n\n")

	sb.WriteString("First, please analyze this test and provide an overview of the steps to be executed.\n")
	sb.WriteString("Then, let's execute the steps one by one.\n")
	fmt.Fprintf(&sb, "When all steps are completed, please explicitly summarize the test results and **include the exact phrase '%s' if the test was successful, or %s if it was not**.\n",
		policy.Success, quoteFailurePhrases(policy))

	return sb.String()
}

// followUpPrompt is sent after a turn that neither finished the test nor
// requested tools.
func followUpPrompt(policy sentinel.Policy) string {
	return fmt.Sprintf("Continue with the next step. If all steps are completed, summarize the test results and include the exact phrase '%s' if the test was successful, or %s if it was not.",
		policy.Success, quoteFailurePhrases(policy))
}

func quoteFailurePhrases(policy sentinel.Policy) string {
	var quoted []string
	for _, phrase := range policy.Completion {
		if strings.EqualFold(phrase, policy.Success) {
			continue
		}
		quoted = append(quoted, "'"+phrase+"'")
	}
	if len(quoted) == 0 {
		return "nothing"
	}
	return strings.Join(quoted, " or ")
}
