// Package cli drives test runs from the command line: one file, a whole
// directory, or a listing of the tests found.
package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/environment"
	"github.com/playwrighty/playwrighty/pkg/model/provider"
	"github.com/playwrighty/playwrighty/pkg/model/provider/options"
	"github.com/playwrighty/playwrighty/pkg/runtime"
	"github.com/playwrighty/playwrighty/pkg/scenario"
	"github.com/playwrighty/playwrighty/pkg/tools"
	"github.com/playwrighty/playwrighty/pkg/tools/builtin"
	"github.com/playwrighty/playwrighty/pkg/tools/mcp"
)

// Failure stages reported for a file that did not produce a verdict.
const (
	StageParse = "parse"
	StageSetup = "setup"
	StageBound = "bound"
)

// ProviderFactory creates the agent for one run.
type ProviderFactory func(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (provider.Provider, error)

// ToolSetFactory creates the tool set for one run. Every file gets its own,
// so each run starts and stops its own browser server.
type ToolSetFactory func(cfg config.Config) tools.ToolSet

// Runner runs test files sequentially.
type Runner struct {
	cfg     config.Config
	env     environment.Provider
	printer *Printer

	newProvider ProviderFactory
	newToolSet  ToolSetFactory
}

type RunnerOpt func(*Runner)

func WithProviderFactory(f ProviderFactory) RunnerOpt {
	return func(r *Runner) {
		r.newProvider = f
	}
}

func WithToolSetFactory(f ToolSetFactory) RunnerOpt {
	return func(r *Runner) {
		r.newToolSet = f
	}
}

func NewRunner(cfg config.Config, env environment.Provider, printer *Printer, opts ...RunnerOpt) *Runner {
	r := &Runner{
		cfg:         cfg,
		env:         env,
		printer:     printer,
		newProvider: provider.New,
		newToolSet:  DefaultToolSet,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultToolSet is the Playwright MCP server, launched over stdio or
// reached over HTTP, plus the builtin wait tool.
func DefaultToolSet(cfg config.Config) tools.ToolSet {
	var browser tools.ToolSet
	if cfg.MCP.Remote() {
		browser = mcp.NewRemoteToolset(cfg.MCP.Prefix, cfg.MCP.URL, cfg.MCP.Transport, cfg.MCP.Headers)
	} else {
		args := cfg.MCP.Args
		if cfg.MCP.Command == "" && len(args) == 0 {
			args = mcp.DefaultArgs
		}
		browser = mcp.NewToolsetCommand(
			cfg.MCP.Prefix,
			cmp.Or(cfg.MCP.Command, mcp.DefaultCommand),
			mcp.PlaywrightArgs(args, cfg.Run.Headless()),
			cfg.MCP.Env,
			"",
		)
	}

	return tools.Combine(browser, builtin.NewWaitTool(builtin.WithMaxWait(cfg.MaxWait)))
}

// FileResult is the outcome of one test file.
type FileResult struct {
	File   string
	Title  string
	Result *runtime.Result
	Err    error
	// Stage names where the run stopped without a verdict: "parse",
	// "setup", "transport:<stage>" or "bound".
	Stage string
}

func (r *FileResult) Name() string {
	return cmp.Or(r.Title, filepath.Base(r.File))
}

func (r *FileResult) Passed() bool {
	return r.Err == nil && r.Result != nil && r.Result.Success
}

// Errored reports a file that produced no verdict at all.
func (r *FileResult) Errored() bool {
	return r.Err != nil
}

// FailureStage maps a run error to the stage reported to the user.
func FailureStage(err error, result *runtime.Result) string {
	var parseErr *scenario.ParseError
	var transportErr *runtime.TransportError
	switch {
	case errors.As(err, &parseErr):
		return StageParse
	case errors.As(err, &transportErr):
		return "transport:" + string(transportErr.Stage)
	case err != nil:
		return StageSetup
	case result != nil && result.Outcome == runtime.OutcomeBoundExceeded:
		return StageBound
	}
	return ""
}

// RunFile runs a single test file and prints its progress and verdict.
// FileResult.Err is only set when the file produced no verdict.
func (r *Runner) RunFile(ctx context.Context, path string) *FileResult {
	res := &FileResult{File: path}
	defer func() {
		res.Stage = FailureStage(res.Err, res.Result)
		r.printer.PrintResult(res)
	}()

	raw, err := os.ReadFile(path)
	if err != nil {
		res.Err = &scenario.ParseError{File: path, Err: err}
		return res
	}
	sc, err := scenario.Parse(path, raw)
	if err != nil {
		res.Err = err
		return res
	}
	res.Title = sc.Title

	r.printer.PrintHeader(res.Name(), path)
	if err := sc.Validate(); err != nil {
		slog.Warn("Test has no recognisable steps", "file", path, "error", err)
		r.printer.Warn("%s: no steps found, sending the document as written", path)
	}

	agent, err := r.newProvider(ctx, &r.cfg.Model, r.env, options.WithStreaming(r.cfg.Run.Stream))
	if err != nil {
		res.Err = fmt.Errorf("creating model provider: %w", err)
		return res
	}

	rt, err := runtime.New(agent, r.newToolSet(r.cfg), r.cfg.Run)
	if err != nil {
		res.Err = err
		return res
	}

	var stopped *runtime.StreamStoppedEvent
	for event := range rt.RunStream(ctx, runtime.Input{Name: path, Raw: string(raw), Scenario: &sc}) {
		if ev, ok := event.(*runtime.StreamStoppedEvent); ok {
			stopped = ev
			continue
		}
		r.printer.HandleEvent(event)
	}
	if stopped == nil {
		res.Err = errors.New("run stopped without a result")
		return res
	}

	res.Result, res.Err = stopped.Result, stopped.Err
	return res
}

// Summary aggregates a batch run.
type Summary struct {
	Results []*FileResult
	Passed  int
	Failed  int
	Errored int
}

func (s Summary) Total() int {
	return len(s.Results)
}

func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

func (s *Summary) add(res *FileResult) {
	s.Results = append(s.Results, res)
	switch {
	case res.Errored():
		s.Errored++
	case res.Passed():
		s.Passed++
	default:
		s.Failed++
	}
}

// RunAll runs every test file under dir, one after the other. A failing
// file never stops the batch; only a cancelled context does.
func (r *Runner) RunAll(ctx context.Context, dir string) (Summary, error) {
	files, err := scenario.Find(dir, r.cfg.Pattern)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("no test files matching %q in %s", cmp.Or(r.cfg.Pattern, scenario.DefaultPattern), dir)
	}

	var summary Summary
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.add(r.RunFile(ctx, file))
	}

	r.printer.PrintSummary(summary)
	return summary, nil
}

// Entry is one test found by List.
type Entry struct {
	File        string
	Title       string
	Description string
	Err         error
}

// List parses every test file under dir without running anything.
func (r *Runner) List(dir string) ([]Entry, error) {
	files, err := scenario.Find(dir, r.cfg.Pattern)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	for _, file := range files {
		sc, err := scenario.ParseFile(file)
		entries = append(entries, Entry{
			File:        file,
			Title:       cmp.Or(sc.Title, filepath.Base(file)),
			Description: sc.Description,
			Err:         err,
		})
	}
	return entries, nil
}
