// Package config holds the run configuration and loads it from an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/playwrighty/playwrighty/pkg/sentinel"
)

// DefaultFile is read from the working directory when no file is given.
const DefaultFile = "playwrighty.yaml"

const (
	DefaultMaxTurns = 30
	DefaultTestsDir = "tests"
	DefaultPattern  = "*.md"
)

type ExecutionMode string

const (
	ExecutionModeHeadless ExecutionMode = "headless"
	ExecutionModeHeaded   ExecutionMode = "headed"
)

// PromptMode selects how the scenario reaches the agent: the raw document
// text, or the extracted scenario rendered back to canonical Markdown.
type PromptMode string

const (
	PromptModeRaw        PromptMode = "raw"
	PromptModeStructured PromptMode = "structured"
)

// RunConfig is everything the orchestrator needs to know about a run. It is
// passed explicitly at construction; nothing is read from the environment.
type RunConfig struct {
	ExecutionMode  ExecutionMode
	MaxTurns       int
	InterStepDelay time.Duration
	PromptMode     PromptMode
	Stream         bool
	Sentinels      sentinel.Policy
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		ExecutionMode: ExecutionModeHeaded,
		MaxTurns:      DefaultMaxTurns,
		PromptMode:    PromptModeRaw,
		Stream:        true,
		Sentinels:     sentinel.DefaultPolicy(),
	}
}

func (c RunConfig) Headless() bool {
	return c.ExecutionMode == ExecutionModeHeadless
}

func (c RunConfig) Validate() error {
	switch c.ExecutionMode {
	case ExecutionModeHeadless, ExecutionModeHeaded:
	default:
		return fmt.Errorf("invalid execution mode %q: expected %q or %q", c.ExecutionMode, ExecutionModeHeadless, ExecutionModeHeaded)
	}
	switch c.PromptMode {
	case PromptModeRaw, PromptModeStructured:
	default:
		return fmt.Errorf("invalid prompt mode %q: expected %q or %q", c.PromptMode, PromptModeRaw, PromptModeStructured)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("max turns must be at least 1, got %d", c.MaxTurns)
	}
	if c.InterStepDelay < 0 {
		return fmt.Errorf("inter-step delay must not be negative, got %s", c.InterStepDelay)
	}
	if c.Sentinels.Success == "" || len(c.Sentinels.Completion) == 0 {
		return errors.New("sentinel phrases must not be empty")
	}
	return nil
}

type ModelConfig struct {
	Provider    string   `yaml:"provider,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	MaxTokens   int64    `yaml:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// MCPConfig describes how to reach the browser tool server. A URL selects a
// remote server, otherwise Command is launched over stdio.
type MCPConfig struct {
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       []string          `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Transport string            `yaml:"transport,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	// Prefix is prepended to tool names, e.g. "pw" gives "pw_browser_click".
	Prefix string `yaml:"prefix,omitempty"`
}

func (c MCPConfig) Remote() bool {
	return c.URL != ""
}

type Config struct {
	Model    ModelConfig
	MCP      MCPConfig
	Run      RunConfig
	TestsDir string
	Pattern  string
	// MaxWait caps the builtin wait tool.
	MaxWait time.Duration
}

func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider: "openai",
		},
		Run:      DefaultRunConfig(),
		TestsDir: DefaultTestsDir,
		Pattern:  DefaultPattern,
	}
}

func (c Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported model provider %q", c.Model.Provider)
	}
	switch c.MCP.Transport {
	case "", "stdio", "sse", "streamable", "streamable-http":
	default:
		return fmt.Errorf("unsupported MCP transport %q", c.MCP.Transport)
	}
	if c.MaxWait < 0 {
		return fmt.Errorf("max wait must not be negative, got %s", c.MaxWait)
	}
	return c.Run.Validate()
}

// file is the YAML layout. Durations are strings such as "500ms".
type file struct {
	Model ModelConfig `yaml:"model,omitempty"`
	MCP   MCPConfig   `yaml:"mcp,omitempty"`
	Run   struct {
		ExecutionMode  ExecutionMode   `yaml:"execution_mode,omitempty"`
		MaxTurns       int             `yaml:"max_turns,omitempty"`
		InterStepDelay string          `yaml:"inter_step_delay,omitempty"`
		PromptMode     PromptMode      `yaml:"prompt_mode,omitempty"`
		Stream         *bool           `yaml:"stream,omitempty"`
		MaxWait        string          `yaml:"max_wait,omitempty"`
		Sentinels      sentinel.Policy `yaml:"sentinels,omitempty"`
	} `yaml:"run,omitempty"`
	Tests struct {
		Dir     string `yaml:"dir,omitempty"`
		Pattern string `yaml:"pattern,omitempty"`
	} `yaml:"tests,omitempty"`
}

// Load reads the configuration at path on top of the defaults. An empty
// path reads DefaultFile if it exists and returns the defaults otherwise.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of the defaults. Unknown keys are
// rejected.
func Parse(data []byte) (Config, error) {
	var f file
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	cfg := Default()

	if f.Model.Provider != "" {
		cfg.Model.Provider = f.Model.Provider
	}
	cfg.Model.Model = f.Model.Model
	cfg.Model.BaseURL = f.Model.BaseURL
	cfg.Model.MaxTokens = f.Model.MaxTokens
	cfg.Model.Temperature = f.Model.Temperature

	cfg.MCP = f.MCP

	if f.Run.ExecutionMode != "" {
		cfg.Run.ExecutionMode = f.Run.ExecutionMode
	}
	if f.Run.MaxTurns != 0 {
		cfg.Run.MaxTurns = f.Run.MaxTurns
	}
	if f.Run.PromptMode != "" {
		cfg.Run.PromptMode = f.Run.PromptMode
	}
	if f.Run.Stream != nil {
		cfg.Run.Stream = *f.Run.Stream
	}
	if f.Run.InterStepDelay != "" {
		d, err := time.ParseDuration(f.Run.InterStepDelay)
		if err != nil {
			return Config{}, fmt.Errorf("invalid run.inter_step_delay: %w", err)
		}
		cfg.Run.InterStepDelay = d
	}
	if f.Run.MaxWait != "" {
		d, err := time.ParseDuration(f.Run.MaxWait)
		if err != nil {
			return Config{}, fmt.Errorf("invalid run.max_wait: %w", err)
		}
		cfg.MaxWait = d
	}
	cfg.Run.Sentinels = f.Run.Sentinels.WithDefaults()

	if f.Tests.Dir != "" {
		cfg.TestsDir = f.Tests.Dir
	}
	if f.Tests.Pattern != "" {
		cfg.Pattern = f.Tests.Pattern
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
