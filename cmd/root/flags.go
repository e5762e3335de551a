package root

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/playwrighty/playwrighty/pkg/cli"
	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/environment"
)

// runnerOpts is appended to every runner the commands build.
var runnerOpts []cli.RunnerOpt

// configFlags select and override the configuration file.
type configFlags struct {
	configFile string
	pattern    string
}

func (f *configFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Configuration file (default \""+config.DefaultFile+"\" when present)")
	cmd.Flags().StringVar(&f.pattern, "pattern", "", "Glob selecting test files inside the directory (default \""+config.DefaultPattern+"\")")
}

func (f *configFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("pattern") {
		cfg.Pattern = f.pattern
	}
	return cfg, nil
}

// runFlags are shared by the commands that execute tests.
type runFlags struct {
	configFlags

	envFiles     []string
	headless     bool
	headed       bool
	maxTurns     int
	delay        time.Duration
	promptMode   string
	noStream     bool
	model        string
	provider     string
	mcpCommand   string
	mcpURL       string
	mcpTransport string
}

func (f *runFlags) addFlags(cmd *cobra.Command) {
	f.configFlags.addFlags(cmd)

	cmd.Flags().StringSliceVar(&f.envFiles, "env-from-file", nil, "Set environment variables from file")
	cmd.Flags().BoolVar(&f.headless, "headless", false, "Run the browser without a window")
	cmd.Flags().BoolVar(&f.headed, "headed", false, "Run the browser with a window")
	cmd.MarkFlagsMutuallyExclusive("headless", "headed")
	cmd.Flags().IntVar(&f.maxTurns, "max-turns", config.DefaultMaxTurns, "Maximum number of agent turns per test")
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "Pause between agent turns")
	cmd.Flags().StringVar(&f.promptMode, "prompt-mode", string(config.PromptModeRaw), "How the test reaches the agent: raw or structured")
	cmd.Flags().BoolVar(&f.noStream, "no-stream", false, "Request whole responses instead of streaming")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Model provider: openai or anthropic")
	cmd.Flags().StringVar(&f.mcpCommand, "mcp-command", "", "Command line launching the browser MCP server")
	cmd.Flags().StringVar(&f.mcpURL, "mcp-url", "", "URL of a running browser MCP server")
	cmd.Flags().StringVar(&f.mcpTransport, "mcp-transport", "", "Transport for --mcp-url: sse or streamable")
}

// load applies the flags that were set on top of the configuration file.
func (f *runFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := f.configFlags.load(cmd)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	switch {
	case flags.Changed("headless") && f.headless:
		cfg.Run.ExecutionMode = config.ExecutionModeHeadless
	case flags.Changed("headed") && f.headed:
		cfg.Run.ExecutionMode = config.ExecutionModeHeaded
	}
	if flags.Changed("max-turns") {
		cfg.Run.MaxTurns = f.maxTurns
	}
	if flags.Changed("delay") {
		cfg.Run.InterStepDelay = f.delay
	}
	if flags.Changed("prompt-mode") {
		cfg.Run.PromptMode = config.PromptMode(f.promptMode)
	}
	if flags.Changed("no-stream") {
		cfg.Run.Stream = !f.noStream
	}
	if flags.Changed("model") {
		cfg.Model.Model = f.model
	}
	if flags.Changed("provider") {
		cfg.Model.Provider = f.provider
	}
	if flags.Changed("mcp-command") {
		fields := strings.Fields(f.mcpCommand)
		cfg.MCP.Command, cfg.MCP.Args = "", nil
		if len(fields) > 0 {
			cfg.MCP.Command, cfg.MCP.Args = fields[0], fields[1:]
		}
	}
	if flags.Changed("mcp-url") {
		cfg.MCP.URL = f.mcpURL
	}
	if flags.Changed("mcp-transport") {
		cfg.MCP.Transport = f.mcpTransport
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newRunner builds a runner printing to the command's output.
func (f *runFlags) newRunner(cmd *cobra.Command) (*cli.Runner, config.Config, error) {
	cfg, err := f.load(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}

	env, err := newEnvironment(f.envFiles)
	if err != nil {
		return nil, config.Config{}, err
	}

	return cli.NewRunner(cfg, env, cli.NewPrinter(cmd.OutOrStdout()), runnerOpts...), cfg, nil
}

// newEnvironment resolves credentials from the given env files, then
// .env in the working directory, then the process environment.
func newEnvironment(envFiles []string) (environment.Provider, error) {
	files, err := environment.NewEnvFilesProvider(envFiles...)
	if err != nil {
		return nil, err
	}
	dotenv, err := environment.NewOptionalEnvFileProvider(environment.DefaultEnvFile)
	if err != nil {
		return nil, err
	}
	return environment.NewMultiProvider(files, dotenv, environment.NewOsEnvProvider()), nil
}
