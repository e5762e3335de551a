package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// processWaitDelay bounds how long Stop waits for the server process (and
// the browser it launched) to exit after being signalled.
const processWaitDelay = 5 * time.Second

type stdioMCPClient struct {
	sessionClient
	command string
	args    []string
	env     []string
	cwd     string

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func newStdioCmdClient(command string, args, env []string, cwd string) *stdioMCPClient {
	return &stdioMCPClient{
		command: command,
		args:    args,
		env:     env,
		cwd:     cwd,
	}
}

func (c *stdioMCPClient) Initialize(ctx context.Context, _ *gomcp.InitializeRequest) (*gomcp.InitializeResult, error) {
	// The server process outlives the Start call and is only cancelled by Close.
	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	cmd := exec.CommandContext(procCtx, c.command, c.args...)
	cmd.Env = append(os.Environ(), c.env...)
	cmd.Dir = c.cwd
	cmd.Stderr = &logWriter{server: c.command}
	configureProcessGroup(cmd)
	cmd.Cancel = func() error { return cancelProcess(cmd) }
	cmd.WaitDelay = processWaitDelay

	result, err := c.connect(ctx, &gomcp.CommandTransport{
		Command: cmd,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()

	return result, nil
}

// Close ends the session, then signals the whole process group so that a
// browser started by the server does not outlive the run.
func (c *stdioMCPClient) Close(ctx context.Context) error {
	err := c.sessionClient.Close(ctx)

	c.cancelMu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logWriter forwards the server's stderr to the debug log.
type logWriter struct {
	server string
}

func (w *logWriter) Write(p []byte) (int, error) {
	for line := range strings.Lines(string(p)) {
		if line = strings.TrimSpace(line); line != "" {
			slog.Debug("MCP server output", "server", w.server, "line", line)
		}
	}
	return len(p), nil
}
