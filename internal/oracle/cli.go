package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apiforge/apiforge/internal/config"
)

// CLIAdapter drives a local agent binary (claude-style CLI) as the oracle.
// Each Complete call is one subprocess invocation; the first call establishes
// a session, later calls resume it so the CLI keeps its own context window.
// The mutex serializes invocations so session state stays consistent when an
// adapter is shared across goroutines.
type CLIAdapter struct {
	command string
	args    []string
	model   string
	timeout time.Duration
	procMgr *ProcessManager

	mu        sync.Mutex
	sessionID string
	started   bool
}

// cliResponse is the JSON envelope printed by the CLI.
type cliResponse struct {
	SessionID string `json:"session_id"`
	Result    struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

// NewCLIAdapter creates a CLI oracle adapter. The ProcessManager is optional;
// if nil, subprocesses are not tracked for shutdown.
func NewCLIAdapter(cfg config.ProviderConfig, pm *ProcessManager) (*CLIAdapter, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("cli oracle requires a command")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &CLIAdapter{
		command:   cfg.Command,
		args:      cfg.Args,
		model:     cfg.Model,
		sessionID: uuid.NewString(),
		timeout:   timeout,
		procMgr:   pm,
	}, nil
}

// Complete flattens the transcript into one prompt and invokes the CLI.
// Only one invocation runs at a time per adapter; the underlying CLI session
// is a single conversation and interleaved resumes would corrupt it.
func (a *CLIAdapter) Complete(ctx context.Context, req Request) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	args := a.buildArgs(req)
	cmd := newCommand(ctx, a.command, args...)

	stdout, stderr, err := executeCommand(ctx, cmd, a.procMgr)
	if err != nil {
		return "", fmt.Errorf("%s invocation failed: %w", a.command, err)
	}

	var cr cliResponse
	if err := json.Unmarshal(stdout, &cr); err != nil {
		return "", fmt.Errorf("failed to parse %s response: %w (stderr: %s)", a.command, err, string(stderr))
	}
	if cr.SessionID != "" {
		a.sessionID = cr.SessionID
	}
	a.started = true

	var content strings.Builder
	for _, item := range cr.Result.Content {
		if item.Type == "text" {
			content.WriteString(item.Text)
		}
	}
	return content.String(), nil
}

// Stream delivers the whole completion as a single chunk; the CLI transport
// has no native streaming.
func (a *CLIAdapter) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	out := make(chan Chunk, 1)
	go func() {
		defer close(out)
		text, err := a.Complete(ctx, req)
		if err != nil {
			out <- Chunk{Err: err}
			return
		}
		out <- Chunk{Text: text}
	}()
	return out, nil
}

// Close is a no-op: the adapter is subprocess-per-invocation.
func (a *CLIAdapter) Close() error { return nil }

// SessionID returns the current session identifier.
func (a *CLIAdapter) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

func (a *CLIAdapter) buildArgs(req Request) []string {
	var prompt strings.Builder
	for _, turn := range req.Transcript {
		if turn.Role == "assistant" {
			continue // the CLI resumes its own assistant context
		}
		prompt.WriteString(turn.Content)
		prompt.WriteString("\n")
	}

	args := append([]string{}, a.args...)
	args = append(args, "-p", prompt.String(), "--output-format", "json")

	if a.started {
		args = append(args, "--resume", a.sessionID)
	} else {
		args = append(args, "--session-id", a.sessionID)
	}
	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	if req.System != "" {
		args = append(args, "--system-prompt", req.System)
	}
	return args
}
