package oracle

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiforge/apiforge/internal/config"
)

func TestNewCLIAdapterRequiresCommand(t *testing.T) {
	_, err := NewCLIAdapter(config.ProviderConfig{Type: "cli"}, nil)
	assert.Error(t, err)
}

func TestCLIBuildArgsSessionLifecycle(t *testing.T) {
	adapter, err := NewCLIAdapter(config.ProviderConfig{
		Type:    "cli",
		Command: "claude",
		Model:   "sonnet",
	}, nil)
	require.NoError(t, err)

	req := Request{
		System:     "you synthesize Java artifacts",
		Transcript: []Turn{{Role: "user", Content: "generate the controller"}},
	}

	args := adapter.buildArgs(req)
	assert.Contains(t, args, "--session-id")
	assert.NotContains(t, args, "--resume")
	assert.Contains(t, args, "--model")
	assert.Contains(t, args, "--system-prompt")

	adapter.started = true
	args = adapter.buildArgs(req)
	assert.Contains(t, args, "--resume")
	assert.NotContains(t, args, "--session-id")
}

func TestCLIBuildArgsSkipsAssistantTurns(t *testing.T) {
	adapter, err := NewCLIAdapter(config.ProviderConfig{Type: "cli", Command: "claude"}, nil)
	require.NoError(t, err)

	args := adapter.buildArgs(Request{
		Transcript: []Turn{
			{Role: "user", Content: "round one"},
			{Role: "assistant", Content: "previous completion"},
			{Role: "observation", Content: "controller written"},
		},
	})

	// The prompt follows "-p".
	var prompt string
	for i, arg := range args {
		if arg == "-p" {
			prompt = args[i+1]
		}
	}
	assert.Contains(t, prompt, "round one")
	assert.Contains(t, prompt, "controller written")
	assert.NotContains(t, prompt, "previous completion")
}

func TestCLICompleteSerializesConcurrentCalls(t *testing.T) {
	// A fake CLI that always prints the same envelope; the shell ignores
	// the flag arguments appended after the script.
	script := `echo '{"session_id":"abc","result":{"content":[{"type":"text","text":"ok"}]}}'`
	adapter, err := NewCLIAdapter(config.ProviderConfig{
		Type:    "cli",
		Command: "sh",
		Args:    []string{"-c", script},
	}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := adapter.Complete(context.Background(), Request{
				Transcript: []Turn{{Role: "user", Content: "generate"}},
			})
			if err != nil {
				errs <- err
				return
			}
			assert.Equal(t, "ok", text)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Complete: %v", err)
	}

	assert.Equal(t, "abc", adapter.SessionID())
}

func TestOracleFactory(t *testing.T) {
	_, err := New("x", config.ProviderConfig{Type: "carrier-pigeon"}, nil)
	assert.Error(t, err)

	o, err := New("x", config.ProviderConfig{Type: "cli", Command: "claude"}, NewProcessManager())
	require.NoError(t, err)
	assert.IsType(t, &CLIAdapter{}, o)
}
