package oracle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apiforge/apiforge/internal/config"
)

// HTTPClient talks to a chat-completions style endpoint (Anthropic messages
// API shape). The request timeout is enforced by the underlying http.Client
// so a stuck oracle call can never occupy a worker indefinitely.
type HTTPClient struct {
	name      string
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatResponse struct {
	Content []chatContent `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// NewHTTPClient creates an HTTP oracle client from provider config.
func NewHTTPClient(name string, cfg config.ProviderConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %s: base_url is required for http oracles", name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &HTTPClient{
		name:      name,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// Complete sends the transcript and returns the full completion text.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	httpReq, err := c.buildRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("oracle %s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("oracle %s: reading response: %w", c.name, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("oracle %s: unmarshaling response: %w", c.name, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("oracle %s: %s: %s", c.name, parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle %s: unexpected status %d: %s", c.name, resp.StatusCode, string(body))
	}

	var text strings.Builder
	for _, item := range parsed.Content {
		if item.Type == "text" {
			text.WriteString(item.Text)
		}
	}
	return text.String(), nil
}

// Stream sends the transcript and returns completion chunks as they arrive.
func (c *HTTPClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	httpReq, err := c.buildRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracle %s: request failed: %w", c.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("oracle %s: unexpected status %d: %s", c.name, resp.StatusCode, string(body))
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == "[DONE]" {
				continue
			}
			var ev streamEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				continue // malformed keepalive lines are skipped, not fatal
			}
			if ev.Delta.Text != "" {
				select {
				case out <- Chunk{Text: ev.Delta.Text}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			out <- Chunk{Err: fmt.Errorf("oracle %s: stream read: %w", c.name, err)}
		}
	}()
	return out, nil
}

// Close is a no-op for the HTTP transport.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) buildRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	messages := make([]chatMessage, 0, len(req.Transcript))
	for _, turn := range req.Transcript {
		role := turn.Role
		// The messages API only accepts user/assistant roles in the list.
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle %s: marshaling request: %w", c.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("oracle %s: building request: %w", c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")
	}
	return httpReq, nil
}
