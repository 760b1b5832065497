package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/retry"
)

// ChatPath is the chat completion endpoint appended to the configured URL.
const ChatPath = "/v1/chat/completions"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat calls an OpenAI-compatible chat completion service.
type Chat struct {
	c *client
}

// NewChat creates a Chat client from a finalized Config.
func NewChat(cfg *Config, metrics *Metrics, logger *slog.Logger) *Chat {
	return &Chat{c: newClient("llm", ChatPath, cfg, metrics, logger)}
}

// Complete sends a system and user message at temperature 0 and returns the
// first choice's content.
func (c *Chat) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := chatRequest{
		Model: c.c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}

	var resp chatResponse
	if err := c.c.post(ctx, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", retry.Fatal(fmt.Errorf("llm: %w: no choices", ErrMalformedResponse))
	}
	return resp.Choices[0].Message.Content, nil
}
