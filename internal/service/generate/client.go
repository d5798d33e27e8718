package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/mirror-labs/mirror/backend/internal/config"
)

// GenerationError reports a failed or unusable text-generation call:
// transport failure, timeout, backend error, or an empty completion.
// Callers should treat it as recoverable for the session.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Client performs single blocking calls against the configured text
// generation backend and normalizes results and failures. It never
// retries; retry policy belongs to the caller.
type Client struct {
	chatModel model.BaseChatModel
	timeout   time.Duration
}

// NewClient builds the chat model selected by cfg.
func NewClient(ctx context.Context, cfg config.AIConfig) (*Client, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &Client{chatModel: chatModel, timeout: cfg.Timeout}, nil
}

// Generate sends one composed prompt and returns the completion text.
func (c *Client) Generate(ctx context.Context, promptText string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(promptText)})
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", &GenerationError{Err: errors.New("backend returned an empty completion")}
	}
	return resp.Content, nil
}
