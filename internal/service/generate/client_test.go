package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type stubModel struct {
	reply string
	err   error
}

func (s *stubModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestGenerateReturnsCompletion(t *testing.T) {
	c := &Client{chatModel: &stubModel{reply: "hello there"}}

	got, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("unexpected completion: %q", got)
	}
}

func TestGenerateWrapsBackendError(t *testing.T) {
	backendErr := errors.New("boom")
	c := &Client{chatModel: &stubModel{err: backendErr}}

	_, err := c.Generate(context.Background(), "prompt")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %T", err)
	}
	if !errors.Is(err, backendErr) {
		t.Fatal("expected wrapped backend error")
	}
}

func TestGenerateRejectsEmptyCompletion(t *testing.T) {
	c := &Client{chatModel: &stubModel{reply: "   "}}

	_, err := c.Generate(context.Background(), "prompt")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError for blank completion, got %v", err)
	}
}
