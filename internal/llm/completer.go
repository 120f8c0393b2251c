package llm

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docloom/docloom/types"
)

// Completer is the narrow prompt-in, text-out surface the chunkers,
// summarizers, and retrieval agent consume.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChatCompleter adapts an Eino chat model to the Completer interface.
type ChatCompleter struct {
	model model.BaseChatModel
}

// NewCompleter wraps m as a Completer.
func NewCompleter(m model.BaseChatModel) *ChatCompleter {
	return &ChatCompleter{model: m}
}

// Complete sends prompt as a single user message and returns the reply text.
func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", types.E(types.ModelError, "chat completion", err)
	}
	return resp.Content, nil
}

var _ Completer = (*ChatCompleter)(nil)
