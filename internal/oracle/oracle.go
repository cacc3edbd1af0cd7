// Package oracle defines the narrow contract both language-model calls go through.
package oracle

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends a system directive plus an ordered message list to a
// language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message, maxTokens int) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, system string, messages []Message, maxTokens int) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system string, messages []Message, maxTokens int) (string, error) {
	return f(ctx, system, messages, maxTokens)
}
