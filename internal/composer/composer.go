// Package composer builds the generation request for the participant-visible
// reply and hands it to the generation oracle.
package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/vignette/internal/oracle"
	"github.com/MikeSquared-Agency/vignette/internal/transcript"
)

const replyMaxTokens = 400

// Prompt is the ordered request sent to the generation oracle: the system
// directive, then the conversation ending with the participant's new turn.
type Prompt struct {
	System   string
	Messages []oracle.Message
}

type Composer struct {
	llm     oracle.Completer
	persona string
	timeout time.Duration
}

func New(llm oracle.Completer, persona string, timeout time.Duration) *Composer {
	return &Composer{llm: llm, persona: persona, timeout: timeout}
}

// Compose joins the persona and the stage instruction into the system directive
// and maps conversation turns onto assistant/user messages. The conversation
// must already end with the new participant turn.
func (c *Composer) Compose(instruction string, conversation []transcript.Turn) Prompt {
	system := strings.TrimSpace(c.persona)
	if instruction != "" {
		system += "\n\nInstruction for this reply:\n" + instruction
	}

	msgs := make([]oracle.Message, 0, len(conversation))
	for _, t := range conversation {
		role := oracle.RoleUser
		if t.Speaker == transcript.SpeakerDirector {
			role = oracle.RoleAssistant
		}
		msgs = append(msgs, oracle.Message{Role: role, Content: t.Text})
	}
	return Prompt{System: system, Messages: msgs}
}

// Reply generates the visible reply. Errors are returned to the caller; there
// is no fallback reply.
func (c *Composer) Reply(ctx context.Context, instruction string, conversation []transcript.Turn) (string, error) {
	p := c.Compose(instruction, conversation)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.llm.Complete(ctx, p.System, p.Messages, replyMaxTokens)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return reply, nil
}
