package progression

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/vignette/internal/oracle"
	"github.com/MikeSquared-Agency/vignette/internal/script"
	"github.com/MikeSquared-Agency/vignette/internal/transcript"
)

// Mode selects how the judgment oracle is asked.
type Mode string

const (
	// ModeVerdict asks YES/NO about the current question only.
	ModeVerdict Mode = "verdict"
	// ModeStage asks for the count of questions answered in order.
	ModeStage Mode = "stage"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeVerdict, "":
		return ModeVerdict, nil
	case ModeStage:
		return ModeStage, nil
	default:
		return "", fmt.Errorf("unknown judge mode %q", s)
	}
}

type Verdict string

const (
	VerdictYes     Verdict = "yes"
	VerdictNo      Verdict = "no"
	VerdictUnknown Verdict = "unknown"
)

var ErrMalformed = errors.New("malformed judgment")

const judgeMaxTokens = 8

// Cache stores raw oracle replies keyed by a digest of the prompt.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// Judge wraps the judgment oracle. Its output is untrusted: every reply is
// parsed defensively and range-checked before the engine sees it.
type Judge struct {
	llm     oracle.Completer
	mode    Mode
	timeout time.Duration
	parser  *transcript.Parser
	cache   Cache
}

func NewJudge(llm oracle.Completer, mode Mode, timeout time.Duration, parser *transcript.Parser, cache Cache) *Judge {
	return &Judge{
		llm:     llm,
		mode:    mode,
		timeout: timeout,
		parser:  parser,
		cache:   cache,
	}
}

func (j *Judge) Mode() Mode {
	return j.mode
}

// Assess returns the oracle's proposed stage for a conversation currently at stage.
// Any failure is returned as an error; callers must not advance on error.
func (j *Judge) Assess(ctx context.Context, s *script.Script, stage int, conversation []transcript.Turn) (int, error) {
	system, prompt, err := j.buildPrompt(s, stage, conversation)
	if err != nil {
		return stage, err
	}

	key := cacheKey(j.mode, system, prompt)
	if j.cache != nil {
		if raw, ok := j.cache.Get(ctx, key); ok {
			if next, err := j.interpret(raw, s, stage); err == nil {
				return next, nil
			}
		}
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	raw, err := j.llm.Complete(ctx, system, []oracle.Message{{Role: oracle.RoleUser, Content: prompt}}, judgeMaxTokens)
	if err != nil {
		return stage, fmt.Errorf("judgment call: %w", err)
	}

	next, err := j.interpret(raw, s, stage)
	if err != nil {
		return stage, err
	}
	if j.cache != nil {
		j.cache.Set(ctx, key, raw)
	}
	return next, nil
}

func (j *Judge) buildPrompt(s *script.Script, stage int, conversation []transcript.Turn) (string, string, error) {
	rendered := j.parser.Render(conversation)

	switch j.mode {
	case ModeStage:
		var list strings.Builder
		for i, q := range s.Questions {
			fmt.Fprintf(&list, "%d. %s\n", i+1, q.PromptText)
		}
		return stageSystemPrompt, fmt.Sprintf(stageUserPrompt, list.String(), rendered, s.Len()), nil
	default:
		q, ok := s.Question(stage)
		if !ok {
			return "", "", fmt.Errorf("no question at stage %d", stage)
		}
		return verdictSystemPrompt, fmt.Sprintf(verdictUserPrompt, q.PromptText, rendered), nil
	}
}

func (j *Judge) interpret(raw string, s *script.Script, stage int) (int, error) {
	if j.mode == ModeStage {
		return ParseStage(raw, s.Len())
	}
	switch ParseVerdict(raw) {
	case VerdictYes:
		return stage + 1, nil
	case VerdictNo:
		return stage, nil
	default:
		return stage, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
}

// ParseVerdict reads a YES/NO token from the start of raw.
func ParseVerdict(raw string) Verdict {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return VerdictUnknown
	}
	switch strings.ToUpper(strings.Trim(fields[0], ` ."'*!,:;`)) {
	case "YES":
		return VerdictYes
	case "NO":
		return VerdictNo
	default:
		return VerdictUnknown
	}
}

// ParseStage reads a single integer in [0, n] from raw.
func ParseStage(raw string, n int) (int, error) {
	fields := strings.Fields(raw)
	if len(fields) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	v, err := strconv.Atoi(strings.Trim(fields[0], ` ."'*`))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
	if v < 0 || v > n {
		return 0, fmt.Errorf("%w: stage %d out of range [0,%d]", ErrMalformed, v, n)
	}
	return v, nil
}

func cacheKey(mode Mode, system, prompt string) string {
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
