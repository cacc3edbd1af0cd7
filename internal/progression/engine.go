// Package progression decides, once per participant turn, whether the scripted
// interview advances to the next question, stays, or concludes.
//
// Stages run 0..N where N is the number of questions; N means the interview is
// complete. A resolved stage is never lower than the stage the caller supplied.
package progression

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/vignette/internal/script"
	"github.com/MikeSquared-Agency/vignette/internal/transcript"
)

// Reason records which rule produced a resolution.
type Reason string

const (
	ReasonComplete      Reason = "complete"
	ReasonOracle        Reason = "oracle"
	ReasonFloor         Reason = "floor"
	ReasonRepetitionCap Reason = "repetition_cap"
	ReasonUnchanged     Reason = "unchanged"
	ReasonJudgeFailed   Reason = "judge_failed"
)

// Input is everything the engine needs for one turn. History excludes the new message.
type Input struct {
	Stage   int
	History []transcript.Turn
	Message string
}

type Resolution struct {
	PriorStage       int
	Stage            int
	Reason           Reason
	ParticipantTurns int
	Instruction      string
	Done             bool
}

type Engine struct {
	script *script.Script
	judge  *Judge
	logger *slog.Logger
}

func New(s *script.Script, judge *Judge, logger *slog.Logger) *Engine {
	return &Engine{script: s, judge: judge, logger: logger}
}

func (e *Engine) Script() *script.Script {
	return e.script
}

// Resolve runs the transition for one turn. It never fails: judgment errors
// degrade to leaving the stage where it was.
func (e *Engine) Resolve(ctx context.Context, in Input) Resolution {
	n := e.script.Len()
	current := clamp(in.Stage, 0, n)
	conversation := e.Conversation(in.History, in.Message)
	turns := transcript.CountSpeaker(conversation, transcript.SpeakerUser)

	res := Resolution{
		PriorStage:       current,
		Stage:            current,
		Reason:           ReasonUnchanged,
		ParticipantTurns: turns,
	}

	if current == n {
		res.Reason = ReasonComplete
		return e.finish(res, conversation)
	}

	// Turn-count floor.
	effective := max(current, e.floor(turns))
	if effective > current {
		res.Stage = effective
		res.Reason = ReasonFloor
	}
	if effective == n {
		return e.finish(res, conversation)
	}

	proposed, err := e.judge.Assess(ctx, e.script, effective, conversation)
	if err != nil {
		e.logger.Warn("judgment failed, stage unchanged",
			"stage", effective,
			"mode", string(e.judge.Mode()),
			"error", err,
		)
		if res.Reason == ReasonUnchanged {
			res.Reason = ReasonJudgeFailed
		}
		proposed = effective
	}

	// Ratchet.
	resolved := max(proposed, effective)
	if resolved > effective {
		res.Reason = ReasonOracle
	}

	// Repetition cap: the next reply would be the cap-th restatement.
	if resolved == effective {
		q, _ := e.script.Question(effective)
		if transcript.CountAsked(conversation, q.PromptText)+1 >= e.script.RepetitionCap {
			resolved = min(effective+1, n)
			res.Reason = ReasonRepetitionCap
		}
	}

	res.Stage = clamp(resolved, current, n)
	return e.finish(res, conversation)
}

// Conversation is the history as the participant saw it: the scripted opening,
// the parsed transcript, then the new message.
func (e *Engine) Conversation(history []transcript.Turn, message string) []transcript.Turn {
	conv := transcript.WithOpening(history, e.script.Opening)
	out := make([]transcript.Turn, 0, len(conv)+1)
	out = append(out, conv...)
	return append(out, transcript.Turn{Speaker: transcript.SpeakerUser, Text: message})
}

// Instruction maps a stage to the directive embedded in the reply's system prompt.
func (e *Engine) Instruction(stage int, conversation []transcript.Turn) string {
	q, ok := e.script.Question(stage)
	if !ok {
		return closingInstruction
	}
	if stage == 0 && transcript.CountAsked(conversation, q.PromptText) >= 1 {
		return fmt.Sprintf(pressInstruction, q.PromptText)
	}
	return fmt.Sprintf(askInstruction, q.PromptText)
}

func (e *Engine) finish(res Resolution, conversation []transcript.Turn) Resolution {
	res.Done = res.Stage == e.script.Len()
	res.Instruction = e.Instruction(res.Stage, conversation)
	return res
}

// floor returns the minimum stage allowed after turns participant turns.
func (e *Engine) floor(turns int) int {
	f := 0
	for _, fl := range e.script.Floors {
		if turns >= fl.AfterTurns && fl.MinStage > f {
			f = fl.MinStage
		}
	}
	return min(f, e.script.Len())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
