package progression

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/vignette/internal/oracle"
	"github.com/MikeSquared-Agency/vignette/internal/script"
	"github.com/MikeSquared-Agency/vignette/internal/transcript"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOracle replays canned replies and records every prompt it was sent.
type fakeOracle struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeOracle) Complete(_ context.Context, _ string, messages []oracle.Message, _ int) (string, error) {
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "NO", nil
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r, nil
}

func newEngine(t *testing.T, llm oracle.Completer, mode Mode) (*Engine, *transcript.Parser) {
	t.Helper()
	s := script.Default()
	p := transcript.NewParser(s.Tags)
	return New(s, NewJudge(llm, mode, time.Second, p, nil), discardLogger()), p
}

func q(i int) string {
	return script.Default().Questions[i].PromptText
}

func TestResolve_OracleConfirmsFirstQuestion(t *testing.T) {
	llm := &fakeOracle{replies: []string{"YES"}}
	e, p := newEngine(t, llm, ModeVerdict)

	res := e.Resolve(context.Background(), Input{
		Stage:   0,
		History: p.Parse(""),
		Message: "Because of the fraud reports.",
	})

	assert.Equal(t, 1, res.Stage)
	assert.Equal(t, ReasonOracle, res.Reason)
	assert.Contains(t, res.Instruction, q(1))
	assert.False(t, res.Done)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], q(0))
	assert.Contains(t, llm.prompts[0], "YOU: Because of the fraud reports.")
	assert.Contains(t, llm.prompts[0], "NSC DIRECTOR: "+script.Default().Opening)
}

func TestResolve_RepetitionCapForcesAdvance(t *testing.T) {
	llm := &fakeOracle{replies: []string{"NO"}}
	e, p := newEngine(t, llm, ModeVerdict)

	raw := strings.Join([]string{
		"NSC DIRECTOR: " + script.Default().Opening,
		"YOU: Yes, I think so.",
		"NSC DIRECTOR: Thank you. " + q(1),
		"YOU: Hard to say.",
		"NSC DIRECTOR: I understand. " + q(1),
	}, "\n")

	res := e.Resolve(context.Background(), Input{Stage: 1, History: p.Parse(raw), Message: "not sure"})

	assert.Equal(t, 2, res.Stage)
	assert.Equal(t, ReasonRepetitionCap, res.Reason)
	assert.Contains(t, res.Instruction, q(2))
}

func TestResolve_RepetitionCapDoesNotSkipWhenOracleAdvances(t *testing.T) {
	llm := &fakeOracle{replies: []string{"YES"}}
	e, p := newEngine(t, llm, ModeVerdict)

	raw := "NSC DIRECTOR: " + q(1) + "\nYOU: maybe\nNSC DIRECTOR: " + q(1)
	res := e.Resolve(context.Background(), Input{Stage: 1, History: p.Parse(raw), Message: "about 60 percent"})

	assert.Equal(t, 2, res.Stage)
	assert.Equal(t, ReasonOracle, res.Reason)
}

func TestResolve_RepetitionCapOnLastQuestion(t *testing.T) {
	llm := &fakeOracle{replies: []string{"NO"}}
	e, p := newEngine(t, llm, ModeVerdict)

	raw := "NSC DIRECTOR: " + q(2) + "\nYOU: hmm\nNSC DIRECTOR: " + q(2) + " " + q(2)
	res := e.Resolve(context.Background(), Input{Stage: 2, History: p.Parse(raw), Message: "no idea"})

	assert.Equal(t, 3, res.Stage)
	assert.True(t, res.Done)
	assert.Equal(t, closingInstruction, res.Instruction)
}

func TestResolve_JudgeErrorKeepsStage(t *testing.T) {
	llm := &fakeOracle{err: errors.New("connection reset")}
	e, p := newEngine(t, llm, ModeVerdict)

	raw := "YOU: I support it.\nNSC DIRECTOR: " + q(2)
	res := e.Resolve(context.Background(), Input{Stage: 2, History: p.Parse(raw), Message: "I would rather not say."})

	assert.Equal(t, 2, res.Stage)
	assert.Equal(t, ReasonJudgeFailed, res.Reason)
	assert.Contains(t, res.Instruction, q(2))
}

func TestResolve_CompleteStaysComplete(t *testing.T) {
	llm := &fakeOracle{replies: []string{"0"}}
	e, p := newEngine(t, llm, ModeStage)

	res := e.Resolve(context.Background(), Input{Stage: 3, History: p.Parse("YOU: a"), Message: "one more thing"})

	assert.Equal(t, 3, res.Stage)
	assert.Equal(t, ReasonComplete, res.Reason)
	assert.True(t, res.Done)
	assert.Equal(t, closingInstruction, res.Instruction)
	assert.Empty(t, llm.prompts, "oracle should not be consulted once complete")
}

func TestResolve_ClampsCallerStage(t *testing.T) {
	e, _ := newEngine(t, &fakeOracle{}, ModeVerdict)

	res := e.Resolve(context.Background(), Input{Stage: 7, Message: "hi"})
	assert.Equal(t, 3, res.Stage)
	assert.Equal(t, 3, res.PriorStage)

	res = e.Resolve(context.Background(), Input{Stage: -4, Message: "hi"})
	assert.Equal(t, 0, res.Stage)
	assert.Equal(t, 0, res.PriorStage)
}

func TestResolve_MalformedVerdictIsUnchanged(t *testing.T) {
	for _, reply := range []string{"Maybe", "", "The participant answered.", "Y E S"} {
		llm := &fakeOracle{replies: []string{reply}}
		e, _ := newEngine(t, llm, ModeVerdict)

		res := e.Resolve(context.Background(), Input{Stage: 1, Message: "ok"})
		assert.Equal(t, 1, res.Stage, "reply %q", reply)
		assert.Equal(t, ReasonJudgeFailed, res.Reason, "reply %q", reply)
	}
}

func TestResolve_StageMode(t *testing.T) {
	tests := []struct {
		name   string
		stage  int
		reply  string
		want   int
		reason Reason
	}{
		{"advance two", 0, "2", 2, ReasonOracle},
		{"regression ignored", 2, "0", 2, ReasonUnchanged},
		{"out of range", 1, "9", 1, ReasonJudgeFailed},
		{"negative", 1, "-1", 1, ReasonJudgeFailed},
		{"words", 1, "two questions", 1, ReasonJudgeFailed},
		{"all answered", 1, "3", 3, ReasonOracle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeOracle{replies: []string{tt.reply}}
			e, _ := newEngine(t, llm, ModeStage)

			res := e.Resolve(context.Background(), Input{Stage: tt.stage, Message: "answer"})
			assert.Equal(t, tt.want, res.Stage)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestResolve_StageModePromptListsQuestions(t *testing.T) {
	llm := &fakeOracle{replies: []string{"1"}}
	e, _ := newEngine(t, llm, ModeStage)

	e.Resolve(context.Background(), Input{Stage: 0, Message: "yes"})

	require.Len(t, llm.prompts, 1)
	for i := 0; i < 3; i++ {
		assert.Contains(t, llm.prompts[0], q(i))
	}
	assert.Contains(t, llm.prompts[0], "between 0 and 3")
}

func TestResolve_TurnFloor(t *testing.T) {
	llm := &fakeOracle{replies: []string{"NO"}}
	e, p := newEngine(t, llm, ModeVerdict)

	raw := "YOU: one\nNSC DIRECTOR: ok\nYOU: two\nNSC DIRECTOR: ok\nYOU: three\nNSC DIRECTOR: ok"
	res := e.Resolve(context.Background(), Input{Stage: 0, History: p.Parse(raw), Message: "four"})

	assert.Equal(t, 4, res.ParticipantTurns)
	assert.Equal(t, 2, res.Stage)
	assert.Equal(t, ReasonFloor, res.Reason)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], q(2), "judge should be asked about the floored question")
}

func TestResolve_FloorReachesTerminalWithoutOracle(t *testing.T) {
	llm := &fakeOracle{}
	e, p := newEngine(t, llm, ModeVerdict)

	raw := "YOU: 1\nYOU: 2\nYOU: 3\nYOU: 4"
	res := e.Resolve(context.Background(), Input{Stage: 1, History: p.Parse(raw), Message: "5"})

	assert.Equal(t, 3, res.Stage)
	assert.Equal(t, ReasonFloor, res.Reason)
	assert.True(t, res.Done)
	assert.Empty(t, llm.prompts)
}

func TestInstruction_PressesOnOpeningQuestion(t *testing.T) {
	e, _ := newEngine(t, &fakeOracle{}, ModeVerdict)

	res := e.Resolve(context.Background(), Input{Stage: 0, Message: "I guess."})

	assert.Equal(t, 0, res.Stage)
	assert.Contains(t, res.Instruction, "say more")
	assert.Contains(t, res.Instruction, q(0))
	assert.NotContains(t, res.Instruction, "word for word: ")
}

func TestInstruction_AsksWhenNoOpening(t *testing.T) {
	s := script.Default()
	s.Opening = ""
	e := New(s, NewJudge(&fakeOracle{}, ModeVerdict, 0, transcript.NewParser(s.Tags), nil), discardLogger())

	got := e.Instruction(0, e.Conversation(nil, "hello"))
	assert.Contains(t, got, "word for word: \""+q(0)+"\"")
}

func TestResolve_FailSafeIsIdempotent(t *testing.T) {
	llm := &fakeOracle{err: context.DeadlineExceeded}
	e, p := newEngine(t, llm, ModeVerdict)

	in := Input{Stage: 1, History: p.Parse("YOU: yes\nNSC DIRECTOR: " + q(1)), Message: "pass"}
	first := e.Resolve(context.Background(), in)
	second := e.Resolve(context.Background(), in)

	assert.Equal(t, 1, first.Stage)
	assert.Equal(t, first, second)
}

func TestResolve_TerminatesWithinFiveTurns(t *testing.T) {
	llm := &fakeOracle{err: errors.New("judge down")}
	e, p := newEngine(t, llm, ModeVerdict)

	stage := 0
	var lines []string
	for turn := 1; turn <= 5; turn++ {
		msg := "reply " + string(rune('a'+turn))
		res := e.Resolve(context.Background(), Input{
			Stage:   stage,
			History: p.Parse(strings.Join(lines, "\n")),
			Message: msg,
		})
		require.GreaterOrEqual(t, res.Stage, stage)
		stage = res.Stage
		lines = append(lines, "YOU: "+msg, "NSC DIRECTOR: Noted, let us continue.")
	}

	assert.Equal(t, 3, stage)
}

func TestResolve_MonotonicUnderRandomOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	replies := []string{"YES", "NO", "0", "1", "2", "3", "7", "-1", "", "garbage", "yes.", "No!"}
	lines := []string{
		"YOU: sure",
		"NSC DIRECTOR: " + q(0),
		"NSC DIRECTOR: " + q(1),
		"NSC DIRECTOR: " + q(2),
		"random noise",
		"",
	}

	for _, mode := range []Mode{ModeVerdict, ModeStage} {
		for run := 0; run < 50; run++ {
			llm := oracle.CompleterFunc(func(context.Context, string, []oracle.Message, int) (string, error) {
				if rng.Intn(5) == 0 {
					return "", errors.New("flaky")
				}
				return replies[rng.Intn(len(replies))], nil
			})
			e, p := newEngine(t, llm, mode)

			stage := rng.Intn(4)
			var history []string
			for turn := 0; turn < 8; turn++ {
				for k := rng.Intn(3); k > 0; k-- {
					history = append(history, lines[rng.Intn(len(lines))])
				}
				res := e.Resolve(context.Background(), Input{
					Stage:   stage,
					History: p.Parse(strings.Join(history, "\n")),
					Message: "answer",
				})
				require.GreaterOrEqual(t, res.Stage, stage, "mode %s run %d turn %d", mode, run, turn)
				require.LessOrEqual(t, res.Stage, 3)
				stage = res.Stage
				history = append(history, "YOU: answer")
			}
		}
	}
}
