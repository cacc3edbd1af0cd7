// Package interview runs one participant turn end to end: parse the replayed
// transcript, resolve the stage, generate the reply.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/MikeSquared-Agency/vignette/internal/composer"
	"github.com/MikeSquared-Agency/vignette/internal/hermes"
	"github.com/MikeSquared-Agency/vignette/internal/progression"
	"github.com/MikeSquared-Agency/vignette/internal/transcript"
)

var (
	ErrEmptyMessage = errors.New("no message provided")
	ErrBusy         = errors.New("too many turns in flight")
)

// Publisher receives a TurnEvent after each successful turn.
type Publisher interface {
	PublishTurn(evt hermes.TurnEvent) error
}

// Request is the state the survey platform replays on every turn.
type Request struct {
	Message    string
	Transcript string
	Stage      int
}

type Result struct {
	TurnID string
	Reply  string
	Stage  int
	Reason progression.Reason
	Done   bool
}

type Service struct {
	engine   *progression.Engine
	composer *composer.Composer
	parser   *transcript.Parser
	slots    *semaphore.Weighted
	events   Publisher
	logger   *slog.Logger
}

// New builds a Service. events may be nil. maxInFlight bounds concurrent turns
// and so concurrent outbound model calls.
func New(engine *progression.Engine, comp *composer.Composer, parser *transcript.Parser, maxInFlight int, events Publisher, logger *slog.Logger) *Service {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Service{
		engine:   engine,
		composer: comp,
		parser:   parser,
		slots:    semaphore.NewWeighted(int64(maxInFlight)),
		events:   events,
		logger:   logger,
	}
}

// Resolve runs only the progression step for req. No reply is generated.
func (s *Service) Resolve(ctx context.Context, req Request) (progression.Resolution, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return progression.Resolution{}, ErrEmptyMessage
	}
	return s.engine.Resolve(ctx, progression.Input{
		Stage:   req.Stage,
		History: s.parser.Parse(req.Transcript),
		Message: msg,
	}), nil
}

// Turn resolves the next stage and generates the reply. Judgment failures are
// absorbed by the engine; generation failures are returned and nothing is
// reported as advanced, so the platform can retry the same turn.
func (s *Service) Turn(ctx context.Context, req Request) (*Result, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer s.slots.Release(1)

	turnID := uuid.NewString()
	history := s.parser.Parse(req.Transcript)

	res := s.engine.Resolve(ctx, progression.Input{Stage: req.Stage, History: history, Message: msg})

	reply, err := s.composer.Reply(ctx, res.Instruction, s.engine.Conversation(history, msg))
	if err != nil {
		s.logger.Error("reply generation failed",
			"turn_id", turnID,
			"stage", res.Stage,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("turn resolved",
		"turn_id", turnID,
		"prior_stage", res.PriorStage,
		"stage", res.Stage,
		"reason", string(res.Reason),
		"participant_turns", res.ParticipantTurns,
		"done", res.Done,
	)
	s.publish(turnID, res)

	return &Result{
		TurnID: turnID,
		Reply:  reply,
		Stage:  res.Stage,
		Reason: res.Reason,
		Done:   res.Done,
	}, nil
}

func (s *Service) publish(turnID string, res progression.Resolution) {
	if s.events == nil {
		return
	}
	err := s.events.PublishTurn(hermes.TurnEvent{
		TurnID:           turnID,
		Script:           s.engine.Script().Name,
		PriorStage:       res.PriorStage,
		Stage:            res.Stage,
		Reason:           string(res.Reason),
		ParticipantTurns: res.ParticipantTurns,
		Done:             res.Done,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Warn("failed to publish turn event", "turn_id", turnID, "error", err)
	}
}
