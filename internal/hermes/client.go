package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectTurnResolved carries one TurnEvent per completed participant turn.
	SubjectTurnResolved = "survey.vignette.turn.resolved"
	// SubjectRegistered is published once at startup.
	SubjectRegistered = "swarm.agent.vignette.registered"
)

// TurnEvent describes how a turn moved the interview. It carries no transcript text.
type TurnEvent struct {
	TurnID           string `json:"turn_id"`
	Script           string `json:"script"`
	PriorStage       int    `json:"prior_stage"`
	Stage            int    `json:"stage"`
	Reason           string `json:"reason"`
	ParticipantTurns int    `json:"participant_turns"`
	Done             bool   `json:"done"`
	Timestamp        string `json:"timestamp"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("vignette"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// PublishTurn emits evt on SubjectTurnResolved.
func (c *Client) PublishTurn(evt TurnEvent) error {
	return c.Publish(SubjectTurnResolved, evt)
}

func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
