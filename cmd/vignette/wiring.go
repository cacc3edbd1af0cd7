package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/vignette/internal/anthropic"
	"github.com/MikeSquared-Agency/vignette/internal/cache"
	"github.com/MikeSquared-Agency/vignette/internal/composer"
	"github.com/MikeSquared-Agency/vignette/internal/config"
	"github.com/MikeSquared-Agency/vignette/internal/gemini"
	"github.com/MikeSquared-Agency/vignette/internal/hermes"
	"github.com/MikeSquared-Agency/vignette/internal/interview"
	"github.com/MikeSquared-Agency/vignette/internal/oracle"
	"github.com/MikeSquared-Agency/vignette/internal/progression"
	"github.com/MikeSquared-Agency/vignette/internal/script"
	"github.com/MikeSquared-Agency/vignette/internal/transcript"
)

// app holds everything built from config, plus the closers for optional integrations.
type app struct {
	script  *script.Script
	engine  *progression.Engine
	service *interview.Service
	hermes  *hermes.Client
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadScript(path string) (*script.Script, error) {
	if path == "" {
		return script.Default(), nil
	}
	return script.Load(path)
}

func newCompleters(ctx context.Context, cfg config.Config) (judge, reply oracle.Completer, err error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.JudgeModel), anthropic.NewClient(cfg.AnthropicAPIKey, cfg.ReplyModel), nil
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY is required")
		}
		j, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.JudgeModel)
		if err != nil {
			return nil, nil, err
		}
		r, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.ReplyModel)
		if err != nil {
			return nil, nil, err
		}
		return j, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	s, err := loadScript(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	a.script = s

	mode, err := progression.ParseMode(cfg.JudgeMode)
	if err != nil {
		return nil, err
	}

	judgeLLM, replyLLM, err := newCompleters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var judgeCache progression.Cache
	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL, cfg.JudgeCacheTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("judgment cache: %w", err)
		}
		a.closers = append(a.closers, func() { c.Close() })
		judgeCache = c
		logger.Info("judgment cache ready")
	}

	var events interview.Publisher
	if cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, hc.Close)
		a.hermes = hc
		events = hc
		logger.Info("NATS connected", "url", cfg.NatsURL)
	}

	parser := transcript.NewParser(s.Tags)
	judge := progression.NewJudge(judgeLLM, mode, cfg.JudgeTimeout, parser, judgeCache)
	a.engine = progression.New(s, judge, logger)
	comp := composer.New(replyLLM, s.Persona, cfg.ReplyTimeout)
	a.service = interview.New(a.engine, comp, parser, cfg.MaxInFlight, events, logger)

	logger.Info("interview ready",
		"script", s.Name,
		"questions", s.Len(),
		"provider", cfg.Provider,
		"judge_model", cfg.JudgeModel,
		"reply_model", cfg.ReplyModel,
		"judge_mode", string(mode),
	)
	return a, nil
}
