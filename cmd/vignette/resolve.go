package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/vignette/internal/config"
	"github.com/MikeSquared-Agency/vignette/internal/interview"
)

var (
	resolveStage      int
	resolveTranscript string
	resolveMessage    string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the next stage for one turn without generating a reply",
	Long: `resolve runs the transcript parser and progression engine against the
configured judge and prints the resolved stage, the rule that produced it and
the instruction the reply would be generated from.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().IntVar(&resolveStage, "stage", 0, "stage supplied by the survey platform")
	resolveCmd.Flags().StringVar(&resolveTranscript, "transcript", "", "path to a transcript file (- for stdin)")
	resolveCmd.Flags().StringVarP(&resolveMessage, "message", "m", "", "participant's latest message")
	resolveCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(resolveCmd)
}

type resolveOutput struct {
	PriorStage       int    `json:"prior_stage"`
	Stage            int    `json:"stage"`
	Reason           string `json:"reason"`
	ParticipantTurns int    `json:"participant_turns"`
	Done             bool   `json:"done"`
	Instruction      string `json:"instruction"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	// resolve is offline tooling; it never announces turns.
	cfg.NatsURL = ""

	raw, err := readTranscript(resolveTranscript)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := build(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.Resolve(ctx, interview.Request{
		Message:    resolveMessage,
		Transcript: raw,
		Stage:      resolveStage,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resolveOutput{
		PriorStage:       res.PriorStage,
		Stage:            res.Stage,
		Reason:           string(res.Reason),
		ParticipantTurns: res.ParticipantTurns,
		Done:             res.Done,
		Instruction:      res.Instruction,
	})
}

func readTranscript(path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read transcript: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read transcript: %w", err)
		}
		return string(data), nil
	}
}
