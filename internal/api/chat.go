package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/vignette/internal/interview"
)

const maxBodyBytes = 1 << 20

type chatRequest struct {
	Message           string     `json:"message"`
	Transcript        string     `json:"transcript"`
	CurrentStageIndex stageIndex `json:"current_stage_index"`
}

type chatResponse struct {
	Reply             string `json:"reply"`
	CurrentStageIndex int    `json:"current_stage_index"`
}

// stageIndex accepts a JSON number or a numeric string; survey platforms
// often round-trip embedded data as strings. Missing, null and "" mean 0.
type stageIndex int

func (s *stageIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = 0
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		raw = strings.TrimSpace(str)
		if raw == "" {
			*s = 0
			return nil
		}
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid current_stage_index %s", data)
	}
	*s = stageIndex(f)
	return nil
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.logger.Warn("invalid chat request", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.turns.Turn(r.Context(), interview.Request{
		Message:    req.Message,
		Transcript: req.Transcript,
		Stage:      int(req.CurrentStageIndex),
	})
	switch {
	case errors.Is(err, interview.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	case errors.Is(err, interview.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:             result.Reply,
		CurrentStageIndex: result.Stage,
	})
}
