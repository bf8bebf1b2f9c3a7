package gateway

import (
	"fmt"
	"net/http"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/httputil"
)

func validateSession(session arena.Session) error {
	if session.UUID == "" {
		return fmt.Errorf("session.uuid is required")
	}
	if session.CreateTime.IsZero() {
		return fmt.Errorf("session.create_time is required")
	}
	if !session.AckTOS {
		return fmt.Errorf("session.ack_tos must be true")
	}
	return nil
}

func (s *Server) handleGenerateBattle(w http.ResponseWriter, r *http.Request) {
	var req generateBattleRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, arena.NewValidationError(err.Error()))
		return
	}
	if err := validateSession(req.Session); err != nil {
		httputil.WriteError(w, arena.NewValidationError(err.Error()))
		return
	}
	if req.Prompt == nil && req.PromptDetailed == nil {
		httputil.WriteError(w, arena.NewValidationError("prompt or prompt_detailed is required"))
		return
	}

	var (
		text          string
		detailed      *arena.DetailedTextToMusicPrompt
		overrides     promptOverrides
		prebakedCheck *string
	)
	if req.PromptDetailed != nil {
		d := *req.PromptDetailed
		detailed = &d
		checksum := d.Checksum()
		if _, ok := s.prebaked[checksum]; ok {
			prebakedCheck = &checksum
		}
		text = d.OverallPrompt
	} else {
		if req.Prompt.Prompt == "" {
			httputil.WriteError(w, arena.NewValidationError("prompt.prompt is required"))
			return
		}
		text = req.Prompt.Prompt
		overrides.duration = req.Prompt.Duration
		overrides.instrumental = req.Prompt.Instrumental
	}

	record, _, _, err := s.generateBattle(r.Context(), req.Session, req.User, text, detailed, overrides, prebakedCheck)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	anonymized := record.Anonymized()
	httputil.WriteJSON(w, http.StatusOK, generateBattleResponse{
		UUID:           anonymized.UUID,
		AAudioURL:      anonymized.AAudioURI,
		BAudioURL:      anonymized.BAudioURI,
		AMetadata:      anonymized.AMetadata,
		BMetadata:      anonymized.BMetadata,
		PromptDetailed: anonymized.PromptDetailed,
	})
}
