package gateway

import (
	"github.com/gclef-cmu/music-arena/internal/arena"
)

// generateBattleRequest is the wire shape of POST /generate_battle. Either
// Prompt (free text, routed through the prompt pipeline) or PromptDetailed
// (already structured, skips moderation/routing) must be set. The
// latter is how /health_check and prebaked-prompt replay short-circuit
// the pipeline.
type generateBattleRequest struct {
	Session        arena.Session                    `json:"session"`
	User           arena.User                       `json:"user"`
	Prompt         *simplePromptWire                `json:"prompt,omitempty"`
	PromptDetailed *arena.DetailedTextToMusicPrompt `json:"prompt_detailed,omitempty"`
}

type simplePromptWire struct {
	Prompt       string   `json:"prompt"`
	Duration     *float64 `json:"duration,omitempty"`
	Instrumental *bool    `json:"instrumental,omitempty"`
}

// generateBattleResponse redacts both sides until a vote is recorded.
type generateBattleResponse struct {
	UUID           string                          `json:"uuid"`
	AAudioURL      string                          `json:"a_audio_url"`
	BAudioURL      string                          `json:"b_audio_url"`
	AMetadata      arena.ResponseMetadata          `json:"a_metadata"`
	BMetadata      arena.ResponseMetadata          `json:"b_metadata"`
	PromptDetailed arena.DetailedTextToMusicPrompt `json:"prompt_detailed"`
}

// recordVoteRequest is the wire shape of POST /record_vote.
type recordVoteRequest struct {
	Session    arena.Session `json:"session"`
	User       arena.User    `json:"user"`
	BattleUUID string        `json:"battle_uuid"`
	Vote       arena.Vote    `json:"vote"`
}

// recordVoteResponse reveals both sides' identity now that a vote exists.
type recordVoteResponse struct {
	Acknowledged bool                   `json:"acknowledged"`
	AMetadata    arena.ResponseMetadata `json:"a_metadata"`
	BMetadata    arena.ResponseMetadata `json:"b_metadata"`
}

type healthCheckResponse struct {
	Status string `json:"status"`
	UUID   string `json:"uuid"`
}
