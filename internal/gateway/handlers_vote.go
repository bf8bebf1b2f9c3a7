package gateway

import (
	"log"
	"net/http"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/httputil"
)

func (s *Server) handleRecordVote(w http.ResponseWriter, r *http.Request) {
	var req recordVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, arena.NewValidationError(err.Error()))
		return
	}
	if err := validateSession(req.Session); err != nil {
		httputil.WriteError(w, arena.NewValidationError(err.Error()))
		return
	}
	if req.BattleUUID == "" {
		httputil.WriteError(w, arena.NewValidationError("battle_uuid is required"))
		return
	}

	record, version, err := s.loadBattle(r.Context(), req.BattleUUID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	minSeconds := s.minimumListenTime.Seconds()
	if req.Vote.AListenTime() < minSeconds || req.Vote.BListenTime() < minSeconds {
		httputil.WriteError(w, arena.NewInsufficientListenTimeError("listen time below configured minimum"))
		return
	}

	if req.User.Checksum() != record.User.Checksum() {
		log.Printf("battle %s: vote user %s does not match prompt user %s", record.UUID, req.User.Checksum(), record.User.Checksum())
	}
	if req.Session.UUID != record.Session.UUID {
		log.Printf("battle %s: vote session %s does not match prompt session %s", record.UUID, req.Session.UUID, record.Session.UUID)
	}
	if record.Vote != nil {
		log.Printf("battle %s already has a vote, overwriting (last-writer-wins)", record.UUID)
	}

	vote := req.Vote
	voteUser := req.User
	voteSession := req.Session
	record.Vote = &vote
	record.VoteUser = &voteUser
	record.VoteSession = &voteSession

	if err := s.updateBattle(r.Context(), record, version); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, recordVoteResponse{
		Acknowledged: true,
		AMetadata:    record.AMetadata,
		BMetadata:    record.BMetadata,
	})
}
