package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/httputil"
)

func (s *Server) handleSystems(w http.ResponseWriter, r *http.Request) {
	keys := s.registry.All()
	out := make([][2]string, len(keys))
	for i, k := range keys {
		out[i] = [2]string{k.SystemTag, k.VariantTag}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handlePrebaked(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.prebaked)
}

// handleHealthCheck runs a synthetic battle against a random prebaked
// prompt end-to-end and reports {status, uuid} — a deep liveness probe,
// distinct from a simple "is the process up" check, carried over from
// the original's /health_check.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if len(s.prebaked) == 0 {
		httputil.WriteErrorStatus(w, http.StatusServiceUnavailable, "no prebaked prompts configured", "Unavailable")
		return
	}

	checksums := make([]string, 0, len(s.prebaked))
	for checksum := range s.prebaked {
		checksums = append(checksums, checksum)
	}
	idx := int(s.drawRand() * float64(len(checksums)))
	if idx >= len(checksums) {
		idx = len(checksums) - 1
	}
	checksum := checksums[idx]
	prompt := s.prebaked[checksum]

	session := arena.Session{UUID: uuid.NewString(), CreateTime: time.Now().UTC(), AckTOS: true}
	user := arena.User{}

	record, _, _, err := s.generateBattle(r.Context(), session, user, prompt.OverallPrompt, &prompt, promptOverrides{}, &checksum)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, healthCheckResponse{Status: "ok", UUID: record.UUID})
}
