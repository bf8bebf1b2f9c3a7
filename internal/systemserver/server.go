package systemserver

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/httputil"
)

// Router builds the System Server's HTTP surface: /health, /generate,
// and /prompt_support. The Gateway's Generator Client talks to exactly
// these three.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/generate", s.handleGenerate)
	r.Post("/prompt_support", s.handlePromptSupport)
	return r
}

type healthBody struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("warm") == "1" && s.State() == StateCold {
		if err := s.Warm(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthBody{Status: "warm_failed"})
			return
		}
	}

	if s.State() == StateReady {
		httputil.WriteJSON(w, http.StatusOK, healthBody{Status: "ok"})
		return
	}
	httputil.WriteJSON(w, http.StatusServiceUnavailable, healthBody{Status: s.State().String()})
}

func (s *Server) handlePromptSupport(w http.ResponseWriter, r *http.Request) {
	var prompt arena.DetailedTextToMusicPrompt
	if err := decodeJSON(r, &prompt); err != nil {
		httputil.WriteError(w, arena.NewValidationError(err.Error()))
		return
	}
	support := s.model.PromptSupport(prompt)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"prompt_support": string(support)})
}

type generateResponseWire struct {
	AudioB64   string               `json:"audio_b64"`
	SampleRate int                  `json:"sample_rate"`
	Lyrics     *string              `json:"lyrics,omitempty"`
	Metadata   generateMetadataWire `json:"metadata"`
}

type generateMetadataWire struct {
	BatchSize   int   `json:"batch_size"`
	QueueWaitMs int64 `json:"queue_wait_ms"`
	GenerateMs  int64 `json:"generate_ms"`
	ModelWarm   bool  `json:"model_warm"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var prompt arena.DetailedTextToMusicPrompt
	if err := decodeJSON(r, &prompt); err != nil {
		httputil.WriteError(w, arena.NewValidationError(err.Error()))
		return
	}
	if err := prompt.Validate(); err != nil {
		httputil.WriteError(w, arena.NewValidationError(err.Error()))
		return
	}
	if support := s.model.PromptSupport(prompt); support != arena.Supported {
		httputil.WriteError(w, arena.NewUnsupportedError(string(support)))
		return
	}

	resp, meta, err := s.Enqueue(r.Context(), prompt)
	if err != nil {
		if busy, ok := err.(*BusyError); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(busy.RetryAfter.Seconds())))
			httputil.WriteErrorStatus(w, http.StatusServiceUnavailable, "system server busy", "Busy")
			return
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, generateResponseWire{
		AudioB64:   base64.StdEncoding.EncodeToString(resp.AudioBytes),
		SampleRate: resp.SampleRate,
		Lyrics:     resp.Lyrics,
		Metadata: generateMetadataWire{
			BatchSize:   meta.BatchSize,
			QueueWaitMs: meta.QueueWaitMs,
			GenerateMs:  meta.GenerateMs,
			ModelWarm:   meta.ModelWarm,
		},
	})
}
