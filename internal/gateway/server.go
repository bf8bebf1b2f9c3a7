// Package gateway implements the orchestrator: it runs the Prompt
// Pipeline, draws a matchup from the Matchup Sampler, dispatches two
// concurrent generate calls via the Generator Client, persists the
// result, and answers the frontend's /generate_battle and /record_vote
// requests.
package gateway

import (
	"math/rand"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/generatorclient"
	"github.com/gclef-cmu/music-arena/internal/promptpipeline"
	"github.com/gclef-cmu/music-arena/internal/registry"
	"github.com/gclef-cmu/music-arena/internal/sampler"
	"github.com/gclef-cmu/music-arena/internal/store"
)

// Config carries everything the Server needs to answer a request.
// Registry, Blobs and Docs are always used; Clients must hold a client
// for every system that can be sampled, and Pipeline is used only for
// free-text prompts. NewServer replaces a zero MinimumListenTime,
// RateLimitRPS or RequestTimeout with 5s, 20 and 30s. Weights, Flakiness,
// Prebaked and GatewayGitHash may be left empty.
type Config struct {
	Registry          *registry.Registry
	Pipeline          *promptpipeline.Pipeline
	Clients           map[arena.SystemKey]*generatorclient.Client
	Weights           sampler.Weights
	Blobs             store.BlobStore
	Docs              store.DocStore
	MinimumListenTime time.Duration
	Flakiness         float64
	Prebaked          map[string]arena.DetailedTextToMusicPrompt
	GatewayGitHash    string
	RateLimitRPS      int
	RequestTimeout    time.Duration
}

// Server holds the orchestrator's dependencies. Safe for concurrent use;
// the only mutable state is the shared rng, guarded by rngMu.
type Server struct {
	registry *registry.Registry
	pipeline *promptpipeline.Pipeline
	clients  map[arena.SystemKey]*generatorclient.Client
	weights  sampler.Weights
	blobs    store.BlobStore
	docs     store.DocStore

	minimumListenTime time.Duration
	flakiness         float64
	prebaked          map[string]arena.DetailedTextToMusicPrompt
	gatewayGitHash    string
	rateLimitRPS      int
	requestTimeout    time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewServer(cfg Config) *Server {
	if cfg.Prebaked == nil {
		cfg.Prebaked = map[string]arena.DetailedTextToMusicPrompt{}
	}
	if cfg.MinimumListenTime <= 0 {
		cfg.MinimumListenTime = 5 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Server{
		registry:          cfg.Registry,
		pipeline:          cfg.Pipeline,
		clients:           cfg.Clients,
		weights:           cfg.Weights,
		blobs:             cfg.Blobs,
		docs:              cfg.Docs,
		minimumListenTime: cfg.MinimumListenTime,
		flakiness:         cfg.Flakiness,
		prebaked:          cfg.Prebaked,
		gatewayGitHash:    cfg.GatewayGitHash,
		rateLimitRPS:      cfg.RateLimitRPS,
		requestTimeout:    cfg.RequestTimeout,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Router builds the Gateway's full HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(rateLimitMiddleware(s.rateLimitRPS))

	r.Get("/systems", s.handleSystems)
	r.Get("/prebaked", s.handlePrebaked)
	r.Get("/health_check", s.handleHealthCheck)
	r.Post("/generate_battle", flakyMiddleware(s.flakiness)(s.handleGenerateBattle).ServeHTTP)
	r.Post("/record_vote", s.handleRecordVote)
	return r
}

func (s *Server) drawRand() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// sample draws with the server's shared rng under lock, since
// math/rand.Rand is not safe for concurrent use.
func (s *Server) sample(candidates []arena.SystemKey) (arena.SystemKey, arena.SystemKey, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return sampler.Sample(candidates, s.weights, s.rng)
}
