package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/generatorclient"
	"github.com/gclef-cmu/music-arena/internal/promptpipeline"
	"github.com/gclef-cmu/music-arena/internal/sampler"
	"github.com/gclef-cmu/music-arena/internal/store"
)

type scriptedChatProvider struct {
	responses []string
	calls     int
}

func (p *scriptedChatProvider) Complete(ctx context.Context, req promptpipeline.CompletionRequest) (string, error) {
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func twoWorkingClients(t *testing.T) (map[arena.SystemKey]*generatorclient.Client, arena.SystemKey, arena.SystemKey) {
	quiet := testKey(t, "noise", "quiet")
	loud := testKey(t, "noise", "loud")
	return map[arena.SystemKey]*generatorclient.Client{
		quiet: newFakeClient(t, quiet, fakeSystemBehavior{generateBody: []byte("audio-quiet")}),
		loud:  newFakeClient(t, loud, fakeSystemBehavior{generateBody: []byte("audio-loud")}),
	}, loud, quiet
}

func TestHandleGenerateBattle_DetailedPromptReturnsAnonymizedResponse(t *testing.T) {
	clients, loud, quiet := twoWorkingClients(t)
	s := NewServer(Config{
		Registry: testRegistry(t),
		Clients:  clients,
		Weights:  sampler.Weights{sampler.Pair{A: loud, B: quiet}: 1},
		Blobs:    testBlobStore(t),
		Docs:     store.NewInMemoryDocStore(),
	})

	reqBody := generateBattleRequest{
		Session: testSession(t),
		User:    arena.User{},
		PromptDetailed: &arena.DetailedTextToMusicPrompt{
			OverallPrompt: "ambient pads", Duration: 30, Instrumental: true,
		},
	}
	raw, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/generate_battle", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	s.handleGenerateBattle(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp generateBattleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.UUID)
	assert.NotEmpty(t, resp.AAudioURL)
	assert.NotEmpty(t, resp.BAudioURL)
	assert.Equal(t, "anonymized", resp.AMetadata.SystemKey.SystemTag)
	assert.Equal(t, "anonymized", resp.BMetadata.SystemKey.SystemTag)
}

func TestHandleGenerateBattle_FreeTextRoutesThenAppliesOverrides(t *testing.T) {
	clients, loud, quiet := twoWorkingClients(t)
	provider := &scriptedChatProvider{responses: []string{`{"is_okay": true, "instrumental": true, "duration": 20}`}}
	s := NewServer(Config{
		Registry: testRegistry(t),
		Pipeline: promptpipeline.New(provider),
		Clients:  clients,
		Weights:  sampler.Weights{sampler.Pair{A: loud, B: quiet}: 1},
		Blobs:    testBlobStore(t),
		Docs:     store.NewInMemoryDocStore(),
	})

	overrideDuration := 90.0
	reqBody := generateBattleRequest{
		Session: testSession(t),
		User:    arena.User{},
		Prompt:  &simplePromptWire{Prompt: "ambient pads", Duration: &overrideDuration},
	}
	raw, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/generate_battle", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	s.handleGenerateBattle(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp generateBattleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, overrideDuration, resp.PromptDetailed.Duration)
	assert.True(t, resp.PromptDetailed.Instrumental)
}

func TestHandleGenerateBattle_RejectsMissingSession(t *testing.T) {
	clients, loud, quiet := twoWorkingClients(t)
	s := NewServer(Config{
		Registry: testRegistry(t),
		Clients:  clients,
		Weights:  sampler.Weights{sampler.Pair{A: loud, B: quiet}: 1},
		Blobs:    testBlobStore(t),
		Docs:     store.NewInMemoryDocStore(),
	})

	reqBody := generateBattleRequest{
		Session:        arena.Session{},
		PromptDetailed: &arena.DetailedTextToMusicPrompt{OverallPrompt: "x", Duration: 30, Instrumental: true},
	}
	raw, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/generate_battle", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	s.handleGenerateBattle(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGenerateBattle_RejectsMissingPrompt(t *testing.T) {
	clients, loud, quiet := twoWorkingClients(t)
	s := NewServer(Config{
		Registry: testRegistry(t),
		Clients:  clients,
		Weights:  sampler.Weights{sampler.Pair{A: loud, B: quiet}: 1},
		Blobs:    testBlobStore(t),
		Docs:     store.NewInMemoryDocStore(),
	})

	reqBody := generateBattleRequest{Session: testSession(t)}
	raw, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/generate_battle", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	s.handleGenerateBattle(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGenerateBattle_PromptRejectedSurfacesAs422(t *testing.T) {
	clients, loud, quiet := twoWorkingClients(t)
	provider := &scriptedChatProvider{responses: []string{`{"is_okay": false, "rationale": "explicit content"}`}}
	s := NewServer(Config{
		Registry: testRegistry(t),
		Pipeline: promptpipeline.New(provider),
		Clients:  clients,
		Weights:  sampler.Weights{sampler.Pair{A: loud, B: quiet}: 1},
		Blobs:    testBlobStore(t),
		Docs:     store.NewInMemoryDocStore(),
	})

	reqBody := generateBattleRequest{Session: testSession(t), Prompt: &simplePromptWire{Prompt: "bad words"}}
	raw, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/generate_battle", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	s.handleGenerateBattle(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
