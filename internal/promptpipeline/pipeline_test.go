package promptpipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

type scriptedProvider struct {
	responses []string
	calls     int
	prompts   []string
}

func (p *scriptedProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	p.prompts = append(p.prompts, req.Prompt)
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func TestModerate_RejectsWithRationale(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"is_okay": false, "rationale": "Explicit"}`}}
	pipe := New(provider)

	err := pipe.Moderate(context.Background(), "explicit lyrics about violence")
	require.Error(t, err)
	ce := arena.AsCoreError(err)
	assert.Equal(t, "PromptRejected", ce.Code)
	assert.Equal(t, "Explicit", ce.Message)
}

func TestModerate_PassesAndCaches(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"is_okay": true}`}}
	pipe := New(provider)

	require.NoError(t, pipe.Moderate(context.Background(), "a song about rain"))
	require.NoError(t, pipe.Moderate(context.Background(), "a song about rain"))
	assert.Equal(t, 1, provider.calls, "second call should hit the cache")
}

func TestRoute_FillsDurationAndInstrumental(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"is_okay": true, "instrumental": true, "duration": 45}`}}
	pipe := New(provider)

	prompt, err := pipe.Route(context.Background(), "a calm instrumental piano piece")
	require.NoError(t, err)
	assert.True(t, prompt.Instrumental)
	assert.Equal(t, 45.0, prompt.Duration)
	assert.Equal(t, "a calm instrumental piano piece", prompt.OverallPrompt)
}

func TestRoute_DefaultsDurationWhenNull(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"is_okay": true, "instrumental": false, "duration": null}`}}
	pipe := New(provider)

	prompt, err := pipe.Route(context.Background(), "lo-fi beats")
	require.NoError(t, err)
	assert.Equal(t, defaultDurationSeconds, prompt.Duration)
}

func TestRoute_RejectionPropagates(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"is_okay": false, "rationale": "Music Reference"}`}}
	pipe := New(provider)

	_, err := pipe.Route(context.Background(), "make it sound like Taylor Swift")
	require.Error(t, err)
	assert.Equal(t, "PromptRejected", arena.AsCoreError(err).Code)
}

func TestGenerateLyrics_ReturnsProviderText(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"verse one\nchorus one"}}
	pipe := New(provider)

	prompt := arena.DetailedTextToMusicPrompt{OverallPrompt: "a roadtrip song", Duration: 60}
	lyrics, err := pipe.GenerateLyrics(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "verse one\nchorus one", lyrics)
}

func TestProcess_InstrumentalSkipsLyrics(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"is_okay": true, "instrumental": true, "duration": 30}`}}
	pipe := New(provider)

	prompt, err := pipe.Process(context.Background(), "ambient synth pad")
	require.NoError(t, err)
	assert.Nil(t, prompt.Lyrics)
	assert.Equal(t, 1, provider.calls)
}

func TestProcess_VocalPromptGeneratesLyrics(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"is_okay": true, "instrumental": false, "duration": 60}`,
		"generated lyrics here",
	}}
	pipe := New(provider)

	prompt, err := pipe.Process(context.Background(), "a breakup ballad")
	require.NoError(t, err)
	require.NotNil(t, prompt.Lyrics)
	assert.Equal(t, "generated lyrics here", *prompt.Lyrics)
	assert.Equal(t, 2, provider.calls)
}

func TestProcess_RejectedPromptNeverReachesLyrics(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"is_okay": false, "rationale": "Insensitive"}`}}
	pipe := New(provider)

	_, err := pipe.Process(context.Background(), "hateful content")
	require.Error(t, err)
	assert.Equal(t, 1, provider.calls)
}
