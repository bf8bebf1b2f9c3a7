// Package promptpipeline implements the moderate/route/lyrics stages
// that turn a user's free-text prompt into a DetailedTextToMusicPrompt
// before the Matchup Sampler ever sees it.
package promptpipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CompletionRequest is the wire shape POSTed to the configured chat
// completion URL.
type CompletionRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	ForceJSON bool   `json:"force_json,omitempty"`
	Seed      *int64 `json:"seed,omitempty"`
}

// ChatProvider is the injected collaborator that moderation, routing,
// and lyrics generation delegate to for the underlying LLM call. The
// shipped implementation is a plain JSON HTTP client, the same shape
// the other internal services use to talk to each other.
type ChatProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// HTTPChatProvider POSTs a JSON completion request to a single
// configured endpoint and decodes a JSON {"text": "..."} response.
type HTTPChatProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPChatProvider(baseURL, apiKey string) *HTTPChatProvider {
	return &HTTPChatProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type completionResponseBody struct {
	Text string `json:"text"`
}

func (p *HTTPChatProvider) Complete(ctx context.Context, creq CompletionRequest) (string, error) {
	body, err := json.Marshal(creq)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat provider status %d", resp.StatusCode)
	}

	var out completionResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Text, nil
}
