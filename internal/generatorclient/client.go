// Package generatorclient is the typed HTTP client the Gateway uses to
// talk to one System Server: health checks and generation requests, with
// retries, timeouts, and a per-endpoint circuit breaker.
package generatorclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

const (
	connectTimeout    = 5 * time.Second
	defaultTotalDeadline = 180 * time.Second
	retryInitialInterval = 1 * time.Second
	retryMultiplier      = 2.0
	maxRetries           = 2
)

// Client is a stateless HTTP client for one System Server endpoint, save
// for its connection pool and circuit breaker.
type Client struct {
	Key           arena.SystemKey
	BaseURL       string
	TotalDeadline time.Duration

	httpClient *http.Client
	breaker    *circuitBreaker
}

// NewClient builds a client for one system endpoint. totalDeadline of 0
// falls back to a 180s default.
func NewClient(key arena.SystemKey, baseURL string, totalDeadline time.Duration) *Client {
	if totalDeadline <= 0 {
		totalDeadline = defaultTotalDeadline
	}
	return &Client{
		Key:           key,
		BaseURL:       baseURL,
		TotalDeadline: totalDeadline,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		breaker: newCircuitBreaker(),
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health reports whether the system server is READY, its latency, or an
// Unreachable error.
func (c *Client) Health(ctx context.Context) (time.Duration, error) {
	if !c.breaker.Allow(time.Now()) {
		return 0, arena.NewUnreachableError(fmt.Sprintf("%s: circuit open", c.Key))
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return 0, arena.NewInternalError(err.Error())
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordUnreachable(time.Now())
		return 0, arena.NewUnreachableError(fmt.Sprintf("%s: %v", c.Key, err))
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordOtherFailure()
		return latency, arena.NewUnreachableError(fmt.Sprintf("%s: health returned %d", c.Key, resp.StatusCode))
	}
	c.breaker.RecordSuccess(time.Now())
	return latency, nil
}

type promptSupportResponseBody struct {
	PromptSupport string `json:"prompt_support"`
}

// PromptSupport probes the remote system's /prompt_support endpoint for
// prompts the gateway can't classify from registry metadata alone.
func (c *Client) PromptSupport(ctx context.Context, prompt arena.DetailedTextToMusicPrompt) (arena.PromptSupport, error) {
	body, err := json.Marshal(prompt)
	if err != nil {
		return "", arena.NewInternalError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/prompt_support", bytes.NewReader(body))
	if err != nil {
		return "", arena.NewInternalError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", arena.NewUnreachableError(fmt.Sprintf("%s: %v", c.Key, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", arena.NewUnreachableError(fmt.Sprintf("%s: prompt_support returned %d: %s", c.Key, resp.StatusCode, string(raw)))
	}

	var decoded promptSupportResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", arena.NewInternalError(fmt.Sprintf("%s: decode prompt_support: %v", c.Key, err))
	}
	return arena.PromptSupport(decoded.PromptSupport), nil
}

type generateRequestBody = arena.DetailedTextToMusicPrompt

type generateResponseBody struct {
	AudioB64 string  `json:"audio_b64"`
	SampleRate int   `json:"sample_rate"`
	Lyrics     *string `json:"lyrics,omitempty"`
	Metadata   struct {
		BatchSize   int  `json:"batch_size"`
		QueueWaitMs int64 `json:"queue_wait_ms"`
		GenerateMs  int64 `json:"generate_ms"`
		ModelWarm   bool `json:"model_warm"`
	} `json:"metadata"`
}

// generateResult bundles the decoded response with the retry count so the
// caller can stamp gateway_num_retries on the persisted record.
type generateResult struct {
	response *arena.TextToMusicResponse
	metadata arena.ResponseMetadata
}

// Generate invokes /generate on the remote system server, retrying on
// Unreachable/5xx per policy. It never retries on 4xx.
func (c *Client) Generate(ctx context.Context, prompt arena.DetailedTextToMusicPrompt) (*arena.TextToMusicResponse, arena.ResponseMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.TotalDeadline)
	defer cancel()

	if !c.breaker.Allow(time.Now()) {
		return nil, arena.ResponseMetadata{}, arena.NewUnreachableError(fmt.Sprintf("%s: circuit open", c.Key))
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialInterval
	eb.Multiplier = retryMultiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)

	attempts := 0
	var result generateResult
	op := func() error {
		if attempts > 0 {
			// circuit may have opened mid-retry from a prior endpoint call.
			if !c.breaker.Allow(time.Now()) {
				return backoff.Permanent(arena.NewUnreachableError(fmt.Sprintf("%s: circuit open", c.Key)))
			}
		}
		attempts++
		res, err := c.generateOnce(ctx, prompt)
		if err != nil {
			ce := arena.AsCoreError(err)
			if isRetryable(ce) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = *res
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, arena.ResponseMetadata{}, err
	}

	result.metadata.GatewayNumRetries = attempts - 1
	return result.response, result.metadata, nil
}

func isRetryable(ce *arena.CoreError) bool {
	switch ce.Code {
	case "Unreachable", "BatchTimeout", "InternalServerError":
		return true
	default:
		return false
	}
}

func (c *Client) generateOnce(ctx context.Context, prompt arena.DetailedTextToMusicPrompt) (*generateResult, error) {
	body, err := json.Marshal(generateRequestBody(prompt))
	if err != nil {
		return nil, arena.NewInternalError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, arena.NewInternalError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.breaker.RecordOtherFailure()
			return nil, arena.NewTimeoutError(fmt.Sprintf("%s: %v", c.Key, err))
		}
		c.breaker.RecordUnreachable(time.Now())
		return nil, arena.NewUnreachableError(fmt.Sprintf("%s: %v", c.Key, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, arena.NewInternalError(err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		c.breaker.RecordSuccess(time.Now())
		var decoded generateResponseBody
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, arena.NewInternalError(fmt.Sprintf("%s: decode response: %v", c.Key, err))
		}
		audio, err := base64.StdEncoding.DecodeString(decoded.AudioB64)
		if err != nil {
			return nil, arena.NewInternalError(fmt.Sprintf("%s: decode audio_b64: %v", c.Key, err))
		}
		return &generateResult{
			response: &arena.TextToMusicResponse{
				AudioBytes: audio,
				SampleRate: decoded.SampleRate,
				Lyrics:     decoded.Lyrics,
			},
			metadata: arena.ResponseMetadata{
				SystemKey:  c.Key,
				SizeBytes:  len(audio),
				Lyrics:     decoded.Lyrics,
				SampleRate: decoded.SampleRate,
				Duration:   prompt.Duration,
				ModelWarm:  decoded.Metadata.ModelWarm,
				BatchSize:  decoded.Metadata.BatchSize,
			},
		}, nil

	case resp.StatusCode == http.StatusServiceUnavailable:
		c.breaker.RecordOtherFailure()
		return nil, arena.NewBatchTimeoutError(fmt.Sprintf("%s: busy: %s", c.Key, string(raw)))

	case resp.StatusCode == http.StatusUnprocessableEntity:
		c.breaker.RecordOtherFailure()
		return nil, arena.NewUnsupportedError(fmt.Sprintf("%s: %s", c.Key, string(raw)))

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.breaker.RecordOtherFailure()
		return nil, arena.NewRejectedError(fmt.Sprintf("%s: %s", c.Key, string(raw)))

	default:
		c.breaker.RecordOtherFailure()
		return nil, arena.NewRemoteInternalError(fmt.Sprintf("%s: %s", c.Key, string(raw)))
	}
}
