package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/podcastgen/api/internal/config"
	"github.com/podcastgen/api/internal/model"
)

// VoiceSettings are passed through to the synthesis call untouched
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// SpeechSynthesizer turns text into raw 16-bit mono PCM
type SpeechSynthesizer interface {
	Speak(ctx context.Context, text, voiceID string, settings VoiceSettings) ([]byte, error)
	SampleRate() int
	IsConfigured() bool
}

// ElevenLabsClient implements SpeechSynthesizer for the ElevenLabs TTS API
type ElevenLabsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	sampleRate int
	maxTries   uint
	retryBase  time.Duration
	retryMax   time.Duration
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// ElevenLabsOption customizes the client
type ElevenLabsOption func(*ElevenLabsClient)

// WithRetryBackoff overrides the retry backoff delays
func WithRetryBackoff(base, max time.Duration) ElevenLabsOption {
	return func(c *ElevenLabsClient) {
		c.retryBase = base
		c.retryMax = max
	}
}

// NewElevenLabsClient creates a new ElevenLabs client on the shared HTTP client
func NewElevenLabsClient(httpClient *http.Client, cfg *config.ElevenLabsConfig, opts ...ElevenLabsOption) *ElevenLabsClient {
	tries := cfg.MaxRetries
	if tries < 1 {
		tries = 1
	}
	c := &ElevenLabsClient{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		sampleRate: cfg.SampleRate,
		maxTries:   uint(tries),
		retryBase:  time.Second,
		retryMax:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Speak synthesizes text with the given voice. Rate limits and server errors
// are retried with exponential backoff; other failures return immediately.
func (c *ElevenLabsClient) Speak(ctx context.Context, text, voiceID string, settings VoiceSettings) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Text:          text,
		ModelID:       c.model,
		VoiceSettings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?%s", c.baseURL, url.PathEscape(voiceID),
		url.Values{"output_format": {fmt.Sprintf("pcm_%d", c.sampleRate)}}.Encode())

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase
	b.MaxInterval = c.retryMax

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		data, err := c.speakOnce(ctx, endpoint, body)
		if err == nil {
			return data, nil
		}
		var perr *model.ProviderError
		if errors.As(err, &perr) && !perr.Retryable() {
			return nil, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		log.Printf("[ElevenLabs API] attempt %d/%d for voice %s failed: %v", attempt, c.maxTries, voiceID, err)
		return nil, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
	)
}

func (c *ElevenLabsClient) speakOnce(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("xi-api-key", c.apiKey)

	log.Printf("[ElevenLabs API] → %s %s", req.Method, req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Provider: "elevenlabs", Operation: "speak", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.ProviderError{Provider: "elevenlabs", Operation: "speak", Err: err}
	}

	log.Printf("[ElevenLabs API] ← %d %s %s (%d bytes)", resp.StatusCode, req.Method, req.URL.Path, len(data))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &model.ProviderError{Provider: "elevenlabs", Operation: "speak", StatusCode: resp.StatusCode, Err: errors.New(truncate(string(data), 300))}
	}
	return data, nil
}

// SampleRate returns the PCM rate requested from the API
func (c *ElevenLabsClient) SampleRate() int {
	return c.sampleRate
}

// IsConfigured returns true if the client has valid configuration
func (c *ElevenLabsClient) IsConfigured() bool {
	return c.apiKey != ""
}
