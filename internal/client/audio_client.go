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
	"time"

	"github.com/podcastgen/api/internal/config"
	"github.com/podcastgen/api/internal/model"
)

// AudioEncoder transcodes a published master into a delivery format
type AudioEncoder interface {
	Encode(ctx context.Context, req *EncodeRequest) (*EncodeResponse, error)
	HealthCheck(ctx context.Context) error
}

// AudioClient implements AudioEncoder for the transcoding microservice
type AudioClient struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// EncodeRequest represents the request for audio encoding
type EncodeRequest struct {
	InputURL   string            `json:"input_url"`
	Format     string            `json:"format"`
	Quality    int               `json:"quality,omitempty"`
	SampleRate int               `json:"sample_rate,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OutputKey  string            `json:"output_key"`
}

// EncodeResponse represents the response from encoding
type EncodeResponse struct {
	OutputURL string `json:"output_url"`
	Format    string `json:"format"`
	Size      int64  `json:"size"`
}

// NewAudioClient creates a new transcoding client on the shared HTTP client
func NewAudioClient(httpClient *http.Client, cfg *config.AudioConfig) *AudioClient {
	return &AudioClient{
		httpClient: httpClient,
		baseURL:    cfg.ServiceURL,
		timeout:    time.Duration(cfg.Timeout) * time.Second,
	}
}

// Encode sends audio to the encoding endpoint
func (c *AudioClient) Encode(ctx context.Context, req *EncodeRequest) (*EncodeResponse, error) {
	var result EncodeResponse
	if err := c.post(ctx, "/encode", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the audio service is available
func (c *AudioClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// post sends a POST request with JSON body and parses the response
func (c *AudioClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	log.Printf("[Audio Service] → POST %s", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.ProviderError{Provider: "audio-service", Operation: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.ProviderError{Provider: "audio-service", Operation: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.ProviderError{Provider: "audio-service", Operation: endpoint, StatusCode: resp.StatusCode, Err: errors.New(truncate(string(respBody), 300))}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *AudioClient) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}
