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
	"unicode/utf8"

	"github.com/podcastgen/api/internal/config"
	"github.com/podcastgen/api/internal/model"
)

// Music task statuses reported by the query endpoint
const (
	MusicStatusSuccess = "Success"
	MusicStatusFailed  = "Failed"
)

// ScriptGenerator produces raw dialogue text from a prompt pair
type ScriptGenerator interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
}

// MusicGenerator defines the interface for asynchronous music generation
type MusicGenerator interface {
	SubmitMusic(ctx context.Context, req *SubmitMusicRequest) (string, error)
	GetMusicStatus(ctx context.Context, taskID string) (*MusicStatus, error)
	Download(ctx context.Context, fileURL string) ([]byte, error)
	IsMusicConfigured() bool
}

// MiniMaxClient talks to the MiniMax chat and music endpoints
type MiniMaxClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	groupID     string
	chatModel   string
	musicModel  string
	temperature float64
	maxTokens   int
}

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents the request body for chat completion
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	BaseResp *BaseResp `json:"base_resp,omitempty"`
}

// BaseResp carries MiniMax application-level status inside 200 responses
type BaseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

// SubmitMusicRequest represents the request for music generation
type SubmitMusicRequest struct {
	Model        string        `json:"model"`
	Prompt       string        `json:"prompt"`
	AudioSetting *AudioSetting `json:"audio_setting,omitempty"`
}

// AudioSetting selects the container of the generated track
type AudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
}

type submitMusicResponse struct {
	TaskID   string    `json:"task_id"`
	BaseResp *BaseResp `json:"base_resp,omitempty"`
}

// MusicStatus represents the state of a music generation task
type MusicStatus struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	File   struct {
		DownloadURL string `json:"download_url"`
	} `json:"file"`
	BaseResp *BaseResp `json:"base_resp,omitempty"`
}

// NewMiniMaxClient creates a new MiniMax API client on the shared HTTP client
func NewMiniMaxClient(httpClient *http.Client, cfg *config.MiniMaxConfig) *MiniMaxClient {
	return &MiniMaxClient{
		httpClient:  httpClient,
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		groupID:     cfg.GroupID,
		chatModel:   cfg.ChatModel,
		musicModel:  cfg.MusicModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// ChatCompletion sends a chat completion request and returns the first choice
func (c *MiniMaxClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var result ChatCompletionResponse
	if err := c.post(ctx, "chat", "/v1/text/chatcompletion_v2", nil, reqBody, &result); err != nil {
		return "", err
	}
	if err := result.BaseResp.err("chat"); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", &model.ProviderError{Provider: "minimax", Operation: "chat", Err: errors.New("no choices in response")}
	}

	return result.Choices[0].Message.Content, nil
}

// SubmitMusic starts a music generation task and returns its task id
func (c *MiniMaxClient) SubmitMusic(ctx context.Context, req *SubmitMusicRequest) (string, error) {
	if req.Model == "" {
		req.Model = c.musicModel
	}

	var result submitMusicResponse
	if err := c.post(ctx, "submit music", "/v1/music_generation", url.Values{"GroupId": {c.groupID}}, req, &result); err != nil {
		return "", err
	}
	if err := result.BaseResp.err("submit music"); err != nil {
		return "", err
	}
	if result.TaskID == "" {
		return "", &model.ProviderError{Provider: "minimax", Operation: "submit music", Err: errors.New("no task_id in response")}
	}
	return result.TaskID, nil
}

// GetMusicStatus retrieves the status of a music generation task
func (c *MiniMaxClient) GetMusicStatus(ctx context.Context, taskID string) (*MusicStatus, error) {
	query := url.Values{"task_id": {taskID}, "GroupId": {c.groupID}}
	var result MusicStatus
	if err := c.get(ctx, "query music", "/v1/query/music_generation", query, &result); err != nil {
		return nil, err
	}
	if err := result.BaseResp.err("query music"); err != nil {
		return nil, err
	}
	return &result, nil
}

// Download fetches a generated audio file
func (c *MiniMaxClient) Download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	log.Printf("[MiniMax API] → GET %s", fileURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Provider: "minimax", Operation: "download", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.ProviderError{Provider: "minimax", Operation: "download", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &model.ProviderError{Provider: "minimax", Operation: "download", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	log.Printf("[MiniMax API] ← %d GET %s (%d bytes)", resp.StatusCode, fileURL, len(data))
	return data, nil
}

// post sends a POST request with JSON body
func (c *MiniMaxClient) post(ctx context.Context, op, endpoint string, query url.Values, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(endpoint, query), bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(op, req, result)
}

// get sends a GET request and parses JSON response
func (c *MiniMaxClient) get(ctx context.Context, op, endpoint string, query url.Values, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(endpoint, query), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(op, req, result)
}

func (c *MiniMaxClient) endpoint(path string, query url.Values) string {
	if len(query) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + query.Encode()
}

// doRequest executes an HTTP request and parses the response
func (c *MiniMaxClient) doRequest(op string, req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[MiniMax API] → %s %s", req.Method, req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[MiniMax API] ✗ %s %s: request failed: %v", req.Method, req.URL.Path, err)
		return &model.ProviderError{Provider: "minimax", Operation: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[MiniMax API] ✗ %s %s: failed to read response: %v", req.Method, req.URL.Path, err)
		return &model.ProviderError{Provider: "minimax", Operation: op, Err: err}
	}

	log.Printf("[MiniMax API] ← %d %s %s (%d bytes)", resp.StatusCode, req.Method, req.URL.Path, len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.ProviderError{Provider: "minimax", Operation: op, StatusCode: resp.StatusCode, Err: errors.New(truncate(string(respBody), 300))}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[MiniMax API] ✗ unmarshal error for %s %s: %v", req.Method, req.URL.Path, err)
		return &model.ProviderError{Provider: "minimax", Operation: op, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	return nil
}

func (b *BaseResp) err(op string) error {
	if b == nil || b.StatusCode == 0 {
		return nil
	}
	return &model.ProviderError{Provider: "minimax", Operation: op, Err: fmt.Errorf("status %d: %s", b.StatusCode, b.StatusMsg)}
}

// IsConfigured reports whether chat completion can be called
func (c *MiniMaxClient) IsConfigured() bool {
	return c.apiKey != ""
}

// IsMusicConfigured reports whether music generation can be called
func (c *MiniMaxClient) IsMusicConfigured() bool {
	return c.apiKey != "" && c.groupID != ""
}

// truncate cuts s to at most n bytes without splitting a character
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
