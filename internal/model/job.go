package model

import (
	"encoding/json"
	"time"
)

// Job represents a podcast generation job in the system
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      JobStatus       `json:"status"`
	Phase       Phase           `json:"phase"`
	FailedPhase Phase           `json:"failedPhase,omitempty"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"currentStep,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	RetryCount  int             `json:"retryCount"`
}

// Job types
const (
	JobTypePodcast = "podcast"
)

// PodcastJobPayload contains the data for a podcast job
type PodcastJobPayload struct {
	Topic     string `json:"topic"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Tone      Tone   `json:"tone"`
	OutputDir string `json:"outputDir"`
}
