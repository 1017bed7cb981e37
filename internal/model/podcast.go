package model

import "time"

// PodcastGenerateRequest represents the request to start a podcast job
type PodcastGenerateRequest struct {
	Topic string `json:"topic" validate:"required_without=URL,max=300"`
	URL   string `json:"url" validate:"omitempty,url"`
	Tone  Tone   `json:"tone" validate:"omitempty,oneof=casual academic comedic"`
}

// ScriptLine is one turn of the generated dialogue
type ScriptLine struct {
	Speaker Speaker `json:"speaker" validate:"required,oneof=Alex Sam"`
	Text    string  `json:"text" validate:"required"`
}

// PodcastStartResponse represents the response when starting a podcast job
type PodcastStartResponse struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Phase     Phase     `json:"phase"`
	Topic     string    `json:"topic"`
	Tone      Tone      `json:"tone"`
	CreatedAt time.Time `json:"created_at"`
}

// PodcastStatusResponse represents the status of a podcast job
type PodcastStatusResponse struct {
	JobID       string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	Phase       Phase      `json:"phase"`
	FailedPhase Phase      `json:"failed_phase,omitempty"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	Error       *string    `json:"error"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// PodcastResult is the summary recorded when a job reaches a terminal state
type PodcastResult struct {
	JobID             string       `json:"job_id"`
	Topic             string       `json:"topic"`
	Tone              Tone         `json:"tone"`
	Script            []ScriptLine `json:"script"`
	Brief             string       `json:"brief"`
	AudioURL          string       `json:"audio_url,omitempty"`
	PublishedURL      string       `json:"published_url,omitempty"`
	MP3URL            string       `json:"mp3_url,omitempty"`
	Success           bool         `json:"success"`
	HasAudio          bool         `json:"has_audio"`
	ClipCount         int          `json:"clip_count"`
	SkippedClips      int          `json:"skipped_clips"`
	Jingle            JingleState  `json:"jingle"`
	Duration          float64      `json:"duration"`
	PlaceholderScript bool         `json:"placeholder_script"`
	FailedPhase       Phase        `json:"failed_phase,omitempty"`
}

// PodcastCancelResponse represents the response when canceling a podcast job
type PodcastCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
}
