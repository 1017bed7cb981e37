package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/model"
)

const (
	TaskTypePodcast = "podcast:process"
	QueuePodcast    = "podcast"

	jobTTL        = 24 * time.Hour
	maxTxAttempts = 5
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrJobNotCompleted     = errors.New("job not completed")
	ErrJobAlreadyCompleted = errors.New("job already completed")
	ErrJobCanceled         = errors.New("job canceled")
)

// OutputRoute is the URL prefix job directories are served under
const OutputRoute = "/output"

// AudioURL returns the public path of a job's mastered track
func AudioURL(jobID string) string {
	return path.Join(OutputRoute, jobID, MasterFile)
}

// PodcastService handles podcast job management
type PodcastService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	inspector   *asynq.Inspector
	tts         client.SpeechSynthesizer
	outputDir   string
	timeout     time.Duration
}

// NewPodcastService creates a new podcast service
func NewPodcastService(redisClient *redis.Client, asynqClient *asynq.Client, inspector *asynq.Inspector, tts client.SpeechSynthesizer, outputDir string, timeout time.Duration) *PodcastService {
	return &PodcastService{
		redis:       redisClient,
		asynqClient: asynqClient,
		inspector:   inspector,
		tts:         tts,
		outputDir:   outputDir,
		timeout:     timeout,
	}
}

// JobDir returns the directory owned by a job
func (s *PodcastService) JobDir(jobID string) string {
	return filepath.Join(s.outputDir, jobID)
}

// StartPodcast registers a new job and queues it
func (s *PodcastService) StartPodcast(ctx context.Context, req *model.PodcastGenerateRequest) (*model.PodcastStartResponse, error) {
	if s.tts == nil || !s.tts.IsConfigured() {
		return nil, &model.ConfigurationError{Setting: "elevenlabs.api_key", Message: "voice synthesis provider not configured"}
	}

	jobID := uuid.New().String()
	now := time.Now()

	topic := req.Topic
	if topic == "" {
		topic = TopicFromURL(req.URL)
	}
	tone := req.Tone
	if tone == "" {
		tone = model.ToneCasual
	}

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypePodcast,
		Status:    model.JobStatusQueued,
		Phase:     model.PhaseCreated,
		Progress:  0,
		CreatedAt: now,
	}

	payload := &model.PodcastJobPayload{
		Topic:     topic,
		SourceURL: req.URL,
		Tone:      tone,
		OutputDir: s.JobDir(jobID),
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	job.Payload = payloadBytes

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newPodcastTask(jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// Remote calls carry their own retry, so the task itself runs once.
	_, err = s.asynqClient.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.Queue(QueuePodcast),
		asynq.MaxRetry(0),
		asynq.Timeout(s.timeout),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Printf("[Podcast] queued job %s (topic=%q tone=%s)", jobID, topic, tone)
	return &model.PodcastStartResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		Phase:     model.PhaseCreated,
		Topic:     topic,
		Tone:      tone,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current status of a podcast job
func (s *PodcastService) GetStatus(ctx context.Context, jobID string) (*model.PodcastStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.PodcastStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Phase:       job.Phase,
		FailedPhase: job.FailedPhase,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetResult returns the summary of a finished job. Failed jobs that got far
// enough to produce a script return their partial summary.
func (s *PodcastService) GetResult(ctx context.Context, jobID string) (*model.PodcastResult, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == model.JobStatusCanceled && len(job.Result) == 0 {
		return nil, ErrJobCanceled
	}
	if !job.Status.IsTerminal() || len(job.Result) == 0 {
		return nil, ErrJobNotCompleted
	}

	var result model.PodcastResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// CancelPodcast cancels a queued or running job
func (s *PodcastService) CancelPodcast(ctx context.Context, jobID string) (*model.PodcastCancelResponse, error) {
	err := s.updateJob(ctx, jobID, func(job *model.Job) error {
		if job.Status.IsTerminal() {
			return ErrJobAlreadyCompleted
		}
		job.Status = model.JobStatusCanceled
		now := time.Now()
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.inspector != nil {
		if err := s.inspector.DeleteTask(QueuePodcast, jobID); err != nil {
			// Active tasks cannot be deleted, signal the worker instead.
			if err := s.inspector.CancelProcessing(jobID); err != nil {
				log.Printf("[Podcast] cancel signal for %s failed: %v", jobID, err)
			}
		}
	}

	log.Printf("[Podcast] canceled job %s", jobID)
	return &model.PodcastCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

// UpdatePhase moves a job into a new phase (called by worker). It returns
// ErrJobCanceled once the job has been canceled.
func (s *PodcastService) UpdatePhase(ctx context.Context, jobID string, phase model.Phase, step string) error {
	return s.updateJob(ctx, jobID, func(job *model.Job) error {
		if job.Status == model.JobStatusCanceled {
			return ErrJobCanceled
		}
		if job.Status.IsTerminal() {
			return ErrJobAlreadyCompleted
		}

		job.Phase = phase
		job.Progress = phase.Progress()
		job.CurrentStep = step

		if job.Status == model.JobStatusQueued {
			job.Status = model.JobStatusRunning
			now := time.Now()
			job.StartedAt = &now
		}
		return nil
	})
}

// CompleteJob marks job as completed (called by worker)
func (s *PodcastService) CompleteJob(ctx context.Context, jobID string, result *model.PodcastResult) error {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.updateJob(ctx, jobID, func(job *model.Job) error {
		if job.Status == model.JobStatusCanceled {
			return ErrJobCanceled
		}
		job.Status = model.JobStatusSucceeded
		job.Phase = model.PhaseComplete
		job.Progress = 100
		job.CurrentStep = ""
		job.Result = resultBytes
		now := time.Now()
		job.CompletedAt = &now
		return nil
	})
}

// FailJob marks job as failed in the given phase (called by worker). result
// may carry whatever summary was produced before the failure.
func (s *PodcastService) FailJob(ctx context.Context, jobID string, phase model.Phase, errMsg string, result *model.PodcastResult) error {
	var resultBytes []byte
	if result != nil {
		var err error
		if resultBytes, err = json.Marshal(result); err != nil {
			return err
		}
	}

	return s.updateJob(ctx, jobID, func(job *model.Job) error {
		if job.Status == model.JobStatusCanceled {
			return ErrJobCanceled
		}
		job.Status = model.JobStatusFailed
		job.FailedPhase = phase
		job.Phase = model.PhaseFailed
		job.Error = &errMsg
		job.Result = resultBytes
		now := time.Now()
		job.CompletedAt = &now
		return nil
	})
}

// MarkCanceled records a cancellation observed by the worker, such as a
// job timeout or shutdown, unless the job already reached a terminal state.
func (s *PodcastService) MarkCanceled(ctx context.Context, jobID string, reason string) error {
	return s.updateJob(ctx, jobID, func(job *model.Job) error {
		if job.Status.IsTerminal() {
			return nil
		}
		job.Status = model.JobStatusCanceled
		job.Error = &reason
		now := time.Now()
		job.CompletedAt = &now
		return nil
	})
}

// Helper methods

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func (s *PodcastService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *PodcastService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// updateJob applies fn to the stored job under an optimistic lock so that
// worker progress never overwrites a concurrent cancel.
func (s *PodcastService) updateJob(ctx context.Context, jobID string, fn func(*model.Job) error) error {
	key := jobKey(jobID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrJobNotFound
			}
			return err
		}

		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		if err := fn(&job); err != nil {
			return err
		}

		updated, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, jobTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update job %s: too many concurrent writers", jobID)
}

func newPodcastTask(jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePodcast, data), nil
}
