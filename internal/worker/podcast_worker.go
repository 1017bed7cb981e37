package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/podcastgen/api/internal/model"
	"github.com/podcastgen/api/internal/service"
	"github.com/podcastgen/api/internal/telemetry"
)

// Researcher produces the research brief for a topic or URL
type Researcher interface {
	Research(ctx context.Context, topic, sourceURL string) (string, error)
}

// ScriptWriter turns a brief into dialogue
type ScriptWriter interface {
	Generate(ctx context.Context, topic, brief string, tone model.Tone) ([]model.ScriptLine, error)
}

// ClipRenderer synthesizes every script line into a clip
type ClipRenderer interface {
	SynthesizeAll(ctx context.Context, lines []model.ScriptLine, clipsDir string) ([]model.Clip, error)
}

// JingleMaker produces the optional jingle
type JingleMaker interface {
	Generate(ctx context.Context, tone model.Tone, seconds int, jobDir string) *model.Jingle
}

// Masterer assembles the final track
type Masterer interface {
	Master(ctx context.Context, clips []model.Clip, jingle *model.Jingle, jobDir string) (*model.MasterTrack, error)
}

// Publisher pushes the finished track to delivery storage
type Publisher interface {
	Enabled() bool
	Publish(ctx context.Context, jobID, title string, master *model.MasterTrack) (*service.Publication, error)
}

// JobTracker persists job state transitions
type JobTracker interface {
	UpdatePhase(ctx context.Context, jobID string, phase model.Phase, step string) error
	CompleteJob(ctx context.Context, jobID string, result *model.PodcastResult) error
	FailJob(ctx context.Context, jobID string, phase model.Phase, errMsg string, result *model.PodcastResult) error
	MarkCanceled(ctx context.Context, jobID string, reason string) error
}

// Notifier pushes job events to subscribed clients
type Notifier interface {
	BroadcastProgress(jobID string, phase model.Phase, progress int, status model.JobStatus, step string)
	BroadcastComplete(jobID string, result interface{})
	BroadcastError(jobID string, phase model.Phase, code, message string)
}

// PodcastWorker drives one podcast job from research to mastered track
type PodcastWorker struct {
	research      Researcher
	scripts       ScriptWriter
	clips         ClipRenderer
	jingles       JingleMaker
	mastering     Masterer
	publisher     Publisher
	tracker       JobTracker
	notifier      Notifier
	metrics       *telemetry.Metrics
	jingleSeconds int
}

// Deps groups the collaborators of a PodcastWorker
type Deps struct {
	Research      Researcher
	Scripts       ScriptWriter
	Clips         ClipRenderer
	Jingles       JingleMaker
	Mastering     Masterer
	Publisher     Publisher
	Tracker       JobTracker
	Notifier      Notifier
	Metrics       *telemetry.Metrics
	JingleSeconds int
}

// NewPodcastWorker creates a new podcast worker
func NewPodcastWorker(d Deps) *PodcastWorker {
	seconds := d.JingleSeconds
	if seconds <= 0 {
		seconds = 15
	}
	return &PodcastWorker{
		research:      d.Research,
		scripts:       d.Scripts,
		clips:         d.Clips,
		jingles:       d.Jingles,
		mastering:     d.Mastering,
		publisher:     d.Publisher,
		tracker:       d.Tracker,
		notifier:      d.Notifier,
		metrics:       d.Metrics,
		jingleSeconds: seconds,
	}
}

// ProcessTask handles podcast task processing
func (w *PodcastWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := taskPayload.JobID
	log.Printf("[Worker] starting podcast job: %s", jobID)

	var payload model.PodcastJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, model.PhaseCreated, fmt.Errorf("invalid payload: %w", err), nil)
		return fmt.Errorf("failed to unmarshal podcast payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.Run(ctx, jobID, &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// Run executes the pipeline. A returned error means the job ended failed or
// canceled; its state has already been recorded.
func (w *PodcastWorker) Run(ctx context.Context, jobID string, payload *model.PodcastJobPayload) error {
	jobDir := payload.OutputDir
	result := &model.PodcastResult{
		JobID: jobID,
		Topic: payload.Topic,
		Tone:  payload.Tone,
	}

	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		ioErr := &model.IOError{Path: jobDir, Err: err}
		w.failJob(ctx, jobID, model.PhaseCreated, ioErr, nil)
		return ioErr
	}

	// Research
	if err := w.enterPhase(ctx, jobID, model.PhaseResearching, "Researching topic..."); err != nil {
		return err
	}
	brief, err := w.research.Research(ctx, payload.Topic, payload.SourceURL)
	if err != nil {
		log.Printf("[Worker] job %s: research failed, using fallback brief: %v", jobID, err)
		brief = service.FallbackBrief(payload.Topic)
	}
	result.Brief = service.BriefPreview(brief)
	if err := ctx.Err(); err != nil {
		return w.canceled(ctx, jobID, model.PhaseResearching, err)
	}

	// Script
	if err := w.enterPhase(ctx, jobID, model.PhaseScripting, "Writing script..."); err != nil {
		return err
	}
	lines, err := w.scripts.Generate(ctx, payload.Topic, brief, payload.Tone)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return w.canceled(ctx, jobID, model.PhaseScripting, ctxErr)
		}
		log.Printf("[Worker] job %s: script generation failed, using placeholder: %v", jobID, err)
		lines = service.PlaceholderScript(payload.Topic)
		result.PlaceholderScript = true
	}
	result.Script = lines

	// Voice and music run side by side; the jingle is only needed at mastering.
	jctx, cancelJingle := context.WithCancel(ctx)
	var jingle *model.Jingle
	jingleDone := make(chan struct{})
	go func() {
		defer close(jingleDone)
		jingle = w.jingles.Generate(jctx, payload.Tone, w.jingleSeconds, jobDir)
	}()
	defer func() {
		cancelJingle()
		<-jingleDone
	}()

	if err := w.enterPhase(ctx, jobID, model.PhaseSynthesizingVoice, fmt.Sprintf("Synthesizing %d lines...", len(lines))); err != nil {
		return err
	}
	clips, err := w.clips.SynthesizeAll(ctx, lines, filepath.Join(jobDir, "clips"))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return w.canceled(ctx, jobID, model.PhaseSynthesizingVoice, ctxErr)
		}
		w.failJob(ctx, jobID, model.PhaseSynthesizingVoice, err, result)
		return err
	}
	ok := 0
	for _, c := range clips {
		if c.OK {
			ok++
		}
	}
	w.metrics.ClipsRendered(ctx, ok, len(clips)-ok)

	if err := w.enterPhase(ctx, jobID, model.PhaseGeneratingMusic, "Waiting for jingle..."); err != nil {
		return err
	}
	select {
	case <-jingleDone:
	case <-ctx.Done():
		return w.canceled(ctx, jobID, model.PhaseGeneratingMusic, ctx.Err())
	}
	result.Jingle = jingle.State
	w.metrics.JingleResolved(ctx, jingle.State)

	// Mastering
	if err := w.enterPhase(ctx, jobID, model.PhaseMastering, "Mastering episode..."); err != nil {
		return err
	}
	started := time.Now()
	master, err := w.mastering.Master(ctx, clips, jingle, jobDir)
	w.metrics.MasteringTook(ctx, time.Since(started))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return w.canceled(ctx, jobID, model.PhaseMastering, ctxErr)
		}
		result.SkippedClips = len(clips) - ok
		w.failJob(ctx, jobID, model.PhaseMastering, err, result)
		return err
	}

	result.Success = true
	result.HasAudio = true
	result.ClipCount = master.VoiceSegments
	result.SkippedClips = master.SkippedClips
	result.Duration = master.Duration.Seconds()
	result.AudioURL = service.AudioURL(jobID)

	if w.publisher != nil && w.publisher.Enabled() {
		pub, err := w.publisher.Publish(ctx, jobID, payload.Topic, master)
		if err != nil {
			log.Printf("[Worker] job %s: publish failed: %v", jobID, err)
		} else if pub != nil {
			result.PublishedURL = pub.WAVURL
			result.MP3URL = pub.MP3URL
		}
	}

	if err := w.tracker.CompleteJob(context.WithoutCancel(ctx), jobID, result); err != nil {
		if errors.Is(err, service.ErrJobCanceled) {
			log.Printf("[Worker] job %s canceled before completion was recorded", jobID)
			return err
		}
		w.failJob(ctx, jobID, model.PhaseComplete, fmt.Errorf("failed to save result: %w", err), result)
		return err
	}

	w.metrics.JobFinished(ctx, model.JobStatusSucceeded, model.PhaseComplete)
	w.notifier.BroadcastComplete(jobID, result)
	log.Printf("[Worker] podcast job %s completed (%d clips, %d skipped, jingle=%s)", jobID, result.ClipCount, result.SkippedClips, result.Jingle)
	return nil
}

// enterPhase records the phase change. It fails only when the job was
// canceled through the API.
func (w *PodcastWorker) enterPhase(ctx context.Context, jobID string, phase model.Phase, step string) error {
	if err := w.tracker.UpdatePhase(context.WithoutCancel(ctx), jobID, phase, step); err != nil {
		if errors.Is(err, service.ErrJobCanceled) {
			log.Printf("[Worker] job %s canceled, stopping before %s", jobID, phase)
			w.metrics.JobFinished(ctx, model.JobStatusCanceled, phase)
			return err
		}
		log.Printf("[Worker] failed to update phase: %v", err)
	}
	w.notifier.BroadcastProgress(jobID, phase, phase.Progress(), model.JobStatusRunning, step)
	return nil
}

func (w *PodcastWorker) canceled(ctx context.Context, jobID string, phase model.Phase, cause error) error {
	reason := fmt.Sprintf("canceled during %s: %v", phase, cause)
	if err := w.tracker.MarkCanceled(context.WithoutCancel(ctx), jobID, reason); err != nil {
		log.Printf("[Worker] failed to mark job as canceled: %v", err)
	}
	w.metrics.JobFinished(context.WithoutCancel(ctx), model.JobStatusCanceled, phase)
	w.notifier.BroadcastError(jobID, phase, "JOB_CANCELED", reason)
	log.Printf("[Worker] job %s %s", jobID, reason)
	return cause
}

func (w *PodcastWorker) failJob(ctx context.Context, jobID string, phase model.Phase, cause error, result *model.PodcastResult) {
	errMsg := cause.Error()
	if result != nil {
		result.FailedPhase = phase
	}
	if err := w.tracker.FailJob(context.WithoutCancel(ctx), jobID, phase, errMsg, result); err != nil {
		log.Printf("[Worker] failed to mark job as failed: %v", err)
	}
	w.metrics.JobFinished(context.WithoutCancel(ctx), model.JobStatusFailed, phase)
	w.notifier.BroadcastError(jobID, phase, errorCode(cause), errMsg)
	log.Printf("[Worker] job %s failed in %s: %s", jobID, phase, errMsg)
}

func errorCode(err error) string {
	var cfgErr *model.ConfigurationError
	var masterErr *model.MasteringError
	var ioErr *model.IOError
	switch {
	case errors.As(err, &cfgErr):
		return "CONFIGURATION_ERROR"
	case errors.As(err, &masterErr):
		return "MASTERING_FAILED"
	case errors.As(err, &ioErr):
		return "IO_ERROR"
	}
	return "PODCAST_FAILED"
}
