package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/podcastgen/api/internal/audio"
	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/model"
)

// JingleFile is the name of the persisted jingle inside a job directory
const JingleFile = "jingle.wav"

var jingleStyles = map[model.Tone]string{
	model.ToneCasual:   "warm acoustic guitar and light percussion",
	model.ToneAcademic: "calm piano with soft strings",
	model.ToneComedic:  "bouncy ukulele and playful whistles",
}

// JingleGenerator requests an instrumental jingle and waits for it to render
type JingleGenerator struct {
	music    client.MusicGenerator
	model    string
	interval time.Duration
	maxWait  time.Duration
}

// NewJingleGenerator creates a new jingle generator
func NewJingleGenerator(music client.MusicGenerator, musicModel string, interval, maxWait time.Duration) *JingleGenerator {
	return &JingleGenerator{
		music:    music,
		model:    musicModel,
		interval: interval,
		maxWait:  maxWait,
	}
}

// JinglePrompt builds the music prompt for a style hint and length
func JinglePrompt(tone model.Tone, seconds int) string {
	style, ok := jingleStyles[tone]
	if !ok {
		style = jingleStyles[model.ToneCasual]
	}
	return fmt.Sprintf("Upbeat %d-second podcast intro jingle, instrumental only, no vocals, %s, catchy and modern", seconds, style)
}

// Generate submits a jingle request and polls it until ready or the wait
// budget runs out. Every failure yields an unavailable jingle, never an error.
func (g *JingleGenerator) Generate(ctx context.Context, tone model.Tone, seconds int, jobDir string) *model.Jingle {
	jingle := &model.Jingle{State: model.JingleRequested}

	if g.music == nil || !g.music.IsMusicConfigured() {
		return g.unavailable(jingle, "music provider not configured")
	}

	taskID, err := g.music.SubmitMusic(ctx, &client.SubmitMusicRequest{
		Model:  g.model,
		Prompt: JinglePrompt(tone, seconds),
		AudioSetting: &client.AudioSetting{
			SampleRate: audio.DefaultSampleRate,
			Bitrate:    256000,
			Format:     "wav",
		},
	})
	if err != nil {
		return g.unavailable(jingle, fmt.Sprintf("submit failed: %v", err))
	}
	jingle.State = model.JinglePending
	jingle.TaskID = taskID

	status, err := g.poll(ctx, taskID)
	if err != nil {
		return g.unavailable(jingle, err.Error())
	}

	data, err := g.music.Download(ctx, status.File.DownloadURL)
	if err != nil {
		return g.unavailable(jingle, fmt.Sprintf("download failed: %v", err))
	}
	buf, err := audio.DecodeWAV(data)
	if err != nil {
		return g.unavailable(jingle, fmt.Sprintf("decode failed: %v", err))
	}

	path := filepath.Join(jobDir, JingleFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return g.unavailable(jingle, (&model.IOError{Path: path, Err: err}).Error())
	}

	jingle.State = model.JingleReady
	jingle.Path = path
	jingle.Audio = buf
	jingle.Duration = buf.Duration()
	log.Printf("[Jingle] task=%s ready (%v)", taskID, jingle.Duration)
	return jingle
}

func (g *JingleGenerator) poll(ctx context.Context, taskID string) (*client.MusicStatus, error) {
	deadline := time.Now().Add(g.maxWait)
	attempt := 0

	for {
		attempt++
		status, err := g.music.GetMusicStatus(ctx, taskID)
		if err != nil {
			log.Printf("[Jingle] Poll #%d (task=%s) error: %v", attempt, taskID, err)
			return nil, err
		}

		log.Printf("[Jingle] Poll #%d (task=%s) status: %s", attempt, taskID, status.Status)

		switch status.Status {
		case client.MusicStatusSuccess:
			if status.File.DownloadURL == "" {
				return nil, fmt.Errorf("task %s finished without a download url", taskID)
			}
			return status, nil
		case client.MusicStatusFailed:
			return nil, fmt.Errorf("music generation failed for task %s", taskID)
		}

		if !time.Now().Add(g.interval).Before(deadline) {
			return nil, fmt.Errorf("music generation timed out after %v", g.maxWait)
		}

		select {
		case <-ctx.Done():
			log.Printf("[Jingle] Poll (task=%s) cancelled", taskID)
			return nil, ctx.Err()
		case <-time.After(g.interval):
		}
	}
}

func (g *JingleGenerator) unavailable(jingle *model.Jingle, reason string) *model.Jingle {
	log.Printf("[Jingle] unavailable: %s", reason)
	jingle.State = model.JingleUnavailable
	jingle.Reason = reason
	jingle.Audio = nil
	jingle.Path = ""
	return jingle
}
