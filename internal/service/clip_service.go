package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/podcastgen/api/internal/audio"
	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/model"
)

// ClipSynthesizer renders script lines into voice clips, one remote call per line
type ClipSynthesizer struct {
	tts         client.SpeechSynthesizer
	voices      map[model.Speaker]string
	settings    client.VoiceSettings
	concurrency int
}

// NewClipSynthesizer creates a new clip synthesizer
func NewClipSynthesizer(tts client.SpeechSynthesizer, voices map[model.Speaker]string, settings client.VoiceSettings, concurrency int) *ClipSynthesizer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ClipSynthesizer{
		tts:         tts,
		voices:      voices,
		settings:    settings,
		concurrency: concurrency,
	}
}

// VoiceFor returns the voice identity mapped to a speaker
func (s *ClipSynthesizer) VoiceFor(speaker model.Speaker) (string, error) {
	voice := strings.TrimSpace(s.voices[speaker])
	if voice == "" {
		return "", &model.ConfigurationError{
			Setting: "elevenlabs.voice_" + strings.ToLower(string(speaker)),
			Message: "no voice mapped for " + string(speaker),
		}
	}
	return voice, nil
}

// ClipPath returns the file a clip is written to. The name encodes position
// and speaker so clips sort back into script order regardless of completion order.
func ClipPath(clipsDir string, index int, speaker model.Speaker) string {
	return filepath.Join(clipsDir, fmt.Sprintf("%03d_%s.wav", index, strings.ToLower(string(speaker))))
}

// Synthesize renders one line. Only a missing voice mapping is returned as an
// error; remote and decode failures mark the clip as failed.
func (s *ClipSynthesizer) Synthesize(ctx context.Context, index int, line model.ScriptLine, clipsDir string) (model.Clip, error) {
	clip := model.Clip{Index: index, Line: line}

	voice, err := s.VoiceFor(line.Speaker)
	if err != nil {
		return clip, err
	}
	clip.VoiceID = voice

	pcm, err := s.tts.Speak(ctx, line.Text, voice, s.settings)
	if err != nil {
		return s.fail(clip, err), nil
	}

	buf, err := audio.FromPCM16(pcm, s.tts.SampleRate(), 1)
	if err != nil {
		return s.fail(clip, fmt.Errorf("malformed audio payload: %w", err)), nil
	}

	path := ClipPath(clipsDir, index, line.Speaker)
	if err := audio.WriteWAVFile(path, buf); err != nil {
		return s.fail(clip, &model.IOError{Path: path, Err: err}), nil
	}

	clip.OK = true
	clip.Path = path
	clip.Audio = buf
	clip.Duration = buf.Duration()
	return clip, nil
}

func (s *ClipSynthesizer) fail(clip model.Clip, err error) model.Clip {
	log.Printf("[Clips] line %d (%s) failed: %v", clip.Index, clip.Line.Speaker, err)
	clip.OK = false
	clip.Reason = err.Error()
	return clip
}

// SynthesizeAll renders every line concurrently and returns clips in script
// order. Voice mappings are checked for all speakers before any call is made.
func (s *ClipSynthesizer) SynthesizeAll(ctx context.Context, lines []model.ScriptLine, clipsDir string) ([]model.Clip, error) {
	for _, line := range lines {
		if _, err := s.VoiceFor(line.Speaker); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(clipsDir, 0o755); err != nil {
		return nil, &model.IOError{Path: clipsDir, Err: err}
	}

	clips := make([]model.Clip, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, line := range lines {
		g.Go(func() error {
			clip, err := s.Synthesize(gctx, i, line, clipsDir)
			clips[i] = clip
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ok := 0
	for _, c := range clips {
		if c.OK {
			ok++
		}
	}
	log.Printf("[Clips] rendered %d/%d clips (%d skipped)", ok, len(clips), len(clips)-ok)
	return clips, nil
}
