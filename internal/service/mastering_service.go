package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"github.com/podcastgen/api/internal/audio"
	"github.com/podcastgen/api/internal/model"
)

// MasterFile is the name of the mastered track inside a job directory
const MasterFile = "podcast.wav"

// MasteringService assembles clips and the jingle into the final track. The
// DSP work is CPU bound, so concurrent jobs share a bounded number of slots.
type MasteringService struct {
	engine *audio.Engine
	chime  *audio.Buffer
	slots  *semaphore.Weighted
}

// NewMasteringService creates a new mastering service with the given number of concurrent slots
func NewMasteringService(engine *audio.Engine, workers int) (*MasteringService, error) {
	if workers < 1 {
		workers = 1
	}
	chime, err := audio.Tone(audio.DefaultChime(engine.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("render chime: %w", err)
	}
	return &MasteringService{
		engine: engine,
		chime:  chime,
		slots:  semaphore.NewWeighted(int64(workers)),
	}, nil
}

// Master builds, normalizes and writes the track for one job
func (s *MasteringService) Master(ctx context.Context, clips []model.Clip, jingle *model.Jingle, jobDir string) (*model.MasterTrack, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.slots.Release(1)

	voices := make([]*audio.Buffer, len(clips))
	for i, c := range clips {
		if c.OK {
			voices[i] = c.Audio
		}
	}

	var jingleAudio *audio.Buffer
	if jingle.Ready() {
		jingleAudio = jingle.Audio
	}

	track, layout, err := s.engine.Assemble(voices, jingleAudio, s.chime)
	if err != nil {
		if errors.Is(err, audio.ErrEmptyContent) {
			return nil, &model.MasteringError{Skipped: len(clips), Err: err}
		}
		return nil, &model.MasteringError{Err: err}
	}
	if layout.Skipped > 0 {
		log.Printf("[Mastering] skipped %d of %d lines", layout.Skipped, len(clips))
	}

	path := filepath.Join(jobDir, MasterFile)
	if err := audio.WriteWAVFile(path, track); err != nil {
		return nil, &model.IOError{Path: path, Err: err}
	}

	master := &model.MasterTrack{
		Path:          path,
		Duration:      track.Duration(),
		VoiceSegments: layout.VoiceSegments,
		SkippedClips:  layout.Skipped,
		PeakDBFS:      audio.LinearToDB(track.Peak()),
		GainDB:        layout.GainDB,
		Layout:        layout,
	}
	log.Printf("[Mastering] wrote %s (%v, %d voice segments, gain %.1f dB)", path, master.Duration, master.VoiceSegments, master.GainDB)
	return master, nil
}
