package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/podcastgen/api/internal/audio"
	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/model"
)

func voiceClip(t *testing.T, index int, d time.Duration) model.Clip {
	t.Helper()
	buf, err := audio.Tone(audio.ToneParams{Frequency: 220, Duration: d, SampleRate: 24000, LevelDB: -20})
	if err != nil {
		t.Fatal(err)
	}
	return model.Clip{Index: index, OK: true, Audio: buf, Duration: buf.Duration()}
}

func TestMaster_WritesTrack(t *testing.T) {
	svc, err := NewMasteringService(audio.NewEngine(), 1)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	clips := []model.Clip{
		voiceClip(t, 0, time.Second),
		{Index: 1, Reason: "provider error"},
		voiceClip(t, 2, time.Second),
	}

	master, err := svc.Master(context.Background(), clips, &model.Jingle{State: model.JingleUnavailable}, dir)
	if err != nil {
		t.Fatalf("Master failed: %v", err)
	}
	if master.VoiceSegments != 2 || master.SkippedClips != 1 {
		t.Errorf("expected 2 voice segments and 1 skipped, got %d/%d", master.VoiceSegments, master.SkippedClips)
	}
	if master.Layout.Count(audio.SegmentJingle) != 0 || master.Layout.Count(audio.SegmentChime) != 2 {
		t.Error("expected chime-only intro and outro")
	}
	if master.PeakDBFS > -0.99 {
		t.Errorf("peak %.2f dBFS above ceiling", master.PeakDBFS)
	}

	decoded, err := audio.ReadWAVFile(master.Path)
	if err != nil {
		t.Fatalf("read master: %v", err)
	}
	if decoded.SampleRate != audio.DefaultSampleRate {
		t.Errorf("unexpected sample rate %d", decoded.SampleRate)
	}
	if _, err := os.Stat(master.Path); err != nil {
		t.Error(err)
	}
}

func TestMaster_WithJingle(t *testing.T) {
	svc, err := NewMasteringService(audio.NewEngine(), 1)
	if err != nil {
		t.Fatal(err)
	}
	jbuf, _ := audio.Tone(audio.ToneParams{Frequency: 330, Duration: 2 * time.Second, SampleRate: audio.DefaultSampleRate})
	jingle := &model.Jingle{State: model.JingleReady, Audio: jbuf}

	master, err := svc.Master(context.Background(), []model.Clip{voiceClip(t, 0, time.Second)}, jingle, t.TempDir())
	if err != nil {
		t.Fatalf("Master failed: %v", err)
	}
	segs := master.Layout.Segments
	if segs[0].Kind != audio.SegmentJingle || segs[1].Kind != audio.SegmentChime {
		t.Error("intro should be jingle then chime")
	}
	last := len(segs) - 1
	if segs[last].Kind != audio.SegmentJingle || segs[last-1].Kind != audio.SegmentChime {
		t.Error("outro should be chime then jingle")
	}
}

func TestMaster_AllClipsFailed(t *testing.T) {
	svc, err := NewMasteringService(audio.NewEngine(), 1)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	clips := []model.Clip{{Index: 0}, {Index: 1}}

	_, err = svc.Master(context.Background(), clips, nil, dir)
	var merr *model.MasteringError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MasteringError, got %v", err)
	}
	if merr.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", merr.Skipped)
	}
	if _, err := os.Stat(dir + "/" + MasterFile); !os.IsNotExist(err) {
		t.Error("no master file should be written")
	}
}

func TestMaster_WaitsForSlot(t *testing.T) {
	svc, err := NewMasteringService(audio.NewEngine(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer svc.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.Master(ctx, []model.Clip{voiceClip(t, 0, time.Second)}, nil, t.TempDir()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded while slots are busy, got %v", err)
	}
}

// staggeredTTS answers later lines first and gives each line its own level
type staggeredTTS struct {
	mu       sync.Mutex
	lines    int
	finished []int
}

func (s *staggeredTTS) Speak(ctx context.Context, text, voiceID string, settings client.VoiceSettings) ([]byte, error) {
	index := int(text[len(text)-1] - 'a')
	select {
	case <-time.After(time.Duration(s.lines-index) * 15 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	frames := 4800
	level := int16(1000 * (index + 1))
	pcm := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		v := level
		if i%2 == 1 {
			v = -level
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}

	s.mu.Lock()
	s.finished = append(s.finished, index)
	s.mu.Unlock()
	return pcm, nil
}

func (s *staggeredTTS) SampleRate() int    { return 24000 }
func (s *staggeredTTS) IsConfigured() bool { return true }

func masterWith(t *testing.T, concurrency int) ([]byte, []int) {
	t.Helper()
	lines := testLines(6)
	tts := &staggeredTTS{lines: len(lines)}
	dir := t.TempDir()

	clips, err := NewClipSynthesizer(tts, testVoices, client.VoiceSettings{}, concurrency).
		SynthesizeAll(context.Background(), lines, dir)
	if err != nil {
		t.Fatalf("SynthesizeAll failed: %v", err)
	}
	svc, err := NewMasteringService(audio.NewEngine(), 1)
	if err != nil {
		t.Fatal(err)
	}
	master, err := svc.Master(context.Background(), clips, &model.Jingle{State: model.JingleUnavailable}, dir)
	if err != nil {
		t.Fatalf("Master failed: %v", err)
	}
	data, err := os.ReadFile(master.Path)
	if err != nil {
		t.Fatal(err)
	}
	return data, tts.finished
}

func TestMaster_ConcurrentSynthesisMatchesSequential(t *testing.T) {
	sequential, seqOrder := masterWith(t, 1)
	concurrent, concOrder := masterWith(t, 6)

	if seqOrder[0] != 0 {
		t.Fatalf("expected sequential synthesis to finish line 0 first, got %v", seqOrder)
	}
	if concOrder[0] == 0 {
		t.Fatalf("expected concurrent synthesis to finish out of order, got %v", concOrder)
	}
	if !bytes.Equal(sequential, concurrent) {
		t.Errorf("mastered output differs: sequential %d bytes, concurrent %d bytes", len(sequential), len(concurrent))
	}
}
