package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func constant(rate, frames int, v float64) *Buffer {
	b := NewBuffer(rate, frames)
	for i := range b.Samples {
		b.Samples[i] = v
	}
	return b
}

func TestFramesFor(t *testing.T) {
	tests := []struct {
		d    time.Duration
		rate int
		want int
	}{
		{400 * time.Millisecond, 44100, 17640},
		{time.Second, 24000, 24000},
		{0, 44100, 0},
		{-time.Second, 44100, 0},
		{10 * time.Microsecond, 44100, 0},
	}
	for _, tt := range tests {
		if got := FramesFor(tt.d, tt.rate); got != tt.want {
			t.Errorf("FramesFor(%v, %d) = %d, want %d", tt.d, tt.rate, got, tt.want)
		}
	}
}

func TestConcat_PreservesOrder(t *testing.T) {
	a := constant(100, 2, 0.1)
	b := constant(100, 3, 0.2)

	out, err := Concat(100, a, nil, b)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if out.Len() != 5 {
		t.Fatalf("expected 5 frames, got %d", out.Len())
	}
	if out.Samples[1] != 0.1 || out.Samples[2] != 0.2 {
		t.Errorf("unexpected samples %v", out.Samples)
	}
}

func TestConcat_RateMismatch(t *testing.T) {
	if _, err := Concat(100, constant(100, 1, 0), constant(200, 1, 0)); err == nil {
		t.Error("expected error for mismatched sample rates")
	}
}

func TestFades(t *testing.T) {
	b := constant(1000, 1000, 1)
	b.FadeIn(100 * time.Millisecond)
	b.FadeOut(100 * time.Millisecond)

	if b.Samples[0] != 0 {
		t.Errorf("expected silent first frame, got %f", b.Samples[0])
	}
	if b.Samples[len(b.Samples)-1] != 0 {
		t.Errorf("expected silent last frame, got %f", b.Samples[len(b.Samples)-1])
	}
	if b.Samples[500] != 1 {
		t.Errorf("expected untouched middle, got %f", b.Samples[500])
	}
	if !(b.Samples[10] < b.Samples[50]) {
		t.Error("expected fade-in to rise")
	}
}

func TestFade_LongerThanBuffer(t *testing.T) {
	b := constant(1000, 10, 1)
	b.FadeOut(time.Second)
	if b.Samples[len(b.Samples)-1] != 0 {
		t.Error("expected fade to clamp to buffer length")
	}
}

func TestTrim(t *testing.T) {
	b := constant(1000, 2000, 0.5)
	if got := b.Trim(time.Second).Len(); got != 1000 {
		t.Errorf("expected 1000 frames, got %d", got)
	}
	if got := b.Trim(5 * time.Second).Len(); got != 2000 {
		t.Errorf("expected trim beyond length to keep 2000 frames, got %d", got)
	}
}

func TestNormalize_RMSTarget(t *testing.T) {
	b := NewBuffer(1000, 1000)
	for i := range b.Samples {
		b.Samples[i] = 0.01 * math.Sin(2*math.Pi*float64(i)/50)
	}

	b.Normalize(-18, -1)

	gotDB := LinearToDB(b.RMS())
	if math.Abs(gotDB-(-18)) > 0.01 {
		t.Errorf("expected RMS -18 dBFS, got %.2f", gotDB)
	}
}

func TestNormalize_CeilingCapsGain(t *testing.T) {
	b := NewBuffer(1000, 1000)
	b.Samples[0] = 0.5 // one loud spike over near silence
	b.Samples[1] = 0.001

	b.Normalize(-3, -1)

	if peak := LinearToDB(b.Peak()); peak > -1+1e-9 {
		t.Errorf("expected peak at or below -1 dBFS, got %.3f", peak)
	}
}

func TestNormalize_Silence(t *testing.T) {
	b := NewBuffer(1000, 100)
	if gain := b.Normalize(-18, -1); gain != 0 {
		t.Errorf("expected zero gain on silence, got %f", gain)
	}
}

func TestResample(t *testing.T) {
	b := constant(24000, 24000, 0.25)
	out := b.Resample(44100)
	if out.SampleRate != 44100 {
		t.Errorf("expected rate 44100, got %d", out.SampleRate)
	}
	if out.Len() != 44100 {
		t.Errorf("expected 44100 frames, got %d", out.Len())
	}
	if math.Abs(out.Samples[1000]-0.25) > 1e-12 {
		t.Errorf("expected constant signal to survive, got %f", out.Samples[1000])
	}
}

func TestFromPCM16(t *testing.T) {
	half, negHalf := int16(16384), int16(-16384)
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:], uint16(half))
	binary.LittleEndian.PutUint16(data[2:], uint16(negHalf))
	binary.LittleEndian.PutUint16(data[4:], uint16(half))
	binary.LittleEndian.PutUint16(data[6:], uint16(half))

	mono, err := FromPCM16(data, 24000, 1)
	if err != nil {
		t.Fatalf("FromPCM16 failed: %v", err)
	}
	if mono.Len() != 4 || mono.Samples[0] != 0.5 || mono.Samples[1] != -0.5 {
		t.Errorf("unexpected mono decode %v", mono.Samples)
	}

	stereo, err := FromPCM16(data, 24000, 2)
	if err != nil {
		t.Fatalf("FromPCM16 stereo failed: %v", err)
	}
	if stereo.Len() != 2 || stereo.Samples[0] != 0 || stereo.Samples[1] != 0.5 {
		t.Errorf("unexpected stereo downmix %v", stereo.Samples)
	}
}

func TestFromPCM16_Malformed(t *testing.T) {
	if _, err := FromPCM16(nil, 24000, 1); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := FromPCM16([]byte{1, 2, 3}, 24000, 1); !errors.Is(err, ErrMisalignedPayload) {
		t.Errorf("expected ErrMisalignedPayload, got %v", err)
	}
}
