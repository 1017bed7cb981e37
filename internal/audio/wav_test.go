package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestWAVFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	in := NewBuffer(24000, 2400)
	for i := range in.Samples {
		in.Samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/24000)
	}

	if err := WriteWAVFile(path, in); err != nil {
		t.Fatalf("WriteWAVFile failed: %v", err)
	}
	out, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile failed: %v", err)
	}

	if out.SampleRate != 24000 || out.Len() != in.Len() {
		t.Fatalf("expected 24000 Hz / %d frames, got %d Hz / %d frames", in.Len(), out.SampleRate, out.Len())
	}
	for i := range in.Samples {
		if math.Abs(in.Samples[i]-out.Samples[i]) > 1.0/16384 {
			t.Fatalf("sample %d drifted: %f vs %f", i, in.Samples[i], out.Samples[i])
		}
	}
}

func TestDecodeWAV_StereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           []int{16384, 0, -16384, -16384},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("expected 2 frames, got %d", out.Len())
	}
	if out.Samples[0] != 0.25 || out.Samples[1] != -0.5 {
		t.Errorf("unexpected downmix %v", out.Samples)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a wav file")); err == nil {
		t.Error("expected error for invalid payload")
	}
}
