package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultSampleRate is the rate every mastered track is rendered at
const DefaultSampleRate = 44100

var (
	// ErrEmptyPayload is returned when decoded audio contains no samples
	ErrEmptyPayload = errors.New("audio payload is empty")

	// ErrMisalignedPayload is returned when a PCM payload is not frame aligned
	ErrMisalignedPayload = errors.New("audio payload is not frame aligned")
)

// Buffer is a mono signal with samples in the range [-1, 1]
type Buffer struct {
	SampleRate int
	Samples    []float64
}

// NewBuffer allocates a silent buffer holding the given number of frames
func NewBuffer(sampleRate, frames int) *Buffer {
	if frames < 0 {
		frames = 0
	}
	return &Buffer{SampleRate: sampleRate, Samples: make([]float64, frames)}
}

// Silence returns a silent buffer of the given duration
func Silence(d time.Duration, sampleRate int) *Buffer {
	return NewBuffer(sampleRate, FramesFor(d, sampleRate))
}

// FramesFor converts a duration into a frame count, rounded to the nearest frame
func FramesFor(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// Len returns the number of frames
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Duration returns the playback length of the buffer
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Clone returns a deep copy
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{SampleRate: b.SampleRate, Samples: make([]float64, len(b.Samples))}
	copy(out.Samples, b.Samples)
	return out
}

// Concat joins buffers end to end. All parts must share the sample rate.
func Concat(sampleRate int, parts ...*Buffer) (*Buffer, error) {
	total := 0
	for _, p := range parts {
		if p == nil {
			continue
		}
		if p.SampleRate != sampleRate {
			return nil, fmt.Errorf("concat: sample rate mismatch (%d != %d)", p.SampleRate, sampleRate)
		}
		total += len(p.Samples)
	}

	out := &Buffer{SampleRate: sampleRate, Samples: make([]float64, 0, total)}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.Samples = append(out.Samples, p.Samples...)
	}
	return out, nil
}

// Trim returns at most the first d of the buffer
func (b *Buffer) Trim(d time.Duration) *Buffer {
	frames := FramesFor(d, b.SampleRate)
	if frames >= len(b.Samples) {
		return b.Clone()
	}
	out := &Buffer{SampleRate: b.SampleRate, Samples: make([]float64, frames)}
	copy(out.Samples, b.Samples[:frames])
	return out
}

// FadeIn applies a linear gain ramp from silence over the first d of the buffer
func (b *Buffer) FadeIn(d time.Duration) {
	n := FramesFor(d, b.SampleRate)
	if n > len(b.Samples) {
		n = len(b.Samples)
	}
	for i := 0; i < n; i++ {
		b.Samples[i] *= float64(i) / float64(n)
	}
}

// FadeOut applies a linear gain ramp to silence over the last d of the buffer
func (b *Buffer) FadeOut(d time.Duration) {
	n := FramesFor(d, b.SampleRate)
	total := len(b.Samples)
	if n > total {
		n = total
	}
	start := total - n
	for i := 0; i < n; i++ {
		b.Samples[start+i] *= float64(n-1-i) / float64(n)
	}
}

// Gain scales the buffer by the given decibel amount
func (b *Buffer) Gain(db float64) {
	g := DBToLinear(db)
	for i := range b.Samples {
		b.Samples[i] *= g
	}
}

// Peak returns the largest absolute sample value
func (b *Buffer) Peak() float64 {
	peak := 0.0
	for _, s := range b.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root mean square level of the buffer
func (b *Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range b.Samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// Normalize scales the buffer so its RMS level reaches targetRMS dBFS without
// letting the peak exceed ceiling dBFS. Silent buffers are left untouched.
// It returns the applied gain in dB.
func (b *Buffer) Normalize(targetRMS, ceiling float64) float64 {
	rms := b.RMS()
	peak := b.Peak()
	if rms == 0 || peak == 0 {
		return 0
	}

	gain := DBToLinear(targetRMS) / rms
	if maxGain := DBToLinear(ceiling) / peak; gain > maxGain {
		gain = maxGain
	}
	for i := range b.Samples {
		b.Samples[i] *= gain
	}
	return LinearToDB(gain)
}

// Resample converts the buffer to another sample rate using linear interpolation
func (b *Buffer) Resample(sampleRate int) *Buffer {
	if b.SampleRate == sampleRate || len(b.Samples) == 0 {
		out := b.Clone()
		out.SampleRate = sampleRate
		return out
	}

	ratio := float64(b.SampleRate) / float64(sampleRate)
	frames := int(math.Round(float64(len(b.Samples)) / ratio))
	out := NewBuffer(sampleRate, frames)
	last := len(b.Samples) - 1
	for i := range out.Samples {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out.Samples[i] = b.Samples[last]
			continue
		}
		frac := pos - float64(idx)
		out.Samples[i] = b.Samples[idx]*(1-frac) + b.Samples[idx+1]*frac
	}
	return out
}

// FromPCM16 decodes interleaved little-endian 16-bit PCM, downmixing to mono
func FromPCM16(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		channels = 1
	}
	frameSize := 2 * channels
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(data)%frameSize != 0 {
		return nil, ErrMisalignedPayload
	}

	frames := len(data) / frameSize
	out := NewBuffer(sampleRate, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			off := i*frameSize + ch*2
			sum += float64(int16(binary.LittleEndian.Uint16(data[off:]))) / 32768.0
		}
		out.Samples[i] = sum / float64(channels)
	}
	return out, nil
}

// DBToLinear converts decibels to a linear gain factor
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear gain factor to decibels
func LinearToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}
