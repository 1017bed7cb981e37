package audio

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDuration is returned when a tone is requested with a non-positive duration
var ErrInvalidDuration = errors.New("tone duration must be positive")

// Overtone is a harmonic partial layered on top of the fundamental
type Overtone struct {
	Multiple float64 // frequency multiple of the fundamental
	GainDB   float64 // level relative to the fundamental
}

// ToneParams describes a synthesized chime
type ToneParams struct {
	Frequency  float64
	Duration   time.Duration
	SampleRate int
	LevelDB    float64 // level of the fundamental in dBFS
	Overtones  []Overtone
	Decay      float64 // exponential decay rate per second, 0 keeps a flat envelope
	FadeIn     time.Duration
	FadeOut    time.Duration
}

// DefaultChime returns the E5 bell used to mark section transitions
func DefaultChime(sampleRate int) ToneParams {
	return ToneParams{
		Frequency:  659.25,
		Duration:   800 * time.Millisecond,
		SampleRate: sampleRate,
		LevelDB:    -6,
		Overtones: []Overtone{
			{Multiple: 2, GainDB: -6},
			{Multiple: 3, GainDB: -9},
		},
		Decay:   3,
		FadeIn:  10 * time.Millisecond,
		FadeOut: 50 * time.Millisecond,
	}
}

// Tone renders the described chime. The result always holds at least one
// frame and matches the requested duration to the nearest frame.
func Tone(p ToneParams) (*Buffer, error) {
	if p.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if p.SampleRate <= 0 {
		p.SampleRate = DefaultSampleRate
	}

	frames := FramesFor(p.Duration, p.SampleRate)
	if frames < 1 {
		frames = 1
	}

	base := DBToLinear(p.LevelDB)
	partials := make([]Overtone, 0, len(p.Overtones)+1)
	partials = append(partials, Overtone{Multiple: 1})
	partials = append(partials, p.Overtones...)

	out := NewBuffer(p.SampleRate, frames)
	rate := float64(p.SampleRate)
	for i := range out.Samples {
		t := float64(i) / rate
		v := 0.0
		for _, o := range partials {
			v += DBToLinear(o.GainDB) * math.Sin(2*math.Pi*p.Frequency*o.Multiple*t)
		}
		env := base
		if p.Decay > 0 {
			env *= math.Exp(-p.Decay * t)
		}
		out.Samples[i] = v * env
	}

	// Overtones can sum above full scale before the envelope drops.
	if peak := out.Peak(); peak > 1 {
		for i := range out.Samples {
			out.Samples[i] /= peak
		}
	}

	out.FadeIn(p.FadeIn)
	out.FadeOut(p.FadeOut)
	return out, nil
}
