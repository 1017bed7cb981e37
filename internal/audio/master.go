package audio

import (
	"errors"
	"time"
)

// ErrEmptyContent is returned when no voice clip survived synthesis
var ErrEmptyContent = errors.New("no usable voice clips")

// SegmentKind identifies what a span of the master track holds
type SegmentKind string

const (
	SegmentJingle      SegmentKind = "jingle"
	SegmentChime       SegmentKind = "chime"
	SegmentVoice       SegmentKind = "voice"
	SegmentGap         SegmentKind = "gap"
	SegmentPlaceholder SegmentKind = "placeholder"
)

// Segment is one span of the assembled track
type Segment struct {
	Kind     SegmentKind   `json:"kind"`
	Index    int           `json:"index"` // script index for voice and placeholder segments, -1 otherwise
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
	Frames   int           `json:"frames"`
}

// Layout describes the structure of an assembled track
type Layout struct {
	Segments      []Segment `json:"segments"`
	VoiceSegments int       `json:"voiceSegments"`
	Gaps          int       `json:"gaps"`
	Skipped       int       `json:"skipped"`
	GainDB        float64   `json:"gainDb"`
}

// Count returns the number of segments of the given kind
func (l *Layout) Count(kind SegmentKind) int {
	n := 0
	for _, s := range l.Segments {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// Engine assembles voice clips, jingle and chime into one mastered track
type Engine struct {
	SampleRate int
	Gap        time.Duration
	// Placeholder replaces each failed clip with silence of this length. Zero drops failed clips.
	Placeholder time.Duration

	TrackFadeIn  time.Duration
	TrackFadeOut time.Duration
	TargetRMS    float64 // dBFS
	Ceiling      float64 // dBFS

	IntroJingleMax     time.Duration
	IntroJingleFadeIn  time.Duration
	IntroJingleFadeOut time.Duration
	OutroJingleMax     time.Duration
	OutroJingleFadeIn  time.Duration
	OutroJingleFadeOut time.Duration
}

// NewEngine returns an engine with the default podcast template
func NewEngine() *Engine {
	return &Engine{
		SampleRate:         DefaultSampleRate,
		Gap:                400 * time.Millisecond,
		TrackFadeIn:        500 * time.Millisecond,
		TrackFadeOut:       500 * time.Millisecond,
		TargetRMS:          -18,
		Ceiling:            -1,
		IntroJingleMax:     12 * time.Second,
		IntroJingleFadeIn:  2 * time.Second,
		IntroJingleFadeOut: 2 * time.Second,
		OutroJingleMax:     8 * time.Second,
		OutroJingleFadeIn:  1 * time.Second,
		OutroJingleFadeOut: 3 * time.Second,
	}
}

type builder struct {
	sampleRate int
	parts      []*Buffer
	layout     Layout
	frames     int
}

func (b *builder) add(kind SegmentKind, index int, buf *Buffer) {
	if buf.Len() == 0 {
		return
	}
	b.parts = append(b.parts, buf)
	b.layout.Segments = append(b.layout.Segments, Segment{
		Kind:     kind,
		Index:    index,
		Start:    framesToDuration(b.frames, b.sampleRate),
		Duration: buf.Duration(),
		Frames:   buf.Len(),
	})
	b.frames += buf.Len()
}

// Assemble builds the master track. voices is ordered by script index and a
// nil entry marks a failed clip. jingle may be nil. The track is laid out as
// jingle, chime, body, chime, jingle, then normalized and faded as a whole.
func (e *Engine) Assemble(voices []*Buffer, jingle, chime *Buffer) (*Buffer, *Layout, error) {
	usable := 0
	for _, v := range voices {
		if v.Len() > 0 {
			usable++
		}
	}
	if usable == 0 {
		return nil, nil, ErrEmptyContent
	}

	b := &builder{sampleRate: e.SampleRate}

	if jingle.Len() > 0 {
		intro := e.conform(jingle).Trim(e.IntroJingleMax)
		intro.FadeIn(e.IntroJingleFadeIn)
		intro.FadeOut(e.IntroJingleFadeOut)
		b.add(SegmentJingle, -1, intro)
	}
	if chime.Len() > 0 {
		b.add(SegmentChime, -1, e.conform(chime))
	}

	first := true
	for i, v := range voices {
		var kind SegmentKind
		var seg *Buffer
		switch {
		case v.Len() > 0:
			kind, seg = SegmentVoice, e.conform(v)
			b.layout.VoiceSegments++
		case e.Placeholder > 0:
			kind, seg = SegmentPlaceholder, Silence(e.Placeholder, e.SampleRate)
			b.layout.Skipped++
		default:
			b.layout.Skipped++
			continue
		}
		if !first && e.Gap > 0 {
			b.add(SegmentGap, -1, Silence(e.Gap, e.SampleRate))
			b.layout.Gaps++
		}
		b.add(kind, i, seg)
		first = false
	}

	if chime.Len() > 0 {
		b.add(SegmentChime, -1, e.conform(chime))
	}
	if jingle.Len() > 0 {
		outro := e.conform(jingle).Trim(e.OutroJingleMax)
		outro.FadeIn(e.OutroJingleFadeIn)
		outro.FadeOut(e.OutroJingleFadeOut)
		b.add(SegmentJingle, -1, outro)
	}

	track, err := Concat(e.SampleRate, b.parts...)
	if err != nil {
		return nil, nil, err
	}

	b.layout.GainDB = track.Normalize(e.TargetRMS, e.Ceiling)
	track.FadeIn(e.TrackFadeIn)
	track.FadeOut(e.TrackFadeOut)

	return track, &b.layout, nil
}

// conform returns a copy of buf at the engine sample rate
func (e *Engine) conform(buf *Buffer) *Buffer {
	if buf.SampleRate == e.SampleRate {
		return buf.Clone()
	}
	return buf.Resample(e.SampleRate)
}

func framesToDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
