package model

import (
	"time"

	"github.com/podcastgen/api/internal/audio"
)

// Clip is the rendered audio for one ScriptLine, tied to it by Index
type Clip struct {
	Index    int           `json:"index"`
	Line     ScriptLine    `json:"line"`
	VoiceID  string        `json:"voiceId"`
	OK       bool          `json:"ok"`
	Reason   string        `json:"reason,omitempty"`
	Path     string        `json:"path,omitempty"`
	Duration time.Duration `json:"duration"`
	Audio    *audio.Buffer `json:"-"`
}

// Jingle is the optional intro/outro music bed
type Jingle struct {
	State    JingleState   `json:"state"`
	TaskID   string        `json:"taskId,omitempty"`
	Path     string        `json:"path,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
	Audio    *audio.Buffer `json:"-"`
}

// Ready reports whether the jingle has usable audio
func (j *Jingle) Ready() bool {
	return j != nil && j.State == JingleReady && j.Audio.Len() > 0
}

// MasterTrack is the final assembled episode
type MasterTrack struct {
	Path          string        `json:"path"`
	Duration      time.Duration `json:"duration"`
	VoiceSegments int           `json:"voiceSegments"`
	SkippedClips  int           `json:"skippedClips"`
	PeakDBFS      float64       `json:"peakDbfs"`
	GainDB        float64       `json:"gainDb"`
	Layout        *audio.Layout `json:"layout,omitempty"`
}
