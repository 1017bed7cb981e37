package model

import "strings"

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// IsTerminal reports whether the status can no longer change
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCanceled
}

// Pipeline phases
type Phase string

const (
	PhaseCreated           Phase = "created"
	PhaseResearching       Phase = "researching"
	PhaseScripting         Phase = "scripting"
	PhaseSynthesizingVoice Phase = "synthesizing_voice"
	PhaseGeneratingMusic   Phase = "generating_music"
	PhaseMastering         Phase = "mastering"
	PhaseComplete          Phase = "complete"
	PhaseFailed            Phase = "failed"
)

// phaseProgress maps each phase to the progress reported when it starts
var phaseProgress = map[Phase]int{
	PhaseCreated:           0,
	PhaseResearching:       5,
	PhaseScripting:         15,
	PhaseSynthesizingVoice: 30,
	PhaseGeneratingMusic:   60,
	PhaseMastering:         80,
	PhaseComplete:          100,
}

// Progress returns the nominal progress percentage for the phase
func (p Phase) Progress() int {
	return phaseProgress[p]
}

// Speaker personas
type Speaker string

const (
	SpeakerAlex Speaker = "Alex"
	SpeakerSam  Speaker = "Sam"
)

var ValidSpeakers = []Speaker{SpeakerAlex, SpeakerSam}

// ParseSpeaker canonicalizes a persona name, ignoring case and surrounding space
func ParseSpeaker(s string) (Speaker, bool) {
	s = strings.TrimSpace(s)
	for _, sp := range ValidSpeakers {
		if strings.EqualFold(s, string(sp)) {
			return sp, true
		}
	}
	return "", false
}

// Tones
type Tone string

const (
	ToneCasual   Tone = "casual"
	ToneAcademic Tone = "academic"
	ToneComedic  Tone = "comedic"
)

var ValidTones = []Tone{ToneCasual, ToneAcademic, ToneComedic}

// Jingle states
type JingleState string

const (
	JingleRequested   JingleState = "requested"
	JinglePending     JingleState = "pending"
	JingleReady       JingleState = "ready"
	JingleUnavailable JingleState = "unavailable"
)
