package playback

import (
	"fmt"
	"math"
)

// Status is the coarse transport state shown to the user.
type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusPaused
	StatusPlaying
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusLoading:
		return "loading"
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrorKind is the user-facing reason for the Error state.
type ErrorKind string

const (
	ErrorNone ErrorKind = ""
	// ErrorPlaybackFailed: the device rejected a play request.
	ErrorPlaybackFailed ErrorKind = "Playback failed"
	// ErrorAudioUnavailable: the bound source could not be loaded or decoded.
	ErrorAudioUnavailable ErrorKind = "Audio unavailable"
)

// State is a snapshot of the controller. Duration is NaN until metadata
// has been reported.
type State struct {
	SourceID    string
	Status      Status
	Playing     bool
	Buffering   bool
	CurrentTime float64
	Duration    float64
	Progress    float64
	LastError   ErrorKind
}

// DurationKnown reports whether metadata has arrived.
func (s State) DurationKnown() bool {
	return !math.IsNaN(s.Duration)
}

// Elapsed and Total are the display strings for the transport bar.
func (s State) Elapsed() string { return FormatTime(s.CurrentTime) }

func (s State) Total() string {
	if !s.DurationKnown() || s.Duration <= 0 {
		return "--:--"
	}
	return FormatTime(s.Duration)
}

// FormatTime renders seconds as m:ss. Non-finite input renders as 00:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "00:00"
	}
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(math.Floor(seconds / 60))
	secs := int(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
