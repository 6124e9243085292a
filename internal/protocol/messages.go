package protocol

import "time"

const (
	SubjectNarrationRequest = "books.narration.request"
	SubjectNarrationStatus  = "books.narration.status"
	SubjectPlayerState      = "books.player.state"
)

// NarrationRequest asks the runtime to speak Text in Language.
type NarrationRequest struct {
	JobID          string    `json:"job_id"`
	BookID         string    `json:"book_id,omitempty"`
	Text           string    `json:"text"`
	Language       string    `json:"language"`
	SourceLanguage string    `json:"source_language,omitempty"`
	Gender         string    `json:"gender"`
	Timestamp      time.Time `json:"timestamp"`
}

const (
	NarrationQueued  = "queued"
	NarrationRunning = "running"
	NarrationDone    = "done"
	NarrationFailed  = "failed"
)

// NarrationStatus is published on every job transition.
type NarrationStatus struct {
	JobID           string    `json:"job_id"`
	BookID          string    `json:"book_id,omitempty"`
	State           string    `json:"state"`
	Stage           string    `json:"stage,omitempty"`
	Message         string    `json:"message,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// PlayerState mirrors the playback controller. Duration is null until known.
type PlayerState struct {
	SourceID    string    `json:"source_id,omitempty"`
	Status      string    `json:"status"`
	Playing     bool      `json:"playing"`
	Buffering   bool      `json:"buffering"`
	CurrentTime float64   `json:"current_time"`
	Duration    *float64  `json:"duration"`
	Progress    float64   `json:"progress"`
	Elapsed     string    `json:"elapsed"`
	Total       string    `json:"total"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
