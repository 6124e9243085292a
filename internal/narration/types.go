package narration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loqalabs/loqa-books/internal/audio"
)

// Language is the display name used both in prompts and in the UI.
type Language string

const (
	French  Language = "Français"
	English Language = "English"
	Arabic  Language = "العربية"
	Spanish Language = "Español"
)

var languageCodes = map[string]Language{
	"fr": French,
	"en": English,
	"ar": Arabic,
	"es": Spanish,
}

// Languages lists the supported languages in menu order.
func Languages() []Language { return []Language{French, English, Arabic, Spanish} }

// ParseLanguage accepts a display name or a two-letter code.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if l, ok := languageCodes[strings.ToLower(s)]; ok {
		return l, nil
	}
	for _, l := range Languages() {
		if strings.EqualFold(string(l), s) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported language %q", ErrInvalidInput, s)
}

type VoiceGender string

const (
	Female VoiceGender = "female"
	Male   VoiceGender = "male"
)

func ParseVoiceGender(s string) (VoiceGender, error) {
	switch VoiceGender(strings.ToLower(strings.TrimSpace(s))) {
	case Female, "":
		return Female, nil
	case Male:
		return Male, nil
	}
	return "", fmt.Errorf("%w: unsupported voice %q", ErrInvalidInput, s)
}

// Summary is the structured book summary returned by the generation service.
type Summary struct {
	MainIdea  string   `json:"mainIdea"`
	KeyPoints []string `json:"keyPoints"`
	Lessons   []string `json:"lessons"`
	Quote     string   `json:"quote"`
}

// Document is an uploaded file to summarize.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Request is one narration job.
type Request struct {
	Text string
	// SourceLanguage is what the caller declares Text to be written in.
	// Empty means unknown.
	SourceLanguage Language
	Language       Language
	Gender         VoiceGender
}

// Narration is the result of a successful job.
type Narration struct {
	Text      string
	Asset     audio.Asset
	Container []byte
}

type Stage string

const (
	StageSummarize         Stage = "summarize"
	StageSummarizeDocument Stage = "summarize_document"
	StageTranslate         Stage = "translate"
	StageSynthesize        Stage = "synthesize"
	StagePackage           Stage = "package"
)

var (
	// ErrExternalService wraps every failure of the remote generation service.
	ErrExternalService = errors.New("external service error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrAudioTooLarge   = errors.New("synthesized audio exceeds container limit")
)

// StageError attributes a failure to the pipeline stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func external(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExternalService, fmt.Sprintf(format, args...))
}

func externalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternalService, op, err)
}
