// Package api serves the local HTTP surface used by the display client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/loqalabs/loqa-books/internal/billing"
	"github.com/loqalabs/loqa-books/internal/catalog"
	"github.com/loqalabs/loqa-books/internal/narration"
	"github.com/loqalabs/loqa-books/internal/playback"
	"github.com/loqalabs/loqa-books/internal/protocol"
	"github.com/loqalabs/loqa-books/internal/session"
)

const maxUploadBytes = 20 << 20

// Summarizer produces summaries through the generation service.
type Summarizer interface {
	Summarize(ctx context.Context, title, author string, lang narration.Language) (narration.Summary, error)
	SummarizeDocument(ctx context.Context, doc narration.Document, lang narration.Language) (string, error)
}

// Narrator queues narration jobs and reports on them.
type Narrator interface {
	Submit(req protocol.NarrationRequest) (narration.Job, error)
	Job(id string) (narration.Job, bool)
}

type Deps struct {
	Catalog    *catalog.Catalog
	Session    *session.Session
	Checkout   *billing.Checkout
	Summarizer Summarizer
	Narrator   Narrator
	Player     *playback.Player
	// CatalogLanguage is the language catalog summaries are written in.
	CatalogLanguage narration.Language
	// DefaultLanguage is used when a request names none.
	DefaultLanguage narration.Language
}

type Server struct {
	deps Deps
	log  *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Server {
	return &Server{deps: deps, log: logger.With(slog.String("component", "api"))}
}

// Register mounts every route on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/books", s.handleBooks)
	mux.HandleFunc("GET /api/books/{id}", s.handleBook)
	mux.HandleFunc("GET /api/books/{id}/similar", s.handleSimilar)
	mux.HandleFunc("GET /api/home", s.handleHome)
	mux.HandleFunc("GET /api/plans", s.handlePlans)

	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("POST /api/session/login", s.handleLogin)
	mux.HandleFunc("POST /api/session/logout", s.handleLogout)
	mux.HandleFunc("POST /api/checkout", s.handleCheckout)

	mux.HandleFunc("POST /api/summaries", s.requireUser(s.handleSummary))
	mux.HandleFunc("POST /api/documents/summary", s.requireUser(s.handleDocumentSummary))
	mux.HandleFunc("POST /api/narrations", s.requireUser(s.handleNarrate))
	mux.HandleFunc("GET /api/narrations/{id}", s.handleNarration)

	mux.HandleFunc("GET /api/player", s.handlePlayer)
	mux.HandleFunc("GET /api/player/audio.wav", s.handleAudio)
	mux.HandleFunc("POST /api/player/play", s.playerCommand(func(p *playback.Player) { p.Play() }))
	mux.HandleFunc("POST /api/player/pause", s.playerCommand(func(p *playback.Player) { p.Pause() }))
	mux.HandleFunc("POST /api/player/toggle", s.playerCommand(func(p *playback.Player) { p.Toggle() }))
	mux.HandleFunc("POST /api/player/retry", s.playerCommand(func(p *playback.Player) { p.Retry() }))
	mux.HandleFunc("POST /api/player/seek", s.handleSeek)
	mux.HandleFunc("POST /api/player/skip", s.handleSkip)
}

// PlayerState converts a controller snapshot to its wire form.
func PlayerState(st playback.State) protocol.PlayerState {
	msg := protocol.PlayerState{
		SourceID:    st.SourceID,
		Status:      st.Status.String(),
		Playing:     st.Playing,
		Buffering:   st.Buffering,
		CurrentTime: st.CurrentTime,
		Progress:    st.Progress,
		Elapsed:     st.Elapsed(),
		Total:       st.Total(),
		Error:       string(st.LastError),
		Timestamp:   time.Now().UTC(),
	}
	if st.DurationKnown() && !math.IsInf(st.Duration, 0) {
		d := st.Duration
		msg.Duration = &d
	}
	return msg
}

func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.deps.Session.Current(); !ok {
			writeError(w, http.StatusUnauthorized, "sign in to use AI features")
			return
		}
		next(w, r)
	}
}

func (s *Server) language(name string) (narration.Language, error) {
	if name == "" {
		return s.deps.DefaultLanguage, nil
	}
	return narration.ParseLanguage(name)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// fail maps a domain error onto an HTTP status.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, narration.ErrExternalService):
		s.log.Warn(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "the generation service did not respond, please try again", Retryable: true})
	case errors.Is(err, narration.ErrInvalidInput),
		errors.Is(err, session.ErrInvalidEmail),
		errors.Is(err, billing.ErrUnknownPlan),
		errors.Is(err, billing.ErrFreePlan),
		errors.Is(err, billing.ErrUnknownMethod),
		errors.Is(err, billing.ErrMissingDetails):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, narration.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.log.Error(op+" failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
