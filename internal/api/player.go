package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/loqalabs/loqa-books/internal/playback"
)

func (s *Server) handlePlayer(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PlayerState(s.deps.Player.State()))
}

func (s *Server) playerCommand(fn func(*playback.Player)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fn(s.deps.Player)
		writeJSON(w, http.StatusOK, PlayerState(s.deps.Player.State()))
	}
}

type seekRequest struct {
	Percent float64 `json:"percent"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.deps.Player.Seek(req.Percent)
	writeJSON(w, http.StatusOK, PlayerState(s.deps.Player.State()))
}

type skipRequest struct {
	Seconds float64 `json:"seconds"`
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.deps.Player.Skip(req.Seconds)
	writeJSON(w, http.StatusOK, PlayerState(s.deps.Player.State()))
}

// handleAudio serves the current narration so any WAV-capable client can
// play it directly.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id, data, ok := s.deps.Player.Audio()
	if !ok {
		writeError(w, http.StatusNotFound, "no narration loaded")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `inline; filename="`+id+`.wav"`)
	http.ServeContent(w, r, id+".wav", time.Time{}, bytes.NewReader(data))
}
