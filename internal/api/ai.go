package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/loqalabs/loqa-books/internal/narration"
	"github.com/loqalabs/loqa-books/internal/protocol"
)

type summaryRequest struct {
	BookID   string `json:"bookId"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Language string `json:"language"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BookID != "" {
		b, ok := s.deps.Catalog.Find(req.BookID)
		if !ok {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		req.Title, req.Author = b.Title, b.Author
	}
	lang, err := s.language(req.Language)
	if err != nil {
		s.fail(w, "summary", err)
		return
	}
	summary, err := s.deps.Summarizer.Summarize(r.Context(), req.Title, req.Author, lang)
	if err != nil {
		s.fail(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type documentSummaryResponse struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Summary  string `json:"summary"`
}

// handleDocumentSummary accepts a multipart upload in field "file".
func (s *Server) handleDocumentSummary(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload: "+err.Error())
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}
	lang, err := s.language(r.FormValue("language"))
	if err != nil {
		s.fail(w, "document summary", err)
		return
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	text, err := s.deps.Summarizer.SummarizeDocument(r.Context(), narration.Document{Name: header.Filename, MIMEType: mime, Data: data}, lang)
	if err != nil {
		s.fail(w, "document summary", err)
		return
	}
	writeJSON(w, http.StatusOK, documentSummaryResponse{Name: header.Filename, Language: string(lang), Summary: text})
}

type narrateRequest struct {
	BookID         string `json:"bookId"`
	Text           string `json:"text"`
	Language       string `json:"language"`
	SourceLanguage string `json:"sourceLanguage"`
	Gender         string `json:"gender"`
}

func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request) {
	var req narrateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BookID != "" {
		b, ok := s.deps.Catalog.Find(req.BookID)
		if !ok {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		req.Text = b.NarrationText()
		if req.SourceLanguage == "" {
			req.SourceLanguage = string(s.deps.CatalogLanguage)
		}
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "nothing to narrate")
		return
	}
	lang, err := s.language(req.Language)
	if err != nil {
		s.fail(w, "narrate", err)
		return
	}
	job, err := s.deps.Narrator.Submit(protocol.NarrationRequest{
		BookID:         req.BookID,
		Text:           req.Text,
		Language:       string(lang),
		SourceLanguage: req.SourceLanguage,
		Gender:         req.Gender,
	})
	if err != nil {
		s.fail(w, "narrate", err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse(job))
}

type narrationJob struct {
	ID       string  `json:"id"`
	BookID   string  `json:"bookId,omitempty"`
	State    string  `json:"state"`
	Stage    string  `json:"stage,omitempty"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func jobResponse(j narration.Job) narrationJob {
	return narrationJob{ID: j.ID, BookID: j.BookID, State: j.State, Stage: string(j.Stage), Error: j.Error, Duration: j.Duration}
}

func (s *Server) handleNarration(w http.ResponseWriter, r *http.Request) {
	job, ok := s.deps.Narrator.Job(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "narration not found")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}
