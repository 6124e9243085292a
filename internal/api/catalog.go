package api

import (
	"net/http"

	"github.com/loqalabs/loqa-books/internal/catalog"
)

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	books := s.deps.Catalog.Search(r.URL.Query().Get("q"))
	if cat := r.URL.Query().Get("category"); cat != "" {
		filtered := []catalog.Book{}
		for _, b := range books {
			if string(b.Category) == cat {
				filtered = append(filtered, b)
			}
		}
		books = filtered
	}
	if books == nil {
		books = []catalog.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	b, ok := s.deps.Catalog.Find(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	b, ok := s.deps.Catalog.Find(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	similar := s.deps.Catalog.Similar(b)
	if similar == nil {
		similar = []catalog.Book{}
	}
	writeJSON(w, http.StatusOK, similar)
}

type homeResponse struct {
	Popular    []catalog.Book     `json:"popular"`
	Newest     []catalog.Book     `json:"newest"`
	Categories []catalog.Category `json:"categories"`
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, homeResponse{
		Popular:    s.deps.Catalog.Popular(),
		Newest:     s.deps.Catalog.Newest(),
		Categories: catalog.Categories(),
	})
}

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.Plans())
}
