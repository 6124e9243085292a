package api

import (
	"net/http"

	"github.com/loqalabs/loqa-books/internal/billing"
	"github.com/loqalabs/loqa-books/internal/session"
)

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	u, ok := s.deps.Session.Current()
	resp := sessionResponse{Authenticated: ok}
	if ok {
		resp.User = &u
	}
	writeJSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.deps.Session.Login(r.Context(), req.Email, req.Name)
	if err != nil {
		s.fail(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: &u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Logout(r.Context()); err != nil {
		s.fail(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var order billing.Order
	if !decodeJSON(w, r, &order) {
		return
	}
	receipt, err := s.deps.Checkout.Pay(r.Context(), order)
	if err != nil {
		s.fail(w, "checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
