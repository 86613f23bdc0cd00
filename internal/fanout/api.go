package fanout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards"
	"github.com/charleschow/deskcards/internal/store"
	"github.com/charleschow/deskcards/internal/telemetry"
)

type addCardRequest struct {
	Type   string `json:"type"`
	Config string `json:"config"`
	Name   string `json:"name"`
}

type moveCardRequest struct {
	Index int `json:"index"`
}

type updateCardRequest struct {
	Config string `json:"config"`
	Name   string `json:"name"`
}

type apiError struct {
	Error string `json:"error"`
}

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/definitions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cards.Definitions())
	})
	if s.store == nil {
		return
	}
	mux.HandleFunc("GET /api/cards", s.listCards)
	mux.HandleFunc("POST /api/cards", s.addCard)
	mux.HandleFunc("DELETE /api/cards/{id}", s.removeCard)
	mux.HandleFunc("PUT /api/cards/{id}", s.updateCard)
	mux.HandleFunc("POST /api/cards/{id}/move", s.moveCard)
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []config.CardConfig{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) addCard(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	c, err := s.store.Add(r.Context(), config.CardConfig{Type: config.CardType(req.Type), Config: req.Config, Name: req.Name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) removeCard(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateCard(w http.ResponseWriter, r *http.Request) {
	var req updateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	if err := s.store.SetConfig(r.Context(), r.PathValue("id"), req.Config, req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) moveCard(w http.ResponseWriter, r *http.Request) {
	var req moveCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	if err := s.store.Move(r.Context(), r.PathValue("id"), req.Index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrSingleton):
		status = http.StatusConflict
	case errors.Is(err, store.ErrNeedsConfig), errors.Is(err, config.ErrUnknownCardType):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		telemetry.Errorf("fanout: api: %v", err)
	}
	writeJSON(w, status, apiError{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.Debugf("fanout: write response: %v", err)
	}
}
