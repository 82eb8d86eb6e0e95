package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrChainClosed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPersistence):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: msg + ": " + err.Error()})
}
