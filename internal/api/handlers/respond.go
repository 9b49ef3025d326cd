package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondReadError maps reader errors to status codes
func respondReadError(w http.ResponseWriter, log *logger.Logger, err error) {
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	log.WithError(err).Error("Read failed")
	respondError(w, http.StatusInternalServerError, "internal error")
}
