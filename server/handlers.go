package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"beatvault/config"
	"beatvault/logger"
	"beatvault/normalize"
	"beatvault/repository"
	"beatvault/storage"
)

// APIHandler handles all record API requests.
type APIHandler struct {
	tracks repository.TrackRepository
	cfg    *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(tracks repository.TrackRepository, cfg *config.Config) *APIHandler {
	return &APIHandler{
		tracks: tracks,
		cfg:    cfg,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondStoreError maps store failures onto response statuses: unresolved
// ids are 404, syntactically invalid ids are 400, a missing or placeholder
// connection string keeps its distinct message, everything else is a generic
// 500. Nothing is swallowed here.
func respondStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrTrackNotFound):
		respondError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, repository.ErrInvalidTrackID):
		respondError(w, http.StatusBadRequest, "invalid record id")
	case errors.Is(err, config.ErrDatabaseNotConfigured):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// respondInputError maps normalization failures to 400 and anything else to
// the fallback 500.
func respondInputError(w http.ResponseWriter, err error, fallback string) {
	var ve *normalize.ValidationError
	if errors.As(err, &ve) {
		respondError(w, http.StatusBadRequest, ve.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, fallback)
}

// HealthzHandler reports liveness and whether the store is configured.
func (h *APIHandler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	database := "configured"
	if err := h.cfg.ValidateDSN(); err != nil {
		database = "unconfigured"
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": database,
	})
}

// FileHandler streams a stored upload back from object storage.
func (h *APIHandler) FileHandler(w http.ResponseWriter, r *http.Request) {
	objectName := strings.TrimPrefix(r.URL.Path, "/files/")
	if objectName == "" {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}

	obj, err := storage.Object(r.Context(), objectName)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "object storage unavailable")
		return
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, objectName, info.LastModified, obj)
}
