package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"beatvault/config"
	"beatvault/logger"
	"beatvault/model"
	"beatvault/normalize"
	"beatvault/storage"

	"github.com/gorilla/mux"
)

// maxJSONBody caps JSON request bodies. Metadata documents are small; only
// the multipart path carries audio bytes and gets the configured upload bound.
const maxJSONBody = 1 << 20

// uploadError marks a server-side failure storing uploaded audio bytes,
// as opposed to a malformed request.
type uploadError struct {
	err error
}

func (e *uploadError) Error() string { return e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

// ListRecordsHandler returns all tracks, newest first. A transient store
// failure on this read path degrades to an empty listing instead of an error
// so the browsing UI stays up; write paths never get this treatment. A
// missing connection string is not transient and fails fast like every other
// store operation.
func (h *APIHandler) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.tracks.List(r.Context())
	if err != nil {
		if errors.Is(err, config.ErrDatabaseNotConfigured) {
			respondStoreError(w, err, "failed to list records")
			return
		}
		logger.Error("listing tracks failed, serving empty result", logger.ErrorField(err))
		respondJSON(w, http.StatusOK, []*model.Track{})
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

// CreateRecordHandler creates a track from a JSON body or a multipart form.
// A multipart request may carry the audio bytes in the audioFile field, which
// are stored first so the record references a stable path; without a file the
// audioUrl field must name an externally hosted URL.
func (h *APIHandler) CreateRecordHandler(w http.ResponseWriter, r *http.Request) {
	var (
		fields map[string]any
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		fields, err = h.collectMultipartFields(w, r)
		if err != nil {
			var ue *uploadError
			if errors.As(err, &ue) {
				logger.Error("failed to store uploaded audio", logger.ErrorField(err))
				respondError(w, http.StatusInternalServerError, "failed to store uploaded audio")
				return
			}
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	track, err := normalize.TrackFromInput(fields)
	if err != nil {
		respondInputError(w, err, "failed to create record")
		return
	}

	if err := h.tracks.Create(r.Context(), track); err != nil {
		logger.Error("failed to create track", logger.ErrorField(err))
		respondStoreError(w, err, "failed to create record")
		return
	}

	logger.Info("track created",
		logger.String("id", track.ID),
		logger.String("title", track.Title),
		logger.String("producer", track.ProducerName))
	respondJSON(w, http.StatusCreated, track)
}

// collectMultipartFields flattens the form values into normalizer input and,
// when audio bytes are attached, uploads them and injects the resulting
// reference as audioUrl. Storage failures come back as uploadError so the
// caller can tell a backend outage from a bad request.
func (h *APIHandler) collectMultipartFields(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(r.MultipartForm.Value))
	for key, values := range r.MultipartForm.Value {
		if len(values) == 1 {
			fields[key] = values[0]
		} else {
			fields[key] = values
		}
	}

	file, header, err := r.FormFile("audioFile")
	switch err {
	case nil:
		defer file.Close()
		if !storage.Ready() {
			return nil, &uploadError{err: errors.New("object storage is not available")}
		}
		audioURL, err := storage.PutAudio(r.Context(), header.Filename, file, header.Size, header.Header.Get("Content-Type"))
		if err != nil {
			return nil, &uploadError{err: err}
		}
		fields["audioUrl"] = audioURL
	case http.ErrMissingFile:
		// URL-reference variant; audioUrl must come from the form.
	default:
		return nil, err
	}

	return fields, nil
}

// GetRecordHandler returns a single track by id.
func (h *APIHandler) GetRecordHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	track, err := h.tracks.FindByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "failed to fetch record")
		return
	}
	respondJSON(w, http.StatusOK, track)
}

// UpdateRecordHandler applies a partial update. Only fields present in the
// body are touched; absent fields stay as they are.
func (h *APIHandler) UpdateRecordHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var fields map[string]any
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	upd, err := normalize.TrackPatchFromInput(fields)
	if err != nil {
		respondInputError(w, err, "failed to update record")
		return
	}

	track, err := h.tracks.Update(r.Context(), id, upd)
	if err != nil {
		respondStoreError(w, err, "failed to update record")
		return
	}

	logger.Info("track updated", logger.String("id", track.ID))
	respondJSON(w, http.StatusOK, track)
}

// DeleteRecordHandler removes a track and confirms with the resolved id.
func (h *APIHandler) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	deletedID, err := h.tracks.Delete(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "failed to delete record")
		return
	}

	logger.Info("track deleted", logger.String("id", deletedID))
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      deletedID,
	})
}
