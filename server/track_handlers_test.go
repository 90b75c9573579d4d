package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"beatvault/config"
	"beatvault/model"
	"beatvault/repository"
)

type stubTrackRepository struct {
	listTracks []*model.Track
	listErr    error

	createErr    error
	createdTrack *model.Track

	foundTrack *model.Track
	findErr    error

	updateErr  error
	lastUpdate *model.TrackUpdate

	deleteErr error

	lastID string
}

func (s *stubTrackRepository) Create(_ context.Context, track *model.Track) error {
	if s.createErr != nil {
		return s.createErr
	}
	track.ID = "507f1f77bcf86cd799439011"
	now := time.Now().UTC()
	track.CreatedAt = now
	track.UpdatedAt = now
	s.createdTrack = track
	return nil
}

func (s *stubTrackRepository) FindByID(_ context.Context, id string) (*model.Track, error) {
	s.lastID = id
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.foundTrack, nil
}

func (s *stubTrackRepository) List(context.Context) ([]*model.Track, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listTracks, nil
}

func (s *stubTrackRepository) Update(_ context.Context, id string, upd *model.TrackUpdate) (*model.Track, error) {
	s.lastID = id
	s.lastUpdate = upd
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	track := s.foundTrack
	upd.Apply(track)
	track.UpdatedAt = track.UpdatedAt.Add(time.Millisecond)
	return track, nil
}

func (s *stubTrackRepository) Delete(_ context.Context, id string) (string, error) {
	s.lastID = id
	if s.deleteErr != nil {
		return "", s.deleteErr
	}
	return strings.ToLower(id), nil
}

func newTestServer(repo repository.TrackRepository) http.Handler {
	api := NewAPIHandler(repo, &config.Config{MaxUploadBytes: 32 << 20})
	return newRouter(api)
}

func sampleTrack(id string) *model.Track {
	now := time.Now().UTC()
	return &model.Track{
		ID:           id,
		Title:        "Night Drive",
		ProducerName: "kid",
		BPM:          128,
		MusicalKey:   "Fm",
		MoodTags:     []string{"chill", "drive"},
		AudioURL:     "https://x/y.mp3",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestListRecords(t *testing.T) {
	repo := &stubTrackRepository{
		listTracks: []*model.Track{sampleTrack("id2"), sampleTrack("id1")},
	}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []model.Track
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "id2" {
		t.Fatalf("unexpected listing: %+v", got)
	}
}

func TestListRecordsDegradesToEmptyOnStoreFailure(t *testing.T) {
	repo := &stubTrackRepository{listErr: errors.New("connection refused")}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("listing must degrade to 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("listing must degrade to an empty array, got %q", body)
	}
}

func TestListRecordsConfigurationErrorFailsFast(t *testing.T) {
	repo := &stubTrackRepository{listErr: config.ErrDatabaseNotConfigured}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("a missing connection string must not be softened, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "DATABASE_DSN") {
		t.Fatalf("configuration failures need their distinct message, got %s", rec.Body.String())
	}
}

func TestCreateRecordJSON(t *testing.T) {
	repo := &stubTrackRepository{}
	srv := newTestServer(repo)

	body := `{"title":"Night Drive","producerName":"kid","bpm":"128","key":"Fm","moodTags":"chill, drive","audioUrl":"https://x/y.mp3"}`
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["id"] == "" || got["id"] == nil {
		t.Fatal("created record must carry a non-empty id")
	}
	if bpm, ok := got["bpm"].(float64); !ok || bpm != 128 {
		t.Fatalf("bpm must serialize as the number 128, got %v", got["bpm"])
	}
	if !reflect.DeepEqual(got["moodTags"], []any{"chill", "drive"}) {
		t.Fatalf("moodTags = %v", got["moodTags"])
	}
	if _, present := got["price"]; present {
		t.Fatalf("price must be absent, got %v", got["price"])
	}
}

func TestCreateRecordMultipartForm(t *testing.T) {
	repo := &stubTrackRepository{}
	srv := newTestServer(repo)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for key, value := range map[string]string{
		"title":        "Night Drive",
		"producerName": "kid",
		"bpm":          "128",
		"key":          "Fm",
		"moodTags":     "chill, drive",
		"audioUrl":     "https://x/y.mp3",
	} {
		if err := form.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/records", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if repo.createdTrack == nil || repo.createdTrack.BPM != 128 {
		t.Fatalf("form fields not normalized: %+v", repo.createdTrack)
	}
}

func TestCreateRecordUploadOutageIsServerError(t *testing.T) {
	repo := &stubTrackRepository{}
	srv := newTestServer(repo)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for key, value := range map[string]string{
		"title":        "Night Drive",
		"producerName": "kid",
		"bpm":          "128",
		"key":          "Fm",
	} {
		if err := form.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := form.CreateFormFile("audioFile", "night-drive.mp3")
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := part.Write([]byte("not really audio")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/records", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("an unavailable blob sink is a server failure, not bad input: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "failed to store uploaded audio") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
	if repo.createdTrack != nil {
		t.Fatal("nothing may be persisted when the upload fails")
	}
}

func TestCreateRecordJSONBodyTooLarge(t *testing.T) {
	repo := &stubTrackRepository{}
	srv := newTestServer(repo)

	body := fmt.Sprintf(`{"title":%q}`, strings.Repeat("a", (1<<20)+1))
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized JSON bodies are rejected with 400, got %d", rec.Code)
	}
	if repo.createdTrack != nil {
		t.Fatal("nothing may be persisted from an oversized body")
	}
}

func TestCreateRecordMissingField(t *testing.T) {
	repo := &stubTrackRepository{}
	srv := newTestServer(repo)

	body := `{"title":"Night Drive","producerName":"kid","bpm":"128","key":"Fm"}`
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "audioUrl") {
		t.Fatalf("error must name the missing field: %s", rec.Body.String())
	}
	if repo.createdTrack != nil {
		t.Fatal("nothing may be persisted on validation failure")
	}
}

func TestCreateRecordStoreFailureIsNotSoftened(t *testing.T) {
	repo := &stubTrackRepository{createErr: errors.New("connection refused")}
	srv := newTestServer(repo)

	body := `{"title":"Night Drive","producerName":"kid","bpm":128,"key":"Fm","audioUrl":"https://x/y.mp3"}`
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("write paths must surface store failures, got %d", rec.Code)
	}
}

func TestGetRecord(t *testing.T) {
	repo := &stubTrackRepository{foundTrack: sampleTrack("507f1f77bcf86cd799439011")}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/507F1F77BCF86CD799439011", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if repo.lastID != "507F1F77BCF86CD799439011" {
		t.Fatalf("handler must pass the raw id through, got %q", repo.lastID)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	repo := &stubTrackRepository{findErr: fmt.Errorf("track %q: %w", "x", repository.ErrTrackNotFound)}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/507f1f77bcf86cd799439011", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetRecordConfigurationErrorIsDistinct(t *testing.T) {
	repo := &stubTrackRepository{findErr: config.ErrDatabaseNotConfigured}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/507f1f77bcf86cd799439011", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "DATABASE_DSN") {
		t.Fatalf("configuration failures need their distinct message, got %s", rec.Body.String())
	}
}

func TestUpdateRecordPartial(t *testing.T) {
	repo := &stubTrackRepository{foundTrack: sampleTrack("507f1f77bcf86cd799439011")}
	srv := newTestServer(repo)

	body := `{"title":"Day Drive","price":null}`
	req := httptest.NewRequest(http.MethodPatch, "/records/507f1f77bcf86cd799439011", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	upd := repo.lastUpdate
	if upd == nil || upd.Title == nil || *upd.Title != "Day Drive" {
		t.Fatalf("title not carried: %+v", upd)
	}
	if !upd.ClearPrice {
		t.Fatalf("null price must clear to absent: %+v", upd)
	}
	if upd.BPM != nil || upd.ProducerName != nil || upd.MoodTags != nil {
		t.Fatalf("absent fields must not be carried: %+v", upd)
	}
}

func TestUpdateRecordInvalidJSON(t *testing.T) {
	repo := &stubTrackRepository{foundTrack: sampleTrack("507f1f77bcf86cd799439011")}
	srv := newTestServer(repo)

	req := httptest.NewRequest(http.MethodPatch, "/records/507f1f77bcf86cd799439011", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateRecordBodyTooLarge(t *testing.T) {
	repo := &stubTrackRepository{foundTrack: sampleTrack("507f1f77bcf86cd799439011")}
	srv := newTestServer(repo)

	body := fmt.Sprintf(`{"title":%q}`, strings.Repeat("a", (1<<20)+1))
	req := httptest.NewRequest(http.MethodPatch, "/records/507f1f77bcf86cd799439011", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized JSON bodies are rejected with 400, got %d", rec.Code)
	}
	if repo.lastUpdate != nil {
		t.Fatal("nothing may be applied from an oversized body")
	}
}

func TestUpdateRecordNotFound(t *testing.T) {
	repo := &stubTrackRepository{updateErr: fmt.Errorf("track: %w", repository.ErrTrackNotFound)}
	srv := newTestServer(repo)

	req := httptest.NewRequest(http.MethodPatch, "/records/507f1f77bcf86cd799439011", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteRecord(t *testing.T) {
	repo := &stubTrackRepository{}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/records/507F1F77BCF86CD799439011", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.ID != "507f1f77bcf86cd799439011" {
		t.Fatalf("unexpected confirmation: %+v", got)
	}
}

func TestDeleteRecordInvalidID(t *testing.T) {
	repo := &stubTrackRepository{deleteErr: fmt.Errorf("empty id: %w", repository.ErrInvalidTrackID)}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/records/bad", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed ids are 400, not 404: got %d", rec.Code)
	}
}

func TestDeleteRecordStoreFailureIsNotSoftened(t *testing.T) {
	repo := &stubTrackRepository{deleteErr: errors.New("connection refused")}
	srv := newTestServer(repo)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/records/507f1f77bcf86cd799439011", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("write paths must surface store failures, got %d", rec.Code)
	}
}

func TestHealthzReportsUnconfiguredDatabase(t *testing.T) {
	api := NewAPIHandler(&stubTrackRepository{}, &config.Config{DatabaseDSN: "user:<db_password>@tcp(db:3306)/vault"})
	srv := newRouter(api)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"database":"unconfigured"`) {
		t.Fatalf("healthz must report config state: %s", rec.Body.String())
	}
}
