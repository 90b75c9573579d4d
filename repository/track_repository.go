package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"beatvault/config"
	"beatvault/db"
	"beatvault/model"
	"beatvault/trackid"
)

var (
	// ErrTrackNotFound signals that an identifier resolved to no record
	// under either encoding.
	ErrTrackNotFound = errors.New("track not found")
	// ErrInvalidTrackID signals an identifier the store itself would
	// reject, as opposed to a well-formed one that matches nothing.
	ErrInvalidTrackID = errors.New("invalid track id")
)

// maxIDLength matches the id column width.
const maxIDLength = 64

// TrackRepository defines the interface for track persistence.
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	FindByID(ctx context.Context, id string) (*model.Track, error)
	List(ctx context.Context) ([]*model.Track, error)
	Update(ctx context.Context, id string, upd *model.TrackUpdate) (*model.Track, error)
	Delete(ctx context.Context, id string) (string, error)
}

// mysqlTrackRepository implements TrackRepository for MySQL. The connection
// is obtained per call so the first request of the process establishes it.
type mysqlTrackRepository struct {
	conn func(ctx context.Context) (*sql.DB, error)
}

// NewMySQLTrackRepository creates a repository backed by the shared lazy
// database connection.
func NewMySQLTrackRepository(cfg *config.Config) TrackRepository {
	return &mysqlTrackRepository{
		conn: func(ctx context.Context) (*sql.DB, error) {
			return db.Connect(ctx, cfg)
		},
	}
}

const trackColumns = `id, title, producer_name, bpm, musical_key, price, mood_tags, audio_url, created_at, updated_at`

// Create persists a new track, assigning its identifier and timestamps.
func (r *mysqlTrackRepository) Create(ctx context.Context, track *model.Track) error {
	dbc, err := r.conn(ctx)
	if err != nil {
		return err
	}

	track.ID = trackid.New()
	now := time.Now().UTC()
	track.CreatedAt = now
	track.UpdatedAt = now
	if track.MoodTags == nil {
		track.MoodTags = []string{}
	}

	tags, err := json.Marshal(track.MoodTags)
	if err != nil {
		return fmt.Errorf("failed to encode mood tags: %w", err)
	}

	query := `INSERT INTO tracks (` + trackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = dbc.ExecContext(ctx, query,
		track.ID, track.Title, track.ProducerName, track.BPM, track.MusicalKey,
		track.Price, string(tags), track.AudioURL, track.CreatedAt, track.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// FindByID resolves a track by its identifier in two steps: an exact match
// on the raw string first, then a retry under the canonical spelling when the
// id is a well-formed generated identifier. A lookup never fails solely
// because the caller's encoding differs from the one stored at creation.
func (r *mysqlTrackRepository) FindByID(ctx context.Context, id string) (*model.Track, error) {
	dbc, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	track, err := r.findExact(ctx, dbc, id)
	if err != nil {
		return nil, err
	}
	if track != nil {
		return track, nil
	}

	if canonical, ok := trackid.Canonical(id); ok && canonical != id {
		track, err = r.findExact(ctx, dbc, canonical)
		if err != nil {
			return nil, err
		}
		if track != nil {
			return track, nil
		}
	}

	return nil, fmt.Errorf("track %q: %w", id, ErrTrackNotFound)
}

func (r *mysqlTrackRepository) findExact(ctx context.Context, dbc *sql.DB, id string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	track, err := scanTrack(dbc.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query track %q: %w", id, err)
	}
	return track, nil
}

// List returns all tracks ordered newest first; ties in created_at keep
// insertion order.
func (r *mysqlTrackRepository) List(ctx context.Context) ([]*model.Track, error) {
	dbc, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + trackColumns + ` FROM tracks ORDER BY created_at DESC, seq ASC`
	rows, err := dbc.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating track rows: %w", err)
	}
	return tracks, nil
}

// Update resolves the track, applies only the fields the update carries and
// persists the row. updated_at is refreshed even for an empty update and is
// guaranteed to strictly increase. Concurrent updates to the same id are
// last-write-wins.
func (r *mysqlTrackRepository) Update(ctx context.Context, id string, upd *model.TrackUpdate) (*model.Track, error) {
	track, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dbc, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	upd.Apply(track)
	now := time.Now().UTC()
	if !now.After(track.UpdatedAt) {
		now = track.UpdatedAt.Add(time.Microsecond)
	}
	track.UpdatedAt = now
	if track.MoodTags == nil {
		track.MoodTags = []string{}
	}

	tags, err := json.Marshal(track.MoodTags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mood tags: %w", err)
	}

	query := `UPDATE tracks SET title = ?, producer_name = ?, bpm = ?, musical_key = ?, price = ?, mood_tags = ?, audio_url = ?, updated_at = ? WHERE id = ?`
	_, err = dbc.ExecContext(ctx, query,
		track.Title, track.ProducerName, track.BPM, track.MusicalKey,
		track.Price, string(tags), track.AudioURL, track.UpdatedAt, track.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update track %q: %w", track.ID, err)
	}
	return track, nil
}

// Delete resolves the track, removes it and returns the resolved identifier
// for confirmation. A syntactically unacceptable id fails with
// ErrInvalidTrackID before any lookup.
func (r *mysqlTrackRepository) Delete(ctx context.Context, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	track, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	dbc, err := r.conn(ctx)
	if err != nil {
		return "", err
	}

	if _, err := dbc.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, track.ID); err != nil {
		return "", fmt.Errorf("failed to delete track %q: %w", track.ID, err)
	}
	return track.ID, nil
}

// validateID rejects identifiers the store cannot hold: empty strings,
// strings wider than the id column and strings with control bytes.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty id: %w", ErrInvalidTrackID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("id longer than %d bytes: %w", maxIDLength, ErrInvalidTrackID)
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x20 || id[i] == 0x7f {
			return fmt.Errorf("id contains control characters: %w", ErrInvalidTrackID)
		}
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*model.Track, error) {
	var (
		track model.Track
		price sql.NullFloat64
		tags  []byte
	)
	err := row.Scan(&track.ID, &track.Title, &track.ProducerName, &track.BPM,
		&track.MusicalKey, &price, &tags, &track.AudioURL,
		&track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		track.Price = &price.Float64
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &track.MoodTags); err != nil {
			return nil, fmt.Errorf("failed to decode mood tags for track %q: %w", track.ID, err)
		}
	}
	if track.MoodTags == nil {
		track.MoodTags = []string{}
	}
	return &track, nil
}
