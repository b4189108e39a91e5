// Package sqlite provides a durable Store backed by an SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/wayline/tour-audio-pipeline/api/tour"
	"github.com/wayline/tour-audio-pipeline/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS tours (
	tour_id       TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	narration     TEXT NOT NULL,
	sources_json  TEXT NOT NULL DEFAULT '[]',
	word_count    INTEGER NOT NULL,
	duration_min  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS audio_jobs (
	tour_id          TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	audio_url        TEXT NOT NULL DEFAULT '',
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	file_size_bytes  INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT ''
);
`

// Store persists tours and audio jobs in SQLite via database/sql.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// WAL/busy-timeout pragmas plus the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutNarration upserts the narration row for its tour ID.
func (s *Store) PutNarration(ctx context.Context, narration *tour.Narration) error {
	if narration == nil || strings.TrimSpace(narration.TourID) == "" {
		return fmt.Errorf("narration with tour_id is required")
	}
	sources, err := json.Marshal(narration.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tours (tour_id, title, description, narration, sources_json, word_count, duration_min)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tour_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			narration = excluded.narration,
			sources_json = excluded.sources_json,
			word_count = excluded.word_count,
			duration_min = excluded.duration_min`,
		narration.TourID, narration.Title, narration.Description, narration.NarrationText,
		string(sources), narration.WordCount, narration.EstimatedDurationMinutes)
	return err
}

// GetNarration loads the narration row for a tour ID.
func (s *Store) GetNarration(ctx context.Context, tourID string) (*tour.Narration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tour_id, title, description, narration, sources_json, word_count, duration_min
		FROM tours WHERE tour_id = ?`, strings.TrimSpace(tourID))

	var narration tour.Narration
	var sourcesJSON string
	err := row.Scan(&narration.TourID, &narration.Title, &narration.Description,
		&narration.NarrationText, &sourcesJSON, &narration.WordCount, &narration.EstimatedDurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &narration.Sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return &narration, nil
}

// PutAudioJob upserts the audio job row for its tour ID.
func (s *Store) PutAudioJob(ctx context.Context, job *tour.AudioJob) error {
	if job == nil || strings.TrimSpace(job.TourID) == "" {
		return fmt.Errorf("audio job with tour_id is required")
	}
	if err := job.Status.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audio_jobs (tour_id, status, audio_url, duration_seconds, file_size_bytes, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tour_id) DO UPDATE SET
			status = excluded.status,
			audio_url = excluded.audio_url,
			duration_seconds = excluded.duration_seconds,
			file_size_bytes = excluded.file_size_bytes,
			error_message = excluded.error_message`,
		job.TourID, string(job.Status), job.AudioURL, job.AudioDurationSeconds,
		job.AudioFileSizeBytes, job.ErrorMessage)
	return err
}

// GetAudioJob loads the audio job row for a tour ID.
func (s *Store) GetAudioJob(ctx context.Context, tourID string) (*tour.AudioJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tour_id, status, audio_url, duration_seconds, file_size_bytes, error_message
		FROM audio_jobs WHERE tour_id = ?`, strings.TrimSpace(tourID))

	var job tour.AudioJob
	var status string
	err := row.Scan(&job.TourID, &status, &job.AudioURL, &job.AudioDurationSeconds,
		&job.AudioFileSizeBytes, &job.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Status = tour.JobStatus(status)
	return &job, nil
}
