// Package store: SQLite-backed implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/empatia-lab/DiaryPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions and index artifacts in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN (a file
// path). The parent directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(sess Session) error {
	stateJSON, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, patient_id, started_at, ended_at, state_json) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.PatientID, sess.StartedAt, sess.EndedAt, string(stateJSON),
	)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", sess.ID, "patientID", sess.PatientID)
	return nil
}

func (s *SQLiteStore) ListSessions(patientID string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, patient_id, started_at, ended_at, state_json FROM sessions WHERE patient_id = ? ORDER BY started_at`,
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetIndexArtifact(fingerprint string) ([]models.ProfileChunk, error) {
	var chunksJSON string
	err := s.db.QueryRow(
		`SELECT chunks_json FROM index_artifacts WHERE fingerprint = ?`, fingerprint,
	).Scan(&chunksJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index artifact: %w", err)
	}
	return unmarshalChunks(chunksJSON)
}

func (s *SQLiteStore) SaveIndexArtifact(profileID, fingerprint string, chunks []models.ProfileChunk) error {
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Stale artifacts for the same profile are evictable once superseded.
	if _, err := tx.Exec(`DELETE FROM index_artifacts WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("failed to evict stale artifacts: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO index_artifacts (fingerprint, profile_id, chunks_json, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		fingerprint, profileID, string(chunksJSON),
	); err != nil {
		return fmt.Errorf("failed to insert index artifact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index artifact: %w", err)
	}
	slog.Debug("SQLiteStore SaveIndexArtifact succeeded", "profileID", profileID, "chunks", len(chunks))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
