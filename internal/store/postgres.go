// Package store: PostgreSQL-backed implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/empatia-lab/DiaryPipe/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions and index artifacts in PostgreSQL,
// for deployments sharing one database across evaluation machines.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(sess Session) error {
	stateJSON, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, patient_id, started_at, ended_at, state_json) VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.PatientID, sess.StartedAt, sess.EndedAt, string(stateJSON),
	)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListSessions(patientID string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, patient_id, started_at, ended_at, state_json FROM sessions WHERE patient_id = $1 ORDER BY started_at`,
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

func (s *PostgresStore) GetIndexArtifact(fingerprint string) ([]models.ProfileChunk, error) {
	var chunksJSON string
	err := s.db.QueryRow(
		`SELECT chunks_json FROM index_artifacts WHERE fingerprint = $1`, fingerprint,
	).Scan(&chunksJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index artifact: %w", err)
	}
	return unmarshalChunks(chunksJSON)
}

func (s *PostgresStore) SaveIndexArtifact(profileID, fingerprint string, chunks []models.ProfileChunk) error {
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM index_artifacts WHERE profile_id = $1`, profileID); err != nil {
		return fmt.Errorf("failed to evict stale artifacts: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO index_artifacts (fingerprint, profile_id, chunks_json) VALUES ($1, $2, $3)`,
		fingerprint, profileID, string(chunksJSON),
	); err != nil {
		return fmt.Errorf("failed to insert index artifact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
