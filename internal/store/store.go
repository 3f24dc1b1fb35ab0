// Package store provides storage backends for DiaryPipe.
//
// It persists completed interview sessions and the content-addressed
// profile index artifacts, with in-memory, SQLite, and PostgreSQL
// implementations behind one interface.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// Session is one completed (or aborted) interview with its full state.
type Session struct {
	ID        string                `json:"id"`
	PatientID string                `json:"patient_id"`
	StartedAt time.Time             `json:"started_at"`
	EndedAt   time.Time             `json:"ended_at"`
	State     models.DialogueState  `json:"state"`
}

// Store is the persistence interface shared by all backends.
type Store interface {
	// SaveSession persists one session record.
	SaveSession(s Session) error

	// ListSessions returns sessions for a patient, oldest first.
	ListSessions(patientID string) ([]Session, error)

	// GetIndexArtifact returns the cached chunks for a fingerprint, or
	// (nil, nil) when absent.
	GetIndexArtifact(fingerprint string) ([]models.ProfileChunk, error)

	// SaveIndexArtifact stores chunks under the fingerprint, evicting
	// stale artifacts of the same profile.
	SaveIndexArtifact(profileID, fingerprint string, chunks []models.ProfileChunk) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
	// Driver forces a backend ("postgres" or "sqlite3"); empty means
	// detect from the DSN.
	Driver string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithDriver forces the backend driver instead of detecting it from the DSN.
func WithDriver(driver string) Option {
	return func(o *Opts) { o.Driver = driver }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite3" otherwise (plain file paths are treated as SQLite databases).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// NewStore opens the backend matching the DSN: PostgreSQL for postgres
// connection strings, SQLite for file paths, in-memory when empty.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDSNType(cfg.DSN)
	}
	if driver == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

type artifact struct {
	profileID string
	chunks    []models.ProfileChunk
}

// InMemoryStore keeps everything in process memory; used in tests and as
// the default when no DSN is configured.
type InMemoryStore struct {
	mu        sync.Mutex
	sessions  []Session
	artifacts map[string]artifact
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]artifact)}
}

func (s *InMemoryStore) SaveSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sess)
	return nil
}

func (s *InMemoryStore) ListSessions(patientID string) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Session
	for _, sess := range s.sessions {
		if sess.PatientID == patientID {
			out = append(out, sess)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *InMemoryStore) GetIndexArtifact(fingerprint string) ([]models.ProfileChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[fingerprint]
	if !ok {
		return nil, nil
	}
	return a.chunks, nil
}

func (s *InMemoryStore) SaveIndexArtifact(profileID, fingerprint string, chunks []models.ProfileChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for fp, a := range s.artifacts {
		if a.profileID == profileID {
			delete(s.artifacts, fp)
		}
	}
	s.artifacts[fingerprint] = artifact{profileID: profileID, chunks: chunks}
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
