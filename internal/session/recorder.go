// Package session records completed diary conversations to disk as CSV
// transcripts plus a JSON metadata sidecar, one directory per patient.
package session

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// timestampLayout names session files so they sort chronologically.
const timestampLayout = "2006-01-02_15-04-05"

// QARecord is one logged question/answer exchange.
type QARecord struct {
	Timestamp      time.Time
	QuestionID     int
	Question       string
	UserAnswer     string
	AssistantReply string
}

// Metadata is the JSON sidecar written next to each transcript. It carries
// only coarse profile fields, never the answers themselves.
type Metadata struct {
	SessionID       string         `json:"session_id"`
	PatientID       string         `json:"patient_id"`
	SessionStart    string         `json:"session_start"`
	SessionEnd      string         `json:"session_end"`
	DurationSeconds int            `json:"duration_seconds"`
	TotalQuestions  int            `json:"total_questions"`
	ProfileSummary  ProfileSummary `json:"profile_summary"`
}

// ProfileSummary is the minimal profile slice kept in session metadata.
type ProfileSummary struct {
	Age           string `json:"age"`
	Gender        string `json:"gender"`
	MainCondition string `json:"main_condition"`
}

// Recorder accumulates QA exchanges for one session and writes them out
// when the session ends.
type Recorder struct {
	SessionID  string
	PatientID  string
	patientDir string
	startTime  time.Time
	log        []QARecord
	now        func() time.Time
}

// NewRecorder prepares a recorder for the given patient, creating the
// per-patient directory under sessionsDir if needed.
func NewRecorder(patientID, sessionsDir string) (*Recorder, error) {
	patientDir := filepath.Join(sessionsDir, patientID)
	if err := os.MkdirAll(patientDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", patientDir, err)
	}
	r := &Recorder{
		SessionID:  uuid.NewString(),
		PatientID:  patientID,
		patientDir: patientDir,
		now:        time.Now,
	}
	r.startTime = r.now()
	return r, nil
}

// SetClock overrides the recorder's clock. Used in tests for deterministic
// file names and durations.
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
	r.startTime = now()
}

// LogQA appends one question/answer exchange to the in-memory transcript.
func (r *Recorder) LogQA(questionID int, question, userAnswer, assistantReply string) {
	r.log = append(r.log, QARecord{
		Timestamp:      r.now(),
		QuestionID:     questionID,
		Question:       question,
		UserAnswer:     userAnswer,
		AssistantReply: assistantReply,
	})
}

// Entries returns the exchanges logged so far.
func (r *Recorder) Entries() []QARecord {
	return r.log
}

// Save writes the CSV transcript and JSON metadata for the session and
// returns the transcript path. An empty transcript writes metadata only.
func (r *Recorder) Save(profile models.Profile) (string, error) {
	endTime := r.now()
	sessionName := r.startTime.Format(timestampLayout)
	csvPath := filepath.Join(r.patientDir, sessionName+".csv")
	metaPath := filepath.Join(r.patientDir, sessionName+"_meta.json")

	if len(r.log) > 0 {
		if err := r.writeCSV(csvPath); err != nil {
			return "", err
		}
	}

	meta := Metadata{
		SessionID:       r.SessionID,
		PatientID:       r.PatientID,
		SessionStart:    r.startTime.Format(time.RFC3339),
		SessionEnd:      endTime.Format(time.RFC3339),
		DurationSeconds: int(endTime.Sub(r.startTime).Seconds()),
		TotalQuestions:  len(r.log),
		ProfileSummary: ProfileSummary{
			Age:           models.SafeField(profile.Age),
			Gender:        models.SafeField(profile.Gender),
			MainCondition: models.SafeField(profile.MainCondition),
		},
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0o644); err != nil {
		return "", fmt.Errorf("failed to write session metadata: %w", err)
	}

	slog.Info("Session saved", "patientID", r.PatientID, "csv", csvPath, "meta", metaPath, "exchanges", len(r.log))
	return csvPath, nil
}

func (r *Recorder) writeCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create transcript %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "question_id", "question", "user_answer", "assistant_reply"}); err != nil {
		return fmt.Errorf("failed to write transcript header: %w", err)
	}
	for _, entry := range r.log {
		row := []string{
			entry.Timestamp.Format(time.RFC3339),
			strconv.Itoa(entry.QuestionID),
			entry.Question,
			entry.UserAnswer,
			entry.AssistantReply,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write transcript row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush transcript: %w", err)
	}
	return nil
}
