package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// scanSession reads one session row, decoding the serialized state.
func scanSession(rows *sql.Rows) (Session, error) {
	var sess Session
	var stateJSON string
	if err := rows.Scan(&sess.ID, &sess.PatientID, &sess.StartedAt, &sess.EndedAt, &stateJSON); err != nil {
		return sess, fmt.Errorf("scan session failed: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return sess, fmt.Errorf("failed to decode session state: %w", err)
	}
	return sess, nil
}

// unmarshalChunks decodes a stored chunk list.
func unmarshalChunks(chunksJSON string) ([]models.ProfileChunk, error) {
	var chunks []models.ProfileChunk
	if err := json.Unmarshal([]byte(chunksJSON), &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}
