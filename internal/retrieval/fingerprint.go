package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// Fingerprint returns a stable content hash of the profile. Encoding a
// fixed struct yields canonical field order, so identical content always
// produces the same fingerprint and reindexing can be skipped.
func Fingerprint(profile models.Profile) (string, error) {
	canonical, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize profile: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
