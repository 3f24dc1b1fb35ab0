// Package retrieval indexes patient profiles into semantically coherent
// chunks and ranks them against the current question for context injection.
package retrieval

import (
	"fmt"
	"strings"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// section pairs a label with the profile text belonging to it. One chunk
// per top-level semantic section keeps facts intact: retrieval never
// returns a truncated fact because section boundaries are never split.
type section struct {
	label string
	text  string
}

// ChunkProfile splits a profile into one chunk per populated section.
// Empty sections are skipped; a profile with missing optional fields
// simply yields fewer chunks.
func ChunkProfile(profile models.Profile) []models.ProfileChunk {
	sections := []section{
		{"identity", identityText(profile)},
		{"health_conditions", healthText(profile)},
		{"routine", profile.Routine},
		{"communication_needs", profile.CommunicationNeeds},
		{"living_situation", profile.LivingSituation},
		{"goals", profile.Goals},
	}

	var chunks []models.ProfileChunk
	for i, s := range sections {
		text := strings.TrimSpace(s.text)
		if text == "" {
			continue
		}
		chunks = append(chunks, models.ProfileChunk{
			ID:      fmt.Sprintf("%s_%d", s.label, i),
			Section: s.label,
			Text:    fmt.Sprintf("Sezione: %s\n%s", s.label, text),
		})
	}
	return chunks
}

func identityText(p models.Profile) string {
	var parts []string
	if strings.TrimSpace(p.Name) != "" {
		parts = append(parts, "Nome: "+strings.TrimSpace(p.Name))
	}
	if strings.TrimSpace(p.Age) != "" {
		parts = append(parts, "Età: "+strings.TrimSpace(p.Age))
	}
	if strings.TrimSpace(p.Gender) != "" {
		parts = append(parts, "Genere: "+strings.TrimSpace(p.Gender))
	}
	return strings.Join(parts, "\n")
}

func healthText(p models.Profile) string {
	var parts []string
	if strings.TrimSpace(p.MainCondition) != "" {
		parts = append(parts, "Condizione principale: "+strings.TrimSpace(p.MainCondition))
	}
	if strings.TrimSpace(p.HealthConditions) != "" {
		parts = append(parts, "Altre condizioni: "+strings.TrimSpace(p.HealthConditions))
	}
	return strings.Join(parts, "\n")
}
