// Package config loads the static interview data: scripted diary
// questions, follow-up templates, and patient profiles. Defaults ship
// embedded in the binary and can be overridden by file path.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

//go:embed data/diary_questions.json
var defaultQuestionsJSON []byte

//go:embed data/follow_up_questions.json
var defaultFollowUpsJSON []byte

// LoadQuestions reads the scripted question list from path, or the
// embedded defaults when path is empty.
func LoadQuestions(path string) ([]models.Question, error) {
	data := defaultQuestionsJSON
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read questions file: %w", err)
		}
	}

	var questions []models.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions JSON: %w", err)
	}
	if len(questions) == 0 {
		return nil, models.ErrNoQuestions
	}
	for i, q := range questions {
		if q.Text == "" {
			return nil, fmt.Errorf("%w: entry %d", models.ErrEmptyQuestionText, i)
		}
		if q.ID == "" {
			questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
	}
	slog.Debug("config.LoadQuestions: loaded", "count", len(questions), "from_file", path != "")
	return questions, nil
}

// LoadFollowUps reads the follow-up template mapping from path, or the
// embedded defaults when path is empty. Completeness (mandatory generic
// entry, known keys only) is validated by flow.NewFollowUpSet.
func LoadFollowUps(path string) (map[models.FollowUpKey][]string, error) {
	data := defaultFollowUpsJSON
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read follow-up file: %w", err)
		}
	}

	var templates map[models.FollowUpKey][]string
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse follow-up JSON: %w", err)
	}
	slog.Debug("config.LoadFollowUps: loaded", "keys", len(templates), "from_file", path != "")
	return templates, nil
}
