package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

func TestLoadQuestionsEmbeddedDefaults(t *testing.T) {
	questions, err := LoadQuestions("")
	if err != nil {
		t.Fatalf("LoadQuestions() error = %v", err)
	}
	if len(questions) == 0 {
		t.Fatal("embedded question set is empty")
	}
	for i, q := range questions {
		if q.ID == "" {
			t.Errorf("question %d has no ID", i)
		}
		if q.Text == "" {
			t.Errorf("question %s has no text", q.ID)
		}
	}
}

func TestLoadQuestionsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.json")
	content := `[{"text":"Come va oggi?"},{"id":"sonno","text":"Ha dormito bene?"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	questions, err := LoadQuestions(path)
	if err != nil {
		t.Fatalf("LoadQuestions() error = %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(questions))
	}
	// Missing IDs are assigned positionally, explicit IDs are kept.
	if questions[0].ID != "q1" {
		t.Errorf("auto ID = %q, want q1", questions[0].ID)
	}
	if questions[1].ID != "sonno" {
		t.Errorf("explicit ID = %q, want sonno", questions[1].ID)
	}
}

func TestLoadQuestionsRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`[]`), 0o644)
	if _, err := LoadQuestions(empty); err == nil {
		t.Error("empty question list should fail")
	}

	blank := filepath.Join(dir, "blank.json")
	os.WriteFile(blank, []byte(`[{"id":"q1","text":""}]`), 0o644)
	if _, err := LoadQuestions(blank); err == nil {
		t.Error("blank question text should fail")
	}

	if _, err := LoadQuestions(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadFollowUpsEmbeddedDefaults(t *testing.T) {
	templates, err := LoadFollowUps("")
	if err != nil {
		t.Fatalf("LoadFollowUps() error = %v", err)
	}
	// The embedded defaults must at least carry the mandatory generic set
	// and the evasive re-ask.
	for _, key := range []models.FollowUpKey{models.FollowUpGeneric, models.FollowUpEvasive} {
		if len(templates[key]) == 0 {
			t.Errorf("embedded defaults missing %q templates", key)
		}
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maria.json")
	content := `{"name":"Maria","age":"78","gender":"F","main_condition":"artrite"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if profile.Name != "Maria" || profile.MainCondition != "artrite" {
		t.Errorf("profile = %+v", profile)
	}

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`{}`), 0o644)
	if _, err := LoadProfile(empty); err == nil {
		t.Error("empty profile should fail")
	}
}

func TestListProfilesSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b_valid.json"), []byte(`{"name":"Rosa"}`), 0o644)
	os.WriteFile(filepath.Join(dir, "a_broken.json"), []byte(`{not json`), 0o644)
	os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte(`x`), 0o644)

	entries, err := ListProfiles(dir)
	if err != nil {
		t.Fatalf("ListProfiles() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Profile.Name != "Rosa" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestLastProfileRoundTrip(t *testing.T) {
	configDir := t.TempDir()
	profilePath := filepath.Join(configDir, "maria.json")
	os.WriteFile(profilePath, []byte(`{"name":"Maria"}`), 0o644)

	if got := LoadLastProfile(configDir); got != "" {
		t.Errorf("LoadLastProfile() before save = %q, want empty", got)
	}

	if err := SaveLastProfile(configDir, profilePath); err != nil {
		t.Fatalf("SaveLastProfile() error = %v", err)
	}
	if got := LoadLastProfile(configDir); got != profilePath {
		t.Errorf("LoadLastProfile() = %q, want %q", got, profilePath)
	}

	// A remembered path that no longer exists is ignored.
	os.Remove(profilePath)
	if got := LoadLastProfile(configDir); got != "" {
		t.Errorf("LoadLastProfile() for deleted profile = %q, want empty", got)
	}
}
