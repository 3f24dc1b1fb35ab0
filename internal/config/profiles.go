package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// lastProfileFile remembers the most recently used profile across runs.
const lastProfileFile = ".last_profile"

// ProfileEntry pairs a profile with the path it was loaded from.
type ProfileEntry struct {
	Path    string
	Profile models.Profile
}

// LoadProfile reads and parses one patient profile. Missing optional
// fields stay empty and are treated as absent context downstream.
func LoadProfile(path string) (models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	var profile models.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return models.Profile{}, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if profile.IsEmpty() {
		return models.Profile{}, fmt.Errorf("%w: %s", models.ErrEmptyProfile, path)
	}
	return profile, nil
}

// ListProfiles loads every parseable *.json profile under dir, sorted by
// file name. Unreadable files are skipped with a warning.
func ListProfiles(dir string) ([]ProfileEntry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan profiles dir: %w", err)
	}
	sort.Strings(matches)

	var entries []ProfileEntry
	for _, path := range matches {
		profile, err := LoadProfile(path)
		if err != nil {
			slog.Warn("config.ListProfiles: skipping unreadable profile", "path", path, "error", err)
			continue
		}
		entries = append(entries, ProfileEntry{Path: path, Profile: profile})
	}
	return entries, nil
}

// SaveLastProfile remembers the selected profile path for the next run.
func SaveLastProfile(configDir, profilePath string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(filepath.Join(configDir, lastProfileFile), []byte(profilePath+"\n"), 0644)
}

// LoadLastProfile returns the remembered profile path, or "" when none
// is recorded or it no longer exists.
func LoadLastProfile(configDir string) string {
	data, err := os.ReadFile(filepath.Join(configDir, lastProfileFile))
	if err != nil {
		return ""
	}
	path := strings.TrimSpace(string(data))
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
