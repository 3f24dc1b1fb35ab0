package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/empatia-lab/DiaryPipe/internal/config"
	"github.com/empatia-lab/DiaryPipe/internal/flow"
	"github.com/empatia-lab/DiaryPipe/internal/models"
	"github.com/empatia-lab/DiaryPipe/internal/session"
	"github.com/empatia-lab/DiaryPipe/internal/util"
)

// Config names for the two evaluation arms.
const (
	ConfigFull        = "FULL"
	ConfigNoBranching = "NO_BRANCHING"
)

// ControllerFactory builds a session controller for one profile, with the
// free-dialogue branch either enabled or disabled.
type ControllerFactory func(entry config.ProfileEntry, branching bool) (*flow.Controller, error)

// SimulatorFactory builds the simulated patient for one profile.
type SimulatorFactory func(profile models.Profile) *Simulator

// ManifestEntry describes one generated session.
type ManifestEntry struct {
	SessionIndex     int    `json:"session_index"`
	Config           string `json:"config"`
	ProfileName      string `json:"profile_name"`
	PatientID        string `json:"patient_id"`
	BranchingEnabled bool   `json:"branching_enabled"`
	TotalQuestions   int    `json:"total_questions"`
	CSVPath          string `json:"csv_path"`
}

// Manifest records a full evaluation run.
type Manifest struct {
	Metadata struct {
		RunID             string   `json:"run_id"`
		SessionsPerConfig int      `json:"sessions_per_config"`
		TotalSessions     int      `json:"total_sessions"`
		ProfilesUsed      []string `json:"profiles_used"`
	} `json:"metadata"`
	Sessions []ManifestEntry `json:"sessions"`
}

// Runner drives paired evaluation sessions, alternating the FULL and
// NO_BRANCHING arms on the same profile so comparisons stay fair.
type Runner struct {
	profiles          []config.ProfileEntry
	buildController   ControllerFactory
	buildSimulator    SimulatorFactory
	outputDir         string
	sessionsPerConfig int
}

// NewRunner assembles a runner over the given profiles.
func NewRunner(profiles []config.ProfileEntry, buildController ControllerFactory, buildSimulator SimulatorFactory, outputDir string, sessionsPerConfig int) (*Runner, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles available for evaluation")
	}
	if sessionsPerConfig <= 0 {
		return nil, fmt.Errorf("sessions per config must be positive, got %d", sessionsPerConfig)
	}
	return &Runner{
		profiles:          profiles,
		buildController:   buildController,
		buildSimulator:    buildSimulator,
		outputDir:         outputDir,
		sessionsPerConfig: sessionsPerConfig,
	}, nil
}

// RunAll generates all paired sessions and writes the manifest. Individual
// session failures are logged and skipped so one bad profile does not sink
// the whole run.
func (r *Runner) RunAll(ctx context.Context) (Manifest, error) {
	var manifest Manifest
	manifest.Metadata.RunID = util.GenerateRunID()
	manifest.Metadata.SessionsPerConfig = r.sessionsPerConfig
	for _, p := range r.profiles {
		manifest.Metadata.ProfilesUsed = append(manifest.Metadata.ProfilesUsed, profileStem(p.Path))
	}

	slog.Info("sim: starting evaluation run",
		"runID", manifest.Metadata.RunID, "sessionsPerConfig", r.sessionsPerConfig, "profiles", len(r.profiles))

	index := 0
	for i := 0; i < r.sessionsPerConfig; i++ {
		entry := r.profiles[i%len(r.profiles)]
		for _, arm := range []struct {
			name      string
			branching bool
		}{
			{ConfigFull, true},
			{ConfigNoBranching, false},
		} {
			index++
			m, err := r.runSession(ctx, entry, arm.name, arm.branching, index)
			if err != nil {
				slog.Error("sim: session failed, skipping",
					"config", arm.name, "profile", profileStem(entry.Path), "error", err)
				continue
			}
			manifest.Sessions = append(manifest.Sessions, m)
		}
	}
	manifest.Metadata.TotalSessions = len(manifest.Sessions)

	if err := r.writeManifest(manifest); err != nil {
		return manifest, err
	}
	slog.Info("sim: evaluation run complete",
		"runID", manifest.Metadata.RunID, "sessions", len(manifest.Sessions))
	return manifest, nil
}

func (r *Runner) runSession(ctx context.Context, entry config.ProfileEntry, configName string, branching bool, index int) (ManifestEntry, error) {
	ctrl, err := r.buildController(entry, branching)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("failed to build controller: %w", err)
	}
	simulator := r.buildSimulator(entry.Profile)

	stem := profileStem(entry.Path)
	patientID := fmt.Sprintf("EVAL_%s_%s", configName, util.DerivePatientID(stem))
	recorder, err := session.NewRecorder(patientID, filepath.Join(r.outputDir, "sessions"))
	if err != nil {
		return ManifestEntry{}, err
	}

	state := models.NewDialogueState()
	prompt := ctrl.FirstPrompt()

	// Hard ceiling on turns: every question plus its free-dialogue budget,
	// with slack for the terminal turn.
	maxTurns := ctrl.QuestionCount() * (flow.DefaultFreeDialogueCap + 2)
	questionID := 0
	for turnNum := 0; turnNum < maxTurns; turnNum++ {
		answer := simulator.Answer(ctx, prompt, state.QAHistory)
		var turn flow.Turn
		state, turn, err = ctrl.Advance(ctx, state, answer)
		if err != nil {
			return ManifestEntry{}, fmt.Errorf("advance failed on turn %d: %w", turnNum, err)
		}
		questionID++
		recorder.LogQA(questionID, prompt, answer, turn.Reply)
		if turn.Done {
			break
		}
		prompt = turn.NextPrompt
	}

	csvPath, err := recorder.Save(entry.Profile)
	if err != nil {
		return ManifestEntry{}, err
	}
	return ManifestEntry{
		SessionIndex:     index,
		Config:           configName,
		ProfileName:      stem,
		PatientID:        patientID,
		BranchingEnabled: branching,
		TotalQuestions:   len(state.QAHistory),
		CSVPath:          csvPath,
	}, nil
}

func (r *Runner) writeManifest(manifest Manifest) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(r.outputDir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func profileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
