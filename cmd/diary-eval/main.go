// Command diary-eval generates paired simulated interview sessions for
// offline evaluation, alternating runs with the free-dialogue branch
// enabled and disabled on the same profiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/empatia-lab/DiaryPipe/internal/composer"
	"github.com/empatia-lab/DiaryPipe/internal/config"
	"github.com/empatia-lab/DiaryPipe/internal/flow"
	"github.com/empatia-lab/DiaryPipe/internal/genai"
	"github.com/empatia-lab/DiaryPipe/internal/lockfile"
	"github.com/empatia-lab/DiaryPipe/internal/models"
	"github.com/empatia-lab/DiaryPipe/internal/retrieval"
	"github.com/empatia-lab/DiaryPipe/internal/signal"
	"github.com/empatia-lab/DiaryPipe/internal/sim"
	"github.com/empatia-lab/DiaryPipe/internal/store"
	"github.com/empatia-lab/DiaryPipe/internal/textproc"
	"github.com/empatia-lab/DiaryPipe/internal/util"
)

// DefaultSessionsPerConfig matches the standard evaluation protocol of ten
// paired sessions per arm.
const DefaultSessionsPerConfig = 10

func main() {
	initializeLogger()

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	stateDir := flag.String("state-dir", envOr("DIARYPIPE_STATE_DIR", "/var/lib/diarypipe"), "state directory for DiaryPipe data")
	dbDSN := flag.String("db-dsn", os.Getenv("DATABASE_URL"), "database DSN for index artifacts (empty uses in-memory)")
	openaiKey := flag.String("openai-api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key (overrides $OPENAI_API_KEY)")
	profilesDir := flag.String("profiles-dir", envOr("DIARYPIPE_PROFILES_DIR", ""), "directory containing patient profile JSON files")
	outputDir := flag.String("output-dir", "", "directory for transcripts and manifest (defaults under state dir)")
	sessionsPerConfig := flag.Int("sessions-per-config", DefaultSessionsPerConfig, "sessions to generate per configuration arm")
	questionsPath := flag.String("questions", os.Getenv("DIARYPIPE_QUESTIONS_FILE"), "diary questions JSON file (empty uses embedded defaults)")
	followUpsPath := flag.String("followups", os.Getenv("DIARYPIPE_FOLLOWUPS_FILE"), "follow-up templates JSON file (empty uses embedded defaults)")
	freeDialogueCap := flag.Int("free-dialogue-cap", util.ParseIntEnv("DIARYPIPE_FREE_DIALOGUE_CAP", flow.DefaultFreeDialogueCap), "maximum follow-up turns per question")
	flag.Parse()

	if *profilesDir == "" {
		*profilesDir = filepath.Join(*stateDir, "profiles")
	}
	if *outputDir == "" {
		*outputDir = filepath.Join(*stateDir, "evaluation_results")
	}

	if err := run(*stateDir, *dbDSN, *openaiKey, *profilesDir, *outputDir, *questionsPath, *followUpsPath, *sessionsPerConfig, *freeDialogueCap); err != nil {
		slog.Error("diary-eval failed", "error", err)
		os.Exit(1)
	}
}

func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DIARYPIPE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(stateDir, dbDSN, openaiKey, profilesDir, outputDir, questionsPath, followUpsPath string, sessionsPerConfig, freeDialogueCap int) error {
	ctx := context.Background()

	lock, err := lockfile.Acquire(stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.NewStore(store.WithDSN(dbDSN))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	client, err := genai.NewClient(genai.WithAPIKey(openaiKey))
	if err != nil {
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	questions, err := config.LoadQuestions(questionsPath)
	if err != nil {
		return err
	}
	templates, err := config.LoadFollowUps(followUpsPath)
	if err != nil {
		return err
	}
	followUps, err := flow.NewFollowUpSet(templates)
	if err != nil {
		return err
	}

	profiles, err := config.ListProfiles(profilesDir)
	if err != nil {
		return err
	}

	buildController := func(entry config.ProfileEntry, branching bool) (*flow.Controller, error) {
		stem := strings.TrimSuffix(filepath.Base(entry.Path), filepath.Ext(entry.Path))
		gender := textproc.GenderLabel(entry.Profile.Gender)
		retriever := retrieval.NewRetriever(client, st, util.DerivePatientID(stem))
		index, err := retriever.Index(ctx, entry.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to index profile %s: %w", stem, err)
		}
		return flow.NewController(
			questions,
			followUps,
			signal.NewExtractor(client),
			retrieval.NewBound(retriever, index),
			composer.NewComposer(client, gender),
			gender,
			flow.Config{
				FreeDialogueCap:  freeDialogueCap,
				ContextK:         retrieval.DefaultK,
				BranchingEnabled: branching,
			},
		)
	}
	buildSimulator := func(p models.Profile) *sim.Simulator {
		return sim.NewSimulator(client, p)
	}

	runner, err := sim.NewRunner(profiles, buildController, buildSimulator, outputDir, sessionsPerConfig)
	if err != nil {
		return err
	}
	manifest, err := runner.RunAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Generated %d sessions (run %s)\n", manifest.Metadata.TotalSessions, manifest.Metadata.RunID)
	fmt.Printf("Output directory: %s\n", outputDir)
	return nil
}
