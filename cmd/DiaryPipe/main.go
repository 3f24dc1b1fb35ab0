package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/empatia-lab/DiaryPipe/internal/composer"
	"github.com/empatia-lab/DiaryPipe/internal/config"
	"github.com/empatia-lab/DiaryPipe/internal/flow"
	"github.com/empatia-lab/DiaryPipe/internal/genai"
	"github.com/empatia-lab/DiaryPipe/internal/lockfile"
	"github.com/empatia-lab/DiaryPipe/internal/models"
	"github.com/empatia-lab/DiaryPipe/internal/retrieval"
	"github.com/empatia-lab/DiaryPipe/internal/session"
	"github.com/empatia-lab/DiaryPipe/internal/signal"
	"github.com/empatia-lab/DiaryPipe/internal/store"
	"github.com/empatia-lab/DiaryPipe/internal/textproc"
	"github.com/empatia-lab/DiaryPipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for DiaryPipe state data
	DefaultStateDir = "/var/lib/diarypipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "diarypipe.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	cfg := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(cfg)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("DiaryPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("DiaryPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	ProfilesDir     string
	QuestionsPath   string
	FollowUpsPath   string
	Branching       bool
	FreeDialogueCap int
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	openaiKey       *string
	profilesDir     *string
	profile         *string
	questionsPath   *string
	followUpsPath   *string
	branching       *bool
	freeDialogueCap *int
}

// initializeLogger sets up structured logging. Diagnostics go to stderr so
// the interview itself stays readable on stdout.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DIARYPIPE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("DIARYPIPE_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		ProfilesDir:     os.Getenv("DIARYPIPE_PROFILES_DIR"),
		QuestionsPath:   os.Getenv("DIARYPIPE_QUESTIONS_FILE"),
		FollowUpsPath:   os.Getenv("DIARYPIPE_FOLLOWUPS_FILE"),
		Branching:       util.ParseBoolEnv("DIARYPIPE_BRANCHING", true),
		FreeDialogueCap: util.ParseIntEnv("DIARYPIPE_FREE_DIALOGUE_CAP", flow.DefaultFreeDialogueCap),
	}

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
		slog.Debug("No DIARYPIPE_STATE_DIR set, using default", "default_state_dir", cfg.StateDir)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.DatabaseURL)
	}
	if cfg.ProfilesDir == "" {
		cfg.ProfilesDir = filepath.Join(cfg.StateDir, "profiles")
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"DIARYPIPE_STATE_DIR", cfg.StateDir,
		"OPENAI_API_KEY_SET", cfg.OpenAIKey != "",
		"DIARYPIPE_PROFILES_DIR", cfg.ProfilesDir,
		"DIARYPIPE_BRANCHING", cfg.Branching,
		"DIARYPIPE_FREE_DIALOGUE_CAP", cfg.FreeDialogueCap)

	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", cfg.StateDir, "state directory for DiaryPipe data (overrides $DIARYPIPE_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", cfg.DatabaseURL, "database DSN, postgres:// URL or SQLite file path (overrides $DATABASE_URL)"),
		openaiKey:       flag.String("openai-api-key", cfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		profilesDir:     flag.String("profiles-dir", cfg.ProfilesDir, "directory containing patient profile JSON files (overrides $DIARYPIPE_PROFILES_DIR)"),
		profile:         flag.String("profile", "", "profile file to use, skipping the interactive menu"),
		questionsPath:   flag.String("questions", cfg.QuestionsPath, "diary questions JSON file (empty uses embedded defaults)"),
		followUpsPath:   flag.String("followups", cfg.FollowUpsPath, "follow-up templates JSON file (empty uses embedded defaults)"),
		branching:       flag.Bool("branching", cfg.Branching, "enable the free-dialogue branch (overrides $DIARYPIPE_BRANCHING)"),
		freeDialogueCap: flag.Int("free-dialogue-cap", cfg.FreeDialogueCap, "maximum follow-up turns per question (overrides $DIARYPIPE_FREE_DIALOGUE_CAP)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"profilesDir", *flags.profilesDir,
		"profile", *flags.profile,
		"branching", *flags.branching,
		"freeDialogueCap", *flags.freeDialogueCap)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == cfg.DatabaseURL && cfg.DatabaseURL == filepath.Join(cfg.StateDir, DefaultDBFileName) && *flags.stateDir != cfg.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return os.MkdirAll(filepath.Join(*flags.stateDir, "sessions"), 0755)
}

// run wires the modules and drives one interactive interview.
func run(flags Flags) error {
	ctx := context.Background()
	stdin := bufio.NewScanner(os.Stdin)

	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.NewStore(store.WithDSN(*flags.dbDSN))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	questions, err := config.LoadQuestions(*flags.questionsPath)
	if err != nil {
		return err
	}
	templates, err := config.LoadFollowUps(*flags.followUpsPath)
	if err != nil {
		return err
	}
	followUps, err := flow.NewFollowUpSet(templates)
	if err != nil {
		return err
	}

	entry, err := selectProfile(flags, stdin)
	if err != nil {
		return err
	}
	profileStem := strings.TrimSuffix(filepath.Base(entry.Path), filepath.Ext(entry.Path))
	patientID := util.DerivePatientID(profileStem)
	gender := textproc.GenderLabel(entry.Profile.Gender)

	fmt.Printf("\nProfilo caricato: %s\n", models.SafeField(entry.Profile.Name))
	fmt.Printf("Patient ID: %s\n\n", patientID)

	retriever := retrieval.NewRetriever(client, st, patientID)
	index, err := retriever.Index(ctx, entry.Profile)
	if err != nil {
		return fmt.Errorf("failed to index profile: %w", err)
	}

	ctrl, err := flow.NewController(
		questions,
		followUps,
		signal.NewExtractor(client),
		retrieval.NewBound(retriever, index),
		composer.NewComposer(client, gender),
		gender,
		flow.Config{
			FreeDialogueCap:  *flags.freeDialogueCap,
			ContextK:         retrieval.DefaultK,
			BranchingEnabled: *flags.branching,
		},
	)
	if err != nil {
		return err
	}

	recorder, err := session.NewRecorder(patientID, filepath.Join(*flags.stateDir, "sessions"))
	if err != nil {
		return err
	}

	state, err := runInterview(ctx, ctrl, recorder, stdin)
	if err != nil {
		return err
	}

	if _, err := recorder.Save(entry.Profile); err != nil {
		slog.Error("Failed to save session transcript", "error", err)
	}
	sess := store.Session{
		ID:        recorder.SessionID,
		PatientID: patientID,
		StartedAt: startedAt(recorder),
		EndedAt:   time.Now(),
		State:     state,
	}
	if err := st.SaveSession(sess); err != nil {
		slog.Error("Failed to persist session", "error", err, "sessionID", sess.ID)
	}

	fmt.Printf("\n%s\n  FINE DIALOGO\n%s\n", strings.Repeat("=", 50), strings.Repeat("=", 50))
	fmt.Printf("Domande risposte: %d\n", len(state.QAHistory))
	return nil
}

// runInterview drives the question loop over stdin until the session ends.
func runInterview(ctx context.Context, ctrl *flow.Controller, recorder *session.Recorder, scanner *bufio.Scanner) (models.DialogueState, error) {
	state := models.NewDialogueState()
	prompt := ctrl.FirstPrompt()
	questionID := 0

	fmt.Println("Scrivi 'q' o 'esci' per terminare in qualsiasi momento.")
	for {
		fmt.Printf("\n> %s\n? ", prompt)
		if !scanner.Scan() {
			slog.Info("Input closed, ending session", "turns", len(state.QAHistory))
			state.Done = true
			return state, scanner.Err()
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			continue
		}

		next, turn, err := ctrl.Advance(ctx, state, answer)
		if err != nil {
			return state, err
		}
		state = next

		questionID++
		recorder.LogQA(questionID, prompt, answer, turn.Reply)
		if turn.Reply != "" {
			fmt.Println(turn.Reply)
		}
		if turn.Done {
			return state, nil
		}
		prompt = turn.NextPrompt
	}
}

// selectProfile picks the patient profile, either from the -profile flag or
// through an interactive menu that remembers the last choice.
func selectProfile(flags Flags, scanner *bufio.Scanner) (config.ProfileEntry, error) {
	if *flags.profile != "" {
		profile, err := config.LoadProfile(*flags.profile)
		if err != nil {
			return config.ProfileEntry{}, err
		}
		return config.ProfileEntry{Path: *flags.profile, Profile: profile}, nil
	}

	entries, err := config.ListProfiles(*flags.profilesDir)
	if err != nil {
		return config.ProfileEntry{}, err
	}
	if len(entries) == 0 {
		return config.ProfileEntry{}, fmt.Errorf("no profiles found in %s", *flags.profilesDir)
	}

	last := config.LoadLastProfile(*flags.stateDir)
	defaultIdx := 0
	for i, e := range entries {
		if e.Path == last {
			defaultIdx = i
			break
		}
	}

	fmt.Println("Profili disponibili:")
	for i, e := range entries {
		marker := " "
		if i == defaultIdx {
			marker = "*"
		}
		fmt.Printf("%s %2d) %s (%s anni, %s)\n", marker, i+1,
			models.SafeField(e.Profile.Name),
			models.SafeField(e.Profile.Age),
			models.SafeField(e.Profile.MainCondition))
	}
	fmt.Printf("Scegli un profilo [%d]: ", defaultIdx+1)

	choice := defaultIdx
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			n, err := strconv.Atoi(input)
			if err != nil || n < 1 || n > len(entries) {
				return config.ProfileEntry{}, fmt.Errorf("invalid profile selection %q", input)
			}
			choice = n - 1
		}
	}

	selected := entries[choice]
	if err := config.SaveLastProfile(*flags.stateDir, selected.Path); err != nil {
		slog.Warn("Failed to remember profile selection", "error", err)
	}
	return selected, nil
}

// startedAt recovers the session start from the recorder's first logged
// exchange, falling back to now for empty sessions.
func startedAt(recorder *session.Recorder) time.Time {
	entries := recorder.Entries()
	if len(entries) > 0 {
		return entries[0].Timestamp
	}
	return time.Now()
}
