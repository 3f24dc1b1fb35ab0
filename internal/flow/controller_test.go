package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/empatia-lab/DiaryPipe/internal/models"
	"github.com/empatia-lab/DiaryPipe/internal/textproc"
)

// scriptedExtractor returns signals keyed by answer text, defaulting to a
// calm neutral signal.
type scriptedExtractor struct {
	signals map[string]models.Signal
}

func (s *scriptedExtractor) Extract(ctx context.Context, question, answer string) models.Signal {
	if sig, ok := s.signals[answer]; ok {
		return sig
	}
	return models.Signal{Emotion: models.EmotionNeutral, Intensity: models.IntensityLow, Confidence: 0.9, Source: models.SourceModel}
}

// recordingComposer captures each Compose call.
type recordingComposer struct {
	calls []string
}

func (r *recordingComposer) Compose(ctx context.Context, question models.Question, answer string, sig models.Signal, chunks []models.ProfileChunk, state models.DialogueState) string {
	r.calls = append(r.calls, answer)
	return "Capisco."
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(ctx context.Context, query string, k int) ([]models.ProfileChunk, error) {
	return nil, errors.New("store offline")
}

func testQuestions() []models.Question {
	return []models.Question{
		{ID: "q1", Text: "Come si è sentito oggi?"},
		{ID: "q2", Text: "Ha dormito bene?"},
		{ID: "q3", Text: "Ha visto qualcuno oggi?"},
	}
}

func testFollowUps(t *testing.T) *FollowUpSet {
	t.Helper()
	s, err := NewFollowUpSet(map[models.FollowUpKey][]string{
		models.FollowUpEvasive: {"Mi racconti qualcosa in più?"},
		models.FollowUpGeneric: {"Vuole aggiungere qualcosa?"},
		models.FollowUpFear:    {"Cosa la preoccupa di più?"},
	})
	if err != nil {
		t.Fatal(err)
	}
	s.SetRand(func(n int) int { return 0 })
	return s
}

func newTestController(t *testing.T, extractor SignalExtractor, cfg Config) (*Controller, *recordingComposer) {
	t.Helper()
	comp := &recordingComposer{}
	ctrl, err := NewController(testQuestions(), testFollowUps(t), extractor, nil, comp, textproc.GenderUnspecified, cfg)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return ctrl, comp
}

func TestNewControllerValidation(t *testing.T) {
	followUps := testFollowUps(t)
	comp := &recordingComposer{}

	if _, err := NewController(nil, followUps, &scriptedExtractor{}, nil, comp, textproc.GenderUnspecified, DefaultConfig()); !errors.Is(err, models.ErrNoQuestions) {
		t.Errorf("no questions error = %v, want ErrNoQuestions", err)
	}

	bad := []models.Question{{ID: "q1", Text: ""}}
	if _, err := NewController(bad, followUps, &scriptedExtractor{}, nil, comp, textproc.GenderUnspecified, DefaultConfig()); !errors.Is(err, models.ErrEmptyQuestionText) {
		t.Errorf("empty text error = %v, want ErrEmptyQuestionText", err)
	}

	if _, err := NewController(testQuestions(), nil, &scriptedExtractor{}, nil, comp, textproc.GenderUnspecified, DefaultConfig()); err == nil {
		t.Error("nil follow-up set should fail")
	}
}

func TestAdvanceCommittedAnswerMovesOn(t *testing.T) {
	ctrl, comp := newTestController(t, &scriptedExtractor{}, DefaultConfig())
	state := models.NewDialogueState()

	state, turn, err := ctrl.Advance(context.Background(), state, "Oggi è stata una giornata tranquilla")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if turn.Branched {
		t.Error("calm committed answer should not branch")
	}
	if state.CurrentIndex != 1 {
		t.Errorf("index = %d, want 1", state.CurrentIndex)
	}
	if turn.NextPrompt != "Ha dormito bene?" {
		t.Errorf("next prompt = %q", turn.NextPrompt)
	}
	if turn.Reply != "Capisco." {
		t.Errorf("reply = %q", turn.Reply)
	}
	if len(comp.calls) != 1 {
		t.Errorf("composer calls = %d, want 1", len(comp.calls))
	}
	if len(state.QAHistory) != 1 || state.QAHistory[0].FollowUp {
		t.Errorf("history = %+v", state.QAHistory)
	}
}

func TestAdvanceEvasiveAnswerEntersFreeDialogue(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedExtractor{}, DefaultConfig())
	state := models.NewDialogueState()

	state, turn, err := ctrl.Advance(context.Background(), state, "no")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if !turn.Branched {
		t.Fatal("evasive answer should branch")
	}
	if state.Mode != models.ModeFreeDialogue {
		t.Errorf("mode = %v, want free dialogue", state.Mode)
	}
	if state.FreeDialogueCount != 1 {
		t.Errorf("free dialogue count = %d, want 1", state.FreeDialogueCount)
	}
	if !state.FreeDialogueUsed {
		t.Error("free dialogue used flag should be set")
	}
	if state.CurrentIndex != 0 {
		t.Errorf("index = %d, want unchanged 0", state.CurrentIndex)
	}
	if turn.NextPrompt != "Mi racconti qualcosa in più?" {
		t.Errorf("next prompt = %q, want evasive follow-up", turn.NextPrompt)
	}
	if len(state.BranchHistory) != 1 || state.BranchHistory[0].Reason != "evasive" {
		t.Errorf("branch history = %+v", state.BranchHistory)
	}

	// A committed follow-up answer returns to the scripted flow.
	state, turn, err = ctrl.Advance(context.Background(), state, "Va bene, ho passato la mattina in giardino")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if state.Mode != models.ModeMain {
		t.Errorf("mode = %v, want main", state.Mode)
	}
	if state.CurrentIndex != 1 {
		t.Errorf("index = %d, want 1", state.CurrentIndex)
	}
	if !state.QAHistory[1].FollowUp {
		t.Error("second history entry should be marked as follow-up")
	}
	if turn.NextPrompt != "Ha dormito bene?" {
		t.Errorf("next prompt = %q", turn.NextPrompt)
	}
}

func TestAdvanceStrongEmotionUsesThematicFollowUp(t *testing.T) {
	extractor := &scriptedExtractor{signals: map[string]models.Signal{
		"Ho avuto tanta paura stanotte": {Emotion: models.EmotionFear, Intensity: models.IntensityHigh, Confidence: 0.9, Source: models.SourceAgreement},
	}}
	ctrl, _ := newTestController(t, extractor, DefaultConfig())
	state := models.NewDialogueState()

	state, turn, err := ctrl.Advance(context.Background(), state, "Ho avuto tanta paura stanotte")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if !turn.Branched {
		t.Fatal("strong fear should branch")
	}
	if turn.NextPrompt != "Cosa la preoccupa di più?" {
		t.Errorf("next prompt = %q, want fear follow-up", turn.NextPrompt)
	}
	if state.BranchHistory[0].Reason != "fear" || state.BranchHistory[0].FollowUpKey != models.FollowUpFear {
		t.Errorf("branch event = %+v", state.BranchHistory[0])
	}
}

func TestAdvanceFreeDialogueCapForcesReturn(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedExtractor{}, DefaultConfig())
	state := models.NewDialogueState()
	ctx := context.Background()

	var turn Turn
	var err error
	// Two consecutive evasive answers exhaust the default cap of 2.
	state, turn, err = ctrl.Advance(ctx, state, "no")
	if err != nil || !turn.Branched {
		t.Fatalf("first evasive: turn=%+v err=%v", turn, err)
	}
	state, turn, err = ctrl.Advance(ctx, state, "boh")
	if err != nil || !turn.Branched {
		t.Fatalf("second evasive: turn=%+v err=%v", turn, err)
	}
	if state.FreeDialogueCount != 2 {
		t.Fatalf("count = %d, want 2", state.FreeDialogueCount)
	}

	// A third evasive answer would branch again, but the cap forces the
	// return to the scripted flow.
	state, turn, err = ctrl.Advance(ctx, state, "non so")
	if err != nil {
		t.Fatalf("third evasive: %v", err)
	}
	if turn.Branched {
		t.Error("cap reached, turn should not branch")
	}
	if state.Mode != models.ModeMain {
		t.Errorf("mode = %v, want main", state.Mode)
	}
	if state.CurrentIndex != 1 {
		t.Errorf("index = %d, want 1", state.CurrentIndex)
	}
	if state.FreeDialogueCount != 0 || state.FreeDialogueUsed {
		t.Errorf("counters not reset: count=%d used=%v", state.FreeDialogueCount, state.FreeDialogueUsed)
	}
}

func TestAdvanceBranchingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BranchingEnabled = false
	ctrl, _ := newTestController(t, &scriptedExtractor{}, cfg)
	state := models.NewDialogueState()

	state, turn, err := ctrl.Advance(context.Background(), state, "no")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if turn.Branched {
		t.Error("branching disabled, evasive answer must not branch")
	}
	if state.CurrentIndex != 1 {
		t.Errorf("index = %d, want 1", state.CurrentIndex)
	}
}

func TestAdvanceIndexNeverDecreases(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedExtractor{}, DefaultConfig())
	state := models.NewDialogueState()
	ctx := context.Background()

	answers := []string{"no", "un po' di giardinaggio", "bene grazie", "mia figlia è passata"}
	lastIndex := 0
	for _, a := range answers {
		next, _, err := ctrl.Advance(ctx, state, a)
		if err != nil {
			t.Fatalf("Advance(%q) error = %v", a, err)
		}
		if next.CurrentIndex < lastIndex {
			t.Fatalf("index decreased: %d -> %d", lastIndex, next.CurrentIndex)
		}
		lastIndex = next.CurrentIndex
		state = next
		if state.Done {
			break
		}
	}
}

func TestAdvanceExplicitExit(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedExtractor{}, DefaultConfig())
	state := models.NewDialogueState()
	ctx := context.Background()

	state, _, err := ctrl.Advance(ctx, state, "Tutto bene stamattina")
	if err != nil {
		t.Fatal(err)
	}

	state, turn, err := ctrl.Advance(ctx, state, "esci")
	if err != nil {
		t.Fatalf("exit error = %v", err)
	}
	if !turn.Done || !state.Done {
		t.Error("exit should terminate the session")
	}
	// History up to the exit is preserved; the exit token itself is not an answer.
	if len(state.QAHistory) != 1 {
		t.Errorf("history length = %d, want 1", len(state.QAHistory))
	}

	if _, _, err := ctrl.Advance(ctx, state, "ancora"); !errors.Is(err, ErrSessionDone) {
		t.Errorf("Advance() after done error = %v, want ErrSessionDone", err)
	}
}

func TestAdvanceCompletesAfterLastQuestion(t *testing.T) {
	ctrl, _ := newTestController(t, &scriptedExtractor{}, DefaultConfig())
	state := models.NewDialogueState()
	ctx := context.Background()

	var turn Turn
	var err error
	for i := 0; i < ctrl.QuestionCount(); i++ {
		state, turn, err = ctrl.Advance(ctx, state, "Tutto tranquillo, grazie")
		if err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
	}
	if !turn.Done || !state.Done {
		t.Error("session should be done after the last answer")
	}
	if turn.NextPrompt != "" {
		t.Errorf("next prompt after completion = %q, want empty", turn.NextPrompt)
	}
	if len(state.QAHistory) != 3 {
		t.Errorf("history length = %d, want 3", len(state.QAHistory))
	}
}

func TestAdvanceRetrieverFailureDegrades(t *testing.T) {
	comp := &recordingComposer{}
	ctrl, err := NewController(testQuestions(), testFollowUps(t), &scriptedExtractor{}, failingRetriever{}, comp, textproc.GenderUnspecified, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	state := models.NewDialogueState()
	if _, _, err := ctrl.Advance(context.Background(), state, "Una giornata come le altre"); err != nil {
		t.Errorf("retriever failure must not fail the turn: %v", err)
	}
}

func TestFirstPromptGenderFormatting(t *testing.T) {
	comp := &recordingComposer{}
	ctrl, err := NewController(testQuestions(), testFollowUps(t), &scriptedExtractor{}, nil, comp, textproc.GenderFeminine, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got := ctrl.FirstPrompt(); !strings.Contains(got, "sentita") {
		t.Errorf("FirstPrompt() = %q, want feminine agreement", got)
	}
}
