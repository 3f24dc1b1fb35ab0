package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/empatia-lab/DiaryPipe/internal/models"
	"github.com/empatia-lab/DiaryPipe/internal/textproc"
)

// Errors returned by the controller.
var (
	ErrSessionDone = errors.New("session already terminated")
)

// DefaultFreeDialogueCap bounds follow-up iterations per main question.
// The cap is configurable because source material disagreed on the value;
// two iterations is the default, one entry per question is a hard rule.
const DefaultFreeDialogueCap = 2

// SignalExtractor classifies one answer. Implemented by signal.Extractor.
type SignalExtractor interface {
	Extract(ctx context.Context, question, answer string) models.Signal
}

// ContextRetriever returns profile chunks relevant to a query.
// Implemented by retrieval.Bound.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.ProfileChunk, error)
}

// ReplyComposer renders the empathic reply for an answered question.
// Implemented by composer.Composer.
type ReplyComposer interface {
	Compose(ctx context.Context, question models.Question, answer string, sig models.Signal, chunks []models.ProfileChunk, state models.DialogueState) string
}

// Config holds controller tunables.
type Config struct {
	// FreeDialogueCap is the maximum follow-up iterations per question.
	FreeDialogueCap int
	// ContextK bounds retrieved profile chunks per turn.
	ContextK int
	// BranchingEnabled turns the free-dialogue sub-loop off entirely
	// (used by the evaluation harness for ablation runs).
	BranchingEnabled bool
}

// DefaultConfig returns the standard controller configuration.
func DefaultConfig() Config {
	return Config{
		FreeDialogueCap:  DefaultFreeDialogueCap,
		ContextK:         3,
		BranchingEnabled: true,
	}
}

// Turn is the outcome of one Advance call: the empathic reply to the
// answer just given, and the next prompt to put to the patient.
type Turn struct {
	Reply      string
	NextPrompt string
	Done       bool
	Branched   bool
}

// Controller orchestrates the per-question state machine. It holds only
// read-only collaborators; all mutable session state travels through the
// explicit DialogueState value, so sessions replay deterministically.
type Controller struct {
	questions []models.Question
	followUps *FollowUpSet
	extractor SignalExtractor
	retriever ContextRetriever
	composer  ReplyComposer
	gender    textproc.GenderTag
	cfg       Config
	now       func() time.Time
}

// NewController wires a controller for one session.
func NewController(questions []models.Question, followUps *FollowUpSet, extractor SignalExtractor, retriever ContextRetriever, composer ReplyComposer, gender textproc.GenderTag, cfg Config) (*Controller, error) {
	if len(questions) == 0 {
		return nil, models.ErrNoQuestions
	}
	for _, q := range questions {
		if q.Text == "" {
			return nil, fmt.Errorf("%w: id %q", models.ErrEmptyQuestionText, q.ID)
		}
	}
	if followUps == nil {
		return nil, models.ErrMissingGenericFU
	}
	if cfg.FreeDialogueCap <= 0 {
		cfg.FreeDialogueCap = DefaultFreeDialogueCap
	}
	if cfg.ContextK <= 0 {
		cfg.ContextK = 3
	}
	return &Controller{
		questions: questions,
		followUps: followUps,
		extractor: extractor,
		retriever: retriever,
		composer:  composer,
		gender:    gender,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// QuestionCount returns the number of scripted questions.
func (c *Controller) QuestionCount() int {
	return len(c.questions)
}

// FirstPrompt returns the opening question, gender-formatted.
func (c *Controller) FirstPrompt() string {
	return textproc.FormatQuestionForGender(c.questions[0].Text, c.gender)
}

// isExit recognizes the explicit user exit signal.
func isExit(input string) bool {
	switch textproc.Normalize(input) {
	case "q", "esci":
		return true
	}
	return false
}

// Advance processes one user answer and decides whether to proceed to the
// next scripted question, enter or continue free dialogue, or terminate.
// The state goes in and comes back out by value; the caller owns it.
func (c *Controller) Advance(ctx context.Context, state models.DialogueState, input string) (models.DialogueState, Turn, error) {
	if state.Done {
		return state, Turn{Done: true}, ErrSessionDone
	}
	if state.CurrentIndex >= len(c.questions) {
		// Terminal flag must be set the moment the last question's turn
		// completes; reaching here is a programming error.
		panic(fmt.Sprintf("flow: current index %d beyond question count %d without terminal flag", state.CurrentIndex, len(c.questions)))
	}

	if isExit(input) {
		slog.Info("flow.Advance: explicit exit", "turns", len(state.QAHistory))
		state.Done = true
		state.PendingFollowUp = ""
		return state, Turn{Done: true}, nil
	}

	question := c.questions[state.CurrentIndex]
	questionText := question.Text
	if state.InFreeDialogue() {
		questionText = state.PendingFollowUp
	}

	sig := c.extractor.Extract(ctx, questionText, input)
	state.QAHistory = append(state.QAHistory, models.QAEntry{
		QuestionID: question.ID,
		Question:   questionText,
		Answer:     input,
		Timestamp:  c.now(),
		Signal:     sig,
		FollowUp:   state.InFreeDialogue(),
	})

	chunks := c.retrieveContext(ctx, questionText)
	evasive := textproc.IsEvasive(input)
	branch := c.cfg.BranchingEnabled && (evasive || sig.IsStrong())

	if state.InFreeDialogue() {
		if state.FreeDialogueCount > c.cfg.FreeDialogueCap {
			// Invariant: the count may reach the cap only on the turn that
			// forces the transition back to main.
			panic(fmt.Sprintf("flow: free dialogue count %d exceeds cap %d", state.FreeDialogueCount, c.cfg.FreeDialogueCap))
		}
		if branch && state.FreeDialogueCount < c.cfg.FreeDialogueCap {
			return c.continueFreeDialogue(ctx, state, question, input, sig, chunks, evasive)
		}
		slog.Debug("flow.Advance: leaving free dialogue", "questionID", question.ID, "iterations", state.FreeDialogueCount)
		state.Mode = models.ModeMain
		state.PendingFollowUp = ""
		return c.advanceMain(ctx, state, question, input, sig, chunks)
	}

	if branch && !state.FreeDialogueUsed {
		state.Mode = models.ModeFreeDialogue
		state.FreeDialogueUsed = true
		return c.continueFreeDialogue(ctx, state, question, input, sig, chunks, evasive)
	}

	return c.advanceMain(ctx, state, question, input, sig, chunks)
}

// continueFreeDialogue selects a follow-up, records the branch event, and
// keeps the session inside the sub-loop.
func (c *Controller) continueFreeDialogue(ctx context.Context, state models.DialogueState, question models.Question, input string, sig models.Signal, chunks []models.ProfileChunk, evasive bool) (models.DialogueState, Turn, error) {
	key, reason := c.followUps.selectKey(evasive, sig)
	usedKey, followUp := c.followUps.Pick(key)

	state.FreeDialogueCount++
	state.BranchHistory = append(state.BranchHistory, models.BranchEvent{
		QuestionID:  question.ID,
		Reason:      reason,
		FollowUpKey: usedKey,
		Turn:        len(state.QAHistory) - 1,
		Timestamp:   c.now(),
	})
	state.PendingFollowUp = followUp

	slog.Info("flow: entering free dialogue turn",
		"questionID", question.ID, "reason", reason, "followUpKey", usedKey, "count", state.FreeDialogueCount)

	reply := c.composer.Compose(ctx, question, input, sig, chunks, state)
	return state, Turn{
		Reply:      reply,
		NextPrompt: textproc.FormatQuestionForGender(followUp, c.gender),
		Branched:   true,
	}, nil
}

// advanceMain emits the empathic reply and moves to the next scripted
// question, terminating after the last one.
func (c *Controller) advanceMain(ctx context.Context, state models.DialogueState, question models.Question, input string, sig models.Signal, chunks []models.ProfileChunk) (models.DialogueState, Turn, error) {
	reply := c.composer.Compose(ctx, question, input, sig, chunks, state)

	state.CurrentIndex++
	state.FreeDialogueCount = 0
	state.FreeDialogueUsed = false

	if state.CurrentIndex >= len(c.questions) {
		state.Done = true
		slog.Info("flow: interview complete", "turns", len(state.QAHistory))
		return state, Turn{Reply: reply, Done: true}, nil
	}

	next := textproc.FormatQuestionForGender(c.questions[state.CurrentIndex].Text, c.gender)
	return state, Turn{Reply: reply, NextPrompt: next}, nil
}

// retrieveContext fetches profile chunks; failures degrade to no context.
func (c *Controller) retrieveContext(ctx context.Context, query string) []models.ProfileChunk {
	if c.retriever == nil {
		return nil
	}
	chunks, err := c.retriever.Retrieve(ctx, query, c.cfg.ContextK)
	if err != nil {
		slog.Warn("flow.retrieveContext: retrieval failed, continuing without context", "error", err)
		return nil
	}
	return chunks
}
