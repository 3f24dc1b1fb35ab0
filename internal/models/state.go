// Package models defines dialogue state structures for DiaryPipe sessions.
package models

// DialogueMode is the top-level mode of the per-question state machine.
type DialogueMode string

const (
	// ModeMain means the controller is asking scripted questions in order.
	ModeMain DialogueMode = "main"
	// ModeFreeDialogue means the controller is inside the bounded follow-up sub-loop.
	ModeFreeDialogue DialogueMode = "free_dialogue"
)

// DialogueState is the complete mutable state of one interview session.
// It is an explicit value passed into and returned from each controller
// call; no ambient session object exists, so sessions replay
// deterministically given the same inputs.
type DialogueState struct {
	// CurrentIndex is the 0-based index of the current scripted question.
	// It never decreases.
	CurrentIndex int `json:"current_index"`

	// Mode selects between the main flow and the free-dialogue sub-loop.
	Mode DialogueMode `json:"mode"`

	// FreeDialogueCount counts follow-up iterations spent on the current
	// main question. Reset to zero when the index advances.
	FreeDialogueCount int `json:"free_dialogue_count"`

	// FreeDialogueUsed marks that the current question has spent its one
	// permitted free-dialogue entry, regardless of remaining iterations.
	FreeDialogueUsed bool `json:"free_dialogue_used"`

	// QAHistory is append-only; insertion order is chronological and its
	// length equals the number of turns taken, follow-ups included.
	QAHistory []QAEntry `json:"qa_history"`

	// BranchHistory is append-only; one event exists for every
	// free-dialogue turn.
	BranchHistory []BranchEvent `json:"branch_history"`

	// PendingFollowUp is the follow-up question awaiting an answer while
	// in free dialogue; empty in main mode.
	PendingFollowUp string `json:"pending_follow_up,omitempty"`

	// Done is set on explicit user exit or after the final question's
	// turn completes.
	Done bool `json:"done"`
}

// NewDialogueState returns the initial state for a fresh session.
func NewDialogueState() DialogueState {
	return DialogueState{Mode: ModeMain}
}

// InFreeDialogue reports whether the session is inside the follow-up sub-loop.
func (s DialogueState) InFreeDialogue() bool {
	return s.Mode == ModeFreeDialogue
}
