// Package models defines the core data structures for DiaryPipe.
//
// It includes the emotion taxonomy, extracted signals, diary questions,
// follow-up templates, and patient profiles shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Emotion is one of the seven fixed Ekman categories used throughout.
type Emotion string

const (
	EmotionAnger     Emotion = "anger"
	EmotionFear      Emotion = "fear"
	EmotionSadness   Emotion = "sadness"
	EmotionHappiness Emotion = "happiness"
	EmotionSurprise  Emotion = "surprise"
	EmotionDisgust   Emotion = "disgust"
	EmotionNeutral   Emotion = "neutral"
)

// AllEmotions lists the full taxonomy in canonical order.
var AllEmotions = []Emotion{
	EmotionAnger,
	EmotionFear,
	EmotionSadness,
	EmotionHappiness,
	EmotionSurprise,
	EmotionDisgust,
	EmotionNeutral,
}

// IsValidEmotion checks whether e belongs to the fixed taxonomy.
func IsValidEmotion(e Emotion) bool {
	for _, known := range AllEmotions {
		if e == known {
			return true
		}
	}
	return false
}

// ParseEmotion maps free-form classifier output onto the taxonomy.
// Unknown labels map to EmotionNeutral with ok=false so callers can
// treat them as a classification miss rather than an error.
func ParseEmotion(s string) (Emotion, bool) {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if IsValidEmotion(e) {
		return e, true
	}
	return EmotionNeutral, false
}

// Intensity is the ordinal strength of a detected emotion.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// intensityRank orders intensities for comparison.
var intensityRank = map[Intensity]int{
	IntensityLow:    0,
	IntensityMedium: 1,
	IntensityHigh:   2,
}

// IsValidIntensity checks whether i is a known intensity level.
func IsValidIntensity(i Intensity) bool {
	_, ok := intensityRank[i]
	return ok
}

// ParseIntensity maps free-form classifier output onto an intensity level.
func ParseIntensity(s string) (Intensity, bool) {
	i := Intensity(strings.ToLower(strings.TrimSpace(s)))
	if IsValidIntensity(i) {
		return i, true
	}
	return IntensityLow, false
}

// AtLeast reports whether i is at or above the given level.
func (i Intensity) AtLeast(min Intensity) bool {
	return intensityRank[i] >= intensityRank[min]
}

// SignalSource records which sub-detector ultimately produced a Signal.
type SignalSource string

const (
	// SourceKeyword means the deterministic keyword pass won.
	SourceKeyword SignalSource = "keyword"
	// SourceModel means the probabilistic classifier won.
	SourceModel SignalSource = "model"
	// SourceAgreement means both passes agreed on the emotion.
	SourceAgreement SignalSource = "agreement"
	// SourceFallback means classification failed and the blended default applies.
	SourceFallback SignalSource = "fallback"
)

// Signal is the unified emotion/intensity/theme/confidence record
// produced by the signal extractor for one answer.
type Signal struct {
	Emotion    Emotion      `json:"emotion"`
	Intensity  Intensity    `json:"intensity"`
	Themes     []string     `json:"themes,omitempty"`
	Confidence float64      `json:"confidence"`
	Source     SignalSource `json:"source"`
}

// FallbackConfidence is the confidence assigned when classification fails.
const FallbackConfidence = 0.3

// FallbackSignal returns the hard fallback used when the probabilistic
// classifier produces unparseable output.
func FallbackSignal() Signal {
	return Signal{
		Emotion:    EmotionNeutral,
		Intensity:  IntensityLow,
		Themes:     nil,
		Confidence: FallbackConfidence,
		Source:     SourceFallback,
	}
}

// IsStrong reports whether the signal qualifies for emotion-driven
// branching: fear, anger, or sadness at medium or high intensity.
func (s Signal) IsStrong() bool {
	switch s.Emotion {
	case EmotionFear, EmotionAnger, EmotionSadness:
		return s.Intensity.AtLeast(IntensityMedium)
	default:
		return false
	}
}

// Question is one scripted diary question, consumed read-only.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

// FollowUpKey selects a set of follow-up templates. Keys are either
// FollowUpEvasive, FollowUpGeneric, or a strong-emotion category.
type FollowUpKey string

const (
	FollowUpEvasive FollowUpKey = "evasive"
	FollowUpGeneric FollowUpKey = "generic"
	FollowUpFear    FollowUpKey = "fear"
	FollowUpAnger   FollowUpKey = "anger"
	FollowUpSadness FollowUpKey = "sadness"
)

// FollowUpKeyForEmotion maps a strong emotion to its follow-up key.
func FollowUpKeyForEmotion(e Emotion) (FollowUpKey, bool) {
	switch e {
	case EmotionFear:
		return FollowUpFear, true
	case EmotionAnger:
		return FollowUpAnger, true
	case EmotionSadness:
		return FollowUpSadness, true
	default:
		return "", false
	}
}

// QAEntry records one turn of the interview: question, answer, and the
// signal extracted from the answer.
type QAEntry struct {
	QuestionID string    `json:"question_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Reply      string    `json:"reply,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Signal     Signal    `json:"signal"`
	FollowUp   bool      `json:"follow_up"`
}

// BranchEvent records one entry into (or continuation of) free dialogue.
type BranchEvent struct {
	QuestionID  string      `json:"question_id"`
	Reason      string      `json:"reason"` // "evasive" or the emotion label
	FollowUpKey FollowUpKey `json:"follow_up_key"`
	Turn        int         `json:"turn"` // index into QAHistory of the answer that triggered it
	Timestamp   time.Time   `json:"timestamp"`
}

// Validation errors shared across modules.
var (
	ErrNoQuestions        = errors.New("no diary questions configured")
	ErrEmptyQuestionText  = errors.New("diary question with empty text")
	ErrMissingGenericFU   = errors.New("follow-up set missing mandatory generic entry")
	ErrEmptyFollowUpSet   = errors.New("follow-up key with no templates")
	ErrInvalidFollowUpKey = errors.New("unknown follow-up key")
	ErrEmptyProfile       = errors.New("profile has no usable fields")
)
