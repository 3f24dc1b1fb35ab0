// Package flow drives the per-question dialogue state machine: scripted
// questions in order, with a bounded free-dialogue sub-loop for follow-ups.
package flow

import (
	"fmt"
	"math/rand/v2"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// FollowUpSet maps follow-up keys to their pre-authored question
// templates. The generic entry is mandatory: template lookup must always
// produce something, so the controller can never block progression.
type FollowUpSet struct {
	templates map[models.FollowUpKey][]string
	rng       func(n int) int
}

// validFollowUpKeys is the closed key set accepted at load time.
var validFollowUpKeys = map[models.FollowUpKey]bool{
	models.FollowUpEvasive: true,
	models.FollowUpGeneric: true,
	models.FollowUpFear:    true,
	models.FollowUpAnger:   true,
	models.FollowUpSadness: true,
}

// NewFollowUpSet validates the configured templates at load time.
// Unknown keys and empty template lists are configuration errors; a
// missing generic entry is fatal because it is the last-resort fallback.
func NewFollowUpSet(templates map[models.FollowUpKey][]string) (*FollowUpSet, error) {
	for key, list := range templates {
		if !validFollowUpKeys[key] {
			return nil, fmt.Errorf("%w: %q", models.ErrInvalidFollowUpKey, key)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: %q", models.ErrEmptyFollowUpSet, key)
		}
	}
	if len(templates[models.FollowUpGeneric]) == 0 {
		return nil, models.ErrMissingGenericFU
	}
	return &FollowUpSet{templates: templates, rng: rand.IntN}, nil
}

// SetRand replaces the random source for template selection (tests).
func (s *FollowUpSet) SetRand(fn func(n int) int) {
	s.rng = fn
}

// Has reports whether the key has at least one template of its own.
func (s *FollowUpSet) Has(key models.FollowUpKey) bool {
	return len(s.templates[key]) > 0
}

// Pick returns one template for the key, falling back to the generic
// entry when the key has none configured.
func (s *FollowUpSet) Pick(key models.FollowUpKey) (models.FollowUpKey, string) {
	list := s.templates[key]
	if len(list) == 0 {
		key = models.FollowUpGeneric
		list = s.templates[key]
	}
	return key, list[s.rng(len(list))]
}

// selectKey applies the tie-break policy: the evasive check wins unless a
// theme-specific follow-up exists for the detected strong emotion.
func (s *FollowUpSet) selectKey(evasive bool, sig models.Signal) (models.FollowUpKey, string) {
	emotionKey, hasEmotion := models.FollowUpKeyForEmotion(sig.Emotion)
	strong := sig.IsStrong()

	switch {
	case evasive && strong && hasEmotion && s.Has(emotionKey):
		return emotionKey, string(sig.Emotion)
	case evasive:
		return models.FollowUpEvasive, string(models.FollowUpEvasive)
	case strong && hasEmotion:
		return emotionKey, string(sig.Emotion)
	default:
		return models.FollowUpGeneric, string(models.FollowUpGeneric)
	}
}
