package signal

import (
	"github.com/empatia-lab/DiaryPipe/internal/models"
	"github.com/empatia-lab/DiaryPipe/internal/textproc"
)

// Verdict is one sub-detector's opinion about an answer.
type Verdict struct {
	Emotion    models.Emotion
	Intensity  models.Intensity
	Themes     []string
	Confidence float64
}

// minKeywordLen skips keyword detection on answers too short to carry
// a reliable emotion marker.
const minKeywordLen = 3

// KeywordVerdict runs the deterministic keyword pass. It returns a verdict
// only when exactly one emotion lexicon matches; zero or multiple matches
// yield nil, leaving the decision to the probabilistic pass.
func KeywordVerdict(answer string) *Verdict {
	normalized := textproc.Normalize(answer)
	if len(normalized) < minKeywordLen {
		return nil
	}

	var matched models.Emotion
	matches := 0
	for _, emotion := range models.AllEmotions {
		keywords, ok := emotionKeywords[emotion]
		if !ok {
			continue
		}
		if textproc.ContainsAny(normalized, keywords) {
			matched = emotion
			matches++
		}
	}
	if matches != 1 {
		return nil
	}

	return &Verdict{
		Emotion:   matched,
		Intensity: inferIntensity(normalized),
	}
}

// inferIntensity reads intensifier markers out of the sentence.
func inferIntensity(normalized string) models.Intensity {
	if textproc.ContainsAny(normalized, strongIntensifiers) {
		return models.IntensityHigh
	}
	return models.IntensityMedium
}
