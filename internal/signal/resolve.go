package signal

import "github.com/empatia-lab/DiaryPipe/internal/models"

// ModelOverrideConfidence is the threshold above which a disagreeing
// model verdict overrides the keyword verdict.
const ModelOverrideConfidence = 0.7

// KeywordWinConfidence is assigned when the keyword verdict wins a
// disagreement; keyword matching is treated as higher-precision for this
// language's fixed-phrase idioms.
const KeywordWinConfidence = 0.75

// Resolve reconciles the two passes into a single Signal. It is a pure
// function over an exhaustive decision table:
//
//	model failed            -> hard fallback (neutral, low, 0.3)
//	keyword absent          -> model verdict
//	agreement               -> agreed emotion, keyword intensity, model confidence
//	disagree, conf > 0.7    -> model verdict
//	disagree, conf <= 0.7   -> keyword verdict
func Resolve(keyword, model *Verdict) models.Signal {
	if model == nil {
		return models.FallbackSignal()
	}

	if keyword == nil {
		return models.Signal{
			Emotion:    model.Emotion,
			Intensity:  model.Intensity,
			Themes:     model.Themes,
			Confidence: model.Confidence,
			Source:     models.SourceModel,
		}
	}

	if keyword.Emotion == model.Emotion {
		return models.Signal{
			Emotion:    keyword.Emotion,
			Intensity:  keyword.Intensity,
			Themes:     mergeThemes(keyword.Themes, model.Themes),
			Confidence: model.Confidence,
			Source:     models.SourceAgreement,
		}
	}

	if model.Confidence > ModelOverrideConfidence {
		return models.Signal{
			Emotion:    model.Emotion,
			Intensity:  model.Intensity,
			Themes:     model.Themes,
			Confidence: model.Confidence,
			Source:     models.SourceModel,
		}
	}

	return models.Signal{
		Emotion:    keyword.Emotion,
		Intensity:  keyword.Intensity,
		Themes:     keyword.Themes,
		Confidence: KeywordWinConfidence,
		Source:     models.SourceKeyword,
	}
}

// mergeThemes keeps insertion order and removes duplicates.
func mergeThemes(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	seen := make(map[string]bool, len(a)+len(b))
	var merged []string
	for _, t := range append(append([]string{}, a...), b...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	return merged
}
