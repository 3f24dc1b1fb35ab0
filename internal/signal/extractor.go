package signal

import (
	"context"
	"log/slog"

	"github.com/empatia-lab/DiaryPipe/internal/models"
	"github.com/empatia-lab/DiaryPipe/internal/textproc"
)

// minWordsForModel is the word count under which the model call is
// skipped entirely; short answers carry too little signal to justify it.
const minWordsForModel = 5

// Extractor produces a unified Signal per answer.
type Extractor struct {
	classifier Classifier
}

// NewExtractor creates an extractor over the given classifier. A nil
// classifier disables the probabilistic pass (keyword-only operation).
func NewExtractor(classifier Classifier) *Extractor {
	return &Extractor{classifier: classifier}
}

// Extract classifies one answer. It never fails: every error path
// degrades to a defined fallback so the dialogue turn always completes.
func (e *Extractor) Extract(ctx context.Context, question, answer string) models.Signal {
	keyword := KeywordVerdict(answer)

	if e.classifier == nil || len(textproc.Tokens(answer)) < minWordsForModel {
		// Keyword-only resolution. A keyword verdict wins outright; with
		// nothing matched the blended default applies.
		if keyword != nil {
			return models.Signal{
				Emotion:    keyword.Emotion,
				Intensity:  keyword.Intensity,
				Themes:     keyword.Themes,
				Confidence: KeywordWinConfidence,
				Source:     models.SourceKeyword,
			}
		}
		return models.FallbackSignal()
	}

	model, err := ModelVerdict(ctx, e.classifier, question, answer)
	if err != nil {
		slog.Warn("signal.Extract: model pass failed, using fallback resolution", "error", err)
		model = nil
	}

	sig := Resolve(keyword, model)
	slog.Debug("signal.Extract: resolved",
		"emotion", sig.Emotion, "intensity", sig.Intensity,
		"confidence", sig.Confidence, "source", sig.Source)
	return sig
}
