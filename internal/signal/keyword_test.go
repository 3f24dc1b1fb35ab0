package signal

import (
	"testing"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

func TestKeywordVerdict(t *testing.T) {
	tests := []struct {
		name          string
		answer        string
		wantEmotion   models.Emotion
		wantIntensity models.Intensity
		wantNil       bool
	}{
		{
			name:          "fear stem matches inflected form",
			answer:        "Stanotte ero spaventata, non respiravo bene",
			wantEmotion:   models.EmotionFear,
			wantIntensity: models.IntensityMedium,
		},
		{
			name:          "intensifier raises intensity",
			answer:        "Ho molta paura di cadere di nuovo",
			wantEmotion:   models.EmotionFear,
			wantIntensity: models.IntensityHigh,
		},
		{
			name:          "sadness phrase",
			answer:        "Mi sento giù, non ce la faccio da sola in casa",
			wantEmotion:   models.EmotionSadness,
			wantIntensity: models.IntensityMedium,
		},
		{
			name:    "no lexicon hit",
			answer:  "Ho mangiato la minestra a pranzo",
			wantNil: true,
		},
		{
			name:    "too short",
			answer:  "sì",
			wantNil: true,
		},
		{
			name:    "multiple emotions match, pass abstains",
			answer:  "Ero felice ma anche triste allo stesso tempo",
			wantNil: true,
		},
		{
			name:          "happiness",
			answer:        "Oggi sono contenta, è venuta mia figlia",
			wantEmotion:   models.EmotionHappiness,
			wantIntensity: models.IntensityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeywordVerdict(tt.answer)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("KeywordVerdict(%q) = %+v, want nil", tt.answer, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("KeywordVerdict(%q) = nil, want verdict", tt.answer)
			}
			if got.Emotion != tt.wantEmotion {
				t.Errorf("emotion = %v, want %v", got.Emotion, tt.wantEmotion)
			}
			if got.Intensity != tt.wantIntensity {
				t.Errorf("intensity = %v, want %v", got.Intensity, tt.wantIntensity)
			}
		})
	}
}
