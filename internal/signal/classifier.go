package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// Classifier obtains a structured emotion verdict from the probabilistic
// collaborator. Implemented by genai.Client via the narrow interface below.
type Classifier interface {
	Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// classifierThemes is the closed tag set offered to the model; free-text
// themes outside it are kept as-is (themes are tags, not an enum).
var classifierThemes = []string{
	"autonomia/mobilità",
	"dolore/malessere fisico",
	"farmaci/terapie",
	"sonno/fatica",
	"ansia/panico/respirazione",
	"memoria/cognizione",
	"famiglia/visite",
	"solitudine/supporto sociale",
	"routine/attività quotidiane",
	"paure sul futuro",
	"alimentazione/appetito",
	"sicurezza/cadute",
}

const maxThemes = 3

func classifierSystemPrompt() string {
	var emotions []string
	for _, e := range models.AllEmotions {
		emotions = append(emotions, string(e))
	}
	return "Sei un assistente che analizza risposte di pazienti anziani " +
		"per estrarre segnali emotivi e tematici.\n\n" +
		"IMPORTANTE: Rispondi SOLO con un JSON valido, nessun testo extra.\n\n" +
		"Categorie disponibili:\n" +
		"- Emozioni: " + strings.Join(emotions, ", ") + "\n" +
		"- Intensità: low, medium, high\n" +
		"- Temi: " + strings.Join(classifierThemes, ", ") + "\n\n" +
		"Analizza la risposta e restituisci SOLO questo JSON:\n" +
		"{\n" +
		"  \"emotion\": \"<emozione predominante>\",\n" +
		"  \"intensity\": \"<low|medium|high>\",\n" +
		"  \"themes\": [\"<tema1>\", \"<tema2>\"],\n" +
		"  \"confidence\": <0.0-1.0>\n" +
		"}\n\n" +
		"Regole:\n" +
		"- Scegli SOLO dalle categorie sopra\n" +
		"- themes: lista (max 3 temi più rilevanti)\n" +
		"- confidence: stima accuratezza (0.0-1.0)\n" +
		"- Se incerto: usa 'neutral' e confidence bassa\n"
}

// classifierResult mirrors the JSON contract with the model.
type classifierResult struct {
	Emotion    string   `json:"emotion"`
	Intensity  string   `json:"intensity"`
	Themes     []string `json:"themes"`
	Confidence float64  `json:"confidence"`
}

// ModelVerdict submits the answer with minimal instructional framing and
// parses the structured response. Any failure, transport or parse, returns
// (nil, err); the caller degrades to the fallback Signal.
func ModelVerdict(ctx context.Context, classifier Classifier, question, answer string) (*Verdict, error) {
	userPrompt := fmt.Sprintf("Domanda: %s\n\nRisposta: %s\n\nJSON:", question, answer)

	raw, err := classifier.Classify(ctx, classifierSystemPrompt(), userPrompt)
	if err != nil {
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		slog.Warn("signal.ModelVerdict: unparseable classifier output", "error", err, "rawLength", len(raw))
		return nil, err
	}
	return verdict, nil
}

// parseVerdict decodes and validates the classifier's JSON, tolerating
// stray text around the object.
func parseVerdict(raw string) (*Verdict, error) {
	payload := strings.TrimSpace(raw)
	if start, end := strings.Index(payload, "{"), strings.LastIndex(payload, "}"); start >= 0 && end > start {
		payload = payload[start : end+1]
	}

	var result classifierResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("invalid classifier JSON: %w", err)
	}

	emotion, ok := models.ParseEmotion(result.Emotion)
	if !ok {
		return nil, fmt.Errorf("classifier returned unknown emotion %q", result.Emotion)
	}
	intensity, ok := models.ParseIntensity(result.Intensity)
	if !ok {
		return nil, fmt.Errorf("classifier returned unknown intensity %q", result.Intensity)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("classifier confidence %v out of range", result.Confidence)
	}

	themes := result.Themes
	if len(themes) > maxThemes {
		themes = themes[:maxThemes]
	}

	return &Verdict{
		Emotion:    emotion,
		Intensity:  intensity,
		Themes:     themes,
		Confidence: result.Confidence,
	}, nil
}
