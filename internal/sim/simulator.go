// Package sim generates synthetic diary sessions for evaluation. A
// profile-conditioned simulated patient answers the scripted questions so
// the full pipeline can be exercised without a human in the loop.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/empatia-lab/DiaryPipe/internal/models"
)

// SimulatorTemperature keeps simulated answers varied but not erratic.
const SimulatorTemperature = 0.7

// Generator produces the simulated patient's answers. Satisfied by
// genai.Client.
type Generator interface {
	GeneratePromptWithTemperature(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// evasiveFallbacks stand in when generation yields nothing usable.
var evasiveFallbacks = []string{
	"Non saprei...",
	"Boh, non mi ricordo bene.",
	"Abbastanza bene direi.",
	"Niente di particolare.",
}

// Simulator answers diary questions as an elderly patient described by a
// profile.
type Simulator struct {
	generator Generator
	profile   models.Profile
	rng       func(n int) int
}

// NewSimulator builds a simulator conditioned on the given profile.
func NewSimulator(generator Generator, profile models.Profile) *Simulator {
	return &Simulator{
		generator: generator,
		profile:   profile,
		rng:       rand.IntN,
	}
}

// SetRand overrides the fallback picker for deterministic tests.
func (s *Simulator) SetRand(fn func(n int) int) {
	s.rng = fn
}

// Answer generates a simulated patient answer to the question, given the
// last exchanges for conversational coherence.
func (s *Simulator) Answer(ctx context.Context, question string, history []models.QAEntry) string {
	system := s.systemPrompt()

	var user strings.Builder
	if len(history) > 0 {
		recent := history
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		user.WriteString("Contesto conversazione:\n")
		for _, qa := range recent {
			fmt.Fprintf(&user, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
		}
		user.WriteString("\n")
	}
	fmt.Fprintf(&user, "Domanda: %s", question)

	answer, err := s.generator.GeneratePromptWithTemperature(ctx, system, user.String(), SimulatorTemperature)
	if err != nil {
		slog.Warn("sim: answer generation failed, using evasive fallback", "error", err)
		return "Non so, non mi ricordo."
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return evasiveFallbacks[s.rng(len(evasiveFallbacks))]
	}
	return answer
}

func (s *Simulator) systemPrompt() string {
	var b strings.Builder
	name := s.profile.Name
	if strings.TrimSpace(name) == "" {
		name = "Paziente"
	}
	age := s.profile.Age
	if strings.TrimSpace(age) == "" {
		age = "75"
	}
	fmt.Fprintf(&b, "Sei %s, un paziente anziano di %s anni.\n", name, age)
	if s.profile.Gender != "" {
		fmt.Fprintf(&b, "Genere: %s\n", s.profile.Gender)
	}
	if s.profile.MainCondition != "" {
		fmt.Fprintf(&b, "Condizione principale: %s\n", s.profile.MainCondition)
	}
	if s.profile.CommunicationNeeds != "" {
		fmt.Fprintf(&b, "Stile comunicativo: %s\n", s.profile.CommunicationNeeds)
	}
	b.WriteString("\nRispondi alla domanda come farebbe un anziano vero:\n" +
		"- Usa un linguaggio naturale e informale\n" +
		"- Varia tra risposte dettagliate e brevi\n" +
		"- Occasionalmente sii evasivo ('non so', 'non ricordo')\n" +
		"- Esprimi emozioni quando appropriate (tristezza, ansia, gioia)\n" +
		"- Sii coerente con il tuo profilo\n" +
		"- Mantieni un tono anziano e autentico\n" +
		"\nRispondi SOLO con la risposta del paziente, niente altro.")
	return b.String()
}
