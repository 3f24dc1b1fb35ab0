// Package composer renders the empathic reply for each turn: a templated
// fast path for single-token answers, a generative path otherwise.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/empatia-lab/DiaryPipe/internal/models"
	"github.com/empatia-lab/DiaryPipe/internal/retrieval"
	"github.com/empatia-lab/DiaryPipe/internal/textproc"
)

// MaxReplySentences is the hard client-side cap on generated replies.
const MaxReplySentences = 2

// historyTurns is how many recent QA turns are included in the prompt.
const historyTurns = 3

// Generator is the text-generation collaborator; implemented by
// genai.Client.
type Generator interface {
	GeneratePromptWithTemperature(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// fastPathTemplates maps recognized single-token answers to pre-authored
// acknowledgement variants; one is picked at random per turn to avoid
// verbatim repetition.
var fastPathTemplates = map[string][]string{
	"bene": {
		"Mi fa piacere sentirlo.",
		"Sono contenta che sia andata bene.",
		"È una bella notizia, grazie per averla condivisa.",
	},
	"male": {
		"Mi dispiace sentirlo.",
		"Capisco, non deve essere stato facile.",
		"Mi dispiace che sia stata una giornata difficile.",
	},
	"sì": {
		"Va bene, grazie.",
		"D'accordo, la ringrazio.",
	},
	"si": {
		"Va bene, grazie.",
		"D'accordo, la ringrazio.",
	},
	"no": {
		"Va bene, capisco.",
		"D'accordo, non c'è problema.",
	},
	"abbastanza": {
		"Capisco, grazie.",
		"Va bene, grazie per avermelo detto.",
	},
	"niente": {
		"Va bene, capisco.",
		"D'accordo, andiamo avanti con calma.",
	},
}

// fallbackReply is emitted when the generative collaborator fails; the
// turn must always produce some reply.
const fallbackReply = "La ringrazio per aver condiviso questo con me."

// Composer assembles empathic replies.
type Composer struct {
	generator   Generator
	temperature float64
	gender      textproc.GenderTag
	rng         func(n int) int
}

// Option configures a Composer.
type Option func(*Composer)

// WithTemperature overrides the generation temperature.
func WithTemperature(t float64) Option {
	return func(c *Composer) { c.temperature = t }
}

// WithRand replaces the random source for template selection (tests).
func WithRand(fn func(n int) int) Option {
	return func(c *Composer) { c.rng = fn }
}

// NewComposer creates a composer for one session. The gender tag drives
// the agreement transform on every emitted reply.
func NewComposer(generator Generator, gender textproc.GenderTag, opts ...Option) *Composer {
	c := &Composer{
		generator:   generator,
		temperature: 0.65,
		gender:      gender,
		rng:         rand.IntN,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders the reply for one answered question. It never returns
// an error: generation failures degrade to a canned empathic line.
func (c *Composer) Compose(ctx context.Context, question models.Question, answer string, sig models.Signal, chunks []models.ProfileChunk, state models.DialogueState) string {
	if reply, ok := c.fastPath(answer); ok {
		slog.Debug("composer.Compose: fast path", "questionID", question.ID)
		return textproc.CoerceGender(reply, c.gender)
	}

	reply, err := c.generate(ctx, question, answer, sig, chunks, state)
	if err != nil {
		slog.Warn("composer.Compose: generation failed, using fallback reply", "error", err, "questionID", question.ID)
		reply = fallbackReply
	}
	return textproc.CoerceGender(reply, c.gender)
}

// fastPath matches the normalized answer against the closed token set and
// picks a template variant uniformly at random.
func (c *Composer) fastPath(answer string) (string, bool) {
	token := textproc.Normalize(answer)
	token = strings.Trim(token, ".!?,")
	variants, ok := fastPathTemplates[token]
	if !ok || len(variants) == 0 {
		return "", false
	}
	return variants[c.rng(len(variants))], true
}

func (c *Composer) generate(ctx context.Context, question models.Question, answer string, sig models.Signal, chunks []models.ProfileChunk, state models.DialogueState) (string, error) {
	systemPrompt := "Sei un assistente empatico che accompagna un paziente anziano " +
		"nella compilazione del diario clinico quotidiano.\n" +
		"Rispondi con una breve riflessione empatica in italiano formale (dare del Lei).\n" +
		"Massimo due frasi. Non fare domande. Non usare etichette o elenchi."

	var b strings.Builder
	if profileCtx := retrieval.FormatContext(chunks); profileCtx != "" {
		b.WriteString("Contesto dal profilo del paziente:\n")
		b.WriteString(profileCtx)
		b.WriteString("\n\n")
	}

	if recent := recentHistory(state, historyTurns); recent != "" {
		b.WriteString("Ultimi scambi:\n")
		b.WriteString(recent)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Segnali rilevati: emozione=%s, intensità=%s", sig.Emotion, sig.Intensity)
	if len(sig.Themes) > 0 {
		fmt.Fprintf(&b, ", temi=%s", strings.Join(sig.Themes, ", "))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Domanda: %s\nRisposta del paziente: %s\n\n", question.Text, answer)
	b.WriteString("Scrivi la riflessione empatica:")

	raw, err := c.generator.GeneratePromptWithTemperature(ctx, systemPrompt, b.String(), c.temperature)
	if err != nil {
		return "", err
	}

	reply := textproc.StripLabels(textproc.StripQuestions(raw))
	reply = textproc.TrimToMaxSentences(reply, MaxReplySentences)
	if reply == "" {
		return "", fmt.Errorf("generated reply empty after post-processing")
	}
	return reply, nil
}

// recentHistory renders the last n turns for prompt context.
func recentHistory(state models.DialogueState, n int) string {
	history := state.QAHistory
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var lines []string
	for _, qa := range history {
		lines = append(lines, fmt.Sprintf("D: %s\nR: %s", qa.Question, qa.Answer))
	}
	return strings.Join(lines, "\n")
}
