// Package signal extracts emotion/intensity/theme signals from patient
// answers by reconciling a deterministic keyword pass with a probabilistic
// classifier call.
package signal

import "github.com/empatia-lab/DiaryPipe/internal/models"

// Per-emotion keyword lexicons. Entries are stems where Italian
// inflection varies ("spavent" covers spaventato/spaventata/spavento).
var emotionKeywords = map[models.Emotion][]string{
	models.EmotionFear: {
		"panico", "ansia", "ansios", "paura", "spavent",
		"affann", "respir", "batticuore", "battito", "tremor",
		"agitat", "agitaz", "preoccup", "timor",
	},
	models.EmotionAnger: {
		"rabbia", "arrabbiat", "furios", "frustrat", "irritat",
		"esasperat", "stufo", "stufa", "non ne posso più",
	},
	models.EmotionSadness: {
		"triste", "tristezz", "sconfort", "scoraggiat", "demoralizzat",
		"non ce la faccio", "depress", "piang", "lacrim",
		"solitudin", "abbandonat", "isolat", "vuoto dentro",
	},
	models.EmotionHappiness: {
		"felice", "felicità", "content", "gioia", "gioios", "allegr",
		"benissimo", "ottim", "seren", "tranquill",
	},
	models.EmotionSurprise: {
		"sorpres", "stupit", "incredibile", "non me lo aspettavo",
		"inaspettat", "meravigliat",
	},
	models.EmotionDisgust: {
		"disgust", "schifo", "nause", "ripugn", "mi fa senso",
	},
}

// Strong intensifiers push the inferred intensity to high; any other
// keyword match without one stays at medium.
var strongIntensifiers = []string{
	"molto", "molta", "moltissim", "tantissim", "davvero tant",
	"troppo", "troppa", "terribilmente", "estremamente", "da morire",
	"non ne posso più", "continuamente", "sempre peggio",
}
