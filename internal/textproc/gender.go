package textproc

import (
	"regexp"
	"strings"
)

// GenderTag is the normalized grammatical gender of the patient.
type GenderTag string

const (
	GenderMasculine    GenderTag = "MASCHILE"
	GenderFeminine     GenderTag = "FEMMINILE"
	GenderUnspecified  GenderTag = "NON_SPECIFICATO"
)

// GenderLabel normalizes a profile gender field to a GenderTag.
func GenderLabel(gender string) GenderTag {
	switch strings.ToUpper(strings.TrimSpace(gender)) {
	case "M", "MALE", "UOMO", "MASCHIO", "MASCHILE":
		return GenderMasculine
	case "F", "FEMALE", "DONNA", "FEMMINA", "FEMMINILE":
		return GenderFeminine
	default:
		return GenderUnspecified
	}
}

// Feminine->masculine adjective pairs; the feminine map is the inverse.
var toMasculine = map[string]string{
	"preoccupata": "preoccupato",
	"stressata":   "stressato",
	"determinata": "determinato",
	"legata":      "legato",
	"stata":       "stato",
	"serena":      "sereno",
	"tranquilla":  "tranquillo",
	"angosciata":  "angosciato",
	"spaventata":  "spaventato",
	"stanca":      "stanco",
}

var toFeminine = func() map[string]string {
	m := make(map[string]string, len(toMasculine))
	for f, masc := range toMasculine {
		m[masc] = f
	}
	return m
}()

var wordPatternCache = map[string]*regexp.Regexp{}

func wordPattern(word string) *regexp.Regexp {
	if re, ok := wordPatternCache[word]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	wordPatternCache[word] = re
	return re
}

// CoerceGender rewrites grammatical gender markers in text to agree with
// the patient's recorded gender. Unspecified gender leaves text unchanged.
func CoerceGender(text string, tag GenderTag) string {
	var repl map[string]string
	switch tag {
	case GenderMasculine:
		repl = toMasculine
	case GenderFeminine:
		repl = toFeminine
	default:
		return text
	}

	out := text
	for from, to := range repl {
		out = wordPattern(from).ReplaceAllString(out, to)
	}
	return out
}

// Scripted questions are authored in the masculine; only the feminine
// needs rewriting.
var questionFeminineReplacements = map[string]string{
	"si è sentito":                "si è sentita",
	"è riuscito":                  "è riuscita",
	"particolarmente preoccupato": "particolarmente preoccupata",
	"pensa di essersi sentito":    "pensa di essersi sentita",
	"si è sentito in difficoltà":  "si è sentita in difficoltà",
}

// FormatQuestionForGender adapts a scripted question to the patient's gender.
func FormatQuestionForGender(question string, tag GenderTag) string {
	if tag != GenderFeminine {
		return question
	}
	out := question
	for from, to := range questionFeminineReplacements {
		out = strings.ReplaceAll(out, from, to)
	}
	return out
}
