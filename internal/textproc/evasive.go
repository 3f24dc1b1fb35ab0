package textproc

// EvasiveMaxLen is the character threshold under which a lexicon hit
// marks an answer as evasive.
const EvasiveMaxLen = 15

// EvasiveKeywords is the fixed lexicon of non-committal phrases.
var EvasiveKeywords = []string{
	"no", "niente", "non ricordo", "non so", "nulla",
	"non mi viene in mente", "boh", "mah",
}

// IsEvasive reports whether an answer is evasive: empty, a bare lexicon
// member, or very short while containing a lexicon phrase.
func IsEvasive(answer string) bool {
	normalized := Normalize(answer)
	if normalized == "" {
		return true
	}
	if len(normalized) <= EvasiveMaxLen && ContainsAny(normalized, EvasiveKeywords) {
		return true
	}
	for _, kw := range EvasiveKeywords {
		if normalized == kw {
			return true
		}
	}
	return false
}
