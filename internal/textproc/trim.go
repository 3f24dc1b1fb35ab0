package textproc

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe       = regexp.MustCompile(`\s+`)
	sentenceBoundaryRe = regexp.MustCompile(`([.!?])\s+`)
	interrogativeRe    = regexp.MustCompile(`(?i)^\s*(come|cosa|quando|dove|perché|perchè|chi|quale|quanto)\b`)
	labelRe            = regexp.MustCompile(`(?im)^\s*(riflesso|validazione|valido|valida)\s*:\s*`)
	informalRes        = []*regexp.Regexp{
		regexp.MustCompile(`\btu\b`),
		regexp.MustCompile(`\bti\b`),
		regexp.MustCompile(`\bte\b`),
		regexp.MustCompile(`\btua\b`),
		regexp.MustCompile(`\btuo\b`),
		regexp.MustCompile(`\bstai\b`),
		regexp.MustCompile(`\bsei\b`),
		regexp.MustCompile(`\bper te\b`),
	}
)

// TrimToMaxSentences truncates text at a sentence boundary after at most
// maxSentences sentences. This is a hard client-side cap applied to
// generated replies regardless of what the model produced.
func TrimToMaxSentences(text string, maxSentences int) string {
	s := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if s == "" || maxSentences <= 0 {
		return ""
	}
	parts := sentenceBoundaryRe.Split(s, -1)
	boundaries := sentenceBoundaryRe.FindAllStringSubmatch(s, -1)
	if len(parts) <= maxSentences {
		return s
	}
	var b strings.Builder
	for i := 0; i < maxSentences; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(parts[i])
		if i < len(boundaries) {
			b.WriteString(boundaries[i][1])
		}
	}
	return strings.TrimSpace(b.String())
}

// StripQuestions removes lines that are clearly questions, so a generated
// acknowledgement never asks its own follow-up.
func StripQuestions(text string) string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if interrogativeRe.MatchString(ln) {
			continue
		}
		if strings.HasSuffix(ln, "?") {
			continue
		}
		lines = append(lines, ln)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// StripLabels removes leading labels such as "Riflesso:" or "Validazione:"
// that instruction-tuned models tend to prepend.
func StripLabels(text string) string {
	out := labelRe.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))
}

// IsFormalOK reports whether the text avoids informal address (tu/ti/te);
// replies to patients must keep the formal register.
func IsFormalOK(text string) bool {
	low := strings.ToLower(text)
	for _, re := range informalRes {
		if re.MatchString(low) {
			return false
		}
	}
	return true
}
