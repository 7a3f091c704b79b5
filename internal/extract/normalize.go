package extract

import (
	"regexp"
	"strings"
)

var (
	reCRLF        = regexp.MustCompile(`\r\n?`)
	reTabs        = regexp.MustCompile(`\t+`)
	reMultiSpace  = regexp.MustCompile(` {2,}`)
	reO0Artifacts = regexp.MustCompile(`([A-Za-z])0([A-Za-z])`) // "0" misread for "O" inside words
)

// normalizeText collapses noisy whitespace and fixes common OCR artifacts.
// Returns the cleaned text and a confidence derived from how much had to
// change.
func normalizeText(s string) (string, float32) {
	if s == "" {
		return "", 0
	}
	out := reCRLF.ReplaceAllString(s, "\n")
	out = reTabs.ReplaceAllString(out, " ")
	out = reMultiSpace.ReplaceAllString(out, " ")
	out = reO0Artifacts.ReplaceAllString(out, "${1}O${2}")
	out = strings.TrimSpace(out)

	if out == "" {
		return "", 0
	}
	// The less the normalizer had to rewrite, the more we trust it.
	changed := len(s) - len(out)
	if changed < 0 {
		changed = -changed
	}
	conf := 1.0 - float32(changed)/float32(len(s))
	if conf < 0.5 {
		conf = 0.5
	}
	return out, conf
}
