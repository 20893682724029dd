package generator

import (
	"regexp"
	"strings"
)

var fenceRE = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")

// narrativePrefixes mark lines where the model has drifted from SQL into
// prose. Extraction stops at the first such line.
var narrativePrefixes = []string{"explanation", "reason", "note"}

// ExtractSQL pulls a single bare statement out of free-form model output.
// Code fences are unwrapped, narrative trailers are cut, and everything
// after the first semicolon is dropped. The result may still be invalid
// SQL; admissibility is the validator's job.
func ExtractSQL(raw string) string {
	text := strings.TrimSpace(raw)

	if m := fenceRE.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		stop := false
		for _, p := range narrativePrefixes {
			if strings.HasPrefix(lower, p) {
				stop = true
				break
			}
		}
		if stop {
			break
		}
		kept = append(kept, line)
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	// A statement ends at the first semicolon; anything after is a second
	// statement or chatter.
	if i := strings.Index(text, ";"); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}

	return text
}
