// Package similarity implements the pure similarity kernel: source
// normalization, the language-agnostic lexer, Jaccard scoring, and the label
// projection exposed to result consumers.
//
// Everything in this package is deterministic. Given the same input bytes,
// normalized text, token sequence, and score are bit-identical across runs
// and across processes; the pipeline's content-addressed cache depends on it.
package similarity

import "strings"

// Normalize canonicalizes source text before tokenization:
// lines are split on any line boundary, trailing whitespace is stripped from
// each line, fully empty leading and trailing lines are dropped, and the
// remainder is joined with "\n".
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	lines := splitLines(text)
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\v\f\r")
	}

	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}

	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}

// splitLines splits on line boundaries: \r\n counts as a single boundary and
// a bare \r (classic-Mac line endings) ends a line just like \n. A trailing
// newline does not produce an extra empty line beyond what the trim discards.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	boundaries := strings.NewReplacer("\r\n", "\n", "\r", "\n")

	return strings.Split(boundaries.Replace(text), "\n")
}
