package similarity

import "regexp"

// tokenPattern scans normalized text left to right and emits, in source
// order, identifiers, integer literals, the multi-char operators, and single
// punctuation characters. Alternation order matters: multi-char operators
// must win over their single-char prefixes. Everything else (whitespace
// included) is skipped.
var tokenPattern = regexp.MustCompile(
	`[A-Za-z_][A-Za-z0-9_]*` +
		`|\d+` +
		`|==|!=|<=|>=|->|\+\+|--|&&|\|\|` +
		`|[{}()\[\];,.:+\-*/%<>=]`,
)

// Tokenize lexes normalized source text into an ordered token sequence.
// It works across languages precisely because it understands none of them;
// anything smarter would break the cross-language determinism the scoring
// contract requires.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}
