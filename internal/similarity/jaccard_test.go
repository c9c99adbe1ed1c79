package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaccardPercent(t *testing.T) {
	tests := []struct {
		name    string
		tokensA []string
		tokensB []string
		want    float64
	}{
		{
			name:    "both empty scores 100",
			tokensA: nil,
			tokensB: nil,
			want:    100.0,
		},
		{
			name:    "one empty scores 0",
			tokensA: []string{"x"},
			tokensB: nil,
			want:    0.0,
		},
		{
			name:    "identical sequences score 100",
			tokensA: []string{"def", "f", "(", ")", ":"},
			tokensB: []string{"def", "f", "(", ")", ":"},
			want:    100.0,
		},
		{
			name:    "disjoint sets score 0",
			tokensA: []string{"a", "b", "c"},
			tokensB: []string{"x", "y", "z"},
			want:    0.0,
		},
		{
			name:    "duplicates collapse to unique sets",
			tokensA: []string{"a", "a", "a", "b"},
			tokensB: []string{"a", "b", "b", "b"},
			want:    100.0,
		},
		{
			name:    "renamed identifiers overlap on structure",
			tokensA: []string{"def", "fib", "(", "n", ")", ":", "return", "n", "+", "1"},
			tokensB: []string{"def", "fob", "(", "m", ")", ":", "return", "m", "+", "1"},
			want:    63.63636363636363,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaccardPercent(tt.tokensA, tt.tokensB), 1e-9)
		})
	}
}

// TestScorePipeline exercises the full Normalize -> Tokenize -> JaccardPercent
// chain on two renamed variants of the same function.
func TestScorePipeline(t *testing.T) {
	srcA := "def fib(n):   \n    return n + 1\n"
	srcB := "\ndef fob(m):\n    return m + 1"

	tokensA := Tokenize(Normalize(srcA))
	tokensB := Tokenize(Normalize(srcB))

	score := JaccardPercent(tokensA, tokensB)
	assert.InDelta(t, 63.63636363636363, score, 1e-9)
	assert.Equal(t, "medium", Label(score))
}

func TestLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.0, "low"},
		{40.0, "low"},
		{40.1, "medium"},
		{63.6, "medium"},
		{70.0, "medium"},
		{70.1, "high"},
		{100.0, "high"},
	}

	for _, tt := range tests {
		got := Label(tt.score)
		if got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
