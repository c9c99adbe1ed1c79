package similarity

// Label thresholds exposed to result consumers. These are a client-facing
// contract: the UI buckets pairs by these exact boundaries.
const (
	labelHighAbove   = 70.0
	labelMediumAbove = 40.0
)

// JaccardPercent scores two token sequences as the Jaccard similarity of
// their unique-token sets, scaled to [0, 100].
//
// Edge cases are part of the contract: two empty sequences score 100
// (identical emptiness), one empty sequence scores 0.
func JaccardPercent(tokensA, tokensB []string) float64 {
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 100.0
	}

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}

	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union) * 100.0
}

// Label projects a score onto the client-facing risk label.
func Label(score float64) string {
	switch {
	case score > labelHighAbove:
		return "high"
	case score > labelMediumAbove:
		return "medium"
	default:
		return "low"
	}
}
