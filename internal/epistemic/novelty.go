package epistemic

import "strings"

// Tokenize lower-cases the text, strips non-alphanumerics, and splits on
// whitespace, returning the resulting token set.
func Tokenize(text string) map[string]struct{} {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(b.String()) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// NoveltyScore is 1 minus the maximum Jaccard similarity between the action
// description and every historical task description. A blank description or
// empty history scores maximally novel.
func NoveltyScore(description string, history []string) float64 {
	tokens := Tokenize(description)
	if len(tokens) == 0 || len(history) == 0 {
		return 1
	}

	maxSim := 0.0
	for _, prior := range history {
		if sim := Jaccard(tokens, Tokenize(prior)); sim > maxSim {
			maxSim = sim
		}
	}
	return 1 - maxSim
}
