package reflectcheck

import (
	"slices"

	"github.com/hbollon/go-edlib"
)

// minSimilarity is the Jaro-Winkler score a member name needs to be
// suggested.
const minSimilarity = 0.8

// suggest returns the declared member most similar to name, or "" when name
// is declared or nothing is similar enough.
func suggest(name string, members []string) string {
	if name == "" || slices.Contains(members, name) {
		return ""
	}
	var best string
	var bestScore float32
	for _, m := range members {
		score, err := edlib.StringsSimilarity(name, m, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score >= minSimilarity && score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}
