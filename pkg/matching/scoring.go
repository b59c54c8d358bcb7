package matching

import (
	"math"
	"sort"
	"strings"
)

// Scorer provides the string and value comparison algorithms used when
// scoring catalog candidates against a line.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings
// Returns a value between 0.0 (no similarity) and 1.0 (exact match)
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	jaro := s.Jaro(a, b)

	// Winkler modification: boost for common prefix
	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(a) && i < len(b) && i < maxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// Levenshtein calculates the Levenshtein distance between two strings
// Returns a similarity score between 0.0 and 1.0
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// TokenSortRatio compares two strings with their tokens sorted
// alphabetically first. Wine names reorder freely ("Margaux Chateau 2015"
// vs "Chateau Margaux 2015") so raw edit distance under-scores them.
func (s *Scorer) TokenSortRatio(a, b string) float64 {
	return s.JaroWinkler(sortTokens(a), sortTokens(b))
}

// TokenSetRatio scores on the intersection and remainders of the two token
// sets. Forgiving of extra marketing tokens on one side.
func (s *Scorer) TokenSetRatio(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)

	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0.0
	}

	var common, aOnly, bOnly []string
	for tok := range aTokens {
		if bTokens[tok] {
			common = append(common, tok)
		} else {
			aOnly = append(aOnly, tok)
		}
	}
	for tok := range bTokens {
		if !aTokens[tok] {
			bOnly = append(bOnly, tok)
		}
	}

	sort.Strings(common)
	sort.Strings(aOnly)
	sort.Strings(bOnly)

	base := strings.Join(common, " ")
	full1 := strings.TrimSpace(base + " " + strings.Join(aOnly, " "))
	full2 := strings.TrimSpace(base + " " + strings.Join(bOnly, " "))

	if base == "" {
		return s.JaroWinkler(full1, full2)
	}

	score := s.JaroWinkler(full1, full2)
	if r := s.JaroWinkler(base, full1); r > score {
		score = r
	}
	if r := s.JaroWinkler(base, full2); r > score {
		score = r
	}
	return score
}

// NumericProximity calculates a proximity score for two numbers
// Returns 1.0 for exact match, decreasing based on difference
func (s *Scorer) NumericProximity(a, b, maxDiff float64) float64 {
	if a == b {
		return 1.0
	}

	diff := math.Abs(a - b)
	if diff >= maxDiff {
		return 0.0
	}

	return 1.0 - (diff / maxDiff)
}

// WeightedScore calculates a weighted average of scores
func (s *Scorer) WeightedScore(scores map[string]float64, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	var totalWeight float64
	var weightedSum float64

	for field, score := range scores {
		weight := 1.0 // Default weight
		if w, ok := weights[field]; ok {
			weight = w
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.0
	}

	return weightedSum / totalWeight
}

func sortTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
