package score

import (
	"math"
	"sort"
	"strings"
)

// jaroWinkler computes the Jaro-Winkler similarity between two strings as a
// percentage in [0, 100]: character-window matching plus a common-prefix
// bonus.
func jaroWinkler(s1, s2 string) float64 {
	s1 = strings.ToUpper(s1)
	s2 = strings.ToUpper(s2)

	if s1 == s2 {
		return 100.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	len1 := len(r1)
	len2 := len(r2)

	matchWindow := int(math.Max(float64(len1), float64(len2))/2.0) - 1
	if matchWindow < 1 {
		matchWindow = 1
	}

	s1Matches := make([]bool, len1)
	s2Matches := make([]bool, len2)

	matches := 0
	transpositions := 0

	for i := 0; i < len1; i++ {
		start := int(math.Max(0, float64(i-matchWindow)))
		end := int(math.Min(float64(len2), float64(i+matchWindow+1)))

		for j := start; j < end; j++ {
			if s2Matches[j] || r1[i] != r2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	k := 0
	for i := 0; i < len1; i++ {
		if !s1Matches[i] {
			continue
		}
		for !s2Matches[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	jaro := (float64(matches)/float64(len1) +
		float64(matches)/float64(len2) +
		float64(matches-transpositions/2)/float64(matches)) / 3.0

	prefixLen := 0
	maxPrefix := int(math.Min(4, math.Min(float64(len1), float64(len2))))
	for i := 0; i < maxPrefix; i++ {
		if r1[i] == r2[i] {
			prefixLen++
		} else {
			break
		}
	}

	winkler := jaro + (0.1 * float64(prefixLen) * (1.0 - jaro))

	return winkler * 100.0
}

// tokenSortRatio is an order-insensitive similarity: both token sequences
// are sorted before comparison, so "acme plumbing" and "plumbing acme"
// score identically.
func tokenSortRatio(a, b []string) int {
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	return clampRatio(jaroWinkler(strings.Join(sa, " "), strings.Join(sb, " ")))
}

// tokenSetRatio is a subset-tolerant similarity: the intersection and
// per-side differences of the two token sets are compared, so a name that
// is a strict superset of another's tokens still scores well.
func tokenSetRatio(a, b []string) int {
	setA := toSet(a)
	setB := toSet(b)

	var intersection, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			intersection = append(intersection, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(intersection)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sortedIntersection := strings.Join(intersection, " ")
	combinedA := strings.TrimSpace(sortedIntersection + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sortedIntersection + " " + strings.Join(onlyB, " "))

	best := jaroWinkler(sortedIntersection, combinedA)
	if r := jaroWinkler(sortedIntersection, combinedB); r > best {
		best = r
	}
	if r := jaroWinkler(combinedA, combinedB); r > best {
		best = r
	}
	return clampRatio(best)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func clampRatio(r float64) int {
	rounded := int(math.Round(r))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

// jaccard computes |A∩B| / |A∪B| over two token slices; an empty union
// scores 0, never dividing by zero.
func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	union := make(map[string]bool, len(setA)+len(setB))
	intersection := 0
	for t := range setA {
		union[t] = true
	}
	for t := range setB {
		union[t] = true
		if setA[t] {
			intersection++
		}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}
