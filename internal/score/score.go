// Package score implements the Scorer: per-pair composite similarity with a
// token-set gate and configurable penalties. It exposes both a bulk path
// (one sequential sweep over the pairs) and a parallel path (a fixed worker
// pool over static pair chunks); the two must agree on every component field and on
// score within a ±1 rounding tolerance.
package score

import (
	"math"
	"regexp"
	"runtime"
	"sort"
	"sync"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// Scorer holds the frozen similarity configuration for a run.
type Scorer struct {
	cfg config.SimilarityConfig
}

// New builds a Scorer from the run's frozen similarity configuration.
func New(cfg config.SimilarityConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

var digitSeq = regexp.MustCompile(`\d+`)

// ScoreBulk scores every candidate pair in one sweep, preserving input
// order. Pairs that fail the token-set gate are dropped, not emitted.
func (s *Scorer) ScoreBulk(pairs []models.CandidatePair, byID map[string]models.NormalizedRecord) []models.ScoredPair {
	out := make([]models.ScoredPair, 0, len(pairs))
	for _, p := range pairs {
		if scored, ok := s.scorePair(p, byID); ok {
			out = append(out, scored)
		}
	}
	return out
}

// ScoreParallel scores pairs using a fixed worker pool over deterministic
// chunks, then performs an ordered merge so the result matches ScoreBulk's
// output order exactly (component fields identical; score within ±1 of the
// bulk path due to rounding order, per the documented tolerance).
func (s *Scorer) ScoreParallel(pairs []models.CandidatePair, byID map[string]models.NormalizedRecord, workers int) []models.ScoredPair {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}
	if workers <= 1 || len(pairs) == 0 {
		return s.ScoreBulk(pairs, byID)
	}

	chunkSize := (len(pairs) + workers - 1) / workers
	chunkResults := make([][]models.ScoredPair, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if start >= len(pairs) {
			break
		}
		if end > len(pairs) {
			end = len(pairs)
		}
		wg.Add(1)
		go func(idx, lo, hi int) {
			defer wg.Done()
			local := make([]models.ScoredPair, 0, hi-lo)
			for _, p := range pairs[lo:hi] {
				if scored, ok := s.scorePair(p, byID); ok {
					local = append(local, scored)
				}
			}
			chunkResults[idx] = local
		}(w, start, end)
	}
	wg.Wait()

	var out []models.ScoredPair
	for _, chunk := range chunkResults {
		out = append(out, chunk...)
	}
	return out
}

// scorePair applies the gate, computes every component feature, and returns
// (zero, false) if the pair is gated out.
func (s *Scorer) scorePair(p models.CandidatePair, byID map[string]models.NormalizedRecord) (models.ScoredPair, bool) {
	a, okA := byID[p.IDA]
	b, okB := byID[p.IDB]
	if !okA || !okB {
		return models.ScoredPair{}, false
	}

	ratioSet := tokenSetRatio(a.Tokens, b.Tokens)
	if ratioSet < s.cfg.GateCutoff {
		return models.ScoredPair{}, false
	}

	ratioName := tokenSortRatio(a.Tokens, b.Tokens)
	jac := jaccard(a.EnhancedTokens, b.EnhancedTokens)

	suffixMatch := a.SuffixClass == b.SuffixClass
	numStyleMatch := numStyleSignature(a.NameCore) == numStyleSignature(b.NameCore)
	// name_base is punctuation-stripped by the Normalizer, so this is
	// typically false in the full pipeline; the penalty still applies when
	// the scorer is handed less-normalized input directly.
	punctuationMismatch := punctuationSet(a.NameBase) != punctuationSet(b.NameBase)

	baseScore := 0.45*float64(ratioName) + 0.35*float64(ratioSet) + 20*jac

	penalized := baseScore
	if !suffixMatch {
		penalized -= float64(s.cfg.PenaltySuffixMismatch)
	}
	if !numStyleMatch {
		penalized -= float64(s.cfg.PenaltyNumStyleMismatch)
	}
	if punctuationMismatch {
		penalized -= float64(s.cfg.PenaltyPunctuationMismatch)
	}

	finalScore := int(math.Round(penalized))
	if finalScore < 0 {
		finalScore = 0
	}
	if finalScore > 100 {
		finalScore = 100
	}

	return models.ScoredPair{
		CandidatePair:       p,
		RatioName:           ratioName,
		RatioSet:            ratioSet,
		Jaccard:             jac,
		NumStyleMatch:       numStyleMatch,
		SuffixMatch:         suffixMatch,
		PunctuationMismatch: punctuationMismatch,
		BaseScore:           baseScore,
		Score:               finalScore,
	}, true
}

// numStyleSignature returns the digit-sequence signature of a name: the
// ordered list of digit runs found in it. Two names with equal signatures
// have the same count of digit tokens and the same digit sequences.
func numStyleSignature(s string) string {
	matches := digitSeq.FindAllString(s, -1)
	sig := ""
	for _, m := range matches {
		sig += "|" + m
	}
	return sig
}

var punctRunes = []rune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~")

// punctuationSet returns the sorted set of punctuation runes present in s,
// as a string, so two inputs with the same punctuation characters compare
// equal regardless of position or repetition.
func punctuationSet(s string) string {
	present := make(map[rune]bool)
	for _, r := range s {
		for _, p := range punctRunes {
			if r == p {
				present[r] = true
			}
		}
	}
	runes := make([]rune, 0, len(present))
	for r := range present {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	return string(runes)
}
