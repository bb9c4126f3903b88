// Package normalize implements the Normalizer: a pure, deterministic
// transform from a Record to a NormalizedRecord. It never fails; pathological
// inputs produce empty derived fields that downstream stages tolerate.
package normalize

import (
	"regexp"
	"strings"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

var (
	whitespaceRun      = regexp.MustCompile(`\s+`)
	punctStrip         = regexp.MustCompile(`[^a-z0-9\s]`)
	repeatedDigitGroup = regexp.MustCompile(`\b(\d+)\s+(\d+)\b`)
)

var symbolSubstitutions = []struct {
	old string
	new string
}{
	{"&", " and "},
	{"/", " "},
	{"-", " "},
	{"@", " at "},
	{"+", " plus "},
}

// legalSuffixes maps the closed vocabulary of trailing legal-suffix tokens
// to their SuffixClass. Every entry is a single token, compared against
// the name's last token only.
var legalSuffixes = []struct {
	tokens []string
	class  models.SuffixClass
}{
	{[]string{"incorporated"}, models.SuffixInc},
	{[]string{"inc"}, models.SuffixInc},
	{[]string{"llc"}, models.SuffixLLC},
	{[]string{"ltd"}, models.SuffixLtd},
	{[]string{"limited"}, models.SuffixLtd},
	{[]string{"corporation"}, models.SuffixCorp},
	{[]string{"corp"}, models.SuffixCorp},
	{[]string{"llp"}, models.SuffixLLP},
	{[]string{"lp"}, models.SuffixLP},
	{[]string{"pllc"}, models.SuffixPLLC},
	{[]string{"pc"}, models.SuffixPC},
	{[]string{"co"}, models.SuffixCo},
	{[]string{"company"}, models.SuffixCo},
	{[]string{"gmbh"}, models.SuffixGmbH},
}

// Normalizer holds the frozen vocabulary tables consulted by Normalize; they
// are set once from config at run start and never mutated, so a Normalizer
// value may be shared read-only across worker goroutines.
type Normalizer struct {
	weakTokens           map[string]bool
	pluralMap            map[string]string
	canonicalRetailTerms map[string]string
}

// New builds a Normalizer from the run's frozen configuration tables.
func New(cfg config.NormalizationConfig) *Normalizer {
	weak := make(map[string]bool, len(cfg.WeakTokens))
	for _, t := range cfg.WeakTokens {
		weak[strings.ToLower(t)] = true
	}
	return &Normalizer{
		weakTokens:           weak,
		pluralMap:            cfg.PluralMap,
		canonicalRetailTerms: cfg.CanonicalRetailTerms,
	}
}

// Normalize converts a Record into a NormalizedRecord. It never fails.
func (n *Normalizer) Normalize(r models.Record) models.NormalizedRecord {
	out := models.NormalizedRecord{Record: r}

	trimmed := strings.TrimSpace(r.AccountNameRaw)
	if trimmed == "" {
		out.SuffixClass = models.SuffixNone
		return out
	}

	out.RawExactKey = collapseWhitespace(trimmed)

	nameBase := strings.ToLower(out.RawExactKey)
	for _, sub := range symbolSubstitutions {
		nameBase = strings.ReplaceAll(nameBase, sub.old, sub.new)
	}
	nameBase = punctStrip.ReplaceAllString(nameBase, " ")
	nameBase = collapseWhitespace(nameBase)
	nameBase = collapseNumericStyle(nameBase)
	out.NameBase = nameBase

	if nameBase == "" {
		out.SuffixClass = models.SuffixNone
		return out
	}

	nameCore, suffixClass := stripLegalSuffix(nameBase)
	out.NameCore = nameCore
	out.SuffixClass = suffixClass

	if nameCore == "" {
		return out
	}

	tokens := strings.Fields(nameCore)
	out.Tokens = tokens
	out.EnhancedTokens = n.enhance(tokens)

	return out
}

// collapseWhitespace strips leading/trailing whitespace and collapses
// internal runs to a single ASCII space, preserving case and punctuation.
func collapseWhitespace(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// collapseNumericStyle unifies equal repeated digit groups separated by
// whitespace (e.g. "20 20" stays "20 20", but a prior "20-20"/"20/20" has
// already become "20 20" via the symbol substitutions above; this pass
// exists for the remaining case of genuinely distinct separators that
// collapse to the same two groups after substitution).
func collapseNumericStyle(s string) string {
	return repeatedDigitGroup.ReplaceAllStringFunc(s, func(m string) string {
		parts := strings.Fields(m)
		if len(parts) == 2 && parts[0] == parts[1] {
			return parts[0] + " " + parts[1]
		}
		return m
	})
}

// stripLegalSuffix detects a trailing legal-suffix token against the closed
// vocabulary and removes it, returning the resulting name_core.
func stripLegalSuffix(nameBase string) (string, models.SuffixClass) {
	tokens := strings.Fields(nameBase)
	if len(tokens) == 0 {
		return "", models.SuffixNone
	}
	last := tokens[len(tokens)-1]
	for _, suf := range legalSuffixes {
		if len(suf.tokens) == 1 && suf.tokens[0] == last {
			return strings.TrimSpace(strings.Join(tokens[:len(tokens)-1], " ")), suf.class
		}
	}
	return nameBase, models.SuffixNone
}

// enhance applies weak-token removal, plural→singular canonicalization, and
// canonical-retail substitution. Order matters: weak tokens are dropped
// before the remaining tokens are canonicalized.
func (n *Normalizer) enhance(tokens []string) []string {
	enhanced := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if n.weakTokens[t] {
			continue
		}
		if singular, ok := n.pluralMap[t]; ok {
			t = singular
		}
		if canon, ok := n.canonicalRetailTerms[t]; ok {
			t = canon
		}
		enhanced = append(enhanced, t)
	}
	return enhanced
}
