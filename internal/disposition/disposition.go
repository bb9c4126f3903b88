// Package disposition implements the Disposition Engine: classification of
// every record into {Keep, Update, Delete, Verify} via a vectorized
// mask-and-select pass over columnar buffers, plus a row-by-row path
// retained solely as an equivalence oracle for tests.
package disposition

import (
	"regexp"
	"strings"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// Engine classifies records using the run's frozen blacklist and
// suspicious-singleton pattern.
type Engine struct {
	cfg        config.DispositionConfig
	suspicious *regexp.Regexp
}

// New builds an Engine from the run's frozen disposition configuration.
// A malformed suspicious-singleton regex never fails construction; it is
// treated as "never matches" so a bad config value degrades gracefully
// rather than aborting the run (ConfigError is reserved for missing
// required options, not this soft pattern).
func New(cfg config.DispositionConfig) *Engine {
	var re *regexp.Regexp
	if cfg.SuspiciousSingletonRegex != "" {
		if compiled, err := regexp.Compile(cfg.SuspiciousSingletonRegex); err == nil {
			re = compiled
		}
	}
	return &Engine{cfg: cfg, suspicious: re}
}

// Classify runs the vectorized mask-and-select pass: for each rule, compute
// a mask over the full record set, then assign dispositions in a single
// selection pass with the rule order as priority (first match wins).
func (e *Engine) Classify(records []models.NormalizedRecord, groupByMember map[string]*models.Group, overrides map[string]models.Disposition) []models.DispositionedRecord {
	n := len(records)
	dispositions := make([]models.Disposition, n)
	reasons := make([]string, n)
	decided := make([]bool, n)

	// Rule 1: manual override.
	for i, r := range records {
		if d, ok := overrides[r.AccountID]; ok {
			dispositions[i], reasons[i], decided[i] = d, "manual", true
		}
	}

	// Rule 2: blacklist hit.
	for i, r := range records {
		if decided[i] {
			continue
		}
		if term, hit := e.blacklistHit(r.NameBase); hit {
			dispositions[i], reasons[i], decided[i] = models.DispositionDelete, "blacklist: "+term, true
		}
	}

	// Rule 3: suspicious singleton.
	for i, r := range records {
		if decided[i] {
			continue
		}
		g := groupByMember[r.AccountID]
		if g != nil && g.GroupSize == 1 && e.suspicious != nil && e.suspicious.MatchString(r.NameBase) {
			dispositions[i], reasons[i], decided[i] = models.DispositionVerify, "suspicious singleton", true
		}
	}

	// Rule 4: any suffix mismatch within the group.
	for i, r := range records {
		if decided[i] {
			continue
		}
		g := groupByMember[r.AccountID]
		if g != nil && g.SuffixMismatch {
			dispositions[i], reasons[i], decided[i] = models.DispositionVerify, "suffix mismatch in group", true
		}
	}

	// Rule 5: multi-record group membership.
	for i, r := range records {
		if decided[i] {
			continue
		}
		g := groupByMember[r.AccountID]
		if g != nil && g.GroupSize > 1 {
			if r.AccountID == g.PrimaryID {
				dispositions[i], reasons[i], decided[i] = models.DispositionKeep, "primary of group", true
			} else {
				dispositions[i], reasons[i], decided[i] = models.DispositionUpdate, "non-primary member", true
			}
		}
	}

	// Rule 6: clean singleton (default).
	for i := range records {
		if !decided[i] {
			dispositions[i], reasons[i] = models.DispositionKeep, "clean singleton"
		}
	}

	out := make([]models.DispositionedRecord, n)
	for i, r := range records {
		g := groupByMember[r.AccountID]
		dr := models.DispositionedRecord{
			Record:            r.Record,
			Disposition:       dispositions[i],
			DispositionReason: reasons[i],
		}
		if g != nil {
			dr.GroupID = g.GroupID
			dr.PrimaryID = g.PrimaryID
		}
		out[i] = dr
	}
	return out
}

// ClassifyRowByRow applies the identical rule set one record at a time. It
// exists only as an equivalence oracle: tests assert it is bit-identical to
// Classify on disposition and reason, never used on the production path.
func (e *Engine) ClassifyRowByRow(records []models.NormalizedRecord, groupByMember map[string]*models.Group, overrides map[string]models.Disposition) []models.DispositionedRecord {
	out := make([]models.DispositionedRecord, len(records))
	for i, r := range records {
		g := groupByMember[r.AccountID]
		disp, reason := e.classifyOne(r, g, overrides)
		dr := models.DispositionedRecord{
			Record:            r.Record,
			Disposition:       disp,
			DispositionReason: reason,
		}
		if g != nil {
			dr.GroupID = g.GroupID
			dr.PrimaryID = g.PrimaryID
		}
		out[i] = dr
	}
	return out
}

func (e *Engine) classifyOne(r models.NormalizedRecord, g *models.Group, overrides map[string]models.Disposition) (models.Disposition, string) {
	if d, ok := overrides[r.AccountID]; ok {
		return d, "manual"
	}
	if term, hit := e.blacklistHit(r.NameBase); hit {
		return models.DispositionDelete, "blacklist: " + term
	}
	if g != nil && g.GroupSize == 1 && e.suspicious != nil && e.suspicious.MatchString(r.NameBase) {
		return models.DispositionVerify, "suspicious singleton"
	}
	if g != nil && g.SuffixMismatch {
		return models.DispositionVerify, "suffix mismatch in group"
	}
	if g != nil && g.GroupSize > 1 {
		if r.AccountID == g.PrimaryID {
			return models.DispositionKeep, "primary of group"
		}
		return models.DispositionUpdate, "non-primary member"
	}
	return models.DispositionKeep, "clean singleton"
}

// blacklistHit checks nameBase (already lowercased by the Normalizer)
// against the configured token list (exact token match) and phrase list
// (substring match), both case-insensitive.
func (e *Engine) blacklistHit(nameBase string) (string, bool) {
	tokens := strings.Fields(nameBase)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	for _, tok := range e.cfg.BlacklistTokens {
		if tokenSet[strings.ToLower(tok)] {
			return tok, true
		}
	}
	for _, phrase := range e.cfg.BlacklistPhrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(nameBase, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}

// GroupIndex builds the member→group lookup Classify and ClassifyRowByRow
// both need, from the Grouper's output.
func GroupIndex(groups []models.Group) map[string]*models.Group {
	idx := make(map[string]*models.Group)
	for i := range groups {
		g := &groups[i]
		for _, m := range g.Members {
			idx[m] = g
		}
	}
	return idx
}
