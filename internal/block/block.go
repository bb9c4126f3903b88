// Package block implements the Blocker: deterministic candidate-pair
// generation via a union of keyed buckets, avoiding the O(n²) full cross
// product while bounding output size. The bucket strategy is an ordered
// list of named passes, each independently exercised and merged, since
// different keys catch different kinds of near-duplicates.
package block

import (
	"sort"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// pass is one named bucketing strategy: it derives a bucket key (or "" to
// opt a record out) from a normalized record.
type pass struct {
	name    string
	keyFunc func(models.NormalizedRecord) (string, bool)
}

// Blocker generates candidate pairs from a set of normalized records. It
// holds only frozen config; a single Blocker value is safe to reuse or
// share read-only across a run.
type Blocker struct {
	cfg config.BlockingConfig
}

// New builds a Blocker from the run's frozen blocking configuration.
func New(cfg config.BlockingConfig) *Blocker {
	return &Blocker{cfg: cfg}
}

// Result is the Blocker's output: the deduplicated, deterministically
// ordered candidate pairs plus an audit of any truncation applied by the
// global pair cap.
type Result struct {
	Pairs        []models.CandidatePair
	Truncated    bool
	DroppedCount int
}

// Generate enumerates candidate pairs without a full cross product.
func (b *Blocker) Generate(records []models.NormalizedRecord) Result {
	byID := make(map[string]models.NormalizedRecord, len(records))
	for _, r := range records {
		byID[r.AccountID] = r
	}

	topTokens := b.topFirstTokens(records, b.cfg.TopTokenBanK)

	passes := []pass{
		{
			name: "first_token",
			keyFunc: func(r models.NormalizedRecord) (string, bool) {
				if len(r.Tokens) == 0 {
					return "", false
				}
				first := r.Tokens[0]
				if topTokens[first] {
					return "", false
				}
				return "ft:" + first, true
			},
		},
		{
			name: "bigram",
			keyFunc: func(r models.NormalizedRecord) (string, bool) {
				if len(r.Tokens) < 2 {
					return "", false
				}
				return "bg:" + r.Tokens[0] + "_" + r.Tokens[1], true
			},
		},
		{
			name: "numeric_aware",
			keyFunc: func(r models.NormalizedRecord) (string, bool) {
				var digitTok, alphaTok string
				for _, t := range r.Tokens {
					if digitTok == "" && isDigitToken(t) {
						digitTok = t
					}
					if alphaTok == "" && !isDigitToken(t) {
						alphaTok = t
					}
				}
				if digitTok == "" {
					return "", false
				}
				return "num:" + digitTok + "_" + alphaTok, true
			},
		},
	}

	buckets := make(map[string][]string) // block_key -> member account_ids, in first-seen order
	var blockKeyOrder []string
	for _, p := range passes {
		for _, r := range records {
			key, ok := p.keyFunc(r)
			if !ok {
				continue
			}
			fullKey := p.name + ":" + key
			if _, seen := buckets[fullKey]; !seen {
				blockKeyOrder = append(blockKeyOrder, fullKey)
			}
			buckets[fullKey] = append(buckets[fullKey], r.AccountID)
		}
	}
	sort.Strings(blockKeyOrder)

	seenPairs := make(map[string]bool)
	var pairs []models.CandidatePair

	for _, blockKey := range blockKeyOrder {
		members := buckets[blockKey]
		shards := b.shard(blockKey, members, byID)
		for shardIdx, shard := range shards {
			ids := make([]string, len(shard))
			copy(ids, shard)
			sort.Strings(ids)

			for i := 0; i < len(ids); i++ {
				for j := i + 1; j < len(ids); j++ {
					a, bID := ids[i], ids[j]
					if !b.withinLengthWindow(byID[a], byID[bID]) {
						continue
					}
					pairKey := a + "\x00" + bID
					if seenPairs[pairKey] {
						continue
					}
					seenPairs[pairKey] = true
					pairs = append(pairs, models.CandidatePair{
						IDA:      a,
						IDB:      bID,
						BlockKey: blockKey,
						ShardIdx: shardIdx,
					})
				}
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].BlockKey != pairs[j].BlockKey {
			return pairs[i].BlockKey < pairs[j].BlockKey
		}
		if pairs[i].IDA != pairs[j].IDA {
			return pairs[i].IDA < pairs[j].IDA
		}
		return pairs[i].IDB < pairs[j].IDB
	})

	res := Result{Pairs: pairs}
	if b.cfg.GlobalPairCap > 0 && len(pairs) > b.cfg.GlobalPairCap {
		res.Truncated = true
		res.DroppedCount = len(pairs) - b.cfg.GlobalPairCap
		res.Pairs = pairs[:b.cfg.GlobalPairCap]
	}
	return res
}

// shard splits a bucket's members into deterministic shards when its pair
// count would exceed block_cap, keyed by a secondary key (first bigram, or
// failing that the single-token initial).
func (b *Blocker) shard(blockKey string, members []string, byID map[string]models.NormalizedRecord) [][]string {
	pairCount := len(members) * (len(members) - 1) / 2
	if b.cfg.BlockCap <= 0 || pairCount <= b.cfg.BlockCap {
		return [][]string{members}
	}

	secondary := make(map[string][]string)
	var order []string
	for _, id := range members {
		r := byID[id]
		key := shardSecondaryKey(r)
		if _, seen := secondary[key]; !seen {
			order = append(order, key)
		}
		secondary[key] = append(secondary[key], id)
	}
	sort.Strings(order)

	shards := make([][]string, 0, len(order))
	for _, k := range order {
		shards = append(shards, secondary[k])
	}
	return shards
}

func shardSecondaryKey(r models.NormalizedRecord) string {
	if len(r.Tokens) >= 2 {
		return r.Tokens[0] + "_" + r.Tokens[1]
	}
	if len(r.Tokens) == 1 {
		return string(r.Tokens[0][0])
	}
	return "_"
}

// topFirstTokens returns the set of the K most frequent first tokens across
// records, to be excluded from the first-token key (still reachable via
// bigram/numeric keys).
func (b *Blocker) topFirstTokens(records []models.NormalizedRecord, k int) map[string]bool {
	counts := make(map[string]int)
	for _, r := range records {
		if len(r.Tokens) == 0 {
			continue
		}
		counts[r.Tokens[0]]++
	}

	type tc struct {
		token string
		count int
	}
	list := make([]tc, 0, len(counts))
	for t, c := range counts {
		list = append(list, tc{t, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].token < list[j].token
	})

	top := make(map[string]bool)
	for i := 0; i < k && i < len(list); i++ {
		top[list[i].token] = true
	}
	return top
}

func (b *Blocker) withinLengthWindow(a, bRec models.NormalizedRecord) bool {
	window := b.cfg.LengthWindow
	if window <= 0 {
		return true
	}
	diff := len(a.NameCore) - len(bRec.NameCore)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

func isDigitToken(t string) bool {
	if t == "" {
		return false
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
