// Package group implements the Grouper: a weighted Union-Find over gated
// edges that partitions records into disjoint duplicate groups. The
// Union-Find uses path compression and union-by-rank with per-root size
// tracking, so the canopy bound can veto a union before it commits.
package group

import (
	"crypto/sha256"
	"encoding/hex"
	"runtime"
	"sort"
	"sync"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// unionFind is a weighted Union-Find with path compression and
// union-by-rank. Size is tracked per root so the canopy bound can be
// checked before a union is committed.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
	size   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
		size:   make(map[string]int),
	}
}

func (u *unionFind) add(id string) {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
		u.rank[id] = 0
		u.size[id] = 1
	}
}

func (u *unionFind) find(id string) string {
	u.add(id)
	if u.parent[id] != id {
		u.parent[id] = u.find(u.parent[id])
	}
	return u.parent[id]
}

func (u *unionFind) sizeOf(id string) int {
	return u.size[u.find(id)]
}

// union merges the components containing a and b, returning false if they
// were already in the same component (no-op).
func (u *unionFind) union(a, b string) bool {
	rootA, rootB := u.find(a), u.find(b)
	if rootA == rootB {
		return false
	}
	if u.rank[rootA] < u.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	u.parent[rootB] = rootA
	u.size[rootA] += u.size[rootB]
	if u.rank[rootA] == u.rank[rootB] {
		u.rank[rootA]++
	}
	return true
}

// Stats reports the Grouper's observable, non-error counters.
type Stats struct {
	CanopyRejections int
	GateRejections   int
	EdgesAccepted    int
}

// Grouper partitions records using edge-gated Union-Find. The edge-gating
// thresholds are the Scorer's own high/medium cutoffs: gating is downstream
// of scoring, not an independent knob.
type Grouper struct {
	cfg          config.GroupingConfig
	high, medium int
}

// New builds a Grouper from the run's frozen grouping and similarity
// configuration.
func New(groupingCfg config.GroupingConfig, similarityCfg config.SimilarityConfig) *Grouper {
	return &Grouper{cfg: groupingCfg, high: similarityCfg.High, medium: similarityCfg.Medium}
}

// Result is the Grouper's output: the finalized groups (sorted by GroupID;
// each group's Members is sorted), the edges actually accepted
// into a union (consumed by the Survivor Selector to compute each member's
// weakest-edge-to-primary), and gating statistics.
type Result struct {
	Groups        []models.Group
	AcceptedEdges []models.ScoredPair
	Stats         Stats
}

// Group partitions survivingIDs using exactEdges (always unioned first,
// ignoring the canopy bound) and scoredPairs (gated, then sorted by
// (score desc, id_a asc, id_b asc) for deterministic processing).
//
// Gate decisions run on a worker pool over deterministic chunks; the unions
// themselves execute on the calling goroutine, in sorted edge order, so the
// Union-Find never sees concurrent mutation. workers <= 0 selects the
// hardware thread count.
func (g *Grouper) Group(runID string, survivingIDs []string, exactEdges, scoredPairs []models.ScoredPair, enhancedTokens map[string][]string, workers int) Result {
	uf := newUnionFind()
	for _, id := range survivingIDs {
		uf.add(id)
	}

	stats := Stats{}
	var accepted []models.ScoredPair
	suffixMismatchRoot := make(map[string]bool)

	acceptEdge := func(e models.ScoredPair, ignoreCanopy bool) {
		rootA, rootB := uf.find(e.IDA), uf.find(e.IDB)
		if rootA == rootB {
			return
		}
		if !ignoreCanopy && g.cfg.CanopyMaxSize > 0 {
			if uf.sizeOf(e.IDA)+uf.sizeOf(e.IDB) > g.cfg.CanopyMaxSize {
				stats.CanopyRejections++
				return
			}
		}
		if !e.SuffixMatch {
			newRoot := rootA
			if uf.rank[rootB] > uf.rank[rootA] {
				newRoot = rootB
			}
			suffixMismatchRoot[newRoot] = true
		}
		if uf.union(e.IDA, e.IDB) {
			stats.EdgesAccepted++
			accepted = append(accepted, e)
		}
	}

	for _, e := range exactEdges {
		acceptEdge(e, true)
	}

	gated, rejections := g.gateAll(scoredPairs, enhancedTokens, workers)
	stats.GateRejections = rejections

	sort.Slice(gated, func(i, j int) bool {
		if gated[i].Score != gated[j].Score {
			return gated[i].Score > gated[j].Score
		}
		if gated[i].IDA != gated[j].IDA {
			return gated[i].IDA < gated[j].IDA
		}
		return gated[i].IDB < gated[j].IDB
	})

	for _, e := range gated {
		acceptEdge(e, false)
	}

	// Propagate suffix-mismatch taint to final roots (a root may have been
	// reparented by later unions after the taint was recorded).
	finalSuffixMismatch := make(map[string]bool)
	for id := range uf.parent {
		root := uf.find(id)
		for taintedRoot := range suffixMismatchRoot {
			if uf.find(taintedRoot) == root {
				finalSuffixMismatch[root] = true
			}
		}
	}

	// Walk every id the Union-Find has ever seen, not just survivingIDs:
	// exactEdges introduces exact-equals-absorbed ids (filtered out of
	// survivingIDs by the filtering stage) that are still unioned into a
	// root here and must still surface as group members downstream.
	membersByRoot := make(map[string][]string)
	for id := range uf.parent {
		root := uf.find(id)
		membersByRoot[root] = append(membersByRoot[root], id)
	}

	groups := make([]models.Group, 0, len(membersByRoot))
	for root, members := range membersByRoot {
		sort.Strings(members)
		groups = append(groups, models.Group{
			GroupID:        groupID(runID, members),
			Members:        members,
			GroupSize:      len(members),
			SuffixMismatch: finalSuffixMismatch[root],
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })

	return Result{Groups: groups, AcceptedEdges: accepted, Stats: stats}
}

// gateAll evaluates the gate for every scored pair, in parallel over
// deterministic chunks, and merges the surviving edges back in input order.
// Gating reads only frozen config and the immutable token index, so workers
// share everything without synchronization beyond the final join.
func (g *Grouper) gateAll(pairs []models.ScoredPair, enhancedTokens map[string][]string, workers int) ([]models.ScoredPair, int) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	if workers <= 1 {
		gated := make([]models.ScoredPair, 0, len(pairs))
		rejections := 0
		for _, p := range pairs {
			reason, ok := g.gate(p, enhancedTokens)
			if !ok {
				rejections++
				continue
			}
			p.GroupJoinReason = reason
			gated = append(gated, p)
		}
		return gated, rejections
	}

	chunkSize := (len(pairs) + workers - 1) / workers
	chunkGated := make([][]models.ScoredPair, workers)
	chunkRejections := make([]int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		if start >= len(pairs) {
			break
		}
		end := start + chunkSize
		if end > len(pairs) {
			end = len(pairs)
		}
		wg.Add(1)
		go func(idx, lo, hi int) {
			defer wg.Done()
			local := make([]models.ScoredPair, 0, hi-lo)
			for _, p := range pairs[lo:hi] {
				reason, ok := g.gate(p, enhancedTokens)
				if !ok {
					chunkRejections[idx]++
					continue
				}
				p.GroupJoinReason = reason
				local = append(local, p)
			}
			chunkGated[idx] = local
		}(w, start, end)
	}
	wg.Wait()

	var gated []models.ScoredPair
	rejections := 0
	for i, chunk := range chunkGated {
		gated = append(gated, chunk...)
		rejections += chunkRejections[i]
	}
	return gated, rejections
}

// gate decides whether a scored pair may participate in a union, returning
// the join reason it would be recorded under.
func (g *Grouper) gate(p models.ScoredPair, enhancedTokens map[string][]string) (models.GroupJoinReason, bool) {
	if p.GroupJoinReason == models.ReasonExactEqualRaw {
		return models.ReasonExactEqualRaw, true
	}
	high := g.highThreshold()
	medium := g.mediumThreshold()

	if p.Score >= high {
		return models.ReasonEdgeHigh, true
	}
	if p.Score >= medium && sharesToken(enhancedTokens[p.IDA], enhancedTokens[p.IDB]) {
		return models.ReasonEdgeMediumSharedTok, true
	}
	return "", false
}

func (g *Grouper) highThreshold() int   { return g.high }
func (g *Grouper) mediumThreshold() int { return g.medium }

func sharesToken(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}

// groupID deterministically hashes the sorted member list, prefixed with
// the run id, into a stable group identifier.
func groupID(runID string, sortedMembers []string) string {
	h := sha256.New()
	h.Write([]byte(runID))
	for _, m := range sortedMembers {
		h.Write([]byte{0})
		h.Write([]byte(m))
	}
	return hex.EncodeToString(h.Sum(nil))[:24]
}
