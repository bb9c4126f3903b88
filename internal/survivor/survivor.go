// Package survivor implements the Survivor Selector: a deterministic
// primary per group chosen from a ranked relationship taxonomy with
// tie-breakers, plus the finalized weakest-edge-to-primary for every
// non-primary member.
package survivor

import (
	"sort"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// Selector picks primaries using the run's frozen ranking table and
// tie-breaker chain.
type Selector struct {
	cfg config.SurvivorshipConfig
}

// New builds a Selector from the run's frozen survivorship configuration.
func New(cfg config.SurvivorshipConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select finalizes primaries for every group in place, using byID for the
// relationship/created_date tie-breaker fields and acceptedEdges (the
// Grouper's maximum-spanning-forest of accepted edges) to compute each
// non-primary member's weakest_edge_to_primary.
func (s *Selector) Select(groups []models.Group, byID map[string]models.NormalizedRecord, acceptedEdges []models.ScoredPair) {
	adjacency := buildAdjacency(acceptedEdges)

	for i := range groups {
		g := &groups[i]
		g.PrimaryID = s.choosePrimary(g.Members, byID)
		g.WeakestEdgeToPrimary = make(map[string]*float64, len(g.Members))

		if len(g.Members) == 1 {
			g.WeakestEdgeToPrimary[g.Members[0]] = nil
			continue
		}

		weakest := weakestEdgeFromPrimary(g.PrimaryID, g.Members, adjacency)
		for _, m := range g.Members {
			if m == g.PrimaryID {
				continue
			}
			if w, ok := weakest[m]; ok {
				v := w
				g.WeakestEdgeToPrimary[m] = &v
			} else {
				g.WeakestEdgeToPrimary[m] = nil
			}
		}
	}
}

// choosePrimary orders candidates by minimum relationship_rank, then by the
// configured tie-breakers in order ("created_date": earliest first,
// "account_id": smallest first), then by smallest account_id so no two
// records ever compare equal.
func (s *Selector) choosePrimary(members []string, byID map[string]models.NormalizedRecord) string {
	candidates := append([]string(nil), members...)
	sort.Slice(candidates, func(i, j int) bool {
		a, b := byID[candidates[i]], byID[candidates[j]]

		rankA := s.cfg.RelationshipRank(a.Relationship)
		rankB := s.cfg.RelationshipRank(b.Relationship)
		if rankA != rankB {
			return rankA < rankB
		}
		for _, tb := range s.cfg.TieBreakers {
			switch tb {
			case "created_date":
				if !a.CreatedDate.Equal(b.CreatedDate) {
					return a.CreatedDate.Before(b.CreatedDate)
				}
			case "account_id":
				if a.AccountID != b.AccountID {
					return a.AccountID < b.AccountID
				}
			}
		}
		return a.AccountID < b.AccountID
	})
	return candidates[0]
}

type edge struct {
	to    string
	score int
}

func buildAdjacency(edges []models.ScoredPair) map[string][]edge {
	adj := make(map[string][]edge)
	for _, e := range edges {
		adj[e.IDA] = append(adj[e.IDA], edge{to: e.IDB, score: e.Score})
		adj[e.IDB] = append(adj[e.IDB], edge{to: e.IDA, score: e.Score})
	}
	return adj
}

// weakestEdgeFromPrimary walks the accepted-edge forest from primary,
// tracking the minimum edge score seen along each path: the bottleneck
// value of what is, by construction, the unique tree path (the Grouper
// accepts edges in descending score order, so the accepted-edge forest is
// a maximum spanning forest and the tree path between any two connected
// members is automatically the widest, i.e. highest-bottleneck, path).
func weakestEdgeFromPrimary(primary string, members []string, adjacency map[string][]edge) map[string]float64 {
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	result := make(map[string]float64)
	visited := map[string]bool{primary: true}
	queue := []string{primary}
	bottleneck := map[string]float64{primary: 100}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, e := range adjacency[cur] {
			if !memberSet[e.to] || visited[e.to] {
				continue
			}
			visited[e.to] = true
			b := bottleneck[cur]
			if float64(e.score) < b {
				b = float64(e.score)
			}
			bottleneck[e.to] = b
			result[e.to] = b
			queue = append(queue, e.to)
		}
	}
	return result
}
