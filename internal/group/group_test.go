package group

import (
	"testing"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

func edge(a, b string, score int, suffixMatch bool) models.ScoredPair {
	return models.ScoredPair{
		CandidatePair: models.CandidatePair{IDA: a, IDB: b},
		Score:         score,
		SuffixMatch:   suffixMatch,
	}
}

func TestGroup_HighThresholdAlwaysUnions(t *testing.T) {
	cfg := config.Default()
	g := New(cfg.Grouping, cfg.Similarity)

	res := g.Group("run1", []string{"A1", "A2"}, nil,
		[]models.ScoredPair{edge("A1", "A2", 92, true)},
		map[string][]string{"A1": {"acme"}, "A2": {"acme"}}, 1)

	if len(res.Groups) != 1 || res.Groups[0].GroupSize != 2 {
		t.Fatalf("expected a single group of size 2, got %+v", res.Groups)
	}
}

func TestGroup_MediumBelowSharedTokenNeverUnions(t *testing.T) {
	cfg := config.Default()
	g := New(cfg.Grouping, cfg.Similarity)

	res := g.Group("run1", []string{"A1", "A2"}, nil,
		[]models.ScoredPair{edge("A1", "A2", cfg.Similarity.Medium-1, true)},
		map[string][]string{"A1": {"acme"}, "A2": {"acme"}}, 1)

	if len(res.Groups) != 2 {
		t.Fatalf("medium_threshold - 1 must never union, got %+v", res.Groups)
	}
}

func TestGroup_MediumWithSharedTokenUnions(t *testing.T) {
	cfg := config.Default()
	g := New(cfg.Grouping, cfg.Similarity)

	res := g.Group("run1", []string{"A1", "A2"}, nil,
		[]models.ScoredPair{edge("A1", "A2", cfg.Similarity.Medium, true)},
		map[string][]string{"A1": {"acme"}, "A2": {"acme"}}, 1)

	if len(res.Groups) != 1 {
		t.Fatalf("score == medium_threshold with shared token must union, got %+v", res.Groups)
	}
}

func TestGroup_MediumWithoutSharedTokenRejected(t *testing.T) {
	cfg := config.Default()
	g := New(cfg.Grouping, cfg.Similarity)

	res := g.Group("run1", []string{"A1", "A2"}, nil,
		[]models.ScoredPair{edge("A1", "A2", cfg.Similarity.Medium, true)},
		map[string][]string{"A1": {"acme"}, "A2": {"zodiac"}}, 1)

	if len(res.Groups) != 2 {
		t.Fatalf("expected no shared token to block the union, got %+v", res.Groups)
	}
	if res.Stats.GateRejections != 1 {
		t.Errorf("GateRejections = %d, want 1", res.Stats.GateRejections)
	}
}

func TestGroup_CanopyBoundRejectsOversizedUnion(t *testing.T) {
	cfg := config.Default()
	cfg.Grouping.CanopyMaxSize = 2
	g := New(cfg.Grouping, cfg.Similarity)

	edges := []models.ScoredPair{
		edge("A1", "A2", 95, true),
		edge("A2", "A3", 95, true),
	}
	tokens := map[string][]string{
		"A1": {"acme"}, "A2": {"acme"}, "A3": {"acme"},
	}
	res := g.Group("run1", []string{"A1", "A2", "A3"}, nil, edges, tokens, 1)

	if res.Stats.CanopyRejections != 1 {
		t.Errorf("CanopyRejections = %d, want 1", res.Stats.CanopyRejections)
	}
	sizes := map[int]int{}
	for _, gr := range res.Groups {
		sizes[gr.GroupSize]++
	}
	if sizes[2] != 1 || sizes[1] != 1 {
		t.Errorf("expected one group of size 2 and one singleton, got %+v", res.Groups)
	}
}

func TestGroup_SingletonIsOwnPrimaryCandidate(t *testing.T) {
	cfg := config.Default()
	g := New(cfg.Grouping, cfg.Similarity)

	res := g.Group("run1", []string{"Z1"}, nil, nil, nil, 1)
	if len(res.Groups) != 1 || res.Groups[0].GroupSize != 1 || res.Groups[0].Members[0] != "Z1" {
		t.Fatalf("expected singleton group for Z1, got %+v", res.Groups)
	}
}

func TestGroup_ExactEdgesIgnoreCanopyBound(t *testing.T) {
	cfg := config.Default()
	cfg.Grouping.CanopyMaxSize = 1
	g := New(cfg.Grouping, cfg.Similarity)

	exact := []models.ScoredPair{edge("A1", "A2", 100, true)}
	res := g.Group("run1", []string{"A1", "A2"}, exact, nil, nil, 1)

	if len(res.Groups) != 1 || res.Groups[0].GroupSize != 2 {
		t.Fatalf("exact-equals edges must ignore the canopy bound, got %+v", res.Groups)
	}
}

func TestGroup_ParallelGatingMatchesSerial(t *testing.T) {
	cfg := config.Default()
	g := New(cfg.Grouping, cfg.Similarity)

	var ids []string
	tokens := map[string][]string{}
	var edges []models.ScoredPair
	for i := 0; i < 40; i++ {
		id := "A" + string(rune('0'+i/10)) + string(rune('0'+i%10))
		ids = append(ids, id)
		tokens[id] = []string{"acme"}
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			// Alternate scores across the high/medium/sub-medium bands so
			// every gate branch is exercised.
			score := cfg.Similarity.Medium - 1 + (i+j)%12
			edges = append(edges, edge(ids[i], ids[j], score, true))
		}
	}

	serial := g.Group("run1", ids, nil, edges, tokens, 1)
	parallel := g.Group("run1", ids, nil, edges, tokens, 4)

	if serial.Stats != parallel.Stats {
		t.Errorf("stats diverge: serial=%+v parallel=%+v", serial.Stats, parallel.Stats)
	}
	if len(serial.Groups) != len(parallel.Groups) {
		t.Fatalf("group count diverges: serial=%d parallel=%d", len(serial.Groups), len(parallel.Groups))
	}
	for i := range serial.Groups {
		if serial.Groups[i].GroupID != parallel.Groups[i].GroupID {
			t.Errorf("group %d diverges: %s vs %s", i, serial.Groups[i].GroupID, parallel.Groups[i].GroupID)
		}
	}
}
