package exactequals

import (
	"testing"

	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

func rec(id, rawExactKey string) models.NormalizedRecord {
	return models.NormalizedRecord{
		Record:      models.Record{AccountID: id},
		RawExactKey: rawExactKey,
	}
}

func TestFind_WalmartScenario(t *testing.T) {
	records := []models.NormalizedRecord{
		rec("D1", "Walmart"),
		rec("D2", "Walmart"),
		rec("D3", "Walmart"), // already trimmed/collapsed by the Normalizer
	}

	res := Find(records, 2)

	if len(res.ExactEdges) != 3 {
		t.Fatalf("ExactEdges = %d, want 3 (C(3,2))", len(res.ExactEdges))
	}
	for _, e := range res.ExactEdges {
		if e.Score != 100 || !e.SuffixMatch || e.GroupJoinReason != models.ReasonExactEqualRaw {
			t.Errorf("edge %+v does not satisfy exact-equals invariants", e)
		}
		if e.IDA >= e.IDB {
			t.Errorf("edge %+v violates id_a < id_b", e)
		}
	}

	if len(res.Representatives) != 1 || res.Representatives[0] != "D1" {
		t.Errorf("Representatives = %v, want [D1]", res.Representatives)
	}
	if len(res.FilteredOut) != 2 {
		t.Errorf("FilteredOut = %d, want 2", len(res.FilteredOut))
	}
}

func TestFind_BelowMinGroupSizeDoesNotGroup(t *testing.T) {
	records := []models.NormalizedRecord{
		rec("A1", "Acme"),
		rec("A2", "Beta"),
	}
	res := Find(records, 2)

	if len(res.ExactEdges) != 0 {
		t.Errorf("ExactEdges = %d, want 0", len(res.ExactEdges))
	}
	if len(res.Representatives) != 2 {
		t.Errorf("Representatives = %v, want both singleton ids", res.Representatives)
	}
}

func TestFind_EmptyKeyNeverGroups(t *testing.T) {
	records := []models.NormalizedRecord{
		rec("A1", ""),
		rec("A2", ""),
	}
	res := Find(records, 2)

	if len(res.ExactEdges) != 0 {
		t.Errorf("empty raw_exact_key must never group, got %d edges", len(res.ExactEdges))
	}
	if len(res.Representatives) != 2 {
		t.Errorf("Representatives = %v, want both ids surviving", res.Representatives)
	}
}
