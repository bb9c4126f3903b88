package block

import (
	"testing"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/internal/normalize"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

func normalizeAll(raws map[string]string) []models.NormalizedRecord {
	n := normalize.New(config.Default().Normalization)
	var out []models.NormalizedRecord
	for id, raw := range raws {
		out = append(out, n.Normalize(models.Record{AccountID: id, AccountNameRaw: raw}))
	}
	return out
}

func TestGenerate_NoSelfPairsAndOrderedIDs(t *testing.T) {
	records := normalizeAll(map[string]string{
		"A1": "Acme Plumbing Inc",
		"A2": "Acme Plumbing LLC",
		"B1": "Zodiac Traders",
	})

	b := New(config.Default().Blocking)
	res := b.Generate(records)

	for _, p := range res.Pairs {
		if p.IDA == p.IDB {
			t.Errorf("self-pair emitted: %+v", p)
		}
		if p.IDA >= p.IDB {
			t.Errorf("id_a < id_b violated: %+v", p)
		}
	}
}

func TestGenerate_Deduplicated(t *testing.T) {
	records := normalizeAll(map[string]string{
		"A1": "Acme Plumbing Inc",
		"A2": "Acme Plumbing LLC",
	})

	b := New(config.Default().Blocking)
	res := b.Generate(records)

	seen := make(map[string]bool)
	for _, p := range res.Pairs {
		key := p.IDA + "|" + p.IDB
		if seen[key] {
			t.Errorf("duplicate pair emitted: %+v", p)
		}
		seen[key] = true
	}
}

func TestGenerate_DeterministicOrder(t *testing.T) {
	records := normalizeAll(map[string]string{
		"A1": "Acme Plumbing Inc",
		"A2": "Acme Plumbing LLC",
		"A3": "Acme Plumbing Co",
	})

	b := New(config.Default().Blocking)
	first := b.Generate(records)
	second := b.Generate(records)

	if len(first.Pairs) != len(second.Pairs) {
		t.Fatalf("pair count differs across runs: %d vs %d", len(first.Pairs), len(second.Pairs))
	}
	for i := range first.Pairs {
		if first.Pairs[i] != second.Pairs[i] {
			t.Errorf("pair order not deterministic at index %d: %+v vs %+v", i, first.Pairs[i], second.Pairs[i])
		}
	}
}

func TestGenerate_GlobalPairCapTruncates(t *testing.T) {
	raws := make(map[string]string)
	for i := 0; i < 50; i++ {
		raws[string(rune('A'+i/26))+string(rune('a'+i%26))] = "Acme Plumbing Inc"
	}
	records := normalizeAll(raws)

	cfg := config.Default().Blocking
	cfg.GlobalPairCap = 10
	b := New(cfg)
	res := b.Generate(records)

	if !res.Truncated {
		t.Fatalf("expected truncation with cap %d over %d records", cfg.GlobalPairCap, len(records))
	}
	if len(res.Pairs) != 10 {
		t.Errorf("Pairs = %d, want 10", len(res.Pairs))
	}
}
