package disposition

import (
	"testing"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

func nr(id, nameBase string) models.NormalizedRecord {
	return models.NormalizedRecord{
		Record:   models.Record{AccountID: id, AccountNameRaw: nameBase},
		NameBase: nameBase,
	}
}

func TestClassify_ManualOverrideWins(t *testing.T) {
	e := New(config.Default().Disposition)
	records := []models.NormalizedRecord{nr("A1", "acme corp")}
	overrides := map[string]models.Disposition{"A1": models.DispositionDelete}

	out := e.Classify(records, GroupIndex(nil), overrides)

	if out[0].Disposition != models.DispositionDelete || out[0].DispositionReason != "manual" {
		t.Fatalf("got %+v, want Delete/manual", out[0])
	}
}

func TestClassify_BlacklistTokenHit(t *testing.T) {
	cfg := config.Default().Disposition
	cfg.BlacklistTokens = []string{"test"}
	e := New(cfg)
	records := []models.NormalizedRecord{nr("A1", "test account")}

	out := e.Classify(records, GroupIndex(nil), nil)

	if out[0].Disposition != models.DispositionDelete {
		t.Fatalf("Disposition = %v, want Delete", out[0].Disposition)
	}
}

func TestClassify_SuspiciousSingletonVerify(t *testing.T) {
	cfg := config.Default().Disposition
	cfg.SuspiciousSingletonRegex = `(?i)\bunknown\b`
	e := New(cfg)
	records := []models.NormalizedRecord{nr("A1", "unknown corp")}
	groups := []models.Group{{GroupID: "g1", Members: []string{"A1"}, PrimaryID: "A1", GroupSize: 1}}

	out := e.Classify(records, GroupIndex(groups), nil)

	if out[0].Disposition != models.DispositionVerify || out[0].DispositionReason != "suspicious singleton" {
		t.Fatalf("got %+v, want Verify/suspicious singleton", out[0])
	}
}

func TestClassify_SuffixMismatchForcesVerify(t *testing.T) {
	e := New(config.Default().Disposition)
	records := []models.NormalizedRecord{nr("A1", "acme corp"), nr("A2", "acme llc")}
	groups := []models.Group{{
		GroupID: "g1", Members: []string{"A1", "A2"}, PrimaryID: "A1", GroupSize: 2, SuffixMismatch: true,
	}}

	out := e.Classify(records, GroupIndex(groups), nil)

	for _, dr := range out {
		if dr.Disposition != models.DispositionVerify || dr.DispositionReason != "suffix mismatch in group" {
			t.Errorf("account %s: got %+v, want Verify/suffix mismatch in group", dr.AccountID, dr)
		}
	}
}

func TestClassify_PrimaryKeepsNonPrimaryUpdates(t *testing.T) {
	e := New(config.Default().Disposition)
	records := []models.NormalizedRecord{nr("A1", "acme corp"), nr("A2", "acme corporation")}
	groups := []models.Group{{GroupID: "g1", Members: []string{"A1", "A2"}, PrimaryID: "A1", GroupSize: 2}}

	out := e.Classify(records, GroupIndex(groups), nil)

	byID := map[string]models.DispositionedRecord{out[0].AccountID: out[0], out[1].AccountID: out[1]}
	if byID["A1"].Disposition != models.DispositionKeep {
		t.Errorf("primary A1 Disposition = %v, want Keep", byID["A1"].Disposition)
	}
	if byID["A2"].Disposition != models.DispositionUpdate {
		t.Errorf("non-primary A2 Disposition = %v, want Update", byID["A2"].Disposition)
	}
}

func TestClassify_CleanSingletonDefaultsToKeep(t *testing.T) {
	e := New(config.Default().Disposition)
	records := []models.NormalizedRecord{nr("A1", "acme corp")}

	out := e.Classify(records, GroupIndex(nil), nil)

	if out[0].Disposition != models.DispositionKeep || out[0].DispositionReason != "clean singleton" {
		t.Fatalf("got %+v, want Keep/clean singleton", out[0])
	}
}

func TestClassify_AgreesWithClassifyRowByRow(t *testing.T) {
	e := New(config.Default().Disposition)
	records := []models.NormalizedRecord{
		nr("A1", "acme corp"), nr("A2", "acme llc"), nr("A3", "widget inc"), nr("A4", "n/a"),
	}
	groups := []models.Group{
		{GroupID: "g1", Members: []string{"A1", "A2"}, PrimaryID: "A1", GroupSize: 2, SuffixMismatch: true},
		{GroupID: "g2", Members: []string{"A3"}, PrimaryID: "A3", GroupSize: 1},
	}
	groupByMember := GroupIndex(groups)

	vectorized := e.Classify(records, groupByMember, nil)
	rowByRow := e.ClassifyRowByRow(records, groupByMember, nil)

	if len(vectorized) != len(rowByRow) {
		t.Fatalf("length mismatch: vectorized=%d row_by_row=%d", len(vectorized), len(rowByRow))
	}
	for i := range vectorized {
		if vectorized[i].Disposition != rowByRow[i].Disposition || vectorized[i].DispositionReason != rowByRow[i].DispositionReason {
			t.Errorf("record %d diverges: vectorized=%+v row_by_row=%+v", i, vectorized[i], rowByRow[i])
		}
	}
}
