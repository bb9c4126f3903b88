package shadow

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/internal/disposition"
	"github.com/JoeJDLaw/company-junction-sub001/internal/normalize"
	"github.com/JoeJDLaw/company-junction-sub001/internal/score"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

func buildIndex(raws map[string]string) map[string]models.NormalizedRecord {
	n := normalize.New(config.NormalizationConfig{})
	out := make(map[string]models.NormalizedRecord, len(raws))
	for id, raw := range raws {
		out[id] = n.Normalize(models.Record{AccountID: id, AccountNameRaw: raw})
	}
	return out
}

func TestCompareScoring_NoDivergenceOnIdenticalInputs(t *testing.T) {
	s := score.New(config.SimilarityConfig{GateCutoff: 0})
	byID := buildIndex(map[string]string{
		"A1": "acme corp", "A2": "acme corporation",
		"A3": "widget inc", "A4": "widgets incorporated",
	})
	pairs := []models.CandidatePair{{IDA: "A1", IDB: "A2"}, {IDA: "A3", IDB: "A4"}}

	bulk := s.ScoreBulk(pairs, byID)
	parallel := s.ScoreParallel(pairs, byID, 4)

	r := New(zaptest.NewLogger(t))
	divergences, err := r.CompareScoring(bulk, parallel)
	if err != nil {
		t.Fatalf("CompareScoring returned error: %v", err)
	}
	if len(divergences) != 0 {
		t.Fatalf("expected no divergences between bulk and parallel paths, got %d: %+v", len(divergences), divergences)
	}
}

func TestCompareScoring_FlagsMissingPair(t *testing.T) {
	bulk := []models.ScoredPair{{CandidatePair: models.CandidatePair{IDA: "X1", IDB: "X2"}, Score: 90}}
	var parallel []models.ScoredPair

	r := New(nil)
	divergences, err := r.CompareScoring(bulk, parallel)
	if err != nil {
		t.Fatalf("CompareScoring returned error: %v", err)
	}
	if len(divergences) != 1 || divergences[0].Field != "missing_in_parallel" {
		t.Fatalf("expected one missing_in_parallel divergence, got %+v", divergences)
	}
}

func TestCompareScoring_FlagsToleranceExceeded(t *testing.T) {
	bulk := []models.ScoredPair{{CandidatePair: models.CandidatePair{IDA: "X1", IDB: "X2"}, Score: 90}}
	parallel := []models.ScoredPair{{CandidatePair: models.CandidatePair{IDA: "X1", IDB: "X2"}, Score: 87}}

	r := New(nil)
	divergences, err := r.CompareScoring(bulk, parallel)
	if err != nil {
		t.Fatalf("CompareScoring returned error: %v", err)
	}
	if len(divergences) != 1 || divergences[0].Field != "score_tolerance_exceeded" {
		t.Fatalf("expected one score_tolerance_exceeded divergence, got %+v", divergences)
	}
}

func TestCompareDisposition_NoDivergenceOnIdenticalInputs(t *testing.T) {
	e := disposition.New(config.DispositionConfig{})
	records := []models.NormalizedRecord{
		{Record: models.Record{AccountID: "A1", AccountNameRaw: "acme corp"}, NameBase: "acme corp"},
		{Record: models.Record{AccountID: "A2", AccountNameRaw: "widget inc"}, NameBase: "widget inc"},
	}
	groupByMember := disposition.GroupIndex(nil)

	vectorized := e.Classify(records, groupByMember, nil)
	rowByRow := e.ClassifyRowByRow(records, groupByMember, nil)

	r := New(zaptest.NewLogger(t))
	divergences, err := r.CompareDisposition(vectorized, rowByRow)
	if err != nil {
		t.Fatalf("CompareDisposition returned error: %v", err)
	}
	if len(divergences) != 0 {
		t.Fatalf("expected no divergences between vectorized and row-by-row paths, got %d: %+v", len(divergences), divergences)
	}
}

func TestCompareDisposition_LengthMismatchErrors(t *testing.T) {
	vectorized := []models.DispositionedRecord{{Record: models.Record{AccountID: "A1"}}}
	var rowByRow []models.DispositionedRecord

	r := New(nil)
	if _, err := r.CompareDisposition(vectorized, rowByRow); err == nil {
		t.Fatal("expected an error for mismatched slice lengths")
	}
}
