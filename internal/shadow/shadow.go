// Package shadow implements the pipeline's two equivalence oracles: the
// Disposition Engine's vectorized path against its row-by-row path (the
// two must be bit-identical on disposition and reason), and the Scorer's
// bulk path against its parallel path (component fields must be
// numerically identical; the final rounded score may differ by at most
// ±1). Divergences are logged, never acted on; the production result
// always comes from the primary path.
package shadow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// Runner compares two independently-computed result sets for equivalence,
// logging every divergence it finds via the supplied logger.
type Runner struct {
	logger *zap.Logger
}

// New builds a Runner; a nil logger is replaced with a no-op logger.
func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// DispositionDivergence names one record whose vectorized and row-by-row
// dispositions disagree.
type DispositionDivergence struct {
	AccountID      string
	Vectorized     models.Disposition
	RowByRow       models.Disposition
	ReasonVector   string
	ReasonRowByRow string
}

// CompareDisposition asserts the vectorized and row-by-row disposition
// paths are bit-identical. Both slices must be in the same order (both are
// produced from the same input record order).
func (r *Runner) CompareDisposition(vectorized, rowByRow []models.DispositionedRecord) ([]DispositionDivergence, error) {
	if len(vectorized) != len(rowByRow) {
		return nil, fmt.Errorf("shadow: disposition path length mismatch: vectorized=%d row_by_row=%d",
			len(vectorized), len(rowByRow))
	}

	var divergences []DispositionDivergence
	for i := range vectorized {
		v, rbr := vectorized[i], rowByRow[i]
		if v.AccountID != rbr.AccountID {
			return nil, fmt.Errorf("shadow: disposition paths out of order at index %d: %s vs %s",
				i, v.AccountID, rbr.AccountID)
		}
		if v.Disposition != rbr.Disposition || v.DispositionReason != rbr.DispositionReason {
			d := DispositionDivergence{
				AccountID: v.AccountID, Vectorized: v.Disposition, RowByRow: rbr.Disposition,
				ReasonVector: v.DispositionReason, ReasonRowByRow: rbr.DispositionReason,
			}
			divergences = append(divergences, d)
			r.logger.Warn("disposition path divergence",
				zap.String("account_id", d.AccountID),
				zap.String("vectorized", string(d.Vectorized)),
				zap.String("row_by_row", string(d.RowByRow)))
		}
	}
	return divergences, nil
}

// ScoringDivergence names one pair whose bulk and parallel scores disagree
// by more than the documented ±1 rounding tolerance, or whose non-rounded
// component fields disagree at all.
type ScoringDivergence struct {
	IDA, IDB  string
	BulkScore int
	ParScore  int
	Field     string
}

// CompareScoring asserts the bulk and parallel scoring paths agree on every
// component field and on score within ±1. Order need not match: both
// slices are indexed by (id_a, id_b).
func (r *Runner) CompareScoring(bulk, parallel []models.ScoredPair) ([]ScoringDivergence, error) {
	byKey := make(map[string]models.ScoredPair, len(parallel))
	for _, p := range parallel {
		byKey[p.IDA+"\x00"+p.IDB] = p
	}

	var divergences []ScoringDivergence
	for _, b := range bulk {
		p, ok := byKey[b.IDA+"\x00"+b.IDB]
		if !ok {
			divergences = append(divergences, ScoringDivergence{IDA: b.IDA, IDB: b.IDB, Field: "missing_in_parallel"})
			continue
		}
		if b.RatioName != p.RatioName || b.RatioSet != p.RatioSet || b.Jaccard != p.Jaccard ||
			b.SuffixMatch != p.SuffixMatch || b.NumStyleMatch != p.NumStyleMatch ||
			b.PunctuationMismatch != p.PunctuationMismatch {
			d := ScoringDivergence{IDA: b.IDA, IDB: b.IDB, BulkScore: b.Score, ParScore: p.Score, Field: "component_mismatch"}
			divergences = append(divergences, d)
			r.logger.Warn("scorer bulk/parallel component divergence", zap.String("id_a", b.IDA), zap.String("id_b", b.IDB))
			continue
		}
		delta := b.Score - p.Score
		if delta < -1 || delta > 1 {
			d := ScoringDivergence{IDA: b.IDA, IDB: b.IDB, BulkScore: b.Score, ParScore: p.Score, Field: "score_tolerance_exceeded"}
			divergences = append(divergences, d)
			r.logger.Warn("scorer bulk/parallel score outside ±1 tolerance",
				zap.String("id_a", b.IDA), zap.String("id_b", b.IDB),
				zap.Int("bulk_score", b.Score), zap.Int("parallel_score", p.Score))
		}
	}
	return divergences, nil
}
