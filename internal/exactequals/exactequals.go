// Package exactequals implements the Exact-Equals Pass: a short-circuit
// stage that unites records whose raw names are character-identical after
// trim/whitespace collapse, seeding the Grouper with score-100 edges and
// trimming non-representative members out of the blocking/scoring work.
package exactequals

import (
	"sort"

	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// Result is the output of Find: the chosen representative ids (always
// eligible for downstream blocking/scoring), the synthetic exact edges, and
// the filtered-out audit rows for non-representative members.
type Result struct {
	Representatives []string
	ExactEdges      []models.ScoredPair
	FilteredOut     []models.FilteredRow
}

// Find groups records by raw_exact_key and emits synthetic score-100 edges
// for every group reaching minGroupSize. Non-representative members of an
// exact group are removed from downstream blocking/scoring; the
// representative (min account_id) carries forward.
func Find(records []models.NormalizedRecord, minGroupSize int) Result {
	byKey := make(map[string][]models.NormalizedRecord)
	var order []string // preserve first-seen key order for determinism

	for _, r := range records {
		if r.RawExactKey == "" {
			continue
		}
		if _, seen := byKey[r.RawExactKey]; !seen {
			order = append(order, r.RawExactKey)
		}
		byKey[r.RawExactKey] = append(byKey[r.RawExactKey], r)
	}

	res := Result{}

	// Every record not swept into a qualifying exact group still needs to
	// reach downstream stages, so start from the full id set and subtract
	// the non-representative members we remove below.
	surviving := make(map[string]bool, len(records))
	for _, r := range records {
		surviving[r.AccountID] = true
	}

	for _, key := range order {
		group := byKey[key]
		if len(group) < minGroupSize {
			continue
		}

		ids := make([]string, len(group))
		for i, r := range group {
			ids[i] = r.AccountID
		}
		sort.Strings(ids)
		representative := ids[0]

		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				if a > b {
					a, b = b, a
				}
				res.ExactEdges = append(res.ExactEdges, models.ScoredPair{
					CandidatePair: models.CandidatePair{IDA: a, IDB: b, BlockKey: "exact:" + key},
					RatioName:     100,
					RatioSet:      100,
					Jaccard:       1.0,
					SuffixMatch:   true,
					Score:         100,
					BaseScore:     100,
					GroupJoinReason: models.ReasonExactEqualRaw,
				})
			}
		}

		for _, id := range ids[1:] {
			surviving[id] = false
			res.FilteredOut = append(res.FilteredOut, models.FilteredRow{
				AccountID:  id,
				Stage:      models.StageExactEquals,
				ReasonCode: "exact_equal_represented",
				Detail:     "absorbed into representative " + representative,
			})
		}
	}

	for _, r := range records {
		if surviving[r.AccountID] {
			res.Representatives = append(res.Representatives, r.AccountID)
		}
	}
	sort.Strings(res.Representatives)

	sort.Slice(res.ExactEdges, func(i, j int) bool {
		if res.ExactEdges[i].IDA != res.ExactEdges[j].IDA {
			return res.ExactEdges[i].IDA < res.ExactEdges[j].IDA
		}
		return res.ExactEdges[i].IDB < res.ExactEdges[j].IDB
	})

	return res
}
