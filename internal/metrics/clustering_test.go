package metrics

import (
	"math"
	"testing"

	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// labelGroups maps each account to its group's ordinal index, with accounts
// absent from every group given their own unique negative label: the same
// alignment cmd/dedupmetrics performs on a committed groups artifact.
func labelGroups(groups []models.Group, accountIDs []string) []int {
	assignment := make(map[string]int)
	for i, g := range groups {
		for _, m := range g.Members {
			assignment[m] = i
		}
	}

	labels := make([]int, len(accountIDs))
	nextSingleton := -1
	for i, id := range accountIDs {
		if l, ok := assignment[id]; ok {
			labels[i] = l
		} else {
			labels[i] = nextSingleton
			nextSingleton--
		}
	}
	return labels
}

func TestAdjustedRandIndex_PerfectGrouping(t *testing.T) {
	accounts := []string{"A1", "A2", "A3", "B1", "B2", "C1"}
	groups := []models.Group{
		{GroupID: "g1", Members: []string{"A1", "A2", "A3"}, PrimaryID: "A1", GroupSize: 3},
		{GroupID: "g2", Members: []string{"B1", "B2"}, PrimaryID: "B1", GroupSize: 2},
		{GroupID: "g3", Members: []string{"C1"}, PrimaryID: "C1", GroupSize: 1},
	}
	// Ground truth: the same three entities.
	truth := []int{0, 0, 0, 1, 1, 2}

	predicted := labelGroups(groups, accounts)

	if ari := AdjustedRandIndex(predicted, truth); math.Abs(ari-1.0) > 0.01 {
		t.Errorf("ARI = %f, want 1.0 for a grouping matching ground truth", ari)
	}
	if vi := VariationOfInformation(predicted, truth); vi > 0.01 {
		t.Errorf("VI = %f, want 0.0 for a grouping matching ground truth", vi)
	}
}

func TestAdjustedRandIndex_CollapsedGrouping(t *testing.T) {
	// A runaway merge: every account lands in one group even though the
	// ground truth holds three distinct entities.
	accounts := []string{"A1", "A2", "B1", "B2", "C1", "C2"}
	groups := []models.Group{
		{GroupID: "g1", Members: accounts, PrimaryID: "A1", GroupSize: 6},
	}
	truth := []int{0, 0, 1, 1, 2, 2}

	predicted := labelGroups(groups, accounts)

	if ari := AdjustedRandIndex(predicted, truth); ari > 0.5 {
		t.Errorf("ARI = %f, want near 0 for a fully collapsed grouping", ari)
	}
	if vi := VariationOfInformation(predicted, truth); vi < 0.1 {
		t.Errorf("VI = %f, want > 0 for a fully collapsed grouping", vi)
	}
}

func TestAdjustedRandIndex_OverSplitGrouping(t *testing.T) {
	// The opposite failure: a true pair split into two singletons scores
	// worse than the grouping that keeps the pair together.
	accounts := []string{"A1", "A2", "B1", "B2"}
	truth := []int{0, 0, 1, 1}

	together := labelGroups([]models.Group{
		{GroupID: "g1", Members: []string{"A1", "A2"}, PrimaryID: "A1", GroupSize: 2},
		{GroupID: "g2", Members: []string{"B1", "B2"}, PrimaryID: "B1", GroupSize: 2},
	}, accounts)
	split := labelGroups([]models.Group{
		{GroupID: "g1", Members: []string{"A1", "A2"}, PrimaryID: "A1", GroupSize: 2},
	}, accounts)

	ariTogether := AdjustedRandIndex(together, truth)
	ariSplit := AdjustedRandIndex(split, truth)
	if ariSplit >= ariTogether {
		t.Errorf("ARI(split)=%f should be below ARI(together)=%f", ariSplit, ariTogether)
	}
}

func TestLabelGroups_SingletonsGetUniqueLabels(t *testing.T) {
	// Accounts absent from every group must never share a label, or two
	// unrelated singletons would count as a predicted pair.
	accounts := []string{"X1", "X2", "X3"}
	predicted := labelGroups(nil, accounts)

	seen := make(map[int]bool)
	for _, l := range predicted {
		if seen[l] {
			t.Fatalf("singleton labels collide: %v", predicted)
		}
		seen[l] = true
	}
}
