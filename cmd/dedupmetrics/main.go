// Command dedupmetrics scores a committed run's groups.json artifact
// against a labeled ground-truth CSV and prints the Adjusted Rand Index
// and Variation of Information. It is the offline companion to the test
// suite's use of internal/metrics, not a replacement for it: a run is
// scored after the fact, against whatever ground-truth labels an operator
// has on hand.
package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/JoeJDLaw/company-junction-sub001/internal/metrics"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalf("usage: %s <groups.json> <ground_truth.csv>", os.Args[0])
	}
	groupsPath, truthPath := os.Args[1], os.Args[2]

	groupOf, err := loadGroupAssignments(groupsPath)
	if err != nil {
		log.Fatalf("FATAL: failed to load %s: %v", groupsPath, err)
	}
	truthOf, err := loadGroundTruth(truthPath)
	if err != nil {
		log.Fatalf("FATAL: failed to load %s: %v", truthPath, err)
	}

	predicted, groundTruth := alignLabels(groupOf, truthOf)
	if len(predicted) == 0 {
		log.Fatalf("FATAL: no account_id overlap between %s and %s", groupsPath, truthPath)
	}

	ari := metrics.AdjustedRandIndex(predicted, groundTruth)
	vi := metrics.VariationOfInformation(predicted, groundTruth)

	log.Printf("accounts scored: %d", len(predicted))
	log.Printf("adjusted rand index: %.4f", ari)
	log.Printf("variation of information: %.4f", vi)
}

// groupsArtifact mirrors the orchestrator's grouping-stage committed JSON
// shape: only the fields dedupmetrics reads are declared.
type groupsArtifact struct {
	Groups []models.Group `json:"groups"`
}

// loadGroupAssignments maps every account_id listed in a group to that
// group's ordinal index. Accounts absent from every group get no entry;
// alignLabels gives them their own labels.
func loadGroupAssignments(path string) (map[string]int, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact groupsArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, err
	}

	assignment := make(map[string]int)
	for i, g := range artifact.Groups {
		for _, member := range g.Members {
			assignment[member] = i
		}
	}
	return assignment, nil
}

// loadGroundTruth reads a CSV with header account_id,label and returns
// each account's ground-truth cluster label as an integer, assigning a
// fresh ordinal per distinct label string encountered.
func loadGroundTruth(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	idCol, labelCol := -1, -1
	for i, h := range header {
		switch h {
		case "account_id":
			idCol = i
		case "label":
			labelCol = i
		}
	}
	if idCol == -1 || labelCol == -1 {
		return nil, io.ErrUnexpectedEOF
	}

	labelIdx := make(map[string]int)
	out := make(map[string]int)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		label := row[labelCol]
		idx, ok := labelIdx[label]
		if !ok {
			idx = len(labelIdx)
			labelIdx[label] = idx
		}
		out[row[idCol]] = idx
	}
	return out, nil
}

// alignLabels walks every ground-truth account_id, producing parallel
// predicted/groundTruth slices in map iteration order (ARI and VI do not
// depend on element order). A ground-truth account that no group lists (a
// singleton) is still scored: it gets a fresh negative label, making it
// its own one-member cluster.
func alignLabels(groupOf, truthOf map[string]int) ([]int, []int) {
	nextSingleton := -1
	var predicted, groundTruth []int
	for accountID, truthLabel := range truthOf {
		groupLabel, ok := groupOf[accountID]
		if !ok {
			groupLabel = nextSingleton
			nextSingleton--
		}
		predicted = append(predicted, groupLabel)
		groundTruth = append(groundTruth, truthLabel)
	}
	return predicted, groundTruth
}
