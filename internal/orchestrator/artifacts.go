package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JoeJDLaw/company-junction-sub001/internal/artifact"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// artifactFile maps each DAG stage to the filename its committed artifact
// is written under. filtering, survivorship and final_output reuse a
// preceding stage's logical content under their own name so each stage's
// resume check has a concrete file to point at.
var artifactFile = map[models.StageName]string{
	models.StageNormalization:       "normalized.json",
	models.StageExactEquals:         "exact_equals.json",
	models.StageFiltering:           "filtering.json",
	models.StageCandidateGeneration: "candidates.json",
	models.StageScoring:             "scored.json",
	models.StageGrouping:            "groups.json",
	models.StageSurvivorship:        "survivors.json",
	models.StageDisposition:         "dispositions.json",
	models.StageFinalOutput:         "review.json",
}

const filteredOutFile = "filtered_out.json"

// exactEqualsArtifact is the exact_equals stage's committed artifact.
type exactEqualsArtifact struct {
	Representatives []string            `json:"representatives"`
	ExactEdges      []models.ScoredPair `json:"exact_edges"`
}

// filteringArtifact is the filtering stage's committed artifact: the final
// surviving id set that candidate_generation and everything downstream
// operates over.
type filteringArtifact struct {
	SurvivingIDs []string `json:"surviving_ids"`
}

// groupingArtifact is the grouping stage's committed artifact: the groups
// plus the accepted-edge forest the survivorship stage needs to compute
// weakest_edge_to_primary.
type groupingArtifact struct {
	Groups        []models.Group      `json:"groups"`
	AcceptedEdges []models.ScoredPair `json:"accepted_edges"`
}

// reviewArtifact is the final_output stage's review-ready artifact: every
// input record's final disposition plus the group structure that produced
// it, in one file a human reviewer (or the out-of-scope review UI) opens.
type reviewArtifact struct {
	RunID   string                       `json:"run_id"`
	Records []models.DispositionedRecord `json:"records"`
	Groups  []models.Group               `json:"groups"`
}

func writeJSONArtifact(runDir string, stage models.StageName, v any) (string, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("orchestrator: marshal %s artifact: %w", stage, err)
	}
	return artifact.WriteAtomic(runDir, artifactFile[stage], payload)
}

func readJSONArtifact(runDir string, stage models.StageName, v any) error {
	path := filepath.Join(runDir, artifactFile[stage])
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("orchestrator: read %s artifact: %w", stage, err)
	}
	return json.Unmarshal(payload, v)
}

func writeFilteredOut(runDir string, rows []models.FilteredRow) error {
	payload, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: marshal filtered-out audit: %w", err)
	}
	_, err = artifact.WriteAtomic(runDir, filteredOutFile, payload)
	return err
}

func readFilteredOut(runDir string) ([]models.FilteredRow, error) {
	path := filepath.Join(runDir, filteredOutFile)
	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read filtered-out audit: %w", err)
	}
	var rows []models.FilteredRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
