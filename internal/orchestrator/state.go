package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JoeJDLaw/company-junction-sub001/internal/artifact"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

const stateFileName = "state.json"
const dagVersion = "1"

// loadState reads a run directory's state.json, or returns a fresh,
// all-pending state if the directory has no state file yet (a brand-new
// run).
func loadState(runDir, runID string) (*models.PipelineState, error) {
	path := filepath.Join(runDir, stateFileName)
	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return freshState(runID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read state: %w", err)
	}

	var st models.PipelineState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("orchestrator: parse state: %w", err)
	}
	if st.Stages == nil {
		st.Stages = make(map[models.StageName]*models.StageState)
	}
	// A state file from a partial write or an older DAG may be missing
	// stage entries; treat any absent stage as pending rather than
	// dereferencing nil downstream.
	for _, s := range models.StageOrder {
		if st.Stages[s] == nil {
			st.Stages[s] = &models.StageState{Status: models.StatusPending}
		}
	}
	return &st, nil
}

func freshState(runID string) *models.PipelineState {
	stages := make(map[models.StageName]*models.StageState, len(models.StageOrder))
	for _, s := range models.StageOrder {
		stages[s] = &models.StageState{Status: models.StatusPending}
	}
	return &models.PipelineState{RunID: runID, DAGVersion: dagVersion, Stages: stages}
}

// saveState commits the state document via write-temp-then-rename. A
// stage's completed pointer is only written after its artifact has itself
// been committed, so the state file never references a half-written
// artifact.
func saveState(runDir string, st *models.PipelineState) error {
	payload, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: marshal state: %w", err)
	}
	_, err = artifact.WriteAtomic(runDir, stateFileName, payload)
	return err
}

// markRunning transitions a stage to running and records its start time and
// hashes. It only mutates st; the caller persists it with saveState before
// the stage executes, so a crash mid-stage leaves an accurate "running"
// (not "completed") record for resume to find.
func markRunning(st *models.PipelineState, stage models.StageName, inputHash, configHash string) {
	s := st.Stages[stage]
	s.Status = models.StatusRunning
	s.StartedAt = time.Now()
	s.InputHash = inputHash
	s.ConfigHash = configHash
}

// markCompleted transitions a stage to completed once its artifact has
// already been committed to disk; artifactPath is the committed path.
func markCompleted(st *models.PipelineState, stage models.StageName, artifactPath string) {
	s := st.Stages[stage]
	s.Status = models.StatusCompleted
	s.FinishedAt = time.Now()
	s.ArtifactPath = artifactPath
}

func markFailed(st *models.PipelineState, stage models.StageName) {
	s := st.Stages[stage]
	s.Status = models.StatusFailed
	s.FinishedAt = time.Now()
}

func markInterrupted(st *models.PipelineState, stage models.StageName) {
	s := st.Stages[stage]
	s.Status = models.StatusInterrupted
	s.FinishedAt = time.Now()
}

// earliestNonCompletedStage returns the first stage (in DAG order) whose
// status is not "completed", or "" if every stage is completed.
func earliestNonCompletedStage(st *models.PipelineState) models.StageName {
	for _, s := range models.StageOrder {
		if st.Stages[s].Status != models.StatusCompleted {
			return s
		}
	}
	return ""
}

// stageIndex returns the position of stage in the DAG order, or -1.
func stageIndex(stage models.StageName) int {
	for i, s := range models.StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}
