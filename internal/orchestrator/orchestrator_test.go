package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

func sampleRecords() []models.Record {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Record{
		{AccountID: "A1", AccountNameRaw: "20-20 Plumbing and Heating Inc", Relationship: "Company Name on W-2", CreatedDate: base},
		{AccountID: "A2", AccountNameRaw: "20/20 Plumbing & Heating, Inc.", Relationship: "Other/Miscellaneous", CreatedDate: base.AddDate(1, 0, 0)},
		{AccountID: "A3", AccountNameRaw: "20 20 Plumbing & Heating Inc", Relationship: "Other/Miscellaneous", CreatedDate: base.AddDate(2, 0, 0)},
		{AccountID: "C1", AccountNameRaw: "N/A", CreatedDate: base},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Survivorship.RelationshipRanks = map[string]int{
		"Company Name on W-2": 10,
		"Other/Miscellaneous": 60,
	}
	return cfg
}

func TestOrchestrator_FreshRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	o := New(testConfig(), nil, nil)

	res, err := o.Run(context.Background(), sampleRecords(), RunOptions{OutDir: dir, NoResume: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Records) != 4 {
		t.Fatalf("expected 4 dispositioned records, got %d", len(res.Records))
	}

	byID := make(map[string]models.DispositionedRecord, len(res.Records))
	for _, r := range res.Records {
		byID[r.AccountID] = r
	}

	if byID["A1"].Disposition != models.DispositionKeep {
		t.Errorf("A1 disposition = %s, want Keep", byID["A1"].Disposition)
	}
	if byID["A2"].Disposition != models.DispositionUpdate {
		t.Errorf("A2 disposition = %s, want Update", byID["A2"].Disposition)
	}
	if byID["C1"].Disposition != models.DispositionDelete {
		t.Errorf("C1 disposition = %s, want Delete", byID["C1"].Disposition)
	}

	for _, stage := range models.StageOrder {
		if res.State.Stages[stage].Status != models.StatusCompleted {
			t.Errorf("stage %s status = %s, want completed", stage, res.State.Stages[stage].Status)
		}
	}
}

func TestOrchestrator_ResumeSkipsCompletedStages(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	records := sampleRecords()

	o := New(cfg, nil, nil)
	first, err := o.Run(context.Background(), records, RunOptions{OutDir: dir, NoResume: true})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, err := o.Run(context.Background(), records, RunOptions{
		OutDir:      dir,
		PriorRunDir: first.RunDir,
	})
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}

	if second.RunDir != first.RunDir {
		t.Errorf("resumed run should reuse the same run dir, got %s vs %s", second.RunDir, first.RunDir)
	}
	if len(second.Records) != len(first.Records) {
		t.Errorf("resumed run produced %d records, want %d", len(second.Records), len(first.Records))
	}
}

func TestOrchestrator_ResumeFromStageHashMismatchRefused(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	o := New(cfg, nil, nil)

	first, err := o.Run(context.Background(), sampleRecords(), RunOptions{OutDir: dir, NoResume: true})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	mutated := sampleRecords()
	mutated[0].AccountNameRaw = "A Totally Different Name LLC"

	_, err = o.Run(context.Background(), mutated, RunOptions{
		OutDir:          dir,
		PriorRunDir:     first.RunDir,
		ResumeFromStage: models.StageSurvivorship,
	})
	if err == nil {
		t.Fatal("expected HashMismatchError, got nil")
	}
	se, ok := err.(*StageError)
	if !ok || se.Kind != KindHashMismatch {
		t.Fatalf("expected HashMismatchError, got %#v", err)
	}

	forced, err := o.Run(context.Background(), mutated, RunOptions{
		OutDir:          dir,
		PriorRunDir:     first.RunDir,
		ResumeFromStage: models.StageSurvivorship,
		Force:           true,
	})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if forced.RunDir == first.RunDir {
		t.Errorf("--force must start a new run_id, reused %s", forced.RunDir)
	}
}

func TestOrchestrator_RunDirIsUnderOutDir(t *testing.T) {
	dir := t.TempDir()
	o := New(testConfig(), nil, nil)
	res, err := o.Run(context.Background(), sampleRecords(), RunOptions{OutDir: dir, NoResume: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Dir(res.RunDir) != dir {
		t.Errorf("run dir %s not under outdir %s", res.RunDir, dir)
	}
}

func TestOrchestrator_ResumeFromWithoutPriorRunRefused(t *testing.T) {
	dir := t.TempDir()
	o := New(testConfig(), nil, nil)

	_, err := o.Run(context.Background(), sampleRecords(), RunOptions{
		OutDir:          dir,
		ResumeFromStage: models.StageGrouping,
	})
	if err == nil {
		t.Fatal("expected resume-from with no prior run to be refused")
	}
	se, ok := err.(*StageError)
	if !ok || se.Kind != KindHashMismatch {
		t.Fatalf("expected HashMismatchError, got %#v", err)
	}

	if _, err := o.Run(context.Background(), sampleRecords(), RunOptions{
		OutDir:          dir,
		ResumeFromStage: models.StageGrouping,
		Force:           true,
	}); err != nil {
		t.Fatalf("forced run should fall back to a fresh run, got %v", err)
	}
}
