package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeJDLaw/company-junction-sub001/internal/artifact"
	"github.com/JoeJDLaw/company-junction-sub001/internal/block"
	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/internal/disposition"
	"github.com/JoeJDLaw/company-junction-sub001/internal/exactequals"
	"github.com/JoeJDLaw/company-junction-sub001/internal/group"
	"github.com/JoeJDLaw/company-junction-sub001/internal/normalize"
	"github.com/JoeJDLaw/company-junction-sub001/internal/score"
	"github.com/JoeJDLaw/company-junction-sub001/internal/survivor"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// Orchestrator drives the nine-stage mini-DAG for a single run. All
// configuration is immutable after construction; stages within a run
// execute strictly sequentially, each internally parallelizable via its own
// worker pool: a single-threaded driver over a multi-threaded worker pool
// per stage.
type Orchestrator struct {
	cfg     *config.Config
	logger  *zap.Logger
	locator RunLocator
}

// New builds an Orchestrator from a frozen configuration. locator may be
// nil, in which case auto-detect resume is unavailable: a run without an
// explicit PriorRunDir starts fresh, unless it sets ResumeFromStage without
// Force, which is refused because there is no prior run to resume.
func New(cfg *config.Config, logger *zap.Logger, locator RunLocator) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, logger: logger, locator: locator}
}

// Result is everything a caller needs after a successful run: the final
// dispositioned records (in input order), the groups that produced them,
// the run's state document, and the filtered-out audit trail.
type Result struct {
	Records     []models.DispositionedRecord
	Groups      []models.Group
	State       *models.PipelineState
	FilteredOut []models.FilteredRow
	RunDir      string
}

// runData accumulates every stage's in-memory output across the run. When
// resuming, stages the plan skips have their fields populated by loading
// the corresponding committed artifact instead of recomputing it.
type runData struct {
	byID          map[string]models.NormalizedRecord
	normalized    []models.NormalizedRecord
	exactResult   exactEqualsArtifact
	survivingIDs  []string
	candidates    []models.CandidatePair
	scored        []models.ScoredPair
	groups        []models.Group
	accepted      []models.ScoredPair
	dispositioned []models.DispositionedRecord
	filteredOut   []models.FilteredRow
}

// Run executes the pipeline over records, applying the resume rules, and
// returns once every stage has committed or a stage fails.
func (o *Orchestrator) Run(ctx context.Context, records []models.Record, opts RunOptions) (*Result, error) {
	configHash, err := o.cfg.Hash()
	if err != nil {
		return nil, ConfigError("failed to hash configuration: " + err.Error())
	}
	inputHash, err := hashRecords(records)
	if err != nil {
		return nil, ConfigError("failed to hash input table: " + err.Error())
	}

	runDir, runID, st, err := o.resolveRun(opts, inputHash, configHash)
	if err != nil {
		return nil, err
	}

	if err := artifact.GCOrphanedTemp(runDir); err != nil {
		o.logger.Warn("failed to garbage-collect orphaned temp artifacts", zap.Error(err))
	}

	startIdx := 0
	if !opts.NoResume {
		resumeStage := earliestNonCompletedStage(st)
		if resumeStage != "" {
			startIdx = stageIndex(resumeStage)
		} else {
			startIdx = len(models.StageOrder) // everything already completed
		}
	}

	rd := &runData{}
	if startIdx > 0 {
		if err := o.loadCompletedArtifacts(runDir, startIdx, rd); err != nil {
			return nil, newStageError(models.StageOrder[0], KindStageFailure, "delete the run directory and re-run without --resume-from", err)
		}
	}

	normalizer := normalize.New(o.cfg.Normalization)
	blocker := block.New(o.cfg.Blocking)
	scorer := score.New(o.cfg.Similarity)
	grouper := group.New(o.cfg.Grouping, o.cfg.Similarity)
	selector := survivor.New(o.cfg.Survivorship)
	engine := disposition.New(o.cfg.Disposition)

	// opts.Workers overrides the frozen config's worker count for this run
	// only; it is a per-invocation performance knob, not part of the
	// semantic configuration the hash above guards. A count of 0 resolves
	// to the hardware thread count.
	scoringWorkers := o.cfg.Parallel.Workers
	if opts.Workers > 0 {
		scoringWorkers = opts.Workers
	}
	if scoringWorkers <= 0 {
		scoringWorkers = runtime.GOMAXPROCS(0)
	}

	for i := startIdx; i < len(models.StageOrder); i++ {
		stage := models.StageOrder[i]

		select {
		case <-ctx.Done():
			markInterrupted(st, stage)
			_ = saveState(runDir, st)
			return nil, newStageError(stage, KindInterrupted, "re-run with --resume-from "+string(stage), ctx.Err())
		default:
		}

		markRunning(st, stage, inputHash, configHash)
		if err := saveState(runDir, st); err != nil {
			return nil, newStageError(stage, KindStageFailure, "state file could not be committed; re-run", err)
		}
		o.logger.Info("stage starting", zap.String("stage", string(stage)), zap.String("run_id", runID))

		artifactPath, err := o.runStage(ctx, stage, runDir, records, rd, normalizer, blocker, scorer, grouper, selector, engine, scoringWorkers)
		if err != nil {
			markFailed(st, stage)
			_ = saveState(runDir, st)
			var se *StageError
			if asStageError(err, &se) {
				o.logger.Error("stage failed",
					zap.String("stage", string(stage)),
					zap.String("kind", string(se.Kind)),
					zap.String("hint", se.Hint),
					zap.Error(se.cause))
				return nil, se
			}
			wrapped := newStageError(stage, KindStageFailure, "inspect the error, fix the cause, and re-run with --resume-from "+string(stage), err)
			o.logger.Error("stage failed", zap.String("stage", string(stage)), zap.Error(err))
			return nil, wrapped
		}

		markCompleted(st, stage, artifactPath)
		if err := saveState(runDir, st); err != nil {
			return nil, newStageError(stage, KindStageFailure, "state file could not be committed; re-run", err)
		}
		// Persist the audit alongside each stage so a resume after a later
		// failure still sees every row rejected so far.
		if err := writeFilteredOut(runDir, rd.filteredOut); err != nil {
			o.logger.Warn("failed to persist filtered-out audit", zap.Error(err))
		}
		o.logger.Info("stage completed", zap.String("stage", string(stage)), zap.String("artifact", artifactPath))
	}

	return &Result{
		Records:     rd.dispositioned,
		Groups:      rd.groups,
		State:       st,
		FilteredOut: rd.filteredOut,
		RunDir:      runDir,
	}, nil
}

// resolveRun applies the resume rules (explicit resume-from, auto-detect,
// or no-resume) and returns the run directory, run id, and loaded (or
// fresh) state.
func (o *Orchestrator) resolveRun(opts RunOptions, inputHash, configHash string) (runDir, runID string, st *models.PipelineState, err error) {
	if opts.NoResume {
		runID = uuid.NewString()
		runDir = filepath.Join(opts.OutDir, runID)
		return runDir, runID, freshState(runID), nil
	}

	priorDir := opts.PriorRunDir
	if priorDir == "" && o.locator != nil {
		if dir, ok := o.locator.Latest(); ok {
			priorDir = dir
		}
	}

	if priorDir == "" {
		if opts.ResumeFromStage != "" && !opts.Force {
			return "", "", nil, HashMismatchError(opts.ResumeFromStage, "no prior run found to resume from")
		}
		runID = uuid.NewString()
		return filepath.Join(opts.OutDir, runID), runID, freshState(runID), nil
	}

	runID = filepath.Base(priorDir)
	prior, err := loadState(priorDir, runID)
	if err != nil {
		return "", "", nil, newStageError("", KindStageFailure, "delete the stale run directory and re-run", err)
	}

	hashesMatch := true
	for _, s := range models.StageOrder {
		entry := prior.Stages[s]
		if entry.Status == models.StatusCompleted && (entry.InputHash != inputHash || entry.ConfigHash != configHash) {
			hashesMatch = false
			break
		}
	}

	if opts.ResumeFromStage != "" {
		idx := stageIndex(opts.ResumeFromStage)
		if idx < 0 {
			return "", "", nil, ConfigError("unknown --resume-from stage: " + string(opts.ResumeFromStage))
		}
		priorStagesComplete := true
		for j := 0; j < idx; j++ {
			if prior.Stages[models.StageOrder[j]].Status != models.StatusCompleted {
				priorStagesComplete = false
				break
			}
		}
		if !hashesMatch || !priorStagesComplete {
			if !opts.Force {
				return "", "", nil, HashMismatchError(opts.ResumeFromStage,
					"input or config changed since the prior run, or prior stages are incomplete")
			}
			runID = uuid.NewString()
			return filepath.Join(opts.OutDir, runID), runID, freshState(runID), nil
		}
		// Explicit --resume-from always restarts at the named stage, even
		// if a prior run had already completed it: reset it (and
		// everything after) to pending so the loop below recomputes it.
		resetFromStage(prior, idx)
		return priorDir, runID, prior, nil
	}

	if !hashesMatch {
		runID = uuid.NewString()
		return filepath.Join(opts.OutDir, runID), runID, freshState(runID), nil
	}
	return priorDir, runID, prior, nil
}

func (o *Orchestrator) loadCompletedArtifacts(runDir string, uptoIdx int, rd *runData) error {
	for j := 0; j < uptoIdx; j++ {
		stage := models.StageOrder[j]
		switch stage {
		case models.StageNormalization:
			if err := readJSONArtifact(runDir, stage, &rd.normalized); err != nil {
				return err
			}
			rd.byID = indexByID(rd.normalized)
		case models.StageExactEquals:
			if err := readJSONArtifact(runDir, stage, &rd.exactResult); err != nil {
				return err
			}
		case models.StageFiltering:
			var fa filteringArtifact
			if err := readJSONArtifact(runDir, stage, &fa); err != nil {
				return err
			}
			rd.survivingIDs = fa.SurvivingIDs
		case models.StageCandidateGeneration:
			if err := readJSONArtifact(runDir, stage, &rd.candidates); err != nil {
				return err
			}
		case models.StageScoring:
			if err := readJSONArtifact(runDir, stage, &rd.scored); err != nil {
				return err
			}
		case models.StageGrouping:
			var ga groupingArtifact
			if err := readJSONArtifact(runDir, stage, &ga); err != nil {
				return err
			}
			rd.groups, rd.accepted = ga.Groups, ga.AcceptedEdges
		case models.StageSurvivorship:
			if err := readJSONArtifact(runDir, stage, &rd.groups); err != nil {
				return err
			}
		case models.StageDisposition:
			if err := readJSONArtifact(runDir, stage, &rd.dispositioned); err != nil {
				return err
			}
		}
	}
	filtered, err := readFilteredOut(runDir)
	if err != nil {
		return err
	}
	rd.filteredOut = filtered
	return nil
}

// runStage executes exactly one stage against rd, committing its artifact,
// and returns the committed artifact path.
func (o *Orchestrator) runStage(
	ctx context.Context,
	stage models.StageName,
	runDir string,
	records []models.Record,
	rd *runData,
	normalizer *normalize.Normalizer,
	blocker *block.Blocker,
	scorer *score.Scorer,
	grouper *group.Grouper,
	selector *survivor.Selector,
	engine *disposition.Engine,
	scoringWorkers int,
) (string, error) {
	runID := filepath.Base(runDir)

	switch stage {
	case models.StageNormalization:
		rd.normalized = make([]models.NormalizedRecord, len(records))
		for i, r := range records {
			rd.normalized[i] = normalizer.Normalize(r)
		}
		rd.byID = indexByID(rd.normalized)
		return writeJSONArtifact(runDir, stage, rd.normalized)

	case models.StageExactEquals:
		res := exactequals.Find(rd.normalized, o.cfg.Pipeline.ExactEqualsMinGroupSize)
		rd.exactResult = exactEqualsArtifact{Representatives: res.Representatives, ExactEdges: res.ExactEdges}
		rd.filteredOut = append(rd.filteredOut, res.FilteredOut...)
		return writeJSONArtifact(runDir, stage, rd.exactResult)

	case models.StageFiltering:
		rd.survivingIDs = o.filterSurviving(rd)
		return writeJSONArtifact(runDir, stage, filteringArtifact{SurvivingIDs: rd.survivingIDs})

	case models.StageCandidateGeneration:
		surviving := make([]models.NormalizedRecord, 0, len(rd.survivingIDs))
		for _, id := range rd.survivingIDs {
			surviving = append(surviving, rd.byID[id])
		}
		res := blocker.Generate(surviving)
		if res.Truncated {
			o.logger.Warn("blocker hit global pair cap; truncating deterministically",
				zap.Int("dropped", res.DroppedCount))
		}
		rd.candidates = res.Pairs
		return writeJSONArtifact(runDir, stage, rd.candidates)

	case models.StageScoring:
		if scoringWorkers > 1 {
			rd.scored = scorer.ScoreParallel(rd.candidates, rd.byID, scoringWorkers)
		} else {
			rd.scored = scorer.ScoreBulk(rd.candidates, rd.byID)
		}
		return writeJSONArtifact(runDir, stage, rd.scored)

	case models.StageGrouping:
		enhanced := make(map[string][]string, len(rd.byID))
		for id, r := range rd.byID {
			enhanced[id] = r.EnhancedTokens
		}
		res := grouper.Group(runID, rd.survivingIDs, rd.exactResult.ExactEdges, rd.scored, enhanced, scoringWorkers)
		rd.groups, rd.accepted = res.Groups, res.AcceptedEdges
		o.logger.Info("grouping stats",
			zap.Int("canopy_rejections", res.Stats.CanopyRejections),
			zap.Int("gate_rejections", res.Stats.GateRejections),
			zap.Int("edges_accepted", res.Stats.EdgesAccepted))
		return writeJSONArtifact(runDir, stage, groupingArtifact{Groups: rd.groups, AcceptedEdges: rd.accepted})

	case models.StageSurvivorship:
		selector.Select(rd.groups, rd.byID, rd.accepted)
		return writeJSONArtifact(runDir, stage, rd.groups)

	case models.StageDisposition:
		idx := disposition.GroupIndex(rd.groups)
		rd.dispositioned = engine.Classify(rd.normalized, idx, nil)
		return writeJSONArtifact(runDir, stage, rd.dispositioned)

	case models.StageFinalOutput:
		return writeJSONArtifact(runDir, stage, reviewArtifact{
			RunID:   runID,
			Records: rd.dispositioned,
			Groups:  rd.groups,
		})
	}
	return "", fmt.Errorf("orchestrator: unknown stage %s", stage)
}

// filterSurviving applies the filtering stage's rules: keep only exact-
// equals representatives, drop records with no account_id (InputError,
// recoverable) or a duplicate account_id, recording each drop in the
// filtered-out audit. Surviving records with no usable name content are
// kept (they become singletons downstream) but audited, since blocking
// can never pair them.
func (o *Orchestrator) filterSurviving(rd *runData) []string {
	repSet := make(map[string]bool, len(rd.exactResult.Representatives))
	for _, id := range rd.exactResult.Representatives {
		repSet[id] = true
	}

	seen := make(map[string]bool, len(rd.normalized))
	surviving := make([]string, 0, len(repSet))
	for _, r := range rd.normalized {
		if !repSet[r.AccountID] {
			continue
		}
		if r.AccountID == "" {
			rd.filteredOut = append(rd.filteredOut, models.FilteredRow{
				Stage: models.StageFiltering, ReasonCode: "missing_account_id",
				Detail: "record has no account_id",
			})
			continue
		}
		if seen[r.AccountID] {
			rd.filteredOut = append(rd.filteredOut, models.FilteredRow{
				AccountID: r.AccountID, Stage: models.StageFiltering,
				ReasonCode: "duplicate_account_id", Detail: "account_id appeared more than once",
			})
			continue
		}
		seen[r.AccountID] = true
		surviving = append(surviving, r.AccountID)

		// Records with no usable name still survive (they must surface as
		// singletons in the final output), but they cannot participate in
		// blocking or scoring, so the audit records why they never pair.
		if r.NameCore == "" {
			rd.filteredOut = append(rd.filteredOut, models.FilteredRow{
				AccountID: r.AccountID, Stage: models.StageFiltering,
				ReasonCode: "empty_name_core", Detail: "no name content after normalization; carried as singleton",
			})
		} else if len(r.Tokens) == 0 {
			rd.filteredOut = append(rd.filteredOut, models.FilteredRow{
				AccountID: r.AccountID, Stage: models.StageFiltering,
				ReasonCode: "no_tokens", Detail: "name_core yields no tokens; carried as singleton",
			})
		}
	}
	sort.Strings(surviving)
	return surviving
}

// resetFromStage reverts every stage from idx onward to pending, clearing
// its prior hashes and artifact path, so an explicit --resume-from always
// recomputes the named stage rather than trusting a stale "completed".
func resetFromStage(st *models.PipelineState, idx int) {
	for j := idx; j < len(models.StageOrder); j++ {
		st.Stages[models.StageOrder[j]] = &models.StageState{Status: models.StatusPending}
	}
}

func indexByID(records []models.NormalizedRecord) map[string]models.NormalizedRecord {
	byID := make(map[string]models.NormalizedRecord, len(records))
	for _, r := range records {
		byID[r.AccountID] = r
	}
	return byID
}

// hashRecords computes the stable content hash of the input table for
// resume-hash-guard purposes: content-only, ignoring trailing
// whitespace/newlines.
func hashRecords(records []models.Record) (string, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return artifact.HashBytes(artifact.NormalizeForHash(payload)), nil
}

// asStageError reports whether err is itself a *StageError (a direct type
// assertion; wrapped errors are not unwrapped) and stores it in target.
func asStageError(err error, target **StageError) bool {
	se, ok := err.(*StageError)
	if !ok {
		return false
	}
	*target = se
	return true
}
