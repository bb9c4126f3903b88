package orchestrator

import "github.com/JoeJDLaw/company-junction-sub001/pkg/models"

// RunOptions is the run-level option surface, expressed as a typed struct
// rather than parsed here: flag parsing is the CLI collaborator's job, the
// orchestrator only consumes the already-parsed result.
type RunOptions struct {
	// OutDir is the artifacts root; each run gets its own "<OutDir>/<run_id>"
	// directory, and artifacts are never overwritten in place.
	OutDir string

	// ResumeFromStage requests resuming at a specific stage. Empty means
	// auto-detect (resume from the earliest non-completed stage of a prior
	// matching run, or start fresh if none exists).
	ResumeFromStage models.StageName

	// Force allows a resume to proceed despite a hash mismatch, starting a
	// new run_id and re-executing from a fresh state rather than refusing.
	Force bool

	// NoResume forces a fresh run with a new run_id regardless of any
	// prior run's state.
	NoResume bool

	// RunType is recorded in the run-index ledger ("dev", "test", "prod").
	RunType string

	// PriorRunDir, if non-empty, names a specific existing run directory to
	// resume from. When empty and NoResume is false, the orchestrator asks
	// its RunLocator (if any) to find the latest matching run.
	PriorRunDir string

	// Workers sizes the scorer's and grouper's parallel paths for this run;
	// 0 defers to the configuration's Parallel.Workers (where 0 means the
	// hardware thread count). A resolved count of 1 selects the scorer's
	// single-sweep bulk path.
	Workers int
}

// RunLocator finds a prior run directory to resume from. internal/runindex
// implements this against its JSON ledger; tests can fake it.
type RunLocator interface {
	Latest() (dir string, ok bool)
}
