// Package orchestrator implements the mini-DAG: the nine-stage driver that
// runs the pipeline in order, persists a per-stage artifact and state entry
// after each one via internal/artifact's write-temp-then-rename commit, and
// supports resume-after-failure guarded by content hashes of the input
// table and the frozen configuration. The driver is a sequential loop over
// the fixed stage list, checking the cancellation signal before each stage
// and logging per-stage progress.
package orchestrator

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

// ErrorKind is the StageError taxonomy: a closed set of error kinds the
// orchestrator distinguishes when deciding whether a failure is fatal, how
// it is logged, and what exit code the caller should use.
type ErrorKind string

// Stage aliases models.StageName so this package's error/state types read
// naturally without a conversion at every call site.
type Stage = models.StageName

const (
	// KindInputError covers malformed input rows or a missing required
	// column. Recoverable per-row instances are rejected into the
	// filtered-out audit instead of raised as a StageError; only a
	// structural failure (e.g. every row missing account_id) reaches here.
	KindInputError ErrorKind = "InputError"
	// KindConfigError covers a missing or invalid config option. Always
	// fatal, always surfaced before any stage starts.
	KindConfigError ErrorKind = "ConfigError"
	// KindHashMismatch is raised when a resume is requested but the input
	// or config content hash has changed since the prior run.
	KindHashMismatch ErrorKind = "HashMismatchError"
	// KindStageFailure is the catch-all for an unrecoverable failure
	// inside a stage's own logic.
	KindStageFailure ErrorKind = "StageFailure"
	// KindInterrupted marks a run that ended via cooperative cancellation.
	KindInterrupted ErrorKind = "Interrupted"
)

// StageError is the explicit result type that replaces exception-for-
// control-flow at stage boundaries: only truly fatal conditions construct
// one, and it always names the stage, the kind, and a human next-step hint.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Hint  string
	cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %s (hint: %s)", e.Stage, e.Kind, e.cause, e.Hint)
}

func (e *StageError) Unwrap() error { return e.cause }

// newStageError wraps cause with eris (for a captured stack trace suitable
// for the single structured fatal-log-line the orchestrator emits) and
// names the stage, kind, and next-step hint.
func newStageError(stage Stage, kind ErrorKind, hint string, cause error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Hint: hint, cause: eris.Wrap(cause, string(kind))}
}

// HashMismatchError returns a StageError naming the hash mismatch's
// next-step hint: re-run with --force, or drop --resume-from.
func HashMismatchError(stage models.StageName, detail string) *StageError {
	return newStageError(stage, KindHashMismatch, "re-run with --resume-from "+string(stage)+" --force to override, or omit --resume-from for a fresh run",
		eris.New(detail))
}

// ConfigError returns a fatal StageError for a missing/invalid config
// option, raised before any stage has started (Stage is empty).
func ConfigError(detail string) *StageError {
	return newStageError("", KindConfigError, "fix the named config option and re-run", eris.New(detail))
}
