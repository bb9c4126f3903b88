package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JoeJDLaw/company-junction-sub001/internal/config"
	"github.com/JoeJDLaw/company-junction-sub001/internal/orchestrator"
	"github.com/JoeJDLaw/company-junction-sub001/internal/runindex"
	"github.com/JoeJDLaw/company-junction-sub001/internal/statusapi"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	log.Println("Starting Account Dedup Engine...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All run inputs come from environment variables. Only DEDUP_INPUT_CSV
	// is required; the others fall back to the defaults given below.
	// ────────────────────────────────────────────────────────────────────

	inputPath := requireEnv("DEDUP_INPUT_CSV")
	outDir := getEnvOrDefault("DEDUP_ARTIFACTS_DIR", "./artifacts")
	runType := getEnvOrDefault("DEDUP_RUN_TYPE", "dev")
	resumeFrom := getEnvOrDefault("DEDUP_RESUME_FROM_STAGE", "")
	force := getEnvOrDefault("DEDUP_FORCE", "") != ""
	noResume := getEnvOrDefault("DEDUP_NO_RESUME", "") != ""
	workers := envInt("DEDUP_WORKERS", 0)

	records, err := loadRecordsCSV(inputPath)
	if err != nil {
		log.Fatalf("FATAL: failed to load input CSV %s: %v", inputPath, err)
	}
	logger.Info("loaded input records", zap.Int("count", len(records)), zap.String("path", inputPath))

	cfg := config.Default()
	index := runindex.New(outDir)

	orch := orchestrator.New(cfg, logger, index)

	opts := orchestrator.RunOptions{
		OutDir:          outDir,
		ResumeFromStage: models.StageName(resumeFrom),
		Force:           force,
		NoResume:        noResume,
		RunType:         runType,
		Workers:         workers,
	}

	// Setup WebSocket/status hub; optional, enabled only when a port is set.
	var hub *statusapi.Hub
	registry := statusapi.NewCancelRegistry()
	states := newStateTracker()
	if port := os.Getenv("DEDUP_STATUS_PORT"); port != "" {
		hub = statusapi.NewHub()
		go hub.Run()
		limiter := statusapi.NewRateLimiter(60, 10)
		router := statusapi.SetupRouter(states, registry, hub, limiter)
		go func() {
			log.Printf("status API running on :%s\n", port)
			if err := router.Run(":" + port); err != nil {
				log.Printf("warning: status API server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	registry.Register("current", cancel)
	defer registry.Unregister("current")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("received interrupt signal, cancelling run")
		cancel()
	}()

	started := time.Now()
	result, err := orch.Run(ctx, records, opts)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		recordRunOutcome(index, result, runType, models.StatusFailed, started)
		os.Exit(exitCodeFor(err))
	}

	states.set(result.State.RunID, result.State)
	recordRunOutcome(index, result, runType, models.StatusCompleted, started)

	if hub != nil {
		if payload, err := json.Marshal(result.State); err == nil {
			hub.Broadcast(payload)
		}
	}

	logger.Info("run completed",
		zap.String("run_id", result.State.RunID),
		zap.Int("groups", len(result.Groups)),
		zap.Int("records", len(result.Records)),
		zap.Int("filtered_out", len(result.FilteredOut)),
		zap.Duration("elapsed", time.Since(started)))
}

// Exit codes: 0 success, 1 generic failure, and dedicated codes so shell
// wrappers can distinguish a hash-mismatch resume refusal from a
// user-requested interruption.
const (
	exitGenericFailure = 1
	exitHashMismatch   = 3
	exitInterrupted    = 130
)

func exitCodeFor(err error) int {
	var se *orchestrator.StageError
	if !errors.As(err, &se) {
		return exitGenericFailure
	}
	switch se.Kind {
	case orchestrator.KindHashMismatch:
		return exitHashMismatch
	case orchestrator.KindInterrupted:
		return exitInterrupted
	default:
		return exitGenericFailure
	}
}

// recordRunOutcome writes the completed (or failed) run's metadata into the
// run-index ledger, taking run_id and the input/config hashes from the
// result's state. Run returns a nil result on failure, so a failed run is
// recorded with an empty run_id and empty hashes, leaving only its status,
// run type and timestamps against this artifacts root.
func recordRunOutcome(index *runindex.Store, result *orchestrator.Result, runType string, status models.StageStatus, started time.Time) {
	meta := models.RunMetadata{
		RunType:    runType,
		Status:     status,
		CreatedAt:  started,
		FinishedAt: time.Now(),
	}
	if result != nil && result.State != nil {
		meta.RunID = result.State.RunID
		if st := result.State.Stages[models.StageNormalization]; st != nil {
			meta.InputHash, meta.ConfigHash = st.InputHash, st.ConfigHash
		}
	}
	if err := index.Record(meta); err != nil {
		log.Printf("warning: failed to record run outcome in run-index: %v", err)
	}
}

// stateTracker is the in-process StateProvider backing internal/statusapi.
// main sets it once, after the run completes successfully, so it serves the
// completed run's state only. It is deliberately tiny: a single
// binary running one run at a time never needs more than the latest state.
type stateTracker struct {
	runID string
	state *models.PipelineState
}

func newStateTracker() *stateTracker { return &stateTracker{} }

func (t *stateTracker) set(runID string, state *models.PipelineState) {
	t.runID, t.state = runID, state
}

func (t *stateTracker) GetState(runID string) (*models.PipelineState, bool) {
	if t.state == nil || runID != t.runID {
		return nil, false
	}
	return t.state, true
}

// loadRecordsCSV reads account records from a CSV with a header row:
// account_id, account_name, created_date, relationship. Any additional
// columns are carried through in Passthrough so they survive into the
// final review artifact. Columnar/parquet input belongs to the ingestion
// collaborator; this is the minimal loader a runnable binary needs.
func loadRecordsCSV(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[h] = i
	}

	var records []models.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec := models.Record{Passthrough: make(map[string]string)}
		for col, idx := range colIdx {
			if idx >= len(row) {
				continue
			}
			val := row[idx]
			switch col {
			case "account_id":
				rec.AccountID = val
			case "account_name":
				rec.AccountNameRaw = val
			case "relationship":
				rec.Relationship = val
			case "created_date":
				rec.CreatedDate = parseCreatedDate(val)
			default:
				rec.Passthrough[col] = val
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// spreadsheetEpoch is day zero of the 1900 date system most spreadsheet
// exports use (Dec 30, not 31, absorbing the system's fictitious Feb 29 1900).
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// parseCreatedDate accepts either an ISO date or a spreadsheet serial
// number, the two shapes CRM exports deliver created_date in. Anything else
// parses to the zero time, which the survivor tie-breaker chain tolerates.
func parseCreatedDate(val string) time.Time {
	if val == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return t
	}
	if serial, err := strconv.ParseFloat(val, 64); err == nil && serial > 0 {
		return spreadsheetEpoch.Add(time.Duration(serial * 24 * float64(time.Hour)))
	}
	return time.Time{}
}

// newLogger builds a zap.Logger matched to DEDUP_LOG_FORMAT: "json"
// (production, the default) or "console" (local development).
func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if getEnvOrDefault("DEDUP_LOG_FORMAT", "json") == "console" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("FATAL: failed to build logger: %v", err)
	}
	return logger
}

// requireEnv reads a required environment variable and exits if it is not
// set. This prevents the binary from starting with missing critical
// configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set.", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

