// Package models holds the shared data types that flow between pipeline
// stages: raw input records, their normalized derivatives, candidate and
// scored pairs, groups, dispositioned output rows, and the orchestrator's
// per-run state document.
package models

import "time"

// SuffixClass is the detected legal-suffix category of a normalized name.
type SuffixClass string

const (
	SuffixNone SuffixClass = "NONE"
	SuffixInc  SuffixClass = "INC"
	SuffixLLC  SuffixClass = "LLC"
	SuffixLtd  SuffixClass = "LTD"
	SuffixCorp SuffixClass = "CORP"
	SuffixLLP  SuffixClass = "LLP"
	SuffixLP   SuffixClass = "LP"
	SuffixPLLC SuffixClass = "PLLC"
	SuffixPC   SuffixClass = "PC"
	SuffixCo   SuffixClass = "CO"
	SuffixGmbH SuffixClass = "GMBH"
)

// GroupJoinReason identifies why an edge was accepted into a group.
type GroupJoinReason string

const (
	ReasonExactEqualRaw       GroupJoinReason = "exact_equal_raw"
	ReasonEdgeHigh            GroupJoinReason = "edge_high"
	ReasonEdgeMediumSharedTok GroupJoinReason = "edge_medium_shared_token"
)

// Disposition is the final per-record verdict.
type Disposition string

const (
	DispositionKeep   Disposition = "Keep"
	DispositionUpdate Disposition = "Update"
	DispositionDelete Disposition = "Delete"
	DispositionVerify Disposition = "Verify"
)

// StageName enumerates the orchestrator's mini-DAG stages, in run order.
type StageName string

const (
	StageNormalization       StageName = "normalization"
	StageExactEquals         StageName = "exact_equals"
	StageFiltering           StageName = "filtering"
	StageCandidateGeneration StageName = "candidate_generation"
	StageScoring             StageName = "scoring"
	StageGrouping            StageName = "grouping"
	StageSurvivorship        StageName = "survivorship"
	StageDisposition         StageName = "disposition"
	StageFinalOutput         StageName = "final_output"
)

// StageOrder is the strict execution order of the mini-DAG.
var StageOrder = []StageName{
	StageNormalization,
	StageExactEquals,
	StageFiltering,
	StageCandidateGeneration,
	StageScoring,
	StageGrouping,
	StageSurvivorship,
	StageDisposition,
	StageFinalOutput,
}

// Record is one raw input row from the CRM-like export. Passthrough carries
// any opaque columns the ingestion collaborator attached that the core does
// not interpret but must preserve into the final output.
type Record struct {
	AccountID      string            `json:"account_id"`
	AccountNameRaw string            `json:"account_name_raw"`
	CreatedDate    time.Time         `json:"created_date"`
	Relationship   string            `json:"relationship,omitempty"`
	Passthrough    map[string]string `json:"passthrough,omitempty"`
}

// NormalizedRecord is the Normalizer's output: a Record plus every derived
// field the rest of the pipeline consumes instead of the raw name.
type NormalizedRecord struct {
	Record

	NameBase       string      `json:"name_base"`
	NameCore       string      `json:"name_core"`
	SuffixClass    SuffixClass `json:"suffix_class"`
	Tokens         []string    `json:"tokens,omitempty"`
	EnhancedTokens []string    `json:"enhanced_tokens,omitempty"`
	RawExactKey    string      `json:"raw_exact_key"`
}

// CandidatePair is a pair of account ids proposed by the Blocker.
// IDA < IDB always holds for emitted pairs.
type CandidatePair struct {
	IDA      string `json:"id_a"`
	IDB      string `json:"id_b"`
	BlockKey string `json:"block_key"`
	ShardIdx int    `json:"shard_idx"`
}

// ScoredPair is a CandidatePair annotated with the Scorer's composite
// similarity features.
type ScoredPair struct {
	CandidatePair

	RatioName           int             `json:"ratio_name"`
	RatioSet            int             `json:"ratio_set"`
	Jaccard             float64         `json:"jaccard"`
	NumStyleMatch       bool            `json:"num_style_match"`
	SuffixMatch         bool            `json:"suffix_match"`
	PunctuationMismatch bool            `json:"punctuation_mismatch"`
	BaseScore           float64         `json:"base_score"`
	Score               int             `json:"score"`
	GroupJoinReason     GroupJoinReason `json:"group_join_reason,omitempty"`
}

// Group is a disjoint component of records believed to refer to the same
// real-world entity.
type Group struct {
	GroupID              string              `json:"group_id"`
	Members              []string            `json:"members"`
	PrimaryID            string              `json:"primary_id"`
	WeakestEdgeToPrimary map[string]*float64 `json:"weakest_edge_to_primary,omitempty"` // nil value = singleton/no edge
	GroupSize            int                 `json:"group_size"`
	// SuffixMismatch records whether any accepted edge that formed this
	// group had SuffixMatch=false; the Disposition Engine's rule 4 reads it.
	SuffixMismatch bool `json:"suffix_mismatch"`
}

// DispositionedRecord is a Record annotated with its group membership and
// final disposition verdict.
type DispositionedRecord struct {
	Record

	GroupID           string      `json:"group_id"`
	PrimaryID         string      `json:"primary_id"`
	Disposition       Disposition `json:"disposition"`
	DispositionReason string      `json:"disposition_reason"`
}

// FilteredRow is one entry in a stage's filtered-out audit artifact.
type FilteredRow struct {
	AccountID  string    `json:"account_id"`
	Stage      StageName `json:"stage"`
	ReasonCode string    `json:"reason_code"`
	Detail     string    `json:"detail,omitempty"`
}

// StageStatus is the lifecycle status of one orchestrator stage.
type StageStatus string

const (
	StatusPending     StageStatus = "pending"
	StatusRunning     StageStatus = "running"
	StatusCompleted   StageStatus = "completed"
	StatusFailed      StageStatus = "failed"
	StatusInterrupted StageStatus = "interrupted"
)

// StageState is one entry of the per-run PipelineState map.
type StageState struct {
	Status       StageStatus `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
	InputHash    string      `json:"input_hash"`
	ConfigHash   string      `json:"config_hash"`
	ArtifactPath string      `json:"artifact_path"`
}

// PipelineState is the orchestrator's per-run state document: a map from
// stage name to its current status, plus run-level identifying fields.
// It is mutated only by the orchestrator, single-writer per run.
type PipelineState struct {
	RunID      string                    `json:"run_id"`
	DAGVersion string                    `json:"dag_version"`
	Stages     map[StageName]*StageState `json:"stages"`
}

// RunMetadata is one row of the cross-run run-index ledger.
type RunMetadata struct {
	RunID      string      `json:"run_id"`
	InputHash  string      `json:"input_hash"`
	ConfigHash string      `json:"config_hash"`
	Status     StageStatus `json:"status"`
	RunType    string      `json:"run_type"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt time.Time   `json:"finished_at"`
}
