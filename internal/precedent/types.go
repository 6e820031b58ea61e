// Package precedent implements the operation precedent analyzer (C11):
// it records file-operation outcomes and answers "have we seen something
// like this before, and how did it go" queries for C12/C9.
package precedent

import "time"

// OperationKind is the closed FileOperation variant tag.
type OperationKind string

const (
	OpCreate OperationKind = "Create"
	OpUpdate OperationKind = "Update"
	OpAppend OperationKind = "Append"
	OpDelete OperationKind = "Delete"
	OpRename OperationKind = "Rename"
)

// Operation is a FileOperation: only the fields relevant to Kind are
// populated (Path/Content for Create/Update/Append, Path for Delete,
// From/To for Rename).
type Operation struct {
	Kind    OperationKind
	Path    string
	Content string
	From    string
	To      string
}

// Context is the operation_hash/context_hash input: the repository and
// question an operation was proposed under, plus the files judged
// related to it.
type Context struct {
	RepoPath      string
	Question      string
	RelatedFiles  []string
	IsEnterprise  bool
}

// Outcome is the closed result of executing an Operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeFailure Outcome = "Failure"
)

// HistoryEntry is one recorded operation outcome.
type HistoryEntry struct {
	Operation        Operation
	Context          Context
	Outcome          Outcome
	UserSatisfaction *float64
	IndexedAt        time.Time
	OperationHash    string
	ContextHash      string

	// similarityScore is populated by AnalyzeOperationContext against the
	// query context it was matched for; it's not part of the persisted
	// shape and is never marshaled.
	similarityScore float64
}

// Warning is one human-readable caution surfaced by analysis.
type Warning string

const (
	WarningHighFailureRate        Warning = "high failure rate for this operation type"
	WarningRecentFailureCluster   Warning = "recent operations of this type have failed repeatedly"
	WarningDestructiveOperation   Warning = "this operation is destructive and cannot be undone"
	WarningEnterpriseComplexity   Warning = "repository is enterprise-scale; precedents may not generalize"
)

// Analysis is analyze_operation_context's result.
type Analysis struct {
	SimilarOperationsCount int
	HistoricalSuccessRate  float64
	ContextSimilarity      float64
	AnalysisConfidence     float64
	Warnings               []Warning
	Precedents             []HistoryEntry
}

// TrendDirection is analyze_success_trend's closed result set.
type TrendDirection string

const (
	TrendImproving TrendDirection = "Improving"
	TrendDeclining TrendDirection = "Declining"
	TrendStable    TrendDirection = "Stable"
)

// Trend is analyze_success_trend's result.
type Trend struct {
	Direction  TrendDirection
	Confidence float64
	DataPoints int
}
