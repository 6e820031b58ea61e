// Package factcheck implements the fact checker (C6): a stateless evaluator
// that extracts factual claims from a stage answer by fixed pattern rules
// and checks them against a measured RepositoryFacts snapshot, producing a
// pass/fail decision with a recommended action.
package factcheck

// ClaimType is the closed set of claim kinds the extractor recognizes.
type ClaimType string

const (
	ClaimProjectName       ClaimType = "ProjectName"
	ClaimVersion           ClaimType = "Version"
	ClaimDependencyCount   ClaimType = "DependencyCount"
	ClaimModuleCount       ClaimType = "ModuleCount"
	ClaimFileCount         ClaimType = "FileCount"
	ClaimLinesOfCode       ClaimType = "LinesOfCode"
	ClaimProjectComplexity ClaimType = "ProjectComplexity"
	ClaimFileExtension     ClaimType = "FileExtension"
	ClaimDirectory         ClaimType = "Directory"
)

// FactClaim is one atomic assertion extracted from stage output.
type FactClaim struct {
	ClaimType  ClaimType
	Value      string
	Confidence float64
	SourceText string
}

// Severity grades how badly a claim disagrees with measured fact.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityMajor    Severity = "Major"
	SeverityMinor    Severity = "Minor"
)

func (s Severity) weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityMajor:
		return 0.7
	case SeverityMinor:
		return 0.3
	default:
		return 0
	}
}

// Contradiction is a claim that disagrees with RepositoryFacts.
type Contradiction struct {
	Claim         FactClaim
	VerifiedValue string
	Severity      Severity
	Explanation   string
}

// RecommendedAction is what the consensus pipeline (C9) should do next.
type RecommendedAction string

const (
	ActionRejectAndRetry            RecommendedAction = "RejectAndRetry"
	ActionRetryWithEnhancedContext  RecommendedAction = "RetryWithEnhancedContext"
	ActionManualReview              RecommendedAction = "ManualReview"
	ActionAccept                    RecommendedAction = "Accept"
)

// Result is the outcome of one Evaluate call.
type Result struct {
	Passed            bool
	Stage             string
	Confidence        float64
	VerifiedClaims    []FactClaim
	Contradictions    []Contradiction
	RecommendedAction RecommendedAction
}
