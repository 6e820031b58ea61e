// Package consensus holds the shared data model every pipeline-facing
// component (context injector, prompt builder, pipeline, learner) builds
// against: the Stage enum and the per-request result types.
package consensus

import "time"

// Stage is one of the four fixed roles a question passes through, in
// order. The order itself is an invariant: no stage starts before the
// prior stage's answer is final.
type Stage int

const (
	StageGenerator Stage = iota
	StageRefiner
	StageValidator
	StageCurator
)

// Stages is the fixed, ordered stage sequence every conversation runs.
var Stages = [4]Stage{StageGenerator, StageRefiner, StageValidator, StageCurator}

func (s Stage) String() string {
	switch s {
	case StageGenerator:
		return "generator"
	case StageRefiner:
		return "refiner"
	case StageValidator:
		return "validator"
	case StageCurator:
		return "curator"
	default:
		return "unknown"
	}
}

// Usage is the token accounting for one stage's model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Analytics carries the per-stage telemetry recorded in every StageResult:
// timing, cost, and retry/error bookkeeping.
type Analytics struct {
	Duration       time.Duration
	Cost           float64
	Provider       string
	QualityScore   float64
	ErrorCount     int
	FallbackUsed   bool
	RateLimitHit   bool
	RetryCount     int
	StartTime      time.Time
	EndTime        time.Time
	MemoryUsageKB  int64
	Features       map[string]string
}

// StageResult is the outcome of running one stage of the pipeline.
type StageResult struct {
	StageID        int
	StageName      string
	Question       string
	Answer         string
	Model          string
	ConversationID string
	Timestamp      time.Time
	Usage          Usage
	Analytics      Analytics
}

// ConsensusResult is the outcome of one full four-stage run. Invariant:
// TotalCost = sum(stages[i].Analytics.Cost); len(Stages) <= 4, and equals 4
// iff Success.
type ConsensusResult struct {
	Success        bool
	Answer         string
	Error          string
	Stages         []StageResult
	ConversationID string
	TotalDuration  time.Duration
	TotalCost      float64
}
