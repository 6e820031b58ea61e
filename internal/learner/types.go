// Package learner implements the continuous learner (C10): a lazy,
// append-mostly pipeline that turns LearningEvents into LearnedKnowledge,
// applies user feedback to it, and answers context queries for C7/C9.
package learner

import "time"

// EventKind is the closed set of LearningEvent variants.
type EventKind string

const (
	EventStageCompleted  EventKind = "StageCompleted"
	EventUserFeedback    EventKind = "UserFeedback"
	EventOperationExecuted EventKind = "OperationExecuted"
	EventPatternDetected EventKind = "PatternDetected"
	EventModelPerformance EventKind = "ModelPerformance"
)

// Event is a tagged LearningEvent. Only the fields relevant to Kind are
// populated; a single struct with a discriminant field is simpler to
// serialize than a Go interface + type switch for a small, closed variant
// set like this one.
type Event struct {
	Kind           EventKind
	ConversationID string
	Stage          string
	Question       string
	Answer         string
	Model          string
	DurationMS     int64
	Success        bool
	FeedbackText   string
	FeedbackType   FeedbackType
	Operation      string
	OccurredAt     time.Time
}

// FeedbackType is the closed set apply_feedback recognizes.
type FeedbackType string

const (
	FeedbackPositive   FeedbackType = "Positive"
	FeedbackNegative   FeedbackType = "Negative"
	FeedbackCorrection FeedbackType = "Correction"
	FeedbackSuggestion FeedbackType = "Suggestion"
)

// PatternKind is the fixed rule set's output label: long-duration stage
// completions emit a Performance pattern, failed file-op outcomes emit an
// ErrorPattern.
type PatternKind string

const (
	PatternPerformance PatternKind = "Performance"
	PatternError       PatternKind = "ErrorPattern"
	PatternCandidate   PatternKind = "Candidate"
)

// Pattern is one extracted pattern attached to a LearnedKnowledge row.
type Pattern struct {
	Kind   PatternKind
	Detail string
}

// Knowledge is the in-memory, queryable form of a persisted
// LearnedKnowledge row.
type Knowledge struct {
	ID               int64
	Event            Event
	Embedding        []float32
	Patterns         []Pattern
	Confidence       float64
	ApplicationCount int64
	SuccessRate      float64
	LearnedAt        time.Time
}

// LearnedContext is what get_learned_context returns: past similar
// experiences, patterns applicable to this stage/question, model
// recommendations, warnings, and success strategies.
type LearnedContext struct {
	SimilarExperiences []Knowledge
	ApplicablePatterns []Pattern
	ModelRecommendations []string
	Warnings           []string
	SuccessStrategies  []string
}
