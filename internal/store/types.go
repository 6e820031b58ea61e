package store

import "time"

// Fact is a single learned knowledge atom, keyed for dedup by Fingerprint
// (see ComputeFingerprint). Facts are the unit C2 stores, indexes, and
// serves back to the context injector.
type Fact struct {
	ID           int64
	Fingerprint  string
	Content      string
	Topic        string
	Entities     []string
	Source       string
	Confidence   float64
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
}

// Conversation records one end-to-end consensus run: the question asked,
// the profile used, the final curated answer, and aggregate cost.
type Conversation struct {
	ID           string
	ProfileID    string
	Question     string
	FinalAnswer  string
	TotalCostUSD float64
	TotalTokens  int64
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// StageUsage is the per-stage cost/latency accounting record emitted by the
// consensus pipeline (C9) for each of the four stages of a conversation.
type StageUsage struct {
	ConversationID   string
	Stage            string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	CostUSD          float64
	LatencyMS        int64
	Retries          int
}

// LearnedKnowledgeRow is the persisted form of C10's LearnedKnowledge: the
// event and its extracted patterns are stored as opaque JSON blobs (the
// actor never interprets their shape), with embedding/confidence/
// success_rate/application_count as queryable columns.
type LearnedKnowledgeRow struct {
	ID               int64
	EventKind        string
	EventJSON        string
	Embedding        []float32
	PatternsJSON     string
	Confidence       float64
	ApplicationCount int64
	SuccessRate      float64
	LearnedAt        time.Time
}

// OperationHistoryRow is the persisted form of C11's OperationHistoryEntry.
type OperationHistoryRow struct {
	ID               int64
	OperationHash    string
	ContextHash      string
	OperationJSON    string
	ContextJSON      string
	Outcome          string
	UserSatisfaction *float64
	IndexedAt        time.Time
}
