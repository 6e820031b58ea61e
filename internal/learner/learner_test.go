package learner

import (
	"context"
	"testing"

	"consensuscore/internal/config"
	"consensuscore/internal/consensus"
	"consensuscore/internal/store"
)

// fakeStore is an in-memory stand-in for C1's learned-knowledge slice,
// letting these tests exercise Learner without a real SQLite actor.
type fakeStore struct {
	nextID int64
	rows   map[int64]store.LearnedKnowledgeRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]store.LearnedKnowledgeRow)}
}

func (f *fakeStore) StoreLearnedKnowledge(ctx context.Context, row store.LearnedKnowledgeRow) (int64, error) {
	f.nextID++
	row.ID = f.nextID
	f.rows[f.nextID] = row
	return f.nextID, nil
}

func (f *fakeStore) UpdateLearnedKnowledgeFeedback(ctx context.Context, id int64, confidence, successRate float64, applicationCount int64) error {
	row := f.rows[id]
	row.Confidence = confidence
	row.SuccessRate = successRate
	row.ApplicationCount = applicationCount
	f.rows[id] = row
	return nil
}

func (f *fakeStore) LoadRecentLearnedKnowledge(ctx context.Context, limit int) ([]store.LearnedKnowledgeRow, error) {
	var out []store.LearnedKnowledgeRow
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, nil
}

func TestIngest_LongDurationStageEmitsPerformancePattern(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 10})

	err := l.Ingest(context.Background(), Event{
		Kind: EventStageCompleted, ConversationID: "c1", Stage: "generator",
		Question: "what is this project", Answer: "it is a library",
		DurationMS: 9000, Success: true,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(l.recent) != 1 {
		t.Fatalf("expected 1 cached entry, got %d", len(l.recent))
	}
	if len(l.recent[0].Patterns) != 1 || l.recent[0].Patterns[0].Kind != PatternPerformance {
		t.Errorf("expected a Performance pattern, got %+v", l.recent[0].Patterns)
	}
}

func TestIngest_FailedOperationEmitsErrorPattern(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 10})

	err := l.Ingest(context.Background(), Event{
		Kind: EventOperationExecuted, ConversationID: "c2", Operation: "Create", Success: false,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(l.recent[0].Patterns) != 1 || l.recent[0].Patterns[0].Kind != PatternError {
		t.Errorf("expected an ErrorPattern, got %+v", l.recent[0].Patterns)
	}
}

func TestPushRecent_BoundedToConfiguredCacheSize(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 3})

	for i := 0; i < 10; i++ {
		_ = l.Ingest(context.Background(), Event{Kind: EventStageCompleted, ConversationID: "c3", Stage: "generator"})
	}
	if len(l.recent) != 3 {
		t.Fatalf("expected cache bounded to 3, got %d", len(l.recent))
	}
}

func TestApplyFeedback_PositiveIncreasesConfidenceCappedAtOne(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 10})
	_ = l.Ingest(context.Background(), Event{Kind: EventStageCompleted, ConversationID: "c4", Stage: "generator"})

	for i := 0; i < 10; i++ {
		_ = l.ApplyFeedback(context.Background(), "c4", FeedbackPositive, "")
	}
	if l.recent[0].Confidence != 1.0 {
		t.Errorf("confidence = %f, want capped at 1.0", l.recent[0].Confidence)
	}
	row := fs.rows[l.recent[0].ID]
	if row.Confidence != 1.0 {
		t.Errorf("persisted confidence = %f, want 1.0", row.Confidence)
	}
}

func TestApplyFeedback_NegativeDecreasesConfidence(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 10})
	_ = l.Ingest(context.Background(), Event{Kind: EventStageCompleted, ConversationID: "c5", Stage: "generator"})

	before := l.recent[0].Confidence
	_ = l.ApplyFeedback(context.Background(), "c5", FeedbackNegative, "")
	if l.recent[0].Confidence >= before {
		t.Errorf("expected confidence to decrease from %f, got %f", before, l.recent[0].Confidence)
	}
}

func TestApplyFeedback_CorrectionQueuesCandidatePattern(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 10})
	_ = l.Ingest(context.Background(), Event{Kind: EventStageCompleted, ConversationID: "c6", Stage: "generator"})

	_ = l.ApplyFeedback(context.Background(), "c6", FeedbackCorrection, "use a shorter answer")
	found := false
	for _, p := range l.recent[0].Patterns {
		if p.Kind == PatternCandidate && p.Detail == "use a shorter answer" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a candidate pattern queued from correction text, got %+v", l.recent[0].Patterns)
	}
}

func TestGetLearnedContext_FiltersByStageAndRanksBySimilarity(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 10})
	_ = l.Ingest(context.Background(), Event{Kind: EventStageCompleted, ConversationID: "c7", Stage: "generator", Question: "what dependencies does this project use"})
	_ = l.Ingest(context.Background(), Event{Kind: EventStageCompleted, ConversationID: "c8", Stage: "refiner", Question: "what dependencies does this project use"})

	ctxResult := l.GetLearnedContext("what dependencies are used here", "generator", 5)
	if len(ctxResult.SimilarExperiences) != 1 {
		t.Fatalf("expected 1 generator-stage experience, got %d", len(ctxResult.SimilarExperiences))
	}
	if ctxResult.SimilarExperiences[0].Event.ConversationID != "c7" {
		t.Errorf("expected c7's experience, got %s", ctxResult.SimilarExperiences[0].Event.ConversationID)
	}
}

func TestGetLearnedContext_WarnsOnFrequentFailures(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 10})
	for i := 0; i < 3; i++ {
		_ = l.Ingest(context.Background(), Event{
			Kind: EventOperationExecuted, ConversationID: "c9", Stage: "validator",
			Operation: "Update", Success: false,
		})
	}
	ctxResult := l.GetLearnedContext("a long enough question text", "validator", 5)
	if len(ctxResult.Warnings) == 0 {
		t.Errorf("expected a frequent-failure warning, got none")
	}
}

func TestNotifyStageCompleted_IngestsWithoutReturningAnError(t *testing.T) {
	fs := newFakeStore()
	l := New(fs, nil, config.LearnerConfig{RecentCacheSize: 10})
	result := consensus.StageResult{
		StageName: "curator", Question: "q", Answer: "a", Model: "m",
		Analytics: consensus.Analytics{Duration: 0, ErrorCount: 0},
	}
	l.NotifyStageCompleted(context.Background(), "conv-x", result)
	if len(l.recent) != 1 {
		t.Fatalf("expected NotifyStageCompleted to ingest one entry, got %d", len(l.recent))
	}
}
