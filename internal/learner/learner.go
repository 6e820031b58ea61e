package learner

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"consensuscore/internal/config"
	"consensuscore/internal/consensus"
	"consensuscore/internal/embedding"
	"consensuscore/internal/logging"
	"consensuscore/internal/store"
)

const longStageDurationMS = 5000

// warningFailureThreshold is how many ErrorPattern entries for a stage
// before get_learned_context starts surfacing a warning.
const warningFailureThreshold = 3

// Store is the persistence slice of C1 the learner needs.
type Store interface {
	StoreLearnedKnowledge(ctx context.Context, row store.LearnedKnowledgeRow) (int64, error)
	UpdateLearnedKnowledgeFeedback(ctx context.Context, id int64, confidence, successRate float64, applicationCount int64) error
	LoadRecentLearnedKnowledge(ctx context.Context, limit int) ([]store.LearnedKnowledgeRow, error)
}

// Learner is C10.
type Learner struct {
	store    Store
	embedder embedding.EmbeddingEngine
	cacheCap int

	mu     sync.Mutex
	recent []Knowledge // bounded ring buffer, newest last
}

// New builds a Learner. embedder may be nil; embedding then degrades to
// nil vectors. Similarity ranking uses keyword overlap whether or not an
// embedder is wired. Embedding
// failures are non-fatal — callers get a heuristic fallback instead of an
// error.
func New(st Store, embedder embedding.EmbeddingEngine, cfg config.LearnerConfig) *Learner {
	cacheCap := cfg.RecentCacheSize
	if cacheCap <= 0 {
		cacheCap = 100
	}
	return &Learner{store: st, embedder: embedder, cacheCap: cacheCap}
}

// NotifyStageCompleted implements pipeline.Learner: it's the pipeline-facing
// entry point, translating one StageResult into a StageCompleted
// LearningEvent. Errors are logged and swallowed — learning never fails a
// user request.
func (l *Learner) NotifyStageCompleted(ctx context.Context, conversationID string, result consensus.StageResult) {
	event := Event{
		Kind:           EventStageCompleted,
		ConversationID: conversationID,
		Stage:          result.StageName,
		Question:       result.Question,
		Answer:         result.Answer,
		Model:          result.Model,
		DurationMS:     result.Analytics.Duration.Milliseconds(),
		Success:        result.Analytics.ErrorCount == 0,
		OccurredAt:     result.Timestamp,
	}
	if err := l.Ingest(ctx, event); err != nil {
		logging.LearningWarn("ingest failed for conversation=%s stage=%s: %v", conversationID, result.StageName, err)
	}
}

// Ingest embeds event, extracts patterns by the fixed rule set, persists
// the resulting LearnedKnowledge, and pushes it into the bounded recent
// cache.
func (l *Learner) Ingest(ctx context.Context, event Event) error {
	patterns := extractPatterns(event)

	var vec []float32
	if l.embedder != nil {
		text := event.Question + " " + event.Answer
		if v, err := l.embedder.Embed(ctx, text); err == nil {
			vec = v
		} else {
			logging.LearningDebug("embedding failed, continuing without vector: %v", err)
		}
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}
	patternsJSON, err := json.Marshal(patterns)
	if err != nil {
		return err
	}

	id, err := l.store.StoreLearnedKnowledge(ctx, store.LearnedKnowledgeRow{
		EventKind:        string(event.Kind),
		EventJSON:        string(eventJSON),
		Embedding:        vec,
		PatternsJSON:     string(patternsJSON),
		Confidence:       0.5,
		ApplicationCount: 0,
		SuccessRate:      0.5,
	})
	if err != nil {
		return err
	}

	l.pushRecent(Knowledge{
		ID:         id,
		Event:      event,
		Embedding:  vec,
		Patterns:   patterns,
		Confidence: 0.5,
		SuccessRate: 0.5,
		LearnedAt:  time.Now(),
	})
	return nil
}

// extractPatterns applies a fixed rule set: long-duration stage completions
// emit a Performance pattern; failed operations emit an ErrorPattern. Every
// other event kind produces no pattern.
func extractPatterns(event Event) []Pattern {
	var patterns []Pattern
	if event.Kind == EventStageCompleted && event.DurationMS > longStageDurationMS {
		patterns = append(patterns, Pattern{
			Kind:   PatternPerformance,
			Detail: "stage " + event.Stage + " took " + formatMS(event.DurationMS) + "ms",
		})
	}
	if event.Kind == EventOperationExecuted && !event.Success {
		patterns = append(patterns, Pattern{
			Kind:   PatternError,
			Detail: "operation " + event.Operation + " failed",
		})
	}
	return patterns
}

func formatMS(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).String()
}

func (l *Learner) pushRecent(k Knowledge) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recent = append(l.recent, k)
	if len(l.recent) > l.cacheCap {
		l.recent = l.recent[len(l.recent)-l.cacheCap:]
	}
}

// Warm loads the most recent rows from the store into the in-memory
// cache, for use after a process restart.
func (l *Learner) Warm(ctx context.Context) error {
	rows, err := l.store.LoadRecentLearnedKnowledge(ctx, l.cacheCap)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recent = l.recent[:0]
	for i := len(rows) - 1; i >= 0; i-- { // rows are newest-first; cache is oldest-first
		r := rows[i]
		var event Event
		var patterns []Pattern
		_ = json.Unmarshal([]byte(r.EventJSON), &event)
		_ = json.Unmarshal([]byte(r.PatternsJSON), &patterns)
		l.recent = append(l.recent, Knowledge{
			ID: r.ID, Event: event, Embedding: r.Embedding, Patterns: patterns,
			Confidence: r.Confidence, ApplicationCount: r.ApplicationCount,
			SuccessRate: r.SuccessRate, LearnedAt: r.LearnedAt,
		})
	}
	return nil
}

// ApplyFeedback implements apply_feedback: it updates every cached
// knowledge entry belonging to conversationID.
func (l *Learner) ApplyFeedback(ctx context.Context, conversationID string, feedbackType FeedbackType, text string) error {
	l.mu.Lock()
	var matched []int
	for i, k := range l.recent {
		if k.Event.ConversationID == conversationID {
			matched = append(matched, i)
		}
	}
	for _, i := range matched {
		l.recent[i] = applyFeedbackToKnowledge(l.recent[i], feedbackType, text)
	}
	updates := make([]Knowledge, len(matched))
	for j, i := range matched {
		updates[j] = l.recent[i]
	}
	l.mu.Unlock()

	for _, k := range updates {
		if err := l.store.UpdateLearnedKnowledgeFeedback(ctx, k.ID, k.Confidence, k.SuccessRate, k.ApplicationCount); err != nil {
			logging.LearningWarn("feedback persist failed for knowledge id=%d: %v", k.ID, err)
		}
	}
	return nil
}

// applyFeedbackToKnowledge implements the per-type update rule.
// Positive/Negative move confidence by a fixed scale and success_rate
// proportionally toward 1/0; Correction/Suggestion scale confidence down
// and queue the feedback text as a candidate pattern. The success_rate
// step mirrors the confidence scale for symmetry.
func applyFeedbackToKnowledge(k Knowledge, feedbackType FeedbackType, text string) Knowledge {
	k.ApplicationCount++
	switch feedbackType {
	case FeedbackPositive:
		k.Confidence = minF(k.Confidence*1.1, 1.0)
		k.SuccessRate = 1 - (1-k.SuccessRate)*0.9
	case FeedbackNegative:
		k.Confidence *= 0.9
		k.SuccessRate *= 0.9
	case FeedbackCorrection, FeedbackSuggestion:
		k.Confidence *= 0.8
		k.Patterns = append(k.Patterns, Pattern{Kind: PatternCandidate, Detail: text})
	}
	return k
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// GetLearnedContext implements get_learned_context: it ranks the recent
// cache for stage/question relevance and summarizes patterns, warnings and
// model performance into a LearnedContext.
func (l *Learner) GetLearnedContext(question, stage string, limit int) LearnedContext {
	if limit <= 0 {
		limit = 5
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var stageEntries []Knowledge
	for _, k := range l.recent {
		if k.Event.Stage == stage {
			stageEntries = append(stageEntries, k)
		}
	}

	similar := rankBySimilarity(stageEntries, question, limit)

	var patterns []Pattern
	var errorCount int
	questionWords := len(strings.Fields(question))
	for _, k := range stageEntries {
		for _, p := range k.Patterns {
			if p.Kind == PatternError {
				errorCount++
			}
			// Spec §4.7: patterns are "filtered by stage and question
			// length" — interpreted here as: performance/error patterns
			// only surface once the question carries enough words to be
			// a real query, not a one-word fragment.
			if questionWords >= 3 {
				patterns = append(patterns, p)
			}
		}
	}

	var warnings []string
	if errorCount >= warningFailureThreshold {
		warnings = append(warnings, "frequent failures observed for stage "+stage)
	}

	modelRecommendations := bestModels(stageEntries)
	strategies := successStrategies(stageEntries)

	return LearnedContext{
		SimilarExperiences:   similar,
		ApplicablePatterns:   patterns,
		ModelRecommendations: modelRecommendations,
		Warnings:             warnings,
		SuccessStrategies:    strategies,
	}
}

type scoredKnowledge struct {
	k     Knowledge
	score float64
}

// rankBySimilarity orders entries by keyword overlap with question,
// descending, and returns the top limit.
func rankBySimilarity(entries []Knowledge, question string, limit int) []Knowledge {
	scoredEntries := make([]scoredKnowledge, 0, len(entries))
	for _, k := range entries {
		scoredEntries = append(scoredEntries, scoredKnowledge{k: k, score: keywordOverlap(question, k.Event.Question)})
	}
	for i := 1; i < len(scoredEntries); i++ {
		for j := i; j > 0 && scoredEntries[j].score > scoredEntries[j-1].score; j-- {
			scoredEntries[j], scoredEntries[j-1] = scoredEntries[j-1], scoredEntries[j]
		}
	}
	if len(scoredEntries) > limit {
		scoredEntries = scoredEntries[:limit]
	}
	out := make([]Knowledge, len(scoredEntries))
	for i, s := range scoredEntries {
		out[i] = s.k
	}
	return out
}

func keywordOverlap(a, b string) float64 {
	aw := wordSet(a)
	bw := wordSet(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	var shared int
	for w := range aw {
		if bw[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(aw))
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

// bestModels ranks distinct models seen in entries by mean success_rate,
// descending.
func bestModels(entries []Knowledge) []string {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, k := range entries {
		if k.Event.Model == "" {
			continue
		}
		sums[k.Event.Model] += k.SuccessRate
		counts[k.Event.Model]++
	}
	type scored struct {
		model string
		mean  float64
	}
	var ranked []scored
	for m, sum := range sums {
		ranked = append(ranked, scored{model: m, mean: sum / float64(counts[m])})
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].mean > ranked[j-1].mean; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.model
	}
	return out
}

// successStrategies summarizes high-confidence, high-success entries as
// short human-readable strategy notes.
func successStrategies(entries []Knowledge) []string {
	var out []string
	for _, k := range entries {
		if k.Confidence > 0.8 && k.SuccessRate > 0.7 {
			out = append(out, "model "+k.Event.Model+" succeeded reliably for stage "+k.Event.Stage)
		}
	}
	return out
}
