package precedent

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"consensuscore/internal/config"
	"consensuscore/internal/logging"
	"consensuscore/internal/store"
)

const similarityThresholdDefault = 0.3
const maxPrecedentsDefault = 10
const trendMinDataPointsDefault = 10
const trendThreshold = 0.05
const recentClusterSize = 3
const highFailureRateThreshold = 0.3

// Store is the persistence slice of C1 the analyzer needs.
type Store interface {
	StoreOperationOutcome(ctx context.Context, row store.OperationHistoryRow) error
	GetAllOperationOutcomes(ctx context.Context) ([]store.OperationHistoryRow, error)
}

// Analyzer is C11.
type Analyzer struct {
	store Store
	cfg   config.PrecedentConfig

	mu            sync.Mutex
	analysisCache map[string]Analysis
}

// New builds an Analyzer over st using cfg's thresholds, defaulting any
// zero-valued field.
func New(st Store, cfg config.PrecedentConfig) *Analyzer {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = similarityThresholdDefault
	}
	if cfg.MaxPrecedents <= 0 {
		cfg.MaxPrecedents = maxPrecedentsDefault
	}
	if cfg.TrendMinDataPoints <= 0 {
		cfg.TrendMinDataPoints = trendMinDataPointsDefault
	}
	return &Analyzer{store: st, cfg: cfg, analysisCache: make(map[string]Analysis)}
}

// RecordOperationOutcome persists one HistoryEntry and invalidates every
// cached analysis: a new outcome can shift the precedent set for any
// pending query, so nothing short of a full flush is safe.
func (a *Analyzer) RecordOperationOutcome(ctx context.Context, op Operation, opCtx Context, outcome Outcome, userSatisfaction *float64) error {
	entry := HistoryEntry{
		Operation:        op,
		Context:          opCtx,
		Outcome:          outcome,
		UserSatisfaction: userSatisfaction,
		OperationHash:    OperationHash(op, opCtx.Question),
		ContextHash:      ContextHash(opCtx),
	}

	opJSON, err := json.Marshal(op)
	if err != nil {
		return err
	}
	ctxJSON, err := json.Marshal(opCtx)
	if err != nil {
		return err
	}

	if err := a.store.StoreOperationOutcome(ctx, store.OperationHistoryRow{
		OperationHash:    entry.OperationHash,
		ContextHash:      entry.ContextHash,
		OperationJSON:    string(opJSON),
		ContextJSON:      string(ctxJSON),
		Outcome:          string(outcome),
		UserSatisfaction: userSatisfaction,
	}); err != nil {
		return err
	}

	a.mu.Lock()
	a.analysisCache = make(map[string]Analysis)
	a.mu.Unlock()
	return nil
}

// AnalyzeOperationContext implements analyze_operation_context (spec
// §4.8): finds same-kind historical operations with context similarity at
// or above the configured threshold, keeps the top MaxPrecedents, and
// derives success rate, mean similarity, a confidence score, and
// warnings.
func (a *Analyzer) AnalyzeOperationContext(ctx context.Context, op Operation, opCtx Context) (Analysis, error) {
	cacheKey := OperationHash(op, opCtx.Question) + "::" + ContextHash(opCtx)
	a.mu.Lock()
	if cached, ok := a.analysisCache[cacheKey]; ok {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	rows, err := a.store.GetAllOperationOutcomes(ctx)
	if err != nil {
		return Analysis{}, err
	}

	var candidates []HistoryEntry
	for _, row := range rows {
		entry, ok := decodeEntry(row)
		if !ok || entry.Operation.Kind != op.Kind {
			continue
		}
		sim := Similarity(opCtx, entry.Context)
		if sim < a.cfg.SimilarityThreshold {
			continue
		}
		entry.similarityScore = sim
		candidates = append(candidates, entry)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarityScore > candidates[j].similarityScore
	})
	if len(candidates) > a.cfg.MaxPrecedents {
		candidates = candidates[:a.cfg.MaxPrecedents]
	}

	analysis := a.summarize(op, candidates)
	a.mu.Lock()
	a.analysisCache[cacheKey] = analysis
	a.mu.Unlock()
	return analysis, nil
}

func (a *Analyzer) summarize(op Operation, precedents []HistoryEntry) Analysis {
	if len(precedents) == 0 {
		return Analysis{
			SimilarOperationsCount: 0,
			HistoricalSuccessRate:  0.5,
			ContextSimilarity:      0,
			AnalysisConfidence:     0.2,
		}
	}

	var successCount int
	var similaritySum float64
	for _, p := range precedents {
		if p.Outcome == OutcomeSuccess {
			successCount++
		}
		similaritySum += p.similarityScore
	}
	successRate := float64(successCount) / float64(len(precedents))
	meanSimilarity := similaritySum / float64(len(precedents))

	countFactor := float64(len(precedents)) / float64(a.cfg.MaxPrecedents)
	if countFactor > 1 {
		countFactor = 1
	}
	confidence := clamp(0.2+0.8*countFactor*meanSimilarity, 0, 1)

	return Analysis{
		SimilarOperationsCount: len(precedents),
		HistoricalSuccessRate:  successRate,
		ContextSimilarity:      meanSimilarity,
		AnalysisConfidence:     confidence,
		Warnings:               warningsFor(op, precedents, successRate),
		Precedents:             precedents,
	}
}

func warningsFor(op Operation, precedents []HistoryEntry, successRate float64) []Warning {
	var warnings []Warning
	if 1-successRate > highFailureRateThreshold {
		warnings = append(warnings, WarningHighFailureRate)
	}
	if recentClusterFailed(precedents) {
		warnings = append(warnings, WarningRecentFailureCluster)
	}
	if op.Kind == OpDelete {
		warnings = append(warnings, WarningDestructiveOperation)
	}
	for _, p := range precedents {
		if p.Context.IsEnterprise {
			warnings = append(warnings, WarningEnterpriseComplexity)
			break
		}
	}
	return warnings
}

// recentClusterFailed reports whether the most recent recentClusterSize
// precedents (by IndexedAt) are predominantly failures.
func recentClusterFailed(precedents []HistoryEntry) bool {
	sorted := make([]HistoryEntry, len(precedents))
	copy(sorted, precedents)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].IndexedAt.After(sorted[j].IndexedAt) })
	if len(sorted) > recentClusterSize {
		sorted = sorted[:recentClusterSize]
	}
	if len(sorted) < recentClusterSize {
		return false
	}
	var failures int
	for _, p := range sorted {
		if p.Outcome == OutcomeFailure {
			failures++
		}
	}
	return failures >= recentClusterSize-1
}

// AnalyzeSuccessTrend implements analyze_success_trend for kind: requires
// at least TrendMinDataPoints outcomes, splits the time-ordered series at
// its midpoint, and compares the two halves' success rates.
func (a *Analyzer) AnalyzeSuccessTrend(ctx context.Context, kind OperationKind) (Trend, error) {
	rows, err := a.store.GetAllOperationOutcomes(ctx)
	if err != nil {
		return Trend{}, err
	}

	var series []HistoryEntry
	for _, row := range rows {
		entry, ok := decodeEntry(row)
		if ok && entry.Operation.Kind == kind {
			series = append(series, entry)
		}
	}
	sort.Slice(series, func(i, j int) bool { return series[i].IndexedAt.Before(series[j].IndexedAt) })

	if len(series) < a.cfg.TrendMinDataPoints {
		return Trend{Direction: TrendStable, Confidence: 0, DataPoints: len(series)}, nil
	}

	mid := len(series) / 2
	firstRate := successRate(series[:mid])
	secondRate := successRate(series[mid:])
	diff := secondRate - firstRate

	direction := TrendStable
	switch {
	case diff > trendThreshold:
		direction = TrendImproving
	case diff < -trendThreshold:
		direction = TrendDeclining
	}

	confidence := float64(len(series)) / 50.0
	if confidence > 1 {
		confidence = 1
	}

	return Trend{Direction: direction, Confidence: confidence, DataPoints: len(series)}, nil
}

func successRate(entries []HistoryEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var success int
	for _, e := range entries {
		if e.Outcome == OutcomeSuccess {
			success++
		}
	}
	return float64(success) / float64(len(entries))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func decodeEntry(row store.OperationHistoryRow) (HistoryEntry, bool) {
	var op Operation
	var opCtx Context
	if err := json.Unmarshal([]byte(row.OperationJSON), &op); err != nil {
		logging.PrecedentWarn("failed to decode operation json for row %d: %v", row.ID, err)
		return HistoryEntry{}, false
	}
	if err := json.Unmarshal([]byte(row.ContextJSON), &opCtx); err != nil {
		logging.PrecedentWarn("failed to decode context json for row %d: %v", row.ID, err)
		return HistoryEntry{}, false
	}
	return HistoryEntry{
		Operation:        op,
		Context:          opCtx,
		Outcome:          Outcome(row.Outcome),
		UserSatisfaction: row.UserSatisfaction,
		IndexedAt:        row.IndexedAt,
		OperationHash:    row.OperationHash,
		ContextHash:      row.ContextHash,
	}, true
}

