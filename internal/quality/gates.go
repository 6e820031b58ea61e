package quality

import (
	"sync"

	"consensuscore/internal/logging"
)

// Threshold is the pass/fail envelope for one criterion's metric value.
// Only the bounds a criterion cares about are set; a nil Min/Max/Target
// means that bound is not checked. Tolerance applies only with Target:
// the value must lie within Target±Tolerance.
type Threshold struct {
	Min       *float64
	Max       *float64
	Target    *float64
	Tolerance float64
}

func (t Threshold) ok(value float64) bool {
	if t.Min != nil && value < *t.Min {
		return false
	}
	if t.Max != nil && value > *t.Max {
		return false
	}
	if t.Target != nil {
		if value < *t.Target-t.Tolerance || value > *t.Target+t.Tolerance {
			return false
		}
	}
	return true
}

// MetricKey selects which Metrics field a Criterion binds to.
type MetricKey string

const (
	MetricOverallQuality     MetricKey = "overall_quality"
	MetricCoherence          MetricKey = "coherence"
	MetricCompleteness       MetricKey = "completeness"
	MetricRelevance          MetricKey = "relevance"
	MetricAccuracy           MetricKey = "accuracy"
	MetricSafety             MetricKey = "safety"
	MetricResponseTimeMs     MetricKey = "response_time_ms"
	MetricTokenEfficiency    MetricKey = "token_efficiency"
	MetricCost               MetricKey = "cost"
	MetricErrorRate          MetricKey = "error_rate"
	MetricResponseLength     MetricKey = "response_length"
	MetricLanguageConsistency MetricKey = "language_consistency"
)

func (m Metrics) value(key MetricKey) (float64, bool) {
	switch key {
	case MetricOverallQuality:
		return m.OverallQuality, true
	case MetricCoherence:
		return m.Coherence, true
	case MetricCompleteness:
		return m.Completeness, true
	case MetricRelevance:
		return m.Relevance, true
	case MetricAccuracy:
		return m.Accuracy, true
	case MetricSafety:
		return m.Safety, true
	case MetricResponseTimeMs:
		return m.ResponseTimeMs, true
	case MetricTokenEfficiency:
		return m.TokenEfficiency, true
	case MetricCost:
		return m.Cost, true
	case MetricErrorRate:
		return m.ErrorRate, true
	case MetricResponseLength:
		return m.ResponseLength, true
	case MetricLanguageConsistency:
		return m.LanguageConsistency, true
	default:
		if m.Custom != nil {
			v, ok := m.Custom[string(key)]
			return v, ok
		}
		return 0, false
	}
}

// Criterion binds one metric to a threshold and a weight.
type Criterion struct {
	Metric    MetricKey
	Threshold Threshold
	Weight    float64
	Required  bool
	IsSafety  bool
}

// Gate is one entry in the registry: applicable stages, its weighted
// criteria, and the action to take on failure.
type Gate struct {
	ID         string
	Priority   int
	Stages     []string // empty means "all stages"
	Criteria   []Criterion
	OnFailure  Action
}

func (g Gate) appliesTo(stage string) bool {
	if len(g.Stages) == 0 {
		return true
	}
	for _, s := range g.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// defaultGates is the registry data — data, not code, so a new gate is a
// new slice entry rather than a new code path. Ordered by priority,
// ascending.
var defaultGates = []Gate{
	{
		ID:       "safety-baseline",
		Priority: 0,
		Stages:   nil,
		Criteria: []Criterion{
			{Metric: MetricSafety, Threshold: Threshold{Min: floatPtr(0.9)}, Weight: 1.0, Required: true, IsSafety: true},
		},
		OnFailure: ActionBlock,
	},
	{
		ID:       "accuracy-floor",
		Priority: 1,
		Stages:   []string{"validator", "curator"},
		Criteria: []Criterion{
			{Metric: MetricAccuracy, Threshold: Threshold{Min: floatPtr(0.5)}, Weight: 0.7, Required: true},
		},
		OnFailure: ActionRequestApproval,
	},
	{
		ID:       "response-length-sanity",
		Priority: 2,
		Stages:   nil,
		Criteria: []Criterion{
			{Metric: MetricResponseLength, Threshold: Threshold{Min: floatPtr(1)}, Weight: 0.3, Required: false},
		},
		OnFailure: ActionWarn,
	},
}

func floatPtr(f float64) *float64 { return &f }

// trendPoint is one rolling quality sample for a stage.
type trendPoint struct {
	value float64
}

const maxTrendPoints = 100

// Registry is the concrete Evaluator: a fixed, priority-ordered gate list
// plus a bounded rolling quality trend per stage.
type Registry struct {
	gates []Gate

	mu     sync.Mutex
	trends map[string][]trendPoint
}

// NewRegistry builds a Registry over gates. A nil slice uses defaultGates.
func NewRegistry(gates []Gate) *Registry {
	if gates == nil {
		gates = defaultGates
	}
	return &Registry{gates: gates, trends: make(map[string][]trendPoint)}
}

// Evaluate implements Evaluator: it runs every gate applicable to stageName
// in priority order, returning the first failing gate's verdict, or a
// passing verdict once every applicable gate clears. Either way it records
// metrics.OverallQuality on the stage's rolling trend.
func (r *Registry) Evaluate(stageName string, metrics Metrics) Verdict {
	r.recordTrend(stageName, metrics.OverallQuality)

	for _, gate := range r.gates {
		if !gate.appliesTo(stageName) {
			continue
		}
		verdict, ok := r.evaluateGate(gate, metrics)
		if !ok {
			logging.QualityWarn("gate=%s stage=%s failed: action=%s violations=%d",
				gate.ID, stageName, verdict.Action, len(verdict.Violations))
			return verdict
		}
	}
	return Verdict{Passed: true, Action: ActionLogOnly}
}

func (r *Registry) evaluateGate(gate Gate, metrics Metrics) (Verdict, bool) {
	var violations []Violation
	var weightedSum, weightTotal float64
	failed := false

	for _, crit := range gate.Criteria {
		value, known := metrics.value(crit.Metric)
		if !known {
			continue
		}
		weightTotal += crit.Weight
		if crit.Threshold.ok(value) {
			weightedSum += crit.Weight
			continue
		}
		severity := SeverityMinor
		switch {
		case crit.IsSafety:
			severity = SeverityCritical
		case crit.Required:
			severity = SeverityMajor
		}
		violations = append(violations, Violation{
			GateID:   gate.ID,
			Criteria: string(crit.Metric),
			Severity: severity,
			Detail:   "metric out of threshold",
		})
		if crit.Required {
			failed = true
		}
	}

	if len(violations) == 0 {
		return Verdict{Passed: true, Action: ActionLogOnly, GateID: gate.ID}, true
	}
	if !failed && weightTotal > 0 && weightedSum/weightTotal >= 0.5 {
		// Non-required criteria missed their mark but the gate's weighted
		// score still clears half; record the violations but don't fail
		// the gate outright.
		return Verdict{Passed: true, Action: ActionLogOnly, Violations: violations, GateID: gate.ID}, true
	}
	return Verdict{Passed: false, Action: gate.OnFailure, Violations: violations, GateID: gate.ID}, false
}

// recordTrend appends value to stageName's rolling trend, evicting the
// oldest point once the bound (maxTrendPoints) is hit.
func (r *Registry) recordTrend(stageName string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	points := append(r.trends[stageName], trendPoint{value: value})
	if len(points) > maxTrendPoints {
		points = points[len(points)-maxTrendPoints:]
	}
	r.trends[stageName] = points
}

// TrendLen reports how many rolling quality points are recorded for
// stageName; exposed for tests verifying the ≤100 bound.
func (r *Registry) TrendLen(stageName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trends[stageName])
}
