package quality

import "testing"

func TestEvaluate_SafetyViolationAlwaysCritical(t *testing.T) {
	r := NewRegistry(nil)
	verdict := r.Evaluate("generator", Metrics{Safety: 0.1, OverallQuality: 0.9})
	if verdict.Passed {
		t.Fatalf("expected safety-baseline gate to fail")
	}
	if verdict.Action != ActionBlock {
		t.Errorf("action = %s, want Block", verdict.Action)
	}
	if len(verdict.Violations) != 1 || verdict.Violations[0].Severity != SeverityCritical {
		t.Errorf("expected one Critical violation, got %+v", verdict.Violations)
	}
}

func TestEvaluate_AccuracyFloorOnlyAppliesToValidatorAndCurator(t *testing.T) {
	r := NewRegistry(nil)
	metrics := Metrics{Safety: 1.0, Accuracy: 0.1, OverallQuality: 0.8, ResponseLength: 10}

	if v := r.Evaluate("generator", metrics); !v.Passed {
		t.Errorf("expected generator stage unaffected by accuracy-floor, got %+v", v)
	}
	v := r.Evaluate("validator", metrics)
	if v.Passed {
		t.Fatalf("expected accuracy-floor gate to fail for validator")
	}
	if v.Action != ActionRequestApproval {
		t.Errorf("action = %s, want RequestApproval", v.Action)
	}
}

func TestEvaluate_PassingMetricsClearAllGates(t *testing.T) {
	r := NewRegistry(nil)
	metrics := Metrics{Safety: 1.0, Accuracy: 0.95, OverallQuality: 0.9, ResponseLength: 50}
	v := r.Evaluate("curator", metrics)
	if !v.Passed {
		t.Fatalf("expected all gates to pass, got %+v", v)
	}
}

func TestEvaluate_RollingTrendBoundedAt100(t *testing.T) {
	r := NewRegistry(nil)
	for i := 0; i < 150; i++ {
		r.Evaluate("generator", Metrics{Safety: 1.0, OverallQuality: 0.5, ResponseLength: 10})
	}
	if got := r.TrendLen("generator"); got != maxTrendPoints {
		t.Errorf("trend length = %d, want %d", got, maxTrendPoints)
	}
}

func TestEvaluate_CustomGateRegistryOverridesDefaults(t *testing.T) {
	gate := Gate{
		ID:       "custom-block-everything",
		Criteria: []Criterion{{Metric: MetricCost, Threshold: Threshold{Max: floatPtr(0)}, Weight: 1, Required: true}},
		OnFailure: ActionCustom,
	}
	r := NewRegistry([]Gate{gate})
	v := r.Evaluate("generator", Metrics{Cost: 0.5})
	if v.Passed || v.Action != ActionCustom {
		t.Errorf("expected custom gate to fail with ActionCustom, got %+v", v)
	}
}
