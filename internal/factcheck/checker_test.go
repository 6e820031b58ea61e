package factcheck

import (
	"testing"

	"consensuscore/internal/config"
	"consensuscore/internal/repofacts"
)

func hiveAIFacts() *repofacts.Facts {
	return &repofacts.Facts{
		Name:            "hive-ai",
		Version:         "2.0.2",
		DependencyCount: 100,
		ModuleCount:     25,
		TotalFiles:      150,
		IsEnterprise:    true,
	}
}

func defaultCfg() config.FactCheckConfig {
	return config.FactCheckConfig{Tolerance: 0.2}
}

// S1 — correct claims pass.
func TestEvaluate_CorrectClaimsPass(t *testing.T) {
	checker := NewChecker(hiveAIFacts(), defaultCfg())
	answer := "This is the hive-ai project version 2.0.2 with 100 dependencies and 25 modules. It's an enterprise project."
	result := checker.Evaluate("generator", answer)

	if !result.Passed {
		t.Fatalf("expected Passed, got Failed: %+v", result.Contradictions)
	}
	if result.Confidence < 0.5 {
		t.Errorf("confidence = %v, want >= 0.5", result.Confidence)
	}
}

// S2 — name mismatch is critical.
func TestEvaluate_NameMismatchIsCritical(t *testing.T) {
	checker := NewChecker(hiveAIFacts(), defaultCfg())
	answer := "simple-app version 0.1.0"
	result := checker.Evaluate("generator", answer)

	if result.Passed {
		t.Fatalf("expected Failed, got Passed")
	}
	if result.RecommendedAction != ActionRejectAndRetry {
		t.Errorf("recommended action = %s, want RejectAndRetry", result.RecommendedAction)
	}

	var sawCriticalName, sawMajorVersion bool
	for _, c := range result.Contradictions {
		if c.Claim.ClaimType == ClaimProjectName && c.Severity == SeverityCritical {
			sawCriticalName = true
		}
		if c.Claim.ClaimType == ClaimVersion && c.Severity == SeverityMajor {
			sawMajorVersion = true
		}
	}
	if !sawCriticalName {
		t.Errorf("expected a Critical ProjectName contradiction, got %+v", result.Contradictions)
	}
	if !sawMajorVersion {
		t.Errorf("expected a Major Version contradiction, got %+v", result.Contradictions)
	}
}

// S3 — counts within tolerance pass, counts beyond escalate by magnitude.
func TestEvaluate_DependencyCountTolerance(t *testing.T) {
	checker := NewChecker(hiveAIFacts(), defaultCfg())

	within := checker.Evaluate("generator", "This project has 118 dependencies.")
	if !within.Passed {
		t.Fatalf("118 deps (within 20%% of 100) should pass, got %+v", within.Contradictions)
	}

	major := checker.Evaluate("generator", "This project has 130 dependencies.")
	if major.Passed {
		t.Fatalf("130 deps should contradict")
	}
	if major.Contradictions[0].Severity != SeverityMajor {
		t.Errorf("130 deps (diff 30, actual/2=50) should be Major, got %s", major.Contradictions[0].Severity)
	}

	critical := checker.Evaluate("generator", "This project has 200 dependencies.")
	if critical.Contradictions[0].Severity != SeverityCritical {
		t.Errorf("200 deps (diff 100 > actual/2=50) should be Critical, got %s", critical.Contradictions[0].Severity)
	}
}

// Tolerance boundary: a claim exactly at actual + floor(tolerance*actual)
// must NOT contradict (strict `>` comparison against tolerance).
func TestEvaluate_ToleranceBoundaryDoesNotContradict(t *testing.T) {
	checker := NewChecker(hiveAIFacts(), defaultCfg())
	// tolerance=0.2, actual=100 -> floor(20) = 20 -> boundary claim = 120
	result := checker.Evaluate("generator", "This project has 120 dependencies.")
	if !result.Passed {
		t.Fatalf("120 deps is exactly at the tolerance boundary and must not contradict, got %+v", result.Contradictions)
	}
}

func TestEvaluate_NoClaimsPassesWithHalfConfidence(t *testing.T) {
	checker := NewChecker(hiveAIFacts(), defaultCfg())
	result := checker.Evaluate("generator", "The weather today is nice.")
	if !result.Passed {
		t.Fatalf("expected Passed with no claims, got Failed")
	}
	if result.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", result.Confidence)
	}
}

func TestEvaluate_ComplexityMismatchIsCritical(t *testing.T) {
	checker := NewChecker(hiveAIFacts(), defaultCfg())
	result := checker.Evaluate("curator", "This is a minimal project.")
	if result.Passed {
		t.Fatalf("expected Failed: claimed minimal but facts say enterprise")
	}
	if result.Contradictions[0].Severity != SeverityCritical {
		t.Errorf("complexity mismatch should be Critical, got %s", result.Contradictions[0].Severity)
	}
}
