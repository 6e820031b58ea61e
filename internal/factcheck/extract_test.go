package factcheck

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// byTypeThenValue gives extractClaims' unordered map-driven output a stable
// sort so cmp.Diff isn't sensitive to Go's randomized map iteration order.
func byTypeThenValue(claims []FactClaim) []FactClaim {
	out := append([]FactClaim(nil), claims...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClaimType != out[j].ClaimType {
			return out[i].ClaimType < out[j].ClaimType
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func TestExtractClaims_MultipleClaimTypes(t *testing.T) {
	answer := "This is the hive-ai project version 2.0.2 with 100 dependencies and 25 modules."
	got := byTypeThenValue(extractClaims(answer))

	want := []FactClaim{
		{ClaimType: ClaimDependencyCount, Value: "100", Confidence: 0.8},
		{ClaimType: ClaimModuleCount, Value: "25", Confidence: 0.8},
		{ClaimType: ClaimProjectName, Value: "hive-ai", Confidence: 0.8},
		{ClaimType: ClaimVersion, Value: "2.0.2", Confidence: 0.8},
	}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(FactClaim{}, "SourceText")); diff != "" {
		t.Errorf("extractClaims() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractClaims_NamePrecedingVersionNumber(t *testing.T) {
	got := byTypeThenValue(extractClaims("simple-app version 0.1.0"))

	want := []FactClaim{
		{ClaimType: ClaimProjectName, Value: "simple-app", Confidence: 0.8},
		{ClaimType: ClaimVersion, Value: "0.1.0", Confidence: 0.8},
	}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(FactClaim{}, "SourceText")); diff != "" {
		t.Errorf("extractClaims() mismatch (-want +got):\n%s", diff)
	}
}

// A complexity adjective in front of "project" belongs to the complexity
// claim, never the name claim.
func TestExtractClaims_ComplexityAdjectiveIsNotAName(t *testing.T) {
	answers := []string{
		"It's an enterprise project.",
		"This is a simple project overall.",
		"Overall a large module with many parts.",
	}
	for _, answer := range answers {
		for _, c := range extractClaims(answer) {
			if c.ClaimType == ClaimProjectName {
				t.Errorf("%q produced a spurious name claim %q", answer, c.Value)
			}
		}
	}
}

func TestExtractClaims_NoMatchesForPlainText(t *testing.T) {
	got := extractClaims("The weather today is nice.")
	if diff := cmp.Diff([]FactClaim(nil), got); diff != "" {
		t.Errorf("extractClaims() mismatch (-want +got):\n%s", diff)
	}
}
