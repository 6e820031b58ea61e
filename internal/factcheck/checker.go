package factcheck

import (
	"strconv"
	"strings"

	"consensuscore/internal/config"
	"consensuscore/internal/logging"
	"consensuscore/internal/repofacts"
)

// Checker is a stateless evaluator parameterized by a measured
// RepositoryFacts snapshot and a numeric tolerance.
type Checker struct {
	facts     *repofacts.Facts
	tolerance float64
}

// NewChecker builds a Checker against facts using cfg.Tolerance (default
// 0.2 / 20% when the config carries no explicit override).
func NewChecker(facts *repofacts.Facts, cfg config.FactCheckConfig) *Checker {
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = 0.2
	}
	return &Checker{facts: facts, tolerance: tolerance}
}

// Evaluate extracts claims from the stage answer, checks them against the
// checker's RepositoryFacts exactly once, and returns a single decision
// built from that one contradiction pass: the same contradiction list
// feeds both the decision and the confidence score, rather than
// recomputing contradictions inside a separate accuracy helper.
func (c *Checker) Evaluate(stage, answer string) Result {
	claims := extractClaims(answer)
	contradictions := c.findContradictions(claims)

	if len(contradictions) == 0 {
		logging.FactCheck("stage=%s passed: %d claims, 0 contradictions", stage, len(claims))
		return Result{
			Passed:         true,
			Stage:          stage,
			Confidence:     meanClaimConfidence(claims),
			VerifiedClaims: claims,
		}
	}

	severityScore := meanSeverityWeight(contradictions)
	action := determineAction(contradictions, severityScore)
	confidence := accuracy(claims, contradictions)

	logging.FactCheckWarn("stage=%s failed: %d claims, %d contradictions, action=%s",
		stage, len(claims), len(contradictions), action)
	return Result{
		Passed:            false,
		Stage:             stage,
		Confidence:        confidence,
		Contradictions:    contradictions,
		RecommendedAction: action,
	}
}

func (c *Checker) findContradictions(claims []FactClaim) []Contradiction {
	var out []Contradiction
	for _, claim := range claims {
		if contra, ok := c.checkClaim(claim); ok {
			out = append(out, contra)
		}
	}
	return out
}

// checkClaim runs the exhaustive contradiction rules for a single claim.
// Unhandled claim types (FileCount, LinesOfCode, FileExtension, Directory)
// always pass.
func (c *Checker) checkClaim(claim FactClaim) (Contradiction, bool) {
	switch claim.ClaimType {
	case ClaimProjectName:
		if !strings.EqualFold(claim.Value, c.facts.Name) {
			return Contradiction{
				Claim:         claim,
				VerifiedValue: c.facts.Name,
				Severity:      SeverityCritical,
				Explanation:   "claimed project name '" + claim.Value + "' does not match verified name '" + c.facts.Name + "'",
			}, true
		}

	case ClaimVersion:
		if claim.Value != c.facts.Version {
			return Contradiction{
				Claim:         claim,
				VerifiedValue: c.facts.Version,
				Severity:      SeverityMajor,
				Explanation:   "claimed version '" + claim.Value + "' does not match verified version '" + c.facts.Version + "'",
			}, true
		}

	case ClaimDependencyCount:
		if contra, ok := c.checkCount(claim, c.facts.DependencyCount, "dependencies"); ok {
			return contra, true
		}

	case ClaimModuleCount:
		if contra, ok := c.checkCount(claim, c.facts.ModuleCount, "modules"); ok {
			return contra, true
		}

	case ClaimProjectComplexity:
		claimedEnterprise := isEnterpriseWord(claim.Value)
		if claimedEnterprise != c.facts.IsEnterprise {
			verified := "simple"
			if c.facts.IsEnterprise {
				verified = "enterprise"
			}
			return Contradiction{
				Claim:         claim,
				VerifiedValue: verified,
				Severity:      SeverityCritical,
				Explanation:   "claimed project complexity '" + claim.Value + "' does not match verified '" + verified + "'",
			}, true
		}
	}
	return Contradiction{}, false
}

// checkCount implements the shared DependencyCount/ModuleCount rule: a
// contradiction fires only when the absolute difference strictly exceeds
// tolerance*actual (floored), and escalates to Critical when the
// difference also strictly exceeds actual/2.
func (c *Checker) checkCount(claim FactClaim, actual int, label string) (Contradiction, bool) {
	claimed, err := strconv.Atoi(claim.Value)
	if err != nil {
		return Contradiction{}, false
	}
	diff := absInt(claimed - actual)
	tolerance := int(c.tolerance * float64(actual))
	if diff <= tolerance {
		return Contradiction{}, false
	}
	severity := SeverityMajor
	if diff > actual/2 {
		severity = SeverityCritical
	}
	return Contradiction{
		Claim:         claim,
		VerifiedValue: strconv.Itoa(actual),
		Severity:      severity,
		Explanation:   "claimed " + claim.Value + " " + label + ", verified count is " + strconv.Itoa(actual),
	}, true
}

func isEnterpriseWord(value string) bool {
	switch strings.ToLower(value) {
	case "enterprise", "complex", "large":
		return true
	default:
		return false
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func meanClaimConfidence(claims []FactClaim) float64 {
	if len(claims) == 0 {
		return 0.5
	}
	var total float64
	for _, c := range claims {
		total += c.Confidence
	}
	return total / float64(len(claims))
}

func meanSeverityWeight(contradictions []Contradiction) float64 {
	if len(contradictions) == 0 {
		return 0
	}
	var total float64
	for _, c := range contradictions {
		total += c.Severity.weight()
	}
	return total / float64(len(contradictions))
}

func accuracy(claims []FactClaim, contradictions []Contradiction) float64 {
	if len(claims) == 0 {
		return 0
	}
	acc := 1.0 - float64(len(contradictions))/float64(len(claims))
	if acc < 0 {
		return 0
	}
	return acc
}

// determineAction maps contradictions + their mean severity to the
// recommended pipeline action.
func determineAction(contradictions []Contradiction, severityScore float64) RecommendedAction {
	for _, c := range contradictions {
		if c.Severity == SeverityCritical {
			return ActionRejectAndRetry
		}
	}
	switch {
	case severityScore > 0.7:
		return ActionRetryWithEnhancedContext
	case severityScore > 0.4:
		return ActionManualReview
	default:
		return ActionAccept
	}
}
