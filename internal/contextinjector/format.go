package contextinjector

import (
	"fmt"
	"strings"

	"consensuscore/internal/consensus"
	"consensuscore/internal/learner"
)

// formatContext renders ranked facts using a stage-specific template. An
// empty fact list still returns an empty string; the pipeline runs with
// only prior-stage context in that case.
func formatContext(stage consensus.Stage, question string, facts []RankedFact) string {
	if len(facts) == 0 {
		return ""
	}
	switch stage {
	case consensus.StageGenerator:
		return formatGenerator(facts)
	case consensus.StageRefiner:
		return formatRefiner(facts)
	case consensus.StageValidator:
		return formatValidator(facts)
	case consensus.StageCurator:
		return formatCurator(facts)
	default:
		return formatGenerator(facts)
	}
}

func formatGenerator(facts []RankedFact) string {
	var b strings.Builder
	b.WriteString("Relevant Historical Knowledge:\n")
	for i, rf := range facts {
		fmt.Fprintf(&b, "%d. %s (confidence: %.0f%%, source question: %q)\n",
			i+1, rf.Fact.Content, rf.Fact.Confidence*100, firstNonEmpty(rf.Fact.Source, "unknown"))
	}
	return b.String()
}

func formatRefiner(facts []RankedFact) string {
	var b strings.Builder
	b.WriteString("Related themes to consider while refining:\n")
	for _, rf := range facts {
		theme := rf.Fact.Topic
		if theme == "" {
			theme = "general"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", theme, rf.Fact.Content)
	}
	return b.String()
}

func formatValidator(facts []RankedFact) string {
	var b strings.Builder
	b.WriteString("Validate the answer against these known facts:\n")
	for _, rf := range facts {
		fmt.Fprintf(&b, "! %s\n", rf.Fact.Content)
	}
	return b.String()
}

func formatCurator(facts []RankedFact) string {
	var b strings.Builder
	b.WriteString("Authoritative facts (with recording dates):\n")
	for _, rf := range facts {
		fmt.Fprintf(&b, "- %s (recorded %s)\n", rf.Fact.Content, rf.Fact.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}

// appendLearnedSection folds learner warnings and success strategies into
// the context block. Nothing to say means base comes back untouched.
func appendLearnedSection(base string, lc learner.LearnedContext) string {
	if len(lc.Warnings) == 0 && len(lc.SuccessStrategies) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	if base != "" {
		b.WriteString("\n")
	}
	b.WriteString("Lessons from past runs:\n")
	for _, w := range lc.Warnings {
		fmt.Fprintf(&b, "! %s\n", w)
	}
	for _, s := range lc.SuccessStrategies {
		fmt.Fprintf(&b, "+ %s\n", s)
	}
	return b.String()
}

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
