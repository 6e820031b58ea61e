package preprocessor

import (
	"context"
	"strings"
)

// IntentClassifier is the host-provided intent classifier: given raw
// input, it returns a primary intent, a confidence, a complexity score,
// and whether the request is likely to benefit from prior learned
// knowledge.
type IntentClassifier interface {
	Classify(ctx context.Context, input string) (IntentResult, error)
}

// HeuristicClassifier is a dependency-free fallback classifier: it scores
// complexity off input length and clause count and buckets intent by a
// small set of indicator phrases. New installs it as the default, and
// Process falls back to it when Classifier is nil, so a host that hasn't
// wired a real classifier still gets a usable, if coarse, result.
type HeuristicClassifier struct{}

// Classify implements IntentClassifier.
func (HeuristicClassifier) Classify(_ context.Context, input string) (IntentResult, error) {
	return classifyHeuristically(input), nil
}

func classifyHeuristically(input string) IntentResult {
	lower := strings.ToLower(input)
	intent := "general_question"
	switch {
	case containsAny(lower, "explore", "repository", "codebase", "structure", "overview"):
		intent = "explore_repository"
	case containsAny(lower, "search", "find", "grep", "where is", "locate"):
		intent = "code_search"
	case containsAny(lower, "remember", "previously", "last time", "before"):
		intent = "memory_recall"
	case containsAny(lower, "history", "trend", "over time", "recently"):
		intent = "temporal_context"
	case containsAny(lower, "quality", "review", "how good", "assess"):
		intent = "quality_analysis"
	case containsAny(lower, "summarize", "synthesize", "combine"):
		intent = "synthesize_knowledge"
	case containsAny(lower, "go to", "navigate", "open "):
		intent = "navigate"
	case containsAny(lower, "create file", "new file", "write a file"):
		intent = "create_file"
	case isSimpleFact(lower):
		intent = "simple_fact"
	}

	return IntentResult{
		PrimaryIntent:      intent,
		Confidence:         0.5,
		Complexity:         complexityOf(input),
		BenefitsFromMemory: intent == "memory_recall" || intent == "synthesize_knowledge",
	}
}

// complexityOf is a length/structure heuristic: longer, multi-clause
// inputs score higher. Clamped to [0,1].
func complexityOf(input string) float64 {
	words := len(strings.Fields(input))
	clauses := 1 + strings.Count(input, ",") + strings.Count(input, ";")
	score := float64(words)/40.0 + float64(clauses-1)*0.1
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

func isSimpleFact(lower string) bool {
	return containsAny(lower, "what is", "what's", "define", "who is") && len(strings.Fields(lower)) <= 10
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
