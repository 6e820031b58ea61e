package preprocessor

// selectActions derives the autonomous actions for one classified intent.
// Selection switches on the classifier's semantic intent category, not on
// raw keyword matches against the input — the classifier has already done
// that work; repository concepts trigger exploration plus reads,
// code-analysis concepts trigger search, and navigation/creation intents
// trigger UI/filesystem work.
func selectActions(intent IntentResult, relatedFiles []string) []Action {
	var actions []Action

	switch intent.PrimaryIntent {
	case "explore_repository":
		actions = append(actions, Action{Kind: ActionExploreRepository})
		for _, f := range relatedFiles {
			actions = append(actions, Action{Kind: ActionReadFiles, Path: f})
		}
	case "code_search":
		actions = append(actions, Action{Kind: ActionSearchCode})
	case "memory_recall":
		actions = append(actions, Action{Kind: ActionAccessMemory})
	case "temporal_context":
		actions = append(actions, Action{Kind: ActionGatherTemporal})
	case "quality_analysis":
		actions = append(actions, Action{Kind: ActionAnalyzeQuality})
	case "synthesize_knowledge":
		actions = append(actions, Action{Kind: ActionAccessMemory})
		actions = append(actions, Action{Kind: ActionSynthesizeKnowledge})
	case "navigate":
		for _, f := range relatedFiles {
			actions = append(actions, Action{Kind: ActionNavigateToPath, Path: f, Reason: "requested navigation target"})
		}
	case "create_file":
		// Nothing here resolves a target Path or Content, so the action
		// carries an empty Path; executing it is a no-op whose note
		// explains why nothing happened.
		actions = append(actions, Action{Kind: ActionCreateFile})
	}

	if intent.BenefitsFromMemory && intent.PrimaryIntent != "memory_recall" {
		actions = append(actions, Action{Kind: ActionAccessMemory})
	}

	return dedupeActions(actions)
}

func dedupeActions(actions []Action) []Action {
	seen := make(map[ActionKind]map[string]bool)
	var out []Action
	for _, a := range actions {
		if seen[a.Kind] == nil {
			seen[a.Kind] = make(map[string]bool)
		}
		if seen[a.Kind][a.Path] {
			continue
		}
		seen[a.Kind][a.Path] = true
		out = append(out, a)
	}
	return out
}
