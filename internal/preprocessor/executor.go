package preprocessor

import (
	"context"
	"fmt"
	"strings"

	"consensuscore/internal/events"
	"consensuscore/internal/learner"
	"consensuscore/internal/logging"
	"consensuscore/internal/precedent"
	"consensuscore/internal/repofacts"
	"consensuscore/internal/retrieval"
	"consensuscore/internal/store"
)

// CodeSearcher is the slice of C12's retrieval dependency: ranked file
// discovery over the open repository (backs SearchCode/ExploreRepository).
type CodeSearcher interface {
	FindRelevantFiles(ctx context.Context, issueText string, limit int) ([]retrieval.CandidateFile, error)
}

// MemoryAccessor is the slice of C10 C12 needs for AccessMemory and
// SynthesizeKnowledge.
type MemoryAccessor interface {
	GetLearnedContext(question, stage string, limit int) learner.LearnedContext
}

// TemporalStore is the slice of C1 C12 needs for GatherTemporalContext.
type TemporalStore interface {
	GetAllFactsSortedByDate(ctx context.Context) ([]store.Fact, error)
}

// PrecedentAnalyzer is the slice of C11 CreateFile consults: the
// analysis's warnings are added to the action's note, no auto-accept
// decision is made from it, and every attempted creation is recorded back
// as a new outcome.
type PrecedentAnalyzer interface {
	AnalyzeOperationContext(ctx context.Context, op precedent.Operation, opCtx precedent.Context) (precedent.Analysis, error)
	RecordOperationOutcome(ctx context.Context, op precedent.Operation, opCtx precedent.Context, outcome precedent.Outcome, userSatisfaction *float64) error
}

func (p *PreProcessor) precedentContext(question string) precedent.Context {
	facts := p.currentFacts()
	return precedent.Context{RepoPath: facts.RootPath, Question: question, IsEnterprise: facts.IsEnterprise}
}

func (p *PreProcessor) checkPrecedent(ctx context.Context, action Action, question string) string {
	if p.Precedent == nil {
		return ""
	}
	op := precedent.Operation{Kind: precedent.OpCreate, Path: action.Path, Content: action.Content}
	analysis, err := p.Precedent.AnalyzeOperationContext(ctx, op, p.precedentContext(question))
	if err != nil || len(analysis.Warnings) == 0 {
		return ""
	}
	warnings := make([]string, len(analysis.Warnings))
	for i, w := range analysis.Warnings {
		warnings[i] = string(w)
	}
	return "precedent warnings: " + strings.Join(warnings, ", ")
}

func (p *PreProcessor) recordPrecedent(ctx context.Context, action Action, question string, success bool) {
	if p.Precedent == nil {
		return
	}
	op := precedent.Operation{Kind: precedent.OpCreate, Path: action.Path, Content: action.Content}
	outcome := precedent.OutcomeSuccess
	if !success {
		outcome = precedent.OutcomeFailure
	}
	if err := p.Precedent.RecordOperationOutcome(ctx, op, p.precedentContext(question), outcome, nil); err != nil {
		logging.AutonomyWarn("failed to record operation precedent: %v", err)
	}
}

// executeAction runs one action, returning a context-string note. Errors
// never propagate past this function: a failed action becomes a note
// rather than an aborted request.
func (p *PreProcessor) executeAction(ctx context.Context, conversationID, question string, action Action) ActionOutcome {
	note, err := p.runAction(ctx, conversationID, question, action)
	if err != nil {
		return ActionOutcome{Action: action, Note: fmt.Sprintf("action %s failed: %v", action.Kind, err), Err: err}
	}
	return ActionOutcome{Action: action, Note: note}
}

func (p *PreProcessor) runAction(ctx context.Context, conversationID, question string, action Action) (string, error) {
	switch action.Kind {
	case ActionExploreRepository:
		facts := p.currentFacts()
		return fmt.Sprintf("repository %s: %d files, %d modules, %d LOC, enterprise=%v, major dirs: %s",
			facts.Name, facts.TotalFiles, facts.ModuleCount, facts.LinesOfCode, facts.IsEnterprise,
			strings.Join(facts.MajorDirectories, ", ")), nil

	case ActionReadFiles:
		if p.Security == nil {
			return "", fmt.Errorf("no security policy configured")
		}
		content, err := p.Security.ReadFile(action.Path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("contents of %s:\n%s", action.Path, truncate(content, 4000)), nil

	case ActionSearchCode:
		if p.Searcher == nil {
			return "", fmt.Errorf("no code searcher configured")
		}
		candidates, err := p.Searcher.FindRelevantFiles(ctx, question, 10)
		if err != nil {
			return "", err
		}
		var paths []string
		for _, c := range candidates {
			paths = append(paths, c.FilePath)
		}
		return fmt.Sprintf("files matching the query: %s", strings.Join(paths, ", ")), nil

	case ActionAccessMemory:
		if p.Memory == nil {
			return "", fmt.Errorf("no memory accessor configured")
		}
		lc := p.Memory.GetLearnedContext(question, "", 5)
		return summarizeLearnedContext(lc), nil

	case ActionGatherTemporal:
		if p.Temporal == nil {
			return "", fmt.Errorf("no temporal store configured")
		}
		facts, err := p.Temporal.GetAllFactsSortedByDate(ctx)
		if err != nil {
			return "", err
		}
		if len(facts) == 0 {
			return "no historical facts recorded yet", nil
		}
		recent := facts
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		var lines []string
		for _, f := range recent {
			lines = append(lines, fmt.Sprintf("[%s] %s", f.CreatedAt.Format("2006-01-02"), f.Content))
		}
		return "recent facts: " + strings.Join(lines, "; "), nil

	case ActionAnalyzeQuality:
		facts := p.currentFacts()
		assessment := "small, low-complexity repository"
		if facts.IsEnterprise {
			assessment = "large, enterprise-scale repository; expect higher answer complexity and longer stage latency"
		}
		return assessment, nil

	case ActionSynthesizeKnowledge:
		if p.Memory == nil {
			return "", fmt.Errorf("no memory accessor configured")
		}
		lc := p.Memory.GetLearnedContext(question, "", 5)
		if len(lc.SuccessStrategies) == 0 {
			return "no synthesized strategies available yet", nil
		}
		return "synthesized strategies: " + strings.Join(lc.SuccessStrategies, "; "), nil

	case ActionNavigateToPath:
		p.emit(events.Event{Kind: events.KindNavigateToPath, ConversationID: conversationID, Path: action.Path, Reason: action.Reason})
		return fmt.Sprintf("navigated to %s", action.Path), nil

	case ActionOpenFile:
		p.emit(events.Event{Kind: events.KindOpenFile, ConversationID: conversationID, Path: action.Path})
		return fmt.Sprintf("opened %s", action.Path), nil

	case ActionCreateFile:
		if action.Path == "" {
			return "", fmt.Errorf("no target path resolved for create_file")
		}
		if p.Security == nil {
			return "", fmt.Errorf("no security policy configured")
		}
		precedentNote := p.checkPrecedent(ctx, action, question)
		err := p.Security.WriteFile(action.Path, action.Content)
		p.recordPrecedent(ctx, action, question, err == nil)
		if err != nil {
			return "", err
		}
		p.emit(events.Event{Kind: events.KindCreateFile, ConversationID: conversationID, Path: action.Path, Content: action.Content, OpenAfterCreate: true})
		note := fmt.Sprintf("created %s", action.Path)
		if precedentNote != "" {
			note += "; " + precedentNote
		}
		return note, nil

	default:
		return "", fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

func (p *PreProcessor) emit(e events.Event) {
	if p.Sink == nil {
		return
	}
	p.Sink.Emit(e)
}

func (p *PreProcessor) currentFacts() repofacts.Facts {
	if p.Facts == nil {
		return repofacts.Facts{}
	}
	return *p.Facts
}

func summarizeLearnedContext(lc learner.LearnedContext) string {
	if len(lc.SimilarExperiences) == 0 && len(lc.Warnings) == 0 {
		return "no relevant prior experience found"
	}
	var parts []string
	if len(lc.SimilarExperiences) > 0 {
		parts = append(parts, fmt.Sprintf("%d similar prior experiences found", len(lc.SimilarExperiences)))
	}
	if len(lc.ModelRecommendations) > 0 {
		parts = append(parts, "recommended models: "+strings.Join(lc.ModelRecommendations, ", "))
	}
	for _, w := range lc.Warnings {
		parts = append(parts, "warning: "+w)
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
