package promptbuilder

import (
	"strings"
	"testing"

	"consensuscore/internal/consensus"
)

func TestBuild_SystemPromptAlwaysFirst(t *testing.T) {
	msgs := Build(consensus.StageGenerator, "What database do you use?", Options{})
	if len(msgs) == 0 || msgs[0].Role != RoleSystem {
		t.Fatalf("expected first message to be system, got %+v", msgs)
	}
	if msgs[0].Content != systemPrompts[consensus.StageGenerator] {
		t.Errorf("unexpected system prompt content")
	}
}

func TestBuild_InjectedContextAddedAsSystemMessage(t *testing.T) {
	msgs := Build(consensus.StageRefiner, "q", Options{InjectedContext: "some facts here"})
	found := false
	for _, m := range msgs {
		if m.Role == RoleSystem && m.Content == "some facts here" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected injected context as a system message, got %+v", msgs)
	}
}

func TestBuild_CuratorInlineOperationsAddsGuideline(t *testing.T) {
	without := Build(consensus.StageCurator, "q", Options{})
	with := Build(consensus.StageCurator, "q", Options{CuratorInlineOperations: true})
	if len(with) != len(without)+1 {
		t.Fatalf("expected one extra message for inline-ops guideline, got without=%d with=%d", len(without), len(with))
	}
	last := with[len(with)-2]
	if last.Role != RoleSystem || !strings.Contains(last.Content, "interleave") {
		t.Errorf("expected guideline message before user message, got %+v", last)
	}
}

func TestBuild_GeneratorFileAwareModeEmbedsFilesAndDirective(t *testing.T) {
	files := []FileContent{{Path: "go.mod", Content: "module example"}}
	msgs := Build(consensus.StageGenerator, "What module is this?", Options{Files: files})

	var sawFileBlock bool
	for _, m := range msgs {
		if m.Role == RoleSystem && strings.Contains(m.Content, "go.mod") {
			sawFileBlock = true
		}
	}
	if !sawFileBlock {
		t.Errorf("expected a system message embedding go.mod contents, got %+v", msgs)
	}

	userMsg := msgs[len(msgs)-1]
	if userMsg.Role != RoleUser || !strings.Contains(userMsg.Content, fileAwareDirective) {
		t.Errorf("expected user message to carry the file-aware directive, got %+v", userMsg)
	}
}

func TestBuild_NonGeneratorStageIncludesPriorAnswer(t *testing.T) {
	msgs := Build(consensus.StageRefiner, "q", Options{PriorAnswer: "generator's answer"})
	userMsg := msgs[len(msgs)-1]
	if !strings.Contains(userMsg.Content, "generator's answer") {
		t.Errorf("expected prior answer folded into user message, got %q", userMsg.Content)
	}
}

func TestBuild_GeneratorIgnoresPriorAnswer(t *testing.T) {
	msgs := Build(consensus.StageGenerator, "q", Options{PriorAnswer: "should not appear"})
	userMsg := msgs[len(msgs)-1]
	if strings.Contains(userMsg.Content, "should not appear") {
		t.Errorf("generator should not fold in a prior answer, got %q", userMsg.Content)
	}
}
