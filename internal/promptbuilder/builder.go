package promptbuilder

import (
	"fmt"
	"strings"

	"consensuscore/internal/consensus"
)

// Build assembles the message list for one stage invocation: fixed system
// prompt first, then injected context, then stage-specific guideline
// messages, then the user message.
func Build(stage consensus.Stage, question string, opts Options) []Message {
	messages := []Message{
		{Role: RoleSystem, Content: systemPrompts[stage]},
	}

	if opts.InjectedContext != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: opts.InjectedContext})
	}

	if stage == consensus.StageCurator && opts.CuratorInlineOperations {
		messages = append(messages, Message{Role: RoleSystem, Content: curatorInlineOpsGuideline})
	}

	if stage == consensus.StageGenerator && len(opts.Files) > 0 {
		messages = append(messages, Message{Role: RoleSystem, Content: formatFiles(opts.Files)})
	}

	messages = append(messages, Message{Role: RoleUser, Content: userMessage(stage, question, opts)})

	return messages
}

func userMessage(stage consensus.Stage, question string, opts Options) string {
	var b strings.Builder
	b.WriteString(question)

	if opts.PriorAnswer != "" && stage != consensus.StageGenerator {
		fmt.Fprintf(&b, "\n\nPrevious stage answer:\n%s", opts.PriorAnswer)
	}

	if stage == consensus.StageGenerator && len(opts.Files) > 0 {
		b.WriteString("\n\n" + fileAwareDirective)
	}

	return b.String()
}

func formatFiles(files []FileContent) string {
	var b strings.Builder
	b.WriteString("Repository file contents:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "--- BEGIN FILE: %s ---\n%s\n--- END FILE: %s ---\n", f.Path, f.Content, f.Path)
	}
	return b.String()
}
