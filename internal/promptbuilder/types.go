// Package promptbuilder implements the stage prompt builder: it holds the
// four fixed per-stage system prompts and assembles the message list a
// model gateway call sends, using the same system/user role shape as a
// standard chat-completion request.
package promptbuilder

// Role is a message's role in a chat-style completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the message list sent to a model gateway.
type Message struct {
	Role    Role
	Content string
}

// FileContent is one file's contents embedded into the Generator's
// file-aware system message, clearly demarcated by path.
type FileContent struct {
	Path    string
	Content string
}

// Options controls the optional assembly behaviors Build supports.
type Options struct {
	// InjectedContext is C7's formatted context block, added as an
	// additional system message when non-empty.
	InjectedContext string

	// PriorAnswer is the previous stage's answer; empty for the Generator.
	PriorAnswer string

	// Files are embedded into a demarcated Generator system message when
	// non-empty (the Generator's file-aware mode).
	Files []FileContent

	// CuratorInlineOperations appends the interleaved-operation output
	// format guideline system message for the Curator stage.
	CuratorInlineOperations bool
}
