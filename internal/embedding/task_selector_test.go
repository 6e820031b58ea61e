package embedding

import "testing"

func TestSelectTaskType(t *testing.T) {
	cases := []struct {
		name    string
		content ContentType
		isQuery bool
		want    string
	}{
		{"code query", ContentTypeCode, true, "CODE_RETRIEVAL_QUERY"},
		{"code document", ContentTypeCode, false, "RETRIEVAL_DOCUMENT"},
		{"question", ContentTypeQuestion, true, "QUESTION_ANSWERING"},
		{"fact", ContentTypeFact, false, "FACT_VERIFICATION"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SelectTaskType(tc.content, tc.isQuery); got != tc.want {
				t.Errorf("SelectTaskType(%v, %v) = %q, want %q", tc.content, tc.isQuery, got, tc.want)
			}
		})
	}
}

func TestDetectContentType(t *testing.T) {
	cases := []struct {
		name string
		text string
		meta map[string]interface{}
		want ContentType
	}{
		// explicit metadata always wins over heuristics
		{"metadata content_type", "func main() {}", map[string]interface{}{"content_type": "knowledge_atom"}, ContentTypeKnowledgeAtom},
		{"metadata type=query", "how do I do x", map[string]interface{}{"type": "query"}, ContentTypeQuery},
		// heuristic buckets
		{"code", "package main\n\nfunc main() { /* hi */ }\n", map[string]interface{}{}, ContentTypeCode},
		{"question", "how do I write a scanner?", map[string]interface{}{}, ContentTypeQuestion},
		{"conversation", "please help", map[string]interface{}{}, ContentTypeConversation},
		{"documentation", "## Title\n\nThis is documentation.", map[string]interface{}{}, ContentTypeDocumentation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectContentType(tc.text, tc.meta); got != tc.want {
				t.Errorf("DetectContentType(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestGetOptimalTaskType(t *testing.T) {
	got := GetOptimalTaskType("package main\nfunc main() {}", map[string]interface{}{}, true)
	if got != "CODE_RETRIEVAL_QUERY" {
		t.Errorf("GetOptimalTaskType(code query) = %q, want CODE_RETRIEVAL_QUERY", got)
	}
}
