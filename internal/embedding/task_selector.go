package embedding

import (
	"strings"

	"consensuscore/internal/logging"
)

// ContentType tags the kind of text being embedded, so the caller can
// pick the GenAI task type tuned for that content rather than always
// using the generic SEMANTIC_SIMILARITY task.
type ContentType string

const (
	ContentTypeCode           ContentType = "code"
	ContentTypeDocumentation  ContentType = "documentation"
	ContentTypeConversation   ContentType = "conversation"
	ContentTypeKnowledgeAtom  ContentType = "knowledge_atom"
	ContentTypeQuery          ContentType = "query"
	ContentTypeFact           ContentType = "fact"
	ContentTypeQuestion       ContentType = "question"
	ContentTypeAnswer         ContentType = "answer"
	ContentTypeClassification ContentType = "classification"
	ContentTypeClustering     ContentType = "clustering"
)

const defaultTaskType = "SEMANTIC_SIMILARITY"

// taskTypeByContent maps each non-code ContentType to its GenAI task
// type. Code is handled separately in SelectTaskType since its task type
// also depends on isQuery.
var taskTypeByContent = map[ContentType]string{
	ContentTypeQuery:          "RETRIEVAL_QUERY",
	ContentTypeQuestion:       "QUESTION_ANSWERING",
	ContentTypeAnswer:         "RETRIEVAL_DOCUMENT",
	ContentTypeDocumentation:  "RETRIEVAL_DOCUMENT",
	ContentTypeFact:           "FACT_VERIFICATION",
	ContentTypeClassification: "CLASSIFICATION",
	ContentTypeClustering:     "CLUSTERING",
	ContentTypeConversation:   defaultTaskType,
	ContentTypeKnowledgeAtom:  defaultTaskType,
}

// SelectTaskType picks the GenAI task type for contentType, taking
// isQuery into account for the content types where retrieval direction
// (searching vs. indexing) changes the optimal task.
func SelectTaskType(contentType ContentType, isQuery bool) string {
	if contentType == ContentTypeCode {
		if isQuery {
			return "CODE_RETRIEVAL_QUERY"
		}
		return "RETRIEVAL_DOCUMENT"
	}

	taskType, ok := taskTypeByContent[contentType]
	if !ok {
		logging.EmbeddingDebug("SelectTaskType: unrecognized content_type=%s, defaulting to %s", contentType, defaultTaskType)
		return defaultTaskType
	}
	return taskType
}

// codeIndicators are token fragments strongly associated with source code;
// DetectContentType counts how many appear before trusting the result.
var codeIndicators = []string{
	"func ", "function ", "class ", "def ", "import ", "package ",
	"const ", "var ", "let ", "interface ", "struct ", "type ",
	"{", "}", "=>", "->", "//", "/*", "*/", "public ", "private ",
}

// codeIndicatorThreshold is the minimum number of distinct code
// indicators that must appear before text is classified as code; one
// or two incidental matches (a stray "{" in prose, say) isn't enough.
const codeIndicatorThreshold = 3

var questionPrefixes = []string{"what ", "how ", "why ", "when ", "where "}

var docIndicators = []string{"# ", "## ", "### ", "/**", "* @param", "* @return", "readme", "documentation"}

// DetectContentType infers a ContentType from raw text and optional
// metadata. Metadata always wins when present; otherwise the text is run
// through a fixed sequence of heuristics, falling back to conversation
// for unclassified natural language.
func DetectContentType(text string, metadata map[string]interface{}) ContentType {
	if ct, ok := contentTypeFromMetadata(metadata); ok {
		return ct
	}

	lower := strings.ToLower(text)

	if codeIndicatorCount(lower) >= codeIndicatorThreshold {
		return ContentTypeCode
	}
	if looksLikeQuestion(lower) {
		return ContentTypeQuestion
	}
	if looksLikeConversation(text, lower) {
		return ContentTypeConversation
	}
	if containsAnyIndicator(lower, docIndicators) {
		return ContentTypeDocumentation
	}
	return ContentTypeConversation
}

func contentTypeFromMetadata(metadata map[string]interface{}) (ContentType, bool) {
	if explicit, ok := metadata["content_type"].(string); ok {
		return ContentType(explicit), true
	}
	metaType, ok := metadata["type"].(string)
	if !ok {
		return "", false
	}
	switch metaType {
	case "user_input", "query":
		return ContentTypeQuery, true
	case "code", "source_code":
		return ContentTypeCode, true
	case "documentation", "docs":
		return ContentTypeDocumentation, true
	case "knowledge_atom", "fact":
		return ContentTypeKnowledgeAtom, true
	default:
		return "", false
	}
}

func codeIndicatorCount(lower string) int {
	count := 0
	for _, indicator := range codeIndicators {
		if strings.Contains(lower, indicator) {
			count++
		}
	}
	return count
}

func looksLikeQuestion(lower string) bool {
	if strings.HasSuffix(lower, "?") {
		return true
	}
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func looksLikeConversation(original, lower string) bool {
	const shortTextLimit = 100
	if len(original) >= shortTextLimit {
		return false
	}
	return strings.Contains(lower, "please") || strings.Contains(lower, "can you") || strings.Contains(lower, "i want")
}

func containsAnyIndicator(lower string, indicators []string) bool {
	for _, indicator := range indicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// GetOptimalTaskType combines detection and selection: it picks a GenAI
// task type straight from raw text and metadata without the caller having
// to classify content itself first.
func GetOptimalTaskType(text string, metadata map[string]interface{}, isQuery bool) string {
	contentType := DetectContentType(text, metadata)
	taskType := SelectTaskType(contentType, isQuery)
	logging.Embedding("GetOptimalTaskType: content_type=%s -> task_type=%s", contentType, taskType)
	return taskType
}
