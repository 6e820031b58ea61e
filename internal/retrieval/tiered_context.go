package retrieval

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"consensuscore/internal/logging"
)

// =============================================================================
// TIERED CONTEXT BUILDER
// =============================================================================

// TieredContextBuilder fills a fixed file budget in four decreasing-confidence
// passes so a question with an obvious answer (a file it names directly)
// doesn't pay for the same search depth as a vague one.
//
// Tier 1: files the question names directly
// Tier 2: files matching extracted keywords
// Tier 3: import/package neighbors of tiers 1-2
// Tier 4: heuristic symbol-definition expansion (stands in for a vector
// search until one is wired up for this builder)
type TieredContextBuilder struct {
	retriever *SparseRetriever
	workDir   string
	mu        sync.RWMutex

	tier1Budget float64
	tier2Budget float64
	tier3Budget float64
	tier4Budget float64

	maxTier1 int
	maxTier2 int
	maxTier3 int
	maxTier4 int
}

// TieredContextConfig holds configuration for the builder.
type TieredContextConfig struct {
	WorkDir     string
	Retriever   *SparseRetriever
	Tier1Budget float64
	Tier2Budget float64
	Tier3Budget float64
	Tier4Budget float64
	MaxTotal    int
}

// DefaultTieredContextConfig returns a 30/40/20/10 split across a 50-file
// budget, weighted toward keyword matches over speculative expansion.
func DefaultTieredContextConfig(workDir string) *TieredContextConfig {
	return &TieredContextConfig{
		WorkDir:     workDir,
		Tier1Budget: 0.30,
		Tier2Budget: 0.40,
		Tier3Budget: 0.20,
		Tier4Budget: 0.10,
		MaxTotal:    50,
	}
}

// NewTieredContextBuilder creates a new builder.
func NewTieredContextBuilder(cfg *TieredContextConfig) *TieredContextBuilder {
	if cfg == nil {
		cfg = DefaultTieredContextConfig(".")
	}

	retriever := cfg.Retriever
	if retriever == nil {
		retriever = NewSparseRetriever(DefaultSparseRetrieverConfig(cfg.WorkDir))
	}

	maxTotal := cfg.MaxTotal
	if maxTotal == 0 {
		maxTotal = 50
	}

	return &TieredContextBuilder{
		retriever:   retriever,
		workDir:     cfg.WorkDir,
		tier1Budget: cfg.Tier1Budget,
		tier2Budget: cfg.Tier2Budget,
		tier3Budget: cfg.Tier3Budget,
		tier4Budget: cfg.Tier4Budget,
		maxTier1:    int(float64(maxTotal) * cfg.Tier1Budget),
		maxTier2:    int(float64(maxTotal) * cfg.Tier2Budget),
		maxTier3:    int(float64(maxTotal) * cfg.Tier3Budget),
		maxTier4:    int(float64(maxTotal) * cfg.Tier4Budget),
	}
}

// =============================================================================
// CONTEXT FILE
// =============================================================================

// ContextFile represents a file selected for context injection.
type ContextFile struct {
	FilePath        string   `json:"file_path"`
	Tier            int      `json:"tier"`
	RelevanceScore  float64  `json:"relevance_score"`
	SelectionReason string   `json:"selection_reason"`
	Keywords        []string `json:"keywords,omitempty"`
	ImportedBy      []string `json:"imported_by,omitempty"`
	Content         string   `json:"content,omitempty"` // loaded on demand via LoadContent
}

// TieredContext is the complete, budgeted file set assembled for one question.
type TieredContext struct {
	Question string            `json:"question"`
	Keywords *QuestionKeywords `json:"keywords"`
	Files    []ContextFile     `json:"files"`

	Tier1Count int `json:"tier1_count"`
	Tier2Count int `json:"tier2_count"`
	Tier3Count int `json:"tier3_count"`
	Tier4Count int `json:"tier4_count"`
	TotalFiles int `json:"total_files"`
}

// =============================================================================
// BUILD CONTEXT
// =============================================================================

// BuildContext runs all four tiers in order and returns the assembled context.
func (b *TieredContextBuilder) BuildContext(ctx context.Context, question string) (*TieredContext, error) {
	keywords := ExtractQuestionKeywords(question)

	tc := &TieredContext{
		Question: question,
		Keywords: keywords,
		Files:    make([]ContextFile, 0),
	}

	seen := make(map[string]bool)

	tier1 := b.namedFiles(ctx, keywords, seen)
	tc.Files = append(tc.Files, tier1...)
	tc.Tier1Count = len(tier1)
	logging.Context("TieredContextBuilder: tier 1 (named files) = %d", tc.Tier1Count)

	tier2, err := b.keywordMatches(ctx, keywords, seen)
	if err != nil {
		logging.Context("TieredContextBuilder: tier 2 search error: %v", err)
	} else {
		tc.Files = append(tc.Files, tier2...)
		tc.Tier2Count = len(tier2)
	}
	logging.Context("TieredContextBuilder: tier 2 (keyword matches) = %d", tc.Tier2Count)

	tier3 := b.importNeighbors(tc.Files, seen)
	tc.Files = append(tc.Files, tier3...)
	tc.Tier3Count = len(tier3)
	logging.Context("TieredContextBuilder: tier 3 (import neighbors) = %d", tc.Tier3Count)

	tier4 := b.symbolExpansion(ctx, keywords, seen)
	tc.Files = append(tc.Files, tier4...)
	tc.Tier4Count = len(tier4)
	logging.Context("TieredContextBuilder: tier 4 (symbol expansion) = %d", tc.Tier4Count)

	tc.TotalFiles = len(tc.Files)
	return tc, nil
}

// =============================================================================
// TIER 1: NAMED FILES
// =============================================================================

// namedFiles resolves each path the question mentions to an actual file
// under workDir.
func (b *TieredContextBuilder) namedFiles(ctx context.Context, keywords *QuestionKeywords, seen map[string]bool) []ContextFile {
	var files []ContextFile

	for _, name := range keywords.MentionedFiles {
		if len(files) >= b.maxTier1 {
			break
		}

		resolved := b.resolvePath(name)
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true

		files = append(files, ContextFile{
			FilePath:        resolved,
			Tier:            1,
			RelevanceScore:  1.0,
			SelectionReason: fmt.Sprintf("named directly in the question: %s", name),
		})
	}

	return files
}

// skipDirs are walked over rather than into when resolving a bare filename.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true,
	".venv": true, "venv": true, "vendor": true,
}

// resolvePath finds a file by exact relative path first, falling back to a
// suffix match against every file under workDir.
func (b *TieredContextBuilder) resolvePath(partial string) string {
	if full := filepath.Join(b.workDir, partial); fileExists(full) {
		return full
	}

	var found string
	filepath.Walk(b.workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || found != "" {
			return err
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, partial) {
			found = path
		}
		return nil
	})

	return found
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// TIER 2: KEYWORD MATCHES
// =============================================================================

// keywordMatches ranks the retriever's ripgrep hits for the extracted
// keywords and keeps the top maxTier2 files not already selected.
func (b *TieredContextBuilder) keywordMatches(ctx context.Context, keywords *QuestionKeywords, seen map[string]bool) ([]ContextFile, error) {
	hits, err := b.retriever.SearchKeywords(ctx, keywords)
	if err != nil {
		return nil, err
	}

	ranked := b.retriever.RankFiles(hits, keywords, b.maxTier2)

	files := make([]ContextFile, 0, len(ranked))
	for _, candidate := range ranked {
		if len(files) >= b.maxTier2 {
			break
		}
		if seen[candidate.FilePath] {
			continue
		}
		seen[candidate.FilePath] = true

		files = append(files, ContextFile{
			FilePath:        candidate.FilePath,
			Tier:            2,
			RelevanceScore:  candidate.RelevanceScore,
			SelectionReason: fmt.Sprintf("matches %d keyword(s): %s", candidate.UniqueKeywords, strings.Join(candidate.Keywords, ", ")),
			Keywords:        candidate.Keywords,
		})
	}

	return files, nil
}

// =============================================================================
// TIER 3: IMPORT NEIGHBORS
// =============================================================================

var importLinePattern = regexp.MustCompile(`^(?:from\s+([a-zA-Z0-9_.]+)\s+import|import\s+([a-zA-Z0-9_.]+))`)

// importNeighbors scans tier 1/2 files for import statements and pulls in
// whichever of those imports resolve to a real file in the tree.
func (b *TieredContextBuilder) importNeighbors(existing []ContextFile, seen map[string]bool) []ContextFile {
	var added []ContextFile

	for _, file := range existing {
		if len(added) >= b.maxTier3 {
			break
		}

		for _, imp := range b.scanImports(file.FilePath) {
			if len(added) >= b.maxTier3 {
				break
			}

			resolved := b.resolveImportPath(imp, file.FilePath)
			if resolved == "" || seen[resolved] {
				continue
			}
			seen[resolved] = true

			added = append(added, ContextFile{
				FilePath:        resolved,
				Tier:            3,
				RelevanceScore:  0.5,
				SelectionReason: fmt.Sprintf("imported by %s", filepath.Base(file.FilePath)),
				ImportedBy:      []string{file.FilePath},
			})
		}
	}

	return added
}

// scanImports reads a Python-style import statement list out of a file.
// Go source files use package-level dependencies resolved through go.mod
// instead, so this only contributes neighbors for Python code under review.
func (b *TieredContextBuilder) scanImports(filePath string) []string {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var imports []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		matches := importLinePattern.FindStringSubmatch(line)
		if len(matches) == 0 {
			continue
		}
		if matches[1] != "" {
			imports = append(imports, matches[1])
		}
		if matches[2] != "" {
			imports = append(imports, matches[2])
		}
	}

	return imports
}

// resolveImportPath maps a dotted Python import path to a file relative to
// either the importing file's directory or the repository root.
func (b *TieredContextBuilder) resolveImportPath(importPath, fromFile string) string {
	parts := strings.Split(importPath, ".")
	rel := strings.Join(parts, string(os.PathSeparator))
	currentDir := filepath.Dir(fromFile)

	candidates := []string{
		filepath.Join(currentDir, rel+".py"),
		filepath.Join(currentDir, rel, "__init__.py"),
		filepath.Join(b.workDir, rel+".py"),
		filepath.Join(b.workDir, rel, "__init__.py"),
	}

	for _, candidate := range candidates {
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

// =============================================================================
// TIER 4: SYMBOL EXPANSION
// =============================================================================

// symbolExpansion looks for files that might define a mentioned symbol by
// grepping for common declaration shapes. It's a cheap stand-in for a real
// embedding-similarity pass: the vector store lives in the store package
// and isn't threaded through this builder.
func (b *TieredContextBuilder) symbolExpansion(ctx context.Context, keywords *QuestionKeywords, seen map[string]bool) []ContextFile {
	var files []ContextFile

	for _, symbol := range keywords.MentionedSymbols {
		if len(files) >= b.maxTier4 {
			break
		}

		for _, defFile := range b.findDefinitions(ctx, symbol) {
			if len(files) >= b.maxTier4 {
				break
			}
			if seen[defFile] {
				continue
			}
			seen[defFile] = true

			files = append(files, ContextFile{
				FilePath:        defFile,
				Tier:            4,
				RelevanceScore:  0.3,
				SelectionReason: fmt.Sprintf("may define symbol %s", symbol),
			})
		}
	}

	return files
}

// findDefinitions greps for class/function/method definitions of symbol
// across Python and Go declaration styles.
func (b *TieredContextBuilder) findDefinitions(ctx context.Context, symbol string) []string {
	patterns := []string{
		// searchSingleKeyword quotes its term as a literal, so these are
		// plain substrings rather than line-anchored regexes.
		fmt.Sprintf("class %s", symbol),
		fmt.Sprintf("def %s", symbol),
		fmt.Sprintf("func %s", symbol),
		fmt.Sprintf("type %s", symbol),
	}

	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		hits, err := b.retriever.searchSingleKeyword(ctx, pattern)
		if err != nil {
			continue
		}
		for _, hit := range hits {
			if !seen[hit.FilePath] {
				seen[hit.FilePath] = true
				files = append(files, hit.FilePath)
			}
		}
	}

	return files
}

// =============================================================================
// CONTEXT HELPERS
// =============================================================================

// GetFilesByTier returns files filtered by tier.
func (tc *TieredContext) GetFilesByTier(tier int) []ContextFile {
	var files []ContextFile
	for _, f := range tc.Files {
		if f.Tier == tier {
			files = append(files, f)
		}
	}
	return files
}

// GetTopFiles returns the top N files by relevance score.
func (tc *TieredContext) GetTopFiles(n int) []ContextFile {
	sorted := make([]ContextFile, len(tc.Files))
	copy(sorted, tc.Files)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// GetFilePaths returns just the file paths for all context files.
func (tc *TieredContext) GetFilePaths() []string {
	paths := make([]string, len(tc.Files))
	for i, f := range tc.Files {
		paths[i] = f.FilePath
	}
	return paths
}

// LoadContent reads file content for files in tier order until maxBytes is
// reached, leaving later files' Content empty rather than truncating mid-file.
func (tc *TieredContext) LoadContent(maxBytes int64) error {
	var totalBytes int64

	for i := range tc.Files {
		if totalBytes >= maxBytes {
			break
		}

		content, err := os.ReadFile(tc.Files[i].FilePath)
		if err != nil {
			continue
		}

		tc.Files[i].Content = string(content)
		totalBytes += int64(len(content))
	}

	return nil
}
