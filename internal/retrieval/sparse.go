// Package retrieval provides keyword-based file discovery for the
// autonomous pre-processor's SearchCode action. A SparseRetriever shells
// out to ripgrep rather than holding a repository's source in memory, so
// it stays cheap even against large checkouts.
package retrieval

import (
	"bufio"
	"container/list"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"consensuscore/internal/logging"
)

// =============================================================================
// QUESTION RETRIEVER - keyword-based file discovery
// =============================================================================

// weight constants used when scoring a keyword match. Explicitly mentioned
// files always win; everything else is ranked by how specific the term is.
const (
	weightMentionedFile = 1.0
	weightPrimary       = 0.9
	weightClass         = 0.85
	weightSecondary     = 0.7
	weightTertiary      = 0.5
	weightDefault       = 0.3

	tierHighScore   = 2.0
	tierMediumScore = 1.0
)

// SparseRetriever answers "which files might contain the answer to this
// question" by extracting search terms from the question text and running
// them through ripgrep in parallel, one process per term.
type SparseRetriever struct {
	workDir string
	cache   *keywordHitCache

	maxResults      int
	searchTimeout   time.Duration
	parallelism     int
	excludePatterns []string
}

// SparseRetrieverConfig holds configuration for the retriever.
type SparseRetrieverConfig struct {
	WorkDir         string
	MaxResults      int
	SearchTimeout   time.Duration
	Parallelism     int
	ExcludePatterns []string
	CacheSize       int
	CacheTTL        time.Duration
}

// DefaultSparseRetrieverConfig returns sensible defaults for a typical
// checkout: a handful of ripgrep workers, a short per-term timeout, and a
// cache big enough to absorb repeated questions about the same area.
func DefaultSparseRetrieverConfig(workDir string) *SparseRetrieverConfig {
	return &SparseRetrieverConfig{
		WorkDir:       workDir,
		MaxResults:    100,
		SearchTimeout: 30 * time.Second,
		Parallelism:   4,
		ExcludePatterns: []string{
			"*.pyc", "__pycache__", ".git", "node_modules",
			"*.egg-info", ".tox", ".pytest_cache", "*.min.js",
			"vendor", "dist", "build", ".venv", "venv",
			"testdata", "*.lock", "*.sum",
		},
		CacheSize: 1000,
		CacheTTL:  5 * time.Minute,
	}
}

// NewSparseRetriever creates a new retriever with the given config.
func NewSparseRetriever(cfg *SparseRetrieverConfig) *SparseRetriever {
	if cfg == nil {
		cfg = DefaultSparseRetrieverConfig(".")
	}

	return &SparseRetriever{
		workDir:         cfg.WorkDir,
		cache:           newKeywordHitCache(cfg.CacheSize, cfg.CacheTTL),
		maxResults:      cfg.MaxResults,
		searchTimeout:   cfg.SearchTimeout,
		parallelism:     cfg.Parallelism,
		excludePatterns: cfg.ExcludePatterns,
	}
}

// =============================================================================
// QUESTION KEYWORDS
// =============================================================================

// QuestionKeywords is the set of search terms pulled out of a user's
// question, bucketed by how confident the extractor is that the term
// names something concrete in the codebase.
type QuestionKeywords struct {
	// Primary keywords are the most important (error/type names).
	Primary []string

	// Secondary keywords are supporting terms (functions, methods).
	Secondary []string

	// Tertiary keywords are contextual (quoted identifiers).
	Tertiary []string

	// Weights maps each keyword to its importance score (0.0-1.0).
	Weights map[string]float64

	// MentionedFiles are paths explicitly named in the question.
	MentionedFiles []string

	// MentionedSymbols are type/function names mentioned in the question.
	MentionedSymbols []string
}

var (
	mentionedFilePattern = regexp.MustCompile(`(?:^|\s)([a-zA-Z_][a-zA-Z0-9_/\\]*\.(?:go|py|js|ts|rs|java|rb|cpp|c|h|yaml|yml|json|toml|md))(?:\s|$|:)`)
	typeNamePattern      = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9_]*(?:Error|Exception|Warning)?)\b`)
	callPattern          = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	methodCallPattern    = regexp.MustCompile(`\.([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	declPattern          = regexp.MustCompile(`\b(?:class|type|func|struct|interface)\s+(?:\(\s*\w+\s+\*?\w+\s*\)\s*)?([A-Z][a-zA-Z0-9_]*)`)
	quotedIdentPattern   = regexp.MustCompile(`["'\x60]([a-zA-Z_][a-zA-Z0-9_]*)["'\x60]`)
)

// ExtractQuestionKeywords pulls candidate search terms out of a question
// using regex heuristics. It is intentionally cheap: no parsing, no LLM
// round trip, just enough signal to seed a ripgrep search.
func ExtractQuestionKeywords(question string) *QuestionKeywords {
	kw := &QuestionKeywords{
		Weights:          make(map[string]float64),
		MentionedFiles:   make([]string, 0),
		MentionedSymbols: make([]string, 0),
	}

	for _, match := range mentionedFilePattern.FindAllStringSubmatch(question, -1) {
		if len(match) > 1 {
			path := strings.ReplaceAll(match[1], "\\", "/")
			kw.MentionedFiles = append(kw.MentionedFiles, path)
			kw.Weights[path] = weightMentionedFile
		}
	}

	seenTypes := make(map[string]bool)
	for _, match := range typeNamePattern.FindAllStringSubmatch(question, -1) {
		if len(match) < 2 {
			continue
		}
		sym := match[1]
		if isCommonWord(sym) || seenTypes[sym] {
			continue
		}
		seenTypes[sym] = true
		kw.MentionedSymbols = append(kw.MentionedSymbols, sym)
		kw.Primary = append(kw.Primary, sym)
		kw.Weights[sym] = weightPrimary
	}

	seenCallables := make(map[string]bool)
	addCallable := func(name string) {
		if len(name) <= 2 || isCommonWord(name) || seenCallables[name] {
			return
		}
		seenCallables[name] = true
		kw.Secondary = append(kw.Secondary, name)
		kw.Weights[name] = weightSecondary
	}
	for _, match := range callPattern.FindAllStringSubmatch(question, -1) {
		if len(match) > 1 {
			addCallable(match[1])
		}
	}
	for _, match := range methodCallPattern.FindAllStringSubmatch(question, -1) {
		if len(match) > 1 {
			addCallable(match[1])
		}
	}

	for _, match := range declPattern.FindAllStringSubmatch(question, -1) {
		if len(match) > 1 && !seenTypes[match[1]] {
			kw.Primary = append(kw.Primary, match[1])
			kw.Weights[match[1]] = weightClass
		}
	}

	for _, match := range quotedIdentPattern.FindAllStringSubmatch(question, -1) {
		if len(match) < 2 {
			continue
		}
		quoted := match[1]
		if len(quoted) > 2 && !isCommonWord(quoted) {
			kw.Tertiary = append(kw.Tertiary, quoted)
			kw.Weights[quoted] = weightTertiary
		}
	}

	kw.Primary = uniqueStrings(kw.Primary)
	kw.Secondary = uniqueStrings(kw.Secondary)
	kw.Tertiary = uniqueStrings(kw.Tertiary)
	kw.MentionedFiles = uniqueStrings(kw.MentionedFiles)
	kw.MentionedSymbols = uniqueStrings(kw.MentionedSymbols)

	return kw
}

// AllKeywords returns all keywords in priority order: primary first, then
// secondary, then tertiary.
func (kw *QuestionKeywords) AllKeywords() []string {
	all := make([]string, 0, len(kw.Primary)+len(kw.Secondary)+len(kw.Tertiary))
	all = append(all, kw.Primary...)
	all = append(all, kw.Secondary...)
	all = append(all, kw.Tertiary...)
	return all
}

// =============================================================================
// KEYWORD HIT
// =============================================================================

// KeywordHit is one ripgrep match for a single keyword.
type KeywordHit struct {
	FilePath string
	Keyword  string
	Line     int
	Column   int
	Context  string // matched line content
	Count    int    // running match count within this file
}

// CandidateFile is a file ranked by how well it matches a set of keywords.
type CandidateFile struct {
	FilePath       string
	TotalHits      int
	UniqueKeywords int
	RelevanceScore float64
	Tier           int
	Hits           []KeywordHit
	Keywords       []string
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchKeywords runs every keyword through ripgrep concurrently, bounded
// by the retriever's parallelism, reusing cached hits where possible.
func (r *SparseRetriever) SearchKeywords(ctx context.Context, keywords *QuestionKeywords) ([]KeywordHit, error) {
	if keywords == nil || len(keywords.AllKeywords()) == 0 {
		return nil, nil
	}

	terms := keywords.AllKeywords()
	logging.Context("SparseRetriever: running ripgrep for %d terms", len(terms))

	type searchOutcome struct {
		hits []KeywordHit
		err  error
	}
	outcomes := make(chan searchOutcome, len(terms))
	semaphore := make(chan struct{}, r.parallelism)
	var wg sync.WaitGroup

	for _, term := range terms {
		if cached, ok := r.cache.get(term); ok {
			outcomes <- searchOutcome{hits: cached}
			continue
		}

		wg.Add(1)
		go func(term string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			hits, err := r.searchSingleKeyword(ctx, term)
			if err == nil {
				r.cache.set(term, hits)
			}
			outcomes <- searchOutcome{hits: hits, err: err}
		}(term)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var allHits []KeywordHit
	var searchErrs int
	for outcome := range outcomes {
		if outcome.err != nil {
			searchErrs++
			logging.Context("SparseRetriever: term search failed: %v", outcome.err)
			continue
		}
		allHits = append(allHits, outcome.hits...)
	}

	logging.Context("SparseRetriever: %d hits across %d terms (%d failed)", len(allHits), len(terms), searchErrs)
	return allHits, nil
}

// searchSingleKeyword runs ripgrep for a single term.
func (r *SparseRetriever) searchSingleKeyword(ctx context.Context, keyword string) ([]KeywordHit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.searchTimeout)
	defer cancel()

	args := []string{
		"--line-number",
		"--column",
		"--no-heading",
		"--with-filename",
		"--color=never",
		"-i",
		"-w",
	}
	for _, pattern := range r.excludePatterns {
		args = append(args, "-g", "!"+pattern)
	}
	args = append(args, regexp.QuoteMeta(keyword), r.workDir)

	cmd := exec.CommandContext(ctx, "rg", args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil // no matches, not a failure
		}
		return nil, fmt.Errorf("ripgrep failed for %q: %w", keyword, err)
	}

	return parseRipgrepOutput(string(output), keyword), nil
}

// parseRipgrepOutput parses "file:line:column:content" rows into hits.
func parseRipgrepOutput(output, keyword string) []KeywordHit {
	var hits []KeywordHit
	hitCounts := make(map[string]int)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 4)
		if len(parts) < 4 {
			continue
		}

		filePath := parts[0]
		var lineNum, colNum int
		fmt.Sscanf(parts[1], "%d", &lineNum)
		fmt.Sscanf(parts[2], "%d", &colNum)
		hitCounts[filePath]++

		hits = append(hits, KeywordHit{
			FilePath: filePath,
			Keyword:  keyword,
			Line:     lineNum,
			Column:   colNum,
			Context:  strings.TrimSpace(parts[3]),
			Count:    hitCounts[filePath],
		})
	}

	return hits
}

// RankFiles groups hits by file, scores each file by its matched keywords'
// weights, and returns the top `limit` files sorted by score.
func (r *SparseRetriever) RankFiles(hits []KeywordHit, keywords *QuestionKeywords, limit int) []CandidateFile {
	if len(hits) == 0 {
		return nil
	}

	fileHits := make(map[string][]KeywordHit)
	for _, hit := range hits {
		fileHits[hit.FilePath] = append(fileHits[hit.FilePath], hit)
	}

	candidates := make([]CandidateFile, 0, len(fileHits))
	for filePath, fhits := range fileHits {
		keywordSet := make(map[string]bool)
		for _, hit := range fhits {
			keywordSet[hit.Keyword] = true
		}

		var score float64
		keywordList := make([]string, 0, len(keywordSet))
		for kw := range keywordSet {
			keywordList = append(keywordList, kw)
			weight := keywords.Weights[kw]
			if weight == 0 {
				weight = weightDefault
			}
			score += weight
		}
		if len(keywordSet) > 1 {
			score *= 1.0 + float64(len(keywordSet)-1)*0.2
		}

		candidates = append(candidates, CandidateFile{
			FilePath:       filePath,
			TotalHits:      len(fhits),
			UniqueKeywords: len(keywordSet),
			RelevanceScore: score,
			Tier:           r.determineTier(filePath, score, keywords),
			Hits:           fhits,
			Keywords:       keywordList,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// determineTier assigns a context tier (1-4, matching TieredContextBuilder's
// budget tiers) to a ranked file.
func (r *SparseRetriever) determineTier(filePath string, score float64, keywords *QuestionKeywords) int {
	normalized := strings.ReplaceAll(filePath, "\\", "/")
	for _, mentioned := range keywords.MentionedFiles {
		if strings.HasSuffix(normalized, mentioned) || strings.Contains(normalized, mentioned) {
			return 1
		}
	}
	if score >= tierHighScore {
		return 2
	}
	if score >= tierMediumScore {
		return 3
	}
	return 4
}

// FindRelevantFiles extracts keywords from question, searches for them, and
// returns the ranked candidates. This is the method the autonomous
// pre-processor's SearchCode action calls.
func (r *SparseRetriever) FindRelevantFiles(ctx context.Context, question string, limit int) ([]CandidateFile, error) {
	keywords := ExtractQuestionKeywords(question)
	logging.Context("SparseRetriever: extracted %d primary, %d secondary, %d tertiary, %d files",
		len(keywords.Primary), len(keywords.Secondary), len(keywords.Tertiary), len(keywords.MentionedFiles))

	hits, err := r.SearchKeywords(ctx, keywords)
	if err != nil {
		return nil, err
	}

	if limit == 0 {
		limit = r.maxResults
	}
	return r.RankFiles(hits, keywords, limit), nil
}

// =============================================================================
// CACHE
// =============================================================================

// keywordHitCache is a fixed-size, TTL-bounded LRU cache of per-keyword
// ripgrep results, keyed on the search term. Eviction is O(1): the
// container/list entry closest to the back is always the least recently
// touched.
type keywordHitCache struct {
	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	key       string
	hits      []KeywordHit
	storedAt  time.Time
}

func newKeywordHitCache(maxSize int, ttl time.Duration) *keywordHitCache {
	return &keywordHitCache{
		order:   list.New(),
		entries: make(map[string]*list.Element),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *keywordHitCache) get(keyword string) ([]KeywordHit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[keyword]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Since(entry.storedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, keyword)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return entry.hits, true
}

func (c *keywordHitCache) set(keyword string, hits []KeywordHit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[keyword]; ok {
		elem.Value.(*cacheEntry).hits = hits
		elem.Value.(*cacheEntry).storedAt = time.Now()
		c.order.MoveToFront(elem)
		return
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		back := c.order.Back()
		if back != nil {
			delete(c.entries, back.Value.(*cacheEntry).key)
			c.order.Remove(back)
		}
	}

	elem := c.order.PushFront(&cacheEntry{key: keyword, hits: hits, storedAt: time.Now()})
	c.entries[keyword] = elem
}

func (c *keywordHitCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// =============================================================================
// HELPERS
// =============================================================================

var commonWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true,
	"to": true, "of": true, "in": true, "for": true, "on": true,
	"with": true, "at": true, "by": true, "from": true, "as": true,
	"into": true, "through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "up": true, "down": true, "out": true,
	"and": true, "but": true, "or": true, "nor": true, "so": true, "yet": true,
	"if": true, "then": true, "else": true, "when": true, "where": true,
	"why": true, "how": true, "all": true, "each": true, "every": true,
	"both": true, "few": true, "more": true, "most": true, "other": true,
	"some": true, "such": true, "no": true, "not": true, "only": true,
	"own": true, "same": true, "than": true, "too": true, "very": true,
	"can": true, "just": true, "now": true, "new": true, "old": true,
	"get": true, "set": true, "make": true, "see": true, "know": true,
	"take": true, "come": true, "think": true, "look": true, "want": true,
	"give": true, "use": true, "find": true, "tell": true, "ask": true,
	"work": true, "seem": true, "feel": true, "try": true, "leave": true,
	"call": true, "good": true, "first": true, "last": true, "long": true,
	"great": true, "little": true, "right": true, "big": true, "high": true,
	"different": true, "small": true, "large": true, "next": true, "early": true,
	"young": true, "important": true, "public": true, "bad": true, "able": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "i": true, "you": true, "he": true, "she": true,
	"we": true, "they": true, "my": true, "your": true, "his": true, "her": true,
	"our": true, "their": true, "me": true, "him": true, "us": true, "them": true,
	// language keywords that show up in almost every file and carry no
	// search signal on their own
	"def": true, "class": true, "import": true, "return": true, "func": true,
	"package": true, "self": true, "none": true, "true": true, "false": true,
	"nil": true, "var": true, "const": true, "struct": true, "interface": true,
	// generic code vocabulary
	"test": true, "tests": true, "data": true, "file": true, "value": true,
	"name": true, "type": true, "error": true, "result": true,
}

// isCommonWord reports whether word is too generic to be worth a ripgrep
// search term on its own.
func isCommonWord(word string) bool {
	if len(word) <= 2 {
		return true
	}
	if len(word) == 1 && unicode.IsUpper(rune(word[0])) {
		return true
	}
	return commonWords[strings.ToLower(word)]
}

// uniqueStrings removes duplicates from ss, preserving first-seen order.
func uniqueStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	result := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}
