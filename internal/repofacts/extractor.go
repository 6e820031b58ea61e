package repofacts

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"consensuscore/internal/config"
	"consensuscore/internal/logging"
)

// sourceExtensions are counted toward LinesOfCode; everything else still
// counts toward TotalFiles and FileExtensions but not line counts — a
// distinction between "indexed" source files and binary/asset files.
var sourceExtensions = map[string]bool{
	".go": true, ".rs": true, ".py": true, ".js": true, ".jsx": true,
	".ts": true, ".tsx": true, ".java": true, ".c": true, ".h": true,
	".cpp": true, ".hpp": true, ".rb": true, ".sh": true, ".yaml": true,
	".yml": true, ".toml": true, ".json": true, ".md": true, ".sql": true,
}

// Extractor is C5: it walks a repository root once and produces a Facts
// snapshot. It is stateless aside from its configured thresholds, so the
// same Extractor can be reused across repeated refreshes.
type Extractor struct {
	cfg     config.RepoFactsConfig
	skipSet map[string]bool
}

// NewExtractor builds an Extractor from cfg.
func NewExtractor(cfg config.RepoFactsConfig) *Extractor {
	skip := make(map[string]bool, len(cfg.SkipDirs))
	for _, d := range cfg.SkipDirs {
		skip[d] = true
	}
	return &Extractor{cfg: cfg, skipSet: skip}
}

// Extract walks root and produces a fresh Facts snapshot. A repository-open
// or explicit-refresh call should replace the prior snapshot atomically
// with this result.
func (e *Extractor) Extract(ctx context.Context, root string) (*Facts, error) {
	timer := logging.StartTimer(logging.CategoryRepoFacts, "Extract")
	defer timer.Stop()
	verifiedAt := time.Now()

	m := readManifest(root)

	facts := &Facts{
		Name:            m.name,
		Version:         m.version,
		DependencyCount: m.dependencyCount,
		RootPath:        root,
		FileExtensions:  make(map[string]int),
	}

	moduleDirs := make(map[string]bool)
	majorDirSeen := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			logging.RepoFactsWarn("walk error at %s: %v", path, err)
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && (e.skipSet[name] || (strings.HasPrefix(name, ".") && name != ".")) {
				logging.RepoFactsDebug("skipping directory: %s", path)
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(name)
		facts.TotalFiles++
		facts.FileExtensions[ext]++

		rel, relErr := filepath.Rel(root, path)
		if relErr == nil {
			if parts := strings.SplitN(rel, string(filepath.Separator), 2); len(parts) == 2 && !majorDirSeen[parts[0]] {
				majorDirSeen[parts[0]] = true
				facts.MajorDirectories = append(facts.MajorDirectories, parts[0])
			}
		}

		dir := filepath.Dir(path)
		if sourceExtensions[ext] {
			moduleDirs[dir] = true
			if lines, lerr := countLines(path); lerr == nil {
				facts.LinesOfCode += lines
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	facts.ModuleCount = len(moduleDirs)
	facts.IsEnterprise = facts.ModuleCount > e.cfg.EnterpriseModuleThreshold || facts.LinesOfCode > e.cfg.EnterpriseLOCThreshold
	facts.VerifiedAt = verifiedAt

	logging.RepoFacts("extracted facts for %s: files=%d loc=%d modules=%d deps=%d enterprise=%v",
		root, facts.TotalFiles, facts.LinesOfCode, facts.ModuleCount, facts.DependencyCount, facts.IsEnterprise)
	return facts, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines++
	}
	return lines, scanner.Err()
}
