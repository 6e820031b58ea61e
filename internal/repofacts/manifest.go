package repofacts

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"consensuscore/internal/logging"
)

// manifest is the subset of a project manifest (go.mod, package.json,
// Cargo.toml) that RepositoryFacts cares about.
type manifest struct {
	name            string
	version         string
	dependencyCount int
}

var (
	goModuleRegex  = regexp.MustCompile(`^module\s+(\S+)`)
	goRequireRegex = regexp.MustCompile(`^\s*[^\s/(]\S*\s+v\d`)
	cargoNameRegex = regexp.MustCompile(`^\s*name\s*=\s*"([^"]+)"`)
	cargoVerRegex  = regexp.MustCompile(`^\s*version\s*=\s*"([^"]+)"`)
	tomlSectionRx  = regexp.MustCompile(`^\s*\[([\w.\-]+)\]`)
)

// readManifest checks root for, in order, go.mod, package.json and
// Cargo.toml and parses whichever is found first. A repo with none of the
// three yields an empty manifest rather than an error: measurement should
// degrade, not fail, when the project type is unrecognized.
func readManifest(root string) manifest {
	if m, ok := readGoMod(filepath.Join(root, "go.mod")); ok {
		return m
	}
	if m, ok := readPackageJSON(filepath.Join(root, "package.json")); ok {
		return m
	}
	if m, ok := readCargoToml(filepath.Join(root, "Cargo.toml")); ok {
		return m
	}
	logging.RepoFacts("no recognized manifest (go.mod/package.json/Cargo.toml) under %s", root)
	return manifest{}
}

func readGoMod(path string) (manifest, bool) {
	f, err := os.Open(path)
	if err != nil {
		return manifest{}, false
	}
	defer f.Close()

	var m manifest
	inRequireBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if match := goModuleRegex.FindStringSubmatch(line); match != nil {
			m.name = match[1]
			continue
		}
		if trimmed == "require (" {
			inRequireBlock = true
			continue
		}
		if inRequireBlock {
			if trimmed == ")" {
				inRequireBlock = false
				continue
			}
			if goRequireRegex.MatchString(trimmed) {
				m.dependencyCount++
			}
			continue
		}
		if strings.HasPrefix(trimmed, "require ") && goRequireRegex.MatchString(strings.TrimPrefix(trimmed, "require ")) {
			m.dependencyCount++
		}
	}
	logging.RepoFactsDebug("parsed go.mod: name=%s dependencies=%d", m.name, m.dependencyCount)
	return m, true
}

func readPackageJSON(path string) (manifest, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, false
	}
	var doc struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.RepoFactsWarn("package.json present but unparseable: %v", err)
		return manifest{}, true
	}
	m := manifest{
		name:            doc.Name,
		version:         doc.Version,
		dependencyCount: len(doc.Dependencies) + len(doc.DevDependencies),
	}
	logging.RepoFactsDebug("parsed package.json: name=%s version=%s dependencies=%d", m.name, m.version, m.dependencyCount)
	return m, true
}

func readCargoToml(path string) (manifest, bool) {
	f, err := os.Open(path)
	if err != nil {
		return manifest{}, false
	}
	defer f.Close()

	var m manifest
	section := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if match := tomlSectionRx.FindStringSubmatch(line); match != nil {
			section = match[1]
			continue
		}
		switch section {
		case "package":
			if match := cargoNameRegex.FindStringSubmatch(line); match != nil {
				m.name = match[1]
			}
			if match := cargoVerRegex.FindStringSubmatch(line); match != nil {
				m.version = match[1]
			}
		case "dependencies", "dev-dependencies":
			if strings.TrimSpace(line) != "" && !strings.HasPrefix(strings.TrimSpace(line), "#") {
				m.dependencyCount++
			}
		}
	}
	logging.RepoFactsDebug("parsed Cargo.toml: name=%s version=%s dependencies=%d", m.name, m.version, m.dependencyCount)
	return m, true
}
