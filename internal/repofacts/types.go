// Package repofacts implements the repository fact extractor (C5): it
// measures ground truth about a project — name, version, dependency count,
// file/line counts — so the fact checker (C6) has something real to check
// model claims against.
package repofacts

import "time"

// Facts is a measured snapshot of a repository. It is produced only by
// measurement, never by a model.
type Facts struct {
	Name             string
	Version          string
	DependencyCount  int
	ModuleCount      int
	TotalFiles       int
	LinesOfCode      int
	IsEnterprise     bool
	VerifiedAt       time.Time
	RootPath         string
	FileExtensions   map[string]int
	MajorDirectories []string
}
