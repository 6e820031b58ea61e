package preprocessor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecurityPolicy bounds what ReadFiles/CreateFile may touch (spec
// §4.9: "File reads honor a security policy: allow-list roots, max size,
// deny binary").
type SecurityPolicy struct {
	AllowedRoots []string
	MaxFileBytes int64
}

// DefaultSecurityPolicy restricts reads to repoRoot with a 1MB cap.
func DefaultSecurityPolicy(repoRoot string) SecurityPolicy {
	return SecurityPolicy{
		AllowedRoots: []string{repoRoot},
		MaxFileBytes: 1 << 20,
	}
}

func (p SecurityPolicy) allowed(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range p.AllowedRoots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ReadFile enforces the policy's allow-list, size cap, and binary-content
// deny before returning a file's contents.
func (p SecurityPolicy) ReadFile(path string) (string, error) {
	if !p.allowed(path) {
		return "", fmt.Errorf("path %q is outside the allowed roots", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("path %q is a directory", path)
	}
	if p.MaxFileBytes > 0 && info.Size() > p.MaxFileBytes {
		return "", fmt.Errorf("path %q exceeds the %d byte limit", path, p.MaxFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if isBinary(data) {
		return "", fmt.Errorf("path %q looks binary, refusing to read", path)
	}
	return string(data), nil
}

// WriteFile enforces the same allow-list before creating a file, refusing
// to overwrite an existing one.
func (p SecurityPolicy) WriteFile(path, content string) error {
	if !p.allowed(path) {
		return fmt.Errorf("path %q is outside the allowed roots", path)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("path %q already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// isBinary applies the same heuristic git uses: a NUL byte in the first
// 8000 bytes marks the content as binary.
func isBinary(data []byte) bool {
	limit := len(data)
	if limit > 8000 {
		limit = 8000
	}
	return bytes.IndexByte(data[:limit], 0) != -1
}
