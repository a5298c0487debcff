// Package instructions holds the stage prompts and loads the optional
// research guidance files (RESEARCH.md) users keep next to their projects.
package instructions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GuidanceFileNames lists the guidance file names in priority order.
// At each directory level, the first file found wins.
var GuidanceFileNames = []string{"RESEARCH.override.md", "RESEARCH.md"}

// MaxGuidanceBytes is the maximum total size of concatenated guidance.
const MaxGuidanceBytes = 64 * 1024

// FindGitRoot walks up from dir looking for a .git directory.
// Returns the directory containing .git, or empty string if not found.
func FindGitRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path: %w", err)
	}

	for {
		info, err := os.Stat(filepath.Join(dir, ".git"))
		// .git is a file in worktrees
		if err == nil && (info.IsDir() || info.Mode().IsRegular()) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// DiscoverGuidance loads the guidance that applies to cwd: every guidance
// file from the enclosing git root (or cwd itself outside a repository)
// down to cwd.
func DiscoverGuidance(cwd string) (string, error) {
	root, err := FindGitRoot(cwd)
	if err != nil {
		return "", err
	}
	if root == "" {
		root = cwd
	}
	return LoadGuidance(root, cwd)
}

// LoadGuidance discovers guidance files from rootDir down to targetDir.
//
// Files closer to rootDir come first, each under a "--- path ---" separator.
// If RESEARCH.override.md exists at a level, RESEARCH.md at that level is
// ignored. Loading stops before the total would exceed MaxGuidanceBytes.
//
// Returns empty string if no files found (not an error).
func LoadGuidance(rootDir, targetDir string) (string, error) {
	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve rootDir: %w", err)
	}
	targetDir, err = filepath.Abs(targetDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve targetDir: %w", err)
	}

	dirs, err := pathSegments(rootDir, targetDir)
	if err != nil {
		return "", err
	}

	var parts []string
	total := 0
	for _, dir := range dirs {
		content, filename, err := findGuidanceFile(dir)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		relPath, _ := filepath.Rel(rootDir, filepath.Join(dir, filename))
		entry := fmt.Sprintf("--- %s ---\n%s", relPath, content)
		if total+len(entry) > MaxGuidanceBytes {
			break
		}
		parts = append(parts, entry)
		total += len(entry)
	}
	return strings.Join(parts, "\n\n"), nil
}

// pathSegments returns all directories from rootDir to targetDir inclusive.
// rootDir must be a prefix of targetDir.
func pathSegments(rootDir, targetDir string) ([]string, error) {
	rootDir = filepath.Clean(rootDir)
	targetDir = filepath.Clean(targetDir)

	rel, err := filepath.Rel(rootDir, targetDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("targetDir %q is not under rootDir %q", targetDir, rootDir)
	}

	dirs := []string{rootDir}
	if rel == "." {
		return dirs, nil
	}
	current := rootDir
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, seg)
		dirs = append(dirs, current)
	}
	return dirs, nil
}

// findGuidanceFile checks GuidanceFileNames in priority order at dir.
// Returns file content and filename, or empty strings if nothing found.
func findGuidanceFile(dir string) (string, string, error) {
	for _, name := range GuidanceFileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", "", fmt.Errorf("error reading %s: %w", path, err)
		}
		return string(data), name, nil
	}
	return "", "", nil
}
