package indexer

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// nestedMatcher is one compiled .gitignore with the directory it applies
// from, relative to the project root (empty for the root file).
type nestedMatcher struct {
	matcher *ignore.GitIgnore
	baseDir string
}

// IgnoreMatcher combines the project's .gitignore files (including nested
// ones) with the daemon's configured ignore directories.
type IgnoreMatcher struct {
	projectRoot    string
	nestedMatchers []nestedMatcher
	extraDirs      []string
}

func NewIgnoreMatcher(projectRoot string, extraIgnore []string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{
		projectRoot: projectRoot,
		extraDirs:   extraIgnore,
	}

	err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}

		if info.IsDir() {
			base := filepath.Base(path)
			for _, dir := range extraIgnore {
				if base == dir {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if filepath.Base(path) != ".gitignore" {
			return nil
		}

		gi, err := ignore.CompileIgnoreFile(path)
		if err != nil {
			return nil // Skip invalid .gitignore files
		}

		relPath, err := filepath.Rel(projectRoot, filepath.Dir(path))
		if err != nil {
			return nil
		}
		if relPath == "." {
			relPath = ""
		}

		m.nestedMatchers = append(m.nestedMatchers, nestedMatcher{
			matcher: gi,
			baseDir: relPath,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(extraIgnore) > 0 {
		m.nestedMatchers = append(m.nestedMatchers, nestedMatcher{
			matcher: ignore.CompileIgnoreLines(extraIgnore...),
			baseDir: "",
		})
	}

	return m, nil
}

// ShouldIgnore reports whether the project-relative path is excluded by
// the ignore rules.
func (m *IgnoreMatcher) ShouldIgnore(path string) bool {
	normalized := filepath.ToSlash(path)

	base := filepath.Base(normalized)
	for _, dir := range m.extraDirs {
		if base == dir {
			return true
		}
	}

	for _, nm := range m.nestedMatchers {
		relPath := matcherRelPath(normalized, nm.baseDir)
		if relPath == "" && nm.baseDir != "" {
			continue
		}
		if nm.matcher.MatchesPath(relPath) || nm.matcher.MatchesPath(relPath+"/") {
			return true
		}
	}
	return false
}

// matcherRelPath rebases a path onto a matcher's base directory, returning
// "" when the path lies outside the matcher's scope.
func matcherRelPath(normalizedPath, baseDir string) string {
	if baseDir == "" {
		return normalizedPath
	}
	normalizedBase := filepath.ToSlash(baseDir)
	if normalizedPath == normalizedBase {
		return "."
	}
	if strings.HasPrefix(normalizedPath, normalizedBase+"/") {
		return strings.TrimPrefix(normalizedPath, normalizedBase+"/")
	}
	return ""
}
