package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// maxFileSize skips files unlikely to be hand-written source.
const maxFileSize = 1 << 20 // 1 MiB

var indexableExtensions = map[string]bool{
	".go": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".py": true, ".rb": true, ".rs": true, ".java": true, ".kt": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true,
	".cs": true, ".php": true, ".swift": true, ".scala": true, ".zig": true,
	".sh": true, ".sql": true, ".proto": true, ".yaml": true, ".yml": true,
	".toml": true, ".json": true, ".md": true, ".txt": true,
}

// FileInfo is one scanned file with its content and content hash.
type FileInfo struct {
	Path    string // absolute
	Hash    string // sha256 of content
	ModTime int64  // unix seconds
	Content string
}

// Scanner walks a project root and yields indexable files, honoring
// .gitignore rules and the configured ignore directories.
type Scanner struct {
	root    string
	matcher *IgnoreMatcher
}

func NewScanner(root string, extraIgnore []string) (*Scanner, error) {
	matcher, err := NewIgnoreMatcher(root, extraIgnore)
	if err != nil {
		return nil, err
	}
	return &Scanner{root: root, matcher: matcher}, nil
}

// Scan returns all indexable files under the root plus the count of files
// skipped by filters.
func (s *Scanner) Scan() ([]FileInfo, int, error) {
	var files []FileInfo
	skipped := 0

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil || relPath == "." {
			return nil
		}

		base := filepath.Base(path)
		if info.IsDir() {
			if strings.HasPrefix(base, ".") || s.matcher.ShouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(base, ".") || s.matcher.ShouldIgnore(relPath) {
			skipped++
			return nil
		}
		if !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			skipped++
			return nil
		}
		if info.Size() > maxFileSize {
			skipped++
			return nil
		}

		file, err := s.ReadFile(path)
		if err != nil {
			skipped++
			return nil
		}
		file.ModTime = info.ModTime().Unix()
		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return files, skipped, nil
}

// Count walks the root and counts indexable files without reading their
// contents. Used for cheap freshness estimates.
func (s *Scanner) Count() (int, error) {
	n := 0
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		relPath, err := filepath.Rel(s.root, path)
		if err != nil || relPath == "." {
			return nil
		}

		base := filepath.Base(path)
		if info.IsDir() {
			if strings.HasPrefix(base, ".") || s.matcher.ShouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") || s.matcher.ShouldIgnore(relPath) {
			return nil
		}
		if !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if info.Size() > maxFileSize {
			return nil
		}
		n++
		return nil
	})
	return n, err
}

// ReadFile loads one file into a FileInfo without applying filters, for
// single-file reindex paths where the caller already decided to index it.
func (s *Scanner) ReadFile(path string) (FileInfo, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileInfo{}, err
	}

	sum := sha256.Sum256(content)
	fi := FileInfo{
		Path:    path,
		Hash:    hex.EncodeToString(sum[:]),
		Content: string(content),
	}
	if info, err := os.Stat(path); err == nil {
		fi.ModTime = info.ModTime().Unix()
	}
	return fi, nil
}

// Indexable reports whether a path passes the extension and ignore filters.
func (s *Scanner) Indexable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	relPath, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return !s.matcher.ShouldIgnore(relPath)
}
