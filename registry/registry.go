// Package registry tracks discovered and watched project roots and supports
// least-recently-used eviction when the index grows past its storage cap.
//
// The Registry is not safe for concurrent use; the daemon guards it with its
// own lock so that lock ordering against the document store stays explicit.
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ProjectRecord describes one known project root.
type ProjectRecord struct {
	Path         string
	Type         string
	Watching     bool
	LastAccessed time.Time
}

// markerTypes maps project marker files to a project type, checked in order.
var markerTypes = []struct {
	marker string
	ptype  string
}{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"package.json", "node"},
	{"pyproject.toml", "python"},
	{"setup.py", "python"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{".git", "git"},
}

type Registry struct {
	records map[string]*ProjectRecord
	// roots scanned by RunDiscovery.
	discoveryRoots []string
	maxDepth       int
	now            func() time.Time
}

func New(discoveryRoots []string, maxDepth int) *Registry {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Registry{
		records:        make(map[string]*ProjectRecord),
		discoveryRoots: discoveryRoots,
		maxDepth:       maxDepth,
		now:            time.Now,
	}
}

// Add registers a project root if it is not already known and returns its
// record. Adding an existing project only refreshes its access time.
func (r *Registry) Add(path string) *ProjectRecord {
	path = filepath.Clean(path)
	if rec, ok := r.records[path]; ok {
		rec.LastAccessed = r.now()
		return rec
	}
	rec := &ProjectRecord{
		Path:         path,
		Type:         detectType(path),
		LastAccessed: r.now(),
	}
	r.records[path] = rec
	return rec
}

// Get returns the record for path, or nil.
func (r *Registry) Get(path string) *ProjectRecord {
	return r.records[filepath.Clean(path)]
}

// Touch refreshes the access time of a known project. Unknown paths are
// ignored.
func (r *Registry) Touch(path string) {
	if rec, ok := r.records[filepath.Clean(path)]; ok {
		rec.LastAccessed = r.now()
	}
}

// SetWatching marks a project as watched or unwatched, registering it first
// if needed.
func (r *Registry) SetWatching(path string, watching bool) {
	rec := r.Add(path)
	rec.Watching = watching
}

// Remove drops a project from the registry.
func (r *Registry) Remove(path string) {
	delete(r.records, filepath.Clean(path))
}

// All returns every known project, most recently accessed first.
func (r *Registry) All() []ProjectRecord {
	out := make([]ProjectRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccessed.After(out[j].LastAccessed)
	})
	return out
}

// Count returns the number of known projects.
func (r *Registry) Count() int {
	return len(r.records)
}

// EvictLRU removes and returns the path of the least-recently-accessed
// project. Unwatched projects are evicted before watched ones. Returns
// ("", false) when the registry is empty.
func (r *Registry) EvictLRU() (string, bool) {
	victim := r.oldest(false)
	if victim == "" {
		victim = r.oldest(true)
	}
	if victim == "" {
		return "", false
	}
	delete(r.records, victim)
	return victim, true
}

func (r *Registry) oldest(includeWatched bool) string {
	var victim string
	var oldest time.Time
	for path, rec := range r.records {
		if rec.Watching && !includeWatched {
			continue
		}
		if victim == "" || rec.LastAccessed.Before(oldest) {
			victim = path
			oldest = rec.LastAccessed
		}
	}
	return victim
}

// RunDiscovery scans the configured discovery roots for project markers and
// registers any new projects found. Returns the number of newly registered
// projects.
func (r *Registry) RunDiscovery() int {
	added := 0
	for _, root := range r.discoveryRoots {
		added += r.discoverUnder(root, 0)
	}
	return added
}

func (r *Registry) discoverUnder(dir string, depth int) int {
	if depth > r.maxDepth {
		return 0
	}

	added := 0
	if detectType(dir) != "" {
		if _, known := r.records[filepath.Clean(dir)]; !known {
			r.Add(dir)
			added++
		}
		// A project root is a leaf for discovery purposes; nested projects
		// are indexed under their parent.
		return added
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return added
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		added += r.discoverUnder(filepath.Join(dir, entry.Name()), depth+1)
	}
	return added
}

// DetectRoot walks up from path to the nearest directory carrying a project
// marker, registering it on success. Returns ("", false) when no root is
// found.
func (r *Registry) DetectRoot(path string) (string, bool) {
	dir := filepath.Clean(path)
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		if detectType(dir) != "" {
			r.Add(dir)
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// detectType returns the project type for a directory, or "" if it carries
// no recognized marker.
func detectType(dir string) string {
	for _, mt := range markerTypes {
		if _, err := os.Stat(filepath.Join(dir, mt.marker)); err == nil {
			return mt.ptype
		}
	}
	return ""
}
