package ipc

import (
	"context"
	"log"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yoanbernabeu/indexd/indexer"
)

const (
	defaultSearchLimit = 10
	snippetLines       = 5
)

func (s *Server) handleSearch(ctx context.Context, req *Request) *Response {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	s.state.EmbMu.Lock()
	queryVec, err := s.state.Embedder.Embed(ctx, req.Query)
	s.state.EmbMu.Unlock()
	if err != nil {
		return errorResponse("failed to embed query: %v", err)
	}

	s.state.StoreMu.Lock()
	hits, err := s.state.Store.Search(ctx, queryVec, limit)
	s.state.StoreMu.Unlock()
	if err != nil {
		return errorResponse("search failed: %v", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		snippet := firstLines(hit.Chunk.Content, snippetLines)
		results = append(results, SearchResult{
			Score:         hit.Score,
			Path:          hit.Chunk.FilePath,
			Line:          hit.Chunk.StartLine,
			Snippet:       snippet,
			HeaderContext: headerContext(hit.Chunk.Content),
			Language:      languageForPath(hit.Chunk.FilePath),
			Links:         markdownLinks(snippet),
		})
	}
	return &Response{Type: ResponseSearchResults, Results: results}
}

func (s *Server) handleStatus(ctx context.Context) *Response {
	s.state.StoreMu.Lock()
	stats, err := s.state.Store.Stats(ctx)
	s.state.StoreMu.Unlock()
	if err != nil {
		return errorResponse("failed to read index stats: %v", err)
	}

	s.state.WatchMu.Lock()
	roots := s.state.Watcher.WatchedPaths()
	s.state.WatchMu.Unlock()

	status := &Status{
		UptimeSecs:    int64(time.Since(s.state.StartTime).Seconds()),
		DocumentCount: stats.TotalFiles,
		StorageBytes:  stats.StorageBytes,
		ThrottleState: s.state.Throttler.State(),
		Projects:      make([]ProjectStatus, 0, len(roots)),
	}

	var indexedTotal, seenTotal int
	for _, root := range roots {
		s.state.StoreMu.Lock()
		pstats, err := s.state.Store.ProjectStats(ctx, root+string(filepath.Separator))
		s.state.StoreMu.Unlock()
		if err != nil {
			log.Printf("Failed to read stats for %s: %v", root, err)
			continue
		}

		seen := countIndexable(root, s.state.Config.Ignore)
		quality := projectQuality(pstats.FileCount, seen)
		indexedTotal += pstats.FileCount
		seenTotal += seen

		lastIndexedAgo := int64(-1)
		if !pstats.LastIndexed.IsZero() {
			lastIndexedAgo = int64(time.Since(pstats.LastIndexed).Seconds())
		}
		status.Projects = append(status.Projects, ProjectStatus{
			Path:               root,
			FileCount:          pstats.FileCount,
			LastIndexedSecsAgo: lastIndexedAgo,
			Quality:            quality,
		})
	}
	status.IndexQuality = projectQuality(indexedTotal, seenTotal)

	return &Response{Type: ResponseStatus, Status: status}
}

func (s *Server) handleWatch(req *Request) *Response {
	s.state.WatchMu.Lock()
	err := s.state.Watcher.Watch(req.Path)
	s.state.WatchMu.Unlock()
	if err != nil {
		return errorResponse("failed to watch %s: %v", req.Path, err)
	}

	s.state.RegMu.Lock()
	s.state.Registry.Add(req.Path)
	s.state.Registry.SetWatching(req.Path, true)
	s.state.RegMu.Unlock()

	return okResponse()
}

func (s *Server) handleUnwatch(req *Request) *Response {
	s.state.WatchMu.Lock()
	err := s.state.Watcher.Unwatch(req.Path)
	s.state.WatchMu.Unlock()
	if err != nil {
		return errorResponse("failed to unwatch %s: %v", req.Path, err)
	}

	s.state.RegMu.Lock()
	s.state.Registry.SetWatching(req.Path, false)
	s.state.RegMu.Unlock()

	return okResponse()
}

func (s *Server) handleForceIndex(ctx context.Context, req *Request) *Response {
	s.state.RegMu.Lock()
	s.state.Registry.Add(req.Path)
	s.state.Registry.Touch(req.Path)
	s.state.RegMu.Unlock()

	// Indexing embeds over the network; the store synchronizes internally,
	// so StoreMu is not held and concurrent searches proceed.
	stats, err := s.state.Indexer.IndexDirectory(ctx, req.Path)
	if err != nil {
		return errorResponse("failed to index %s: %v", req.Path, err)
	}

	log.Printf("Indexed %s: %d files, %d chunks in %s",
		req.Path, stats.FilesIndexed, stats.ChunksCreated, stats.Duration.Round(time.Millisecond))
	return okResponse()
}

func (s *Server) handleDetectRoot(req *Request) *Response {
	s.state.RegMu.Lock()
	root, found := s.state.Registry.DetectRoot(req.Path)
	s.state.RegMu.Unlock()

	resp := &Response{Type: ResponseProjectRoot}
	if found {
		resp.Root = &root
	}
	return resp
}

func (s *Server) handleDiscoverProjects() *Response {
	s.state.RegMu.Lock()
	added := s.state.Registry.RunDiscovery()
	s.state.RegMu.Unlock()

	if added > 0 {
		log.Printf("Discovery registered %d new projects", added)
	}
	return okResponse()
}

func (s *Server) handleListProjects() *Response {
	s.state.RegMu.Lock()
	records := s.state.Registry.All()
	s.state.RegMu.Unlock()

	projects := make([]ProjectInfo, 0, len(records))
	for _, rec := range records {
		projects = append(projects, ProjectInfo{
			Path:                rec.Path,
			ProjectType:         rec.Type,
			IsWatching:          rec.Watching,
			LastAccessedSecsAgo: int64(time.Since(rec.LastAccessed).Seconds()),
		})
	}
	return &Response{Type: ResponseProjects, Projects: projects}
}

// projectQuality is a crude freshness estimate: the fraction of indexable
// files that are actually indexed, clamped to 1.
func projectQuality(indexed, seen int) float64 {
	if seen < 1 {
		seen = 1
	}
	q := float64(indexed) / float64(seen)
	if q > 1 {
		return 1
	}
	return q
}

func countIndexable(root string, ignore []string) int {
	scanner, err := indexer.NewScanner(root, ignore)
	if err != nil {
		return 0
	}
	n, err := scanner.Count()
	if err != nil {
		return 0
	}
	return n
}

func firstLines(content string, n int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// headerContext returns the chunk's leading declaration-looking line, or
// its first non-blank line.
func headerContext(content string) string {
	var first string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if first == "" {
			first = trimmed
		}
		if declarationRe.MatchString(trimmed) {
			return trimmed
		}
	}
	return first
}

var (
	declarationRe    = regexp.MustCompile(`^(func|type|class|def|fn|impl|interface|struct|module|package|public|private|protected|static|const|var)\b`)
	markdownLinkRe   = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)
	languageByExtMap = map[string]string{
		".go": "go", ".js": "javascript", ".ts": "typescript",
		".jsx": "javascript", ".tsx": "typescript", ".py": "python",
		".rb": "ruby", ".rs": "rust", ".java": "java", ".kt": "kotlin",
		".c": "c", ".h": "c", ".cpp": "cpp", ".hpp": "cpp", ".cc": "cpp",
		".cs": "csharp", ".php": "php", ".swift": "swift", ".scala": "scala",
		".zig": "zig", ".sh": "shell", ".sql": "sql", ".proto": "protobuf",
		".yaml": "yaml", ".yml": "yaml", ".toml": "toml", ".json": "json",
		".md": "markdown", ".txt": "text",
	}
)

func languageForPath(path string) string {
	return languageByExtMap[strings.ToLower(filepath.Ext(path))]
}

func markdownLinks(snippet string) []Link {
	matches := markdownLinkRe.FindAllStringSubmatch(snippet, -1)
	if len(matches) == 0 {
		return nil
	}
	links := make([]Link, 0, len(matches))
	for _, m := range matches {
		target := m[2]
		u, err := url.Parse(target)
		links = append(links, Link{
			Text:       m[1],
			Target:     target,
			IsInternal: err != nil || u.Scheme == "",
		})
	}
	return links
}
