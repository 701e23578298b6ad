// Package ipc implements the daemon's wire protocol: one JSON object per
// line over a unix-domain socket, one request and one response per
// connection.
package ipc

import (
	"encoding/json"
	"fmt"
)

// RequestType is the closed set of operations a client can ask for.
type RequestType string

const (
	RequestSearch           RequestType = "search"
	RequestStatus           RequestType = "status"
	RequestWatch            RequestType = "watch"
	RequestUnwatch          RequestType = "unwatch"
	RequestForceIndex       RequestType = "force_index"
	RequestDetectRoot       RequestType = "detect_root"
	RequestDiscoverProjects RequestType = "discover_projects"
	RequestListProjects     RequestType = "list_projects"
	RequestShutdown         RequestType = "shutdown"
)

var validRequestTypes = map[RequestType]bool{
	RequestSearch:           true,
	RequestStatus:           true,
	RequestWatch:            true,
	RequestUnwatch:          true,
	RequestForceIndex:       true,
	RequestDetectRoot:       true,
	RequestDiscoverProjects: true,
	RequestListProjects:     true,
	RequestShutdown:         true,
}

// Request is a single client request. Query is used by search; Path by
// watch, unwatch, force_index, and detect_root; Limit by search.
type Request struct {
	Type  RequestType `json:"type"`
	Query string      `json:"query,omitempty"`
	Path  string      `json:"path,omitempty"`
	Limit int         `json:"limit,omitempty"`
}

// ParseRequest decodes one wire line into the closed request set. The wire
// format is decoded exactly once, here; everything past this point works
// with typed requests.
func ParseRequest(line []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}
	if !validRequestTypes[req.Type] {
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}
	switch req.Type {
	case RequestSearch:
		if req.Query == "" {
			return nil, fmt.Errorf("search requires a query")
		}
	case RequestWatch, RequestUnwatch, RequestForceIndex, RequestDetectRoot:
		if req.Path == "" {
			return nil, fmt.Errorf("%s requires a path", req.Type)
		}
	}
	return &req, nil
}

// Response types.
const (
	ResponseOK            = "ok"
	ResponseError         = "error"
	ResponseSearchResults = "search_results"
	ResponseStatus        = "status"
	ResponseProjectRoot   = "project_root"
	ResponseProjects      = "projects"
)

// Link is one markdown link found in a result snippet. IsInternal marks
// targets without a URL scheme (relative paths within the project).
type Link struct {
	Text       string `json:"text"`
	Target     string `json:"target"`
	IsInternal bool   `json:"is_internal"`
}

// SearchResult is one search hit as sent to clients.
type SearchResult struct {
	Score         float32 `json:"score"`
	Path          string  `json:"path"`
	Line          int     `json:"line"`
	Snippet       string  `json:"snippet"`
	HeaderContext string  `json:"header_context,omitempty"`
	Language      string  `json:"language,omitempty"`
	Links         []Link  `json:"links,omitempty"`
}

// ProjectStatus is the per-project slice of a status response.
type ProjectStatus struct {
	Path               string  `json:"path"`
	FileCount          int     `json:"file_count"`
	LastIndexedSecsAgo int64   `json:"last_indexed_secs_ago"`
	Quality            float64 `json:"quality"`
}

// Status describes daemon health and index freshness.
type Status struct {
	UptimeSecs    int64           `json:"uptime_secs"`
	DocumentCount int             `json:"document_count"`
	StorageBytes  int64           `json:"storage_bytes"`
	IndexQuality  float64         `json:"index_quality"`
	ThrottleState string          `json:"throttle_state"`
	Projects      []ProjectStatus `json:"projects"`
}

// ProjectInfo is one registry entry in a list_projects response.
type ProjectInfo struct {
	Path                string `json:"path"`
	ProjectType         string `json:"project_type"`
	IsWatching          bool   `json:"is_watching"`
	LastAccessedSecsAgo int64  `json:"last_accessed_secs_ago"`
}

// Response is the single response object written back to the client. Root
// is set only for project_root responses and stays nil when no project
// root was found.
type Response struct {
	Type     string         `json:"type"`
	Message  string         `json:"message,omitempty"`
	Results  []SearchResult `json:"results,omitempty"`
	Status   *Status        `json:"status,omitempty"`
	Root     *string        `json:"root,omitempty"`
	Projects []ProjectInfo  `json:"projects,omitempty"`
}

func okResponse() *Response {
	return &Response{Type: ResponseOK}
}

func errorResponse(format string, args ...any) *Response {
	return &Response{Type: ResponseError, Message: fmt.Sprintf(format, args...)}
}
