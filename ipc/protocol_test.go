package ipc

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"valid search", `{"type":"search","query":"http handler","limit":5}`, false},
		{"valid status", `{"type":"status"}`, false},
		{"valid watch", `{"type":"watch","path":"/p"}`, false},
		{"valid shutdown", `{"type":"shutdown"}`, false},
		{"not json", `{{{`, true},
		{"empty", ``, true},
		{"unknown type", `{"type":"reboot"}`, true},
		{"search without query", `{"type":"search"}`, true},
		{"watch without path", `{"type":"watch"}`, true},
		{"unwatch without path", `{"type":"unwatch"}`, true},
		{"force_index without path", `{"type":"force_index"}`, true},
		{"detect_root without path", `{"type":"detect_root"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.line))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.line)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if req == nil {
				t.Error("expected a request")
			}
		})
	}
}

func TestMarkdownLinks(t *testing.T) {
	links := markdownLinks("see [docs](https://example.com/docs) and [setup notes](./setup.md)")
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
	if links[0].Text != "docs" || links[0].Target != "https://example.com/docs" {
		t.Errorf("unexpected first link: %+v", links[0])
	}
	if links[0].IsInternal {
		t.Error("expected absolute URL to be external")
	}
	if links[1].Text != "setup notes" || links[1].Target != "./setup.md" {
		t.Errorf("unexpected second link: %+v", links[1])
	}
	if !links[1].IsInternal {
		t.Error("expected relative target to be internal")
	}

	if got := markdownLinks("no links here"); got != nil {
		t.Errorf("expected nil for plain text, got %v", got)
	}
}

func TestHeaderContext(t *testing.T) {
	content := "// comment\n\nfunc ServeHTTP(w http.ResponseWriter) {\n\tbody\n}"
	if got := headerContext(content); got != "func ServeHTTP(w http.ResponseWriter) {" {
		t.Errorf("expected declaration line, got %q", got)
	}

	plain := "just some text\nmore text"
	if got := headerContext(plain); got != "just some text" {
		t.Errorf("expected first non-blank line, got %q", got)
	}
}

func TestLanguageForPath(t *testing.T) {
	cases := map[string]string{
		"/a/b.go":      "go",
		"/a/b.test.TS": "typescript",
		"/a/b.md":      "markdown",
		"/a/b.xyz":     "",
	}
	for path, want := range cases {
		if got := languageForPath(path); got != want {
			t.Errorf("languageForPath(%s) = %q, want %q", path, got, want)
		}
	}
}
