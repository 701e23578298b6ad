package indexer

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestScanner_Scan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "README.md", "# readme\n")
	writeFile(t, dir, "binary.exe", "MZ")
	writeFile(t, dir, ".hidden.go", "package hidden\n")
	writeFile(t, dir, "vendor/dep.go", "package dep\n")

	s, err := NewScanner(dir, []string{"vendor"})
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}

	files, skipped, err := s.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(files) != 2 {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		t.Fatalf("expected 2 files, got %d: %v", len(files), paths)
	}
	if skipped == 0 {
		t.Error("expected skipped count for filtered files")
	}
	for _, f := range files {
		if f.Hash == "" || f.Content == "" || f.ModTime == 0 {
			t.Errorf("incomplete file info: %+v", f)
		}
	}
}

func TestScanner_GitignoreHonored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated.go\n")
	writeFile(t, dir, "generated.go", "package gen\n")
	writeFile(t, dir, "kept.go", "package kept\n")

	s, err := NewScanner(dir, nil)
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}

	files, _, err := s.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	for _, f := range files {
		if strings.HasSuffix(f.Path, "generated.go") {
			t.Error("expected gitignored file to be skipped")
		}
	}
	if len(files) != 1 {
		t.Errorf("expected only kept.go, got %d files", len(files))
	}
}

func TestScanner_NestedGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sub/.gitignore", "local.go\n")
	writeFile(t, dir, "sub/local.go", "package sub\n")
	writeFile(t, dir, "local.go", "package root\n")

	s, err := NewScanner(dir, nil)
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}

	files, _, err := s.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	if len(files) != 1 || paths[0] != filepath.Join(dir, "local.go") {
		t.Errorf("expected only root local.go to survive, got %v", paths)
	}
}

func TestScanner_Indexable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")

	s, err := NewScanner(dir, []string{"vendor"})
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "a.go"), true},
		{filepath.Join(dir, "b.png"), false},
		{filepath.Join(dir, ".hidden.go"), false},
		{filepath.Join(dir, "vendor", "x.go"), false},
	}
	for _, tc := range cases {
		if got := s.Indexable(tc.path); got != tc.want {
			t.Errorf("Indexable(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
