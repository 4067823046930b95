package test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/mickamy/pgdot/internal/graph"
	"github.com/mickamy/pgdot/internal/model"
	"github.com/mickamy/pgdot/internal/parser"
)

var (
	rootPath string
	once     sync.Once
)

// RootPath resolves a path relative to the repository rootPath (where go.mod resides).
func RootPath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
				rootPath = wd
				break
			}
			next := filepath.Dir(wd)
			if next == wd {
				t.Fatalf("go.mod not found from %s", wd)
			}
			wd = next
		}
	})
	return rootPath
}

// ReadSample returns the raw bytes of a file under samples/.
func ReadSample(t *testing.T, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(RootPath(t), "samples", rel))
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	return data
}

// LoadSample parses a plan relative to the samples directory.
func LoadSample(t *testing.T, rel string) *model.Explain {
	t.Helper()
	return ParsePlan(t, ReadSample(t, rel))
}

// ParsePlan parses an in-memory JSON or YAML plan.
func ParsePlan(t *testing.T, data []byte) *model.Explain {
	t.Helper()
	explain, err := parser.Parse(bytes.NewReader(data), parser.Options{Format: parser.FormatAuto})
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	return explain
}

// LoadSampleGraph loads a plan and builds its graph.
func LoadSampleGraph(t *testing.T, rel string) *graph.Graph {
	t.Helper()
	g, err := graph.Build(LoadSample(t, rel))
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

// LoadArchive reads a txtar scenario from samples/cases.
func LoadArchive(t *testing.T, rel string) *txtar.Archive {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join(RootPath(t), "samples", "cases", rel))
	if err != nil {
		t.Fatalf("parse archive: %v", err)
	}
	return ar
}

// ArchiveFile returns the contents of the named file in ar.
func ArchiveFile(t *testing.T, ar *txtar.Archive, name string) []byte {
	t.Helper()
	for _, f := range ar.Files {
		if f.Name == name {
			return f.Data
		}
	}
	t.Fatalf("archive has no file %q", name)
	return nil
}

// ArchiveLines returns the non-empty, non-comment lines of the named file.
func ArchiveLines(t *testing.T, ar *txtar.Archive, name string) []string {
	t.Helper()
	var out []string
	for _, line := range strings.Split(string(ArchiveFile(t, ar, name)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ListArchives returns the txtar scenarios under samples/cases.
func ListArchives(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(RootPath(t), "samples", "cases", "*.txtar"))
	if err != nil {
		t.Fatalf("glob archives: %v", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names
}
