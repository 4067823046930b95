package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/test"
)

func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PGDOT_CONFIG", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(bytes.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func graphName(t *testing.T, doc string) string {
	t.Helper()
	name, err := test.ParseDOT(t, doc).Name()
	require.NoError(t, err)
	return name
}

func TestRenderFromStdin(t *testing.T) {
	out, err := execute(t, test.ReadSample(t, "simple.json"), "render")
	require.NoError(t, err)
	cg := test.ParseDOT(t, out)
	assert.Contains(t, test.DOTEdges(t, cg), "node0 -> node1")
	assert.True(t, test.DOTFact(t, cg, "attr node0 label <b>Sort</b>"))
}

func TestRenderFromFile(t *testing.T) {
	input := filepath.Join(test.RootPath(t), "samples", "plain.yaml")
	out, err := execute(t, nil, "render", "--input", input, "--yaml", "--graph-id", "plain plan")
	require.NoError(t, err)
	assert.Equal(t, "plain plan", graphName(t, out))
}

func TestRenderTree(t *testing.T) {
	out, err := execute(t, test.ReadSample(t, "cte.json"), "render", "--format", "tree", "--color=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Execution time 12.500 ms (planning 0.400 ms)")
	assert.NotContains(t, out, "\033[")
}

func TestRenderWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.dot")
	out, err := execute(t, test.ReadSample(t, "simple.json"), "render", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "explain", graphName(t, string(data)))
}

func TestRenderUsesConfig(t *testing.T) {
	cfgPath := filepath.Join(test.RootPath(t), "samples", "config.example.yaml")
	out, err := execute(t, test.ReadSample(t, "simple.json"), "--config", cfgPath, "render")
	require.NoError(t, err)
	assert.Equal(t, "orders", graphName(t, out))

	out, err = execute(t, test.ReadSample(t, "simple.json"), "--config", cfgPath, "render", "--graph-id", "override")
	require.NoError(t, err)
	assert.Equal(t, "override", graphName(t, out))
}

func TestRenderErrors(t *testing.T) {
	_, err := execute(t, []byte(`[{"Plan": `), "render")
	require.Error(t, err)
	assert.Equal(t, errs.CodeMalformedInput, errs.CodeOf(err))

	_, err = execute(t, test.ReadSample(t, "simple.json"), "render", "--format", "gif")
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidRequest, errs.CodeOf(err))

	_, err = execute(t, nil, "render", "--input", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestRunDryRun(t *testing.T) {
	out, err := execute(t, test.ReadSample(t, "parallel.json"), "run", "-n")
	require.NoError(t, err)
	assert.True(t, test.DOTFact(t, test.ParseDOT(t, out), "attr node1 shape folder"))

	out, err = execute(t, test.ReadSample(t, "simple.json"), "run", "--dry-run", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Node Type": "Sort"`)
}

func TestRunRejectsConflictingSources(t *testing.T) {
	_, err := execute(t, nil, "run", "-c", "SELECT 1", "-f", "query.sql")
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidRequest, errs.CodeOf(err))

	_, err = execute(t, []byte("  \n"), "run", "-n")
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidRequest, errs.CodeOf(err))
}

func TestRunRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, nil, "run", "--url", "", "-c", "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidRequest, errs.CodeOf(err))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = execute(t, nil, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pgdot dev"))
}
