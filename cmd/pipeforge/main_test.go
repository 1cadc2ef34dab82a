package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/pipeforge/pkg/api"
	"github.com/rmax-ai/pipeforge/pkg/hydrate"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

const graphText = `name: Pipeline
implementation:
  graph:
    tasks:
      task1:
        componentRef:
          name: Producer
      task2:
        componentRef:
          name: Consumer
        arguments:
          input1:
            taskOutput:
              taskId: task1
              outputName: out
`

func startDaemon(t *testing.T) {
	t.Helper()
	st := store.NewMemoryStore()
	h := hydrate.New(st, nil)
	ts := httptest.NewServer(api.NewServer(st, h, "").Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Flush(ctx)
	})
	t.Setenv("PIPEFORGE_ENDPOINT", ts.URL)
}

func writeFile(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "component.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: pipeforge")

	stderr.Reset()
	assert.Equal(t, 1, run([]string{"frobnicate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "unknown command: frobnicate")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"version"}, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "pipeforge "+Version))
}

func TestRun_Hydrate(t *testing.T) {
	startDaemon(t)
	path := writeFile(t, "name: Echo\nimplementation:\n  container:\n    image: alpine\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"hydrate", "-file", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), `"name": "Echo"`)
	assert.Contains(t, stdout.String(), `"digest"`)
}

func TestRun_HydrateRequiresReference(t *testing.T) {
	startDaemon(t)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"hydrate", "-name", "x"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "one of -url, -digest or -file is required")
}

func TestRun_Duplicate(t *testing.T) {
	startDaemon(t)
	path := writeFile(t, graphText)

	var stdout, stderr bytes.Buffer
	code := run([]string{"duplicate", "-file", path, "-nodes", "task_task1, task_task2", "-connection", "internal"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), "task_task1 -> task_task1 2")
	assert.Contains(t, stdout.String(), "task1 2:")
	assert.Contains(t, stdout.String(), "taskId: task1 2")
}

func TestRun_DuplicateInvalidMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"duplicate", "-nodes", "task_a", "-connection", "both"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "both")
}

func TestRun_ComponentNotFound(t *testing.T) {
	startDaemon(t)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"components", "-id", "component-missing"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "not found")
	assert.NotContains(t, stderr.String(), "Is pipeforge-d running?")
}

func TestRun_ExportNotConfigured(t *testing.T) {
	startDaemon(t)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"export"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "503")
}
