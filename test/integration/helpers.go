package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tplgen/internal/config"
	"git.home.luguber.info/inful/tplgen/internal/engine"
	"git.home.luguber.info/inful/tplgen/internal/processor/gotemplate"
)

// fixture is a temporary project directory with helpers for mutating
// inputs between builds. Input files are written with an mtime one hour
// in the past so freshly written outputs always compare newer; touch
// pushes a file ahead of any existing output to mark it changed.
type fixture struct {
	t   *testing.T
	dir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, dir: t.TempDir()}
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.dir, rel)
}

// write creates a file with an aged mtime.
func (f *fixture) write(rel, content string) {
	f.t.Helper()
	full := f.path(rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(f.t, os.WriteFile(full, []byte(content), 0o600))
	f.age(rel)
}

// manifest writes the project manifest. Its mtime does not matter:
// manifest changes are detected through the recorded globals, not stat.
func (f *fixture) manifest(content string) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(f.path(config.DefaultManifestName), []byte(content), 0o600))
}

// touch marks a file as changed by moving its mtime ahead of any output
// written during a previous build.
func (f *fixture) touch(rel string) {
	f.t.Helper()
	future := time.Now().Add(2 * time.Second)
	require.NoError(f.t, os.Chtimes(f.path(rel), future, future))
}

// age moves a file's mtime into the past so it compares older than
// outputs written during the test run.
func (f *fixture) age(rel string) {
	f.t.Helper()
	past := time.Now().Add(-time.Hour)
	require.NoError(f.t, os.Chtimes(f.path(rel), past, past))
}

// build loads the manifest and runs one engine invocation.
func (f *fixture) build() *engine.Result {
	f.t.Helper()

	project, err := config.Load(f.path(config.DefaultManifestName))
	require.NoError(f.t, err, "manifest should load")

	eng := engine.New(gotemplate.New())
	result, err := eng.Build(context.Background(), project)
	require.NoError(f.t, err, "build should not fail outright")
	require.False(f.t, result.Failed, "no entry should fail: %v", result.Errors)
	return result
}

// output reads a generated file.
func (f *fixture) output(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(f.path(rel))
	require.NoError(f.t, err, "output %s should exist", rel)
	return string(data)
}
