package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tplgen/internal/buildstate"
	"git.home.luguber.info/inful/tplgen/internal/config"
	fnderrors "git.home.luguber.info/inful/tplgen/internal/foundation/errors"
	"git.home.luguber.info/inful/tplgen/internal/processor"
)

// fakeProcessor writes a marker output file and reports configured
// dependencies, tracking every invocation.
type fakeProcessor struct {
	calls []string
	deps  map[string][]string // input file -> reported dependencies
	fail  map[string]bool     // input file -> fail the invocation
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{deps: map[string][]string{}, fail: map[string]bool{}}
}

func (f *fakeProcessor) Process(_ context.Context, req processor.Request) (processor.Result, error) {
	f.calls = append(f.calls, req.InputFile)
	if f.fail[req.InputFile] {
		return processor.Result{}, &processor.DiagnosticError{Diagnostics: []processor.Diagnostic{
			{File: req.InputFile, Message: "simulated failure"},
		}}
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputFile), 0755); err != nil {
		return processor.Result{}, err
	}
	if err := os.WriteFile(req.OutputFile, []byte("processed: "+req.InputFile), 0644); err != nil {
		return processor.Result{}, err
	}
	return processor.Result{Dependencies: f.deps[req.InputFile]}, nil
}

func outputModTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

func testProject(t *testing.T, dir string, specs ...config.TemplateSpec) *config.Project {
	t.Helper()
	for _, spec := range specs {
		path := filepath.Join(dir, spec.Input)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("template "+spec.Input), 0644))
	}
	return &config.Project{
		ProjectDir:      dir,
		IntermediateDir: filepath.Join(dir, ".tplgen"),
		Parameters:      []config.ParameterSpec{{Name: "Mode", Value: "strict"}},
		Transform:       specs,
		OnlyOutOfDate:   true,
	}
}

func TestBuild_ColdStartProcessesEverything(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	project := testProject(t, dir,
		config.TemplateSpec{Input: "a.tpl"},
		config.TemplateSpec{Input: "b.tpl"},
	)

	result, err := New(proc).Build(context.Background(), project)
	require.NoError(t, err)

	assert.False(t, result.Failed)
	assert.Equal(t, 2, result.Stale)
	assert.Len(t, proc.calls, 2)
	require.Len(t, result.Transformed, 2)
	assert.Equal(t, filepath.Join(dir, "a.txt"), result.Transformed[0].OutputPath)
	assert.NotEmpty(t, result.BuildID)
}

func TestBuild_SecondRunProcessesNothing(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	project := testProject(t, dir, config.TemplateSpec{Input: "a.tpl"})

	eng := New(proc)
	_, err := eng.Build(context.Background(), project)
	require.NoError(t, err)
	require.Len(t, proc.calls, 1)

	result, err := eng.Build(context.Background(), project)
	require.NoError(t, err)

	assert.Len(t, proc.calls, 1, "fresh entry must not be reprocessed")
	assert.Equal(t, 0, result.Stale)
	assert.Equal(t, 1, result.Fresh)
	// Fresh entries still appear in the output descriptors.
	require.Len(t, result.Transformed, 1)
	assert.Equal(t, filepath.Join(dir, "a.tpl"), result.Transformed[0].InputPath)
}

func TestBuild_FreshEntriesKeepDependenciesVerbatim(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	project := testProject(t, dir, config.TemplateSpec{Input: "a.tpl"})

	dep := filepath.Join(dir, "helper.inc")
	require.NoError(t, os.WriteFile(dep, []byte("helper"), 0644))
	proc.deps[filepath.Join(dir, "a.tpl")] = []string{dep}

	eng := New(proc)
	_, err := eng.Build(context.Background(), project)
	require.NoError(t, err)

	result, err := eng.Build(context.Background(), project)
	require.NoError(t, err)
	require.Len(t, result.Transformed, 1)
	assert.Equal(t, []string{dep}, result.Transformed[0].Dependencies)
}

func TestBuild_FailingEntryDoesNotBlockSiblings(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	project := testProject(t, dir,
		config.TemplateSpec{Input: "bad.tpl"},
		config.TemplateSpec{Input: "good.tpl"},
	)
	proc.fail[filepath.Join(dir, "bad.tpl")] = true

	result, err := New(proc).Build(context.Background(), project)
	require.NoError(t, err)

	assert.True(t, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "bad.tpl"), result.Errors[0].InputFile)
	assert.Len(t, proc.calls, 2, "sibling entries still processed")
	assert.FileExists(t, filepath.Join(dir, "good.txt"))
}

func TestBuild_FailedEntryKeepsLastKnownDependencies(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	project := testProject(t, dir, config.TemplateSpec{Input: "a.tpl"})

	input := filepath.Join(dir, "a.tpl")
	dep := filepath.Join(dir, "helper.inc")
	require.NoError(t, os.WriteFile(dep, []byte("helper"), 0644))
	proc.deps[input] = []string{dep}

	eng := New(proc)
	_, err := eng.Build(context.Background(), project)
	require.NoError(t, err)

	// Touch the input so the entry is stale again, then make it fail.
	require.NoError(t, os.WriteFile(input, []byte("edited template"), 0644))
	future := outputModTime(t, filepath.Join(dir, "a.txt")).Add(2 * time.Second)
	require.NoError(t, os.Chtimes(input, future, future))
	proc.fail[input] = true

	result, err := eng.Build(context.Background(), project)
	require.NoError(t, err)
	assert.True(t, result.Failed)

	// The failed entry is still persisted with its last-known dependencies.
	prev := buildstate.NewStore().Load(project.StatePath())
	require.NotNil(t, prev)
	require.Len(t, prev.TransformEntries, 1)
	assert.Equal(t, []string{dep}, prev.TransformEntries[0].Dependencies)
}

func TestBuild_DuplicateOutputIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	project := testProject(t, dir,
		config.TemplateSpec{Input: "a.tpl", OutputName: "same.txt"},
		config.TemplateSpec{Input: "b.tpl", OutputName: "same.txt"},
	)

	result, err := New(proc).Build(context.Background(), project)
	require.NoError(t, err)

	assert.True(t, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, fnderrors.CategoryConfiguration, fnderrors.CategoryOf(result.Errors[0].Err))
	// Only the first declaration survives into processing and the results.
	assert.Len(t, proc.calls, 1)
	assert.Len(t, result.Transformed, 1)
}

func TestBuild_NonIncrementalModeReprocessesEveryRun(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	project := testProject(t, dir, config.TemplateSpec{Input: "a.tpl"})
	project.OnlyOutOfDate = false

	eng := New(proc)
	_, err := eng.Build(context.Background(), project)
	require.NoError(t, err)
	_, err = eng.Build(context.Background(), project)
	require.NoError(t, err)

	assert.Len(t, proc.calls, 2)
}

func TestBuild_GlobalParameterChangeInvalidatesAll(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	project := testProject(t, dir,
		config.TemplateSpec{Input: "a.tpl"},
		config.TemplateSpec{Input: "b.tpl"},
	)

	eng := New(proc)
	_, err := eng.Build(context.Background(), project)
	require.NoError(t, err)
	require.Len(t, proc.calls, 2)

	project.Parameters[0].Value = "lenient"
	result, err := eng.Build(context.Background(), project)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stale)
	assert.Len(t, proc.calls, 4)
}

func TestBuild_PreprocessEntriesCarryNamespace(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()

	input := filepath.Join("models", "user.tpl")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, input), []byte("tpl"), 0644))

	project := &config.Project{
		ProjectDir:        dir,
		IntermediateDir:   filepath.Join(dir, ".tplgen"),
		DefaultNamespace:  "Generated",
		LegacyOutputPaths: true, // namespace relative to the project directory
		Preprocess:        []config.TemplateSpec{{Input: input}},
		OnlyOutOfDate:     true,
	}

	result, err := New(proc).Build(context.Background(), project)
	require.NoError(t, err)
	require.Len(t, result.Preprocessed, 1)

	prev := buildstate.NewStore().Load(project.StatePath())
	require.NotNil(t, prev)
	require.Len(t, prev.PreprocessEntries, 1)
	assert.Equal(t, "Generated.models", prev.PreprocessEntries[0].Namespace)
}
