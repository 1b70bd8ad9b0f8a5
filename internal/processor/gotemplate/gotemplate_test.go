package gotemplate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tplgen/internal/buildstate"
	"git.home.luguber.info/inful/tplgen/internal/outpath"
	"git.home.luguber.info/inful/tplgen/internal/processor"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestProcess_TransformRendersParameters(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "greeting.tpl")
	output := filepath.Join(dir, "greeting.txt")
	write(t, input, `Hello {{param "Name"}}!`)

	res, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: output,
		Mode:       outpath.ModeTransform,
		Globals: processor.Globals{
			Parameters: []buildstate.Parameter{{Name: "Name", Value: "World"}},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Dependencies)
	assert.Equal(t, "Hello World!", read(t, output))
}

func TestProcess_IncludesAreInlinedAndReported(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.tpl")
	helper := filepath.Join(dir, "helper.inc")
	output := filepath.Join(dir, "doc.txt")
	write(t, helper, "from helper")
	write(t, input, `start {{include "helper.inc"}} end`)

	res, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: output,
		Mode:       outpath.ModeTransform,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{helper}, res.Dependencies)
	assert.Equal(t, "start from helper end", read(t, output))
}

func TestProcess_TransitiveIncludes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.tpl")
	outer := filepath.Join(dir, "outer.inc")
	inner := filepath.Join(dir, "nested", "inner.inc")
	output := filepath.Join(dir, "doc.txt")
	write(t, inner, "innermost")
	write(t, outer, `outer({{include "nested/inner.inc"}})`)
	write(t, input, `{{include "outer.inc"}}`)

	res, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: output,
		Mode:       outpath.ModeTransform,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{outer, inner}, res.Dependencies)
	assert.Equal(t, "outer(innermost)", read(t, output))
}

func TestProcess_IncludeSearchPaths(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "shared")
	input := filepath.Join(dir, "doc.tpl")
	helper := filepath.Join(shared, "common.inc")
	output := filepath.Join(dir, "doc.txt")
	write(t, helper, "shared content")
	write(t, input, `{{include "common.inc"}}`)

	res, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: output,
		Mode:       outpath.ModeTransform,
		Globals:    processor.Globals{IncludePaths: []string{shared}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{helper}, res.Dependencies)
	assert.Equal(t, "shared content", read(t, output))
}

func TestProcess_MissingIncludeIsDiagnostic(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.tpl")
	write(t, input, `{{include "nope.inc"}}`)

	_, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: filepath.Join(dir, "doc.txt"),
		Mode:       outpath.ModeTransform,
	})
	var derr *processor.DiagnosticError
	require.ErrorAs(t, err, &derr)
	require.Len(t, derr.Diagnostics, 1)
	assert.Contains(t, derr.Diagnostics[0].Message, "nope.inc")
}

func TestProcess_IncludeCycleIsDiagnostic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.inc")
	b := filepath.Join(dir, "b.inc")
	input := filepath.Join(dir, "doc.tpl")
	write(t, a, `{{include "b.inc"}}`)
	write(t, b, `{{include "a.inc"}}`)
	write(t, input, `{{include "a.inc"}}`)

	_, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: filepath.Join(dir, "doc.txt"),
		Mode:       outpath.ModeTransform,
	})
	var derr *processor.DiagnosticError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Error(), "cycle")
}

func TestProcess_UndeclaredParameterIsDiagnostic(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.tpl")
	write(t, input, `{{param "Missing"}}`)

	_, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: filepath.Join(dir, "doc.txt"),
		Mode:       outpath.ModeTransform,
	})
	var derr *processor.DiagnosticError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Error(), "Missing")
}

func TestProcess_FailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.tpl")
	output := filepath.Join(dir, "doc.txt")
	write(t, input, `{{param "Missing"}}`)

	_, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: output,
		Mode:       outpath.ModeTransform,
	})
	require.Error(t, err)
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcess_PreprocessEmitsGoSource(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "user-model.tpl")
	output := filepath.Join(dir, "user_model.go")
	write(t, input, `type User struct { Name string } // {{param "Project"}}`)

	res, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: output,
		Mode:       outpath.ModePreprocess,
		Namespace:  "Generated.Models",
		Globals: processor.Globals{
			Parameters:              []buildstate.Parameter{{Name: "Project", Value: "demo"}},
			TargetRuntimeIdentifier: "go1.24",
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Dependencies)

	src := read(t, output)
	assert.Contains(t, src, "Code generated by tplgen. DO NOT EDIT.")
	assert.Contains(t, src, "package models")
	assert.Contains(t, src, "type UserModelTemplate struct")
	assert.Contains(t, src, "func (t UserModelTemplate) Render(w io.Writer) error")
	assert.Contains(t, src, `"Project": "demo"`)
	assert.Contains(t, src, "Target runtime: go1.24")
}

func TestProcess_PreprocessInlinesIncludes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "page.tpl")
	helper := filepath.Join(dir, "footer.inc")
	output := filepath.Join(dir, "page.go")
	write(t, helper, "-- footer --")
	write(t, input, `body {{include "footer.inc"}}`)

	res, err := New().Process(context.Background(), processor.Request{
		InputFile:  input,
		OutputFile: output,
		Mode:       outpath.ModePreprocess,
		Namespace:  "Generated",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{helper}, res.Dependencies)
	assert.Contains(t, read(t, output), "-- footer --")
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "models", packageName("Generated.Models"))
	assert.Equal(t, "generated", packageName("Generated"))
	assert.Equal(t, "generated", packageName(""))
	assert.Equal(t, "v2", packageName("Gen.V2"))
}

func TestTypeIdent(t *testing.T) {
	assert.Equal(t, "UserModel", typeIdent("dir/user-model.tpl"))
	assert.Equal(t, "Report", typeIdent("report.tpl"))
	assert.Equal(t, "", typeIdent("...tpl"))
}
