// Package gotemplate is the bundled template processor. Templates are Go
// text/template documents with two extensions: {{param "name"}} resolves a
// declared build parameter, and {{include "relpath"}} inlines another file,
// resolved against the including file's directory and then the include
// search paths. Every file resolved through include is reported back to the
// engine as a dependency, transitively.
package gotemplate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"text/template"

	"git.home.luguber.info/inful/tplgen/internal/outpath"
	"git.home.luguber.info/inful/tplgen/internal/processor"
)

var includeRe = regexp.MustCompile(`\{\{\s*include\s+"([^"]+)"\s*\}\}`)

// Engine implements processor.Processor on text/template. It keeps no
// shared mutable state between invocations beyond the logger, but makes no
// reentrancy guarantee; the build engine calls it sequentially.
type Engine struct {
	logger *slog.Logger
}

// New creates the bundled template engine.
func New() *Engine {
	return &Engine{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// Process expands includes, then either executes the template into the
// output file (transform) or emits a Go source file encapsulating it
// (preprocess). On failure it returns a *processor.DiagnosticError scoped
// to this entry.
func (e *Engine) Process(ctx context.Context, req processor.Request) (processor.Result, error) {
	if err := ctx.Err(); err != nil {
		return processor.Result{}, err
	}

	raw, err := os.ReadFile(req.InputFile)
	if err != nil {
		return processor.Result{}, diag(req.InputFile, fmt.Sprintf("cannot read template: %v", err))
	}

	exp := &expansion{includePaths: req.Globals.IncludePaths}
	body, err := exp.expand(string(raw), filepath.Dir(req.InputFile), map[string]bool{req.InputFile: true})
	if err != nil {
		return processor.Result{}, diag(req.InputFile, err.Error())
	}

	var output []byte
	switch req.Mode {
	case outpath.ModePreprocess:
		output, err = generateSource(req, body)
	default:
		output, err = e.execute(req, body)
	}
	if err != nil {
		return processor.Result{}, diag(req.InputFile, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputFile), 0755); err != nil {
		return processor.Result{}, diag(req.InputFile, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if err := os.WriteFile(req.OutputFile, output, 0644); err != nil {
		return processor.Result{}, diag(req.InputFile, fmt.Sprintf("cannot write output: %v", err))
	}

	e.logger.Debug("Processed template",
		"input", req.InputFile,
		"output", req.OutputFile,
		"mode", req.Mode,
		"dependencies", len(exp.deps))
	return processor.Result{Dependencies: exp.deps}, nil
}

// execute renders the include-expanded body to the final output text.
func (e *Engine) execute(req processor.Request, body string) ([]byte, error) {
	funcs := template.FuncMap{
		"param": func(name string) (string, error) {
			value, ok := req.Globals.ParameterValue(name)
			if !ok {
				return "", fmt.Errorf("parameter %q is not declared", name)
			}
			return value, nil
		},
	}

	tpl, err := template.New(filepath.Base(req.InputFile)).Funcs(funcs).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, nil); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// expansion tracks include resolution for one Process call.
type expansion struct {
	includePaths []string
	deps         []string
	seen         map[string]bool
}

// expand inlines {{include "path"}} directives recursively. active guards
// against include cycles.
func (x *expansion) expand(body, fromDir string, active map[string]bool) (string, error) {
	var expandErr error
	result := includeRe.ReplaceAllStringFunc(body, func(match string) string {
		if expandErr != nil {
			return match
		}
		rel := includeRe.FindStringSubmatch(match)[1]

		resolved, err := x.resolve(rel, fromDir)
		if err != nil {
			expandErr = err
			return match
		}
		if active[resolved] {
			expandErr = fmt.Errorf("include cycle through %s", resolved)
			return match
		}

		content, err := os.ReadFile(resolved)
		if err != nil {
			expandErr = fmt.Errorf("cannot read include %q: %v", rel, err)
			return match
		}
		x.record(resolved)

		active[resolved] = true
		nested, err := x.expand(string(content), filepath.Dir(resolved), active)
		delete(active, resolved)
		if err != nil {
			expandErr = err
			return match
		}
		return nested
	})
	if expandErr != nil {
		return "", expandErr
	}
	return result, nil
}

// resolve finds an included file: the including file's directory first,
// then each include search path in order.
func (x *expansion) resolve(rel, fromDir string) (string, error) {
	candidates := append([]string{fromDir}, x.includePaths...)
	for _, dir := range candidates {
		candidate := filepath.Join(dir, rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("include %q not found (searched %d paths)", rel, len(candidates))
}

func (x *expansion) record(path string) {
	if x.seen == nil {
		x.seen = make(map[string]bool)
	}
	if !x.seen[path] {
		x.seen[path] = true
		x.deps = append(x.deps, path)
	}
}

func diag(file, message string) *processor.DiagnosticError {
	return &processor.DiagnosticError{Diagnostics: []processor.Diagnostic{
		{File: file, Message: message},
	}}
}
