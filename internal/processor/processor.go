// Package processor defines the contract between the build engine and the
// template processor that actually executes templates. The engine only
// depends on this interface; gotemplate provides the bundled implementation.
package processor

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/tplgen/internal/buildstate"
	"git.home.luguber.info/inful/tplgen/internal/outpath"
)

// Globals are the build-wide inputs shared by every entry. They are passed
// to the processor on each invocation; a change to any of them invalidates
// the whole build upstream of the processor.
type Globals struct {
	Parameters              []buildstate.Parameter
	DirectiveProcessors     []buildstate.DirectiveProcessor
	IncludePaths            []string
	ReferencePaths          []string
	AssemblyReferences      []string
	DefaultNamespace        string
	TargetRuntimeIdentifier string
}

// ParameterValue resolves a parameter by name. Scoped parameters are
// considered after unscoped ones so a build-wide value wins.
func (g Globals) ParameterValue(name string) (string, bool) {
	for _, p := range g.Parameters {
		if p.Name == name && p.ProcessorScope == "" && p.DirectiveScope == "" {
			return p.Value, true
		}
	}
	for _, p := range g.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Request describes one template to process.
type Request struct {
	InputFile  string
	OutputFile string
	Mode       outpath.Mode
	// Namespace is set for preprocess requests only.
	Namespace string
	Globals   Globals
}

// Result is returned on success: the set of files the processor actually
// read while executing the template, in the order they were first resolved.
type Result struct {
	Dependencies []string
}

// Diagnostic is one processor-reported problem with a template.
type Diagnostic struct {
	File    string
	Line    int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
	}
	if d.File != "" {
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	}
	return d.Message
}

// DiagnosticError is the failure side of the processor contract: one or more
// diagnostics scoped to a single entry.
type DiagnosticError struct {
	Diagnostics []Diagnostic
}

func (e *DiagnosticError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "template processing failed"
	}
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.String()
	}
	return strings.Join(msgs, "; ")
}

// Processor executes one template, producing its output file and reporting
// the includes it read. Implementations are not assumed to be reentrant;
// the engine invokes them sequentially.
type Processor interface {
	Process(ctx context.Context, req Request) (Result, error)
}
