// Package buildstate defines the persisted description of a template build
// and the store that saves it between invocations. A description is built
// once per run, compared against the previous run's description to decide
// what is out of date, and replaced wholesale at the end of the run.
package buildstate

import "slices"

// FormatVersion is the schema version of the persisted description. It is
// bumped whenever the description schema changes; any mismatch on load is a
// full, unconditional discard of the previous state.
const FormatVersion = 1

// StateFileName is the cache file name inside the intermediate directory.
const StateFileName = "build-state.cache"

// BuildDescription is the root of one build invocation's declared inputs and
// recorded results. The previous run's description is loaded read-only; the
// new one replaces it atomically as the last step of the run.
type BuildDescription struct {
	FormatVersion           int                  `json:"format_version"`
	IntermediateDirectory   string               `json:"intermediate_directory"`
	DefaultNamespace        string               `json:"default_namespace"`
	TargetRuntimeIdentifier string               `json:"target_runtime_identifier"`
	Parameters              []Parameter          `json:"parameters,omitempty"`
	DirectiveProcessors     []DirectiveProcessor `json:"directive_processors,omitempty"`
	IncludePaths            []string             `json:"include_paths,omitempty"`
	ReferencePaths          []string             `json:"reference_paths,omitempty"`
	AssemblyReferences      []string             `json:"assembly_references,omitempty"`
	TransformEntries        []TemplateEntry      `json:"transform_entries,omitempty"`
	PreprocessEntries       []TemplateEntry      `json:"preprocess_entries,omitempty"`
}

// TemplateEntry records one template's resolved paths and the dependencies
// discovered the last time it was processed. Dependencies is populated only
// after a successful processing pass; fresh entries carry the prior value
// forward unchanged.
type TemplateEntry struct {
	InputFile         string   `json:"input_file"`
	OutputFile        string   `json:"output_file"`
	ExtensionOverride string   `json:"extension_override,omitempty"`
	Namespace         string   `json:"namespace,omitempty"`
	Dependencies      []string `json:"dependencies,omitempty"`
}

// Key identifies an entry by its input/output pair for cross-run matching.
func (e TemplateEntry) Key() string {
	return e.InputFile + "\x00" + e.OutputFile
}

// Parameter is a named value passed to the template processor, optionally
// scoped to a directive processor or directive.
type Parameter struct {
	ProcessorScope string `json:"processor_scope,omitempty"`
	DirectiveScope string `json:"directive_scope,omitempty"`
	Name           string `json:"name"`
	Value          string `json:"value"`
}

// DirectiveProcessor registers a custom directive handler. Class and
// Assembly are both required once Name is declared.
type DirectiveProcessor struct {
	Name     string `json:"name"`
	Class    string `json:"class"`
	Assembly string `json:"assembly"`
}

// GlobalsEqual reports whether the build-wide inputs of two descriptions are
// identical by value. Any difference invalidates every entry of the build.
func GlobalsEqual(prev, cur *BuildDescription) bool {
	if prev == nil || cur == nil {
		return prev == cur
	}
	return prev.FormatVersion == cur.FormatVersion &&
		prev.DefaultNamespace == cur.DefaultNamespace &&
		prev.TargetRuntimeIdentifier == cur.TargetRuntimeIdentifier &&
		slices.Equal(prev.Parameters, cur.Parameters) &&
		slices.Equal(prev.DirectiveProcessors, cur.DirectiveProcessors) &&
		slices.Equal(prev.IncludePaths, cur.IncludePaths) &&
		slices.Equal(prev.ReferencePaths, cur.ReferencePaths) &&
		slices.Equal(prev.AssemblyReferences, cur.AssemblyReferences)
}

// EntryIndex builds a lookup of entries by input/output pair across both
// entry lists of a description.
func EntryIndex(desc *BuildDescription) map[string]TemplateEntry {
	if desc == nil {
		return nil
	}
	idx := make(map[string]TemplateEntry, len(desc.TransformEntries)+len(desc.PreprocessEntries))
	for _, e := range desc.TransformEntries {
		idx[e.Key()] = e
	}
	for _, e := range desc.PreprocessEntries {
		idx[e.Key()] = e
	}
	return idx
}
