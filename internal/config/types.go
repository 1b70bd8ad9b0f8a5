package config

// Project is the declared description of one template build: the task
// inputs the host hands to the engine. Paths are relative to the manifest's
// directory unless absolute.
type Project struct {
	// IntermediateDir holds the build-state cache and acts as the namespace
	// root for preprocessed output. Defaults to ".tplgen".
	IntermediateDir string `yaml:"intermediate_dir,omitempty"`

	DefaultNamespace string `yaml:"default_namespace,omitempty"`

	// TargetRuntime identifies the runtime preprocessed source is generated
	// for. Preprocessing only.
	TargetRuntime string `yaml:"target_runtime,omitempty"`

	IncludePaths       []string `yaml:"include_paths,omitempty"`
	ReferencePaths     []string `yaml:"reference_paths,omitempty"`
	AssemblyReferences []string `yaml:"assembly_references,omitempty"`

	Parameters          []ParameterSpec `yaml:"parameters,omitempty"`
	DirectiveProcessors []ProcessorSpec `yaml:"directive_processors,omitempty"`

	Transform  []TemplateSpec `yaml:"transform,omitempty"`
	Preprocess []TemplateSpec `yaml:"preprocess,omitempty"`

	// LegacyOutputPaths computes preprocess namespaces relative to the
	// project directory instead of the intermediate directory.
	LegacyOutputPaths bool `yaml:"legacy_output_paths,omitempty"`

	// OnlyOutOfDate enables incremental builds: only entries whose inputs
	// changed since the recorded state are reprocessed. When false, every
	// declared entry is processed on each run.
	OnlyOutOfDate bool `yaml:"only_out_of_date,omitempty"`

	// ProjectDir is the manifest's directory; set by Load, not declared.
	ProjectDir string `yaml:"-"`
}

// TemplateSpec declares one template and its optional output metadata.
// OutputPath is a legacy alias for OutputDir; OutputDir wins when both are
// declared.
type TemplateSpec struct {
	Input      string `yaml:"input"`
	OutputName string `yaml:"output_name,omitempty"`
	OutputDir  string `yaml:"output_dir,omitempty"`
	OutputPath string `yaml:"output_path,omitempty"`
}

// ParameterSpec assigns a value to a named parameter, optionally scoped to
// a directive processor or directive. Name is required; a parameter with no
// resolvable value is a configuration error.
type ParameterSpec struct {
	Name      string `yaml:"name"`
	Value     string `yaml:"value"`
	Processor string `yaml:"processor,omitempty"`
	Directive string `yaml:"directive,omitempty"`
}

// ProcessorSpec registers a directive processor, either with separate
// fields or the compact "name!class!assembly" form in Spec.
type ProcessorSpec struct {
	Name     string `yaml:"name,omitempty"`
	Class    string `yaml:"class,omitempty"`
	Assembly string `yaml:"assembly,omitempty"`
	Spec     string `yaml:"spec,omitempty"`
}
