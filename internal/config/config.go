// Package config loads and validates the project manifest: the declarative
// description of templates to transform or preprocess, build parameters,
// directive processors, and search paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tplgen/internal/buildstate"
	fnderrors "git.home.luguber.info/inful/tplgen/internal/foundation/errors"
)

// DefaultManifestName is the manifest file looked up when none is given.
const DefaultManifestName = "tplgen.yaml"

// Load reads the manifest at path, expands environment variables in it
// (after loading .env/.env.local, which never override the process
// environment), applies defaults, and validates the declaration.
func Load(path string) (*Project, error) {
	loadEnvFiles(filepath.Dir(path))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fnderrors.ConfigurationError("project manifest not found").
			WithContext("path", path).Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fnderrors.ConfigurationError("failed to read project manifest").
			WithCause(err).WithContext("path", path).Build()
	}

	expanded := os.ExpandEnv(string(data))

	var project Project
	if err := yaml.Unmarshal([]byte(expanded), &project); err != nil {
		return nil, fnderrors.ConfigurationError("failed to parse project manifest").
			WithCause(err).WithContext("path", path).Build()
	}

	absDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}
	project.ProjectDir = absDir

	applyDefaults(&project)
	if err := project.Validate(); err != nil {
		return nil, err
	}
	return &project, nil
}

// loadEnvFiles loads .env then .env.local from the manifest directory.
// Missing files are fine; existing process variables are never overridden.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Load(filepath.Join(dir, name))
	}
}

func applyDefaults(p *Project) {
	if p.IntermediateDir == "" {
		p.IntermediateDir = ".tplgen"
	}
	if !filepath.IsAbs(p.IntermediateDir) {
		p.IntermediateDir = filepath.Join(p.ProjectDir, p.IntermediateDir)
	}
	for i, inc := range p.IncludePaths {
		if !filepath.IsAbs(inc) {
			p.IncludePaths[i] = filepath.Join(p.ProjectDir, inc)
		}
	}
}

// Validate checks the declaration for configuration errors: parameters
// without names or values, directive processors missing class or assembly,
// templates without inputs, malformed compact processor specs.
func (p *Project) Validate() error {
	for i, param := range p.Parameters {
		if param.Name == "" {
			return fnderrors.ConfigurationError("parameter declared without a name").
				WithContext("index", i).Build()
		}
		if param.Value == "" {
			return fnderrors.ConfigurationError("parameter has no resolvable value").
				WithContext("parameter", param.Name).Build()
		}
	}

	for _, spec := range p.DirectiveProcessors {
		if _, err := spec.Resolve(); err != nil {
			return err
		}
	}

	for _, list := range [][]TemplateSpec{p.Transform, p.Preprocess} {
		for _, tpl := range list {
			if tpl.Input == "" {
				return fnderrors.ConfigurationError("template declared without an input file").Build()
			}
		}
	}
	return nil
}

// Resolve normalizes a processor spec to its three required fields,
// accepting either separate fields or the compact name!class!assembly form.
func (s ProcessorSpec) Resolve() (buildstate.DirectiveProcessor, error) {
	dp := buildstate.DirectiveProcessor{Name: s.Name, Class: s.Class, Assembly: s.Assembly}

	if s.Spec != "" {
		parts := strings.Split(s.Spec, "!")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return dp, fnderrors.ConfigurationError("directive processor spec must be name!class!assembly").
				WithContext("spec", s.Spec).Build()
		}
		dp = buildstate.DirectiveProcessor{Name: parts[0], Class: parts[1], Assembly: parts[2]}
	}

	if dp.Name == "" {
		return dp, fnderrors.ConfigurationError("directive processor declared without a name").Build()
	}
	if dp.Class == "" || dp.Assembly == "" {
		return dp, fnderrors.ConfigurationError("directive processor requires both class and assembly").
			WithContext("processor", dp.Name).Build()
	}
	return dp, nil
}

// ResolvedProcessors returns the normalized directive processor list.
// Validate must have succeeded first.
func (p *Project) ResolvedProcessors() []buildstate.DirectiveProcessor {
	if len(p.DirectiveProcessors) == 0 {
		return nil
	}
	out := make([]buildstate.DirectiveProcessor, 0, len(p.DirectiveProcessors))
	for _, spec := range p.DirectiveProcessors {
		dp, err := spec.Resolve()
		if err != nil {
			continue
		}
		out = append(out, dp)
	}
	return out
}

// ResolvedParameters returns the declared parameters in build-state form.
func (p *Project) ResolvedParameters() []buildstate.Parameter {
	if len(p.Parameters) == 0 {
		return nil
	}
	out := make([]buildstate.Parameter, len(p.Parameters))
	for i, spec := range p.Parameters {
		out[i] = buildstate.Parameter{
			ProcessorScope: spec.Processor,
			DirectiveScope: spec.Directive,
			Name:           spec.Name,
			Value:          spec.Value,
		}
	}
	return out
}

// StatePath returns the build-state cache location for this project.
func (p *Project) StatePath() string {
	return buildstate.StatePath(p.IntermediateDir)
}

// Init writes an example manifest to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("manifest already exists: %s (use --force to overwrite)", path)
	}

	example := Project{
		DefaultNamespace: "Generated",
		IncludePaths:     []string{"templates/includes"},
		Parameters: []ParameterSpec{
			{Name: "Project", Value: "my-project"},
		},
		Transform: []TemplateSpec{
			{Input: "templates/readme.tpl", OutputName: "README.generated.md"},
		},
		Preprocess: []TemplateSpec{
			{Input: "templates/model.tpl", OutputDir: ".tplgen/models"},
		},
		OnlyOutOfDate: true,
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal example manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
