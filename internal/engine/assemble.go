package engine

import (
	"path/filepath"

	"git.home.luguber.info/inful/tplgen/internal/buildstate"
	"git.home.luguber.info/inful/tplgen/internal/config"
	fnderrors "git.home.luguber.info/inful/tplgen/internal/foundation/errors"
	"git.home.luguber.info/inful/tplgen/internal/outpath"
	"git.home.luguber.info/inful/tplgen/internal/processor"
)

// assemble builds the current declaration from the validated project.
// Entries whose resolved output collides with an earlier entry are excluded
// and reported as configuration errors; the rest of the build proceeds.
func (e *Engine) assemble(project *config.Project) (*buildstate.BuildDescription, processor.Globals, []EntryError) {
	desc := &buildstate.BuildDescription{
		FormatVersion:           buildstate.FormatVersion,
		IntermediateDirectory:   project.IntermediateDir,
		DefaultNamespace:        project.DefaultNamespace,
		TargetRuntimeIdentifier: project.TargetRuntime,
		Parameters:              project.ResolvedParameters(),
		DirectiveProcessors:     project.ResolvedProcessors(),
		IncludePaths:            project.IncludePaths,
		ReferencePaths:          project.ReferencePaths,
		AssemblyReferences:      project.AssemblyReferences,
	}

	globals := processor.Globals{
		Parameters:              desc.Parameters,
		DirectiveProcessors:     desc.DirectiveProcessors,
		IncludePaths:            desc.IncludePaths,
		ReferencePaths:          desc.ReferencePaths,
		AssemblyReferences:      desc.AssemblyReferences,
		DefaultNamespace:        desc.DefaultNamespace,
		TargetRuntimeIdentifier: desc.TargetRuntimeIdentifier,
	}

	seen := make(map[string]string) // output file -> input file
	var errs []EntryError

	desc.TransformEntries = e.resolveEntries(project, project.Transform,
		outpath.ModeTransform, DefaultTransformExtension, seen, &errs)
	desc.PreprocessEntries = e.resolveEntries(project, project.Preprocess,
		outpath.ModePreprocess, DefaultPreprocessExtension, seen, &errs)

	return desc, globals, errs
}

func (e *Engine) resolveEntries(project *config.Project, specs []config.TemplateSpec,
	mode outpath.Mode, defaultExt string, seen map[string]string, errs *[]EntryError) []buildstate.TemplateEntry {

	entries := make([]buildstate.TemplateEntry, 0, len(specs))
	for _, spec := range specs {
		input := spec.Input
		if !filepath.IsAbs(input) {
			input = filepath.Join(project.ProjectDir, input)
		}

		resolved := outpath.Resolve(outpath.Request{
			InputFile: input,
			Metadata: outpath.Metadata{
				OutputFileName:  spec.OutputName,
				OutputDirectory: spec.OutputDir,
				OutputFilePath:  spec.OutputPath,
			},
			Mode:             mode,
			ProjectDir:       project.ProjectDir,
			IntermediateDir:  project.IntermediateDir,
			DefaultNamespace: project.DefaultNamespace,
			DefaultExtension: defaultExt,
			LegacyPlacement:  project.LegacyOutputPaths,
		})

		if first, dup := seen[resolved.OutputFile]; dup {
			*errs = append(*errs, EntryError{
				InputFile: input,
				Err: fnderrors.ConfigurationError("output file collides with another entry").
					WithContext("output", resolved.OutputFile).
					WithContext("first_input", first).
					Build(),
			})
			continue
		}
		seen[resolved.OutputFile] = input

		entries = append(entries, buildstate.TemplateEntry{
			InputFile:         input,
			OutputFile:        resolved.OutputFile,
			ExtensionOverride: resolved.ExtensionOverride,
			Namespace:         resolved.Namespace,
		})
	}
	return entries
}
