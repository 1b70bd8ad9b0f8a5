// Package outpath maps a template's declared metadata to its output
// location. Resolution is a pure function of its inputs: the same request
// always yields the same result, with no filesystem access.
package outpath

import (
	"path/filepath"
	"strings"
)

// Mode selects between direct text transformation and source preprocessing.
type Mode string

const (
	ModeTransform  Mode = "transform"
	ModePreprocess Mode = "preprocess"
)

// Metadata is the per-template output declaration supplied by the host.
// OutputFilePath is a legacy alias for OutputDirectory; when both are
// present, OutputDirectory wins.
type Metadata struct {
	OutputFileName  string
	OutputDirectory string
	OutputFilePath  string
}

// Request carries everything resolution depends on.
type Request struct {
	InputFile        string
	Metadata         Metadata
	Mode             Mode
	ProjectDir       string
	IntermediateDir  string
	DefaultNamespace string
	DefaultExtension string
	// LegacyPlacement computes the preprocess namespace relative to the
	// project directory instead of the intermediate directory.
	LegacyPlacement bool
}

// Resolved is the outcome of output path resolution.
type Resolved struct {
	OutputFile        string
	ExtensionOverride string
	Namespace         string
}

// Resolve computes the output file, extension override, and (in preprocess
// mode) namespace for one template declaration.
//
// File name: an explicit OutputFileName wins and records its extension as an
// override; otherwise the name is the input's base name with the default
// extension. Directory: OutputDirectory, then OutputFilePath, each combined
// with the project directory; otherwise the template's own directory.
func Resolve(req Request) Resolved {
	var res Resolved

	name := req.Metadata.OutputFileName
	if name != "" {
		res.ExtensionOverride = filepath.Ext(name)
	} else {
		base := filepath.Base(req.InputFile)
		name = strings.TrimSuffix(base, filepath.Ext(base)) + req.DefaultExtension
	}

	var dir string
	switch {
	case req.Metadata.OutputDirectory != "":
		dir = filepath.Join(req.ProjectDir, req.Metadata.OutputDirectory)
	case req.Metadata.OutputFilePath != "":
		dir = filepath.Join(req.ProjectDir, req.Metadata.OutputFilePath)
	default:
		dir = filepath.Dir(req.InputFile)
	}

	res.OutputFile = filepath.Join(dir, name)

	if req.Mode == ModePreprocess {
		res.Namespace = namespaceFor(res.OutputFile, req)
	}
	return res
}

// namespaceFor derives the namespace from the output location relative to
// the intermediate directory (or the project directory in legacy mode),
// with path separators replaced by dots.
func namespaceFor(outputFile string, req Request) string {
	baseDir := req.IntermediateDir
	if req.LegacyPlacement {
		baseDir = req.ProjectDir
	}

	remainder := ""
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, filepath.Dir(outputFile)); err == nil {
			if rel != "." && !strings.HasPrefix(rel, "..") {
				remainder = strings.ReplaceAll(rel, string(filepath.Separator), ".")
			}
		}
	}

	if remainder == "" {
		return req.DefaultNamespace
	}
	if req.DefaultNamespace == "" {
		return remainder
	}
	return req.DefaultNamespace + "." + remainder
}
