// Package commands implements the tplgen CLI subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tplgen/internal/config"
	"git.home.luguber.info/inful/tplgen/internal/engine"
	"git.home.luguber.info/inful/tplgen/internal/observability"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition and global flags.
type CLI struct {
	Project string           `short:"p" help:"Project manifest path" default:"tplgen.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate GenerateCmd `cmd:"" default:"1" help:"Process templates declared in the project manifest"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild automatically when templates or the manifest change"`
	Init     InitCmd     `cmd:"" help:"Write an example project manifest"`
	Clean    CleanCmd    `cmd:"" help:"Remove the build-state cache so the next run rebuilds everything"`
}

// AfterApply runs after flag parsing; sets up logging once.
func (c *CLI) AfterApply() error {
	observability.Setup(c.Verbose)
	return nil
}

// reportResult prints per-entry errors and summarizes the invocation.
func reportResult(result *engine.Result) error {
	for _, entryErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "tplgen: %s: %v\n", entryErr.InputFile, entryErr.Err)
	}
	total := len(result.Transformed) + len(result.Preprocessed)
	fmt.Printf("tplgen: %d outputs (%d processed, %d up to date)\n", total, result.Stale, result.Fresh)

	if result.Failed {
		return fmt.Errorf("%d of %d entries failed", len(result.Errors), total)
	}
	return nil
}

func loadProject(path string) (*config.Project, error) {
	project, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return project, nil
}
