package commands

import (
	"context"

	"git.home.luguber.info/inful/tplgen/internal/engine"
	"git.home.luguber.info/inful/tplgen/internal/processor/gotemplate"
)

// GenerateCmd processes the templates declared in the project manifest.
type GenerateCmd struct {
	Force bool `help:"Reprocess all templates even if outputs are up to date"`
}

func (g *GenerateCmd) Run(global *Global, cli *CLI) error {
	project, err := loadProject(cli.Project)
	if err != nil {
		return err
	}
	if g.Force {
		project.OnlyOutOfDate = false
	}

	eng := engine.New(gotemplate.New().WithLogger(global.Logger),
		engine.WithLogger(global.Logger))

	result, err := eng.Build(context.Background(), project)
	if err != nil {
		return err
	}
	return reportResult(result)
}
