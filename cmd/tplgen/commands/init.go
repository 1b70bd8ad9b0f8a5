package commands

import (
	"fmt"

	"git.home.luguber.info/inful/tplgen/internal/config"
)

// InitCmd writes an example project manifest.
type InitCmd struct {
	Force bool `help:"Overwrite an existing manifest"`
}

func (i *InitCmd) Run(global *Global, cli *CLI) error {
	if err := config.Init(cli.Project, i.Force); err != nil {
		return err
	}
	fmt.Printf("tplgen: wrote %s\n", cli.Project)
	return nil
}
