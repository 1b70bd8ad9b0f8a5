package commands

import (
	"fmt"
	"os"
)

// CleanCmd removes the build-state cache. Outputs are left in place;
// the next generate run reprocesses every template.
type CleanCmd struct{}

func (c *CleanCmd) Run(global *Global, cli *CLI) error {
	project, err := loadProject(cli.Project)
	if err != nil {
		return err
	}

	statePath := project.StatePath()
	if err := os.Remove(statePath); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("tplgen: no build-state cache to remove")
			return nil
		}
		return fmt.Errorf("remove build state: %w", err)
	}
	fmt.Printf("tplgen: removed %s\n", statePath)
	return nil
}
