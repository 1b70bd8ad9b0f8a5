package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tplgen/cmd/tplgen/commands"
	"git.home.luguber.info/inful/tplgen/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("tplgen"),
		kong.Description("Incremental template generation tool"),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version})

	global := &commands.Global{Logger: slog.Default()}
	if err := ctx.Run(global, &cli); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
