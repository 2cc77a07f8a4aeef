// Command invoicer serves the invoice editor over HTTP and edits a local invoice from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "invoicer:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "invoicer",
		Usage: "edit invoices and export them as PDF",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Usage:   "app root holding config/ and data/",
				Value:   ".",
				EnvVars: []string{"INVOICER_ROOT"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			initCommand(),
			setCommand(),
			itemCommand(),
			showCommand(),
			exportCommand(),
		},
	}
}
