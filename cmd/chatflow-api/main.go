// Package main provides the chatflow API server and flow document tooling.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "chatflow-api",
		Usage:                 "Edit and store chatbot conversation flows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunAPICommand(),
			ValidateCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}
