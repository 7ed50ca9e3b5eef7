package main

import (
	"os"

	"github.com/JonMunkholm/creature-etl/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
