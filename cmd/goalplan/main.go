package main

import (
	"os"

	"github.com/mpalmer/goalplan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
