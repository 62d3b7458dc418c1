package main

import (
	"os"

	"github.com/kartikay/folio/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
