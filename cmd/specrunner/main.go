package main

import (
	"os"

	"github.com/ariel-frischer/specrunner/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
