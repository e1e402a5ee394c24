package main

import (
	"os"

	"github.com/idilsaglam/dayplan/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
