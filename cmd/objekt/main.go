package main

import (
	"os"

	"github.com/ssargent/objektdb/cmd/objekt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
