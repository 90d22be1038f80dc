package main

import (
	"os"

	"github.com/sparklab/sparklab-api/cmd/sparkctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
