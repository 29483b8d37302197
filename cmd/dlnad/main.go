package main

import (
	"os"

	"github.com/jmylchreest/dlnad/cmd/dlnad/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
