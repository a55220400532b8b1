package main

import (
	"os"

	"github.com/ecomonitor/ecomonitor-stack/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
