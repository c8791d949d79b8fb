package main

import (
	"os"

	"github.com/Pythonista7/context-tracker-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
