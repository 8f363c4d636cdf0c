package main

import (
	"os"

	"github.com/psantana5/botkeeper/cmd/botkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
