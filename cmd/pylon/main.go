package main

import (
	"os"

	"Pylon/cmd/pylon/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
