package main

import (
	"os"

	"github.com/wonny/insiderbot/cmd/insiderbot/commands"
)

// main is the entry point for the insiderbot CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
