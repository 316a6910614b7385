package main

import (
	"os"

	"github.com/aresch/deluge/cmd/deluged/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
