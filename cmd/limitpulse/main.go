package main

import (
	"os"

	"github.com/wendao/limitpulse/cmd/limitpulse/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
