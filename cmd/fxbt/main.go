package main

import (
	"os"

	"github.com/quantfx/backtester/cmd/fxbt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
