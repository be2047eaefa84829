package main

import (
	"os"

	"github.com/harun/pointlog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
