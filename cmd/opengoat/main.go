// Package main is the opengoat CLI entry point.
package main

import (
	"os"

	"opengoat/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
