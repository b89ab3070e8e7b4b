// Package main is the entry point for the Keygate CLI application.
package main

import (
	"keygate/cli/cmd"
)

func main() {
	cmd.Execute()
}
