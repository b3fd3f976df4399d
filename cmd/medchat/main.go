// Package main provides the entry point for the medchat CLI.
package main

import (
	"fmt"
	"os"

	"github.com/0xcro3dile/medchat-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
