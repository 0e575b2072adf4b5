// Package main provides the volctts CLI tool.
//
// Usage:
//
//	volctts <command> [flags]
//
// Commands:
//
//	speak - Bidirectional streaming synthesis, text to raw PCM
//	echo  - Echo WebSocket server for transport testing
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/volctts/cmd/volctts/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
