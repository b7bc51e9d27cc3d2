// Command helix runs the recruiting outreach sequence assistant.
package main

import (
	"fmt"
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/helix/internal/cli"
)

func main() {
	// Restart in place when the binary is rebuilt; opt in for development.
	if os.Getenv("HELIX_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
