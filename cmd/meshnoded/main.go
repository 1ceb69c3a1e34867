// Command meshnoded runs a meshnode mesh-chat daemon: the protocol core
// of internal/chat driven by a configured radio.RadioHandle, with a
// Prometheus metrics endpoint served alongside it.
package main

import (
	"fmt"
	"os"

	"github.com/meshwire/meshnode/cmd/meshnoded/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
