// Command swd is the CLI entrypoint for the DAP transport engine: probe
// discovery, attach, and single-register DP/AP read/write for scripting and
// diagnostics.
package main

import "github.com/OpenTraceLab/swddap/cmd/swd/cmd"

func main() {
	cmd.Execute()
}
