// SPDX-License-Identifier: LGPL-3.0-or-later

// Command vapctl is the platform operator's CLI: database migrations and
// read-only inspection of agents, jobs and the hold queue, without going
// through the signed-request API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vapctl",
	Short: "vapctl - Verus Agent Platform operator CLI",
	Long: `vapctl provides operator tooling for the Verus Agent Platform backend:

- Applying database migrations
- Inspecting agents, jobs and the hold queue
- Re-triggering endpoint verification for a single agent

It talks directly to the configured storage backend, bypassing the signed-
request API, so it is meant for operators with direct database access.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
