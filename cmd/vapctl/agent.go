// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent <verus-id>",
	Short: "Show a registered agent by identity address",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	agent, err := store.GetAgent(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get agent: %w", err)
	}
	out, err := json.MarshalIndent(agent, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
