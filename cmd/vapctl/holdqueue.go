// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

var holdQueueStatus string

var holdQueueCmd = &cobra.Command{
	Use:   "holdqueue",
	Short: "List hold queue entries awaiting buyer review",
	RunE:  runHoldQueue,
}

func init() {
	holdQueueCmd.Flags().StringVar(&holdQueueStatus, "status", string(storage.HoldHeld), "held|released|rejected")
	rootCmd.AddCommand(holdQueueCmd)
}

func runHoldQueue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListByStatus(ctx, storage.HoldStatus(holdQueueStatus), 100, 0)
	if err != nil {
		return fmt.Errorf("list hold queue: %w", err)
	}
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
