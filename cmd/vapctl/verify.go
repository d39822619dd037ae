// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/endpointverify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <verus-id>",
	Short: "Issue endpoint verification challenges for every endpoint an agent has registered",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	endpoints, err := store.ListEndpoints(ctx, args[0])
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		fmt.Println("no endpoints registered for", args[0])
		return nil
	}

	worker := endpointverify.New(store, endpointverify.Config{
		AllowPrivate: cfg.SSRF.AllowLocalhost,
	}, logger.NewDefaultLogger())

	for _, ep := range endpoints {
		v, err := worker.Challenge(ctx, ep, args[0])
		if err != nil {
			fmt.Printf("%s: challenge failed: %v\n", ep.URL, err)
			continue
		}
		fmt.Printf("%s: challenge issued (verification %s)\n", ep.URL, v.ID)
	}
	return nil
}
