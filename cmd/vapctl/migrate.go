// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verus-agent-platform/vap/pkg/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Storage.Driver == "memory" {
		fmt.Println("storage driver is memory, nothing to migrate")
		return nil
	}
	pg, ok := store.(*postgres.Store)
	if !ok {
		return fmt.Errorf("migrate requires the postgres storage driver")
	}
	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}
