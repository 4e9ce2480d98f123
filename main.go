package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tariconnect",
	Short: "TariConnect subscription billing service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, outbox relay and scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-trials",
	Short: "Purge data of users whose free trial has expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd.Context(), cmd.OutOrStdout())
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile-mirror",
	Short: "Requeue failed mirror writes and drain the outbox once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd.Context(), cmd.OutOrStdout())
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <user-id> <user|admin>",
	Short: "Grant a user the admin or user role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetRole(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(setRoleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
