package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ssargent/objektdb/pkg/config"
)

func newInitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with a generated API key",
		Long: `Write a configuration file for objekt and create the catalog root.

Examples:
  objekt init
  objekt init --config ./objekt.yaml --data-dir ./data --print-key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			printKey, _ := cmd.Flags().GetBool("print-key")

			if config.ConfigExists(a.configPath) && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", a.configPath)
			}
			cfg, err := config.BootstrapConfig(a.configPath, a.config.DataDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}

			cmd.Printf("Configuration written to %s\n", a.configPath)
			cmd.Printf("Data directory: %s\n", cfg.DataDir)
			if printKey {
				cmd.Printf("API key: %s\n", cfg.Security.APIKey)
			}
			return nil
		},
	}
	c.Flags().Bool("force", false, "Overwrite an existing configuration file")
	c.Flags().Bool("print-key", false, "Print the generated API key")
	return c
}

func newCreateDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-db <name>",
		Short: "Create an empty database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := a.catalog.CreateDB(args[0]); err != nil {
				return err
			}
			cmd.Printf("Created database %s\n", args[0])
			return nil
		},
	}
}

func newDropDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-db <name>",
		Short: "Delete a database and all of its tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := a.catalog.DeleteDB(args[0]); err != nil {
				return err
			}
			cmd.Printf("Dropped database %s\n", args[0])
			return nil
		},
	}
}

func newListDBsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-dbs",
		Short: "List the databases under the catalog root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			names, err := a.catalog.ListDBs()
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				if names == nil {
					names = []string{}
				}
				return outputJSON(cmd.OutOrStdout(), names)
			}
			if len(names) == 0 {
				cmd.Println("No databases found")
				return nil
			}
			for _, n := range names {
				cmd.Println(n)
			}
			return nil
		},
	}
}
