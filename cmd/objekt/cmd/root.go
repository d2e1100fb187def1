package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/ssargent/objektdb/pkg/catalog"
	"github.com/ssargent/objektdb/pkg/config"
	"github.com/ssargent/objektdb/pkg/logging"
	"github.com/ssargent/objektdb/pkg/metrics"
)

type appKey struct{}

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	config     *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	catalog    *catalog.Catalog
	cleanup    func()
}

// close releases what setup acquired. It is safe to call on a zero app.
func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

// newRootCmd builds the objekt command tree. The returned app is filled in
// by the persistent pre-run hook and must be closed after Execute.
func newRootCmd() (*cobra.Command, *app) {
	state := &app{}
	rootCmd := &cobra.Command{
		Use:   "objekt",
		Short: "objektdb - file-based typed record store",
		Long: `objektdb keeps typed records in plain files: one catalog file per
database, one table file and one bucket file per table.

Examples:
  objekt create-db shop
  objekt create-table shop customers --field name:String --field vip:bool
  objekt insert shop customers name=ada vip=true
  objekt get shop customers 1`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default: OS-specific location)")
	flags.StringP("data-dir", "d", "", "Catalog root directory (overrides config)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flags.String("log-format", "", "Log format: text or json (overrides config)")
	flags.StringP("output", "o", "table", "Output format: table or json")

	rootCmd.AddCommand(
		newInitCmd(),
		newCreateDBCmd(),
		newDropDBCmd(),
		newListDBsCmd(),
		newCreateTableCmd(),
		newReinitTableCmd(),
		newDescribeCmd(),
		newInsertCmd(),
		newGetCmd(),
		newReplaceCmd(),
		newDeleteCmd(),
		newScanCmd(),
		newServeCmd(),
	)
	return rootCmd, state
}

// Execute runs the root command against os.Args.
func Execute() error {
	rootCmd, state := newRootCmd()
	defer state.close()
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

// setup loads the configuration, applies flag overrides and opens the
// catalog root.
func (a *app) setup(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if explicit && cmd.Name() != "init" {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}

	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	opts := cfg.LoggingOptions()
	opts.Output = cmd.ErrOrStderr()
	logger, cleanup, err := logging.New(opts)
	if err != nil {
		return err
	}

	a.configPath = configPath
	a.config = cfg
	a.logger = logger
	a.cleanup = cleanup
	if cmd.Name() == "serve" {
		a.metrics = metrics.New(nil)
	}
	if cmd.Name() != "init" {
		a.catalog, err = catalog.NewCatalog(catalog.Config{
			Root:          cfg.DataDir,
			TableCapacity: cfg.Storage.TableCapacity,
			SyncWrites:    cfg.Storage.SyncWrites,
			Logger:        logger,
			Metrics:       a.metrics,
		})
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appKey{}, a))
	return nil
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New("command context not initialized")
	}
	return a, nil
}

// withDatabase opens a database for the duration of fn.
func withDatabase(cmd *cobra.Command, name string, fn func(db *catalog.Database) error) (err error) {
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}
	db, err := a.catalog.Open(name)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, db.Close())
	}()
	return fn(db)
}
