package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cognicore/themedup/internal/logging"
	"github.com/cognicore/themedup/pkg/themedup"
	"github.com/cognicore/themedup/pkg/themedup/config"
	"github.com/cognicore/themedup/pkg/themedup/registry"
	"github.com/cognicore/themedup/pkg/themedup/store"
	"github.com/cognicore/themedup/pkg/themedup/store/sqlite"
)

var version = "dev"

// app carries flags and state shared by subcommands
type app struct {
	configPath   string
	stoplistPath string
	dbPath       string
	scope        string
	logLevel     string

	cfg    config.Config
	logger *log.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "themedup",
		Short: "Extract unique themes from text records",
		Long: `themedup extracts topical themes from a corpus of short text records,
rejects themes too similar to ones already emitted for the same scope,
and retrieves stored insights relevant to a query.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&a.stoplistPath, "stoplist", "", "YAML stoplist file")
	flags.StringVar(&a.dbPath, "db", "", "SQLite registry path (in-memory when empty)")
	flags.StringVarP(&a.scope, "scope", "s", "default", "Registry scope, e.g. a brand or customer")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version info",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "themedup %s\n", version)
			},
		},
		newExtractCmd(a),
		newRetrieveCmd(a),
		newRegistryCmd(a),
	)
	return rootCmd
}

func (a *app) init(stderr io.Writer) error {
	a.logger = logging.New(stderr, a.logLevel)

	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}
	return nil
}

func (a *app) engine() (*themedup.Engine, error) {
	opts := themedup.Options{Config: &a.cfg, Logger: a.logger}
	if a.stoplistPath != "" {
		sl, err := config.LoadStoplist(a.stoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		opts.Stoplist = sl.Manager()
	}
	return themedup.New(opts)
}

// openStore returns nil without --db
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.dbPath == "" {
		return nil, nil
	}
	st, err := sqlite.OpenSQLite(ctx, a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	return st, nil
}

// openRegistry loads the scope's registry; the returned func closes its store
func (a *app) openRegistry(ctx context.Context) (*registry.Registry, func(), error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return registry.New(a.scope), func() {}, nil
	}
	reg, err := registry.Open(ctx, st, a.scope)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return reg, func() { st.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
