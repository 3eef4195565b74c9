package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agentic-research/modgate/internal/config"
	"github.com/agentic-research/modgate/internal/gateway"
	"github.com/agentic-research/modgate/internal/logging"
)

// version is set at build time.
var version = "dev"

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
	logFormat  string
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	o := &options{}
	var dryRun bool

	root := &cobra.Command{
		Use:   "modgate [file-or-dir]",
		Short: "Keep a directory's index.ts re-exporting every module next to it",
		Long: `modgate scans the directory of the given file (or the directory itself)
and creates or updates its index.ts so that it re-exports every sibling module:
files with at least one export and subdirectories that carry their own index.ts.
Existing content of index.ts is kept; only missing "export * from" lines are added.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, ok, err := activeDir(args)
			if err != nil || !ok {
				return err
			}

			syncer, log, err := o.syncer(cmd, dir)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			res, err := syncer.Sync(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				_, err := cmd.OutOrStdout().Write(res.Content)
				return err
			}
			report(cmd.OutOrStdout(), res)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "Path to config file (default <dir>/"+config.DefaultFileName+")")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error (env MODGATE_LOG_LEVEL)")
	pf.StringVar(&o.logFormat, "log-format", "", "Log format: console, json (env MODGATE_LOG_FORMAT)")
	root.Flags().BoolVar(&dryRun, "dry-run", false, "Print the resulting gateway instead of writing it")

	root.AddCommand(newCheckCmd(o), newWatchCmd(o), newServeCmd(o))
	return root
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// activeDir resolves the directory to scan from the active document path.
// No argument means there is no active document, which is not an error.
func activeDir(args []string) (dir string, ok bool, err error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", false, nil
	}
	dir, err = documentDir(args[0])
	if err != nil {
		return "", false, err
	}
	return dir, true, nil
}

func documentDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return abs, nil
	}
	return filepath.Dir(abs), nil
}

// config loads the explicit --config file, or else the config file of dir
// when there is one.
func (o *options) config(dir string) (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath, true)
	}
	return config.Load(filepath.Join(dir, config.DefaultFileName), false)
}

// load resolves config and logger for dir. Flags override environment,
// which overrides the config file.
func (o *options) load(cmd *cobra.Command, dir string) (*config.Config, logging.Logger, error) {
	cfg, err := o.config(dir)
	if err != nil {
		return nil, nil, err
	}

	if v := flagOrEnv(cmd, "log-level", o.logLevel, "MODGATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := flagOrEnv(cmd, "log-format", o.logFormat, "MODGATE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (o *options) engine(cmd *cobra.Command, dir string) (*gateway.Engine, logging.Logger, *config.Config, error) {
	cfg, log, err := o.load(cmd, dir)
	if err != nil {
		return nil, nil, nil, err
	}
	engine, err := gateway.NewEngine(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return engine, log, cfg, nil
}

func (o *options) syncer(cmd *cobra.Command, dir string) (*gateway.Syncer, logging.Logger, error) {
	engine, log, _, err := o.engine(cmd, dir)
	if err != nil {
		return nil, nil, err
	}
	syncer, err := engine.SyncerForDir(dir)
	if err != nil {
		return nil, nil, err
	}
	return syncer, log, nil
}

func flagOrEnv(cmd *cobra.Command, flag, value, env string) string {
	if cmd.Flags().Changed(flag) {
		return value
	}
	return os.Getenv(env)
}

// report prints a one-line summary of a sync.
func report(w io.Writer, res *gateway.Result) {
	switch {
	case res.Created:
		fmt.Fprintf(w, "Created %s with %d re-export(s)\n", res.Path, len(res.Added))
	case res.Changed:
		fmt.Fprintf(w, "Updated %s: added %s\n", res.Path, strings.Join(res.Added, ", "))
	default:
		fmt.Fprintf(w, "%s is up to date\n", res.Path)
	}
}

// isStale reports whether err only says the gateway needs a sync.
func isStale(err error) bool {
	return errors.Is(err, gateway.ErrStale)
}
