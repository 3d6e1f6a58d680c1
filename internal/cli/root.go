package cli

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/spf13/cobra"
)

// app carries state shared by subcommands once the root pre-run has loaded
// the configuration.
type app struct {
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagDBPath    string

	cfg      config.Config
	logger   *slog.Logger
	logClose io.Closer
}

// NewRootCmd creates the root cobra command for the backoffice binary.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "backoffice",
		Short: "Back-office API with Redis-backed sessions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logClose != nil {
				_ = a.logClose.Close()
			}
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfig, "config", "", "YAML config file")
	pf.BoolVar(&a.flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flagLogFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&a.flagDBPath, "db", "", "SQLite user database path")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newUserCmd(a),
	)

	return root
}

// load applies defaults, the config file and the environment, then any flags
// set on the command line.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flagConfig)
	if err != nil {
		return err
	}

	if a.flagLogLevel != "" {
		cfg.Log.Level = a.flagLogLevel
	}
	if a.flagDebug {
		cfg.Log.Level = "debug"
	}
	if a.flagLogFormat != "" {
		cfg.Log.Format = a.flagLogFormat
	}
	if a.flagDBPath != "" {
		cfg.Database.Path = a.flagDBPath
	}
	a.cfg = cfg

	a.logger, a.logClose = logging.NewLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
	})
	a.logger.Debug("config loaded", "file", a.flagConfig, "db", cfg.Database.Path)
	return nil
}
