package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sms-spend-analyzer/cmd/analyzer/config"
	"sms-spend-analyzer/pkg/errors"
	"sms-spend-analyzer/pkg/logger"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app holds the state shared by every command of one invocation
type app struct {
	v       *viper.Viper
	cfgFile string
	log     logger.Logger
}

// NewRootCommand builds the analyzer command tree
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{v: config.New(), log: logger.Default()}

	root := &cobra.Command{
		Use:   "analyzer",
		Short: "Spending analysis for bank SMS exports",
		Long: `Analyzer summarizes money in and out of your accounts from bank SMS
messages. It reads a cleaned CSV export (one row per transaction message),
works out whether each row is a debit or a credit, and reports totals per
bank, per counterparty and per day.

Examples:
  analyzer analyze transactions.csv
  analyzer analyze transactions.csv --bank HDFCBNK --bank SBI --output-format json
  analyzer convert sms-backup.xml -o messages.csv --with-amount
  analyzer generate --count 300 -o sample.xml
  analyzer version`,
		Version:           getVersionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text, json")
	flags.String("log-file", "", "write logs to this file instead of stderr")

	_ = a.v.BindPFlag(config.KeyVerbose, flags.Lookup("verbose"))
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = a.v.BindPFlag(config.KeyLogFile, flags.Lookup("log-file"))

	root.AddCommand(
		newAnalyzeCommand(a),
		newConvertCommand(a),
		newGenerateCommand(a),
		newVersionCommand(),
	)
	return root, a
}

// Execute runs the command tree and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCommand()
	err := root.ExecuteContext(ctx)
	return NewCLIErrorHandler(a.log, a.v.GetBool(config.KeyVerbose), root.ErrOrStderr()).HandleError(err)
}

// initConfig loads .env, the config file and the logger before any command runs
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "config", a.cfgFile, err).
				WithSuggestion("check that the config file exists and is valid YAML, JSON or TOML")
		}
	}

	logConfig, err := config.LoggerConfig(a.v)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log.file", logConfig.File, err)
	}
	logger.SetDefault(log)
	a.log = log

	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.WithField("config_file", used).Debug("Using config file")
	}
	return nil
}

// bindFlags binds command flags to setting keys. It runs when the command
// does, so commands sharing a key do not steal each other's binding.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for name, key := range keys {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return errors.InternalError(errors.CodeUnexpectedError, "bind flag "+name, err)
		}
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "analyzer %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
