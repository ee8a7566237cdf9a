package cmd

import (
	"log/slog"
	"os"

	"github.com/nfrund/signin/internal/config"
	"github.com/nfrund/signin/internal/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	logger   *slog.Logger
	fsys     afero.Fs = afero.NewOsFs()
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign-in controller from the terminal",
	Long: `signin drives the sign-in controller from a terminal against the configured
identity service (IDENTITY_PROVIDER).

Available commands:
  login      Sign in with a magic link, a password or an OAuth provider
  mailbox    Show which mailbox an address would open
  prefs      Show or change persisted sign-in preferences

Use "signin [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			cfg = config.New()
		}
		if err := cfg.Validate(false); err != nil {
			return err
		}
		logger = logging.NewWithWriter(cliSettings{Config: cfg, level: logLevel}, cmd.ErrOrStderr())
		return nil
	},
}

// cliSettings keeps the CLI quiet unless asked otherwise.
type cliSettings struct {
	*config.Config
	level string
}

func (s cliSettings) GetLogLevel() string { return s.level }

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}
