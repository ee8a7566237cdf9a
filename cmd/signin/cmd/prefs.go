package cmd

import (
	"fmt"

	"github.com/nfrund/signin/cmd/signin/internal/terminal"
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/preferences"
	"github.com/spf13/cobra"
)

var (
	prefsFormat string
	prefsTab    string
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change persisted sign-in preferences",
	Long: `Print the preferences kept between sign-in attempts (last used tab and
referral code). --tab changes the remembered tab first.

Examples:
  signin prefs
  signin prefs --tab password
  signin prefs --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := preferences.OpenFile(fsys, cfg.GetPreferencesPath())
		if err != nil {
			return err
		}

		if prefsTab != "" {
			tab := domain.Tab(prefsTab)
			if tab != domain.TabMagicLink && tab != domain.TabPassword {
				return fmt.Errorf("invalid --tab %q (want %s or %s)", prefsTab, domain.TabMagicLink, domain.TabPassword)
			}
			if err := store.Set(domain.PrefLastAuthTab, string(tab)); err != nil {
				return err
			}
		}

		values := make(map[string]string, len(preferences.Keys))
		for _, k := range preferences.Keys {
			if v, ok := store.Get(k); ok {
				values[k] = v
			}
		}
		return terminal.Preferences(cmd.OutOrStdout(), store.Path(), values, prefsFormat)
	},
}

func init() {
	prefsCmd.Flags().StringVarP(&prefsFormat, "format", "f", "table", "Output format (table, json)")
	prefsCmd.Flags().StringVar(&prefsTab, "tab", "", "Remember this tab (magic or password)")
	rootCmd.AddCommand(prefsCmd)
}
