package cmd

import (
	"github.com/nfrund/signin/cmd/signin/internal/terminal"
	"github.com/nfrund/signin/internal/mailclient"
	"github.com/spf13/cobra"
)

var mailboxFormat string

var mailboxCmd = &cobra.Command{
	Use:   "mailbox <email>",
	Short: "Show which mailbox an address would open",
	Long: `Resolve the webmail page (or mailto fallback) the sign-in page opens after a
code is sent to the given address.

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return terminal.Mailbox(cmd.OutOrStdout(), args[0], mailclient.Resolve(args[0]), mailboxFormat)
	},
}

func init() {
	mailboxCmd.Flags().StringVarP(&mailboxFormat, "format", "f", "table", "Output format (table, json)")
	rootCmd.AddCommand(mailboxCmd)
}
