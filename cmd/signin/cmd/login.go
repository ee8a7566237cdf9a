package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/nfrund/signin/cmd/signin/internal/terminal"
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/flow"
	"github.com/nfrund/signin/internal/identity"
	"github.com/nfrund/signin/internal/launch"
	"github.com/nfrund/signin/internal/preferences"
	"github.com/nfrund/signin/internal/signin"
	"github.com/nfrund/signin/internal/validation"
	"github.com/spf13/cobra"
)

// Login methods accepted by --method.
const (
	methodMagicLink = "magic-link"
	methodPassword  = "password"
	methodDiscord   = "discord"
	methodGoogle    = "google"
)

var (
	loginMethod   string
	loginEmail    string
	loginURL      string
	loginPassword string
	loginLocale   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in against the configured identity service",
	Long: `Run one sign-in attempt from the terminal.

The entry URL carries the same parameters as the sign-in page
(subscription, lookup_key, promo_code, referral, next).

Examples:
  signin login --email me@example.com
  signin login --method password --email me@example.com
  signin login --method google --url "https://app.example.com/login?subscription=true&lookup_key=pro"

With the magic-link method the command waits for the emailed code.
Type "r" to resend, "m" to open the mailbox and "q" to give up.
Without --method the last used tab decides between magic-link and password.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	svc, err := identity.NewIdentityService(cfg)
	if err != nil {
		return err
	}
	prefs, err := preferences.OpenFile(fsys, cfg.GetPreferencesPath())
	if err != nil {
		return err
	}
	locale := loginLocale
	if locale == "" {
		locale = cfg.GetDefaultLocale()
	}
	ac, err := launch.CaptureURL(loginURL, prefs, locale)
	if err != nil {
		return fmt.Errorf("invalid --url: %w", err)
	}

	out := cmd.OutOrStdout()
	printer := terminal.NewPrinter(out)
	ctrl := signin.New(ac, signin.Deps{
		Identity:    svc,
		Preferences: prefs,
		Notifier:    printer,
		Navigator:   printer,
	},
		signin.WithRedirects(launch.Redirects{CheckoutPath: cfg.GetCheckoutPath(), DefaultLanding: cfg.GetDefaultLanding()}),
		signin.WithLogger(logger),
	)
	defer ctrl.Close()

	in := bufio.NewScanner(cmd.InOrStdin())

	method := loginMethod
	if method == "" {
		method = methodMagicLink
		if ctrl.Snapshot().LastUsedTab == domain.TabPassword {
			method = methodPassword
		}
	}

	switch method {
	case methodMagicLink:
		if err := ctrl.SetTab(ctx, domain.TabMagicLink); err != nil {
			return err
		}
		if err := report(printer, ctrl.SubmitMagicLink(ctx, loginEmail)); err != nil {
			return err
		}
		if ctrl.Snapshot().CodeEntryVisible {
			if err := codeLoop(ctx, ctrl, printer, in); err != nil {
				return err
			}
		}

	case methodPassword:
		if err := ctrl.SetTab(ctx, domain.TabPassword); err != nil {
			return err
		}
		password := loginPassword
		if password == "" {
			fmt.Fprint(out, "Password: ")
			if !in.Scan() {
				return errors.New("no password entered")
			}
			password = strings.TrimSpace(in.Text())
		}
		if err := report(printer, ctrl.SubmitPassword(ctx, loginEmail, password)); err != nil {
			return err
		}

	case methodDiscord, methodGoogle:
		provider, err := domain.ParseProvider(method)
		if err != nil {
			return err
		}
		if err := report(printer, ctrl.SignInWithProvider(ctx, provider)); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown --method %q (want %s, %s, %s or %s)", method, methodMagicLink, methodPassword, methodDiscord, methodGoogle)
	}

	printer.State(ctrl.Snapshot())
	if _, ok := printer.Navigation(); !ok || ctrl.Snapshot().Phase != flow.PhaseRedirecting {
		return errors.New("sign-in did not complete")
	}
	return nil
}

// codeLoop reads codes and commands until the attempt redirects, the input
// ends or the user quits.
func codeLoop(ctx context.Context, ctrl *signin.Controller, printer *terminal.Printer, in *bufio.Scanner) error {
	for {
		st := ctrl.Snapshot()
		if st.Phase.Terminal() {
			return nil
		}
		printer.State(st)

		if !in.Scan() {
			if err := in.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch line := strings.TrimSpace(in.Text()); line {
		case "":
		case "q":
			return nil
		case "m":
			ctrl.OpenMailClient("")
		case "r":
			if err := report(printer, ctrl.Resend(ctx)); err != nil {
				return err
			}
		default:
			if err := report(printer, ctrl.SubmitCode(ctx, line)); err != nil {
				return err
			}
		}
	}
}

// report prints rejections the user can act on and returns the rest.
func report(printer *terminal.Printer, err error) error {
	var verrs validation.Errors
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			printer.Notify(domain.Notice{Level: domain.NoticeError, Title: string(fe.Field), Message: fe.Message})
		}
		return nil
	case errors.Is(err, domain.ErrCooldownActive), errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrCodeEntryHidden):
		printer.Notify(domain.Notice{Level: domain.NoticeInfo, Title: "Not now", Message: err.Error()})
		return nil
	default:
		return err
	}
}

func init() {
	loginCmd.Flags().StringVar(&loginMethod, "method", "", "Sign-in method: magic-link, password, discord or google")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&loginURL, "url", "", "Entry URL or query string")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when empty)")
	loginCmd.Flags().StringVar(&loginLocale, "locale", "", "Locale tag passed to the identity service")
	rootCmd.AddCommand(loginCmd)
}
