// Package terminal renders controller effects and state for the signin CLI.
package terminal

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/flow"
	"github.com/nfrund/signin/internal/mailclient"
)

// Printer is the CLI's Notifier and Navigator. Notices are printed as they
// arrive; the last navigation is kept so the command can report it.
type Printer struct {
	mu       sync.Mutex
	w        io.Writer
	navigate string
	opened   []string
}

// NewPrinter writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Notify(n domain.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
}

func (p *Printer) Navigate(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigate = target
	fmt.Fprintf(p.w, "-> navigate: %s\n", target)
}

func (p *Printer) Open(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, target)
	fmt.Fprintf(p.w, "-> open: %s\n", target)
}

// Navigation returns the last navigation target, if any.
func (p *Printer) Navigation() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigate, p.navigate != ""
}

// Opened returns the targets opened in a new window.
func (p *Printer) Opened() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.opened...)
}

// State prints the parts of st a terminal user acts on.
func (p *Printer) State(st flow.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, fe := range st.FieldErrors {
		fmt.Fprintf(p.w, "  %s: %s\n", fe.Field, fe.Message)
	}
	if st.CodeEntryVisible && !st.Phase.Terminal() {
		if st.CooldownRemaining > 0 {
			fmt.Fprintf(p.w, "Enter the code from the email (m: open mailbox, q: quit; resend in %ds)\n", st.CooldownRemaining)
		} else {
			fmt.Fprintln(p.w, "Enter the code from the email (r: resend, m: open mailbox, q: quit)")
		}
	}
}

// Mailbox prints the resolved mailbox action in format "table" or "json".
func Mailbox(w io.Writer, email string, action mailclient.Action, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Email string `json:"email"`
			mailclient.Action
		}{Email: email, Action: action})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	provider := action.Provider
	if provider == "" {
		provider = "-"
	}
	fmt.Fprintln(tw, "EMAIL\tKIND\tPROVIDER\tURL")
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", email, action.Kind, provider, action.URL)
	return nil
}

// Preferences prints values sorted by key in format "table" or "json".
func Preferences(w io.Writer, path string, values map[string]string, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Path   string            `json:"path"`
			Values map[string]string `json:"values"`
		}{Path: path, Values: values})
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintf(tw, "Preferences in %s:\n\n", path)
	fmt.Fprintln(tw, "KEY\tVALUE")
	fmt.Fprintln(tw, "---\t-----")
	if len(keys) == 0 {
		fmt.Fprintln(tw, "No preferences stored")
	}
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, values[k])
	}
	return nil
}
