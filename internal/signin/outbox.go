package signin

import (
	"sync"

	"github.com/nfrund/signin/internal/domain"
)

// Effects are the side effects a controller requested since the last drain.
type Effects struct {
	Notices  []domain.Notice `json:"notices,omitempty"`
	Navigate string          `json:"navigate,omitempty"`
	Open     []string        `json:"open,omitempty"`
}

// Outbox is a Notifier and Navigator that buffers effects for a caller that
// cannot act on them directly, such as an HTTP handler answering a browser.
type Outbox struct {
	mu      sync.Mutex
	pending Effects
}

func (o *Outbox) Notify(n domain.Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.Notices = append(o.pending.Notices, n)
}

// Navigate keeps only the latest target.
func (o *Outbox) Navigate(target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.Navigate = target
}

func (o *Outbox) Open(target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.Open = append(o.pending.Open, target)
}

// Drain returns and clears the buffered effects.
func (o *Outbox) Drain() Effects {
	o.mu.Lock()
	defer o.mu.Unlock()
	e := o.pending
	o.pending = Effects{}
	return e
}
