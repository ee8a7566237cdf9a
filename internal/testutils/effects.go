package testutils

import (
	"sync"

	"github.com/nfrund/signin/internal/domain"
)

// RecordingEffects implements domain.Notifier and domain.Navigator and keeps
// everything it was asked to do.
type RecordingEffects struct {
	mu          sync.Mutex
	notices     []domain.Notice
	navigations []string
	opened      []string
}

func (r *RecordingEffects) Notify(n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *RecordingEffects) Navigate(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigations = append(r.navigations, target)
}

func (r *RecordingEffects) Open(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, target)
}

func (r *RecordingEffects) Notices() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notice(nil), r.notices...)
}

// LastNotice returns the most recent notice, if any.
func (r *RecordingEffects) LastNotice() (domain.Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return domain.Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

func (r *RecordingEffects) Navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.navigations...)
}

func (r *RecordingEffects) Opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}
