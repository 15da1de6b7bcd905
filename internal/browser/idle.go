package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

const idlePollInterval = 50 * time.Millisecond

// idleTracker follows the page's network requests so a caller can wait for
// the network to go quiet: no request in flight for at least `window`.
type idleTracker struct {
	mutex        sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	window       time.Duration
	now          func() time.Time
}

func newIdleTracker(window time.Duration) *idleTracker {
	return &idleTracker{
		inflight:     map[network.RequestID]struct{}{},
		lastActivity: time.Now(),
		window:       window,
		now:          time.Now,
	}
}

// observe is registered with chromedp.ListenTarget.
func (t *idleTracker) observe(ev any) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.begin(ev.RequestID)
	case *network.EventLoadingFinished:
		t.end(ev.RequestID)
	case *network.EventLoadingFailed:
		t.end(ev.RequestID)
	}
}

func (t *idleTracker) begin(id network.RequestID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.inflight[id] = struct{}{}
	t.lastActivity = t.now()
}

func (t *idleTracker) end(id network.RequestID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return
	}
	delete(t.inflight, id)
	t.lastActivity = t.now()
}

// touch marks now as activity so a wait started right after an action
// gives the page a full window to start its requests.
func (t *idleTracker) touch() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.lastActivity = t.now()
}

func (t *idleTracker) idle() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.lastActivity) >= t.window
}

func (t *idleTracker) pending() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.inflight)
}

// wait blocks until the network is idle or ctx is done.
func (t *idleTracker) wait(ctx context.Context) error {
	t.touch()

	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if t.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
