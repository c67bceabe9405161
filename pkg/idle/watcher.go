// Package idle expires sessions on the server when they go unused.
//
// Each live session gets a timer armed with the idle timeout. Activity
// resets the timer; a timer that fires evicts the session through the
// expiry callback. Expiry happens on the server regardless of whether
// any client is still connected, so an abandoned browser tab cannot
// keep a session alive and a closed one cannot dodge the timeout.
package idle

import (
	"sync"
	"time"

	"github.com/harborlight/beacon/pkg/observability"
)

// ExpireFunc is invoked exactly once per session when its idle timer
// fires. It runs on its own goroutine and typically deletes the session
// from the backing store.
type ExpireFunc func(token string)

type entry struct {
	timer *time.Timer
}

// Watcher tracks idle timers for live sessions.
type Watcher struct {
	timeout  time.Duration
	onExpire ExpireFunc
	metrics  *observability.Metrics
	logger   *observability.Logger

	mu      sync.Mutex
	entries map[string]*entry
	stopped bool
}

// NewWatcher creates a watcher. metrics and logger may be nil.
func NewWatcher(timeout time.Duration, onExpire ExpireFunc, metrics *observability.Metrics, logger *observability.Logger) *Watcher {
	return &Watcher{
		timeout:  timeout,
		onExpire: onExpire,
		metrics:  metrics,
		entries:  make(map[string]*entry),
		logger:   logger,
	}
}

// Watch arms the idle timer for a session. Watching an already-watched
// token just resets its timer.
func (w *Watcher) Watch(token string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if e, ok := w.entries[token]; ok {
		e.timer.Reset(w.timeout)
		return
	}

	e := &entry{}
	e.timer = time.AfterFunc(w.timeout, func() { w.expire(token, e) })
	w.entries[token] = e

	if w.metrics != nil {
		w.metrics.SessionsActive.Inc()
	}
}

// Touch resets the timer for a session, arming it first if the watcher
// has never seen the token. Called on every authenticated request.
func (w *Watcher) Touch(token string) {
	w.Watch(token)
}

// Forget stops tracking a session without firing the expiry callback.
// Called on explicit sign-out, where the caller removes the session
// itself.
func (w *Watcher) Forget(token string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[token]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(w.entries, token)

	if w.metrics != nil {
		w.metrics.SessionsActive.Dec()
	}
}

// Active returns the number of sessions currently tracked.
func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Stop cancels all timers. No expiry callbacks fire after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	for token, e := range w.entries {
		e.timer.Stop()
		delete(w.entries, token)
	}
}

func (w *Watcher) expire(token string, fired *entry) {
	w.mu.Lock()
	e, ok := w.entries[token]
	// A Forget or Stop may have raced the timer firing; only the entry
	// that armed this timer may expire the session.
	if !ok || e != fired || w.stopped {
		w.mu.Unlock()
		return
	}
	delete(w.entries, token)
	if w.metrics != nil {
		w.metrics.SessionsActive.Dec()
		w.metrics.SessionsExpiredTotal.Inc()
	}
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.WithField("session_token", token).Debug("session expired after inactivity")
	}
	w.onExpire(token)
}
