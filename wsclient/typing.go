package wsclient

import (
	"sync"
	"time"
)

const defaultTypingTTL = 3 * time.Second

// TypingIndicator tracks whether the other party is typing. A typing signal
// expires on its own after the TTL, so a peer that disconnects mid-keystroke
// never leaves the indicator stuck on.
type TypingIndicator struct {
	mu       sync.Mutex
	ttl      time.Duration
	timer    *time.Timer
	active   bool
	onChange func(bool)
}

// NewTypingIndicator builds an indicator with the given TTL. onChange fires
// on every state flip and may be nil.
func NewTypingIndicator(ttl time.Duration, onChange func(bool)) *TypingIndicator {
	if ttl <= 0 {
		ttl = defaultTypingTTL
	}
	return &TypingIndicator{ttl: ttl, onChange: onChange}
}

// Observe feeds a typing frame into the indicator. A true signal arms the
// expiry timer; repeated signals push it out. A false signal clears at once.
func (t *TypingIndicator) Observe(isTyping bool) {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	changed := t.active != isTyping
	t.active = isTyping
	if isTyping {
		t.timer = time.AfterFunc(t.ttl, t.expire)
	}
	callback := t.onChange
	t.mu.Unlock()

	if changed && callback != nil {
		callback(isTyping)
	}
}

func (t *TypingIndicator) expire() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.timer = nil
	callback := t.onChange
	t.mu.Unlock()

	if callback != nil {
		callback(false)
	}
}

// Active reports the current indicator state.
func (t *TypingIndicator) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Stop cancels any pending expiry.
func (t *TypingIndicator) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
