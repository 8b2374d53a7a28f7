package sync

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestIsOnline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, true, IsOnline(now.Add(-29*time.Minute), now))
	assert.Equal(t, false, IsOnline(now.Add(-31*time.Minute), now))
	assert.Equal(t, false, IsOnline(now.Add(-OnlineWindow), now))
	assert.Equal(t, false, IsOnline(time.Time{}, now))
}

func TestTypingTrackerTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTypingTracker()

	tr.Observe("u1", true, now)
	tr.Observe("u2", true, now.Add(time.Second))

	assert.Equal(t, []string{"u1", "u2"}, tr.ActiveTypists(now.Add(2*time.Second), "me"))

	// u1's claim is 3s old now and expires; u2's is still fresh
	assert.Equal(t, []string{"u2"}, tr.ActiveTypists(now.Add(3*time.Second), "me"))

	// explicit false clears immediately
	tr.Observe("u2", false, now.Add(3*time.Second))
	assert.Equal(t, 0, len(tr.ActiveTypists(now.Add(3*time.Second), "me")))
}

func TestTypingTrackerExcludesSelf(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTypingTracker()

	tr.Observe("me", true, now)
	tr.Observe("u1", true, now)
	assert.Equal(t, []string{"u1"}, tr.ActiveTypists(now, "me"))
}

func TestTypingTrackerNextExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTypingTracker()

	_, ok := tr.NextExpiry(now)
	assert.Equal(t, false, ok)

	tr.Observe("u1", true, now)
	tr.Observe("u2", true, now.Add(time.Second))

	// the earliest claim drives the schedule
	d, ok := tr.NextExpiry(now.Add(time.Second))
	assert.Equal(t, true, ok)
	assert.Equal(t, TypingTTL-time.Second, d)

	// an overdue claim clamps to zero
	d, ok = tr.NextExpiry(now.Add(10 * time.Second))
	assert.Equal(t, true, ok)
	assert.Equal(t, time.Duration(0), d)
}

// manualTimers captures scheduled callbacks so tests fire them by hand.
type manualTimers struct {
	pending []func()
	stopped int
}

func (m *manualTimers) factory(d time.Duration, fn func()) func() {
	m.pending = append(m.pending, fn)
	return func() { m.stopped++ }
}

func (m *manualTimers) fireLast() {
	m.pending[len(m.pending)-1]()
}

func TestTypingBroadcaster(t *testing.T) {
	var sent []bool
	timers := &manualTimers{}
	b := NewTypingBroadcaster(func(v bool) { sent = append(sent, v) }, timers.factory)

	// each keystroke broadcasts true and resets the single idle timer
	b.Keystroke()
	b.Keystroke()
	assert.Equal(t, []bool{true, true}, sent)
	assert.Equal(t, 2, len(timers.pending))
	assert.Equal(t, 1, timers.stopped)

	// idle expiry broadcasts false
	timers.fireLast()
	assert.Equal(t, []bool{true, true, false}, sent)

	// sending a message forces false and cancels the pending timer
	b.Keystroke()
	b.MessageSent()
	assert.Equal(t, []bool{true, true, false, true, false}, sent)
	assert.Equal(t, 2, timers.stopped)

	// Cancel is silent
	b.Keystroke()
	sent = nil
	b.Cancel()
	assert.Equal(t, 0, len(sent))
}
