package sync

import (
	"sync"
	"time"
)

// typingIdle - the sender broadcasts typing=false after this much keyboard
// inactivity.
const typingIdle = 2 * time.Second

// TimerFactory schedules fn after d and returns a stop func. The default is
// time.AfterFunc; tests inject a manual trigger.
type TimerFactory func(d time.Duration, fn func()) (stop func())

func afterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// TypingBroadcaster is the sending side of typing indicators. Every
// keystroke broadcasts typing=true immediately and resets the single
// outstanding idle timer; the timer firing broadcasts typing=false. Sending
// a message forces an immediate false regardless of timer state.
type TypingBroadcaster struct {
	send     func(bool)
	newTimer TimerFactory

	mu   sync.Mutex
	stop func()
}

// NewTypingBroadcaster builds a broadcaster that reports transitions through
// send. newTimer may be nil for the real clock.
func NewTypingBroadcaster(send func(bool), newTimer TimerFactory) *TypingBroadcaster {
	if newTimer == nil {
		newTimer = afterFunc
	}
	return &TypingBroadcaster{send: send, newTimer: newTimer}
}

// Keystroke records content-change activity.
func (b *TypingBroadcaster) Keystroke() {
	b.mu.Lock()
	if b.stop != nil {
		b.stop()
	}
	b.stop = b.newTimer(typingIdle, b.expire)
	b.mu.Unlock()

	b.send(true)
}

// MessageSent cancels the idle timer and broadcasts false immediately.
func (b *TypingBroadcaster) MessageSent() {
	b.cancel()
	b.send(false)
}

// Cancel stops any pending broadcast without sending, used on conversation
// switch and shutdown.
func (b *TypingBroadcaster) Cancel() {
	b.cancel()
}

func (b *TypingBroadcaster) cancel() {
	b.mu.Lock()
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	b.mu.Unlock()
}

func (b *TypingBroadcaster) expire() {
	b.mu.Lock()
	b.stop = nil
	b.mu.Unlock()

	b.send(false)
}
