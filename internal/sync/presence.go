package sync

import (
	"sort"
	"time"
)

const (
	// OnlineWindow - a user is online iff their last heartbeat is younger
	// than this.
	OnlineWindow = 30 * time.Minute

	// TypingTTL - a peer's typing=true expires locally after this much
	// silence, covering the case where the final "stopped typing" event
	// never arrives.
	TypingTTL = 3 * time.Second

	// HeartbeatInterval - how often the engine bumps its own lastSeen.
	HeartbeatInterval = 30 * time.Second
)

// IsOnline reports whether a lastSeen timestamp counts as online at the
// given instant. Pure; a zero lastSeen is offline.
func IsOnline(lastSeen, now time.Time) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen) < OnlineWindow
}

// TypingTracker is the receiving side of typing indicators: it remembers
// when each peer last claimed to be typing and expires unrefreshed claims
// after TypingTTL instead of trusting them indefinitely.
type TypingTracker struct {
	last map[string]time.Time // userID -> local receipt time of typing=true
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{last: make(map[string]time.Time)}
}

// Observe folds one typing event in. An explicit false clears the peer
// immediately; a true stamps the receipt time.
func (t *TypingTracker) Observe(userID string, isTyping bool, now time.Time) {
	if isTyping {
		t.last[userID] = now
	} else {
		delete(t.last, userID)
	}
}

// ActiveTypists returns the peers whose typing claim is still fresh at now,
// excluding the local user, sorted for stable output. Expired entries are
// pruned as a side effect.
func (t *TypingTracker) ActiveTypists(now time.Time, excludeUserID string) []string {
	var active []string
	for userID, at := range t.last {
		if now.Sub(at) >= TypingTTL {
			delete(t.last, userID)
			continue
		}
		if userID == excludeUserID {
			continue
		}
		active = append(active, userID)
	}
	sort.Strings(active)
	return active
}

// NextExpiry returns how long until the earliest typing claim goes stale,
// so the engine can schedule a sweep; ok is false when nothing is pending.
func (t *TypingTracker) NextExpiry(now time.Time) (time.Duration, bool) {
	var earliest time.Time
	for _, at := range t.last {
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}
	if earliest.IsZero() {
		return 0, false
	}
	d := earliest.Add(TypingTTL).Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Reset drops all tracked peers, used on conversation switch.
func (t *TypingTracker) Reset() {
	t.last = make(map[string]time.Time)
}
