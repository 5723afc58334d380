// Per-user message rate and duplicate-content spam detection.
//
// The tracker keeps the last few messages of each (user, guild) pair in a fixed-size ring, and classifies a new message as spam if either too many recent messages fall inside the rate window, or too many of the remembered messages have identical content. Old messages are never purged on read; they age out as the ring overwrites them.
package spamtracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/yuno-bot/yuno/automod/ringhist"
	"github.com/yuno-bot/yuno/automod/slotstore"
)

type Config struct {
	// number of (user, guild) pairs tracked at once
	MaxTrackedUsers int
	// messages remembered per pair
	HistoryDepth           int
	Interval               time.Duration
	MaxMessagesPerInterval int
	DuplicateThreshold     int
}

func DefaultConfig() Config {
	return Config{
		MaxTrackedUsers:        1024,
		HistoryDepth:           10,
		Interval:               5 * time.Second,
		MaxMessagesPerInterval: 5,
		DuplicateThreshold:     3,
	}
}

func (c Config) Validate() error {
	if c.MaxTrackedUsers <= 0 {
		return fmt.Errorf("spam tracker: max tracked users must be positive (got %d)", c.MaxTrackedUsers)
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("spam tracker: history depth must be positive (got %d)", c.HistoryDepth)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("spam tracker: interval must be positive (got %s)", c.Interval)
	}
	if c.MaxMessagesPerInterval <= 0 || c.DuplicateThreshold <= 0 {
		return fmt.Errorf("spam tracker: thresholds must be positive")
	}
	return nil
}

// Outcome of checking a single message.
type Verdict struct {
	// messages (including this one) inside the rate window
	Recent int
	// remembered messages (including this one) with identical content
	Duplicates int
	Rate       bool
	Duplicate  bool
}

func (v Verdict) Spam() bool {
	return v.Rate || v.Duplicate
}

type Tracker struct {
	cfg   Config
	mu    sync.Mutex
	users *slotstore.Store[ringhist.Ring]
	// ring storage for every slot, HistoryDepth records per slot
	backing []ringhist.Record

	// overridable for tests
	Now func() time.Time
}

func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		cfg:     cfg,
		users:   slotstore.New[ringhist.Ring](cfg.MaxTrackedUsers),
		backing: make([]ringhist.Record, cfg.MaxTrackedUsers*cfg.HistoryDepth),
		Now:     time.Now,
	}
	t.users.OnEvict = func(k slotstore.Key, r *ringhist.Ring) {
		trackerEvictions.Inc()
	}
	return t, nil
}

// Computes a fast, non-cryptographic fingerprint of message content (djb2).
func Fingerprint(content string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(content); i++ {
		h = (h << 5) + h + uint32(content[i])
	}
	return h
}

// Records the message and reports whether it looks like spam.
func (t *Tracker) Classify(userID, guildID uint64, content string) bool {
	return t.Check(userID, guildID, content).Spam()
}

// Like Classify, but returns the counts behind the decision.
func (t *Tracker) Check(userID, guildID uint64, content string) Verdict {
	fp := Fingerprint(content)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.Now()
	h, created := t.users.InsertOrGet(slotstore.Key{A: userID, B: guildID})
	ring := t.users.Value(h)
	if created {
		off := int(h) * t.cfg.HistoryDepth
		*ring = ringhist.Over(t.backing[off : off+t.cfg.HistoryDepth])
		trackedUsers.Set(float64(t.users.Len()))
	}
	ring.Push(ringhist.Record{At: now, Fingerprint: fp})

	var v Verdict
	ring.Each(func(rec ringhist.Record) {
		if now.Sub(rec.At) <= t.cfg.Interval {
			v.Recent++
		}
		if rec.Fingerprint == fp {
			v.Duplicates++
		}
	})
	v.Rate = v.Recent >= t.cfg.MaxMessagesPerInterval
	v.Duplicate = v.Duplicates >= t.cfg.DuplicateThreshold
	return v
}

// Forgets all history for the user in the guild. Returns false if nothing was tracked.
func (t *Tracker) Clear(userID, guildID uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok := t.users.Remove(slotstore.Key{A: userID, B: guildID})
	trackedUsers.Set(float64(t.users.Len()))
	return ok
}

// Number of (user, guild) pairs currently tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.users.Len()
}
