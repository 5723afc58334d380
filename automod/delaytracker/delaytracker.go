// Per-channel postponement of scheduled auto-clean runs.
//
// Moderators may push back the next cleanup of a channel a limited number of times per cleanup cycle. The periodic sweep skips delayed channels, and a completed cleanup starts a new cycle for the channel.
package delaytracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuno-bot/yuno/automod/slotstore"
)

// Returned by Request when the channel has used up its delays for the current cycle.
var ErrCapacityExceeded = errors.New("delay limit reached for this cleanup cycle")

var ErrInvalidDelay = errors.New("delay must be positive")

type Config struct {
	// number of channels tracked at once
	MaxChannels       int
	MaxDelaysPerCycle int
}

func DefaultConfig() Config {
	return Config{
		MaxChannels:       256,
		MaxDelaysPerCycle: 3,
	}
}

type entry struct {
	count int
	until time.Time
}

// A channel with auto-clean enabled.
type Channel struct {
	GuildID   uint64
	ChannelID uint64
}

// Performs the actual cleanup of a channel.
type Cleaner interface {
	Clean(ctx context.Context, ch Channel) error
}

type CleanerFunc func(ctx context.Context, ch Channel) error

func (f CleanerFunc) Clean(ctx context.Context, ch Channel) error {
	return f(ctx, ch)
}

type SweepResult struct {
	Cleaned []Channel
	Skipped []Channel
	Failed  []Channel
}

type Tracker struct {
	Logger *slog.Logger
	// overridable for tests
	Now func() time.Time

	cfg      Config
	mu       sync.Mutex
	channels *slotstore.Store[entry]
}

func New(cfg Config) (*Tracker, error) {
	if cfg.MaxChannels <= 0 {
		return nil, fmt.Errorf("delay tracker: max channels must be positive (got %d)", cfg.MaxChannels)
	}
	if cfg.MaxDelaysPerCycle < 0 {
		return nil, fmt.Errorf("delay tracker: max delays per cycle must not be negative (got %d)", cfg.MaxDelaysPerCycle)
	}
	t := &Tracker{
		Logger:   slog.Default(),
		Now:      time.Now,
		cfg:      cfg,
		channels: slotstore.New[entry](cfg.MaxChannels),
	}
	t.channels.OnEvict = func(k slotstore.Key, e *entry) {
		delayEvictions.Inc()
	}
	return t, nil
}

func channelKey(guildID, channelID uint64) slotstore.Key {
	return slotstore.Key{A: guildID, B: channelID}
}

// Postpones the next cleanup of the channel until d from now, returning the new deadline. Fails with ErrCapacityExceeded once the per-cycle limit is used up; a rejected request leaves the existing delay in place.
func (t *Tracker) Request(guildID, channelID uint64, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, ErrInvalidDelay
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	h, _ := t.channels.InsertOrGet(channelKey(guildID, channelID))
	e := t.channels.Value(h)
	if e.count >= t.cfg.MaxDelaysPerCycle {
		delayRequests.WithLabelValues("rejected").Inc()
		return time.Time{}, ErrCapacityExceeded
	}
	e.count++
	e.until = t.Now().Add(d)
	delayRequests.WithLabelValues("accepted").Inc()
	return e.until, nil
}

// Delays left in the current cycle.
func (t *Tracker) Remaining(guildID, channelID uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.channels.Peek(channelKey(guildID, channelID))
	if !ok {
		return t.cfg.MaxDelaysPerCycle
	}
	return t.cfg.MaxDelaysPerCycle - t.channels.Value(h).count
}

// Deadline of the active delay, if any.
func (t *Tracker) DelayedUntil(guildID, channelID uint64) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.channels.Peek(channelKey(guildID, channelID))
	if !ok {
		return time.Time{}, false
	}
	e := t.channels.Value(h)
	if !e.until.After(t.Now()) {
		return time.Time{}, false
	}
	return e.until, true
}

// Starts a new cycle for the channel. No-op for untracked channels.
func (t *Tracker) Reset(guildID, channelID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.channels.Peek(channelKey(guildID, channelID))
	if !ok {
		return
	}
	*t.channels.Value(h) = entry{}
}

func (t *Tracker) delayed(ch Channel) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.channels.Peek(channelKey(ch.GuildID, ch.ChannelID))
	if !ok {
		return false
	}
	return t.channels.Value(h).until.After(t.Now())
}

// Cleans every channel that is not currently delayed, resetting its delay state on success. A failed cleanup leaves the delay state as it was. The tracker lock is not held while the cleaner runs.
func (t *Tracker) Sweep(ctx context.Context, channels []Channel, cleaner Cleaner) (*SweepResult, error) {
	res := &SweepResult{}
	var errs []error
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if t.delayed(ch) {
			res.Skipped = append(res.Skipped, ch)
			sweepChannels.WithLabelValues("delayed").Inc()
			continue
		}
		if err := cleaner.Clean(ctx, ch); err != nil {
			res.Failed = append(res.Failed, ch)
			errs = append(errs, fmt.Errorf("cleaning channel %d in guild %d: %w", ch.ChannelID, ch.GuildID, err))
			sweepChannels.WithLabelValues("failed").Inc()
			t.Logger.Warn("auto-clean failed", "guild", ch.GuildID, "channel", ch.ChannelID, "err", err)
			continue
		}
		t.Reset(ch.GuildID, ch.ChannelID)
		res.Cleaned = append(res.Cleaned, ch)
		sweepChannels.WithLabelValues("cleaned").Inc()
	}
	return res, errors.Join(errs...)
}

// Number of channels with delay state.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels.Len()
}

func (t *Tracker) MaxDelaysPerCycle() int {
	return t.cfg.MaxDelaysPerCycle
}
