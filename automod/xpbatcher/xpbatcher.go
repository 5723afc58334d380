// Write-back batching of XP gains.
//
// Chat messages award small amounts of XP. Instead of a database round-trip per message, gains are accumulated in memory per (user, guild) and applied in batches, either when the batch fills up or when the flush interval has elapsed. Level-ups are detected at flush time.
//
// Delivery is at-most-once: a pending entry whose persistence fails is dropped, not retried. Pending XP is also lost if the process exits without a final Flush.
package xpbatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/yuno-bot/yuno/automod/slotstore"
)

// Wraps every failure to read or write XP state during a flush.
var ErrPersistence = errors.New("xp persistence failure")

// Authoritative XP storage.
type Store interface {
	ReadXP(ctx context.Context, userID, guildID uint64) (xp int64, level int, err error)
	AddXP(ctx context.Context, userID, guildID uint64, amount int64) error
	SetLevel(ctx context.Context, userID, guildID uint64, level int) error
}

type LevelUpNotifier interface {
	NotifyLevelUp(ctx context.Context, userID, guildID, channelID uint64, level int) error
}

type Config struct {
	MaxPending    int
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxPending:    256,
		FlushInterval: 10 * time.Second,
	}
}

type pendingXP struct {
	channelID uint64
	amount    int64
	addedAt   time.Time
}

// A detached pending entry, as handed to persistence.
type Entry struct {
	UserID    uint64
	GuildID   uint64
	ChannelID uint64
	Amount    int64
	AddedAt   time.Time
}

type LevelUp struct {
	UserID    uint64
	GuildID   uint64
	ChannelID uint64
	Level     int
}

type FlushResult struct {
	Applied  int
	Failed   int
	LevelUps []LevelUp
}

type Batcher struct {
	Logger *slog.Logger
	// overridable for tests
	Now func() time.Time

	cfg      Config
	db       Store
	notifier LevelUpNotifier

	mu        sync.Mutex
	pending   *slotstore.Store[pendingXP]
	lastFlush time.Time

	// serializes flushes, so that two flushes never interleave reads and writes for the same user
	flushMu sync.Mutex
}

// notifier may be nil, in which case level-ups are only persisted.
func New(cfg Config, db Store, notifier LevelUpNotifier) (*Batcher, error) {
	if cfg.MaxPending <= 0 {
		return nil, fmt.Errorf("xp batcher: max pending must be positive (got %d)", cfg.MaxPending)
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("xp batcher: flush interval must be positive (got %s)", cfg.FlushInterval)
	}
	if db == nil {
		return nil, fmt.Errorf("xp batcher: store is required")
	}
	b := &Batcher{
		Logger:   slog.Default(),
		Now:      time.Now,
		cfg:      cfg,
		db:       db,
		notifier: notifier,
		pending:  slotstore.New[pendingXP](cfg.MaxPending),
	}
	b.lastFlush = b.Now()
	return b, nil
}

// Level for a total XP amount: the integer floor of sqrt(total/100).
func Level(totalXP int64) int {
	if totalXP < 100 {
		return 0
	}
	q := totalXP / 100
	r := int64(math.Sqrt(float64(q)))
	// correct float rounding in either direction
	for r*r > q {
		r--
	}
	for (r+1)*(r+1) <= q {
		r++
	}
	return int(r)
}

// XP needed to reach the given level.
func XPForLevel(level int) int64 {
	return int64(level) * int64(level) * 100
}

// Queues an XP gain. If this fills the batch, or the flush interval has elapsed, the batch is flushed before returning; the result and error are those of that flush.
func (b *Batcher) Add(ctx context.Context, userID, guildID, channelID uint64, amount int64) (*FlushResult, error) {
	k := slotstore.Key{A: userID, B: guildID}

	b.mu.Lock()
	now := b.Now()
	var overflow []Entry
	if _, ok := b.pending.Peek(k); !ok && b.pending.Len() >= b.pending.Cap() {
		// a concurrent Add filled the batch before its flush ran; never evict unflushed XP
		overflow = b.drainLocked()
	}
	h, created := b.pending.InsertOrGet(k)
	p := b.pending.Value(h)
	if created {
		p.amount = amount
		p.addedAt = now
	} else {
		p.amount += amount
	}
	p.channelID = channelID
	pendingEntries.Set(float64(b.pending.Len()))
	due := b.pending.Len() >= b.cfg.MaxPending || now.Sub(b.lastFlush) >= b.cfg.FlushInterval
	b.mu.Unlock()

	if overflow != nil {
		b.flushMu.Lock()
		defer b.flushMu.Unlock()
		return b.persist(ctx, overflow)
	}
	if !due {
		return nil, nil
	}
	return b.Flush(ctx)
}

func (b *Batcher) drain() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drainLocked()
}

// detaches all pending entries and resets the store. caller holds mu.
func (b *Batcher) drainLocked() []Entry {
	b.lastFlush = b.Now()
	if b.pending.Len() == 0 {
		return nil
	}
	entries := make([]Entry, 0, b.pending.Len())
	b.pending.Range(func(k slotstore.Key, p *pendingXP) bool {
		entries = append(entries, Entry{
			UserID:    k.A,
			GuildID:   k.B,
			ChannelID: p.channelID,
			Amount:    p.amount,
			AddedAt:   p.addedAt,
		})
		return true
	})
	b.pending.Reset()
	pendingEntries.Set(0)
	return entries
}

// Applies all pending XP to the store, persisting level changes and sending level-up notifications. Failed entries are discarded; their errors are joined into the returned error, each wrapping ErrPersistence.
//
// The batch is detached before any I/O, so concurrent Add calls are not blocked while a flush runs.
func (b *Batcher) Flush(ctx context.Context) (*FlushResult, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	return b.persist(ctx, b.drain())
}

// caller holds flushMu
func (b *Batcher) persist(ctx context.Context, entries []Entry) (*FlushResult, error) {
	res := &FlushResult{}
	if len(entries) == 0 {
		return res, nil
	}

	start := time.Now()
	defer func() {
		flushDuration.Observe(time.Since(start).Seconds())
	}()

	var errs []error
	for _, e := range entries {
		lu, err := b.apply(ctx, e)
		if err != nil {
			res.Failed++
			errs = append(errs, err)
			flushedEntries.WithLabelValues("failed").Inc()
			b.Logger.Warn("dropping pending xp", "user", e.UserID, "guild", e.GuildID, "amount", e.Amount, "err", err)
			continue
		}
		res.Applied++
		flushedEntries.WithLabelValues("applied").Inc()
		if lu != nil {
			levelUps.Inc()
			res.LevelUps = append(res.LevelUps, *lu)
		}
	}
	b.Logger.Debug("flushed pending xp", "applied", res.Applied, "failed", res.Failed, "levelups", len(res.LevelUps))
	return res, errors.Join(errs...)
}

func (b *Batcher) apply(ctx context.Context, e Entry) (*LevelUp, error) {
	xp, level, err := b.db.ReadXP(ctx, e.UserID, e.GuildID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading xp for %d/%d: %w", ErrPersistence, e.UserID, e.GuildID, err)
	}
	if err := b.db.AddXP(ctx, e.UserID, e.GuildID, e.Amount); err != nil {
		return nil, fmt.Errorf("%w: adding xp for %d/%d: %w", ErrPersistence, e.UserID, e.GuildID, err)
	}

	newLevel := Level(xp + e.Amount)
	if newLevel <= level {
		return nil, nil
	}
	if err := b.db.SetLevel(ctx, e.UserID, e.GuildID, newLevel); err != nil {
		return nil, fmt.Errorf("%w: setting level for %d/%d: %w", ErrPersistence, e.UserID, e.GuildID, err)
	}
	lu := &LevelUp{
		UserID:    e.UserID,
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		Level:     newLevel,
	}
	if b.notifier != nil {
		// the level is already persisted; a failed notification is not a persistence failure
		if err := b.notifier.NotifyLevelUp(ctx, e.UserID, e.GuildID, e.ChannelID, newLevel); err != nil {
			b.Logger.Warn("level-up notification failed", "user", e.UserID, "guild", e.GuildID, "level", newLevel, "err", err)
		}
	}
	return lu, nil
}

// Number of (user, guild) pairs with pending XP.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.Len()
}

func (b *Batcher) LastFlush() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFlush
}
