package engine

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/yuno-bot/yuno/automod/cachestore"
	"github.com/yuno-bot/yuno/automod/countstore"
	"github.com/yuno-bot/yuno/automod/delaytracker"
	"github.com/yuno-bot/yuno/automod/setstore"
	"github.com/yuno-bot/yuno/automod/spamtracker"
	"github.com/yuno-bot/yuno/automod/xpbatcher"
	"github.com/yuno-bot/yuno/botstore"
	"github.com/yuno-bot/yuno/discord"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Users the fixture engine treats as privileged.
const (
	FixtureModeratorID  = 1000
	FixtureMasterUserID = 1001
	FixtureBotUserID    = 1
)

type SentMessage struct {
	ChannelID uint64
	Content   string
}

type MemberAction struct {
	GuildID uint64
	UserID  uint64
	Until   time.Time
	Reason  string
}

// In-memory stand-in for the Discord REST client, recording every call.
type MockDiscord struct {
	mu sync.Mutex

	Messages []SentMessage
	Deleted  []uint64
	Purged   map[uint64]int
	Timeouts []MemberAction
	Kicks    []MemberAction
	Bans     []MemberAction
	Unbans   []MemberAction

	// users known to GetUser; others are not found
	Users map[uint64]*discord.User
	// if set, returned by PurgeChannel
	PurgeErr error
	// if set, returned by moderation calls
	ModerationErr error

	nextID uint64
}

var _ Discord = (*MockDiscord)(nil)

func NewMockDiscord() *MockDiscord {
	return &MockDiscord{
		Purged: make(map[uint64]int),
		Users:  make(map[uint64]*discord.User),
		nextID: 10000,
	}
}

func (m *MockDiscord) CreateMessage(ctx context.Context, channelID uint64, content string) (*discord.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Messages = append(m.Messages, SentMessage{ChannelID: channelID, Content: content})
	return &discord.Message{
		ID:        discord.Snowflake(m.nextID),
		ChannelID: discord.Snowflake(channelID),
		Content:   content,
		Author:    discord.User{ID: FixtureBotUserID, Username: "yuno", Bot: true},
	}, nil
}

func (m *MockDiscord) DeleteMessage(ctx context.Context, channelID, messageID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

func (m *MockDiscord) PurgeChannel(ctx context.Context, channelID uint64, count int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PurgeErr != nil {
		return 0, m.PurgeErr
	}
	m.Purged[channelID] += count
	return count, nil
}

func (m *MockDiscord) TimeoutMember(ctx context.Context, guildID, userID uint64, until time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ModerationErr != nil {
		return m.ModerationErr
	}
	m.Timeouts = append(m.Timeouts, MemberAction{GuildID: guildID, UserID: userID, Until: until, Reason: reason})
	return nil
}

func (m *MockDiscord) KickMember(ctx context.Context, guildID, userID uint64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ModerationErr != nil {
		return m.ModerationErr
	}
	m.Kicks = append(m.Kicks, MemberAction{GuildID: guildID, UserID: userID, Reason: reason})
	return nil
}

func (m *MockDiscord) BanMember(ctx context.Context, guildID, userID uint64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ModerationErr != nil {
		return m.ModerationErr
	}
	m.Bans = append(m.Bans, MemberAction{GuildID: guildID, UserID: userID, Reason: reason})
	return nil
}

func (m *MockDiscord) UnbanMember(ctx context.Context, guildID, userID uint64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ModerationErr != nil {
		return m.ModerationErr
	}
	m.Unbans = append(m.Unbans, MemberAction{GuildID: guildID, UserID: userID, Reason: reason})
	return nil
}

func (m *MockDiscord) GetUser(ctx context.Context, userID uint64) (*discord.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[userID]
	if !ok {
		return nil, discord.ErrNotFound
	}
	return u, nil
}

// Content of every message sent so far, in order.
func (m *MockDiscord) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Messages))
	for i, msg := range m.Messages {
		out[i] = msg.Content
	}
	return out
}

// Content of the most recent message, or "" if none was sent.
func (m *MockDiscord) LastSent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Content
}

// Test helper which builds an engine backed by an sqlite database at dbPath, in-memory counters, cache and sets, and a MockDiscord. XP awards are fixed at the minimum gain, and the XP batch never flushes on its own. Intentionally exported, for use in other packages.
func EngineTestFixture(dbPath string, commands *CommandSet) (*Engine, *MockDiscord, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}
	store := botstore.NewDBStore(db, "!")
	if err := store.AutoMigrate(); err != nil {
		return nil, nil, err
	}

	spam, err := spamtracker.New(spamtracker.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}
	delays, err := delaytracker.New(delaytracker.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}

	sets := setstore.NewMemSetStore()
	sets.Add(setstore.Moderators, strconv.Itoa(FixtureModeratorID))
	sets.Add(setstore.MasterUsers, strconv.Itoa(FixtureMasterUserID))

	if commands == nil {
		commands, _ = NewCommandSet()
	}
	mock := NewMockDiscord()
	eng := &Engine{
		Logger:   slog.Default(),
		Store:    store,
		Discord:  mock,
		Spam:     spam,
		Delays:   delays,
		Warnings: countstore.NewMemCountStore(),
		Cache:    cachestore.NewMemCacheStore(100, time.Hour),
		Sets:     sets,
		Commands: commands,
		Config:   DefaultConfig(),
		Rand:     func(n int) int { return 0 },
	}
	eng.XP, err = xpbatcher.New(xpbatcher.Config{MaxPending: 1000, FlushInterval: 24 * time.Hour}, store, eng)
	if err != nil {
		return nil, nil, err
	}
	eng.SetBotUser(FixtureBotUserID)
	return eng, mock, nil
}
