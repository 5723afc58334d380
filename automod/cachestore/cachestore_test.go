package cachestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuno-bot/yuno/models"
)

type settings struct {
	Prefix  string `json:"prefix"`
	Enabled bool   `json:"enabled"`
}

func testCacheStore(t *testing.T, cs CacheStore) {
	assert := assert.New(t)
	ctx := context.Background()

	var out settings
	ok, err := GetJSON(ctx, cs, "guild-settings", "10", &out)
	assert.NoError(err)
	assert.False(ok)

	in := settings{Prefix: "?", Enabled: true}
	assert.NoError(SetJSON(ctx, cs, "guild-settings", "10", in))
	ok, err = GetJSON(ctx, cs, "guild-settings", "10", &out)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(in, out)

	assert.NoError(cs.Purge(ctx, "guild-settings", "10"))
	ok, err = GetJSON(ctx, cs, "guild-settings", "10", &out)
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(cs.Purge(ctx, "guild-settings", "missing"))
}

func TestMemCacheStore(t *testing.T) {
	testCacheStore(t, NewMemCacheStore(100, time.Minute))
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(100, 10*time.Millisecond)
	assert.NoError(cs.Set(ctx, "guild-settings", "10", "{}"))
	time.Sleep(50 * time.Millisecond)
	v, err := cs.Get(ctx, "guild-settings", "10")
	assert.NoError(err)
	assert.Empty(v)
}

func TestCorruptCacheEntry(t *testing.T) {
	ctx := context.Background()
	cs := NewMemCacheStore(100, time.Minute)
	require.NoError(t, cs.Set(ctx, "guild-settings", "10", "not json"))

	var out settings
	_, err := GetJSON(ctx, cs, "guild-settings", "10", &out)
	assert.Error(t, err)
}

func TestRedisCacheStore(t *testing.T) {
	redisURL := os.Getenv("YUNO_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("set YUNO_TEST_REDIS_URL to run redis tests")
	}
	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()).Err())

	// without the local tier, so purges are visible immediately
	testCacheStore(t, NewRedisCacheStore(rdb, RedisCacheConfig{TTL: time.Minute}))

	cfg := DefaultRedisCacheConfig()
	cfg.TTL = time.Minute
	testGuildSettings(t, NewRedisCacheStore(rdb, cfg))
}

func testGuildSettings(t *testing.T, cs CacheStore) {
	assert := assert.New(t)
	ctx := context.Background()

	_, ok, err := GetGuildSettings(ctx, cs, 30)
	assert.NoError(err)
	assert.False(ok)

	in := &models.GuildSettings{GuildID: 30, Prefix: "y!", SpamFilterEnabled: true}
	assert.NoError(SetGuildSettings(ctx, cs, in))
	out, ok, err := GetGuildSettings(ctx, cs, 30)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(in, out)

	_, ok, err = GetGuildSettings(ctx, cs, 31)
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(PurgeGuildSettings(ctx, cs, 30))
	_, ok, err = GetGuildSettings(ctx, cs, 30)
	assert.NoError(err)
	assert.False(ok)
}

func TestGuildSettingsMem(t *testing.T) {
	testGuildSettings(t, NewMemCacheStore(100, time.Minute))
}

func TestGuildSettingsWrongGuild(t *testing.T) {
	ctx := context.Background()
	cs := NewMemCacheStore(100, time.Minute)
	require.NoError(t, cs.Set(ctx, "guild-settings", "30", "{}"))

	_, ok, err := GetGuildSettings(ctx, cs, 30)
	assert.NoError(t, err)
	assert.False(t, ok)
}
