package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yuno-bot/yuno/automod"
	"github.com/yuno-bot/yuno/automod/delaytracker"
	"github.com/yuno-bot/yuno/automod/spamtracker"
	"github.com/yuno-bot/yuno/automod/xpbatcher"
	"github.com/yuno-bot/yuno/botstore"
)

func testServer(t *testing.T, adminPassword string) (*Server, *botstore.DBStore) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "yuno.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	store := botstore.NewDBStore(db, "!")
	require.NoError(t, store.AutoMigrate())

	srv, err := NewServer(store, Config{
		Token:           "secret",
		GatewayHost:     "localhost:1",
		APIHost:         "http://localhost:1/api/v10/",
		MasterUsers:     []string{"1001"},
		Bind:            "127.0.0.1:0",
		AdminPassword:   adminPassword,
		CleanupInterval: time.Minute,
		Engine:          automod.DefaultEngineConfig(),
		Spam:            spamtracker.DefaultConfig(),
		XP:              xpbatcher.DefaultConfig(),
		Delays:          delaytracker.DefaultConfig(),
	})
	require.NoError(t, err)
	return srv, store
}

func TestNewServer(t *testing.T) {
	assert := assert.New(t)

	srv, _ := testServer(t, "")
	assert.NotNil(srv.engine.XP)
	_, ok := srv.engine.Commands.Lookup("ping")
	assert.True(ok)
	assert.Nil(srv.engine.Notifier)
	assert.Nil(srv.rdb)

	var err error
	ok, err = srv.engine.Sets.InSet(context.Background(), "master-users", "1001")
	require.NoError(t, err)
	assert.True(ok)
}

func TestHealthCheck(t *testing.T) {
	assert := assert.New(t)

	srv, _ := testServer(t, "")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_health", nil))
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), `"status":"ok"`)
}

func TestAdminFlushXP(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv, store := testServer(t, "hunter2")
	_, err := srv.engine.XP.Add(ctx, 5, 10, 0, 40)
	require.NoError(t, err)

	req := func(auth string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/admin/flush-xp", nil)
		if auth != "" {
			r.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(http.StatusForbidden, req("").Code)
	assert.Equal(http.StatusForbidden, req("Bearer wrong").Code)

	rec := req("Bearer hunter2")
	assert.Equal(http.StatusOK, rec.Code)
	assert.JSONEq(`{"pending":1}`, rec.Body.String())

	xp, _, err := store.ReadXP(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(int64(40), xp)
	assert.Equal(0, srv.engine.XP.Pending())
}

func TestAdminDisabledWithoutPassword(t *testing.T) {
	srv, _ := testServer(t, "")
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/cleanup-sweep", nil)
	r.Header.Set("Authorization", "Bearer ")
	srv.echo.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCleanupSweep(t *testing.T) {
	assert := assert.New(t)

	srv, _ := testServer(t, "hunter2")
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/admin/cleanup-sweep", nil)
	r.Header.Set("Authorization", "Bearer hunter2")
	srv.echo.ServeHTTP(rec, r)
	assert.Equal(http.StatusOK, rec.Code)
	assert.JSONEq(`{"cleaned":[],"skipped":0,"failed":0}`, rec.Body.String())
}
