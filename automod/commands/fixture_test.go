package commands

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yuno-bot/yuno/automod/engine"
	"github.com/yuno-bot/yuno/automod/event"
)

const (
	testGuild   = 20
	testChannel = 200
	testUser    = 7
)

func engineFixture(t *testing.T) (*engine.Engine, *engine.MockDiscord) {
	set, err := DefaultCommands()
	require.NoError(t, err)
	eng, mock, err := engine.EngineTestFixture(filepath.Join(t.TempDir(), "commands.sqlite"), set)
	require.NoError(t, err)
	return eng, mock
}

var nextMsgID uint64 = 5000

func commandMsg(author uint64, content string) *event.Message {
	nextMsgID++
	return &event.Message{
		ID:        nextMsgID,
		ChannelID: testChannel,
		GuildID:   testGuild,
		Author:    event.Author{ID: author, Username: fmt.Sprintf("user%d", author)},
		Content:   content,
		Timestamp: time.Now(),
	}
}
