package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/yuno-bot/yuno/automod"
	"github.com/yuno-bot/yuno/automod/event"
	"github.com/yuno-bot/yuno/discord"
	"github.com/yuno-bot/yuno/util"
)

var gatewaySessionKey = "yuno/gateway-session"

// the gateway only accepts resumes for a few minutes after a disconnect
var gatewaySessionTTL = 5 * time.Minute

type GatewayConsumer struct {
	Logger      *slog.Logger
	RedisClient *redis.Client
	Engine      *automod.Engine
	// gateway host, eg "gateway.discord.gg" or "ws://localhost:8080"
	Host    string
	Gateway *discord.Gateway
	Dialer  *websocket.Dialer
}

func sleepForBackoff(b int) time.Duration {
	if b == 0 {
		return 0
	}
	if b < 10 {
		return time.Millisecond * time.Duration(rand.Intn(500)+(500*b))
	}
	return time.Second * 30
}

// Connects to the gateway and feeds messages to the engine until ctx is done, redialing with backoff whenever the connection drops. Returns early only for errors a redial can't fix, such as a rejected token.
func (gc *GatewayConsumer) Run(ctx context.Context) error {
	if gc.Engine == nil {
		return fmt.Errorf("nil engine")
	}
	if gc.Gateway == nil {
		return fmt.Errorf("nil gateway")
	}

	if err := gc.ReadLastSession(ctx); err != nil {
		gc.Logger.Warn("failed to read gateway session", "err", err)
	}

	dialer := gc.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{
		"User-Agent": []string{fmt.Sprintf("yuno/%s", versioninfo.Short())},
	}
	cb := &discord.GatewayCallbacks{
		Ready: func(evt *discord.Ready) error {
			gc.Engine.SetBotUser(uint64(evt.User.ID))
			return nil
		},
		MessageCreate: func(evt *discord.Message) error {
			return gc.HandleMessage(ctx, evt)
		},
	}

	var backoff int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepForBackoff(backoff)):
		}

		u := util.GatewayURL(gc.Gateway.DialURL(gc.Host), discord.APIVersion)
		gc.Logger.Info("connecting to gateway", "url", u, "resume", gc.Gateway.Resumable(), "backoff", backoff)
		ws, _, err := dialer.DialContext(ctx, u, header)
		if err != nil {
			gc.Logger.Warn("dialing gateway failed", "url", u, "err", err)
			backoff++
			continue
		}

		start := time.Now()
		err = gc.Gateway.Handle(ctx, ws, cb)
		ws.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case errors.Is(err, discord.ErrReconnect), errors.Is(err, discord.ErrInvalidSession):
			gc.Logger.Info("gateway asked for reconnect", "err", err)
		case errors.Is(err, discord.ErrAuthenticationFailed), errors.Is(err, discord.ErrFatalClose):
			return err
		default:
			gc.Logger.Warn("gateway connection failed", "err", err)
		}
		// a connection that stayed up a while starts the backoff over
		if time.Since(start) > time.Minute {
			backoff = 0
		}
		backoff++
	}
}

// Hands a gateway message to the engine. Processing failures are logged, not returned, so they never drop the connection.
func (gc *GatewayConsumer) HandleMessage(ctx context.Context, msg *discord.Message) error {
	evt := &event.Message{
		ID:        uint64(msg.ID),
		ChannelID: uint64(msg.ChannelID),
		GuildID:   uint64(msg.GuildID),
		Author: event.Author{
			ID:       uint64(msg.Author.ID),
			Username: msg.Author.Username,
			Bot:      msg.Author.Bot,
		},
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	if err := gc.Engine.ProcessMessage(ctx, evt); err != nil {
		gc.Logger.Error("engine failed to process message", "message", evt.ID, "channel", evt.ChannelID, "err", err)
	}
	return nil
}

func (gc *GatewayConsumer) ReadLastSession(ctx context.Context) error {
	// if redis isn't configured, just skip
	if gc.RedisClient == nil {
		gc.Logger.Info("redis not configured, skipping session read")
		return nil
	}

	val, err := gc.RedisClient.Get(ctx, gatewaySessionKey).Bytes()
	if err == redis.Nil {
		gc.Logger.Info("no pre-existing gateway session in redis")
		return nil
	} else if err != nil {
		return err
	}
	var sess discord.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return fmt.Errorf("parsing persisted gateway session: %w", err)
	}
	gc.Gateway.RestoreSession(sess)
	gc.Logger.Info("found prior gateway session in redis", "session", sess.ID, "seq", sess.Seq)
	return nil
}

func (gc *GatewayConsumer) PersistSession(ctx context.Context) error {
	// if redis isn't configured, just skip
	if gc.RedisClient == nil {
		return nil
	}
	sess := gc.Gateway.Session()
	if sess.ID == "" {
		return nil
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return gc.RedisClient.Set(ctx, gatewaySessionKey, b, gatewaySessionTTL).Err()
}

// this method runs in a loop, persisting the current session state every 5 seconds
func (gc *GatewayConsumer) RunPersistSession(ctx context.Context) error {
	// if redis isn't configured, just skip
	if gc.RedisClient == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			gc.Logger.Info("persisting final gateway session", "seq", gc.Gateway.Seq())
			if err := gc.PersistSession(context.WithoutCancel(ctx)); err != nil {
				gc.Logger.Error("failed to persist gateway session", "err", err)
			}
			return nil
		case <-ticker.C:
			if err := gc.PersistSession(ctx); err != nil {
				gc.Logger.Error("failed to persist gateway session", "err", err, "seq", gc.Gateway.Seq())
			}
		}
	}
}
