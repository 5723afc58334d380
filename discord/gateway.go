package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultGatewayHost = "gateway.discord.gg"

// gateway opcodes
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpResume         = 6
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatACK   = 11
)

// gateway intents
const (
	IntentGuilds         = 1 << 0
	IntentGuildMessages  = 1 << 9
	IntentDirectMessages = 1 << 12
	IntentMessageContent = 1 << 15

	DefaultIntents = IntentGuilds | IntentGuildMessages | IntentDirectMessages | IntentMessageContent
)

var (
	// The server asked for a reconnect, or stopped acknowledging heartbeats. The session can be resumed.
	ErrReconnect = errors.New("gateway requested reconnect")
	// The session was invalidated by the server.
	ErrInvalidSession = errors.New("gateway session invalidated")
	// The token was rejected; redialing will not help.
	ErrAuthenticationFailed = errors.New("gateway authentication failed")
	// The server closed the connection with a code that redialing will not fix.
	ErrFatalClose = errors.New("gateway closed the connection")
)

// Close codes after which the connection must not be retried.
var fatalCloseCodes = map[int]error{
	4004: ErrAuthenticationFailed,
	4010: fmt.Errorf("%w: invalid shard", ErrFatalClose),
	4011: fmt.Errorf("%w: sharding required", ErrFatalClose),
	4012: fmt.Errorf("%w: invalid API version", ErrFatalClose),
	4013: fmt.Errorf("%w: invalid intents", ErrFatalClose),
	4014: fmt.Errorf("%w: disallowed intents", ErrFatalClose),
}

type Frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type outFrame struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identify struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

type GatewayCallbacks struct {
	Ready         func(evt *Ready) error
	MessageCreate func(evt *Message) error
}

// Session state for one bot login. It survives reconnects, so that a redialed connection can resume rather than identify again.
type Gateway struct {
	Token   string
	Intents int
	Logger  *slog.Logger

	mu        sync.Mutex
	sessionID string
	resumeURL string
	seq       int64
}

func NewGateway(token string, intents int, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		Token:   token,
		Intents: intents,
		Logger:  logger.With("system", "gateway"),
	}
}

// Whether the next connection will attempt to resume.
func (g *Gateway) Resumable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID != ""
}

func (g *Gateway) Seq() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// URL the next connection should dial: the resume URL from READY when resuming, otherwise the given default.
func (g *Gateway) DialURL(fallback string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionID != "" && g.resumeURL != "" {
		return g.resumeURL
	}
	return fallback
}

// Resumable session state, as persisted between process restarts.
type Session struct {
	ID        string `json:"id"`
	ResumeURL string `json:"resume_url"`
	Seq       int64  `json:"seq"`
}

// Current session state. ID is empty when there is nothing to resume.
func (g *Gateway) Session() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Session{ID: g.sessionID, ResumeURL: g.resumeURL, Seq: g.seq}
}

// Loads previously persisted state, so the next connection resumes instead of identifying.
func (g *Gateway) RestoreSession(s Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionID = s.ID
	g.resumeURL = s.ResumeURL
	g.seq = s.Seq
}

func (g *Gateway) clearSession() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionID = ""
	g.resumeURL = ""
	g.seq = 0
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(op int, d any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return c.ws.WriteJSON(outFrame{Op: op, D: d})
}

// Runs the gateway protocol over an established connection until it ends: hello, identify or resume, heartbeats, and event dispatch. Always returns a non-nil error; ErrReconnect and ErrInvalidSession mean the caller should redial. Callback errors are logged, not returned.
func (g *Gateway) Handle(ctx context.Context, ws *websocket.Conn, cb *GatewayCallbacks) error {
	outer := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &conn{ws: ws}
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	var f Frame
	if err := ws.ReadJSON(&f); err != nil {
		return g.readError(outer, ctx, err)
	}
	if f.Op != OpHello {
		return fmt.Errorf("expected gateway hello, got op %d", f.Op)
	}
	var h hello
	if err := json.Unmarshal(f.D, &h); err != nil {
		return fmt.Errorf("parsing gateway hello: %w", err)
	}
	if h.HeartbeatInterval <= 0 {
		return fmt.Errorf("invalid heartbeat interval: %d", h.HeartbeatInterval)
	}

	if err := g.login(c); err != nil {
		return err
	}

	var acked sync.Mutex
	ackPending := false
	go func() {
		t := time.NewTicker(time.Duration(h.HeartbeatInterval) * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				acked.Lock()
				missed := ackPending
				ackPending = true
				acked.Unlock()
				if missed {
					g.Logger.Warn("heartbeat not acknowledged, dropping connection")
					cancel()
					return
				}
				if err := c.send(OpHeartbeat, g.Seq()); err != nil {
					g.Logger.Warn("failed to send heartbeat", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			return g.readError(outer, ctx, err)
		}
		if f.S != nil {
			g.mu.Lock()
			g.seq = *f.S
			g.mu.Unlock()
		}

		switch f.Op {
		case OpDispatch:
			if err := g.dispatch(&f, cb); err != nil {
				g.Logger.Error("gateway event handler failed", "event", f.T, "err", err)
			}
		case OpHeartbeat:
			if err := c.send(OpHeartbeat, g.Seq()); err != nil {
				return fmt.Errorf("sending requested heartbeat: %w", err)
			}
		case OpHeartbeatACK:
			acked.Lock()
			ackPending = false
			acked.Unlock()
		case OpReconnect:
			return ErrReconnect
		case OpInvalidSession:
			var resumable bool
			_ = json.Unmarshal(f.D, &resumable)
			if !resumable {
				g.clearSession()
			}
			return ErrInvalidSession
		default:
			g.Logger.Debug("ignoring gateway frame", "op", f.Op)
		}
	}
}

func (g *Gateway) login(c *conn) error {
	g.mu.Lock()
	sessionID, seq := g.sessionID, g.seq
	g.mu.Unlock()

	if sessionID != "" {
		g.Logger.Info("resuming gateway session", "session", sessionID, "seq", seq)
		return c.send(OpResume, resume{Token: g.Token, SessionID: sessionID, Seq: seq})
	}
	g.Logger.Info("identifying to gateway", "intents", g.Intents)
	return c.send(OpIdentify, identify{
		Token:   g.Token,
		Intents: g.Intents,
		Properties: identifyProperties{
			OS:      runtime.GOOS,
			Browser: "yuno",
			Device:  "yuno",
		},
	})
}

func (g *Gateway) dispatch(f *Frame, cb *GatewayCallbacks) error {
	switch f.T {
	case "READY":
		var evt Ready
		if err := json.Unmarshal(f.D, &evt); err != nil {
			return fmt.Errorf("parsing READY: %w", err)
		}
		g.mu.Lock()
		g.sessionID = evt.SessionID
		g.resumeURL = evt.ResumeGatewayURL
		g.mu.Unlock()
		g.Logger.Info("gateway ready", "user", evt.User.Username, "session", evt.SessionID)
		if cb != nil && cb.Ready != nil {
			return cb.Ready(&evt)
		}
	case "RESUMED":
		g.Logger.Info("gateway session resumed")
	case "MESSAGE_CREATE":
		if cb == nil || cb.MessageCreate == nil {
			return nil
		}
		var evt Message
		if err := json.Unmarshal(f.D, &evt); err != nil {
			return fmt.Errorf("parsing MESSAGE_CREATE: %w", err)
		}
		return cb.MessageCreate(&evt)
	}
	return nil
}

func (g *Gateway) readError(outer, ctx context.Context, err error) error {
	if outer.Err() != nil {
		return outer.Err()
	}
	if ctx.Err() != nil {
		// connection dropped after a missed heartbeat ack
		return ErrReconnect
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if fatal, ok := fatalCloseCodes[ce.Code]; ok {
			g.clearSession()
			return fmt.Errorf("%w (close code %d: %s)", fatal, ce.Code, ce.Text)
		}
	}
	return fmt.Errorf("reading gateway frame: %w", err)
}
