package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/yuno-bot/yuno/util"
	"golang.org/x/time/rate"
)

const (
	APIVersion     = 10
	DefaultAPIHost = "https://discord.com/api/v10"

	// bulk delete only accepts this many IDs per request
	BulkDeleteMax = 100
	// and rejects messages older than this
	BulkDeleteMaxAge = 14 * 24 * time.Hour
)

// Returned by operations that reference an unknown user, member, channel or message.
var ErrNotFound = errors.New("discord: not found")

type Client struct {
	// defaults to util.RobustHTTPClient()
	Client    *http.Client
	Host      string
	Token     string
	UserAgent string
	Limiter   *rate.Limiter
	Logger    *slog.Logger

	// overridable for tests
	Now func() time.Time
}

func NewClient(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Client:    util.RobustHTTPClient(logger),
		Host:      DefaultAPIHost,
		Token:     token,
		UserAgent: fmt.Sprintf("DiscordBot (https://github.com/yuno-bot/yuno, %s)", versioninfo.Short()),
		// global limit is 50 req/sec; stay well under
		Limiter: rate.NewLimiter(rate.Limit(40), 10),
		Logger:  logger.With("system", "discord"),
		Now:     time.Now,
	}
}

func (c *Client) do(ctx context.Context, method, path, reason string, body, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.Token)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(reason))
	}

	client := c.Client
	if client == nil {
		client = util.RobustHTTPClient(c.Logger)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// Sends a message. Only user mentions are allowed to ping.
func (c *Client) CreateMessage(ctx context.Context, channelID uint64, content string) (*Message, error) {
	params := CreateMessageParams{
		Content:         content,
		AllowedMentions: &AllowedMentions{Parse: []string{"users"}},
	}
	var msg Message
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%d/messages", channelID), "", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID), "", nil, nil)
}

// Fetches up to limit (1..100) messages, newest first. If before is non-zero, only messages older than that ID are returned.
func (c *Client) ListMessages(ctx context.Context, channelID uint64, limit int, before uint64) ([]Message, error) {
	if limit < 1 || limit > 100 {
		return nil, fmt.Errorf("message list limit out of range: %d", limit)
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before != 0 {
		q.Set("before", strconv.FormatUint(before, 10))
	}
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/channels/%d/messages?%s", channelID, q.Encode()), "", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Deletes 2..100 messages in a single request.
func (c *Client) BulkDeleteMessages(ctx context.Context, channelID uint64, messageIDs []uint64) error {
	if len(messageIDs) < 2 || len(messageIDs) > BulkDeleteMax {
		return fmt.Errorf("bulk delete needs 2 to %d messages, got %d", BulkDeleteMax, len(messageIDs))
	}
	ids := make([]Snowflake, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = Snowflake(id)
	}
	body := map[string][]Snowflake{"messages": ids}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%d/messages/bulk-delete", channelID), "", body, nil)
}

// Deletes up to count of the newest messages in a channel, returning how many were removed. Messages too old for bulk deletion are deleted one at a time.
func (c *Client) PurgeChannel(ctx context.Context, channelID uint64, count int) (int, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	deleted := 0
	var before uint64
	for deleted < count {
		limit := min(count-deleted, 100)
		msgs, err := c.ListMessages(ctx, channelID, limit, before)
		if err != nil {
			return deleted, err
		}
		if len(msgs) == 0 {
			break
		}

		cutoff := now().Add(-BulkDeleteMaxAge + time.Minute)
		var recent, old []uint64
		for _, m := range msgs {
			if m.Timestamp.After(cutoff) {
				recent = append(recent, uint64(m.ID))
			} else {
				old = append(old, uint64(m.ID))
			}
		}
		before = uint64(msgs[len(msgs)-1].ID)

		if len(recent) >= 2 {
			if err := c.BulkDeleteMessages(ctx, channelID, recent); err != nil {
				return deleted, err
			}
			deleted += len(recent)
		} else {
			old = append(recent, old...)
		}
		for _, id := range old {
			if err := c.DeleteMessage(ctx, channelID, id); err != nil && !errors.Is(err, ErrNotFound) {
				return deleted, err
			}
			deleted++
		}

		if len(msgs) < limit {
			break
		}
	}
	c.Logger.Info("purged channel", "channel", channelID, "deleted", deleted)
	return deleted, nil
}

// Disables communication for a guild member until the given time.
func (c *Client) TimeoutMember(ctx context.Context, guildID, userID uint64, until time.Time, reason string) error {
	body := map[string]string{"communication_disabled_until": until.UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/guilds/%d/members/%d", guildID, userID), reason, body, nil)
}

func (c *Client) KickMember(ctx context.Context, guildID, userID uint64, reason string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/guilds/%d/members/%d", guildID, userID), reason, nil, nil)
}

func (c *Client) BanMember(ctx context.Context, guildID, userID uint64, reason string) error {
	body := map[string]int{"delete_message_seconds": 0}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/guilds/%d/bans/%d", guildID, userID), reason, body, nil)
}

func (c *Client) UnbanMember(ctx context.Context, guildID, userID uint64, reason string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/guilds/%d/bans/%d", guildID, userID), reason, nil, nil)
}

func (c *Client) GetUser(ctx context.Context, userID uint64) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", userID), "", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
