package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yuno-bot/yuno/models"
)

type SlackNotifier struct {
	SlackWebhookURL string
	// defaults to http.DefaultClient
	Client *http.Client
}

func (n *SlackNotifier) SendModAction(ctx context.Context, act *models.ModAction) error {
	return n.sendSlackMsg(ctx, slackBody(act))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(act *models.ModAction) string {
	msg := fmt.Sprintf("🔪 Yuno Mod Action: `%s`\n", act.ActionType)
	msg += fmt.Sprintf("Guild `%d` / target `%d` / moderator `%d`\n", act.GuildID, act.TargetID, act.ModeratorID)
	if act.Reason != "" {
		msg += fmt.Sprintf("Reason: %s\n", act.Reason)
	}
	return msg
}
