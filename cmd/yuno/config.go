package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	cli "github.com/urfave/cli/v2"
)

// JSON config file, as written for earlier versions of the bot. Every key is optional.
type fileConfig struct {
	DiscordToken    string   `json:"discord_token"`
	DefaultPrefix   string   `json:"default_prefix"`
	DatabasePath    string   `json:"database_path"`
	MasterUsers     []string `json:"master_users"`
	SpamMaxWarnings int      `json:"spam_max_warnings"`
	DMMessage       string   `json:"dm_message"`
	RedisURL        string   `json:"redis_url"`
	SlackWebhookURL string   `json:"slack_webhook_url"`
}

func readFileConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &fc, nil
}

// Copies values from the --config file into flags which were not set on the command line or through the environment. Flags the current command doesn't define are skipped.
func applyConfigFile(cctx *cli.Context) error {
	path := cctx.String("config")
	if path == "" {
		return nil
	}
	fc, err := readFileConfig(path)
	if err != nil {
		return err
	}

	defined := make(map[string]bool)
	flags := cctx.App.Flags
	if cctx.Command != nil {
		flags = append(flags[:len(flags):len(flags)], cctx.Command.Flags...)
	}
	for _, f := range flags {
		for _, name := range f.Names() {
			defined[name] = true
		}
	}

	values := map[string]string{
		"discord-token":     fc.DiscordToken,
		"default-prefix":    fc.DefaultPrefix,
		"database-url":      fc.DatabasePath,
		"dm-reply":          fc.DMMessage,
		"redis-url":         fc.RedisURL,
		"slack-webhook-url": fc.SlackWebhookURL,
		"master-users":      strings.Join(fc.MasterUsers, ","),
	}
	if fc.SpamMaxWarnings > 0 {
		values["spam-max-warnings"] = strconv.Itoa(fc.SpamMaxWarnings)
	}
	for name, val := range values {
		if val == "" || !defined[name] || cctx.IsSet(name) {
			continue
		}
		if err := cctx.Set(name, val); err != nil {
			return fmt.Errorf("applying config file value for %s: %w", name, err)
		}
	}
	return nil
}
