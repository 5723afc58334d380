package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuno-bot/yuno/automod/helpers"
	"github.com/yuno-bot/yuno/models"

	cli "github.com/urfave/cli/v2"
)

func parseUserArg(cctx *cli.Context) (uint64, error) {
	arg := cctx.Args().First()
	if arg == "" {
		return 0, fmt.Errorf("need to provide a user ID as an argument")
	}
	id, ok := helpers.ParseUserMention(arg)
	if !ok {
		return 0, fmt.Errorf("invalid user ID: %q", arg)
	}
	return id, nil
}

var botBanCmd = &cli.Command{
	Name:      "botban",
	Usage:     "make the bot ignore a user everywhere",
	ArgsUsage: "<user-id> [reason]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "banned-by",
			Usage: "recorded as the author of the ban",
			Value: "console",
		},
	},
	Action: func(cctx *cli.Context) error {
		if err := applyConfigFile(cctx); err != nil {
			return err
		}
		ctx := context.Background()
		userID, err := parseUserArg(cctx)
		if err != nil {
			return err
		}
		reason := strings.Join(cctx.Args().Tail(), " ")
		if reason == "" {
			reason = "No reason provided"
		}

		store, err := configStore(cctx, configLogger(cctx))
		if err != nil {
			return err
		}
		ban := &models.BotBan{
			UserID:   userID,
			BannedBy: cctx.String("banned-by"),
			Reason:   reason,
		}
		if err := store.BotBan(ctx, ban); err != nil {
			return err
		}
		fmt.Printf("bot-banned user %d: %s\n", userID, reason)
		return nil
	},
}

var botUnbanCmd = &cli.Command{
	Name:      "botunban",
	Usage:     "remove a bot-level ban",
	ArgsUsage: "<user-id>",
	Action: func(cctx *cli.Context) error {
		if err := applyConfigFile(cctx); err != nil {
			return err
		}
		ctx := context.Background()
		userID, err := parseUserArg(cctx)
		if err != nil {
			return err
		}
		store, err := configStore(cctx, configLogger(cctx))
		if err != nil {
			return err
		}
		removed, err := store.BotUnban(ctx, userID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("user %d was not bot-banned", userID)
		}
		fmt.Printf("removed bot-ban for user %d\n", userID)
		return nil
	},
}

var botBanListCmd = &cli.Command{
	Name:  "botbanlist",
	Usage: "list bot-banned users",
	Action: func(cctx *cli.Context) error {
		if err := applyConfigFile(cctx); err != nil {
			return err
		}
		ctx := context.Background()
		store, err := configStore(cctx, configLogger(cctx))
		if err != nil {
			return err
		}
		bans, err := store.ListBotBans(ctx)
		if err != nil {
			return err
		}
		if len(bans) == 0 {
			fmt.Println("no bot-banned users")
			return nil
		}
		for _, b := range bans {
			fmt.Printf("%d\t%s\t%s\t%s\n", b.UserID, b.CreatedAt.Format(time.RFC3339), b.BannedBy, b.Reason)
		}
		return nil
	},
}

var inboxCmd = &cli.Command{
	Name:  "inbox",
	Usage: "show direct messages sent to the bot, marking them read",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Value: 25,
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "include messages already read",
		},
	},
	Action: func(cctx *cli.Context) error {
		if err := applyConfigFile(cctx); err != nil {
			return err
		}
		ctx := context.Background()
		store, err := configStore(cctx, configLogger(cctx))
		if err != nil {
			return err
		}
		dms, err := store.ListDMs(ctx, cctx.Int("limit"), !cctx.Bool("all"))
		if err != nil {
			return err
		}
		if len(dms) == 0 {
			fmt.Println("inbox is empty")
			return nil
		}
		ids := make([]uint64, 0, len(dms))
		for _, dm := range dms {
			marker := " "
			if !dm.Read {
				marker = "*"
			}
			fmt.Printf("%s [%s] %s (%s): %s\n", marker, dm.CreatedAt.Format(time.RFC3339), dm.Username, strconv.FormatUint(dm.UserID, 10), dm.Content)
			ids = append(ids, dm.ID)
		}
		if err := store.MarkDMRead(ctx, ids...); err != nil {
			return err
		}
		unread, err := store.CountUnreadDMs(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d unread remaining\n", unread)
		return nil
	},
}
