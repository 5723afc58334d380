package commands

import (
	"fmt"

	"github.com/yuno-bot/yuno/automod"
)

var eightBallResponses = []string{
	// positive
	"It is certain~ 💕",
	"It is decidedly so~ 💗",
	"Without a doubt~ 💖",
	"Yes, definitely~ 💕",
	"You may rely on it~ 💗",
	"As I see it, yes~ ✨",
	"Most likely~ 💕",
	"Outlook good~ 💖",
	"Yes~ 💗",
	"Signs point to yes~ ✨",
	// neutral
	"Reply hazy, try again~ 🤔",
	"Ask again later~ 💭",
	"Better not tell you now~ 😏",
	"Cannot predict now~ 🔮",
	"Concentrate and ask again~ 💫",
	// negative
	"Don't count on it~ 💔",
	"My reply is no~ 😤",
	"My sources say no~ 💢",
	"Outlook not so good~ 😞",
	"Very doubtful~ 💔",
}

func EightBallCommand(c *automod.CommandContext) error {
	if c.Args == "" {
		return c.Reply("💔 You need to ask a question~ 🎱")
	}
	answer := eightBallResponses[c.RandN(len(eightBallResponses))]
	return c.Reply(fmt.Sprintf(
		"🎱 **Magic 8-Ball**\n\n**Question:** %s\n\n**Answer:** %s\n\n*shakes the 8-ball mysteriously*",
		c.Args, answer))
}
