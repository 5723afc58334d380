package helpers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rivo/uniseg"
)

// Parses a user reference, either a mention (`<@123>`, `<@!123>`) or a raw snowflake ID. Returns false for anything else, including an ID of zero.
func ParseUserMention(s string) (uint64, bool) {
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(s[2:len(s)-1], "!")
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Splits prefixed message content into a lower-cased command name and the remaining argument text. Returns false if the content does not start with the prefix or names no command.
func SplitCommand(content, prefix string) (string, string, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimLeft(content[len(prefix):], " \t\n")
	if rest == "" {
		return "", "", false
	}
	name, args, _ := strings.Cut(rest, " ")
	if i := strings.IndexAny(name, "\t\n"); i >= 0 {
		args = name[i+1:] + " " + args
		name = name[:i]
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// Splits off the first whitespace-separated word of s.
func NextArg(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

// Human-readable duration in the largest whole unit: seconds, minutes, hours or days.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%d seconds", secs)
	case secs < 3600:
		return fmt.Sprintf("%d minutes", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%d hours", secs/3600)
	default:
		return fmt.Sprintf("%d days", secs/86400)
	}
}

// Shortens s to at most n grapheme clusters, marking the cut with "...".
func Truncate(s string, n int) string {
	if uniseg.GraphemeClusterCount(s) <= n {
		return s
	}
	keep := n - 3
	if n <= 3 {
		keep = n
	}
	var b strings.Builder
	gr := uniseg.NewGraphemes(s)
	for i := 0; i < keep && gr.Next(); i++ {
		b.WriteString(gr.Str())
	}
	if n > 3 {
		b.WriteString("...")
	}
	return b.String()
}
