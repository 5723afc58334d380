package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "yuno_message_duration_sec",
	Help: "Total duration of chat message processing",
}, []string{"type"})

var messageProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_message_processed",
	Help: "Number of chat messages processed, by type (guild, direct, bot, banned)",
}, []string{"type"})

var messageErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_message_errors",
	Help: "Number of chat messages which failed processing",
}, []string{"type"})

var commandCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_command_invocations",
	Help: "Number of command invocations, by command and outcome",
}, []string{"command", "outcome"})

var commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "yuno_command_duration_sec",
	Help: "Duration of command execution",
}, []string{"command"})

var spamDetectionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_spam_detections",
	Help: "Number of messages classified as spam, by kind",
}, []string{"kind"})

var modActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_mod_actions",
	Help: "Number of moderation actions recorded, by type",
}, []string{"type"})

var xpAwardedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "yuno_xp_awarded",
	Help: "Total XP awarded for chat messages (before batching)",
})

var cleanedMessageCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "yuno_auto_clean_deleted_messages",
	Help: "Number of messages deleted by scheduled channel cleanups",
})

var settingsCacheCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_guild_settings_cache",
	Help: "Guild settings cache lookups, by result",
}, []string{"result"})
