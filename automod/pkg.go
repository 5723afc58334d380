package automod

import (
	"github.com/yuno-bot/yuno/automod/engine"
)

type Engine = engine.Engine
type EngineConfig = engine.Config
type Store = engine.Store
type Discord = engine.Discord

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type Command = engine.Command
type CommandContext = engine.CommandContext
type CommandFunc = engine.CommandFunc
type CommandSet = engine.CommandSet

var (
	DefaultEngineConfig = engine.DefaultConfig
	NewCommandSet       = engine.NewCommandSet
)
