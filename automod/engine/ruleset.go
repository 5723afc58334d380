package engine

import (
	"fmt"
	"strings"
)

type CommandFunc = func(c *CommandContext) error

type Command struct {
	Name    string
	Aliases []string
	// restricted to bot masters and moderators
	Moderator bool
	Func      CommandFunc
}

// Holds the registered commands, and resolves invoked names (including aliases) to them.
type CommandSet struct {
	commands []*Command
	byName   map[string]*Command
}

func NewCommandSet(cmds ...*Command) (*CommandSet, error) {
	s := &CommandSet{byName: make(map[string]*Command)}
	for _, cmd := range cmds {
		if err := s.Register(cmd); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Adds a command. Names and aliases are case-insensitive and must be unique across the set.
func (s *CommandSet) Register(cmd *Command) error {
	if cmd.Name == "" || cmd.Func == nil {
		return fmt.Errorf("command must have a name and a function")
	}
	names := append([]string{cmd.Name}, cmd.Aliases...)
	for _, n := range names {
		if _, ok := s.byName[strings.ToLower(n)]; ok {
			return fmt.Errorf("duplicate command name: %s", n)
		}
	}
	for _, n := range names {
		s.byName[strings.ToLower(n)] = cmd
	}
	s.commands = append(s.commands, cmd)
	return nil
}

func (s *CommandSet) Lookup(name string) (*Command, bool) {
	if s == nil {
		return nil, false
	}
	cmd, ok := s.byName[strings.ToLower(name)]
	return cmd, ok
}

// All commands, in registration order.
func (s *CommandSet) All() []*Command {
	if s == nil {
		return nil
	}
	return s.commands
}
