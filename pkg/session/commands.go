package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler executes a command. The first return value must be JSON
// serialisable.
type Handler func(ctx context.Context, args []string) (any, error)

// Command is one entry of a session's command table.
type Command struct {
	Name    string
	Help    string
	Group   string
	MinArgs int
	// MaxArgs < 0 means unbounded.
	MaxArgs int
	// NoLogin allows the command before the session logged in.
	NoLogin bool
	// Hidden commands are callable but left out of Help.
	Hidden  bool
	Handler Handler
}

// HelpGroup is a named group of commands as shown by Help.
type HelpGroup struct {
	Name     string
	Commands []*Command
}

// CommandTable maps command names to handlers. It is built when the session
// is constructed.
type CommandTable struct {
	mu        sync.RWMutex
	commands  map[string]*Command
	allowAll  bool
	loggedIn  func() bool
	hiddenSet map[string]bool
}

// NewCommandTable creates an empty table. loggedIn reports the session's
// login state; nil means the session never requires login.
func NewCommandTable(loggedIn func() bool) *CommandTable {
	return &CommandTable{
		commands:  make(map[string]*Command),
		loggedIn:  loggedIn,
		hiddenSet: make(map[string]bool),
	}
}

// Register adds commands to the table.
func (t *CommandTable) Register(cmds ...*Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range cmds {
		name := strings.ToLower(c.Name)
		if name == "" || c.Handler == nil {
			return fmt.Errorf("command %q: name and handler are required", c.Name)
		}
		if _, exists := t.commands[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
		}
		c.Name = name
		if t.hiddenSet[name] {
			c.Hidden = true
		}
		t.commands[name] = c
	}
	return nil
}

// MustRegister is Register for static tables.
func (t *CommandTable) MustRegister(cmds ...*Command) {
	if err := t.Register(cmds...); err != nil {
		panic(err)
	}
}

// AllowWithoutLogin lifts the login gate for every command.
func (t *CommandTable) AllowWithoutLogin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowAll = true
}

// Hide omits the named commands from Help, including ones registered later.
func (t *CommandTable) Hide(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range names {
		n = strings.ToLower(n)
		t.hiddenSet[n] = true
		if c, ok := t.commands[n]; ok {
			c.Hidden = true
		}
	}
}

// Lookup returns the command registered under name.
func (t *CommandTable) Lookup(name string) (*Command, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.commands[strings.ToLower(name)]
	return c, ok
}

// Names returns all command names sorted.
func (t *CommandTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.commands))
	for n := range t.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named command after checking arity and login state.
func (t *CommandTable) Dispatch(ctx context.Context, name string, args ...string) (any, error) {
	c, ok := t.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if len(args) < c.MinArgs || (c.MaxArgs >= 0 && len(args) > c.MaxArgs) {
		return nil, fmt.Errorf("%w: %s takes %s, got %d", ErrArity, c.Name, arity(c), len(args))
	}
	t.mu.RLock()
	gated := !t.allowAll && !c.NoLogin && t.loggedIn != nil && !t.loggedIn()
	t.mu.RUnlock()
	if gated {
		return nil, fmt.Errorf("%w: %s", ErrLoginRequired, c.Name)
	}
	return c.Handler(ctx, args)
}

// Help returns the visible commands grouped and sorted by group then name.
func (t *CommandTable) Help() []HelpGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	byGroup := make(map[string][]*Command)
	for _, c := range t.commands {
		if c.Hidden {
			continue
		}
		g := c.Group
		if g == "" {
			g = "COMMANDS"
		}
		byGroup[g] = append(byGroup[g], c)
	}
	groups := make([]HelpGroup, 0, len(byGroup))
	for name, cmds := range byGroup {
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
		groups = append(groups, HelpGroup{Name: name, Commands: cmds})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

func arity(c *Command) string {
	switch {
	case c.MaxArgs < 0:
		return fmt.Sprintf("at least %d argument(s)", c.MinArgs)
	case c.MinArgs == c.MaxArgs:
		return fmt.Sprintf("%d argument(s)", c.MinArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", c.MinArgs, c.MaxArgs)
	}
}
