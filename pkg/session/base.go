package session

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/console/pkg/params"
)

// Base implements the state every session shares. Concrete sessions embed it
// and add their own commands to Commands().
type Base struct {
	id       string
	major    MajorType
	sub      string
	params   *params.Collection
	commands *CommandTable
	host     Host
	loggedIn atomic.Bool
	logger   zerolog.Logger
}

// NewBase builds the shared session state. Values restored in env.Params
// override the declared defaults. requireLogin gates commands until
// SetLoggedIn(true).
func NewBase(env Env, major MajorType, sub string, defaults *params.Collection, requireLogin bool) (*Base, error) {
	if defaults == nil {
		defaults = params.NewCollection()
	}
	if env.Params != nil {
		if err := defaults.Merge(env.Params); err != nil {
			return nil, fmt.Errorf("restore parameters: %w", err)
		}
	}
	b := &Base{
		id:     env.ID,
		major:  major,
		sub:    strings.ToUpper(sub),
		params: defaults,
		host:   env.Host,
		logger: log.With().
			Str("component", "session").
			Str("session_id", env.ID).
			Str("type", string(major)+"/"+strings.ToUpper(sub)).
			Logger(),
	}
	var gate func() bool
	if requireLogin {
		gate = b.loggedIn.Load
	}
	b.commands = NewCommandTable(gate)
	b.commands.MustRegister(b.baseCommands()...)
	return b, nil
}

func (b *Base) ID() string                 { return b.id }
func (b *Base) MajorType() MajorType       { return b.major }
func (b *Base) SubType() string            { return b.sub }
func (b *Base) Params() *params.Collection { return b.params }
func (b *Base) Commands() *CommandTable    { return b.commands }
func (b *Base) Host() Host                 { return b.host }
func (b *Base) Logger() *zerolog.Logger    { return &b.logger }

// LoggedIn reports whether login succeeded.
func (b *Base) LoggedIn() bool { return b.loggedIn.Load() }

// SetLoggedIn records the login state.
func (b *Base) SetLoggedIn(v bool) { b.loggedIn.Store(v) }

// Print writes a console line attributed to this session.
func (b *Base) Print(ctx context.Context, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if b.host != nil {
		b.host.Print(ctx, b.id, msg)
	}
}

// PrintError reports err on the console attributed to this session.
func (b *Base) PrintError(ctx context.Context, err error) {
	b.logger.Debug().Err(err).Msg("session error")
	if b.host != nil {
		b.host.PrintError(ctx, b.id, err)
	}
}

// Close is a no-op for sessions without resources.
func (b *Base) Close(context.Context) error { return nil }

func (b *Base) baseCommands() []*Command {
	return []*Command{
		{
			Name: "setparam", Help: "Set a parameter: setparam <name> <value>", Group: "PARAMETERS",
			MinArgs: 2, MaxArgs: -1, NoLogin: true,
			Handler: func(ctx context.Context, args []string) (any, error) {
				if err := b.params.Set(args[0], strings.Join(args[1:], " ")); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
		{
			Name: "getparam", Help: "Show a parameter value: getparam <name>", Group: "PARAMETERS",
			MinArgs: 1, MaxArgs: 1, NoLogin: true,
			Handler: func(ctx context.Context, args []string) (any, error) {
				return b.params.Get(args[0])
			},
		},
		{
			Name: "params", Help: "List all parameters", Group: "PARAMETERS",
			MinArgs: 0, MaxArgs: 0, NoLogin: true,
			Handler: func(ctx context.Context, args []string) (any, error) {
				return b.params.Flatten(), nil
			},
		},
		{
			Name: "help", Help: "List available commands", Group: "PARAMETERS",
			MinArgs: 0, MaxArgs: 0, NoLogin: true,
			Handler: func(ctx context.Context, args []string) (any, error) {
				return b.commands.Help(), nil
			},
		},
	}
}
