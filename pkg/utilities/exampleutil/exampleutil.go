// Package exampleutil is the reference utility session type.
package exampleutil

import (
	"context"
	"strings"

	"github.com/vulntor/console/pkg/session"
)

const TypeName = "EXAMPLEUTIL"

// Util has no parameters and no login requirement.
type Util struct {
	*session.Base
}

// New is the session factory for EXAMPLEUTIL.
func New(_ context.Context, env session.Env) (session.Session, error) {
	base, err := session.NewBase(env, session.Util, TypeName, nil, false)
	if err != nil {
		return nil, err
	}
	u := &Util{Base: base}
	cmds := base.Commands()
	cmds.AllowWithoutLogin()
	cmds.Hide("start", "stop", "scan")
	cmds.MustRegister(&session.Command{
		Name:    "examplecmd",
		Help:    "Print the text given to it",
		Group:   "EXAMPLECMDGROUP",
		MinArgs: 1,
		MaxArgs: -1,
		Handler: func(ctx context.Context, args []string) (any, error) {
			return u.ExampleCmd(ctx, strings.Join(args, " ")), nil
		},
	})
	return u, nil
}

// ExampleCmd echoes cmd to the console.
func (u *Util) ExampleCmd(ctx context.Context, cmd string) bool {
	u.Print(ctx, "Command received: %s", cmd)
	return true
}

// Register declares EXAMPLEUTIL in r.
func Register(r *session.Registry) error {
	return r.Register(session.Util, TypeName, New, "Example utility")
}
