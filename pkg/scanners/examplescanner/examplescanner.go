// Package examplescanner is the reference credentialed scanner type. Its
// executor reports two fixed result fields per target and the session
// prints every result whose first field matches.
package examplescanner

import (
	"context"

	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

const (
	TypeName = "EXAMPLESCANNER"

	ParamRandom = "randomparam"
)

// Result is the DATA payload.
type Result struct {
	Result1 string
	Result2 string
}

func (r Result) ToLine(sep string) string { return r.Result1 + sep + r.Result2 }

func (r Result) ToMap() map[string]any {
	return map[string]any{"result1": r.Result1, "result2": r.Result2}
}

// Executor is bound to the credential the run authenticates with.
type Executor struct {
	Credential *credential.Credential
	Random     string
}

func (e *Executor) Run(ctx context.Context, targetID string, t *target.Target, out chan<- scanner.Result) {
	if err := ctx.Err(); err != nil {
		out <- scanner.Error(targetID, t, err)
		return
	}
	out <- scanner.Data(targetID, t, Result{Result1: "result1", Result2: "result2"})
}

// Params returns the declared parameters.
func Params() *params.Collection {
	return params.NewCollection(append(
		params.CredentialedScanner("Example scanner", "SERVERIP", "result1", "result2"),
		params.New(ParamRandom, params.KindString, "Random parameter", "randomvalue").AsRequired(),
	)...)
}

// New is the session factory for EXAMPLESCANNER.
func New(_ context.Context, env session.Env) (session.Session, error) {
	creds := env.Host
	return scanner.New(env, TypeName, scanner.Config{
		Params: Params(),
		Executors: func(_ context.Context, p *params.Collection) ([]scanner.Executor, error) {
			c, err := scanner.ResolveCredential(creds, p)
			if err != nil {
				return nil, err
			}
			return []scanner.Executor{&Executor{Credential: c, Random: p.String(ParamRandom)}}, nil
		},
		OnResult: printMatch,
	})
}

func printMatch(ctx context.Context, s *scanner.Scanner, r scanner.Result) {
	if r.Type != scanner.ResultData {
		return
	}
	res, ok := r.Data.(Result)
	if !ok || res.Result1 != "result1" {
		return
	}
	s.Print(ctx, "%s - %s - %s", r.Address(), res.Result1, res.Result2)
}

// Register declares EXAMPLESCANNER in r.
func Register(r *session.Registry) error {
	return r.Register(session.Scanner, TypeName, New, "Example credentialed scanner")
}
