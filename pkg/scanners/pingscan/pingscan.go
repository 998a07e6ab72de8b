// Package pingscan implements the PINGSCAN scanner: ICMP echo reachability
// through go-ping.
package pingscan

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-ping/ping"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

const (
	TypeName = "PINGSCAN"

	ParamCount         = "count"
	ParamInterval      = "interval"
	ParamPacketTimeout = "packettimeout"
	ParamPrivileged    = "privileged"
)

// PingResult is the DATA payload for one target.
type PingResult struct {
	Alive bool
	RTT   time.Duration
	Sent  int
	Recv  int
}

func (r PingResult) ToLine(sep string) string {
	return strconv.FormatBool(r.Alive) + sep + r.RTT.String() + sep + fmt.Sprintf("%d/%d", r.Recv, r.Sent)
}

func (r PingResult) ToMap() map[string]any {
	return map[string]any{
		"alive":  r.Alive,
		"rtt_ms": r.RTT.Milliseconds(),
		"sent":   r.Sent,
		"recv":   r.Recv,
	}
}

// Pinger is the part of go-ping the executor drives.
type Pinger interface {
	Run() error
	Stop()
	Statistics() *ping.Statistics

	SetPrivileged(bool)
	SetCount(int)
	SetInterval(time.Duration)
	SetTimeout(time.Duration)
	GetTimeout() time.Duration
}

// PingerFactory builds a pinger for one address.
type PingerFactory func(addr string) (Pinger, error)

// Executor pings one target.
type Executor struct {
	Count         int
	Interval      time.Duration
	PacketTimeout time.Duration
	Privileged    bool
	NewPinger     PingerFactory
}

func (e *Executor) Run(ctx context.Context, targetID string, t *target.Target, out chan<- scanner.Result) {
	newPinger := e.NewPinger
	if newPinger == nil {
		newPinger = realPinger
	}
	p, err := newPinger(t.Address())
	if err != nil {
		out <- scanner.Error(targetID, t, fmt.Errorf("create pinger: %w", err))
		return
	}
	p.SetPrivileged(e.Privileged)
	p.SetCount(max(e.Count, 1))
	p.SetInterval(e.Interval)
	p.SetTimeout(e.PacketTimeout)

	opCtx, cancel := context.WithTimeout(ctx, p.GetTimeout()+500*time.Millisecond)
	defer cancel()
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-opCtx.Done():
			p.Stop()
		case <-stopped:
		}
	}()

	runErr := p.Run()
	if err := ctx.Err(); err != nil {
		out <- scanner.Error(targetID, t, err)
		return
	}
	if runErr != nil {
		out <- scanner.Error(targetID, t, fmt.Errorf("ping: %w", runErr))
		return
	}
	stats := p.Statistics()
	out <- scanner.Data(targetID, t, PingResult{
		Alive: stats.PacketsRecv > 0,
		RTT:   stats.AvgRtt,
		Sent:  stats.PacketsSent,
		Recv:  stats.PacketsRecv,
	})
}

// Params returns the declared PINGSCAN parameters.
func Params() *params.Collection {
	return params.NewCollection(append(
		params.ScannerBase("ICMP echo reachability scanner", "TARGET", "ALIVE", "RTT", "RECV/SENT"),
		params.New(ParamCount, params.KindInt, "Echo requests per target", 1),
		params.New(ParamInterval, params.KindDuration, "Interval between echo requests", time.Second).AsAdvanced(),
		params.New(ParamPacketTimeout, params.KindDuration, "Time to wait for replies", time.Second),
		params.New(ParamPrivileged, params.KindBool, "Use raw ICMP sockets (requires root)", false),
	)...)
}

// Executors builds the executor list. A nil factory uses go-ping.
func Executors(factory PingerFactory) scanner.ExecutorFactory {
	return func(_ context.Context, p *params.Collection) ([]scanner.Executor, error) {
		privileged := p.Bool(ParamPrivileged)
		if privileged && runtime.GOOS != "windows" && os.Geteuid() != 0 && factory == nil {
			log.Warn().Str("component", "pingscan").Msg("privileged ping requested without root, falling back to unprivileged")
			privileged = false
		}
		return []scanner.Executor{&Executor{
			Count:         p.Int(ParamCount),
			Interval:      p.Duration(ParamInterval),
			PacketTimeout: p.Duration(ParamPacketTimeout),
			Privileged:    privileged,
			NewPinger:     factory,
		}}, nil
	}
}

// New is the session factory for PINGSCAN.
func New(_ context.Context, env session.Env) (session.Session, error) {
	return scanner.New(env, TypeName, scanner.Config{
		Params:    Params(),
		Executors: Executors(nil),
	})
}

// Register declares PINGSCAN in r.
func Register(r *session.Registry) error {
	return r.Register(session.Scanner, TypeName, New, "ICMP echo reachability scanner")
}

func realPinger(addr string) (Pinger, error) {
	p, err := ping.NewPinger(addr)
	if err != nil {
		return nil, err
	}
	return &pingerAdapter{p: p}, nil
}

// pingerAdapter wraps *ping.Pinger, whose tunables are plain fields.
type pingerAdapter struct {
	p *ping.Pinger
}

func (a *pingerAdapter) Run() error                   { return a.p.Run() }
func (a *pingerAdapter) Stop()                        { a.p.Stop() }
func (a *pingerAdapter) Statistics() *ping.Statistics { return a.p.Statistics() }
func (a *pingerAdapter) SetPrivileged(v bool)         { a.p.SetPrivileged(v) }
func (a *pingerAdapter) SetCount(c int)               { a.p.Count = c }
func (a *pingerAdapter) SetInterval(i time.Duration)  { a.p.Interval = i }
func (a *pingerAdapter) SetTimeout(t time.Duration)   { a.p.Timeout = t }
func (a *pingerAdapter) GetTimeout() time.Duration    { return a.p.Timeout }
