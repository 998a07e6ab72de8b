package pingscan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ping/ping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

type fakePinger struct {
	recv    int
	runErr  error
	block   bool
	stop    chan struct{}
	count   int
	timeout time.Duration
	priv    bool
}

func (f *fakePinger) Run() error {
	if f.block {
		<-f.stop
	}
	return f.runErr
}
func (f *fakePinger) Stop() {
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
}
func (f *fakePinger) Statistics() *ping.Statistics {
	return &ping.Statistics{PacketsSent: f.count, PacketsRecv: f.recv, AvgRtt: 3 * time.Millisecond}
}
func (f *fakePinger) SetPrivileged(v bool)        { f.priv = v }
func (f *fakePinger) SetCount(c int)              { f.count = c }
func (f *fakePinger) SetInterval(time.Duration)   {}
func (f *fakePinger) SetTimeout(t time.Duration)  { f.timeout = t }
func (f *fakePinger) GetTimeout() time.Duration   { return f.timeout }

func factoryFor(pingers map[string]*fakePinger) PingerFactory {
	return func(addr string) (Pinger, error) {
		p, ok := pingers[addr]
		if !ok {
			return nil, errors.New("no route")
		}
		p.stop = make(chan struct{})
		return p, nil
	}
}

func run(ex scanner.Executor, ctx context.Context, addr string) scanner.Result {
	out := make(chan scanner.Result, 4)
	ex.Run(ctx, "0", &target.Target{IP: addr}, out)
	close(out)
	return <-out
}

func TestExecutor(t *testing.T) {
	pingers := map[string]*fakePinger{
		"10.0.0.1": {recv: 2},
		"10.0.0.2": {recv: 0},
		"10.0.0.3": {runErr: errors.New("socket: permission denied")},
		"10.0.0.4": {block: true},
	}
	ex := &Executor{Count: 2, PacketTimeout: 50 * time.Millisecond, NewPinger: factoryFor(pingers)}
	ctx := context.Background()

	r := run(ex, ctx, "10.0.0.1")
	require.Equal(t, scanner.ResultData, r.Type)
	assert.Equal(t, PingResult{Alive: true, RTT: 3 * time.Millisecond, Sent: 2, Recv: 2}, r.Data)
	assert.Equal(t, "true\t3ms\t2/2", r.Data.ToLine("\t"))

	r = run(ex, ctx, "10.0.0.2")
	require.Equal(t, scanner.ResultData, r.Type)
	assert.False(t, r.Data.(PingResult).Alive)

	r = run(ex, ctx, "10.0.0.3")
	assert.Equal(t, scanner.ResultError, r.Type)
	assert.ErrorContains(t, r.Err, "permission denied")

	r = run(ex, ctx, "10.0.0.9")
	assert.Equal(t, scanner.ResultError, r.Type)
	assert.ErrorContains(t, r.Err, "create pinger")

	// A pinger that never returns is stopped after its timeout.
	start := time.Now()
	r = run(ex, ctx, "10.0.0.4")
	assert.Equal(t, scanner.ResultData, r.Type)
	assert.Less(t, time.Since(start), 5*time.Second)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	r = run(ex, cctx, "10.0.0.4")
	assert.Equal(t, scanner.ResultError, r.Type)
	assert.ErrorIs(t, r.Err, context.Canceled)
}

func TestPingscan_ThroughHost(t *testing.T) {
	ctx := context.Background()
	pingers := map[string]*fakePinger{"10.1.0.1": {recv: 1}, "10.1.0.2": {recv: 0}}
	reg := session.NewRegistry()
	require.NoError(t, reg.Register(session.Scanner, TypeName, func(_ context.Context, env session.Env) (session.Session, error) {
		return scanner.New(env, TypeName, scanner.Config{Params: Params(), Executors: Executors(factoryFor(pingers))})
	}, ""))
	h := host.New(host.Options{Registry: reg})
	t.Cleanup(func() { _ = h.Close(ctx) })

	sid, err := h.CreateScanner(ctx, TypeName)
	require.NoError(t, err)
	s, _ := h.Session(sid)
	sc := s.(*scanner.Scanner)
	require.NoError(t, sc.Params().Set(params.Targets, "10.1.0.1-2"))
	require.NoError(t, sc.Params().Set(ParamCount, "3"))

	_, err = sc.Scan(ctx)
	require.NoError(t, err)
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, sc.Wait(wctx))

	e, err := sc.LastHistory(ctx)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.Count(history.RecordData))
	assert.Equal(t, 3, e.Parameters[ParamCount])
	assert.Equal(t, 3, pingers["10.1.0.1"].count)
}
