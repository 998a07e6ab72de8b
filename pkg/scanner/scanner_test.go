package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

type fakeHost struct {
	store   history.Store
	targets map[string]*target.Target

	mu        sync.Mutex
	printed   []string
	errs      []error
	recorded  atomic.Int32
	failAfter int32
}

func newFakeHost() *fakeHost {
	return &fakeHost{store: history.NewMemoryStore(), targets: map[string]*target.Target{}}
}

func (h *fakeHost) Print(_ context.Context, _ string, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.printed = append(h.printed, msg)
}

func (h *fakeHost) PrintError(_ context.Context, _ string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *fakeHost) Target(id string) (*target.Target, bool) {
	t, ok := h.targets[id]
	return t, ok
}

func (h *fakeHost) Credential(string) (*credential.Credential, bool) { return nil, false }

func (h *fakeHost) History() history.Store { return h.store }

func (h *fakeHost) RecordScanResult(ctx context.Context, run RunInfo, r Result) (string, error) {
	n := h.recorded.Add(1)
	if h.failAfter > 0 && n > h.failAfter {
		return "", errors.New("disk full")
	}
	return r.TargetID, h.store.Append(ctx, run.EntryID, r.Record())
}

func (h *fakeHost) errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

type exampleResult struct {
	target  string
	result1 string
}

func (r exampleResult) ToLine(sep string) string { return r.target + sep + r.result1 }
func (r exampleResult) ToMap() map[string]any {
	return map[string]any{"target": r.target, "result1": r.result1}
}

func newTestScanner(t *testing.T, h *fakeHost, ex Executor, targets string) *Scanner {
	t.Helper()
	s, err := New(session.Env{ID: "1", Host: h}, "test", Config{
		Params: params.NewCollection(params.ScannerBase("test scanner", "SERVERIP", "result1")...),
		Executors: func(context.Context, *params.Collection) ([]Executor, error) {
			return []Executor{ex}, nil
		},
	})
	require.NoError(t, err)
	if targets != "" {
		require.NoError(t, s.Params().Set(params.Targets, targets))
	}
	return s
}

func waitDone(t *testing.T, s *Scanner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestScanner_DataAndErrorPerTarget(t *testing.T) {
	h := newFakeHost()
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		if tg.IP == "10.0.0.2" {
			panic("connection reset")
		}
		out <- Data(id, tg, exampleResult{target: tg.Address(), result1: "x"})
	})
	s := newTestScanner(t, h, ex, "10.0.0.1,10.0.0.2")

	entryID, err := s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)

	assert.Equal(t, StateCompleted, s.State())
	last, err := s.LastHistoryID()
	require.NoError(t, err)
	assert.Equal(t, entryID, last)

	e, err := s.LastHistory(context.Background())
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, history.StatusCompleted, e.Status)
	require.Len(t, e.Results, 2)

	byTarget := map[string]history.Record{}
	for _, r := range e.Results {
		_, dup := byTarget[r.Target]
		require.False(t, dup, "one result per target")
		byTarget[r.Target] = r
	}
	assert.Equal(t, history.RecordData, byTarget["10.0.0.1"].Type)
	assert.Equal(t, "x", byTarget["10.0.0.1"].Data["result1"])
	assert.Equal(t, "10.0.0.1\tx", byTarget["10.0.0.1"].Line)
	assert.Equal(t, history.RecordError, byTarget["10.0.0.2"].Type)
	assert.Contains(t, byTarget["10.0.0.2"].Error, "connection reset")
	assert.Equal(t, "TEST", e.ScannerType)
	assert.Equal(t, "1", e.SessionID)
}

func TestScanner_StopWhenIdle(t *testing.T) {
	h := newFakeHost()
	s := newTestScanner(t, h, ExecutorFunc(func(context.Context, string, *target.Target, chan<- Result) {}), "")

	assert.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateIdle, s.State())
	assert.NoError(t, s.Wait(context.Background()))

	entries, err := h.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanner_LastHistoryBeforeAnyScan(t *testing.T) {
	s := newTestScanner(t, newFakeHost(), ExecutorFunc(func(context.Context, string, *target.Target, chan<- Result) {}), "")

	id, err := s.LastHistoryID()
	assert.NoError(t, err)
	assert.Empty(t, id)

	e, err := s.LastHistory(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, e)

	out, err := s.Commands().Dispatch(context.Background(), "getlasthistory")
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestScanner_StopMidRunKeepsHistory(t *testing.T) {
	h := newFakeHost()
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		if tg.IP == "10.0.0.1" {
			out <- Data(id, tg, exampleResult{target: tg.Address(), result1: "result1"})
			return
		}
		<-ctx.Done()
	})
	s := newTestScanner(t, h, ex, "10.0.0.1,10.0.0.2")
	require.NoError(t, s.Params().Set(params.Timeout, "0"))

	entryID, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.recorded.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, s.State())

	_, err = s.Scan(context.Background())
	assert.ErrorIs(t, err, ErrScanRunning)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StateCancelled, s.State())
	require.NoError(t, s.Stop(context.Background()))

	e, err := s.LastHistory(context.Background())
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, entryID, e.ID)
	assert.Equal(t, history.StatusStopped, e.Status)
	require.Len(t, e.Results, 1)
	assert.Equal(t, "10.0.0.1", e.Results[0].Target)
}

func TestScanner_WaitTimeoutDoesNotStop(t *testing.T) {
	h := newFakeHost()
	release := make(chan struct{})
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		<-release
		out <- Data(id, tg, exampleResult{target: tg.Address(), result1: "late"})
	})
	s := newTestScanner(t, h, ex, "10.0.0.1")

	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, StateRunning, s.State())

	close(release)
	waitDone(t, s)
	assert.Equal(t, StateCompleted, s.State())

	e, err := s.LastHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Results, 1)
	assert.Equal(t, "late", e.Results[0].Data["result1"])
}

func TestScanner_TargetTimeout(t *testing.T) {
	h := newFakeHost()
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		<-ctx.Done()
	})
	s := newTestScanner(t, h, ex, "10.0.0.1")
	require.NoError(t, s.Params().Set(params.Timeout, "30ms"))

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)

	e, err := s.LastHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Results, 1)
	assert.Equal(t, history.RecordError, e.Results[0].Type)
	assert.Contains(t, e.Results[0].Error, context.DeadlineExceeded.Error())
}

func TestScanner_ExecutorWithoutResult(t *testing.T) {
	h := newFakeHost()
	s := newTestScanner(t, h, ExecutorFunc(func(context.Context, string, *target.Target, chan<- Result) {}), "10.0.0.1")

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)

	e, err := s.LastHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Results, 1)
	assert.Equal(t, ErrNoResult.Error(), e.Results[0].Error)
}

func TestScanner_ErrorWithoutCause(t *testing.T) {
	h := newFakeHost()
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		if tg.IP == "10.0.0.2" {
			out <- Result{Type: ResultError, Target: tg}
			return
		}
		out <- Data(id, tg, exampleResult{target: tg.Address(), result1: "x"})
	})
	s := newTestScanner(t, h, ex, "10.0.0.2,10.0.0.1")
	require.NoError(t, s.Params().Set(params.Workers, "1"))

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)

	assert.Equal(t, StateCompleted, s.State())
	e, err := s.LastHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Results, 2)

	byTarget := map[string]history.Record{}
	for _, r := range e.Results {
		byTarget[r.Target] = r
	}
	assert.Equal(t, history.RecordError, byTarget["10.0.0.2"].Type)
	assert.Equal(t, ErrNoCause.Error(), byTarget["10.0.0.2"].Error)
	assert.Equal(t, history.RecordData, byTarget["10.0.0.1"].Type)
}

func TestScanner_PanicAfterResult(t *testing.T) {
	h := newFakeHost()
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		out <- Data(id, tg, exampleResult{target: tg.Address(), result1: "x"})
		panic("late failure")
	})
	s := newTestScanner(t, h, ex, "10.0.0.1")

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)

	assert.Equal(t, StateCompleted, s.State())
	e, err := s.LastHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Results, 1)
	assert.Equal(t, history.RecordData, e.Results[0].Type)
}

func TestCore_PanicBeforeResult(t *testing.T) {
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		out <- Info(id, tg, "connecting")
		panic("early failure")
	})
	c := NewCore([]Job{{Target: &target.Target{IP: "10.0.0.1"}}}, []Executor{ex}, CoreConfig{})

	var errs []error
	for r := range c.Scan(context.Background()) {
		if r.Type == ResultError {
			errs = append(errs, r.Err)
		}
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrExecutorPanic)
}

func TestScanner_RecorderFailure(t *testing.T) {
	h := newFakeHost()
	h.failAfter = 1
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		for i := range 3 {
			out <- Info(id, tg, "step %d", i)
		}
		out <- Data(id, tg, exampleResult{target: tg.Address(), result1: "x"})
	})
	s := newTestScanner(t, h, ex, "10.0.0.1")

	entryID, err := s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)

	assert.Equal(t, StateFailed, s.State())
	assert.ErrorContains(t, s.Err(), "disk full")
	require.NotEmpty(t, h.errors())

	id, _ := s.LastHistoryID()
	assert.Empty(t, id, "failed runs are not reported as last history")

	e, err := h.store.Get(context.Background(), entryID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, e.Status)
	assert.Len(t, e.Results, 1, "partial history is retained")

	// A new scan may start after a failure.
	h.failAfter = 0
	_, err = s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)
	assert.Equal(t, StateCompleted, s.State())
}

func TestScanner_RequiresTargets(t *testing.T) {
	s := newTestScanner(t, newFakeHost(), ExecutorFunc(func(context.Context, string, *target.Target, chan<- Result) {}), "")
	_, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, params.ErrMissingRequired)
	assert.Equal(t, StateIdle, s.State())
}

func TestScanner_StoredTargetReferences(t *testing.T) {
	h := newFakeHost()
	h.targets["4"] = &target.Target{IP: "192.168.56.10", Hostname: "winterfell"}

	var seen sync.Map
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		seen.Store(tg.Address(), id)
		out <- Data(id, tg, exampleResult{target: tg.Address(), result1: "ok"})
	})
	s := newTestScanner(t, h, ex, "t:4,t:99")

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)

	id, ok := seen.Load("192.168.56.10")
	require.True(t, ok)
	assert.Equal(t, "4", id)
	errs := h.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnknownTarget)
}

func TestScanner_OnResultAndCommands(t *testing.T) {
	h := newFakeHost()
	s, err := New(session.Env{ID: "9", Host: h}, "example", Config{
		Params: params.NewCollection(params.ScannerBase("")...),
		Executors: func(context.Context, *params.Collection) ([]Executor, error) {
			return []Executor{ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
				out <- Data(id, tg, exampleResult{target: tg.Address(), result1: "result1"})
			})}, nil
		},
		OnResult: func(ctx context.Context, s *Scanner, r Result) {
			s.Print(ctx, "%s - match", r.Address())
		},
	})
	require.NoError(t, err)
	assert.Equal(t, session.Scanner, s.MajorType())
	assert.Equal(t, "EXAMPLE", s.SubType())

	status, err := s.Commands().Dispatch(context.Background(), "status")
	require.NoError(t, err)
	assert.Equal(t, "IDLE", status)

	_, err = s.Commands().Dispatch(context.Background(), "setparam", "targets", "10.1.1.1-2")
	require.NoError(t, err)
	out, err := s.Commands().Dispatch(context.Background(), "scan")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	waitDone(t, s)

	h.mu.Lock()
	assert.ElementsMatch(t, []string{"10.1.1.1 - match", "10.1.1.2 - match"}, h.printed)
	h.mu.Unlock()

	id, err := s.Commands().Dispatch(context.Background(), "getlasthistoryid")
	require.NoError(t, err)
	assert.Equal(t, out, id)

	stopped, err := s.Commands().Dispatch(context.Background(), "stop")
	require.NoError(t, err)
	assert.Equal(t, true, stopped)
}

func TestNew_RejectsPlainHost(t *testing.T) {
	type plain struct{ session.Host }
	_, err := New(session.Env{ID: "1", Host: plain{}}, "x", Config{})
	assert.ErrorIs(t, err, ErrUnsupportedHost)
}

func TestCore_StopBeforeScan(t *testing.T) {
	c := NewCore([]Job{{Target: &target.Target{IP: "10.0.0.1"}}}, []Executor{
		ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
			out <- Info(id, tg, "never")
		}),
	}, CoreConfig{})
	c.Stop()
	c.Stop()

	_, open := <-c.Scan(context.Background())
	assert.False(t, open)
}

func TestCore_WorkerLimit(t *testing.T) {
	var running, peak atomic.Int32
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		out <- Data(id, tg, exampleResult{target: tg.Address()})
	})

	var jobs []Job
	for i := range 10 {
		jobs = append(jobs, Job{TargetID: fmt.Sprint(i), Target: &target.Target{IP: fmt.Sprintf("10.0.0.%d", i+1)}})
	}
	c := NewCore(jobs, []Executor{ex}, CoreConfig{Workers: 2})

	count := 0
	for r := range c.Scan(context.Background()) {
		assert.Equal(t, ResultData, r.Type)
		assert.NotEmpty(t, r.TargetID)
		count++
	}
	assert.Equal(t, 10, count)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCore_PreservesPerExecutorOrder(t *testing.T) {
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		for i := range 5 {
			out <- Info(id, tg, "%d", i)
		}
		out <- Data(id, tg, exampleResult{target: tg.Address()})
	})
	c := NewCore([]Job{{Target: &target.Target{IP: "10.0.0.1"}}}, []Executor{ex}, CoreConfig{})

	var infos []string
	for r := range c.Scan(context.Background()) {
		if r.Type == ResultInfo {
			infos = append(infos, r.Info)
		}
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, infos)
}

func TestResolveTargets(t *testing.T) {
	h := newFakeHost()
	h.targets["0"] = &target.Target{IP: "10.0.0.1"}

	jobs, errs := ResolveTargets([]string{"t:0", "10.0.0.1", "10.0.0.2", "kingslanding", "bad host!"}, h, 0)
	require.Len(t, jobs, 3)
	assert.Equal(t, "0", jobs[0].TargetID)
	assert.Empty(t, jobs[1].TargetID)
	assert.Equal(t, "10.0.0.2", jobs[1].Target.IP)
	assert.Equal(t, "scan", jobs[1].Target.Source)
	assert.Equal(t, "kingslanding", jobs[2].Target.Hostname)
	require.Len(t, errs, 1)
}

func TestResult_Record(t *testing.T) {
	tg := &target.Target{IP: "10.0.0.5"}

	rec := Error("3", tg, errors.New("refused")).Record()
	assert.Equal(t, history.RecordError, rec.Type)
	assert.Equal(t, "refused", rec.Error)
	assert.Equal(t, "10.0.0.5", rec.Target)

	rec = Data("3", tg, NewFields("ip", "10.0.0.5", "port", 445)).Record()
	assert.Equal(t, "10.0.0.5\t445", rec.Line)
	assert.Equal(t, 445, rec.Data["port"])

	rec = Info("3", tg, "probing %d ports", 2).Record()
	assert.Equal(t, "probing 2 ports", rec.Line)

	bare := Result{Type: ResultError, Target: tg}
	assert.Equal(t, ErrNoCause.Error(), bare.Record().Error)
	assert.Equal(t, "10.0.0.5\t"+ErrNoCause.Error(), bare.Line("\t"))
}

func TestScanner_ShowErrors(t *testing.T) {
	h := newFakeHost()
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		out <- Error(id, tg, errors.New("refused"))
	})
	s := newTestScanner(t, h, ex, "10.0.0.7")

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)
	assert.Empty(t, h.errors())

	require.NoError(t, s.Params().Set(params.ShowErrors, "True"))
	_, err = s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)
	errs := h.errors()
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "10.0.0.7: refused")
}

type defaultsHost struct {
	*fakeHost
	core CoreConfig
}

func (h defaultsHost) ScannerDefaults() CoreConfig { return h.core }

func TestScanner_HostCoreDefaults(t *testing.T) {
	h := defaultsHost{fakeHost: newFakeHost(), core: CoreConfig{TargetTimeout: 30 * time.Millisecond}}
	ex := ExecutorFunc(func(ctx context.Context, id string, tg *target.Target, out chan<- Result) {
		<-ctx.Done()
	})
	s, err := New(session.Env{ID: "1", Host: h}, "test", Config{
		Params: params.NewCollection(params.ScannerBase("test scanner")...),
		Executors: func(context.Context, *params.Collection) ([]Executor, error) {
			return []Executor{ex}, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.Params().Set(params.Targets, "10.0.0.1"))

	// The host default replaces the 10s parameter default.
	start := time.Now()
	_, err = s.Scan(context.Background())
	require.NoError(t, err)
	waitDone(t, s)
	assert.Less(t, time.Since(start), 5*time.Second)

	e, err := s.LastHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Results, 1)
	assert.Contains(t, e.Results[0].Error, context.DeadlineExceeded.Error())
}
