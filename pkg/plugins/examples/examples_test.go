package examples

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/console/pkg/clients"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/output"
	"github.com/vulntor/console/pkg/output/subscribers"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/plugin"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/scanners/portscan"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

func pipeDial(addrs *[]string) clients.DialFunc {
	return func(_ context.Context, _, address string) (net.Conn, error) {
		*addrs = append(*addrs, address)
		a, b := net.Pipe()
		_ = b.Close()
		return a, nil
	}
}

type fixture struct {
	h      *host.Host
	buf    *subscribers.Buffer
	runner *plugin.Runner
	dialed []string
}

func newFixture(t *testing.T, register func(*session.Registry) error) *fixture {
	t.Helper()
	f := &fixture{}
	reg := session.NewRegistry()
	require.NoError(t, clients.Register(reg, pipeDial(&f.dialed)))
	if register != nil {
		require.NoError(t, register(reg))
	}
	f.h = host.New(host.Options{Registry: reg, Version: "1.0.0"})
	f.buf = subscribers.NewBuffer("test", func(e output.Event) bool { return e.Type == output.EventInfo || e.Type == output.EventError })
	f.h.Output().Subscribe(f.buf)
	t.Cleanup(func() { _ = f.h.Close(context.Background()) })

	plugins := plugin.NewRegistry(f.h.Version())
	plugins.MustRegister(All(testLab(t))...)
	f.runner = &plugin.Runner{Registry: plugins, Host: f.h}
	return f
}

func testLab(t *testing.T) Lab {
	lab := DefaultLab()
	lab.Network = "127.0.0.1"
	lab.ScanTimeout = 10 * time.Second
	return lab
}

func (f *fixture) run(t *testing.T, name string) []string {
	t.Helper()
	require.NoError(t, f.runner.Run(context.Background(), name))
	return f.buf.Messages()
}

func TestAll_Names(t *testing.T) {
	var names []string
	for _, p := range All(DefaultLab()) {
		names = append(names, p.Name())
		assert.NotEmpty(t, p.Description())
	}
	assert.Equal(t, []string{
		"targets", "credentials", "sessions", "smbclient", "ldapclient",
		"portscan", "portscan_detail", "credscan", "registerscanner", "registerutil",
	}, names)
}

func TestTargets(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.run(t, "targets")

	assert.Contains(t, msgs, "Created target with ID: 0")
	assert.Contains(t, msgs, "Created target with ID: 1")
	assert.Contains(t, msgs, "Created targets with IDs: 2, 3")
	assert.Len(t, f.h.Targets(), 4)

	// A second run reuses every id.
	msgs = f.run(t, "targets")
	assert.Len(t, f.h.Targets(), 4)
	assert.Equal(t, 2, strings.Count(strings.Join(msgs, "\n"), "Created targets with IDs: 2, 3"))
}

func TestCredentials(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.run(t, "credentials")

	assert.Contains(t, msgs, "Successfully added credential with ID: 0")
	assert.Contains(t, msgs, `ID: 0 | NORTH\hodor2 | Source: PLUGIN EXAMPLE`)

	c, ok := f.h.Credential("0")
	require.True(t, ok)
	assert.True(t, c.Favorite)
}

func TestSessions(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.run(t, "sessions")

	assert.Contains(t, msgs, "Target and credential added")
	assert.Contains(t, msgs, "SMB Session created")
	assert.Contains(t, msgs, "Session ID: 0")
	assert.Contains(t, msgs, "Major Type: CLIENT")
	assert.Contains(t, msgs, "Subtype: SMB")
}

func TestClientTutorials(t *testing.T) {
	tests := []struct {
		plugin string
		addr   string
	}{
		{plugin: "smbclient", addr: "192.168.56.11:445"},
		{plugin: "ldapclient", addr: "192.168.56.11:389"},
	}

	for _, tt := range tests {
		t.Run(tt.plugin, func(t *testing.T) {
			f := newFixture(t, nil)
			msgs := f.run(t, tt.plugin)

			assert.Equal(t, []string{tt.addr}, f.dialed)
			assert.Contains(t, msgs, "Login successful")
			assert.Contains(t, msgs, "Connected to 192.168.56.11:"+strings.Split(tt.addr, ":")[1]+` as NORTH\hodor (NTLM)`)
		})
	}
}

func TestPortScan(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	port := ln.Addr().(*net.TCPAddr).Port

	f := newFixture(t, portscan.Register)
	lab := testLab(t)
	lab.Ports = strconv.Itoa(port)

	plugins := plugin.NewRegistry("")
	plugins.MustRegister(PortScan(lab))
	runner := &plugin.Runner{Registry: plugins, Host: f.h}
	require.NoError(t, runner.Run(context.Background(), "portscan"))

	msgs := f.buf.Messages()
	assert.Contains(t, msgs, "TCP Scanner created")
	assert.Contains(t, msgs, "Scan completed")
	assert.Contains(t, msgs, "ports: "+lab.Ports)
	assert.Contains(t, msgs, "targets: [127.0.0.1]")

	found := false
	for _, m := range msgs {
		if strings.HasPrefix(m, "[DATA] 127.0.0.1") && strings.Contains(m, strconv.Itoa(port)) {
			found = true
		}
	}
	assert.True(t, found, "open port result printed: %v", msgs)
}

// slowPortScanner is a PORTSCAN stand-in whose executor runs until cancelled.
func slowPortScanner(_ context.Context, env session.Env) (session.Session, error) {
	return scanner.New(env, portscan.TypeName, scanner.Config{
		Params: portscan.Params(),
		Executors: func(context.Context, *params.Collection) ([]scanner.Executor, error) {
			return []scanner.Executor{scanner.ExecutorFunc(func(ctx context.Context, id string, t *target.Target, out chan<- scanner.Result) {
				<-ctx.Done()
			})}, nil
		},
	})
}

func TestPortScanDetail_StopsAfterTimeout(t *testing.T) {
	f := newFixture(t, func(r *session.Registry) error {
		return r.Register(session.Scanner, portscan.TypeName, slowPortScanner, "slow")
	})
	lab := testLab(t)
	lab.ScanTimeout = 50 * time.Millisecond

	plugins := plugin.NewRegistry("")
	plugins.MustRegister(PortScanDetail(lab))
	runner := &plugin.Runner{Registry: plugins, Host: f.h}
	require.NoError(t, runner.Run(context.Background(), "portscan_detail"))

	msgs := f.buf.Messages()
	assert.Contains(t, msgs, "Scan did not complete in time, stopping...")
	assert.Contains(t, msgs, "Scan stopped")
	assert.NotContains(t, msgs, "History ID: ")
	assert.Contains(t, msgs, "Scan run parameters:")
}

func TestCredScan(t *testing.T) {
	f := newFixture(t, nil)
	msgs := f.run(t, "credscan")

	assert.Contains(t, msgs, "Credential added")
	assert.Contains(t, msgs, "Credentialed Scanner created")
	assert.Contains(t, msgs, "Scan completed before timeout")
	assert.Contains(t, msgs, "127.0.0.1 - result1 - result2")
	assert.Contains(t, msgs, "credential: 0")

	// The scanner type stays registered for a second run.
	require.NoError(t, f.runner.Run(context.Background(), "credscan"))
}

func TestRegisterPlugins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.run(t, "registerscanner")
	msgs := f.run(t, "registerutil")
	assert.Contains(t, msgs, "Registered SCANNER/EXAMPLESCANNER")
	assert.Contains(t, msgs, "Registered UTIL/EXAMPLEUTIL")

	sid, err := f.h.CreateUtil(ctx, "EXAMPLEUTIL")
	require.NoError(t, err)
	v, err := f.h.Command(ctx, sid, "examplecmd", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, true, v)
	assert.Contains(t, f.buf.Messages(), "Command received: hello world")

	// Registering twice fails loudly and leaves the host running.
	err = f.runner.Run(ctx, "registerutil")
	assert.ErrorIs(t, err, session.ErrDuplicateType)
	_, err = f.h.CreateScanner(ctx, "EXAMPLESCANNER")
	assert.NoError(t, err)
}
