package portscan

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/console/pkg/fingerprint"
	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

func listen(t *testing.T, banner string) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if banner != "" {
				_, _ = conn.Write([]byte(banner))
			}
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func collect(ex scanner.Executor, t *target.Target) []scanner.Result {
	out := make(chan scanner.Result, 64)
	ex.Run(context.Background(), "0", t, out)
	close(out)
	var rs []scanner.Result
	for r := range out {
		rs = append(rs, r)
	}
	return rs
}

func TestExecutor_FakeDial(t *testing.T) {
	open := map[string]bool{"10.0.0.1:22": true, "10.0.0.1:445": true}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if open[addr] {
			c1, c2 := net.Pipe()
			c2.Close()
			return c1, nil
		}
		return nil, errors.New("connection refused")
	}
	ex := &Executor{Ports: []int{445, 22, 88}, Workers: 2, ConnectTimeout: time.Second, Dial: dial}

	rs := collect(ex, &target.Target{IP: "10.0.0.1"})
	require.Len(t, rs, 3)
	assert.Equal(t, scanner.ResultData, rs[0].Type)
	assert.Equal(t, PortResult{Port: 22, Status: "open"}, rs[0].Data)
	assert.Equal(t, PortResult{Port: 445, Status: "open"}, rs[1].Data)
	assert.Equal(t, scanner.ResultInfo, rs[2].Type)
	assert.Equal(t, "2/3 ports open", rs[2].Info)

	rs = collect(ex, &target.Target{IP: "10.0.0.2"})
	require.Len(t, rs, 1)
	assert.Equal(t, scanner.ResultError, rs[0].Type)
	assert.ErrorIs(t, rs[0].Err, ErrNoOpenPorts)
}

func TestExecutor_Banner(t *testing.T) {
	port := listen(t, "SSH-2.0-OpenSSH_9.6\r\nextra")
	ex := &Executor{Ports: []int{port}, Workers: 1, ConnectTimeout: time.Second, ReadTimeout: time.Second, Banner: true}

	rs := collect(ex, &target.Target{IP: "127.0.0.1"})
	require.Len(t, rs, 2)
	r := rs[0].Data.(PortResult)
	assert.Equal(t, "SSH-2.0-OpenSSH_9.6", r.Banner)
	assert.Equal(t, strconv.Itoa(port)+"\topen\tSSH-2.0-OpenSSH_9.6", r.ToLine("\t"))
	assert.Equal(t, map[string]any{"port": port, "status": "open", "banner": "SSH-2.0-OpenSSH_9.6"}, r.ToMap())
}

func TestExecutor_Fingerprint(t *testing.T) {
	port := listen(t, "SSH-2.0-OpenSSH_9.6\r\n")
	ex := &Executor{
		Ports: []int{port}, Workers: 1, ConnectTimeout: time.Second, ReadTimeout: time.Second,
		Banner: true, Fingerprint: fingerprint.Builtin(),
	}

	rs := collect(ex, &target.Target{IP: "127.0.0.1"})
	require.Len(t, rs, 2)
	r := rs[0].Data.(PortResult)
	require.NotNil(t, r.Service)
	assert.Equal(t, "OpenSSH", r.Service.Product)
	assert.Equal(t, "9.6", r.Service.Version)
	assert.Equal(t, strconv.Itoa(port)+"\topen\tSSH-2.0-OpenSSH_9.6\tOpenSSH 9.6", r.ToLine("\t"))
	assert.Equal(t, "OpenBSD", r.ToMap()["vendor"])
}

func TestExecutors_FingerprintFollowsBanner(t *testing.T) {
	p := Params()
	exs, err := Executors(nil)(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, exs[0].(*Executor).Fingerprint, "no banner, no fingerprinting")

	require.NoError(t, p.Set(ParamBanner, "true"))
	exs, err = Executors(nil)(context.Background(), p)
	require.NoError(t, err)
	assert.NotNil(t, exs[0].(*Executor).Fingerprint)

	require.NoError(t, p.Set(ParamFingerprint, "false"))
	exs, err = Executors(nil)(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, exs[0].(*Executor).Fingerprint)
}

func TestExecutors_BadPorts(t *testing.T) {
	p := Params()
	require.NoError(t, p.Set(ParamPorts, "70000"))
	_, err := Executors(nil)(context.Background(), p)
	assert.Error(t, err)

	require.NoError(t, p.Set(ParamPorts, " , "))
	_, err = Executors(nil)(context.Background(), p)
	assert.ErrorIs(t, err, params.ErrInvalidValue)
}

func TestExecutors_NonPositiveConnectTimeout(t *testing.T) {
	p := Params()
	for _, v := range []string{"0", "0s", "-1s"} {
		require.NoError(t, p.Set(ParamConnectTimeout, v))
		_, err := Executors(nil)(context.Background(), p)
		assert.ErrorIs(t, err, params.ErrInvalidValue, v)
	}

	require.NoError(t, p.Set(ParamConnectTimeout, "2"))
	exs, err := Executors(nil)(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, exs[0].(*Executor).ConnectTimeout)
}

func TestPortscan_ThroughHost(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry()
	require.NoError(t, Register(reg))
	assert.ErrorIs(t, Register(reg), session.ErrDuplicateType)

	h := host.New(host.Options{Registry: reg})
	t.Cleanup(func() { _ = h.Close(ctx) })

	openPort := listen(t, "")
	shut := closedPort(t)

	sid, err := h.CreateScanner(ctx, TypeName)
	require.NoError(t, err)
	_, err = h.Command(ctx, sid, "setparam", params.Targets, "127.0.0.1")
	require.NoError(t, err)
	_, err = h.Command(ctx, sid, "setparam", ParamPorts, strconv.Itoa(openPort)+","+strconv.Itoa(shut))
	require.NoError(t, err)

	_, err = h.Command(ctx, sid, "scan")
	require.NoError(t, err)

	s, _ := h.Session(sid)
	sc := s.(*scanner.Scanner)
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, sc.Wait(wctx))
	assert.Equal(t, scanner.StateCompleted, sc.State())

	e, err := sc.LastHistory(ctx)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, history.StatusCompleted, e.Status)
	assert.Equal(t, 1, e.Count(history.RecordData))
	assert.Equal(t, strconv.Itoa(openPort)+","+strconv.Itoa(shut), e.Parameters[ParamPorts])

	targets := h.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "scan:PORTSCAN", targets[0].Target.Source)
}
