// Package portscan implements the PORTSCAN scanner: a TCP connect scan of a
// port list against every target.
package portscan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/vulntor/console/pkg/fingerprint"
	"github.com/vulntor/console/pkg/netutil"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

const (
	TypeName = "PORTSCAN"

	ParamPorts          = "ports"
	ParamPortWorkers    = "portworkers"
	ParamConnectTimeout = "connecttimeout"
	ParamBanner         = "banner"
	ParamFingerprint    = "fingerprint"

	DefaultPorts = "21,22,23,25,53,80,88,110,143,389,443,445,636,3306,3389,5432,5900,5985,8080,8443"

	bannerSize = 512
)

// ErrNoOpenPorts is reported for targets where every probe failed.
var ErrNoOpenPorts = errors.New("no open ports")

// PortResult is the DATA payload for one open port.
type PortResult struct {
	Port    int
	Status  string
	Banner  string
	Service *fingerprint.Result
}

func (r PortResult) ToLine(sep string) string {
	line := strconv.Itoa(r.Port) + sep + r.Status
	if r.Banner != "" {
		line += sep + r.Banner
	}
	if r.Service != nil {
		line += sep + r.Service.Service()
	}
	return line
}

func (r PortResult) ToMap() map[string]any {
	m := map[string]any{"port": r.Port, "status": r.Status}
	if r.Banner != "" {
		m["banner"] = r.Banner
	}
	if r.Service != nil {
		m["product"] = r.Service.Product
		m["vendor"] = r.Service.Vendor
		if r.Service.Version != "" {
			m["version"] = r.Service.Version
		}
		if r.Service.CPE != "" {
			m["cpe"] = r.Service.CPE
		}
	}
	return m
}

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Executor probes every configured port of one target.
type Executor struct {
	Ports          []int
	Workers        int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Banner         bool
	Dial           DialFunc
	// Fingerprint identifies banners; nil leaves them raw.
	Fingerprint fingerprint.Resolver
}

func (e *Executor) Run(ctx context.Context, targetID string, t *target.Target, out chan<- scanner.Result) {
	var (
		mu   sync.Mutex
		open []PortResult
	)
	g := new(errgroup.Group)
	g.SetLimit(max(e.Workers, 1))
	for _, port := range e.Ports {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if r, ok := e.probe(ctx, t.Address(), port); ok {
				mu.Lock()
				open = append(open, r)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(open) == 0 {
		if err := ctx.Err(); err != nil {
			out <- scanner.Error(targetID, t, err)
			return
		}
		out <- scanner.Error(targetID, t, fmt.Errorf("%w among %d probed", ErrNoOpenPorts, len(e.Ports)))
		return
	}

	slices.SortFunc(open, func(a, b PortResult) int { return a.Port - b.Port })
	for _, r := range open {
		out <- scanner.Data(targetID, t, r)
	}
	out <- scanner.Info(targetID, t, "%d/%d ports open", len(open), len(e.Ports))
}

func (e *Executor) probe(ctx context.Context, host string, port int) (PortResult, bool) {
	dctx, cancel := context.WithTimeout(ctx, e.ConnectTimeout)
	defer cancel()

	dial := e.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	conn, err := dial(dctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return PortResult{}, false
	}
	defer conn.Close()

	r := PortResult{Port: port, Status: "open"}
	if e.Banner {
		r.Banner = readBanner(conn, e.ReadTimeout)
		if r.Banner != "" && e.Fingerprint != nil {
			if res, err := e.Fingerprint.Resolve(ctx, fingerprint.Input{Port: port, Banner: r.Banner}); err == nil {
				r.Service = &res
			}
		}
	}
	return r, true
}

func readBanner(conn net.Conn, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = time.Second
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ""
	}
	buf := make([]byte, bannerSize)
	n, _ := bufio.NewReader(conn).Read(buf)
	return printable(string(buf[:n]))
}

// printable keeps the first line of a banner with control characters removed.
func printable(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}

// Params returns the declared PORTSCAN parameters.
func Params() *params.Collection {
	return params.NewCollection(append(
		params.ScannerBase("TCP connect port scanner", "TARGET", "PORT", "STATUS", "BANNER", "SERVICE"),
		params.New(ParamPorts, params.KindString, "Ports to scan, e.g. 22,80,1000-1024", DefaultPorts).AsRequired(),
		params.New(ParamPortWorkers, params.KindInt, "Ports probed concurrently per target", 50).AsAdvanced(),
		params.New(ParamConnectTimeout, params.KindDuration, "TCP connect timeout per port", time.Second),
		params.New(ParamBanner, params.KindBool, "Read a service banner from open ports", false),
		params.New(ParamFingerprint, params.KindBool, "Identify the product behind read banners", true).AsAdvanced(),
	)...)
}

// Executors builds the executor list from the session parameters. A nil
// dial uses the system dialer.
func Executors(dial DialFunc) scanner.ExecutorFactory {
	return func(_ context.Context, p *params.Collection) ([]scanner.Executor, error) {
		ports, err := netutil.ParsePortString(p.String(ParamPorts))
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, fmt.Errorf("%w: empty port list", params.ErrInvalidValue)
		}
		connect := p.Duration(ParamConnectTimeout)
		if connect <= 0 {
			return nil, fmt.Errorf("%w: %s must be positive, got %s", params.ErrInvalidValue, ParamConnectTimeout, connect)
		}
		e := &Executor{
			Ports:          ports,
			Workers:        p.Int(ParamPortWorkers),
			ConnectTimeout: connect,
			ReadTimeout:    connect,
			Banner:         p.Bool(ParamBanner),
			Dial:           dial,
		}
		if e.Banner && p.Bool(ParamFingerprint) {
			e.Fingerprint = fingerprint.Builtin()
		}
		return []scanner.Executor{e}, nil
	}
}

// New is the session factory for PORTSCAN.
func New(_ context.Context, env session.Env) (session.Session, error) {
	return scanner.New(env, TypeName, scanner.Config{
		Params:    Params(),
		Executors: Executors(nil),
	})
}

// Register declares PORTSCAN in r.
func Register(r *session.Registry) error {
	return r.Register(session.Scanner, TypeName, New, "TCP connect port scanner")
}
