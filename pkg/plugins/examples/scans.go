package examples

import (
	"context"
	"errors"

	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/plugin"
	"github.com/vulntor/console/pkg/scanner"
	"github.com/vulntor/console/pkg/scanners/examplescanner"
	"github.com/vulntor/console/pkg/scanners/portscan"
	"github.com/vulntor/console/pkg/session"
)

// PortScan runs a TCP port scan over the lab network and waits for it.
func PortScan(lab Lab) plugin.Plugin {
	return &plugin.Func{
		PluginName: "portscan",
		Desc:       "Run a TCP port scan and print its history entry",
		Fn: func(ctx context.Context, h *host.Host) error {
			sc, err := newPortScanner(ctx, h, lab)
			if err != nil {
				return err
			}
			if _, err := sc.Scan(ctx); err != nil {
				return err
			}
			h.Printf("Scan started")
			h.Printf("Waiting for scan to complete...")
			if err := sc.Wait(ctx); err != nil {
				return err
			}
			h.Printf("Scan completed")
			return printLastHistory(ctx, h, sc)
		},
	}
}

// PortScanDetail is PortScan with a bounded wait: a scan still running
// after lab.ScanTimeout is stopped and its partial results printed.
func PortScanDetail(lab Lab) plugin.Plugin {
	return &plugin.Func{
		PluginName: "portscan_detail",
		Desc:       "Run a TCP port scan, stopping it after a timeout",
		Fn: func(ctx context.Context, h *host.Host) error {
			sc, err := newPortScanner(ctx, h, lab)
			if err != nil {
				return err
			}
			if err := scanWithTimeout(ctx, h, sc, lab); err != nil {
				return err
			}
			return printLastHistory(ctx, h, sc)
		},
	}
}

// CredScan runs the credentialed example scanner with a stored credential.
func CredScan(lab Lab) plugin.Plugin {
	return &plugin.Func{
		PluginName: "credscan",
		Desc:       "Run a credentialed scanner over the lab network",
		Fn: func(ctx context.Context, h *host.Host) error {
			cid, _, err := h.AddCredential(ctx, lab.User, lab.Secret)
			if err != nil {
				return err
			}
			h.Printf("Credential added")

			if err := h.Registry().Register(session.Scanner, examplescanner.TypeName, examplescanner.New, "Example scanner"); err != nil && !errors.Is(err, session.ErrDuplicateType) {
				return err
			}
			sid, err := h.CreateScanner(ctx, examplescanner.TypeName)
			if err != nil {
				return err
			}
			h.Printf("Credentialed Scanner created")

			sc, err := scannerSession(h, sid)
			if err != nil {
				return err
			}
			if err := sc.Params().Set(params.Targets, lab.Network); err != nil {
				return err
			}
			if err := sc.Params().Set(params.Credential, cid); err != nil {
				return err
			}
			if err := scanWithTimeout(ctx, h, sc, lab); err != nil {
				return err
			}
			return printLastHistory(ctx, h, sc)
		},
	}
}

func newPortScanner(ctx context.Context, h *host.Host, lab Lab) (*scanner.Scanner, error) {
	sid, err := h.CreateScanner(ctx, portscan.TypeName)
	if err != nil {
		return nil, err
	}
	h.Printf("TCP Scanner created")

	sc, err := scannerSession(h, sid)
	if err != nil {
		return nil, err
	}
	if err := sc.Params().Set(params.Targets, lab.Network); err != nil {
		return nil, err
	}
	if err := sc.Params().Set(portscan.ParamPorts, lab.Ports); err != nil {
		return nil, err
	}
	return sc, nil
}

func scanWithTimeout(ctx context.Context, h *host.Host, sc *scanner.Scanner, lab Lab) error {
	if _, err := sc.Scan(ctx); err != nil {
		return err
	}
	h.Printf("Scan started")
	h.Printf("Waiting for scan to complete...")

	waitCtx, cancel := context.WithTimeout(ctx, lab.ScanTimeout)
	defer cancel()
	err := sc.Wait(waitCtx)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		h.Printf("Scan did not complete in time, stopping...")
		if err := sc.Stop(ctx); err != nil {
			return err
		}
		h.Printf("Scan stopped")
	case err != nil:
		return err
	default:
		h.Printf("Scan completed before timeout")
	}
	return nil
}
