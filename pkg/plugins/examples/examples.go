// Package examples holds the tutorial plugins shipped with the console.
// Each one walks through a single part of the host API.
package examples

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/plugin"
	"github.com/vulntor/console/pkg/scanner"
)

// Lab is the environment the tutorials run against.
type Lab struct {
	// Target is the address used by the client tutorials.
	Target string
	// Network is the range handed to the scanner tutorials.
	Network string
	// Ports is the port list for PORTSCAN.
	Ports string
	// ClientPort overrides the protocol port of the client tutorials when set.
	ClientPort int
	User       string
	Secret string
	// ScanTimeout bounds the wait in portscan_detail and credscan.
	ScanTimeout time.Duration
}

// DefaultLab matches the GOAD lab layout the tutorials were written for.
func DefaultLab() Lab {
	return Lab{
		Target:      "192.168.56.11",
		Network:     "192.168.56.0/24",
		Ports:       "22,88,445",
		User:        `NORTH\hodor`,
		Secret:      "hodor",
		ScanTimeout: 5 * time.Second,
	}
}

// All returns every tutorial plugin bound to lab.
func All(lab Lab) []plugin.Plugin {
	return []plugin.Plugin{
		Targets(),
		Credentials(),
		Sessions(lab),
		SMBClient(lab),
		LDAPClient(lab),
		PortScan(lab),
		PortScanDetail(lab),
		CredScan(lab),
		RegisterScanner(),
		RegisterUtil(),
	}
}

func scannerSession(h *host.Host, id string) (*scanner.Scanner, error) {
	s, ok := h.Session(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownSession, id)
	}
	sc, ok := s.(*scanner.Scanner)
	if !ok {
		return nil, fmt.Errorf("session %s is %s/%s, not a scanner", id, s.MajorType(), s.SubType())
	}
	return sc, nil
}

// printLastHistory prints the parameters and results of sc's last run.
func printLastHistory(ctx context.Context, h *host.Host, sc *scanner.Scanner) error {
	historyID, err := sc.LastHistoryID()
	if err != nil {
		return err
	}
	h.Printf("History ID: %s", historyID)

	entry, err := sc.LastHistory(ctx)
	if err != nil {
		return err
	}
	if entry == nil {
		h.Printf("No results found, there might be an error")
		return nil
	}

	h.Printf("Scan run parameters:")
	keys := make([]string, 0, len(entry.Parameters))
	for k := range entry.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Printf("%s: %v", k, entry.Parameters[k])
	}

	h.Printf("Scan results:")
	for _, r := range entry.Results {
		h.Printf("%s", r.String())
	}
	return nil
}
