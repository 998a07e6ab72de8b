package scanner

import (
	"fmt"
	"strings"

	"github.com/vulntor/console/pkg/netutil"
	"github.com/vulntor/console/pkg/target"
)

// TargetRefPrefix marks a reference to a stored target in the targets
// parameter, e.g. "t:3".
const TargetRefPrefix = "t:"

// Job is one target queued for scanning. TargetID is empty for addresses
// that are not stored yet.
type Job struct {
	TargetID string
	Target   *target.Target
}

// TargetLookup resolves stored targets by id.
type TargetLookup interface {
	Target(id string) (*target.Target, bool)
}

// ResolveTargets turns target specifications into scan jobs. Entries are
// either stored-target references or anything netutil.Expand accepts.
// Duplicates by target key are dropped; the first occurrence wins.
func ResolveTargets(specs []string, lookup TargetLookup, limit int) ([]Job, []error) {
	var (
		jobs []Job
		errs []error
		seen = make(map[string]struct{})
	)
	add := func(j Job) {
		key := j.Target.Key()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		jobs = append(jobs, j)
	}

	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if id, ok := strings.CutPrefix(strings.ToLower(spec), TargetRefPrefix); ok {
			if lookup == nil {
				errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownTarget, spec))
				continue
			}
			t, found := lookup.Target(id)
			if !found {
				errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownTarget, spec))
				continue
			}
			add(Job{TargetID: id, Target: t})
			continue
		}

		addrs, expandErrs := netutil.ExpandAll([]string{spec}, limit)
		errs = append(errs, expandErrs...)
		for _, addr := range addrs {
			t, err := target.Parse(addr)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			t.Source = "scan"
			add(Job{Target: t})
		}
	}
	return jobs, errs
}
