package host

import (
	"context"
	"fmt"

	"github.com/vulntor/console/pkg/arena"
	"github.com/vulntor/console/pkg/event"
	"github.com/vulntor/console/pkg/output"
	"github.com/vulntor/console/pkg/target"
)

// TargetEntry pairs a target with its id.
type TargetEntry struct {
	ID     string
	Target *target.Target
}

// AddTarget parses address and stores it.
func (h *Host) AddTarget(ctx context.Context, address string) (string, *target.Target, error) {
	t, err := target.Parse(address)
	if err != nil {
		return "", nil, err
	}
	t.Source = "user"
	id, err := h.AddTargetObj(ctx, t)
	if err != nil {
		return "", nil, err
	}
	stored, _ := h.Target(id)
	return id, stored, nil
}

// AddTargetObj stores t. A target with the same key as a stored one
// enriches that entry and returns its id.
func (h *Host) AddTargetObj(ctx context.Context, t *target.Target) (string, error) {
	if err := h.checkOpen(); err != nil {
		return "", err
	}
	return h.addTarget(ctx, t)
}

func (h *Host) addTarget(ctx context.Context, t *target.Target) (string, error) {
	if t == nil {
		return "", target.ErrNoAddress
	}
	if err := t.Validate(); err != nil {
		return "", err
	}
	id, created := h.storeTarget(t)
	if created {
		h.out.Diag(output.LevelVerbose, "Target added", map[string]any{"id": id, "address": t.Address()})
		h.bus.Publish(ctx, event.TopicTarget, TargetEntry{ID: id, Target: t.Clone()})
	}
	return id, nil
}

// AddTargetObjMulti validates every target before storing any of them.
func (h *Host) AddTargetObjMulti(ctx context.Context, ts []*target.Target) ([]string, error) {
	for i, t := range ts {
		if t == nil {
			return nil, fmt.Errorf("target %d: %w", i, target.ErrNoAddress)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
	}
	ids := make([]string, 0, len(ts))
	for _, t := range ts {
		id, err := h.AddTargetObj(ctx, t)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Host) storeTarget(t *target.Target) (string, bool) {
	h.keyMu.Lock()
	defer h.keyMu.Unlock()

	if n, ok := h.lookupTarget(t); ok {
		h.targets.Update(n, func(cur *target.Target) *target.Target {
			return cur.Enrich(t)
		})
		if cur, ok := h.targets.Get(n); ok {
			h.indexTarget(n, cur)
		}
		return arena.ID(n), false
	}
	n := h.targets.Insert(t.Clone())
	h.indexTarget(n, t)
	return arena.ID(n), true
}

// lookupTarget finds the stored target sharing an identity key with t.
// An IP match is skipped when both sides carry different hostnames.
// keyMu must be held.
func (h *Host) lookupTarget(t *target.Target) (int, bool) {
	for _, key := range t.Keys() {
		n, ok := h.targetKeys[key]
		if !ok {
			continue
		}
		if cur, ok := h.targets.Get(n); ok && cur.SameHost(t) {
			return n, true
		}
	}
	return 0, false
}

// indexTarget maps every unclaimed key of t to n. keyMu must be held.
func (h *Host) indexTarget(n int, t *target.Target) {
	for _, key := range t.Keys() {
		if _, taken := h.targetKeys[key]; !taken {
			h.targetKeys[key] = n
		}
	}
}

// Target returns a copy of the stored target.
func (h *Host) Target(id string) (*target.Target, bool) {
	t, ok := h.targets.GetString(id)
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// TargetID returns the id of the stored target sharing an identity key
// with t.
func (h *Host) TargetID(t *target.Target) (string, bool) {
	h.keyMu.Lock()
	defer h.keyMu.Unlock()
	n, ok := h.lookupTarget(t)
	if !ok {
		return "", false
	}
	return arena.ID(n), true
}

// Targets lists stored targets in id order.
func (h *Host) Targets() []TargetEntry {
	snap := h.targets.Snapshot()
	out := make([]TargetEntry, 0, len(snap))
	for _, e := range snap {
		out = append(out, TargetEntry{ID: arena.ID(e.ID), Target: e.Value.Clone()})
	}
	return out
}
