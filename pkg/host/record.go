package host

import (
	"context"
	"fmt"

	"github.com/vulntor/console/pkg/event"
	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/output"
	"github.com/vulntor/console/pkg/scanner"
)

// ResultEvent is published for every recorded scan result.
type ResultEvent struct {
	Run    scanner.RunInfo
	Record history.Record
}

// RecordScanResult routes one scan result into history. The result's
// target is resolved by id or created (deduplicated by key) from the
// address the scanner discovered. The record is then published on the
// session's result topic and, when the run has a client token, on the
// client's topic.
func (h *Host) RecordScanResult(ctx context.Context, run scanner.RunInfo, r scanner.Result) (string, error) {
	targetID, err := h.resolveResultTarget(ctx, run, r)
	if err != nil {
		return "", err
	}
	r.TargetID = targetID

	rec := r.Record()
	if err := h.history.Append(ctx, run.EntryID, rec); err != nil {
		return "", err
	}

	ev := ResultEvent{Run: run, Record: rec}
	h.bus.Publish(ctx, event.ScanResultTopic(run.SessionID), ev)
	if run.ClientToken != "" {
		h.bus.Publish(ctx, event.ClientTopic(run.ClientToken), ev)
	}
	h.out.Diag(output.LevelTrace, "Scan result recorded", map[string]any{
		"session_id": run.SessionID, "type": string(r.Type), "target": rec.Target,
	})
	return targetID, nil
}

func (h *Host) resolveResultTarget(ctx context.Context, run scanner.RunInfo, r scanner.Result) (string, error) {
	if r.TargetID != "" {
		if _, ok := h.targets.GetString(r.TargetID); ok {
			return r.TargetID, nil
		}
	}
	if r.Target == nil {
		return "", nil
	}
	t := r.Target.Clone()
	if t.Source == "" || t.Source == "scan" {
		t.Source = "scan:" + run.ScannerType
	}
	id, err := h.addTarget(ctx, t)
	if err != nil {
		return "", fmt.Errorf("record target %s: %w", r.Target.Address(), err)
	}
	return id, nil
}

// StreamResults subscribes fn to the results streamed to a client token.
func (h *Host) StreamResults(token string, fn func(ctx context.Context, ev ResultEvent)) (unsubscribe func()) {
	return h.bus.Subscribe(event.ClientTopic(token), func(ctx context.Context, _ string, data any) {
		if ev, ok := data.(ResultEvent); ok {
			fn(ctx, ev)
		}
	})
}
