// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/vulntor/console/pkg/output"
)

// JSONFormatter writes one JSON object per event (JSON Lines).
type JSONFormatter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONFormatter creates a formatter writing to w.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{encoder: json.NewEncoder(w)}
}

func (f *JSONFormatter) Name() string { return "json-formatter" }

// ShouldHandle skips diagnostics; DiagnosticSubscriber owns those.
func (f *JSONFormatter) ShouldHandle(event output.Event) bool {
	return event.Type != output.EventDiag
}

func (f *JSONFormatter) Handle(event output.Event) {
	obj := map[string]any{
		"type":      event.Type,
		"timestamp": event.Timestamp.Format(time.RFC3339),
	}
	if event.SessionID != "" {
		obj["session_id"] = event.SessionID
	}
	if event.Message != "" {
		obj["message"] = event.Message
	}
	switch d := event.Data.(type) {
	case nil:
	case error:
		// Errors marshal as {}; the message already carries the text.
	default:
		obj["data"] = d
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.encoder.Encode(obj)
}
