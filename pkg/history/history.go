// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package history records scan executions: the parameter snapshot a scan ran
// with and the ordered results it produced.
//
// An entry is append-only while its scan runs and frozen once finalised.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("history entry not found")

	// ErrFrozen is returned when appending to a finalised entry.
	ErrFrozen = errors.New("history entry is frozen")

	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("history store is closed")

	// ErrAlreadyExists is returned when creating an entry with a used id.
	ErrAlreadyExists = errors.New("history entry already exists")
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Final reports whether s is a terminal state.
func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusFailed
}

// RecordType mirrors the scanner result kinds.
type RecordType string

const (
	RecordData  RecordType = "DATA"
	RecordError RecordType = "ERROR"
	RecordInfo  RecordType = "INFO"
)

// Record is one result line of a scan.
type Record struct {
	Type     RecordType     `json:"type"`
	TargetID string         `json:"target_id,omitempty"`
	Target   string         `json:"target,omitempty"`
	Line     string         `json:"line,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Time     time.Time      `json:"time"`
}

func (r Record) String() string {
	switch r.Type {
	case RecordError:
		return fmt.Sprintf("[%s] %s\t%s", r.Type, r.Target, r.Error)
	default:
		return fmt.Sprintf("[%s] %s\t%s", r.Type, r.Target, r.Line)
	}
}

// Entry is one scan execution.
type Entry struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	ScannerType string         `json:"scanner_type"`
	Parameters  map[string]any `json:"parameters"`
	Results     []Record       `json:"results"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at,omitzero"`
}

// NewEntry creates a running entry with a fresh id.
func NewEntry(sessionID, scannerType string, parameters map[string]any) *Entry {
	return &Entry{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		ScannerType: scannerType,
		Parameters:  parameters,
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC(),
	}
}

// Clone returns a copy that shares no slices with e.
func (e *Entry) Clone() *Entry {
	out := *e
	out.Results = slices.Clone(e.Results)
	return &out
}

// Count returns the number of records of type t.
func (e *Entry) Count(t RecordType) int {
	n := 0
	for _, r := range e.Results {
		if r.Type == t {
			n++
		}
	}
	return n
}

// Store persists history entries.
type Store interface {
	Create(ctx context.Context, e *Entry) error
	Append(ctx context.Context, id string, r Record) error
	Finalize(ctx context.Context, id string, status Status, cause error) error
	Get(ctx context.Context, id string) (*Entry, error)
	// Last returns the most recently finalised entry of a session.
	Last(ctx context.Context, sessionID string) (*Entry, error)
	List(ctx context.Context, sessionID string) ([]*Entry, error)
	Close() error
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// normalizeNumbers turns whole JSON numbers back into ints after decoding.
func normalizeNumbers(m map[string]any) {
	for k, v := range m {
		switch x := v.(type) {
		case float64:
			if x == float64(int(x)) {
				m[k] = int(x)
			}
		case map[string]any:
			normalizeNumbers(x)
		}
	}
}
