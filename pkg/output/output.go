// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package output carries console output from sessions and plugins to the
// renderers attached by the CLI.
package output

import "time"

// EventType is the category of an output event.
type EventType string

const (
	// EventInfo is a plain console line.
	EventInfo EventType = "info"

	// EventError is an error reported by a session or plugin.
	EventError EventType = "error"

	// EventWarning is a non-fatal problem.
	EventWarning EventType = "warning"

	// EventResult is a scan result line; Data holds the history record.
	EventResult EventType = "result"

	// EventTable is tabular data; Data holds a Table.
	EventTable EventType = "table"

	// EventDiag is diagnostic output shown with -v and above.
	EventDiag EventType = "diag"
)

// Level is the verbosity a diagnostic event needs to be shown.
type Level int

const (
	LevelNormal Level = iota
	LevelVerbose
	LevelDebug
	LevelTrace
)

// Event is one item of console output.
type Event struct {
	Type EventType
	// SessionID names the session the output belongs to; empty for the console itself.
	SessionID string
	Level     Level
	Message   string
	Data      any
	Metadata  map[string]any
	Timestamp time.Time
}

// Table is the payload of EventTable.
type Table struct {
	Headers []string
	Rows    [][]string
}
