// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package scanner implements the scanner extension contract: executors that
// work on one target each, the core that schedules them, and the scanner
// session whose monitor loop streams results into history.
package scanner

import (
	"fmt"
	"time"

	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/target"
)

// ResultType tags an executor output item.
type ResultType string

const (
	ResultData  ResultType = "DATA"
	ResultError ResultType = "ERROR"
	ResultInfo  ResultType = "INFO"
)

// Payload is the structured body of a DATA result.
type Payload interface {
	// ToLine renders a single display line, fields joined by sep.
	ToLine(sep string) string
	// ToMap returns a plain mapping for serialization.
	ToMap() map[string]any
}

// Result is one item pushed by an executor.
type Result struct {
	Type     ResultType
	TargetID string
	Target   *target.Target
	Data     Payload
	Err      error
	Info     string
	Time     time.Time
}

// Data builds a DATA result.
func Data(targetID string, t *target.Target, p Payload) Result {
	return Result{Type: ResultData, TargetID: targetID, Target: t, Data: p, Time: time.Now().UTC()}
}

// Error builds an ERROR result.
func Error(targetID string, t *target.Target, err error) Result {
	if err == nil {
		err = ErrNoCause
	}
	return Result{Type: ResultError, TargetID: targetID, Target: t, Err: err, Time: time.Now().UTC()}
}

// Info builds an INFO result.
func Info(targetID string, t *target.Target, format string, args ...any) Result {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return Result{Type: ResultInfo, TargetID: targetID, Target: t, Info: msg, Time: time.Now().UTC()}
}

// Address returns the display address of the result's target.
func (r Result) Address() string {
	if r.Target == nil {
		return ""
	}
	return r.Target.Address()
}

// Line renders the result as a single display line.
func (r Result) Line(sep string) string {
	switch r.Type {
	case ResultData:
		if r.Data == nil {
			return r.Address()
		}
		return r.Data.ToLine(sep)
	case ResultError:
		return r.Address() + sep + r.errText()
	default:
		return r.Address() + sep + r.Info
	}
}

// Record converts the result into a history record.
func (r Result) Record() history.Record {
	rec := history.Record{
		Type:     history.RecordType(r.Type),
		TargetID: r.TargetID,
		Target:   r.Address(),
		Time:     r.Time,
	}
	switch r.Type {
	case ResultData:
		rec.Line = r.Line("\t")
		if r.Data != nil {
			rec.Data = r.Data.ToMap()
		}
	case ResultError:
		rec.Error = r.errText()
	default:
		rec.Line = r.Info
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	return rec
}

// Fields is a generic payload with ordered columns.
type Fields struct {
	Keys   []string
	Values map[string]any
}

// NewFields builds a payload from alternating key, value pairs.
func NewFields(kv ...any) Fields {
	f := Fields{Values: make(map[string]any, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		k := fmt.Sprint(kv[i])
		f.Keys = append(f.Keys, k)
		f.Values[k] = kv[i+1]
	}
	return f
}

func (f Fields) ToLine(sep string) string {
	var line string
	for i, k := range f.Keys {
		if i > 0 {
			line += sep
		}
		line += fmt.Sprint(f.Values[k])
	}
	return line
}

func (f Fields) ToMap() map[string]any {
	out := make(map[string]any, len(f.Values))
	for k, v := range f.Values {
		out[k] = v
	}
	return out
}

func (r Result) errText() string {
	if r.Err == nil {
		return ErrNoCause.Error()
	}
	return r.Err.Error()
}
