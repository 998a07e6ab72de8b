// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulntor/console/pkg/output"
)

var (
	diagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")) // Gray

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	targetDiagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	pluginDiagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")) // Blue
)

// DiagnosticSubscriber renders EventDiag events up to a verbosity level.
//
// Verbosity levels:
//   - LevelVerbose (1): -v flag
//   - LevelDebug (2): -vv flag
//   - LevelTrace (3): -vvv flag
type DiagnosticSubscriber struct {
	level        output.Level
	writer       io.Writer
	colorEnabled bool
}

// NewDiagnosticSubscriber creates a subscriber writing to writer.
func NewDiagnosticSubscriber(level output.Level, writer io.Writer, colorEnabled bool) *DiagnosticSubscriber {
	return &DiagnosticSubscriber{level: level, writer: writer, colorEnabled: colorEnabled}
}

func (s *DiagnosticSubscriber) Name() string { return "diagnostic-subscriber" }

// ShouldHandle accepts diagnostic events at or below the configured level.
func (s *DiagnosticSubscriber) ShouldHandle(event output.Event) bool {
	return event.Type == output.EventDiag && event.Level <= s.level
}

func (s *DiagnosticSubscriber) Handle(event output.Event) {
	line := fmt.Sprintf("%s %s %s", levelPrefix(event.Level), event.Timestamp.Format("15:04:05"), event.Message)
	if !s.colorEnabled {
		if len(event.Metadata) > 0 {
			line += fmt.Sprintf(" %+v", event.Metadata)
		}
		fmt.Fprintln(s.writer, line)
		return
	}

	switch {
	case strings.HasPrefix(event.Message, "Target added"):
		fmt.Fprintln(s.writer, targetDiagStyle.Render(line))
	case strings.HasPrefix(event.Message, "Plugin "):
		fmt.Fprintln(s.writer, pluginDiagStyle.Render(line))
	default:
		fmt.Fprintln(s.writer, diagStyle.Render(line))
	}
	if len(event.Metadata) > 0 {
		fmt.Fprintln(s.writer, metaStyle.Render(fmt.Sprintf("    %+v", event.Metadata)))
	}
}

func levelPrefix(level output.Level) string {
	switch level {
	case output.LevelVerbose:
		return "[VERBOSE]"
	case output.LevelDebug:
		return "[DEBUG]"
	case output.LevelTrace:
		return "[TRACE]"
	default:
		return "[INFO]"
	}
}
