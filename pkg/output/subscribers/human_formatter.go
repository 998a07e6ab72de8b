// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulntor/console/pkg/output"
)

var (
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")). // Red
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")). // Yellow
			Bold(true)

	sessionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("105")) // Purple

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // Cyan

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62"))
)

// HumanFormatter renders console lines for a terminal, prefixed with the
// originating session id.
type HumanFormatter struct {
	mu           sync.Mutex
	stdout       io.Writer
	stderr       io.Writer
	colorEnabled bool
}

// NewHumanFormatter creates a formatter writing errors to stderr and
// everything else to stdout.
func NewHumanFormatter(stdout, stderr io.Writer, colorEnabled bool) *HumanFormatter {
	return &HumanFormatter{stdout: stdout, stderr: stderr, colorEnabled: colorEnabled}
}

func (f *HumanFormatter) Name() string { return "human-formatter" }

func (f *HumanFormatter) ShouldHandle(event output.Event) bool {
	return event.Type != output.EventDiag
}

func (f *HumanFormatter) Handle(event output.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := ""
	if event.SessionID != "" {
		prefix = f.render(sessionStyle, "["+event.SessionID+"]") + " "
	}

	switch event.Type {
	case output.EventError:
		fmt.Fprintln(f.stderr, prefix+f.render(errorStyle, "Error: ")+event.Message)
	case output.EventWarning:
		fmt.Fprintln(f.stderr, prefix+f.render(warningStyle, "Warning: ")+event.Message)
	case output.EventResult:
		fmt.Fprintln(f.stdout, prefix+f.render(resultStyle, event.Message))
	case output.EventTable:
		table, ok := event.Data.(output.Table)
		if !ok {
			return
		}
		f.table(table)
	default:
		fmt.Fprintln(f.stdout, prefix+f.render(infoStyle, event.Message))
	}
}

func (f *HumanFormatter) table(t output.Table) {
	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(w, f.render(tableHeaderStyle, strings.Join(t.Headers, "\t")))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func (f *HumanFormatter) render(style lipgloss.Style, s string) string {
	if !f.colorEnabled {
		return s
	}
	return style.Render(s)
}
