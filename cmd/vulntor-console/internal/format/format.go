// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package format renders CLI command results as tables or JSON.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// OutputMode defines the output format for CLI commands
type OutputMode string

const (
	ModeJSON  OutputMode = "json"
	ModeTable OutputMode = "table"
)

// Formatter provides consistent output formatting across CLI commands
type Formatter interface {
	PrintJSON(data any) error
	PrintTable(headers []string, rows [][]string) error
	PrintHeading(title string) error
	PrintSummary(message string) error
	// PrintFailure reports err with its code and suggestions.
	PrintFailure(operation string, err error, code string, suggestions []string) error
	IsJSON() bool
}

type formatter struct {
	stdout io.Writer
	stderr io.Writer
	mode   OutputMode
	quiet  bool
	color  bool
}

// New creates a new Formatter
func New(stdout, stderr io.Writer, mode OutputMode, quiet, color bool) Formatter {
	return &formatter{
		stdout: stdout,
		stderr: stderr,
		mode:   mode,
		quiet:  quiet,
		color:  color,
	}
}

// FromCommand builds a Formatter from the command's writers and the
// --output, --quiet and --no-color flags.
func FromCommand(cmd *cobra.Command) Formatter {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	mode := ModeTable
	if flag := cmd.Flags().Lookup("output"); flag != nil {
		mode = ParseMode(flag.Value.String())
	}
	quiet := boolFlag(cmd, "quiet")
	return New(stdout, stderr, mode, quiet, !boolFlag(cmd, "no-color"))
}

func boolFlag(cmd *cobra.Command, name string) bool {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		return false
	}
	v, err := strconv.ParseBool(flag.Value.String())
	return err == nil && v
}

func (f *formatter) IsJSON() bool { return f.mode == ModeJSON }

func (f *formatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintTable writes an aligned table; in JSON mode rows become objects
// keyed by header.
func (f *formatter) PrintTable(headers []string, rows [][]string) error {
	if f.mode == ModeJSON {
		items := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string, len(headers))
			for i, header := range headers {
				if i < len(row) {
					item[header] = row[i]
				}
			}
			items = append(items, item)
		}
		return f.PrintJSON(items)
	}

	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)
	headerLine := make([]string, len(headers))
	for i, h := range headers {
		headerLine[i] = strings.ToUpper(h)
		if f.color {
			headerLine[i] = color.New(color.Bold).Sprint(headerLine[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.Join(headerLine, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Underline(true)

// PrintHeading writes a section title. It is skipped in JSON and quiet mode.
func (f *formatter) PrintHeading(title string) error {
	if f.quiet || f.mode == ModeJSON {
		return nil
	}
	if f.color {
		title = headingStyle.Render(title)
	}
	_, err := fmt.Fprintln(f.stdout, title)
	return err
}

func (f *formatter) PrintSummary(message string) error {
	if f.quiet {
		return nil
	}
	if f.mode == ModeJSON {
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	}
	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}
	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

// PrintFailure prints err and returns it, so commands can end with
// `return f.PrintFailure(...)`.
func (f *formatter) PrintFailure(operation string, err error, code string, suggestions []string) error {
	if err == nil {
		return nil
	}
	if f.mode == ModeJSON {
		_ = f.PrintJSON(map[string]any{
			"success":     false,
			"operation":   operation,
			"error":       err.Error(),
			"error_code":  code,
			"suggestions": suggestions,
		})
		return err
	}

	red := fmt.Sprintf
	if f.color {
		red = color.New(color.FgRed).Sprintf
	}
	fmt.Fprintln(f.stderr, red("Error: %v", err))
	if code != "" && !f.quiet {
		fmt.Fprintf(f.stderr, "Code: %s\n", code)
	}
	if len(suggestions) > 0 && !f.quiet {
		fmt.Fprintln(f.stderr, "\nSuggestions:")
		for _, s := range suggestions {
			fmt.Fprintf(f.stderr, "  - %s\n", s)
		}
	}
	return err
}

// ValidateMode checks if the output mode is valid
func ValidateMode(mode string) error {
	switch OutputMode(mode) {
	case ModeJSON, ModeTable:
		return nil
	default:
		return fmt.Errorf("invalid output mode: %s (must be 'json' or 'table')", mode)
	}
}

// ParseMode converts a string to OutputMode
func ParseMode(mode string) OutputMode {
	if strings.ToLower(mode) == "json" {
		return ModeJSON
	}
	return ModeTable
}
