package history

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatTSV   Format = "tsv"
)

// ParseFormat accepts json, jsonl and tsv, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONL, FormatTSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want json, jsonl or tsv)", s)
	}
}

// Export writes e to w.
//
// json writes the whole entry, jsonl one record per line, tsv the DATA
// records' target and text line under an optional header row.
func Export(w io.Writer, e *Entry, format Format, headers ...string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, r := range e.Results {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("export record: %w", err)
			}
		}
		return nil
	case FormatTSV:
		if len(headers) > 0 {
			if _, err := fmt.Fprintln(w, strings.Join(headers, "\t")); err != nil {
				return err
			}
		}
		for _, r := range e.Results {
			if r.Type != RecordData {
				continue
			}
			if _, err := fmt.Fprintln(w, r.Target+"\t"+r.Line); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
