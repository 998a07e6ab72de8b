package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/vulntor/console/cmd/vulntor-console/internal/format"
	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/scanner"
)

type scanOptions struct {
	params     []string
	targets    []string
	wait       time.Duration
	export     string
	exportFile string
}

func newScanCommand() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <TYPE>",
		Short: "Run a scanner session and print its history entry",
		Long: `Creates a scanner session of the given type, applies parameters, runs
it and prints the results recorded in scan history.

Parameters set with --param are persisted for the scanner type unless
--no-workspace is given.`,
		Example: `  # TCP port scan of a /24
  vulntor-console scan PORTSCAN --targets 10.0.0.0/24 --param ports=22,445

  # Stop the scan after 30 seconds and export partial results
  vulntor-console scan PORTSCAN --targets 10.0.0.5 --wait 30s --export tsv`,
		GroupID: "scan",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return fail(cmd, "scan", err)
			}
			entry, err := runScan(cmd.Context(), app.Host, args[0], opts)
			if err != nil {
				return fail(cmd, "scan", err)
			}
			if err := printScanEntry(cmd, entry, opts); err != nil {
				return err
			}
			if entry.Status == history.StatusFailed {
				return fail(cmd, "scan", scanFailure(entry))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "Set a scanner parameter as name=value (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.targets, "targets", "t", nil, "Targets to scan (addresses, CIDRs or target ids)")
	cmd.Flags().DurationVar(&opts.wait, "wait", 0, "Stop the scan after this duration (0 waits for completion)")
	cmd.Flags().StringVar(&opts.export, "export", "", "Export results as json, jsonl or tsv")
	cmd.Flags().StringVar(&opts.exportFile, "export-file", "", "Write the export to this file instead of stdout")

	return cmd
}

// runScan creates a scanner of scannerType, applies opts and waits for
// the run to finish, returning its history entry. A failed run still
// returns its partial entry.
func runScan(ctx context.Context, h *host.Host, scannerType string, opts *scanOptions) (*history.Entry, error) {
	logger := log.With().Str("command", "scan").Str("type", scannerType).Logger()

	sid, err := h.CreateScanner(ctx, scannerType)
	if err != nil {
		return nil, err
	}
	sc, err := scannerFromHost(h, sid)
	if err != nil {
		return nil, err
	}

	values, err := parseParamArgs(opts.params)
	if err != nil {
		return nil, err
	}
	if len(opts.targets) > 0 {
		values[params.Targets] = strings.Join(opts.targets, ",")
	}
	for name, value := range values {
		if err := sc.Params().Set(name, value); err != nil {
			return nil, err
		}
	}

	historyID, err := sc.Scan(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("session", sid).Str("history", historyID).Msg("scan started")

	waitCtx := ctx
	if opts.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.wait)
		defer cancel()
	}
	switch err := sc.Wait(waitCtx); {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		logger.Warn().Dur("wait", opts.wait).Msg("scan did not complete in time, stopping")
		if err := sc.Stop(ctx); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	entry, err := h.History().Get(ctx, historyID)
	if err != nil {
		return nil, err
	}
	if entry.Status == history.StatusFailed {
		logger.Warn().Str("history", historyID).Str("error", entry.Error).Msg("scan failed")
	}
	return entry, nil
}

func scanFailure(entry *history.Entry) error {
	if entry.Error == "" {
		return fmt.Errorf("%w: history %s", ErrScanFailed, entry.ID)
	}
	return fmt.Errorf("%w: history %s: %s", ErrScanFailed, entry.ID, entry.Error)
}

func scannerFromHost(h *host.Host, id string) (*scanner.Scanner, error) {
	s, ok := h.Session(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrUnknownSession, id)
	}
	sc, ok := s.(*scanner.Scanner)
	if !ok {
		return nil, fmt.Errorf("%w: session %s is not a scanner", ErrUsage, id)
	}
	return sc, nil
}

// parseParamArgs splits name=value pairs. Later pairs win.
func parseParamArgs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: parameter %q is not name=value", ErrUsage, pair)
		}
		out[strings.ToLower(name)] = value
	}
	return out, nil
}

func printScanEntry(cmd *cobra.Command, entry *history.Entry, opts *scanOptions) error {
	if opts.export != "" {
		return exportEntry(cmd, entry, opts.export, opts.exportFile)
	}
	return printEntry(cmd, entry)
}

// printEntry renders an entry as a parameter table and a result table.
func printEntry(cmd *cobra.Command, entry *history.Entry) error {
	f := format.FromCommand(cmd)
	if f.IsJSON() {
		return f.PrintJSON(entry)
	}

	if err := f.PrintHeading(fmt.Sprintf("History %s (%s, %s)", entry.ID, entry.ScannerType, entry.Status)); err != nil {
		return err
	}
	paramRows := make([][]string, 0, len(entry.Parameters))
	for _, name := range sortedKeys(entry.Parameters) {
		paramRows = append(paramRows, []string{name, cast.ToString(formatValue(entry.Parameters[name]))})
	}
	if err := f.PrintTable([]string{"parameter", "value"}, paramRows); err != nil {
		return err
	}

	if err := f.PrintHeading("Results"); err != nil {
		return err
	}
	rows := make([][]string, 0, len(entry.Results))
	for _, r := range entry.Results {
		line := r.Line
		if r.Type == history.RecordError {
			line = r.Error
		}
		rows = append(rows, []string{string(r.Type), r.Target, line})
	}
	if err := f.PrintTable([]string{"type", "target", "line"}, rows); err != nil {
		return err
	}
	return f.PrintSummary(fmt.Sprintf("%d result(s), %d error(s)", entry.Count(history.RecordData), entry.Count(history.RecordError)))
}

func exportEntry(cmd *cobra.Command, entry *history.Entry, formatName, path string) error {
	exportFormat, err := history.ParseFormat(formatName)
	if err != nil {
		return fail(cmd, "export", WithErrorCode(err, codeUsage))
	}

	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fail(cmd, "export", err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("path", path).Msg("Failed to close export file")
			}
		}()
		w = file
	}

	headers := cast.ToStringSlice(entry.Parameters[params.ResultHeaders])
	if err := history.Export(w, entry, exportFormat, headers...); err != nil {
		return fail(cmd, "export", err)
	}
	return nil
}

func formatValue(v any) any {
	if list, ok := v.([]any); ok {
		return strings.Join(cast.ToStringSlice(list), ",")
	}
	if list, ok := v.([]string); ok {
		return strings.Join(list, ",")
	}
	return v
}
