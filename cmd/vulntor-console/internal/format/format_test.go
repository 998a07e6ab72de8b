package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	var out bytes.Buffer
	f := New(&out, &out, ModeTable, false, false)

	require.NoError(t, f.PrintTable([]string{"id", "target"}, [][]string{{"0", "10.0.0.1"}, {"1", "winterfell"}}))
	assert.Contains(t, out.String(), "ID  TARGET")
	assert.Contains(t, out.String(), "1   winterfell")
}

func TestPrintTable_JSON(t *testing.T) {
	var out bytes.Buffer
	f := New(&out, &out, ModeJSON, false, false)

	require.NoError(t, f.PrintTable([]string{"id", "target"}, [][]string{{"0", "10.0.0.1"}}))
	var items []map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &items))
	assert.Equal(t, []map[string]string{{"id": "0", "target": "10.0.0.1"}}, items)
}

func TestPrintHeadingAndSummary(t *testing.T) {
	var out, errOut bytes.Buffer
	f := New(&out, &errOut, ModeTable, false, false)
	require.NoError(t, f.PrintHeading("Plugins"))
	require.NoError(t, f.PrintSummary("Found 2 plugin(s)"))
	assert.Equal(t, "Plugins\nFound 2 plugin(s)\n", out.String())

	out.Reset()
	quiet := New(&out, &errOut, ModeTable, true, false)
	require.NoError(t, quiet.PrintHeading("Plugins"))
	require.NoError(t, quiet.PrintSummary("x"))
	assert.Empty(t, out.String())
}

func TestPrintFailure(t *testing.T) {
	boom := errors.New("boom")

	var out, errOut bytes.Buffer
	f := New(&out, &errOut, ModeTable, false, false)
	err := f.PrintFailure("scan", boom, "SCAN_FAILURE", []string{"retry"})
	assert.Same(t, boom, err)
	assert.Contains(t, errOut.String(), "Error: boom")
	assert.Contains(t, errOut.String(), "Code: SCAN_FAILURE")
	assert.Contains(t, errOut.String(), "  - retry")

	out.Reset()
	j := New(&out, &errOut, ModeJSON, false, false)
	_ = j.PrintFailure("scan", boom, "SCAN_FAILURE", nil)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "SCAN_FAILURE", payload["error_code"])
}

func TestFromCommand(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("output", "table", "")
	cmd.Flags().Bool("quiet", false, "")
	cmd.Flags().Bool("no-color", false, "")
	require.NoError(t, cmd.Flags().Set("output", "json"))

	f := FromCommand(cmd)
	assert.True(t, f.IsJSON())

	assert.NoError(t, ValidateMode("table"))
	assert.Error(t, ValidateMode("yaml"))
}
