package subscribers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/console/pkg/output"
)

func TestHumanFormatter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	stream := output.NewStream()
	stream.Subscribe(NewHumanFormatter(&stdout, &stderr, false))

	stream.Info("3", "Command received: %s", "hello")
	stream.Error("3", errors.New("login failed"))
	stream.Warning("", "careful")
	stream.Table("", []string{"ID", "ADDRESS"}, [][]string{{"0", "10.0.0.1"}})
	stream.Diag(output.LevelDebug, "hidden", nil)

	assert.Contains(t, stdout.String(), "[3] Command received: hello\n")
	assert.Contains(t, stdout.String(), "ID  ADDRESS")
	assert.Contains(t, stdout.String(), "0   10.0.0.1")
	assert.NotContains(t, stdout.String(), "hidden")
	assert.Equal(t, "[3] Error: login failed\nWarning: careful\n", stderr.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	stream := output.NewStream()
	stream.Subscribe(NewJSONFormatter(&buf))

	stream.Info("1", "hello")
	stream.Error("1", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["type"])
	assert.Equal(t, "1", first["session_id"])
	assert.Equal(t, "hello", first["message"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "boom", second["message"])
	assert.NotContains(t, second, "data")
}

func TestDiagnosticSubscriber_Level(t *testing.T) {
	var buf bytes.Buffer
	stream := output.NewStream()
	stream.Subscribe(NewDiagnosticSubscriber(output.LevelVerbose, &buf, false))

	stream.Diag(output.LevelVerbose, "Target added", map[string]any{"id": "0"})
	stream.Diag(output.LevelTrace, "too detailed", nil)
	stream.Info("", "not a diag")

	assert.Contains(t, buf.String(), "[VERBOSE]")
	assert.Contains(t, buf.String(), "Target added map[id:0]")
	assert.NotContains(t, buf.String(), "too detailed")
	assert.NotContains(t, buf.String(), "not a diag")
}

func TestBufferAndUnsubscribe(t *testing.T) {
	stream := output.NewStream()
	errorsOnly := NewBuffer("errors", func(e output.Event) bool { return e.Type == output.EventError })
	all := NewBuffer("all", nil)
	stream.Subscribe(errorsOnly)
	stream.Subscribe(all)
	assert.Equal(t, 2, stream.SubscriberCount())

	stream.Info("", "a")
	stream.Error("", errors.New("b"))
	stream.Error("", nil)

	assert.Equal(t, []string{"b"}, errorsOnly.Messages())
	assert.Equal(t, []string{"a", "b"}, all.Messages())
	assert.False(t, all.Events()[0].Timestamp.IsZero())

	stream.Unsubscribe("all")
	assert.Equal(t, 1, stream.SubscriberCount())
	stream.Info("", "c")
	assert.Len(t, all.Events(), 2)
}
