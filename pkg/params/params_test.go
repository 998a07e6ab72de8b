package params

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestKindCoerce(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		in      any
		want    any
		wantErr bool
	}{
		{"string", KindString, "v", "v", false},
		{"strlist from text", KindStringList, "192.168.56.0/24, 10.0.0.1,,", []string{"192.168.56.0/24", "10.0.0.1"}, false},
		{"strlist from slice", KindStringList, []any{"a", "b"}, []string{"a", "b"}, false},
		{"int from text", KindInt, "5", 5, false},
		{"int padded", KindInt, " 42 ", 42, false},
		{"int invalid", KindInt, "five", nil, true},
		{"int leading zero is decimal", KindInt, "010", 10, false},
		{"int leading zero eight", KindInt, "08", 8, false},
		{"int hex rejected", KindInt, "0x10", nil, true},
		{"int from number", KindInt, int64(7), 7, false},
		{"bool 1", KindBool, "1", true, false},
		{"bool True", KindBool, "True", true, false},
		{"bool 0", KindBool, "0", false, false},
		{"bool False", KindBool, "False", false, false},
		{"bool invalid", KindBool, "maybe", nil, true},
		{"duration text", KindDuration, "1m30s", 90 * time.Second, false},
		{"duration bare seconds", KindDuration, "5", 5 * time.Second, false},
		{"duration bare seconds leading zero", KindDuration, "010", 10 * time.Second, false},
		{"duration value", KindDuration, 2 * time.Second, 2 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.kind.Coerce(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollection_SetFlattenRoundTrip(t *testing.T) {
	c := NewCollection(
		New("k", KindString, "", nil),
		New("n", KindInt, "", 1),
	)

	require.NoError(t, c.Set("k", "v"))
	require.NoError(t, c.Set("n", "5"))

	flat := c.Flatten()
	assert.Equal(t, "v", flat["k"])
	assert.Equal(t, 5, flat["n"], "declared int flattens as int")
}

func TestCollection_SetErrorsKeepPreviousValue(t *testing.T) {
	c := NewCollection(New("n", KindInt, "", 7))

	require.ErrorIs(t, c.Set("missing", "x"), ErrUnknownParameter)

	require.NoError(t, c.Set("n", "3"))
	require.ErrorIs(t, c.Set("n", "three"), ErrInvalidValue)
	assert.Equal(t, 3, c.Int("n"))

	require.NoError(t, c.Reset("n"))
	assert.Equal(t, 7, c.Int("n"))
}

func TestCollection_Validate(t *testing.T) {
	c := NewCollection(ScannerBase("test")...)

	err := c.Validate()
	require.ErrorIs(t, err, ErrMissingRequired)
	assert.Contains(t, err.Error(), "targets")

	require.NoError(t, c.Set(Targets, "192.168.56.0/24"))
	require.NoError(t, c.Validate())
}

func TestCollection_TypedGetters(t *testing.T) {
	c := NewCollection(CredentialedScanner("creds", "SERVERIP", "result1")...)
	require.NoError(t, c.Set(Credential, "3"))
	require.NoError(t, c.Set(ShowErrors, "1"))
	require.NoError(t, c.Set(Timeout, "2s"))

	assert.Equal(t, 3, c.Int(Credential))
	assert.True(t, c.Bool(ShowErrors))
	assert.Equal(t, 2*time.Second, c.Duration(Timeout))
	assert.Equal(t, 100, c.Int(Workers))
	assert.Equal(t, []string{"SERVERIP", "result1"}, c.StringList(ResultHeaders))
	assert.Equal(t, "NTLM", c.String(AuthType))
}

func TestCollection_CloneIsIndependent(t *testing.T) {
	c := NewCollection(New(Targets, KindStringList, "", nil))
	require.NoError(t, c.Set(Targets, "a,b"))

	snap := c.Clone()
	require.NoError(t, c.Set(Targets, "c"))

	assert.Equal(t, []string{"a", "b"}, snap.StringList(Targets))
	assert.Equal(t, []string{"c"}, c.StringList(Targets))
}

func TestCollection_AddDuplicate(t *testing.T) {
	c := NewCollection(New("a", KindString, "", nil))
	require.ErrorIs(t, c.Add(New("a", KindInt, "", nil)), ErrDuplicateParameter)
	assert.Panics(t, func() { NewCollection(New("x", KindString, "", nil), New("x", KindString, "", nil)) })
}

func TestCollection_MergeAndLoad(t *testing.T) {
	defaults := NewCollection(New("randomparam", KindString, "Random parameter", "randomvalue").AsRequired())
	override := NewCollection(New("randomparam", KindString, "", nil), New("extra", KindBool, "", false))
	require.NoError(t, override.Set("randomparam", "changed"))

	require.NoError(t, defaults.Merge(override))
	assert.Equal(t, "changed", defaults.String("randomparam"))
	assert.True(t, defaults.Has("extra"))

	skipped, err := defaults.Load(map[string]any{"extra": "True", "unknown": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"unknown"}, skipped)
	assert.True(t, defaults.Bool("extra"))
}

func TestCollection_Marshal(t *testing.T) {
	c := NewCollection(
		New("ports", KindStringList, "", nil),
		New("timeout", KindDuration, "", time.Second),
	)
	require.NoError(t, c.Set("ports", "22,445"))

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ports":["22","445"],"timeout":"1s"}`, string(raw))

	out, err := yaml.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, "ports:\n    - \"22\"\n    - \"445\"\n", string(out), "only explicitly set values persist")
}

func TestCollection_Rows(t *testing.T) {
	c := NewCollection(ScannerBase("info text", "SERVERIP")...)
	require.NoError(t, c.Set(Targets, "10.0.0.1"))

	rows := c.Rows(false)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"targets", "10.0.0.1", "strlist", "yes", rows[0][4]}, rows[0])
	assert.Len(t, c.Rows(true), 6)
}
