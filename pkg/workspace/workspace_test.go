package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func override[T any](t *testing.T, target *T, v T) {
	t.Helper()
	old := *target
	*target = v
	t.Cleanup(func() { *target = old })
}

func TestPrepareCreatesStructure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")

	prepared, err := Prepare(root)
	require.NoError(t, err)
	assert.Equal(t, root, prepared)

	for _, sub := range Subdirectories() {
		info, err := os.Stat(filepath.Join(root, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir(), sub)
	}

	// Idempotent.
	_, err = Prepare(root)
	require.NoError(t, err)
}

func TestPrepareUsesEnvOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "custom")
	t.Setenv("VULNTOR_WORKSPACE", dir)

	prepared, err := Prepare("")
	require.NoError(t, err)
	assert.Equal(t, dir, prepared)
}

func TestDefaultRootPerOS(t *testing.T) {
	t.Setenv("VULNTOR_WORKSPACE", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("AppData", "")
	override(t, &userHomeDir, func() (string, error) { return "/home/arya", nil })

	tests := []struct {
		goos string
		want string
	}{
		{goos: "linux", want: filepath.Join("/home/arya", ".local", "share", "vulntor", "console")},
		{goos: "darwin", want: filepath.Join("/home/arya", "Library", "Application Support", "Vulntor", "console")},
		{goos: "windows", want: filepath.Join("/home/arya", "AppData", "Roaming", "Vulntor", "console")},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			override(t, &getGOOS, func() string { return tt.goos })
			got, err := defaultRoot()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("xdg", func(t *testing.T) {
		override(t, &getGOOS, func() string { return "linux" })
		t.Setenv("XDG_DATA_HOME", "/data")
		got, err := defaultRoot()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data", "vulntor", "console"), got)
	})

	t.Run("no home", func(t *testing.T) {
		override(t, &getGOOS, func() string { return "linux" })
		override(t, &userHomeDir, func() (string, error) { return "", errors.New("no home") })
		_, err := defaultRoot()
		assert.Error(t, err)
	})
}

func TestSessionFilePath(t *testing.T) {
	root := "/ws"
	assert.Equal(t, filepath.Join(root, SessionsDir, SessionFile), SessionFilePath(root, ""))
	assert.Equal(t, filepath.Join(root, SessionsDir, "lab.yaml"), SessionFilePath(root, "lab.yaml"))
	assert.Equal(t, "/tmp/state.yaml", SessionFilePath(root, "/tmp/state.yaml"))
	assert.Equal(t, filepath.Join(root, ExportsDir, "x.json"), Path(root, ExportsDir, "x.json"))
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithContext(context.Background(), "/ws")
	root, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "/ws", root)
}
