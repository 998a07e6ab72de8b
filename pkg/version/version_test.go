package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "Vulntor console")
	assert.Contains(t, info, Version)
	assert.Contains(t, info, Commit)
	assert.Contains(t, info, BuildDate)
}

func TestGet(t *testing.T) {
	v := Get()
	assert.Equal(t, Version, v.Version)
	assert.Equal(t, Commit, v.Commit)
	assert.Equal(t, BuildDate, v.BuildDate)
	assert.False(t, v.Release, "dev build")
}

func TestIsRelease(t *testing.T) {
	tests := map[string]bool{
		"1.0.0":      true,
		"v2.3.4":     true,
		"1.2.0-rc.1": false,
		"dev":        false,
		"":           false,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsRelease(in), in)
	}
}

func TestStartDate_IsInitialized(t *testing.T) {
	assert.Less(t, time.Since(StartDate), time.Minute)
}
