package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFollowsSemverOrDev(t *testing.T) {
	require.NotEmpty(t, Version)
	if Version == "dev" {
		return // development build without ldflags
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "got: %s", Version)
}

func TestStringContainsAllFields(t *testing.T) {
	s := String()

	assert.Contains(t, s, "patchrag")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, Commit)
}

func TestGetInfoMarshalsToJSON(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)

	data, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version"`)
	assert.Contains(t, string(data), `"go_version"`)
}
