package realpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHandlesDotAndDotDot(t *testing.T) {
	got, err := Resolve("/", "/a/b/../c/./d", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "/a/c/d", got)
}

func TestResolveRelativePathUsesCwd(t *testing.T) {
	got, err := Resolve("/home/user", "docs/../file.txt", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "/home/user/file.txt", got)
}

func TestResolveDotDotAtRootStaysAtRoot(t *testing.T) {
	got, err := Resolve("/", "/../../etc", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc", got)
}

func TestResolveFollowsAbsoluteSymlinkTarget(t *testing.T) {
	rl := func(path string) (string, bool, error) {
		if path == "/a/link" {
			return "/elsewhere", true, nil
		}
		return "", false, nil
	}
	got, err := Resolve("/", "/a/link/file", true, rl)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/file", got)
}

func TestResolveFollowsRelativeSymlinkTarget(t *testing.T) {
	rl := func(path string) (string, bool, error) {
		if path == "/a/link" {
			return "sibling", true, nil
		}
		return "", false, nil
	}
	got, err := Resolve("/", "/a/link/file", true, rl)
	require.NoError(t, err)
	assert.Equal(t, "/a/sibling/file", got)
}

func TestResolveStopsAtLinkLoopCap(t *testing.T) {
	rl := func(path string) (string, bool, error) {
		return "/loop", true, nil
	}
	_, err := Resolve("/", "/loop", true, rl)
	assert.ErrorIs(t, err, ErrLinkLoop)
}

func TestResolveWithoutFollowIgnoresReadlink(t *testing.T) {
	rl := func(path string) (string, bool, error) {
		t.Fatal("readlink should not be called when follow is false")
		return "", false, nil
	}
	got, err := Resolve("/", "/a/link/file", false, rl)
	require.NoError(t, err)
	assert.Equal(t, "/a/link/file", got)
}
