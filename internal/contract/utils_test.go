package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathMatcher(t *testing.T) {
	m, err := NewPathMatcher([]string{"build/", "*.orig", "docs/**", " "})
	require.NoError(t, err)

	tests := []struct {
		path     string
		expected bool
	}{
		{"build/out.o", true},
		{"src/build/out.o", true},
		{"src/main.cpp.orig", true},
		{"docs/api/index.md", true},
		{"src/main.cpp", false},
		{"builder/main.cpp", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.Match(tt.path))
		})
	}
}

func TestPathMatcher_Nil(t *testing.T) {
	var m *PathMatcher
	assert.False(t, m.Match("anything"))
}

func TestNormalizeRemoteURL(t *testing.T) {
	tests := []struct {
		remote   string
		expected string
	}{
		{"git@github.com:ros/ros_comm.git", "https://github.com/ros/ros_comm"},
		{"https://github.com/ros/catkin.git", "https://github.com/ros/catkin"},
		{"ssh://git@bitbucket.org/osrf/gazebo/", "https://bitbucket.org/osrf/gazebo"},
		{"git://github.com/ros/genmsg", "https://github.com/ros/genmsg"},
		{" https://svn.code.sf.net/p/ros/code/trunk ", "https://svn.code.sf.net/p/ros/code/trunk"},
		{"https://bitbucket.org/osrf/gazebo", "https://bitbucket.org/osrf/gazebo"},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeRemoteURL(tt.remote))
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	f, err := SelectOutputFile("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, f)

	path := filepath.Join(t.TempDir(), "out.json")
	f, err = SelectOutputFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.FileExists(t, path)
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("perhaps")
	assert.Error(t, err)
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "short", TruncatePath("short", 10))
	assert.Equal(t, "...bcdef", TruncatePath("abcdefabcdef", 8))
	assert.Equal(t, "abc", TruncatePath("abc", 2))
}

func TestFlagLabel(t *testing.T) {
	assert.Equal(t, "yes", FlagLabel(true, false))
	assert.Equal(t, "no", FlagLabel(false, false))
	assert.Contains(t, FlagLabel(true, true), "yes")
}
