package config

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadToolConfig(t *testing.T) {
	cfg, err := LoadToolConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultToolConfig(), cfg)

	path := filepath.Join(t.TempDir(), "tool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: 60\nsettings: variable\nencoding: KOI8-R\n"), 0666))

	cfg, err = LoadToolConfig(path)
	require.NoError(t, err)
	require.Equal(t, float32(60), cfg.FramesPerSecond)
	require.Equal(t, "variable", cfg.Settings)
	require.Equal(t, ":8000", cfg.Listen)

	require.NoError(t, cfg.Apply())
	require.Equal(t, "KOI8-R", GetEncoding().String())
	require.NoError(t, SetEncoding("Windows 1252"))
}

func TestLoadToolConfigRejectsUnknownSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings: fancy\n"), 0666))

	_, err := LoadToolConfig(path)
	require.Error(t, err)
}

func TestLoadToolConfigRejectsFps(t *testing.T) {
	for _, fps := range []string{"0", "-30", "5000", ".nan"} {
		path := filepath.Join(t.TempDir(), "tool.yaml")
		require.NoError(t, os.WriteFile(path, []byte("fps: "+fps+"\n"), 0666))

		_, err := LoadToolConfig(path)
		require.Error(t, err, fps)
	}
}

func TestSetEncodingUnknown(t *testing.T) {
	require.Error(t, SetEncoding("no such charmap"))
	require.Contains(t, ListEncodings(), "Windows 1252")
}

func TestSetEncodingIgnoresCase(t *testing.T) {
	defer SetEncoding("Windows 1252")

	require.NoError(t, SetEncoding("koi8-r"))
	require.Equal(t, "KOI8-R", GetEncoding().String())
	require.True(t, sort.StringsAreSorted(ListEncodings()))
}
