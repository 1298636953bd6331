package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "gewe", []string{"gewe"}, false},
		{"two segments", "gewe.appId", []string{"gewe", "appId"}, false},
		{"three segments", "gewe.proxy.url", []string{"gewe", "proxy", "url"}, false},
		{"empty", "", nil, true},
		{"empty segment", "gewe..token", nil, true},
		{"trailing dot", "gewe.", nil, true},
		{"blocked __proto__", "foo.__proto__.bar", nil, true},
		{"blocked constructor", "constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetValueAtPath(t *testing.T) {
	root := map[string]any{
		"gewe": map[string]any{
			"appId": "wx_123",
			"proxy": map[string]any{"url": "http://proxy:3128"},
		},
		"simple": "value",
	}

	tests := []struct {
		name string
		path []string
		want any
		ok   bool
	}{
		{"nested value", []string{"gewe", "appId"}, "wx_123", true},
		{"deeply nested", []string{"gewe", "proxy", "url"}, "http://proxy:3128", true},
		{"top level", []string{"simple"}, "value", true},
		{"missing key", []string{"nonexistent"}, nil, false},
		{"non-map intermediate", []string{"simple", "sub"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, ok := GetValueAtPath(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, val)
			}
		})
	}
}

func TestSetValueAtPath_CreatesIntermediates(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"gewe", "proxy", "url"}, "http://p")
	val, ok := GetValueAtPath(root, []string{"gewe", "proxy", "url"})
	assert.True(t, ok)
	assert.Equal(t, "http://p", val)
}

func TestSetValueAtPath_OverwritesNonMap(t *testing.T) {
	root := map[string]any{"gewe": "string-not-map"}

	SetValueAtPath(root, []string{"gewe", "token"}, "abc")
	val, ok := GetValueAtPath(root, []string{"gewe", "token"})
	assert.True(t, ok)
	assert.Equal(t, "abc", val)
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"gewe": map[string]any{"token": "t", "appId": "a"},
	}

	assert.True(t, UnsetValueAtPath(root, []string{"gewe", "token"}))
	_, found := GetValueAtPath(root, []string{"gewe", "token"})
	assert.False(t, found)

	val, found := GetValueAtPath(root, []string{"gewe", "appId"})
	assert.True(t, found)
	assert.Equal(t, "a", val)

	assert.False(t, UnsetValueAtPath(root, []string{"gewe", "missing"}))
	assert.False(t, UnsetValueAtPath(root, []string{"a", "b"}))
}

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("GEWEBRIDGE_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".gewebridge")
	assert.Equal(t, base, paths.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(base, "data"), paths.Data)
	assert.Equal(t, filepath.Join(base, "data", "deliveries.db"), paths.Journal)
	assert.Equal(t, filepath.Join(base, "logs"), paths.Logs)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	t.Setenv("GEWEBRIDGE_HOME", "/srv/bridge")

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, "/srv/bridge", paths.Base)
	assert.Equal(t, "/srv/bridge/config.yaml", paths.Config)
}

func TestEnsureDirs(t *testing.T) {
	tmpDir := t.TempDir()
	paths := Paths{
		Base: tmpDir,
		Data: filepath.Join(tmpDir, "data"),
		Logs: filepath.Join(tmpDir, "logs"),
	}

	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs())

	for _, dir := range []string{paths.Base, paths.Data, paths.Logs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
