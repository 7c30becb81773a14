package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[editor]
fixed_timestep = "20ms"

[remote]
enabled = true
network = "unix"
address = "/tmp/stagehand.sock"

[logging]
level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 20*time.Millisecond, cfg.Editor.FixedTimestep.Duration)
	require.Equal(t, 16*time.Millisecond, cfg.Editor.TickRate.Duration)
	require.True(t, cfg.Remote.Enabled)
	require.Equal(t, "unix", cfg.Remote.Network)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, ".lua", cfg.Scripting.Extension)
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"syntax":   "[editor\n",
		"duration": "[editor]\ntick_rate = \"soon\"\n",
		"network":  "[remote]\nnetwork = \"udp\"\n",
		"zero":     "[editor]\nfixed_timestep = \"0s\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadOrDefault(path)
			require.Error(t, err)
		})
	}
}
