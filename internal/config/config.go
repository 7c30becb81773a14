package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up in the project root.
const FileName = "editor.toml"

type Config struct {
	Editor    EditorConfig    `toml:"editor"`
	Scripting ScriptingConfig `toml:"scripting"`
	Remote    RemoteConfig    `toml:"remote"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
}

type EditorConfig struct {
	TickRate         Duration `toml:"tick_rate"`      // frame period of the loop
	FixedTimestep    Duration `toml:"fixed_timestep"` // fixed bucket step
	MaxFixedSteps    int      `toml:"max_fixed_steps"`
	CommandQueueSize int      `toml:"command_queue_size"`
}

type ScriptingConfig struct {
	Extension       string   `toml:"extension"`
	FlushDelay      Duration `toml:"flush_delay"`
	Watch           bool     `toml:"watch"`
	WatchInterval   Duration `toml:"watch_interval"`
	ConsoleCapacity int      `toml:"console_capacity"`
}

type RemoteConfig struct {
	Enabled          bool     `toml:"enabled"`
	Network          string   `toml:"network"` // "unix" or "tcp"
	Address          string   `toml:"address"`
	WebSocketAddress string   `toml:"websocket_address"` // empty disables the bridge
	PasswordHash     string   `toml:"password_hash"`     // bcrypt; empty disables auth
	OutQueueSize     int      `toml:"out_queue_size"`
	ReadTimeout      Duration `toml:"read_timeout"`
	WriteTimeout     Duration `toml:"write_timeout"`
	MaxLineBytes     int      `toml:"max_line_bytes"`
}

type DatabaseConfig struct {
	DSN             string   `toml:"dsn"` // empty disables revision history
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Duration accepts TOML strings such as "16ms" or "30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.Editor.TickRate.Duration <= 0 {
		return errors.New("editor.tick_rate must be positive")
	}
	if c.Editor.FixedTimestep.Duration <= 0 {
		return errors.New("editor.fixed_timestep must be positive")
	}
	switch c.Remote.Network {
	case "unix", "tcp":
	default:
		return fmt.Errorf("remote.network must be unix or tcp, got %q", c.Remote.Network)
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		Editor: EditorConfig{
			TickRate:         Duration{16 * time.Millisecond},
			FixedTimestep:    Duration{time.Second / 60},
			MaxFixedSteps:    8,
			CommandQueueSize: 256,
		},
		Scripting: ScriptingConfig{
			Extension:       ".lua",
			FlushDelay:      Duration{50 * time.Millisecond},
			Watch:           true,
			WatchInterval:   Duration{500 * time.Millisecond},
			ConsoleCapacity: 1000,
		},
		Remote: RemoteConfig{
			Enabled:      false,
			Network:      "tcp",
			Address:      "127.0.0.1:7420",
			OutQueueSize: 128,
			ReadTimeout:  Duration{5 * time.Minute},
			WriteTimeout: Duration{10 * time.Second},
			MaxLineBytes: 1 << 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: Duration{30 * time.Minute},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
