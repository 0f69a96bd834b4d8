package config

import "time"

// ConsoleConfig is the root configuration for a chatlink client instance.
type ConsoleConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Auth     AuthConfig     `yaml:"auth"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Cache    CacheConfig    `yaml:"credential_cache"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// InstanceConfig identifies this client instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// AuthConfig holds credential exchange settings. The master key is supplied
// out-of-band (normally via ${VAR} expansion), never typed by the end user.
type AuthConfig struct {
	RestURL   string        `yaml:"rest_url"`
	MasterKey string        `yaml:"master_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RealtimeConfig holds WebSocket session settings.
type RealtimeConfig struct {
	WSURL             string        `yaml:"ws_url"`
	Dialect           string        `yaml:"dialect"` // "rooms" (default) or "direct"
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	StaleTimeout      time.Duration `yaml:"stale_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
	HistoryLimit      int           `yaml:"history_limit"`
}

// CacheConfig holds the credential cache location. An empty path selects the
// in-memory store.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// ArchiveConfig holds transcript archiver settings. Disabled by default.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
