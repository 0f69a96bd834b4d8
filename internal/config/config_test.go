package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-console
auth:
  rest_url: https://chat.example.com/api
  master_key: test-master-key
realtime:
  ws_url: wss://chat.example.com/ws
  dialect: rooms
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-console" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-console")
	}
	if cfg.Auth.RestURL != "https://chat.example.com/api" {
		t.Errorf("Auth.RestURL = %q, want %q", cfg.Auth.RestURL, "https://chat.example.com/api")
	}
	if cfg.Realtime.WSURL != "wss://chat.example.com/ws" {
		t.Errorf("Realtime.WSURL = %q, want %q", cfg.Realtime.WSURL, "wss://chat.example.com/ws")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_MASTER_KEY", "secret123")

	yaml := `
instance:
  id: test-console
auth:
  rest_url: https://chat.example.com/api
  master_key: ${TEST_MASTER_KEY}
realtime:
  ws_url: wss://chat.example.com/ws
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.MasterKey != "secret123" {
		t.Errorf("Auth.MasterKey = %q, want %q", cfg.Auth.MasterKey, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-console
auth:
  rest_url: https://chat.example.com/api
  master_key: test-master-key
realtime:
  ws_url: wss://chat.example.com/ws
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Auth.Timeout != DefaultAuthTimeout {
		t.Errorf("Auth.Timeout = %v, want default %v", cfg.Auth.Timeout, DefaultAuthTimeout)
	}
	if cfg.Realtime.Dialect != DialectRooms {
		t.Errorf("Realtime.Dialect = %q, want default %q", cfg.Realtime.Dialect, DialectRooms)
	}
	if cfg.Realtime.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("Realtime.ReconnectDelay = %v, want default %v", cfg.Realtime.ReconnectDelay, DefaultReconnectDelay)
	}
	if cfg.Realtime.KeepAliveInterval != DefaultKeepAliveInterval {
		t.Errorf("Realtime.KeepAliveInterval = %v, want default %v", cfg.Realtime.KeepAliveInterval, DefaultKeepAliveInterval)
	}
	if cfg.Realtime.StaleTimeout != DefaultStaleTimeout {
		t.Errorf("Realtime.StaleTimeout = %v, want default %v", cfg.Realtime.StaleTimeout, DefaultStaleTimeout)
	}
	if cfg.Realtime.BufferSize != DefaultBufferSize {
		t.Errorf("Realtime.BufferSize = %d, want default %d", cfg.Realtime.BufferSize, DefaultBufferSize)
	}
	if cfg.Realtime.HistoryLimit != DefaultHistoryLimit {
		t.Errorf("Realtime.HistoryLimit = %d, want default %d", cfg.Realtime.HistoryLimit, DefaultHistoryLimit)
	}
}

func TestLoadWithDefaults_ArchiveEnabled(t *testing.T) {
	yaml := `
instance:
  id: test-console
auth:
  rest_url: https://chat.example.com/api
  master_key: test-master-key
realtime:
  ws_url: wss://chat.example.com/ws
archive:
  enabled: true
  database:
    host: localhost
    name: transcripts
    user: archiver
    password: pass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Archive.Database.Port != DefaultDBPort {
		t.Errorf("Archive.Database.Port = %d, want default %d", cfg.Archive.Database.Port, DefaultDBPort)
	}
	if cfg.Archive.Database.MaxConns != DefaultMaxConns {
		t.Errorf("Archive.Database.MaxConns = %d, want default %d", cfg.Archive.Database.MaxConns, DefaultMaxConns)
	}
	if cfg.Archive.BatchSize != DefaultBatchSize {
		t.Errorf("Archive.BatchSize = %d, want default %d", cfg.Archive.BatchSize, DefaultBatchSize)
	}
	if cfg.Archive.FlushInterval != DefaultFlushInterval {
		t.Errorf("Archive.FlushInterval = %v, want default %v", cfg.Archive.FlushInterval, DefaultFlushInterval)
	}
}

func TestValidate(t *testing.T) {
	valid := func() ConsoleConfig {
		return ConsoleConfig{
			Instance: InstanceConfig{ID: "test"},
			Auth: AuthConfig{
				RestURL:   "https://chat.example.com/api",
				MasterKey: "key",
				Timeout:   30 * time.Second,
			},
			Realtime: RealtimeConfig{
				WSURL:        "wss://chat.example.com/ws",
				Dialect:      DialectRooms,
				BufferSize:   100,
				HistoryLimit: 50,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ConsoleConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *ConsoleConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *ConsoleConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing rest url",
			mutate:  func(c *ConsoleConfig) { c.Auth.RestURL = "" },
			wantErr: "auth.rest_url is required",
		},
		{
			name:    "missing master key",
			mutate:  func(c *ConsoleConfig) { c.Auth.MasterKey = "" },
			wantErr: "auth.master_key is required",
		},
		{
			name:    "missing ws url",
			mutate:  func(c *ConsoleConfig) { c.Realtime.WSURL = "" },
			wantErr: "realtime.ws_url is required",
		},
		{
			name:    "bad dialect",
			mutate:  func(c *ConsoleConfig) { c.Realtime.Dialect = "hybrid" },
			wantErr: `realtime.dialect must be "rooms" or "direct", got "hybrid"`,
		},
		{
			name:    "negative reconnect delay",
			mutate:  func(c *ConsoleConfig) { c.Realtime.ReconnectDelay = -time.Second },
			wantErr: "realtime.reconnect_delay must be >= 0",
		},
		{
			name:    "zero buffer size",
			mutate:  func(c *ConsoleConfig) { c.Realtime.BufferSize = 0 },
			wantErr: "realtime.buffer_size must be >= 1",
		},
		{
			name: "archive enabled without database host",
			mutate: func(c *ConsoleConfig) {
				c.Archive.Enabled = true
				c.Archive.Database = DBConfig{Name: "db", User: "u", Password: "p", Port: 5432, MaxConns: 4}
				c.Archive.BatchSize = 100
			},
			wantErr: "archive.database.host is required",
		},
		{
			name: "archive database port out of range",
			mutate: func(c *ConsoleConfig) {
				c.Archive.Enabled = true
				c.Archive.Database = DBConfig{Host: "h", Name: "db", User: "u", Password: "p", Port: 99999, MaxConns: 4}
				c.Archive.BatchSize = 100
			},
			wantErr: "archive.database.port must be between 1 and 65535, got 99999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
