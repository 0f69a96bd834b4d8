package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAuthTimeout       = 30 * time.Second
	DefaultDialect           = DialectRooms
	DefaultReconnectDelay    = 3 * time.Second
	DefaultKeepAliveInterval = 30 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultStaleTimeout      = 90 * time.Second
	DefaultBufferSize        = 1000
	DefaultHistoryLimit      = 50
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 200
	DefaultFlushInterval     = 2 * time.Second
)

// Dialect values for RealtimeConfig.Dialect.
const (
	DialectRooms  = "rooms"
	DialectDirect = "direct"
)

func (c *ConsoleConfig) applyDefaults() {
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultAuthTimeout
	}

	if c.Realtime.Dialect == "" {
		c.Realtime.Dialect = DefaultDialect
	}
	if c.Realtime.ReconnectDelay == 0 {
		c.Realtime.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Realtime.KeepAliveInterval == 0 {
		c.Realtime.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.Realtime.HandshakeTimeout == 0 {
		c.Realtime.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = DefaultWriteTimeout
	}
	if c.Realtime.StaleTimeout == 0 {
		c.Realtime.StaleTimeout = DefaultStaleTimeout
	}
	if c.Realtime.BufferSize == 0 {
		c.Realtime.BufferSize = DefaultBufferSize
	}
	if c.Realtime.HistoryLimit == 0 {
		c.Realtime.HistoryLimit = DefaultHistoryLimit
	}

	if c.Archive.Enabled {
		applyDBDefaults(&c.Archive.Database)
		if c.Archive.BatchSize == 0 {
			c.Archive.BatchSize = DefaultBatchSize
		}
		if c.Archive.FlushInterval == 0 {
			c.Archive.FlushInterval = DefaultFlushInterval
		}
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
