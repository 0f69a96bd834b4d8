package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *ConsoleConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Auth.RestURL == "" {
		return errors.New("auth.rest_url is required")
	}
	if c.Auth.MasterKey == "" {
		return errors.New("auth.master_key is required")
	}

	if c.Realtime.WSURL == "" {
		return errors.New("realtime.ws_url is required")
	}
	switch c.Realtime.Dialect {
	case DialectRooms, DialectDirect:
	default:
		return fmt.Errorf("realtime.dialect must be %q or %q, got %q",
			DialectRooms, DialectDirect, c.Realtime.Dialect)
	}
	if c.Realtime.ReconnectDelay < 0 {
		return errors.New("realtime.reconnect_delay must be >= 0")
	}
	if c.Realtime.BufferSize < 1 {
		return errors.New("realtime.buffer_size must be >= 1")
	}
	if c.Realtime.HistoryLimit < 1 {
		return errors.New("realtime.history_limit must be >= 1")
	}

	if c.Archive.Enabled {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	return nil
}
