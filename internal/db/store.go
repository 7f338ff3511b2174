package db

import (
	"context"
	"fmt"
)

const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// KeyValueStore persists string values under string keys.
type KeyValueStore interface {
	// Get returns false when nothing is stored under key.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Close() error
}

// Open connects to the store selected by driver.
func Open(driver string, path string) (KeyValueStore, error) {
	switch driver {
	case DriverBolt, "":
		return OpenBolt(path)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
