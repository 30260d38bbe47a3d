package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage drivers understood by StorageConfig.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// StorageConfig selects and configures the durable key-value backend.
type StorageConfig struct {
	Driver    string `koanf:"driver"`
	Namespace string `koanf:"namespace"`
	SQLite    struct {
		Path string `koanf:"path"`
	} `koanf:"sqlite"`
	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`
	Postgres struct {
		URL     string        `koanf:"url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"postgres"`
}

// String returns a string representation of the storage configuration.
func (c *StorageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  storage.driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  storage.namespace: %s\n", c.Namespace))
	switch c.Driver {
	case StorageSQLite:
		b.WriteString(fmt.Sprintf("  storage.sqlite.path: %s\n", c.SQLite.Path))
	case StorageRedis:
		b.WriteString(fmt.Sprintf("  storage.redis.addr: %s\n", c.Redis.Addr))
		b.WriteString(fmt.Sprintf("  storage.redis.db: %d\n", c.Redis.DB))
	case StoragePostgres:
		b.WriteString(fmt.Sprintf("  storage.postgres.url: %s\n", MaskURL(c.Postgres.URL)))
		b.WriteString(fmt.Sprintf("  storage.postgres.timeout: %s\n", c.Postgres.Timeout))
	}
	return b.String()
}

func (c *StorageConfig) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("storage namespace is not configured")
	}
	switch c.Driver {
	case StorageMemory:
		return nil
	case StorageSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is not configured")
		}
	case StorageRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is not configured")
		}
	case StoragePostgres:
		if !isValidPostgresURL(c.Postgres.URL) {
			return fmt.Errorf("postgres URL must start with 'postgres://': %s", MaskURL(c.Postgres.URL))
		}
		if c.Postgres.Timeout <= 0 {
			return fmt.Errorf("postgres connect timeout is not configured")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Driver)
	}
	return nil
}

// MaskURL hides the credentials part of a connection URL.
func MaskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return "****"
}

// isValidPostgresURL checks if the provided URL is a valid PostgreSQL URL
func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}
