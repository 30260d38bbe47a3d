// Package config holds the storefront configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Storage    config.StorageConfig    `koanf:"storage"`
	Catalog    CatalogConfig           `koanf:"catalog"`
	Nats       config.NATSConfig       `koanf:"nats"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
}

// CatalogConfig configures the client of the product catalog service.
type CatalogConfig struct {
	BaseURL string        `koanf:"baseurl"`
	Timeout time.Duration `koanf:"timeout"`
	Cache   struct {
		Retention time.Duration `koanf:"retention"`
	} `koanf:"cache"`
	CircuitBreaker config.CircuitBreakerConfig `koanf:"circuitbreaker"`
}

// Defaults are the lowest priority configuration values, overridden by
// config.yaml, .env and STOREFRONT_* environment variables.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":                                8080,
		"server.maxHeaderBytes":                      1 << 20,
		"server.timeout.read":                        "5s",
		"server.timeout.write":                       "10s",
		"server.timeout.idle":                        "60s",
		"server.timeout.readHeader":                  "2s",
		"grpc.enabled":                               false,
		"grpc.port":                                  "9090",
		"log.level":                                  "info",
		"pprof.enabled":                              false,
		"pprof.addr":                                 "localhost:6060",
		"shutdown.timeout":                           "5s",
		"storage.driver":                             config.StorageSQLite,
		"storage.namespace":                          "default",
		"storage.sqlite.path":                        "storefront.db",
		"storage.postgres.timeout":                   "10s",
		"catalog.baseurl":                            "https://fakestoreapi.com",
		"catalog.timeout":                            "10s",
		"catalog.cache.retention":                    "300s",
		"catalog.circuitbreaker.consecutivefailures": 5,
		"catalog.circuitbreaker.errorratepercent":    50,
		"catalog.circuitbreaker.maxrequests":         1,
		"catalog.circuitbreaker.opentimeout":         "30s",
		"nats.enabled":                               false,
		"nats.timeout":                               "5s",
		"nats.stream":                                "STOREFRONT",
		"telemetry.traces.enabled":                   false,
		"telemetry.traces.otlphttp.timeout":          "5s",
		"telemetry.metrics.enabled":                  true,
		"telemetry.metrics.path":                     "/metrics",
	}
}

func (c *CatalogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Catalog ---\n")
	b.WriteString(fmt.Sprintf("  catalog.baseurl: %s\n", c.BaseURL))
	b.WriteString(fmt.Sprintf("  catalog.timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  catalog.cache.retention: %s\n", c.Cache.Retention))
	b.WriteString(c.CircuitBreaker.String())
	return b.String()
}

func (c *CatalogConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("catalog base URL must be an absolute http(s) URL: %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be greater than 0")
	}
	if c.Cache.Retention <= 0 {
		return fmt.Errorf("catalog cache retention must be greater than 0")
	}
	return c.CircuitBreaker.Validate()
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.Storage.String())
	b.WriteString(c.Catalog.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer, &c.GRPC, &c.Log, &c.PProf, &c.Shutdown,
		&c.Storage, &c.Catalog, &c.Nats, &c.Telemetry,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
