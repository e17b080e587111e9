// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server configuration: defaults, environment loading and validation.

package server

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/momentics/hioload-http/internal/concurrency"
	"github.com/momentics/hioload-http/internal/session"
	"github.com/momentics/hioload-http/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Address         string        // listen IP, e.g. "0.0.0.0"
	Port            int           // listen port; 0 picks an ephemeral one
	Threads         int           // worker threads; <= 0 means one
	IdleTimeout     time.Duration // wait for the next request on a connection
	DispatchTimeout time.Duration // wait for a handler response; 0 disables
	MaxConnections  int           // concurrent connections; 0 means unlimited
	MaxHeaderBytes  int
	MaxBodyBytes    int64
	ReuseAddr       bool
	CPUPinning      bool
	Debug           bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:        "0.0.0.0",
		Port:           8181,
		Threads:        concurrency.DefaultThreads(),
		IdleTimeout:    session.DefaultIdleTimeout,
		MaxHeaderBytes: protocol.DefaultLimits.MaxHeaderBytes,
		MaxBodyBytes:   protocol.DefaultLimits.MaxBodyBytes,
		ReuseAddr:      true,
	}
}

// LoadFromEnv overlays HIOLOAD_* environment variables on DefaultConfig.
func LoadFromEnv() (*Config, error) {
	def := DefaultConfig()
	cfg := &Config{
		Address:         getEnv("HIOLOAD_ADDR", def.Address),
		Port:            getEnvInt("HIOLOAD_PORT", def.Port),
		Threads:         getEnvInt("HIOLOAD_THREADS", def.Threads),
		IdleTimeout:     getEnvDuration("HIOLOAD_IDLE_TIMEOUT", def.IdleTimeout),
		DispatchTimeout: getEnvDuration("HIOLOAD_DISPATCH_TIMEOUT", def.DispatchTimeout),
		MaxConnections:  getEnvInt("HIOLOAD_MAX_CONNECTIONS", def.MaxConnections),
		MaxHeaderBytes:  getEnvInt("HIOLOAD_MAX_HEADER_BYTES", def.MaxHeaderBytes),
		MaxBodyBytes:    int64(getEnvInt("HIOLOAD_MAX_BODY_BYTES", int(def.MaxBodyBytes))),
		ReuseAddr:       def.ReuseAddr,
		CPUPinning:      getEnvBool("HIOLOAD_CPU_PINNING", def.CPUPinning),
		Debug:           getEnvBool("DEBUG", false),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first incoherent setting.
func (c *Config) Validate() error {
	return c.validate()
}

func (c *Config) validate() error {
	if net.ParseIP(c.Address) == nil {
		return fmt.Errorf("invalid listen address %q", c.Address)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 0-65535)", c.Port)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", c.IdleTimeout)
	}
	if c.DispatchTimeout < 0 {
		return fmt.Errorf("dispatch timeout must not be negative, got %s", c.DispatchTimeout)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max connections must not be negative, got %d", c.MaxConnections)
	}
	if c.MaxHeaderBytes <= 0 {
		return fmt.Errorf("max header bytes must be positive, got %d", c.MaxHeaderBytes)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(getEnv(key, ""))
	switch value {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable
func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
