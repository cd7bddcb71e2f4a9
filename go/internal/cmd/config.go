package main

import (
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/roomclocks/go/internal/clocks"
	"github.com/mcdev12/roomclocks/go/internal/gateway"
	"github.com/mcdev12/roomclocks/go/internal/rooms"
)

type Config struct {
	Clocks struct {
		DefaultName         string `yaml:"default_name"`
		DefaultTotalSeconds int    `yaml:"default_total_seconds"`
		GuardTransitions    bool   `yaml:"guard_transitions"`
	} `yaml:"clocks"`

	Rooms struct {
		DefaultName string `yaml:"default_name"`
	} `yaml:"rooms"`

	WebSocket struct {
		PingInterval         time.Duration `yaml:"ping_interval"`
		StateRefreshInterval time.Duration `yaml:"state_refresh_interval"`
		CommandTimeout       time.Duration `yaml:"command_timeout"`
		SendBufferSize       int           `yaml:"send_buffer_size"`
		AllowedOrigins       []string      `yaml:"allowed_origins"`
	} `yaml:"websocket"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadConfig reads the YAML file at path. An empty path yields the defaults.
func loadConfig(path string) (*Config, error) {
	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Clocks.GuardTransitions = getEnvAsBool("GUARD_TRANSITIONS", config.Clocks.GuardTransitions)
	if config.Clocks.DefaultTotalSeconds < 0 {
		return nil, fmt.Errorf("clocks.default_total_seconds must not be negative")
	}
	return &config, nil
}

func (c *Config) clocksConfig() clocks.Config {
	cfg := clocks.DefaultConfig()
	if c.Clocks.DefaultName != "" {
		cfg.DefaultName = c.Clocks.DefaultName
	}
	if c.Clocks.DefaultTotalSeconds > 0 {
		cfg.DefaultTotalSeconds = c.Clocks.DefaultTotalSeconds
	}
	return cfg
}

func (c *Config) roomsConfig() rooms.Config {
	cfg := rooms.DefaultConfig()
	if c.Rooms.DefaultName != "" {
		cfg.DefaultName = c.Rooms.DefaultName
	}
	return cfg
}

func (c *Config) gatewayConfig() gateway.Config {
	cfg := gateway.DefaultConfig()
	ws := c.WebSocket
	if ws.PingInterval > 0 {
		cfg.ConnectionConfig.PingInterval = ws.PingInterval
		// the read deadline must outlive at least one ping round trip
		if cfg.ConnectionConfig.ReadTimeout <= ws.PingInterval {
			cfg.ConnectionConfig.ReadTimeout = 2 * ws.PingInterval
		}
	}
	if ws.StateRefreshInterval > 0 {
		cfg.ConnectionConfig.StateRefreshInterval = ws.StateRefreshInterval
	}
	if ws.CommandTimeout > 0 {
		cfg.ConnectionConfig.CommandTimeout = ws.CommandTimeout
	}
	if ws.SendBufferSize > 0 {
		cfg.ConnectionConfig.SendBufferSize = ws.SendBufferSize
	}
	if len(ws.AllowedOrigins) > 0 && !slices.Contains(ws.AllowedOrigins, "*") {
		allowed := slices.Clone(ws.AllowedOrigins)
		cfg.ConnectionConfig.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowed, r.Header.Get("Origin"))
		}
	}
	return cfg
}

// corsOrigins returns the origins the HTTP API accepts.
func (c *Config) corsOrigins() []string {
	if len(c.WebSocket.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.WebSocket.AllowedOrigins
}
