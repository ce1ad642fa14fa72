package config

import "time"

// Config is the root configuration for choreboard.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Board     BoardConfig     `yaml:"board"`
	Stream    StreamConfig    `yaml:"stream"`
	Push      PushConfig      `yaml:"push"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	MCP       MCPConfig       `yaml:"mcp"`
	Tunnel    TunnelConfig    `yaml:"tunnel"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite, redis or memory.
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	RedisURL  string `yaml:"redis_url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// BoardConfig provisions the fixed set of tasks.
type BoardConfig struct {
	Tasks []TaskConfig `yaml:"tasks"`
}

type TaskConfig struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// StreamConfig tunes viewer connections.
type StreamConfig struct {
	Keepalive    time.Duration `yaml:"keepalive"`
	OutboxSize   int           `yaml:"outbox_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type PushConfig struct {
	Enabled         bool          `yaml:"enabled"`
	VAPIDPublicKey  string        `yaml:"vapid_public_key"`
	VAPIDPrivateKey string        `yaml:"vapid_private_key"`
	Subject         string        `yaml:"subject"`
	TTL             time.Duration `yaml:"ttl"`
	Parallelism     int           `yaml:"parallelism"`
	Timeout         time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

type TunnelConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			LogLevel:        "info",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:    "sqlite",
			Path:      "~/.config/choreboard/choreboard.db",
			KeyPrefix: "choreboard",
		},
		Board: BoardConfig{
			Tasks: []TaskConfig{
				{ID: "laundry", Title: "Laundry", Description: "Wash, dry, and fold any laundry in the basket."},
				{ID: "bathroom", Title: "Bathroom Deep Cleaning", Description: "Clean the bathroom from top to bottom, including the sink and shower."},
				{ID: "kitchen", Title: "Kitchen Counter Cleaning", Description: "Clean the counter top, including under and behind any appliances."},
				{ID: "dusting", Title: "Dusting", Description: "Dust all surfaces, including the vinyl player, bookshelf, and any other surfaces."},
				{ID: "vacuuming", Title: "Vacuuming", Description: "Vacuum the floors, including the bathroom, kitchen, and any other rooms."},
			},
		},
		Stream: StreamConfig{
			Keepalive:    30 * time.Second,
			OutboxSize:   64,
			WriteTimeout: 10 * time.Second,
		},
		Push: PushConfig{
			Enabled:     false,
			Subject:     "mailto:admin@localhost",
			TTL:         time.Hour,
			Parallelism: 8,
			Timeout:     10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   15 * time.Minute,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
	}
}
