package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/choreboard/choreboard.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "choreboard", "choreboard.yaml"))
	}

	paths = append(paths, "choreboard.yaml")

	if envPath := os.Getenv("CHOREBOARD_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/choreboard/choreboard.yaml < ~/.config/choreboard/choreboard.yaml < ./choreboard.yaml < $CHOREBOARD_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("PORT must be a number, got %q", port)
		}
		cfg.Server.Port = p
	}
	if url := os.Getenv("CHOREBOARD_REDIS_URL"); url != "" {
		cfg.Database.Driver = "redis"
		cfg.Database.RedisURL = url
	}
	if key := os.Getenv("CHOREBOARD_VAPID_PRIVATE_KEY"); key != "" {
		cfg.Push.VAPIDPrivateKey = key
	}
	if token := os.Getenv("CHOREBOARD_NGROK_AUTHTOKEN"); token != "" {
		cfg.Tunnel.AuthToken = token
	}
	return nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "redis":
		if cfg.Database.RedisURL == "" {
			return fmt.Errorf("database.redis_url is required for the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be sqlite, redis or memory, got %q", cfg.Database.Driver)
	}

	if len(cfg.Board.Tasks) == 0 {
		return fmt.Errorf("board.tasks must list at least one task")
	}
	seen := make(map[string]bool, len(cfg.Board.Tasks))
	for i, t := range cfg.Board.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("board.tasks[%d].id is required", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("board.tasks: duplicate id %q", t.ID)
		}
		seen[t.ID] = true
	}

	if cfg.Stream.OutboxSize < 1 {
		return fmt.Errorf("stream.outbox_size must be at least 1")
	}
	if cfg.Stream.Keepalive <= 0 {
		return fmt.Errorf("stream.keepalive must be positive")
	}

	if cfg.Push.Enabled {
		if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
			return fmt.Errorf("push.vapid_public_key and push.vapid_private_key are required when push is enabled (run `choreboard vapid`)")
		}
		if cfg.Push.Parallelism < 1 {
			return fmt.Errorf("push.parallelism must be at least 1")
		}
	}

	if cfg.RateLimit.Enabled && (cfg.RateLimit.Requests < 1 || cfg.RateLimit.Window <= 0) {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
	}

	if cfg.Tunnel.Enabled && cfg.Tunnel.AuthToken == "" {
		return fmt.Errorf("tunnel.authtoken is required when the tunnel is enabled (or set CHOREBOARD_NGROK_AUTHTOKEN)")
	}

	if cfg.Database.Path != ":memory:" {
		cfg.Database.Path = ExpandHome(cfg.Database.Path)
	}
	cfg.Server.LogFile = ExpandHome(cfg.Server.LogFile)

	return nil
}
