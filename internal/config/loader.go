package config

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

var current atomic.Pointer[Config]

var (
	onReloadMu        sync.Mutex
	onReloadCallbacks []func(*Config)
)

// Get returns the current in-memory config (hot-reloaded when the file changes).
func Get() *Config { return current.Load() }

// Set sets the current in-memory config. Used at startup and by the file watcher.
func Set(c *Config) {
	if c != nil {
		current.Store(c)
	}
}

// RegisterOnReload registers a callback that runs after config is hot-reloaded.
func RegisterOnReload(fn func(*Config)) {
	onReloadMu.Lock()
	defer onReloadMu.Unlock()
	onReloadCallbacks = append(onReloadCallbacks, fn)
}

func notifyReload(cfg *Config) {
	onReloadMu.Lock()
	cb := make([]func(*Config), len(onReloadCallbacks))
	copy(cb, onReloadCallbacks)
	onReloadMu.Unlock()
	for _, fn := range cb {
		fn(cfg)
	}
}

//go:embed config.example.yaml
var exampleConfigBytes []byte

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromExample parses the embedded config.example.yaml as the default config.
func LoadFromExample() (*Config, error) {
	cfg, err := parse(exampleConfigBytes)
	if err != nil {
		return nil, fmt.Errorf("parse example config: %w", err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	applyLoadDefaults(cfg)
	return cfg, nil
}

func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// applyEnvOverrides lets the deployment environment win over the file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BTR_GATEWAY_URL")); v != "" {
		cfg.Gateway.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("BTR_UI_HOST")); v != "" {
		cfg.UI.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("BTR_UI_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.UI.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEBUG")); v != "" {
		cfg.UI.Debug = strings.EqualFold(v, "true")
	}
}

func applyLoadDefaults(cfg *Config) {
	// An unset ${VAR} placeholder must not become a literal token.
	if envVarPattern.MatchString(cfg.UI.Auth.Token) {
		cfg.UI.Auth.Token = ""
	}
	if envVarPattern.MatchString(cfg.Gateway.URL) || strings.TrimSpace(cfg.Gateway.URL) == "" {
		cfg.Gateway.URL = DefaultGatewayURL
	}
	if cfg.UI.Port <= 0 {
		cfg.UI.Port = DefaultPort
	}
	if cfg.UI.Host == "" {
		cfg.UI.Host = DefaultHost
	}
	if cfg.Gateway.Timeout < 0 {
		cfg.Gateway.Timeout = 0
	}
	cfg.Refresh.Schedule = strings.TrimSpace(cfg.Refresh.Schedule)
}

// ListenAddr returns host:port for the UI server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.UI.Host, c.UI.Port)
}

// GenerateToken returns a random hex token (32 bytes = 64 chars) for UI auth.
func GenerateToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b) // never fails since Go 1.24
	return hex.EncodeToString(b)
}

// CreateFromExample writes the embedded example to targetPath with a generated token.
func CreateFromExample(targetPath string) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	token := GenerateToken()
	content := strings.ReplaceAll(string(exampleConfigBytes), "${TOOLSEL_TOKEN}", token)
	if err := os.WriteFile(targetPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
