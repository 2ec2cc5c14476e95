package config

import "time"

type Config struct {
	Gateway GatewayConfig `yaml:"gateway" json:"gateway"`
	UI      UIConfig      `yaml:"ui" json:"ui"`
	Refresh RefreshConfig `yaml:"refresh" json:"refresh"`
}

type GatewayConfig struct {
	URL     string        `yaml:"url" json:"url"`         // upstream tool router, e.g. http://gateway:8090
	Timeout time.Duration `yaml:"timeout" json:"timeout"` // per request; 0 disables
}

type UIConfig struct {
	Host  string     `yaml:"host" json:"host"`
	Port  int        `yaml:"port" json:"port"`
	Debug bool       `yaml:"debug" json:"debug"`
	Auth  AuthConfig `yaml:"auth" json:"auth"`
}

type AuthConfig struct {
	Token string `yaml:"token" json:"token"`
}

type RefreshConfig struct {
	Schedule string `yaml:"schedule" json:"schedule"` // cron spec or @every; empty disables
}

const (
	DefaultGatewayURL = "http://gateway:8090"
	DefaultTimeout    = 10 * time.Second
	DefaultHost       = "0.0.0.0"
	DefaultPort       = 5010
)

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:     DefaultGatewayURL,
			Timeout: DefaultTimeout,
		},
		UI: UIConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}
