// Package config resolves process-level options and the on-disk layout
// of the OpenGoat home directory.
package config

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Version is the build-time version, overridable with OPENGOAT_VERSION.
var Version = "0.4.0"

// Config holds process-level options.
// Priority: environment > defaults.
type Config struct {
	Home               string
	DefaultAgent       string
	OpenClawPluginPath string
	Version            string
	LogLevel           string
	Gateway            GatewayConfig
}

// GatewayConfig holds the HTTP gateway listen options.
type GatewayConfig struct {
	Host string
	Port int
}

var (
	globalConfig *Config
	mu           sync.RWMutex
)

// Load resolves the configuration from environment and defaults.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("OPENGOAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, err := ExpandPath(viper.GetString("home"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Home:               home,
		DefaultAgent:       viper.GetString("default_agent"),
		OpenClawPluginPath: viper.GetString("openclaw_plugin_path"),
		Version:            viper.GetString("version"),
		LogLevel:           viper.GetString("log.level"),
		Gateway: GatewayConfig{
			Host: viper.GetString("gateway.host"),
			Port: viper.GetInt("gateway.port"),
		},
	}
	if cfg.Version == "" {
		cfg.Version = Version
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the loaded configuration, or nil before Load.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// OpenClawCommand returns the OpenClaw binary to invoke. OPENCLAW_CMD is
// a foreign-tool override, so it is read without the OPENGOAT prefix.
func OpenClawCommand() string {
	if cmd := os.Getenv("OPENCLAW_CMD"); cmd != "" {
		return cmd
	}
	return "openclaw"
}

// Reset clears the loaded configuration (tests only).
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viper.Reset()
}
