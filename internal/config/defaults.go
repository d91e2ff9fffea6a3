package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults registers default values for every configuration key.
func SetDefaults() {
	viper.SetDefault("home", defaultHome())
	viper.SetDefault("default_agent", "")
	viper.SetDefault("openclaw_plugin_path", "")
	viper.SetDefault("version", "")

	viper.SetDefault("log.level", "info")

	viper.SetDefault("gateway.host", "127.0.0.1")
	viper.SetDefault("gateway.port", 4780)
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opengoat"
	}
	return filepath.Join(home, ".opengoat")
}
