package config

import "os"

const (
	configEnv         = "OPTOUT_CONFIG"
	defaultConfigFile = "config.json"
)

// DefaultConfigPath is $OPTOUT_CONFIG, or config.json in the working directory.
func DefaultConfigPath() string {
	if env := os.Getenv(configEnv); env != "" {
		return env
	}
	return defaultConfigFile
}
