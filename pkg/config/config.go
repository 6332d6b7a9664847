package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from defaults, an optional .env file and
// environment variables, in increasing order of precedence.
// prefix: Environment variable prefix (e.g. "TRINODBC_")
// defaults: dotted keys to default values (e.g. "server.port": 8991)
// target: Pointer to the config struct to load into (mapstructure tags)
func Load(prefix string, defaults map[string]any, target interface{}) error {
	return load(".env", os.Environ(), prefix, defaults, target)
}

func load(envFile string, environ []string, prefix string, defaults map[string]any, target interface{}) error {
	v := viper.New()

	// Known keys resolve env names that contain underscores inside a key,
	// e.g. TRINODBC_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout.
	known := make(map[string]string, len(defaults))
	for key, val := range defaults {
		v.SetDefault(key, val)
		known[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}

	prefixUpper := strings.ToUpper(prefix)
	apply := func(key, value string) {
		key = strings.ToUpper(key)
		if !strings.HasPrefix(key, prefixUpper) {
			return
		}
		// TRINODBC_SERVER_PORT -> server.port
		rest := strings.TrimPrefix(strings.TrimPrefix(key, prefixUpper), "_")
		propKey, ok := known[rest]
		if !ok {
			propKey = strings.ToLower(strings.ReplaceAll(rest, "_", "."))
		}
		v.Set(propKey, value)
	}

	// 1. .env file (optional)
	if envFile != "" {
		dotenv := viper.New()
		dotenv.SetConfigFile(envFile)
		dotenv.SetConfigType("env")
		if err := dotenv.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read %s: %w", envFile, err)
			}
		} else {
			for _, key := range dotenv.AllKeys() {
				apply(key, dotenv.GetString(key))
			}
		}
	}

	// 2. Environment variables
	for _, envStr := range environ {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		apply(pair[0], pair[1])
	}

	// 3. Unmarshal into struct
	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}
