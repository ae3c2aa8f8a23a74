package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "APIGEN"

// Load builds the configuration from defaults, an optional YAML file and
// APIGEN_* environment variables, in increasing priority. A .env file in the
// working directory is loaded into the environment first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key. AutomaticEnv only resolves keys viper
// already knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "120s")
	// above generation.timeout so the archive can still be streamed
	v.SetDefault("server.write_timeout", "360s")

	v.SetDefault("metrics.addr", ":2112")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.base_delay", "500ms")
	v.SetDefault("llm.max_delay", "8s")

	v.SetDefault("generation.timeout", "5m")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "apigen")

	v.SetDefault("workspace.dir", "./workspaces")
	v.SetDefault("workspace.archive_dir", "./workspaces/archives")
	v.SetDefault("workspace.stale_after", "1h")

	v.SetDefault("layout.file", "")

	v.SetDefault("log.level", "info")
}
