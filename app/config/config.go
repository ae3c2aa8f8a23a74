package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Server     HTTPServerConfig `json:"server" mapstructure:"server"`
	Metrics    MetricsConfig    `json:"metrics" mapstructure:"metrics"`
	LLM        LLMConfig        `json:"llm" mapstructure:"llm"`
	Generation GenerationConfig `json:"generation" mapstructure:"generation"`
	Mongo      MongoConfig      `json:"mongo" mapstructure:"mongo"`
	Workspace  WorkspaceConfig  `json:"workspace" mapstructure:"workspace"`
	Layout     LayoutConfig     `json:"layout" mapstructure:"layout"`
	Log        LogConfig        `json:"log" mapstructure:"log"`
}

type HTTPServerConfig struct {
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
}

// Addr is the listen address of the API server.
func (c HTTPServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

type LLMConfig struct {
	APIKey     string        `json:"api_key" mapstructure:"api_key"`
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	Model      string        `json:"model" mapstructure:"model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay" mapstructure:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay" mapstructure:"max_delay"`
}

type GenerationConfig struct {
	// Timeout bounds one whole pipeline run. Zero disables it.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

type MongoConfig struct {
	URI      string `json:"uri" mapstructure:"uri"`
	Database string `json:"database" mapstructure:"database"`
}

type WorkspaceConfig struct {
	Dir        string `json:"dir" mapstructure:"dir"`
	ArchiveDir string `json:"archive_dir" mapstructure:"archive_dir"`
	// StaleAfter is the age at which leftovers from a crashed run are swept
	// on startup.
	StaleAfter time.Duration `json:"stale_after" mapstructure:"stale_after"`
}

type LayoutConfig struct {
	// File is an HCL layout document. Empty means the built-in layout.
	File string `json:"file" mapstructure:"file"`
}

type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// Validate checks the settings every command needs. Mongo settings are
// checked by the serve command only.
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required"))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("llm.max_retries must not be negative"))
	}
	if c.Workspace.Dir == "" {
		errs = append(errs, errors.New("workspace.dir is required"))
	}
	if c.Workspace.ArchiveDir == "" {
		errs = append(errs, errors.New("workspace.archive_dir is required"))
	}
	if c.Server.WriteTimeout > 0 && (c.Generation.Timeout <= 0 || c.Server.WriteTimeout <= c.Generation.Timeout) {
		errs = append(errs, fmt.Errorf("server.write_timeout (%s) must exceed generation.timeout (%s)", c.Server.WriteTimeout, c.Generation.Timeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
