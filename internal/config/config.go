// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultTempDirectory   = "remapped"
	DefaultSourceExtension = "sol"
	DefaultMaxBodyBytes    = 32 << 20
)

// Config is the service configuration. Server.MaxBodyBytes caps POST
// /api/remap bodies; Server.AllowedRoot, when set, is the only tree API
// callers may remap into.
type Config struct {
	Server struct {
		Host         string `json:"host" mapstructure:"host"`
		Port         int    `json:"port" mapstructure:"port"`
		MaxBodyBytes int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
		AllowedRoot  string `json:"allowed_root" mapstructure:"allowed_root"`
	} `json:"server" mapstructure:"server"`

	Database struct {
		Path string `json:"path" mapstructure:"path"`
	} `json:"database" mapstructure:"database"`

	Remap RemapConfig `json:"remap" mapstructure:"remap"`

	Archive struct {
		CacheSize       int `json:"cache_size" mapstructure:"cache_size"`
		CompressMinSize int `json:"compress_min_size" mapstructure:"compress_min_size"`
	} `json:"archive" mapstructure:"archive"`

	Environment string `json:"environment" mapstructure:"environment"` // dev, prod
	LogLevel    string `json:"log_level" mapstructure:"log_level"`     // debug, info, warn, error
}

// RemapConfig holds the settings a remap run is constructed with.
// ProjectPaths and Remappings are carried for other collaborators and are
// never consulted when rewriting imports. Remappings use the compiler's
// "prefix=target" form so their case survives loading; viper lowercases the
// ProjectPaths keys.
type RemapConfig struct {
	TempDirectory   string            `json:"temp_directory" mapstructure:"temp_directory"`
	SourceExtension string            `json:"source_extension" mapstructure:"source_extension"`
	ProjectPaths    map[string]string `json:"project_paths" mapstructure:"project_paths"`
	Remappings      []string          `json:"remappings" mapstructure:"remappings"`
}

// keyDelimiter separates nested config keys. Map keys in the remap section
// may contain dots, so the default "." cannot be used.
const keyDelimiter = "::"

func key(parts ...string) string {
	return strings.Join(parts, keyDelimiter)
}

func getConfigPath() string {
	env := os.Getenv("REMAP_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(key("server", "host"), "127.0.0.1")
	v.SetDefault(key("server", "port"), 8088)
	v.SetDefault(key("server", "max_body_bytes"), DefaultMaxBodyBytes)
	v.SetDefault(key("server", "allowed_root"), "")
	v.SetDefault(key("database", "path"), ".remap")
	v.SetDefault(key("remap", "temp_directory"), DefaultTempDirectory)
	v.SetDefault(key("remap", "source_extension"), DefaultSourceExtension)
	v.SetDefault(key("remap", "remappings"), []string{})
	v.SetDefault(key("archive", "cache_size"), 256)
	v.SetDefault(key("archive", "compress_min_size"), 1024)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
}

// Load reads the JSON config at path, layered over defaults and REMAP_*
// environment variables. An empty path falls back to config/config.<env>.json
// when that file exists, and to defaults otherwise.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	setDefaults(v)
	v.SetEnvPrefix("REMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(getConfigPath()); err == nil {
			path = getConfigPath()
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the remapper cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Remap.TempDirectory) == "" {
		return fmt.Errorf("remap.temp_directory cannot be empty")
	}
	if strings.ContainsAny(c.Remap.TempDirectory, `/\`) {
		return fmt.Errorf("remap.temp_directory must be a single directory name, got %q", c.Remap.TempDirectory)
	}
	if strings.TrimPrefix(c.Remap.SourceExtension, ".") == "" {
		return fmt.Errorf("remap.source_extension cannot be empty")
	}
	for _, r := range c.Remap.Remappings {
		prefix, _, ok := strings.Cut(r, "=")
		if !ok || prefix == "" {
			return fmt.Errorf("remap.remappings: %q is not of the form prefix=target", r)
		}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Server.AllowedRoot != "" && !filepath.IsAbs(c.Server.AllowedRoot) {
		return fmt.Errorf("server.allowed_root must be an absolute path, got %q", c.Server.AllowedRoot)
	}
	return nil
}
