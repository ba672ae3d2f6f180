// Package config loads forkline settings from file, environment and
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".forkline"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for forkline settings.
const envPrefix = "FORKLINE"

// Defaults applied when neither file nor environment sets a value.
const (
	DefaultLibraryDir = "patches"
	DefaultGitTimeout = 60 * time.Second
	DefaultDecision   = "skip"
)

// Config is the resolved forkline configuration.
type Config struct {
	// LibraryDir is the patch library root, relative to the working
	// directory unless absolute.
	LibraryDir string `mapstructure:"library_dir"`

	// RepoDir is the tracked source tree. Empty means the current
	// working directory.
	RepoDir string `mapstructure:"repo_dir"`

	// GitTimeout bounds every git subprocess invocation.
	GitTimeout time.Duration `mapstructure:"git_timeout"`

	// Platform overrides host platform detection for series skip
	// directives. Empty means runtime detection.
	Platform string `mapstructure:"platform"`

	// NonInteractive disables conflict prompts; Decision is used for
	// every conflict instead.
	NonInteractive bool `mapstructure:"non_interactive"`

	// Decision is the automatic conflict decision in non-interactive
	// runs: "skip" or "abort".
	Decision string `mapstructure:"decision"`

	// IncludeBinary extracts binary markers by default.
	IncludeBinary bool `mapstructure:"include_binary"`
}

// Validate rejects values no command could act on.
func (c *Config) Validate() error {
	if c.LibraryDir == "" {
		return fmt.Errorf("library_dir must not be empty")
	}
	if c.GitTimeout <= 0 {
		return fmt.Errorf("git_timeout must be positive, got %s", c.GitTimeout)
	}
	switch c.Decision {
	case "skip", "abort":
	default:
		return fmt.Errorf("decision must be %q or %q, got %q", "skip", "abort", c.Decision)
	}
	return nil
}

// Load reads configuration from file, env vars, and defaults. If
// configPath is non-empty, it is used as the explicit config file path.
// Otherwise the config file is searched in CWD and $HOME. A missing
// config file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// An explicitly named file must exist; a searched one may not.
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("library_dir", DefaultLibraryDir)
	v.SetDefault("repo_dir", "")
	v.SetDefault("git_timeout", DefaultGitTimeout)
	v.SetDefault("platform", "")
	v.SetDefault("non_interactive", false)
	v.SetDefault("decision", DefaultDecision)
	v.SetDefault("include_binary", false)
}
