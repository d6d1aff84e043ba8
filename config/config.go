// Package config loads MeaCode settings from defaults, environment,
// an optional meacode.yaml and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MEACODE_ADDR.
const EnvPrefix = "MEACODE"

// FileName is the config file looked up in the working directory.
const FileName = "meacode"

// Config is the full application configuration.
type Config struct {
	Addr      string        `mapstructure:"addr"`
	HostURL   string        `mapstructure:"host_url"`
	Workspace string        `mapstructure:"workspace"`
	ConfigDir string        `mapstructure:"config_dir"`
	LogLevel  string        `mapstructure:"log_level"`
	AI        AIConfig      `mapstructure:"ai"`
	Exec      ExecConfig    `mapstructure:"exec"`
	Sandbox   SandboxConfig `mapstructure:"sandbox"`
	Session   SessionConfig `mapstructure:"session"`
	Cache     CacheConfig   `mapstructure:"cache"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type AIConfig struct {
	Provider  string  `mapstructure:"provider"`
	BaseURL   string  `mapstructure:"base_url"`
	Model     string  `mapstructure:"model"`
	APIKey    string  `mapstructure:"api_key"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

type ExecConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Shell   string        `mapstructure:"shell"`
}

type SandboxConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Node    string        `mapstructure:"node"`
}

type SessionConfig struct {
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	GitPollInterval  time.Duration `mapstructure:"git_poll_interval"`
	Debounce         time.Duration `mapstructure:"debounce"`
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxSize         int           `mapstructure:"max_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DefaultConfig holds the built-in values.
var DefaultConfig = Config{
	Addr:     "127.0.0.1:7411",
	HostURL:  "ws://127.0.0.1:7411/ws",
	LogLevel: "info",
	AI: AIConfig{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		RateLimit: 2,
		Burst:     4,
	},
	Exec:    ExecConfig{Timeout: 60 * time.Second},
	Sandbox: SandboxConfig{Timeout: 1500 * time.Millisecond, Node: "node"},
	Session: SessionConfig{
		AutosaveInterval: 2 * time.Second,
		PollInterval:     1500 * time.Millisecond,
		GitPollInterval:  5 * time.Second,
		Debounce:         120 * time.Millisecond,
	},
	Cache: CacheConfig{
		TTL:             5 * time.Minute,
		MaxSize:         100,
		CleanupInterval: 10 * time.Minute,
	},
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"addr":      "addr",
	"host-url":  "host_url",
	"workspace": "workspace",
	"log-level": "log_level",
	"model":     "ai.model",
	"base-url":  "ai.base_url",
}

// InitFlags registers the persistent flags on the root command.
func InitFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "path to a config file (YAML or JSON)")
	flags.String("addr", DefaultConfig.Addr, "listen address of the host server")
	flags.String("host-url", DefaultConfig.HostURL, "WebSocket URL of the host")
	flags.StringP("workspace", "w", "", "workspace folder")
	flags.String("log-level", DefaultConfig.LogLevel, "log level (debug, info, warn, error)")
	flags.String("model", DefaultConfig.AI.Model, "chat model name")
	flags.String("base-url", "", "OpenAI-compatible API base URL")
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig
	v.SetDefault("addr", d.Addr)
	v.SetDefault("host_url", d.HostURL)
	v.SetDefault("workspace", d.Workspace)
	v.SetDefault("config_dir", d.ConfigDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.api_key", d.AI.APIKey)
	v.SetDefault("ai.rate_limit", d.AI.RateLimit)
	v.SetDefault("ai.burst", d.AI.Burst)
	v.SetDefault("exec.timeout", d.Exec.Timeout)
	v.SetDefault("exec.shell", d.Exec.Shell)
	v.SetDefault("sandbox.timeout", d.Sandbox.Timeout)
	v.SetDefault("sandbox.node", d.Sandbox.Node)
	v.SetDefault("session.autosave_interval", d.Session.AutosaveInterval)
	v.SetDefault("session.poll_interval", d.Session.PollInterval)
	v.SetDefault("session.git_poll_interval", d.Session.GitPollInterval)
	v.SetDefault("session.debounce", d.Session.Debounce)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.Root().PersistentFlags().Lookup(name)
}

// Load resolves the configuration for cmd. Precedence, highest first:
// flags set on the command line, MEACODE_* environment variables, the
// config file, then defaults. ai.api_key also reads OPENAI_API_KEY.
func Load(cmd *cobra.Command, cwd string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "OPENAI_API_KEY")

	cfgFile := ""
	if f := lookupFlag(cmd, "config"); f != nil {
		cfgFile = f.Value.String()
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(cwd)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for name, key := range flagKeys {
		if f := lookupFlag(cmd, name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}
