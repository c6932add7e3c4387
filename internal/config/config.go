// Package config loads dzerkalo's configuration from file, environment and
// command-line flags with viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/valpere/dzerkalo/internal/embedding"
	"github.com/valpere/dzerkalo/internal/orchestrator"
	"github.com/valpere/dzerkalo/internal/translator"
)

const EnvPrefix = "DZERKALO"

type Config struct {
	Log       LogConfig                           `mapstructure:"log"`
	DB        string                              `mapstructure:"db"`
	Polish    orchestrator.Config                 `mapstructure:"polish"`
	Providers map[string]translator.ServiceConfig `mapstructure:"providers"`
	Cache     CacheConfig                         `mapstructure:"cache"`
	Embedding embedding.Config                    `mapstructure:"embedding"`
	Judge     JudgeConfig                         `mapstructure:"judge"`
	Answer    AnswerConfig                        `mapstructure:"answer"`
	KB        KBConfig                            `mapstructure:"kb"`
	Server    ServerConfig                        `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
	// Persist writes through to the sqlite store at DB.
	Persist bool `mapstructure:"persist"`
}

// JudgeConfig selects the arbitration model: zhipu, openrouter or ollama.
type JudgeConfig struct {
	Backend string        `mapstructure:"backend"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AnswerConfig struct {
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KBConfig struct {
	// Dir is where saved knowledge bases go.
	Dir string `mapstructure:"dir"`
	// Load lists knowledge-base files ingested at start-up.
	Load     []string `mapstructure:"load"`
	MaxChars int      `mapstructure:"max_chars"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	Mode        string `mapstructure:"mode"`
	MaxUpload   int64  `mapstructure:"max_upload"`
	PolishedDir string `mapstructure:"polished_dir"`
}

// EnabledProviders returns the ids of providers whose block sets enabled,
// in sorted order.
func (c *Config) EnabledProviders() []string {
	var names []string
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".dzerkalo")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("db", filepath.Join(dataDir, "dzerkalo.db"))

	def := orchestrator.DefaultConfig()
	v.SetDefault("polish.source_lang", def.SourceLang)
	v.SetDefault("polish.pivot_lang", def.PivotLang)
	v.SetDefault("polish.deadline", def.Deadline)
	v.SetDefault("polish.leg_timeout", time.Duration(0))
	v.SetDefault("polish.workers", def.Workers)
	v.SetDefault("polish.top_k", def.TopK)
	v.SetDefault("polish.protect_markup", false)
	v.SetDefault("polish.validate_pivot", false)
	v.SetDefault("polish.compare", true)

	for _, name := range translator.Names() {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"enabled", name == "youdao" || name == "zhipu")
		for _, key := range []string{"credentials", "app_key", "api_key", "model", "base_url", "email", "project_id"} {
			v.SetDefault(prefix+key, "")
		}
		v.SetDefault(prefix+"timeout", 30*time.Second)
		v.SetDefault(prefix+"rate_limit", 0.0)
		v.SetDefault(prefix+"burst", 1)
	}

	v.SetDefault("cache.size", 4096)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.persist", true)

	v.SetDefault("embedding.backend", "hash")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dim", 256)
	v.SetDefault("embedding.timeout", 60*time.Second)

	v.SetDefault("judge.backend", "zhipu")
	v.SetDefault("judge.model", "")
	v.SetDefault("judge.base_url", "")
	v.SetDefault("judge.api_key", "")
	v.SetDefault("judge.timeout", 60*time.Second)

	v.SetDefault("answer.model", "llama3:8b")
	v.SetDefault("answer.base_url", "http://localhost:11434")
	v.SetDefault("answer.timeout", 120*time.Second)

	v.SetDefault("kb.dir", filepath.Join(dataDir, "knowledge_base"))
	v.SetDefault("kb.load", []string{})
	v.SetDefault("kb.max_chars", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload", int64(32<<20))
	v.SetDefault("server.polished_dir", filepath.Join(dataDir, "polished"))
}

// Load merges defaults, the config file, DZERKALO_* environment variables
// and flags, in increasing order of precedence. With an empty path it looks
// for ./dzerkalo.yaml and then $HOME/.dzerkalo.yaml; finding neither is not
// an error. flags maps config keys to the flags that override them.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile() string {
	candidates := []string{"dzerkalo.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".dzerkalo.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func (c *Config) validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.Judge.Backend {
	case "zhipu", "openrouter", "ollama":
	default:
		return fmt.Errorf("judge.backend must be zhipu, openrouter or ollama, got %q", c.Judge.Backend)
	}
	known := make(map[string]bool)
	for _, name := range translator.Names() {
		known[name] = true
	}
	for name := range c.Providers {
		if !known[name] {
			return fmt.Errorf("providers.%s: unknown provider (known: %s)", name, strings.Join(translator.Names(), ", "))
		}
	}
	if c.Polish.Workers < 0 || c.Polish.TopK < 0 {
		return fmt.Errorf("polish.workers and polish.top_k must not be negative")
	}
	return nil
}
