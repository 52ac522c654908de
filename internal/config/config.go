// Package config loads server, storage and chat settings from an optional
// YAML file with BOARDPREP_* environment overrides. Language model settings
// live in llm.ConfigFromEnv.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Questions QuestionsConfig `mapstructure:"questions"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// IdleTimeout evicts untouched conversations from memory.
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
}

type StoreConfig struct {
	// Path is the SQLite database file. Empty means store.DefaultDBPath.
	Path string `mapstructure:"path"`
}

type QuestionsConfig struct {
	Source        string `mapstructure:"source"` // "file" or "mongo"
	File          string `mapstructure:"file"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // "memory" or "redis"
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type ChatConfig struct {
	MaxWords         int    `mapstructure:"max_words"`
	MaxContext       int    `mapstructure:"max_context"`
	SummaryThreshold int    `mapstructure:"summary_threshold"`
	SystemPrompt     string `mapstructure:"system_prompt"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // "dev" or "prod"
}

// DefaultChatSystemPrompt is the base prompt of open-ended tutor chats.
const DefaultChatSystemPrompt = "You are a friendly USMLE tutor. Answer the student's questions clearly and concisely, " +
	"tie explanations back to high-yield exam concepts, and ask a short follow-up question when it helps learning."

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.idle_timeout", "30m")
	v.SetDefault("store.path", "")
	v.SetDefault("questions.source", "file")
	v.SetDefault("questions.file", "questions.yaml")
	v.SetDefault("questions.mongo_uri", "")
	v.SetDefault("questions.mongo_database", "boardprep")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("chat.max_words", 300)
	v.SetDefault("chat.max_context", 40)
	v.SetDefault("chat.summary_threshold", 10)
	v.SetDefault("chat.system_prompt", DefaultChatSystemPrompt)
	v.SetDefault("log.mode", "dev")
}

// Load reads path, or config.yaml under the user config directory when path
// is empty. A missing default file is not an error; a missing explicit
// path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("BOARDPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "boardprep"))
		}
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.Questions.Source {
	case "file":
		if c.Questions.File == "" {
			return errors.New("questions.file is required when questions.source is \"file\"")
		}
	case "mongo":
		if c.Questions.MongoURI == "" {
			return errors.New("questions.mongo_uri is required when questions.source is \"mongo\"")
		}
	default:
		return fmt.Errorf("unknown questions.source %q (want file or mongo)", c.Questions.Source)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required when cache.backend is \"redis\"")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q (want memory or redis)", c.Cache.Backend)
	}

	if c.Chat.MaxContext < 2 {
		return fmt.Errorf("chat.max_context must be at least 2, got %d", c.Chat.MaxContext)
	}
	if c.Chat.SummaryThreshold < 1 {
		return fmt.Errorf("chat.summary_threshold must be positive, got %d", c.Chat.SummaryThreshold)
	}
	return nil
}
