package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. DAYPLAN_BASE_URL.
const EnvPrefix = "DAYPLAN"

type Config struct {
	BaseURL   string        `mapstructure:"base_url"`
	User      string        `mapstructure:"user"`
	Token     string        `mapstructure:"token"`
	CSRFToken string        `mapstructure:"csrf_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFile   string        `mapstructure:"log_file"`
	Theme     string        `mapstructure:"theme"`
}

// Load reads, in increasing precedence: defaults, the config file, .env, DAYPLAN_* env.
// file pins the config file; otherwise .dayplan.{yaml,json,toml} is looked up in
// searchPaths, falling back to $HOME and the working directory.
func Load(file string, searchPaths ...string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("base_url", "http://localhost:8000")
	v.SetDefault("user", "")
	v.SetDefault("token", "")
	v.SetDefault("csrf_token", "")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", defaultLogFile())
	v.SetDefault("theme", "classic")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".dayplan")
		if len(searchPaths) == 0 {
			if home, err := os.UserHomeDir(); err == nil {
				searchPaths = append(searchPaths, home)
			}
			searchPaths = append(searchPaths, ".")
		}
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	return c, nil
}

func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dayplan.log"
	}
	return filepath.Join(home, ".dayplan", "dayplan.log")
}
