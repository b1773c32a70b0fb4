// Package config loads the client configuration from a yaml file and
// environment variables, with env taking precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var validate = validator.New()

type Config struct {
	// APIBaseURL is the REST backend root, e.g. https://api.designpro.qa.
	APIBaseURL string `mapstructure:"api_base_url" validate:"required,url"`
	// WSBaseURL is the realtime endpoint root, e.g. wss://api.designpro.qa.
	WSBaseURL string `mapstructure:"ws_base_url" validate:"required"`
	SQLite    struct {
		// File is the path to the local session database.
		File string `mapstructure:"file" validate:"required"`
		// Migrations is the directory holding the migration files.
		Migrations string `mapstructure:"migrations" validate:"required"`
	} `mapstructure:"sqlite"`
}

// Load reads config.yaml from the working directory, then applies
// environment overrides (API_BASE_URL, WS_BASE_URL, SQLITE_FILE,
// SQLITE_MIGRATIONS). A missing config file is fine as long as the
// environment supplies the required values. A .env file is honored when
// present.
func Load() (*Config, error) {
	// Best effort; absence of a .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("sqlite.file", "./chatkit.db")
	v.SetDefault("sqlite.migrations", "./migrations")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config,
		viper.DecodeHook(mapstructure.StringToSliceHookFunc(","))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			var sb strings.Builder
			for _, e := range errs {
				fmt.Fprintf(&sb, "%s is %s; ", e.Field(), e.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.TrimSuffix(sb.String(), "; "))
		}
		return err
	}
	return nil
}
