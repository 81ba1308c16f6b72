/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// SEEDER_DATABASE_HOST.
const EnvPrefix = "SEEDER"

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	GenAI      GenAIConfig      `mapstructure:"genai"`
	Generation GenerationConfig `mapstructure:"generation"`
	Server     ServerConfig     `mapstructure:"server"`
	Verbose    bool             `mapstructure:"verbose"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"user"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"name"`
	SSLMode                        string `mapstructure:"sslmode"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance"`
	UsePrivateIP                   bool   `mapstructure:"cloudsql_private_ip"`
}

// IsCloudSQL reports whether the dialect connects through the Cloud SQL
// connector.
func (c DatabaseConfig) IsCloudSQL() bool {
	return strings.HasPrefix(c.Dialect, "cloudsql")
}

// GenAIConfig configures the optional model-backed value supplier.
type GenAIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	Models      []string      `mapstructure:"models"`
	DailyLimit  int           `mapstructure:"daily_limit"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxFailures int           `mapstructure:"max_failures"`
}

// GenerationConfig holds the defaults of a generation run.
type GenerationConfig struct {
	Rows            int           `mapstructure:"rows"`
	Seed            int64         `mapstructure:"seed"`
	Target          string        `mapstructure:"target"`
	SchemaFile      string        `mapstructure:"schema_file"`
	ExpandPools     bool          `mapstructure:"expand_pools"`
	SupplierTimeout time.Duration `mapstructure:"supplier_timeout"`
	// ExistingRows caps the parent rows read from a live database per table.
	ExistingRows int `mapstructure:"existing_rows"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxRows        int           `mapstructure:"max_rows"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.dialect", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.cloudsql_instance", "")
	v.SetDefault("database.cloudsql_private_ip", false)

	v.SetDefault("genai.enabled", false)
	v.SetDefault("genai.api_key", "")
	v.SetDefault("genai.models", []string{"gemini-1.5-flash-latest"})
	v.SetDefault("genai.daily_limit", 1500)
	v.SetDefault("genai.min_interval", 4*time.Second)
	v.SetDefault("genai.max_failures", 3)

	v.SetDefault("generation.rows", 10)
	v.SetDefault("generation.seed", 1)
	v.SetDefault("generation.target", "mysql")
	v.SetDefault("generation.schema_file", "")
	v.SetDefault("generation.expand_pools", true)
	v.SetDefault("generation.supplier_timeout", 5*time.Second)
	v.SetDefault("generation.existing_rows", 1000)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_rows", 1000)

	v.SetDefault("verbose", false)
}

// Load reads configuration from v's config file (when one is set), the
// environment and any flags bound to v. GEMINI_API_KEY is accepted as a
// fallback for the API key.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("genai.api_key", EnvPrefix+"_GENAI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api key environment: %w", err)
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.Database.Dialect = strings.ToLower(strings.TrimSpace(cfg.Database.Dialect))
	cfg.Generation.Target = strings.ToLower(strings.TrimSpace(cfg.Generation.Target))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Generation.Rows <= 0 {
		errs = append(errs, fmt.Errorf("generation.rows must be positive, got %d", c.Generation.Rows))
	}
	if c.Generation.SupplierTimeout <= 0 {
		errs = append(errs, fmt.Errorf("generation.supplier_timeout must be positive"))
	}
	if c.GenAI.Enabled && c.GenAI.APIKey == "" {
		errs = append(errs, fmt.Errorf("genai.enabled requires an API key (%s_GENAI_API_KEY or GEMINI_API_KEY)", EnvPrefix))
	}
	if c.Database.IsCloudSQL() && c.Database.CloudSQLInstanceConnectionName == "" {
		errs = append(errs, fmt.Errorf("dialect %s requires database.cloudsql_instance", c.Database.Dialect))
	}
	if c.Server.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("server.max_rows must be positive"))
	}
	return errors.Join(errs...)
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
