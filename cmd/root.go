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
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/database"
	_ "github.com/GoogleCloudPlatform/db-query-seeder/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/db-query-seeder/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/db-query-seeder/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	v          = viper.New()
	configFile string
	dryRun     bool
	tablesFlag string

	appConfig *config.Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "db_query_seeder",
	Short: "A tool to generate seed data that satisfies SQL queries",
	Long: `db_query_seeder reads a SQL query and a database schema and generates
INSERT statements whose rows make the query return results. Parent rows are
inserted before children, and unique and primary keys are never repeated.`,
	SilenceUsage:      true,
	PersistentPreRunE: initFlagsAndConfig,
}

// initFlagsAndConfig loads .env files and the config file, then builds the
// logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if cmd.Flags().Changed("gemini-api-key") {
		v.Set("genai.enabled", true)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	appConfig = cfg

	l, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func setupDatabase(cmd *cobra.Command) (*database.DB, error) {
	db, err := database.New(cmd.Context(), appConfig.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.ExecuteContext(context.Background())
}

func dialectNames() []string {
	var names []string
	for _, t := range dialect.SupportedTypes() {
		names = append(names, string(t))
	}
	return names
}

func bindFlag(flags *pflag.FlagSet, key, flag string) {
	if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (YAML, JSON or TOML)")
	flags.BoolVar(&dryRun, "dry-run", true, "Enable dry-run mode (no database modifications)")
	flags.Bool("verbose", false, "Enable development logging")

	// Database connection flags
	flags.String("dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join(database.RegisteredDialects(), ", ")))
	flags.String("host", "", "Database host")
	flags.Int("port", 0, "Database port")
	flags.String("username", "", "Database username")
	flags.String("password", "", "Database password")
	flags.String("database", "", "Database name")
	flags.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	flags.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Generation flags shared by generate and serve
	flags.String("target", "mysql", fmt.Sprintf("Dialect of the generated statements (%s); defaults to --dialect when connected", strings.Join(dialectNames(), ", ")))
	flags.String("schema-file", "", "YAML schema file used instead of introspecting the database")
	flags.Int64("seed", 1, "Random seed; the same seed, schema and query give the same output")
	flags.Int("existing-rows", 1000, "Maximum rows per table read from the database to avoid key collisions (0 disables)")
	flags.Bool("genai", false, "Ask Gemini for realistic values of free text columns")
	flags.StringVar(&tablesFlag, "tables", "", "Comma separated tables to introspect (tables they reference are included)")

	// Gemini API Key flag
	flags.String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")

	bindFlag(flags, "verbose", "verbose")
	bindFlag(flags, "database.dialect", "dialect")
	bindFlag(flags, "database.host", "host")
	bindFlag(flags, "database.port", "port")
	bindFlag(flags, "database.user", "username")
	bindFlag(flags, "database.password", "password")
	bindFlag(flags, "database.name", "database")
	bindFlag(flags, "database.cloudsql_instance", "cloudsql-instance-connection-name")
	bindFlag(flags, "database.cloudsql_private_ip", "cloudsql-use-private-ip")
	bindFlag(flags, "genai.api_key", "gemini-api-key")
	bindFlag(flags, "genai.enabled", "genai")
	bindFlag(flags, "generation.target", "target")
	bindFlag(flags, "generation.schema_file", "schema-file")
	bindFlag(flags, "generation.seed", "seed")
	bindFlag(flags, "generation.existing_rows", "existing-rows")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dialectsCmd)
}
