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
	"errors"
	"fmt"
	"os"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/database"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/genai"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/seeder"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoSchema = errors.New("either --schema-file or database connection flags (--dialect, --host, ...) are required")

// session holds what a command needs to generate statements. db is nil
// when the schema comes from a file and no connection was configured.
type session struct {
	svc      *seeder.Service
	db       *database.DB
	supplier *genai.Client
}

func (s *session) Close() {
	if s.supplier != nil {
		if err := s.supplier.Close(); err != nil {
			logger.Warn("Failed to close GenAI client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}

// resolveTarget picks the dialect statements are rendered for. Unless a
// target was given explicitly the connected database's dialect is used.
func resolveTarget(cfg *config.Config, explicit bool) (dialect.DatabaseType, error) {
	if !explicit && cfg.Database.Dialect != "" {
		return dialect.ParseDatabaseType(cfg.Database.Dialect)
	}
	return dialect.ParseDatabaseType(cfg.Generation.Target)
}

func targetIsExplicit(cmd *cobra.Command) bool {
	if f := cmd.Flags().Lookup("target"); f != nil && f.Changed {
		return true
	}
	return v.InConfig("generation.target") || os.Getenv(config.EnvPrefix+"_GENERATION_TARGET") != ""
}

// newSession builds the seeder service from appConfig. tablesFlag limits
// schema introspection to the named tables and the tables they reference.
func newSession(ctx context.Context, cmd *cobra.Command, tablesFlag string) (*session, error) {
	cfg := appConfig
	seederCfg, err := seeder.ConfigFrom(cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	if seederCfg.Target, err = resolveTarget(cfg, targetIsExplicit(cmd)); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	seederCfg.Tables = utils.ParseTablesFlag(tablesFlag)

	s := &session{}
	opts := []seeder.Option{seeder.WithLogger(logger)}

	if cfg.Database.Dialect != "" {
		db, err := setupDatabase(cmd)
		if err != nil {
			return nil, err
		}
		s.db = db
		opts = append(opts, seeder.WithRowSource(db))
	}

	switch {
	case cfg.Generation.SchemaFile != "":
		sch, err := schema.LoadFile(cfg.Generation.SchemaFile)
		if err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("Loaded schema file", zap.String("path", cfg.Generation.SchemaFile), zap.Int("tables", len(sch.Tables)))
		opts = append(opts, seeder.WithSchema(sch))
	case s.db != nil:
		opts = append(opts, seeder.WithSchemaSource(s.db))
	default:
		return nil, errNoSchema
	}

	if supplier := newSupplier(ctx, cfg.GenAI); supplier != nil {
		s.supplier = supplier
		opts = append(opts, seeder.WithSupplier(supplier))
	}

	svc, err := seeder.NewService(seederCfg, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.svc = svc
	logger.Info("Seeder ready",
		zap.String("target", string(svc.Target())),
		zap.Bool("live_database", s.db != nil),
		zap.Bool("genai", s.supplier != nil))
	return s, nil
}

// newSupplier returns a GenAI client when value suggestions are enabled. An
// invalid key disables the supplier with a warning.
func newSupplier(ctx context.Context, cfg config.GenAIConfig) *genai.Client {
	if !cfg.Enabled {
		return nil
	}
	client, err := genai.NewClient(ctx, genai.Config{
		APIKey:      cfg.APIKey,
		Models:      cfg.Models,
		DailyLimit:  cfg.DailyLimit,
		MinInterval: cfg.MinInterval,
		MaxFailures: cfg.MaxFailures,
	}, genai.WithLogger(logger))
	if err != nil {
		logger.Warn("Failed to create GenAI client, continuing without value suggestions", zap.Error(err))
		return nil
	}
	if err := client.IsAPIKeyValid(ctx); err != nil {
		logger.Warn("Gemini API key is invalid, continuing without value suggestions", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
