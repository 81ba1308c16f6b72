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
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/database"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
)

const (
	listTablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_type = 'BASE TABLE'
		ORDER BY table_name;`

	// Primary key membership and identity (serial or GENERATED) are derived
	// per column.
	listColumnsQuery = `
		SELECT c.column_name, c.data_type, c.is_nullable, c.character_maximum_length,
			(c.is_identity = 'YES' OR COALESCE(c.column_default, '') LIKE 'nextval(%'),
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND kcu.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema()
		AND c.table_name = $1
		ORDER BY c.ordinal_position;`

	listForeignKeysQuery = `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name, tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = current_schema()
		AND tc.table_name = $1
		ORDER BY tc.constraint_name, kcu.ordinal_position;`

	listUniqueKeysQuery = `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'UNIQUE'
		AND tc.table_schema = current_schema()
		AND tc.table_name = $1
		ORDER BY tc.constraint_name, kcu.ordinal_position;`
)

// postgresIntrospector implements database.Introspector for PostgreSQL.
type postgresIntrospector struct{}

var _ database.Introspector = (*postgresIntrospector)(nil)

// CreateCloudSQLPool for PostgreSQL
func (h postgresIntrospector) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	if instanceConnectionName == "" {
		return nil, fmt.Errorf("missing CloudSQL instance connection name")
	}

	dsn := fmt.Sprintf("user=%s password=%s database=%s", cfg.User, cfg.Password, cfg.DBName)
	pgxConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	var opts []cloudsqlconn.Option
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	pgxConfig.DialFunc = func(ctx context.Context, network, instance string) (net.Conn, error) {
		return d.Dial(ctx, instanceConnectionName)
	}
	dbURI := stdlib.RegisterConnConfig(pgxConfig)
	dbPool, err := sql.Open("pgx", dbURI)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	return dbPool, nil
}

// CreateStandardPool creates a standard PostgreSQL connection pool
func (h postgresIntrospector) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dbPool, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return dbPool, nil
}

// ConnString builds a lib/pq keyword/value connection string. Port 0 means
// 5432 and an empty sslmode means disable.
func ConnString(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslMode,
	)
}

// ListTables for PostgreSQL
func (h postgresIntrospector) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	return database.QueryTables(ctx, db, listTablesQuery)
}

// ListColumns for PostgreSQL
func (h postgresIntrospector) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	columns, err := database.QueryColumns(ctx, db, listColumnsQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return columns, nil
}

func (h postgresIntrospector) ListForeignKeys(ctx context.Context, db *database.DB, tableName string) ([]database.ForeignKeyReference, error) {
	fks, err := database.QueryForeignKeys(ctx, db, listForeignKeysQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return fks, nil
}

func (h postgresIntrospector) ListUniqueKeys(ctx context.Context, db *database.DB, tableName string) ([]database.UniqueKey, error) {
	keys, err := database.QueryUniqueKeys(ctx, db, listUniqueKeysQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return keys, nil
}

func init() {
	database.RegisterIntrospector(dialect.PostgreSQL, postgresIntrospector{})
}
