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
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/database"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	mssql "github.com/denisenkom/go-mssqldb"
)

const (
	listTablesQuery = "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_CATALOG = DB_NAME() ORDER BY TABLE_NAME"

	listColumnsQuery = `
		SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.IS_NULLABLE,
			c.CHARACTER_MAXIMUM_LENGTH,
			CAST(COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') AS bit),
			CAST(CASE WHEN EXISTS (
				SELECT 1
				FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
				JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
					ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
				WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
					AND tc.TABLE_NAME = c.TABLE_NAME
					AND kcu.COLUMN_NAME = c.COLUMN_NAME
			) THEN 1 ELSE 0 END AS bit)
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_NAME = @tableName AND c.TABLE_CATALOG = DB_NAME()
		ORDER BY c.ORDINAL_POSITION`

	listForeignKeysQuery = `
		SELECT
			COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS column_name,
			OBJECT_NAME(f.referenced_object_id) AS ref_table,
			COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS ref_column,
			f.name AS constraint_name
		FROM
			sys.foreign_keys f
		JOIN
			sys.foreign_key_columns fkc ON f.object_id = fkc.constraint_object_id
		WHERE
			f.parent_object_id = OBJECT_ID(@tableName)
		ORDER BY f.name, fkc.constraint_column_id`

	listUniqueKeysQuery = `
		SELECT i.name, c.name
		FROM sys.indexes i
		JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
		JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		WHERE i.object_id = OBJECT_ID(@tableName)
			AND i.is_unique = 1
			AND i.is_primary_key = 0
			AND ic.is_included_column = 0
		ORDER BY i.name, ic.key_ordinal`
)

// sqlServerIntrospector implements database.Introspector for SQL Server.
type sqlServerIntrospector struct{}

var _ database.Introspector = (*sqlServerIntrospector)(nil)

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

// CreateCloudSQLPool for SQL Server
func (h sqlServerIntrospector) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	if instanceConnectionName == "" {
		return nil, fmt.Errorf("missing CloudSQL instance connection name")
	}

	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}
	connector, err := mssql.NewConnector(connURL(cfg.User, cfg.Password, "localhost", 1433, cfg.DBName))
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   instanceConnectionName,
		usePrivate: cfg.UsePrivateIP,
	}
	return sql.OpenDB(connector), nil
}

// CreateStandardPool creates a standard SQL Server connection pool
func (h sqlServerIntrospector) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	port := cfg.Port
	if port == 0 {
		port = 1433 // Default SQL Server port
	}
	dbPool, err := sql.Open("sqlserver", connURL(cfg.User, cfg.Password, cfg.Host, port, cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return dbPool, nil
}

// connURL escapes credentials, which may contain URL delimiters.
func connURL(user, password, host string, port int, dbName string) string {
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		RawQuery: url.Values{"database": {dbName}}.Encode(),
	}
	return u.String()
}

func (h sqlServerIntrospector) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	return database.QueryTables(ctx, db, listTablesQuery)
}

func (h sqlServerIntrospector) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	columns, err := database.QueryColumns(ctx, db, listColumnsQuery, sql.Named("tableName", tableName))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return columns, nil
}

func (h sqlServerIntrospector) ListForeignKeys(ctx context.Context, db *database.DB, tableName string) ([]database.ForeignKeyReference, error) {
	fks, err := database.QueryForeignKeys(ctx, db, listForeignKeysQuery, sql.Named("tableName", tableName))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return fks, nil
}

func (h sqlServerIntrospector) ListUniqueKeys(ctx context.Context, db *database.DB, tableName string) ([]database.UniqueKey, error) {
	keys, err := database.QueryUniqueKeys(ctx, db, listUniqueKeysQuery, sql.Named("tableName", tableName))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return keys, nil
}

func init() {
	database.RegisterIntrospector(dialect.SQLServer, sqlServerIntrospector{})
}
