package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/database"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/go-sql-driver/mysql"
)

const (
	listTablesQuery = "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

	listColumnsQuery = `
		  SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, CHARACTER_MAXIMUM_LENGTH,
			EXTRA LIKE '%auto_increment%', COLUMN_KEY = 'PRI'
		  FROM information_schema.COLUMNS
		  WHERE TABLE_SCHEMA = DATABASE()
			AND TABLE_NAME = ?
		  ORDER BY ORDINAL_POSITION;`

	listForeignKeysQuery = `
		  SELECT COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME, CONSTRAINT_NAME
		  FROM information_schema.KEY_COLUMN_USAGE
		  WHERE TABLE_SCHEMA = DATABASE()
			AND TABLE_NAME = ?
			AND REFERENCED_TABLE_NAME IS NOT NULL
		  ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION;`

	listUniqueKeysQuery = `
		  SELECT INDEX_NAME, COLUMN_NAME
		  FROM information_schema.STATISTICS
		  WHERE TABLE_SCHEMA = DATABASE()
			AND TABLE_NAME = ?
			AND NON_UNIQUE = 0
			AND INDEX_NAME <> 'PRIMARY'
		  ORDER BY INDEX_NAME, SEQ_IN_INDEX;`
)

type mysqlIntrospector struct{}

var _ database.Introspector = (*mysqlIntrospector)(nil)

func (h mysqlIntrospector) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	instanceConnectionName := cfg.CloudSQLInstanceConnectionName
	if cfg.User == "" || cfg.Password == "" || cfg.DBName == "" || instanceConnectionName == "" {
		return nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, db, instance)")
	}

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	network := fmt.Sprintf("cloudsql-%s", instanceConnectionName)
	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			return d.Dial(ctx, instanceConnectionName, opts...)
		})

	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  network,
		Addr:                 instanceConnectionName,
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, fmt.Errorf("sql.Open failed for CloudSQL MySQL: %w", err)
	}
	return dbPool, nil
}

func (h mysqlIntrospector) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	dbPool, err := sql.Open("mysql", StandardDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

// StandardDSN builds a TCP DSN for cfg. Port 0 means 3306.
func StandardDSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, port),
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}
	return mysqlCfg.FormatDSN()
}

func (h mysqlIntrospector) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	return database.QueryTables(ctx, db, listTablesQuery)
}

func (h mysqlIntrospector) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	columns, err := database.QueryColumns(ctx, db, listColumnsQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return columns, nil
}

func (h mysqlIntrospector) ListForeignKeys(ctx context.Context, db *database.DB, tableName string) ([]database.ForeignKeyReference, error) {
	fks, err := database.QueryForeignKeys(ctx, db, listForeignKeysQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return fks, nil
}

func (h mysqlIntrospector) ListUniqueKeys(ctx context.Context, db *database.DB, tableName string) ([]database.UniqueKey, error) {
	keys, err := database.QueryUniqueKeys(ctx, db, listUniqueKeysQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableName, err)
	}
	return keys, nil
}

func init() {
	database.RegisterIntrospector(dialect.MySQL, mysqlIntrospector{})
}
