package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"go.uber.org/zap"
)

// Introspector reads schema metadata from one database engine.
type Introspector interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	ListTables(ctx context.Context, db *DB) ([]string, error)
	ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error)
	ListForeignKeys(ctx context.Context, db *DB, tableName string) ([]ForeignKeyReference, error)
	ListUniqueKeys(ctx context.Context, db *DB, tableName string) ([]UniqueKey, error)
}

// DB holds the database connection pool and the engine specific handlers.
type DB struct {
	Pool         *sql.DB
	Introspector Introspector
	// Dialect quotes identifiers and pages queries for the engine.
	Dialect dialect.Handler
	Config  config.DatabaseConfig
	Logger  *zap.Logger
}

// ColumnInfo holds information about a database column.
type ColumnInfo struct {
	Name       string
	DataType   string
	Nullable   bool
	PrimaryKey bool
	Identity   bool
	MaxLength  int
}

// ForeignKeyReference is one column of a foreign key constraint.
type ForeignKeyReference struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	ConstraintName   string
}

// UniqueKey is a unique constraint other than the primary key.
type UniqueKey struct {
	Name    string
	Columns []string
}

var (
	introspectors = make(map[string]Introspector)
	mu            sync.RWMutex
)

func RegisterIntrospector(t dialect.DatabaseType, i Introspector) {
	mu.Lock()
	defer mu.Unlock()
	introspectors[string(t)] = i
}

// GetIntrospector resolves name, which may be any alias accepted by
// dialect.ParseDatabaseType, to its registered introspector.
func GetIntrospector(name string) (Introspector, dialect.DatabaseType, error) {
	t, err := dialect.ParseDatabaseType(name)
	if err != nil {
		return nil, "", err
	}
	mu.RLock()
	defer mu.RUnlock()
	i, ok := introspectors[string(t)]
	if !ok {
		return nil, "", fmt.Errorf("unsupported database dialect: %s", name)
	}
	return i, t, nil
}

// RegisteredDialects lists the dialects with a registered introspector.
func RegisteredDialects() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(introspectors))
	for name := range introspectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New connects to the database described by cfg and verifies the
// connection.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	introspector, t, err := GetIntrospector(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	handler, err := dialect.NewHandler(t)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if cfg.IsCloudSQL() {
		pool, err = introspector.CreateCloudSQLPool(cfg)
	} else {
		pool, err = introspector.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}
	logger.Info("Connected to database", zap.String("dialect", cfg.Dialect), zap.String("database", cfg.DBName))

	return &DB{
		Pool:         pool,
		Introspector: introspector,
		Dialect:      handler,
		Config:       cfg,
		Logger:       logger,
	}, nil
}

func (db *DB) logger() *zap.Logger {
	if db.Logger == nil {
		return zap.NewNop()
	}
	return db.Logger
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	db.logger().Warn("Attempted to close a nil database connection pool")
	return nil
}

// LoadSchema reads tables and every table they reference. With no names, all
// base tables are read.
func (db *DB) LoadSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	if db.Introspector == nil {
		return nil, fmt.Errorf("introspector not initialized")
	}
	if len(tables) == 0 {
		all, err := db.Introspector.ListTables(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		tables = all
	}

	s := schema.New()
	seen := make(map[string]bool)
	queue := append([]string(nil), tables...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true

		t, err := db.loadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, t)
		for _, fk := range t.ForeignKeys {
			queue = append(queue, fk.ReferencedTable)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("introspected schema is invalid: %w", err)
	}
	db.logger().Debug("Loaded schema", zap.Int("tables", len(s.Tables)))
	return s, nil
}

func (db *DB) loadTable(ctx context.Context, name string) (*schema.Table, error) {
	columns, err := db.Introspector.ListColumns(ctx, db, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s: %w", name, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", name)
	}
	fks, err := db.Introspector.ListForeignKeys(ctx, db, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys for %s: %w", name, err)
	}
	uniques, err := db.Introspector.ListUniqueKeys(ctx, db, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list unique keys for %s: %w", name, err)
	}

	t := &schema.Table{Name: name}
	for _, c := range columns {
		t.Columns = append(t.Columns, schema.Column{
			Name:       c.Name,
			Type:       c.DataType,
			MaxLength:  c.MaxLength,
			Nullable:   c.Nullable,
			PrimaryKey: c.PrimaryKey,
			Identity:   c.Identity,
		})
	}
	for _, fk := range fks {
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
			Column:           fk.Column,
			ReferencedTable:  fk.ReferencedTable,
			ReferencedColumn: fk.ReferencedColumn,
		})
	}
	for _, uk := range uniques {
		if len(uk.Columns) == 1 {
			if c, ok := t.Column(uk.Columns[0]); ok {
				c.Unique = true
			}
			continue
		}
		t.UniqueKeys = append(t.UniqueKeys, uk.Columns)
	}
	return t, nil
}

// LoadRows reads up to limit rows of the given columns, highest values of
// the first column first. A limit <= 0 reads every row.
func (db *DB) LoadRows(ctx context.Context, tableName string, columns []string, limit int) ([][]any, error) {
	if db.Pool == nil || db.Dialect == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	if len(columns) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = db.Dialect.EscapeIdentifier(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC",
		strings.Join(quoted, ", "), db.Dialect.EscapeIdentifier(tableName), quoted[0])
	if limit > 0 {
		query += " " + db.Dialect.PaginationSyntax(0, limit)
	}

	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying rows of %s: %w", tableName, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("error scanning row of %s: %w", tableName, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of %s: %w", tableName, err)
	}
	return out, nil
}

// MaxValue returns the largest stored value of a column, or nil when the
// table is empty.
func (db *DB) MaxValue(ctx context.Context, tableName, column string) (any, error) {
	if db.Pool == nil || db.Dialect == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s",
		db.Dialect.EscapeIdentifier(column), db.Dialect.EscapeIdentifier(tableName))
	var v any
	if err := db.Pool.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return nil, fmt.Errorf("error reading largest %s of %s: %w", column, tableName, err)
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

// ExecuteSQLStatements runs the statements in one transaction, rolling back
// on the first failure.
func (db *DB) ExecuteSQLStatements(ctx context.Context, sqlStatements []string) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	if len(sqlStatements) == 0 {
		db.logger().Info("No SQL statements provided to ExecuteSQLStatements")
		return nil
	}

	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range sqlStatements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, trimmedStmt)
		if err != nil {
			db.logger().Error("Failed executing statement", zap.Int("index", i+1), zap.String("sql", trimmedStmt), zap.Error(err))
			return fmt.Errorf("failed executing statement #%d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
