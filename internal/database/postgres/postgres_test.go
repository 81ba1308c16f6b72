package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/database"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create a mock DB for testing
func newMockPostgresDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	handler, err := dialect.NewHandler(dialect.PostgreSQL)
	require.NoError(t, err)
	return &database.DB{
		Pool:         mockDb,
		Introspector: postgresIntrospector{},
		Dialect:      handler,
		Config:       config.DatabaseConfig{Dialect: "postgres"},
	}, mock
}

func TestPostgresListTables(t *testing.T) {
	db, mock := newMockPostgresDB(t)
	defer db.Close()
	h := postgresIntrospector{}
	expectedQuery := regexp.QuoteMeta(listTablesQuery)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_name"}).
			AddRow("users").
			AddRow("products")
		mock.ExpectQuery(expectedQuery).WillReturnRows(rows)

		tables, err := h.ListTables(context.Background(), db)
		if err != nil {
			t.Fatalf("ListTables() unexpected error: %v", err)
		}
		if len(tables) != 2 || tables[0] != "users" || tables[1] != "products" {
			t.Errorf("ListTables() got %v, want [users products]", tables)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("connection failed")
		mock.ExpectQuery(expectedQuery).WillReturnError(dbError)

		_, err := h.ListTables(context.Background(), db)
		if !errors.Is(err, dbError) {
			t.Errorf("ListTables() got error %v, want error containing %v", err, dbError)
		}
	})

	t.Run("Scan Error", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_name"}).
			AddRow("users").
			AddRow(nil)
		mock.ExpectQuery(expectedQuery).WillReturnRows(rows)

		if _, err := h.ListTables(context.Background(), db); err == nil {
			t.Fatalf("ListTables() expected scan error, got nil")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListColumns(t *testing.T) {
	db, mock := newMockPostgresDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "character_maximum_length", "identity", "pk"}).
		AddRow("id", "integer", "NO", nil, true, true).
		AddRow("name", "character varying", "NO", 100, false, false).
		AddRow("created_at", "timestamp without time zone", "YES", nil, false, false)
	mock.ExpectQuery(regexp.QuoteMeta(listColumnsQuery)).WithArgs("companies").WillReturnRows(rows)

	got, err := postgresIntrospector{}.ListColumns(context.Background(), db, "companies")
	require.NoError(t, err)
	assert.Equal(t, []database.ColumnInfo{
		{Name: "id", DataType: "integer", PrimaryKey: true, Identity: true},
		{Name: "name", DataType: "character varying", MaxLength: 100},
		{Name: "created_at", DataType: "timestamp without time zone", Nullable: true},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListKeys(t *testing.T) {
	db, mock := newMockPostgresDB(t)
	defer db.Close()
	h := postgresIntrospector{}

	mock.ExpectQuery(regexp.QuoteMeta(listForeignKeysQuery)).WithArgs("user_roles").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "table_name", "column_name", "constraint_name"}).
			AddRow("role_id", "roles", "id", "user_roles_role_id_fkey").
			AddRow("user_id", "users", "id", "user_roles_user_id_fkey"))
	mock.ExpectQuery(regexp.QuoteMeta(listUniqueKeysQuery)).WithArgs("user_roles").WillReturnRows(
		sqlmock.NewRows([]string{"constraint_name", "column_name"}).
			AddRow("user_roles_user_id_role_id_key", "user_id").
			AddRow("user_roles_user_id_role_id_key", "role_id"))

	fks, err := h.ListForeignKeys(context.Background(), db, "user_roles")
	require.NoError(t, err)
	require.Len(t, fks, 2)
	assert.Equal(t, "roles", fks[0].ReferencedTable)
	assert.Equal(t, "user_id", fks[1].Column)

	keys, err := h.ListUniqueKeys(context.Background(), db, "user_roles")
	require.NoError(t, err)
	assert.Equal(t, []database.UniqueKey{{Name: "user_roles_user_id_role_id_key", Columns: []string{"user_id", "role_id"}}}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnString(t *testing.T) {
	s := ConnString(config.DatabaseConfig{Host: "localhost", User: "seed", Password: "pw", DBName: "shop"})
	assert.Equal(t, "host=localhost port=5432 user=seed password=pw dbname=shop sslmode=disable", s)

	parsed, err := pgx.ParseConfig(s)
	require.NoError(t, err)
	assert.Equal(t, uint16(5432), parsed.Port)
	assert.Equal(t, "shop", parsed.Database)
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"postgres", "postgresql", "cloudsqlpostgres"} {
		_, typ, err := database.GetIntrospector(name)
		require.NoError(t, err, name)
		assert.Equal(t, dialect.PostgreSQL, typ)
	}
}
