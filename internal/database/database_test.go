package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIntrospector serves metadata from maps keyed by table name.
type fakeIntrospector struct {
	pool    *sql.DB
	tables  []string
	columns map[string][]ColumnInfo
	fks     map[string][]ForeignKeyReference
	uniques map[string][]UniqueKey
	calls   map[string]int
}

func (f *fakeIntrospector) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, errors.New("cloud sql not available in tests")
}

func (f *fakeIntrospector) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return f.pool, nil
}

func (f *fakeIntrospector) ListTables(ctx context.Context, db *DB) ([]string, error) {
	return f.tables, nil
}

func (f *fakeIntrospector) ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[tableName]++
	return f.columns[tableName], nil
}

func (f *fakeIntrospector) ListForeignKeys(ctx context.Context, db *DB, tableName string) ([]ForeignKeyReference, error) {
	return f.fks[tableName], nil
}

func (f *fakeIntrospector) ListUniqueKeys(ctx context.Context, db *DB, tableName string) ([]UniqueKey, error) {
	return f.uniques[tableName], nil
}

func shopIntrospector() *fakeIntrospector {
	id := ColumnInfo{Name: "id", DataType: "int", PrimaryKey: true, Identity: true}
	return &fakeIntrospector{
		tables: []string{"companies", "users", "orders"},
		columns: map[string][]ColumnInfo{
			"companies": {id, {Name: "name", DataType: "varchar(100)", MaxLength: 100}},
			"users": {id, {Name: "company_id", DataType: "int"}, {Name: "email", DataType: "varchar(255)", MaxLength: 255},
				{Name: "first_name", DataType: "varchar(40)"}, {Name: "last_name", DataType: "varchar(40)"}},
			"orders": {id, {Name: "user_id", DataType: "int"}, {Name: "placed_at", DataType: "datetime", Nullable: true}},
		},
		fks: map[string][]ForeignKeyReference{
			"users":  {{Column: "company_id", ReferencedTable: "companies", ReferencedColumn: "id", ConstraintName: "fk_users_company"}},
			"orders": {{Column: "user_id", ReferencedTable: "users", ReferencedColumn: "id", ConstraintName: "fk_orders_user"}},
		},
		uniques: map[string][]UniqueKey{
			"users": {{Name: "uq_email", Columns: []string{"email"}}, {Name: "uq_name", Columns: []string{"first_name", "last_name"}}},
		},
	}
}

func TestLoadSchema(t *testing.T) {
	t.Run("Follows references", func(t *testing.T) {
		fake := shopIntrospector()
		db := &DB{Introspector: fake}

		s, err := db.LoadSchema(context.Background(), []string{"orders"})
		require.NoError(t, err)
		require.Len(t, s.Tables, 3)
		assert.Equal(t, "orders", s.Tables[0].Name)

		users, ok := s.Table("users")
		require.True(t, ok)
		assert.True(t, users.IsUnique("email"))
		assert.Equal(t, [][]string{{"first_name", "last_name"}}, users.UniqueKeys)
		fk, ok := users.ForeignKey("company_id")
		require.True(t, ok)
		assert.Equal(t, "companies", fk.ReferencedTable)

		orders, _ := s.Table("orders")
		placed, _ := orders.Column("placed_at")
		assert.True(t, placed.Nullable)
		assert.Equal(t, 1, fake.calls["users"])
	})

	t.Run("All tables", func(t *testing.T) {
		s, err := (&DB{Introspector: shopIntrospector()}).LoadSchema(context.Background(), nil)
		require.NoError(t, err)
		assert.Len(t, s.Tables, 3)
	})

	t.Run("Unknown table", func(t *testing.T) {
		_, err := (&DB{Introspector: shopIntrospector()}).LoadSchema(context.Background(), []string{"missing"})
		assert.EqualError(t, err, "table missing not found or has no columns")
	})

	t.Run("No introspector", func(t *testing.T) {
		_, err := (&DB{}).LoadSchema(context.Background(), nil)
		assert.Error(t, err)
	})
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	handler, err := dialect.NewHandler(dialect.MySQL)
	require.NoError(t, err)
	return &DB{Pool: pool, Dialect: handler}, mock
}

func TestLoadRows(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name` FROM `companies` ORDER BY `id` DESC LIMIT 5")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(2), []byte("Initech")).
			AddRow(int64(1), nil))

	rows, err := db.LoadRows(context.Background(), "companies", []string{"id", "name"}, 5)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2), "Initech"}, {int64(1), nil}}, rows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `companies` ORDER BY `id` DESC")).
		WillReturnError(errors.New("boom"))
	_, err = db.LoadRows(context.Background(), "companies", []string{"id"}, 0)
	assert.ErrorContains(t, err, "error querying rows of companies: boom")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxValue(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		err     error
		want    any
		wantErr string
	}{
		{name: "Integer", rows: sqlmock.NewRows([]string{"max"}).AddRow(int64(1500)), want: int64(1500)},
		{name: "Bytes", rows: sqlmock.NewRows([]string{"max"}).AddRow([]byte("1500")), want: "1500"},
		{name: "Empty table", rows: sqlmock.NewRows([]string{"max"}).AddRow(nil), want: nil},
		{name: "Error", err: errors.New("boom"), wantErr: "error reading largest id of companies: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			defer db.Close()
			expect := mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(`id`) FROM `companies`"))
			if tt.err != nil {
				expect.WillReturnError(tt.err)
			} else {
				expect.WillReturnRows(tt.rows)
			}

			got, err := db.MaxValue(context.Background(), "companies", "id")
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecuteSQLStatements(t *testing.T) {
	t.Run("Commits", func(t *testing.T) {
		db, mock := newMockDB(t)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `companies` (`id`) VALUES (1);")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `companies` (`id`) VALUES (2);")).WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		err := db.ExecuteSQLStatements(context.Background(), []string{
			"INSERT INTO `companies` (`id`) VALUES (1);",
			"  ",
			"INSERT INTO `companies` (`id`) VALUES (2);",
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls back", func(t *testing.T) {
		db, mock := newMockDB(t)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectExec("INSERT").WillReturnError(errors.New("duplicate key"))
		mock.ExpectRollback()

		err := db.ExecuteSQLStatements(context.Background(), []string{"INSERT INTO t VALUES (1)"})
		assert.EqualError(t, err, "failed executing statement #1: duplicate key")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing to do", func(t *testing.T) {
		db, mock := newMockDB(t)
		defer db.Close()
		assert.NoError(t, db.ExecuteSQLStatements(context.Background(), nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNew(t *testing.T) {
	pool, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	RegisterIntrospector(dialect.Oracle, &fakeIntrospector{pool: pool})

	db, err := New(context.Background(), config.DatabaseConfig{Dialect: "Oracle"}, nil)
	require.NoError(t, err)
	assert.Equal(t, dialect.Oracle, db.Dialect.Type())
	assert.Contains(t, RegisteredDialects(), "oracle")
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = New(context.Background(), config.DatabaseConfig{Dialect: "db2"}, nil)
	assert.ErrorIs(t, err, dialect.ErrNotSupported)
}
