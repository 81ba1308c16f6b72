package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/database"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSQLServerDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	handler, err := dialect.NewHandler(dialect.SQLServer)
	require.NoError(t, err)
	return &database.DB{
		Pool:         mockDb,
		Introspector: sqlServerIntrospector{},
		Dialect:      handler,
		Config:       config.DatabaseConfig{Dialect: "sqlserver"},
	}, mock
}

func TestSQLServerListForeignKeys(t *testing.T) {
	tests := []struct {
		name          string
		tableName     string
		expectedFKs   []database.ForeignKeyReference
		expectedError string
		mockSetup     func(sqlmock.Sqlmock)
	}{
		{
			name:      "Success with foreign keys found",
			tableName: "orders",
			expectedFKs: []database.ForeignKeyReference{
				{Column: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id", ConstraintName: "FK_orders_customers"},
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"column_name", "ref_table", "ref_column", "constraint_name"}).
					AddRow("customer_id", "customers", "id", "FK_orders_customers")
				mock.ExpectQuery(regexp.QuoteMeta(listForeignKeysQuery)).WithArgs(sql.Named("tableName", "orders")).WillReturnRows(rows)
			},
		},
		{
			name:      "No foreign keys found",
			tableName: "standalone_table",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"column_name", "ref_table", "ref_column", "constraint_name"})
				mock.ExpectQuery(regexp.QuoteMeta(listForeignKeysQuery)).WithArgs(sql.Named("tableName", "standalone_table")).WillReturnRows(rows)
			},
		},
		{
			name:          "Database query error",
			tableName:     "test_table",
			expectedError: "table test_table: error querying foreign keys: database connection failed",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(listForeignKeysQuery)).WithArgs(sql.Named("tableName", "test_table")).WillReturnError(errors.New("database connection failed"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockSQLServerDB(t)
			defer db.Close()
			tt.mockSetup(mock)

			fks, err := sqlServerIntrospector{}.ListForeignKeys(context.Background(), db, tt.tableName)
			if tt.expectedError != "" {
				assert.EqualError(t, err, tt.expectedError)
				assert.Nil(t, fks)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedFKs, fks)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLServerListColumns(t *testing.T) {
	db, mock := newMockSQLServerDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "CHARACTER_MAXIMUM_LENGTH", "identity", "pk"}).
		AddRow("id", "int", "NO", nil, true, true).
		AddRow("notes", "nvarchar", "YES", -1, false, false)
	mock.ExpectQuery(regexp.QuoteMeta(listColumnsQuery)).WithArgs(sql.Named("tableName", "orders")).WillReturnRows(rows)

	cols, err := sqlServerIntrospector{}.ListColumns(context.Background(), db, "orders")
	require.NoError(t, err)
	assert.Equal(t, []database.ColumnInfo{
		{Name: "id", DataType: "int", PrimaryKey: true, Identity: true},
		{Name: "notes", DataType: "nvarchar", Nullable: true},
	}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLServerListUniqueKeys(t *testing.T) {
	db, mock := newMockSQLServerDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(listUniqueKeysQuery)).WithArgs(sql.Named("tableName", "users")).WillReturnRows(
		sqlmock.NewRows([]string{"name", "name"}).AddRow("UQ_users_email", "email"))

	keys, err := sqlServerIntrospector{}.ListUniqueKeys(context.Background(), db, "users")
	require.NoError(t, err)
	assert.Equal(t, []database.UniqueKey{{Name: "UQ_users_email", Columns: []string{"email"}}}, keys)
}

func TestConnURL(t *testing.T) {
	got := connURL("sa", "p@ss:word", "db", 1433, "shop")
	assert.Equal(t, "sqlserver://sa:p%40ss%3Aword@db:1433?database=shop", got)
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"sqlserver", "mssql", "cloudsqlsqlserver"} {
		_, typ, err := database.GetIntrospector(name)
		require.NoError(t, err, name)
		assert.Equal(t, dialect.SQLServer, typ)
	}
}
