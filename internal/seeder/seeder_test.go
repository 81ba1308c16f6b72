package seeder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/generator"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSupplier struct {
	mock.Mock
}

func (m *mockSupplier) SuggestValues(ctx context.Context, req generator.SuggestionRequest) ([]string, error) {
	args := m.Called(ctx, req)
	values, _ := args.Get(0).([]string)
	return values, args.Error(1)
}

type fakeSource struct {
	schema *schema.Schema
	err    error
	calls  int
}

func (f *fakeSource) LoadSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	f.calls++
	return f.schema, f.err
}

type fakeRows struct {
	rows   map[string][][]any
	tables []string
	limits []int
}

func (f *fakeRows) LoadRows(ctx context.Context, table string, columns []string, limit int) ([][]any, error) {
	f.tables = append(f.tables, table)
	f.limits = append(f.limits, limit)
	return f.rows[table], nil
}

// fakeKeys also reports the largest stored key of each column.
type fakeKeys struct {
	fakeRows
	max map[string]any
}

func (f *fakeKeys) MaxValue(ctx context.Context, table, column string) (any, error) {
	return f.max[table+"."+column], nil
}

type fakeExecutor struct {
	statements []string
	err        error
}

func (f *fakeExecutor) ExecuteSQLStatements(ctx context.Context, statements []string) error {
	f.statements = statements
	return f.err
}

func crmSchema() *schema.Schema {
	return schema.New(
		&schema.Table{
			Name: "companies",
			Columns: []schema.Column{
				{Name: "id", Type: "INT", PrimaryKey: true},
				{Name: "name", Type: "VARCHAR(100)"},
			},
		},
		&schema.Table{
			Name: "users",
			Columns: []schema.Column{
				{Name: "id", Type: "INT", PrimaryKey: true},
				{Name: "company_id", Type: "INT"},
				{Name: "name", Type: "VARCHAR(60)"},
				{Name: "is_active", Type: "BOOLEAN"},
			},
			ForeignKeys: []schema.ForeignKey{{Column: "company_id", ReferencedTable: "companies", ReferencedColumn: "id"}},
		},
	)
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s, err := NewService(Config{Target: dialect.MySQL, DefaultRows: 2, Seed: 7, ExpandPools: true, ExistingRows: 1000}, opts...)
	require.NoError(t, err)
	return s
}

func tablesOf(statements []OrderedSQL) []string {
	out := make([]string, len(statements))
	for i, s := range statements {
		out[i] = s.Table
	}
	return out
}

func TestGenerateInsertSQLs(t *testing.T) {
	supplier := new(mockSupplier)
	supplier.On("SuggestValues", mock.Anything, mock.MatchedBy(func(r generator.SuggestionRequest) bool {
		return r.Table == "users" && r.Column == "name"
	})).Return([]string{"Ada Lovelace", "Grace Hopper"}, nil)

	s := newService(t, WithSchema(crmSchema()), WithSupplier(supplier))
	res, err := s.GenerateInsertSQLs(context.Background(), Request{
		SQL: "SELECT u.name FROM users u JOIN companies c ON u.company_id = c.id WHERE c.name LIKE 'Acme%' AND u.is_active = 1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"companies", "companies", "users", "users"}, tablesOf(res.Statements))
	assert.True(t, strings.HasPrefix(res.Statements[0].SQL, "INSERT INTO `companies` (`id`, `name`) VALUES (1, 'Acme"), res.Statements[0].SQL)
	for _, st := range res.Statements {
		assert.True(t, strings.HasSuffix(st.SQL, ";"), st.SQL)
	}
	users := res.Statements[2].SQL + res.Statements[3].SQL
	assert.Contains(t, users, "'Ada Lovelace'")
	assert.Contains(t, users, "'Grace Hopper'")
	assert.Greater(t, res.Constraints, 0)
	assert.NotEmpty(t, res.Strategy)
	assert.Len(t, res.SQLs(), 4)
	supplier.AssertExpectations(t)
}

func TestGenerateInsertSQLsUsesExistingRows(t *testing.T) {
	rows := &fakeRows{rows: map[string][][]any{
		"companies": {{"1", "Initech"}, {"2", "Globex"}},
	}}
	s := newService(t, WithSchema(crmSchema()), WithRowSource(rows))

	res, err := s.GenerateInsertSQLs(context.Background(), Request{SQL: "SELECT * FROM users WHERE company_id = 2", Rows: 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "users", "users"}, tablesOf(res.Statements))
	for _, st := range res.Statements {
		assert.Contains(t, st.SQL, "VALUES (")
	}
	assert.True(t, strings.HasPrefix(res.Statements[0].SQL, "INSERT INTO `users` (`id`, `company_id`, `name`, `is_active`) VALUES (1, 2, "), res.Statements[0].SQL)
	assert.ElementsMatch(t, []string{"users", "companies"}, rows.tables)
	assert.Equal(t, []int{1000, 1000}, rows.limits)
}

func TestGenerateInsertSQLsStartsAboveStoredKeys(t *testing.T) {
	rows := &fakeKeys{
		fakeRows: fakeRows{rows: map[string][][]any{
			"companies": {{"1000", "Initech"}, {"999", "Globex"}},
		}},
		max: map[string]any{"companies.id": []byte("1500")},
	}
	s := newService(t, WithSchema(crmSchema()), WithRowSource(rows))

	res, err := s.GenerateInsertSQLs(context.Background(), Request{SQL: "SELECT * FROM companies", Rows: 2})
	require.NoError(t, err)

	require.Len(t, res.Statements, 2)
	assert.Contains(t, res.Statements[0].SQL, "VALUES (1501, ")
	assert.Contains(t, res.Statements[1].SQL, "VALUES (1502, ")
}

func TestSchemaSourceIsCached(t *testing.T) {
	src := &fakeSource{schema: crmSchema()}
	s := newService(t, WithSchemaSource(src))

	for i := 0; i < 2; i++ {
		_, err := s.GenerateInsertSQLs(context.Background(), Request{SQL: "SELECT * FROM companies"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.calls)
}

func TestGenerateInsertSQLsErrors(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		ctx    func() context.Context
		req    Request
		target any
	}{
		{
			name:   "Empty query",
			opts:   []Option{WithSchema(crmSchema())},
			req:    Request{SQL: "   "},
			target: new(*ErrInvalidInput),
		},
		{
			name:   "Negative rows",
			opts:   []Option{WithSchema(crmSchema())},
			req:    Request{SQL: "SELECT * FROM users", Rows: -1},
			target: new(*ErrInvalidInput),
		},
		{
			name:   "Schema source failure",
			opts:   []Option{WithSchemaSource(&fakeSource{err: errors.New("connection refused")})},
			req:    Request{SQL: "SELECT * FROM users"},
			target: new(*ErrDatabaseConnection),
		},
		{
			name: "Cancelled",
			opts: []Option{WithSchema(crmSchema())},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			req:    Request{SQL: "SELECT * FROM users"},
			target: new(*ErrCancelled),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			_, err := newService(t, tt.opts...).GenerateInsertSQLs(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "got %T: %v", err, err)
		})
	}

	t.Run("Unknown tables", func(t *testing.T) {
		_, err := newService(t, WithSchema(crmSchema())).GenerateInsertSQLs(context.Background(), Request{SQL: "SELECT * FROM invoices"})
		assert.ErrorIs(t, err, generator.ErrNoTables)
	})
}

func TestGenerateBatch(t *testing.T) {
	s := newService(t, WithSchema(crmSchema()))

	results, err := s.GenerateBatch(context.Background(), []Request{
		{SQL: "SELECT * FROM companies", Rows: 1},
		{SQL: "SELECT * FROM users u JOIN companies c ON u.company_id = c.id", Rows: 2},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"companies"}, tablesOf(results[0].Statements))
	assert.Equal(t, []string{"companies", "companies", "users", "users"}, tablesOf(results[1].Statements))

	_, err = s.GenerateBatch(context.Background(), []Request{{SQL: "SELECT * FROM users"}, {SQL: ""}})
	assert.ErrorContains(t, err, "query #2")
}

func TestApply(t *testing.T) {
	s := newService(t, WithSchema(crmSchema()))
	statements := []OrderedSQL{{SQL: "INSERT INTO `companies` (`id`) VALUES (1);", Table: "companies"}}

	exec := &fakeExecutor{}
	require.NoError(t, s.Apply(context.Background(), exec, statements))
	assert.Equal(t, []string{"INSERT INTO `companies` (`id`) VALUES (1);"}, exec.statements)

	dbErr := errors.New("duplicate entry")
	err := s.Apply(context.Background(), &fakeExecutor{err: dbErr}, statements)
	var execErr *ErrQueryExecution
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, dbErr)
	assert.EqualError(t, err, "query execution error: applying statements: duplicate entry")

	var inputErr *ErrInvalidInput
	assert.ErrorAs(t, s.Apply(context.Background(), nil, statements), &inputErr)
}

func TestNewService(t *testing.T) {
	_, err := NewService(Config{Target: dialect.MySQL})
	var inputErr *ErrInvalidInput
	assert.ErrorAs(t, err, &inputErr)

	_, err = NewService(Config{Target: "db2"}, WithSchema(crmSchema()))
	assert.ErrorIs(t, err, dialect.ErrNotSupported)

	cfg, err := ConfigFrom(config.GenerationConfig{Target: "mssql", Rows: 5, Seed: 3, ExistingRows: 10})
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLServer, cfg.Target)
	s, err := NewService(cfg, WithSchema(crmSchema()))
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLServer, s.Target())

	_, err = ConfigFrom(config.GenerationConfig{Target: "db2"})
	assert.ErrorIs(t, err, dialect.ErrNotSupported)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		typ  string
		in   any
		want any
	}{
		{"INT", "42", int64(42)},
		{"INT", []byte("7"), int64(7)},
		{"DECIMAL(10,2)", "10.50", 10.5},
		{"tinyint(1)", "1", true},
		{"VARCHAR(20)", []byte("abc"), "abc"},
		{"INT", nil, nil},
		{"INT", "n/a", "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			c := &schema.Column{Name: "c", Type: tt.typ}
			assert.Equal(t, tt.want, normalize(c, tt.in))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	inner := errors.New("boom")
	assert.EqualError(t, &ErrTimeout{Msg: "loading schema", Err: inner}, "timeout error: loading schema: boom")
	assert.EqualError(t, &ErrInvalidInput{Msg: "query is empty"}, "invalid input error: query is empty")
	assert.ErrorIs(t, &ErrDatabaseConnection{Msg: "x", Err: inner}, inner)
	assert.ErrorIs(t, contextError("x", context.DeadlineExceeded), context.DeadlineExceeded)
	assert.Equal(t, inner, contextError("x", inner))
}
