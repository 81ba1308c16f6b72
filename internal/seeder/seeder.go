package seeder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/config"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/constraint"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/generator"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/query"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// SchemaSource loads table definitions. With no names every table is loaded.
type SchemaSource interface {
	LoadSchema(ctx context.Context, tables []string) (*schema.Schema, error)
}

// RowSource reads rows already stored in a table.
type RowSource interface {
	LoadRows(ctx context.Context, table string, columns []string, limit int) ([][]any, error)
}

// KeySource reports the largest stored value of a column. A RowSource that
// also implements it lets generated keys start above every stored key, not
// only above the rows read.
type KeySource interface {
	MaxValue(ctx context.Context, table, column string) (any, error)
}

// Executor applies statements atomically.
type Executor interface {
	ExecuteSQLStatements(ctx context.Context, statements []string) error
}

// Config holds the generation defaults of a Service.
type Config struct {
	Target          dialect.DatabaseType
	DefaultRows     int
	Seed            int64
	ExpandPools     bool
	SupplierTimeout time.Duration
	// ExistingRows caps the rows read per table from the RowSource. Zero
	// disables reading.
	ExistingRows int
	// Concurrency bounds GenerateBatch.
	Concurrency int
	// Tables restricts schema loading. Tables they reference are always
	// loaded.
	Tables []string
}

// ConfigFrom maps the generation section of the application config.
func ConfigFrom(c config.GenerationConfig) (Config, error) {
	target, err := dialect.ParseDatabaseType(c.Target)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Target:          target,
		DefaultRows:     c.Rows,
		Seed:            c.Seed,
		ExpandPools:     c.ExpandPools,
		SupplierTimeout: c.SupplierTimeout,
		ExistingRows:    c.ExistingRows,
	}, nil
}

// Service turns SQL queries into INSERT statements for one target dialect.
type Service struct {
	cfg       Config
	handler   dialect.Handler
	parser    *query.Parser
	extractor *constraint.Extractor
	source    SchemaSource
	rows      RowSource
	supplier  generator.ValueSupplier
	logger    *zap.Logger

	mu     sync.Mutex
	schema *schema.Schema
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSchema uses a fixed schema instead of a SchemaSource.
func WithSchema(sch *schema.Schema) Option {
	return func(s *Service) { s.schema = sch }
}

// WithSchemaSource loads the schema on first use. The result is cached.
func WithSchemaSource(src SchemaSource) Option {
	return func(s *Service) { s.source = src }
}

// WithRowSource reads existing rows so generated keys avoid them and
// references can point at them.
func WithRowSource(r RowSource) Option {
	return func(s *Service) { s.rows = r }
}

func WithSupplier(v generator.ValueSupplier) Option {
	return func(s *Service) { s.supplier = v }
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	handler, err := dialect.NewHandler(cfg.Target)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultRows <= 0 {
		cfg.DefaultRows = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	s := &Service{cfg: cfg, handler: handler, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.schema == nil && s.source == nil {
		return nil, &ErrInvalidInput{Msg: "a schema or a schema source is required"}
	}
	s.parser = query.NewParser(query.WithLogger(s.logger))
	s.extractor = constraint.NewExtractor(constraint.WithLogger(s.logger))
	return s, nil
}

// Target returns the dialect statements are rendered for.
func (s *Service) Target() dialect.DatabaseType {
	return s.handler.Type()
}

// GenerateInsertSQLs parses req.SQL, generates rows satisfying it and renders
// them as INSERT statements, parents before children.
func (s *Service) GenerateInsertSQLs(ctx context.Context, req Request) (*Result, error) {
	sqlText := strings.TrimSpace(req.SQL)
	if sqlText == "" {
		return nil, &ErrInvalidInput{Msg: "query is empty"}
	}
	rows := req.Rows
	if rows < 0 {
		return nil, &ErrInvalidInput{Msg: fmt.Sprintf("row count must not be negative, got %d", rows)}
	}
	if rows == 0 {
		rows = s.cfg.DefaultRows
	}

	startTime := time.Now()
	model := s.parser.ParseQuery(sqlText)
	constraints := s.extractor.ExtractAllConstraints(sqlText)
	s.logger.Debug("Parsed query",
		zap.String("strategy", model.Strategy),
		zap.Strings("tables", model.TableNames()),
		zap.Int("constraints", constraints.TotalCount()))

	sch, err := s.loadSchema(ctx)
	if err != nil {
		return nil, err
	}
	existing, maxKeys, err := s.loadExisting(ctx, sch, model.TableNames())
	if err != nil {
		return nil, err
	}

	opts := []generator.Option{
		generator.WithLogger(s.logger),
		generator.WithSeed(s.cfg.Seed),
		generator.WithPoolExpansion(s.cfg.ExpandPools),
		generator.WithSupplierTimeout(s.cfg.SupplierTimeout),
		generator.WithParser(s.parser),
	}
	if s.supplier != nil {
		opts = append(opts, generator.WithSupplier(s.supplier))
	}
	generated, err := generator.New(sch, opts...).Generate(ctx, generator.Request{
		Query:       model,
		Constraints: constraints,
		RowCount:    rows,
		Existing:    existing,
		MaxKeys:     maxKeys,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError("generating rows", err)
		}
		return nil, fmt.Errorf("generating rows: %w", err)
	}

	statements, err := s.render(sch, generated)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Generated insert statements",
		zap.Int("statements", len(statements)),
		zap.Strings("order", generated.Order),
		zap.Duration("elapsed", time.Since(startTime)))

	return &Result{
		Statements:  statements,
		Strategy:    model.Strategy,
		Constraints: constraints.TotalCount(),
		Rows:        generated,
	}, nil
}

// GenerateBatch runs independent requests concurrently. Results keep the
// order of reqs. The first failure cancels the remaining requests.
func (s *Service) GenerateBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := s.GenerateInsertSQLs(gctx, req)
			if err != nil {
				return fmt.Errorf("query #%d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Apply executes statements through exec in one transaction.
func (s *Service) Apply(ctx context.Context, exec Executor, statements []OrderedSQL) error {
	if exec == nil {
		return &ErrInvalidInput{Msg: "no database to apply statements to"}
	}
	sqls := make([]string, len(statements))
	for i, st := range statements {
		sqls[i] = st.SQL
	}
	if err := exec.ExecuteSQLStatements(ctx, sqls); err != nil {
		if ctx.Err() != nil {
			return contextError("applying statements", err)
		}
		return &ErrQueryExecution{Msg: "applying statements", Err: err}
	}
	s.logger.Info("Applied insert statements", zap.Int("statements", len(sqls)))
	return nil
}

func (s *Service) loadSchema(ctx context.Context) (*schema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema != nil {
		return s.schema, nil
	}
	sch, err := s.source.LoadSchema(ctx, s.cfg.Tables)
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError("loading schema", err)
		}
		return nil, &ErrDatabaseConnection{Msg: "loading schema", Err: err}
	}
	s.schema = sch
	return sch, nil
}

// loadExisting reads rows of the query tables and every table they
// reference, with the largest stored value of their integer key columns.
func (s *Service) loadExisting(ctx context.Context, sch *schema.Schema, tables []string) (map[string][]generator.Row, map[string]map[string]int64, error) {
	if s.rows == nil || s.cfg.ExistingRows <= 0 {
		return nil, nil, nil
	}
	keys, _ := s.rows.(KeySource)
	existing := make(map[string][]generator.Row)
	maxKeys := make(map[string]map[string]int64)
	for _, name := range sch.Closure(tables) {
		t, _ := sch.Table(name)
		columns := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			columns[i] = c.Name
		}
		data, err := s.rows.LoadRows(ctx, t.Name, columns, s.cfg.ExistingRows)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, contextError("reading existing rows", err)
			}
			return nil, nil, &ErrDatabaseConnection{Msg: fmt.Sprintf("reading rows of %s", t.Name), Err: err}
		}
		rows := make([]generator.Row, 0, len(data))
		for _, values := range data {
			row := generator.Row{Table: t.Name, Values: make([]generator.ColumnValue, 0, len(values))}
			for i, v := range values {
				if i >= len(t.Columns) {
					break
				}
				row.Values = append(row.Values, generator.ColumnValue{Column: t.Columns[i].Name, Value: normalize(&t.Columns[i], v)})
			}
			rows = append(rows, row)
		}
		existing[t.Name] = rows
		s.logger.Debug("Read existing rows", zap.String("table", t.Name), zap.Int("rows", len(rows)))

		if keys == nil {
			continue
		}
		for i := range t.Columns {
			c := &t.Columns[i]
			if c.Kind() != schema.KindInteger || !t.IsUnique(c.Name) {
				continue
			}
			v, err := keys.MaxValue(ctx, t.Name, c.Name)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, contextError("reading existing keys", err)
				}
				return nil, nil, &ErrDatabaseConnection{Msg: fmt.Sprintf("reading keys of %s", t.Name), Err: err}
			}
			if n, ok := keyValue(normalize(c, v)); ok {
				if maxKeys[t.Name] == nil {
					maxKeys[t.Name] = make(map[string]int64)
				}
				maxKeys[t.Name][c.Name] = n
			}
		}
	}
	return existing, maxKeys, nil
}

func keyValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

// normalize converts driver text values to the Go type used for the
// column's kind.
func normalize(c *schema.Column, v any) any {
	if b, ok := v.([]byte); ok && c.Kind() != schema.KindBinary {
		v = string(b)
	}
	str, ok := v.(string)
	if !ok {
		return v
	}
	str = strings.TrimSpace(str)
	switch c.Kind() {
	case schema.KindInteger:
		if n, err := strconv.ParseInt(str, 10, 64); err == nil {
			return n
		}
	case schema.KindDecimal:
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return f
		}
	case schema.KindBoolean:
		if b, err := strconv.ParseBool(str); err == nil {
			return b
		}
	}
	return v
}

func (s *Service) render(sch *schema.Schema, res *generator.Result) ([]OrderedSQL, error) {
	var statements []OrderedSQL
	for _, name := range res.Order {
		t, ok := sch.Table(name)
		if !ok {
			return nil, fmt.Errorf("generated rows for unknown table %s", name)
		}
		for _, row := range res.Rows[name] {
			stmt, err := dialect.BuildInsert(s.handler, t, row.Columns(), row.Slice())
			if err != nil {
				return nil, err
			}
			statements = append(statements, OrderedSQL{SQL: stmt + ";", Table: t.Name})
		}
	}
	return statements, nil
}
