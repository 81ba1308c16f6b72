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

// Package generator synthesizes rows across related tables so that a query's
// predicates match them while foreign keys and unique keys stay intact.
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/constraint"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/query"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
)

// Generator produces rows for one schema. It holds no per-call state and may
// be used concurrently.
type Generator struct {
	schema          *schema.Schema
	logger          *zap.Logger
	parser          *query.Parser
	supplier        ValueSupplier
	supplierTimeout time.Duration
	seed            int64
	expand          bool
}

// Option configures a Generator.
type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithSupplier sets the source of suggested string values.
func WithSupplier(s ValueSupplier) Option {
	return func(g *Generator) { g.supplier = s }
}

func WithSupplierTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.supplierTimeout = d
		}
	}
}

// WithSeed makes output reproducible for a given seed.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.seed = seed }
}

// WithPoolExpansion controls whether parent tables may get extra rows when a
// composite unique key needs more combinations. When disabled such requests
// fail with *UniqueSpaceError.
func WithPoolExpansion(enabled bool) Option {
	return func(g *Generator) { g.expand = enabled }
}

// WithParser sets the parser used on EXISTS and IN subqueries.
func WithParser(p *query.Parser) Option {
	return func(g *Generator) {
		if p != nil {
			g.parser = p
		}
	}
}

// New returns a Generator for s.
func New(s *schema.Schema, opts ...Option) *Generator {
	g := &Generator{
		schema:          s,
		logger:          zap.NewNop(),
		supplierTimeout: DefaultSupplierTimeout,
		seed:            1,
		expand:          true,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.parser == nil {
		g.parser = query.NewParser(query.WithLogger(g.logger))
	}
	return g
}

// Request describes one generation run.
type Request struct {
	Query       *query.QueryModel
	Constraints *constraint.ConstraintSet
	// RowCount is the number of rows for each table in the query's FROM and
	// JOIN clauses.
	RowCount int
	// Existing holds rows already stored, keyed by table name.
	Existing map[string][]Row
	// MaxKeys holds the largest stored value of integer key columns, keyed by
	// table and then column. Generated keys start above it even when
	// Existing holds only a sample of the stored rows.
	MaxKeys map[string]map[string]int64
}

// Result holds generated rows and the order they must be inserted in.
type Result struct {
	Order []string
	Rows  map[string][]Row
}

// RowsFor returns the rows generated for table.
func (r *Result) RowsFor(table string) []Row {
	for name, rows := range r.Rows {
		if strings.EqualFold(name, table) {
			return rows
		}
	}
	return nil
}

// All returns every generated row, parents before children.
func (r *Result) All() []Row {
	var all []Row
	for _, name := range r.Order {
		all = append(all, r.Rows[name]...)
	}
	return all
}

// Generate plans and produces rows for req.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.schema == nil {
		return nil, fmt.Errorf("generator has no schema")
	}
	if req.RowCount <= 0 {
		return nil, fmt.Errorf("row count must be positive, got %d", req.RowCount)
	}
	model := req.Query
	if model == nil {
		model = &query.QueryModel{}
	}

	var driving []*schema.Table
	for _, name := range model.TableNames() {
		t, ok := g.lookupTable(name)
		if !ok {
			g.logger.Warn("Query table not in schema", zap.String("table", name))
			continue
		}
		if !containsTable(driving, t) {
			driving = append(driving, t)
		}
	}
	if len(driving) == 0 {
		return nil, ErrNoTables
	}

	res := resolver{schema: g.schema, model: model, tables: driving, lookup: g.lookupTable, logger: g.logger}
	rules := ruleSet{}
	for _, c := range model.WhereConditions {
		rules.addCondition(res, c, false)
	}
	rules.addConstraints(res, req.Constraints)

	support, implicit := g.subqueryTables(model, req.Constraints, driving, rules)
	implicit = append(g.joinReferences(model, driving), implicit...)

	p, err := g.buildPlan(req, driving, support, implicit, rules)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(g.seed))
	result := &Result{Order: p.order, Rows: make(map[string][]Row, len(p.order))}
	for _, name := range p.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tg := newTableGen(ctx, g, rng, p, p.get(name), rules, result)
		rows, err := tg.run()
		if err != nil {
			return nil, err
		}
		result.Rows[name] = rows
		g.logger.Debug("Generated rows", zap.String("table", name), zap.Int("rows", len(rows)))
	}
	return result, nil
}

func containsTable(tables []*schema.Table, t *schema.Table) bool {
	for _, x := range tables {
		if strings.EqualFold(x.Name, t.Name) {
			return true
		}
	}
	return false
}

// lookupTable finds a table by name, dropping any schema qualifier and
// trying singular and plural forms.
func (g *Generator) lookupTable(name string) (*schema.Table, bool) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	for _, candidate := range []string{name, inflection.Singular(name), inflection.Plural(name)} {
		if t, ok := g.schema.Table(candidate); ok {
			return t, true
		}
	}
	return nil, false
}

// joinReferences turns join equalities that no foreign key declares into
// implicit references. The side holding the other table's primary key is
// the parent; otherwise the right side references the left.
func (g *Generator) joinReferences(model *query.QueryModel, driving []*schema.Table) []implicitRef {
	side := func(alias, table string) *schema.Table {
		if table == "" {
			table, _ = model.TableForAlias(alias)
		}
		t, ok := g.lookupTable(table)
		if !ok {
			return nil
		}
		return t
	}
	var refs []implicitRef
	for _, j := range model.JoinRequirements {
		lt, rt := side(j.LeftAlias, j.LeftTable), side(j.RightAlias, j.RightTable)
		if lt == nil || rt == nil || strings.EqualFold(lt.Name, rt.Name) {
			continue
		}
		lc, lok := lt.Column(j.LeftColumn)
		rc, rok := rt.Column(j.RightColumn)
		if !lok || !rok {
			continue
		}
		if declares(lt, lc.Name, rt, rc.Name) || declares(rt, rc.Name, lt, lc.Name) {
			continue
		}
		child, childCol, parent, parentCol := rt, rc.Name, lt, lc.Name
		if isSinglePK(rt, rc.Name) && !isSinglePK(lt, lc.Name) {
			child, childCol, parent, parentCol = lt, lc.Name, rt, rc.Name
		}
		if _, taken := child.ForeignKey(childCol); taken {
			child, childCol, parent, parentCol = parent, parentCol, child, childCol
			if _, taken := child.ForeignKey(childCol); taken {
				continue
			}
		}
		refs = append(refs, implicitRef{child: child.Name, ref: reference{
			column: childCol, parent: parent.Name, parentColumn: parentCol, implicit: true,
		}})
	}
	return refs
}

func declares(child *schema.Table, column string, parent *schema.Table, parentColumn string) bool {
	fk, ok := child.ForeignKey(column)
	return ok && strings.EqualFold(fk.ReferencedTable, parent.Name) && strings.EqualFold(fk.ReferencedColumn, parentColumn)
}

func isSinglePK(t *schema.Table, column string) bool {
	pk := t.PrimaryKey()
	return len(pk) == 1 && strings.EqualFold(pk[0], column)
}

var selectColumnRe = regexp.MustCompile(`(?is)^\s*SELECT\s+(?:DISTINCT\s+)?(?:[\w$]+\.)?([\w$]+)\s+FROM\b`)

// subqueryTables finds the tables named inside EXISTS and IN subqueries so
// they receive rows. Their own predicates become rules for those tables, and
// an IN subquery selecting one column turns the outer column into an
// implicit reference. NOT EXISTS adds nothing.
func (g *Generator) subqueryTables(model *query.QueryModel, cs *constraint.ConstraintSet, driving []*schema.Table, rules ruleSet) ([]*schema.Table, []implicitRef) {
	type inSub struct {
		alias, column, text string
	}
	var exists []string
	var ins []inSub
	seen := make(map[string]bool)
	addExists := func(text string) {
		if text != "" && !seen[text] {
			seen[text] = true
			exists = append(exists, text)
		}
	}
	for _, c := range model.WhereConditions {
		switch {
		case c.Operator == query.OpExists:
			addExists(c.Subquery)
		case c.Operator == query.OpIn && c.Subquery != "":
			ins = append(ins, inSub{c.Alias, c.Column, c.Subquery})
		}
	}
	if cs != nil {
		for _, e := range cs.ExistsConstraints() {
			if e.Type == constraint.ExistsCheck {
				addExists(e.Subquery)
			}
		}
		for _, in := range cs.InClauseConstraints() {
			if in.Type == constraint.Subquery && !in.Negated {
				ins = append(ins, inSub{in.Alias, in.Column, in.Subquery})
			}
		}
	}

	var support []*schema.Table
	var implicit []implicitRef
	outer := resolver{schema: g.schema, model: model, tables: driving, lookup: g.lookupTable, logger: g.logger}

	absorb := func(text string) (*query.QueryModel, []*schema.Table) {
		sub := g.parser.ParseQuery(text)
		var tables []*schema.Table
		for _, name := range sub.TableNames() {
			t, ok := g.lookupTable(name)
			if !ok {
				g.logger.Debug("Subquery table not in schema", zap.String("table", name))
				continue
			}
			tables = append(tables, t)
			if !containsTable(driving, t) && !containsTable(support, t) {
				support = append(support, t)
			}
		}
		only := make(map[string]bool)
		for _, t := range tables {
			if !containsTable(driving, t) {
				only[strings.ToLower(t.Name)] = true
			}
		}
		inner := resolver{schema: g.schema, model: sub, tables: tables, lookup: g.lookupTable, only: only, logger: g.logger}
		for _, c := range sub.WhereConditions {
			rules.addCondition(inner, c, true)
		}
		// Correlations such as o.user_id = u.id link a subquery table to an
		// outer one.
		for _, j := range sub.JoinRequirements {
			lt, lc, lok := inner.resolve(j.LeftAlias, j.LeftColumn)
			rt, rc, rok := outer.resolve(j.RightAlias, j.RightColumn)
			if !lok || !rok {
				lt, lc, lok = inner.resolve(j.RightAlias, j.RightColumn)
				rt, rc, rok = outer.resolve(j.LeftAlias, j.LeftColumn)
			}
			if lok && rok && !strings.EqualFold(lt.Name, rt.Name) {
				if _, declared := lt.ForeignKey(lc.Name); !declared {
					implicit = append(implicit, implicitRef{child: lt.Name, ref: reference{column: lc.Name, parent: rt.Name, parentColumn: rc.Name, implicit: true}})
				}
			}
		}
		return sub, tables
	}

	for _, text := range exists {
		absorb(text)
	}
	for _, in := range ins {
		_, tables := absorb(in.text)
		m := selectColumnRe.FindStringSubmatch(in.text)
		if m == nil || len(tables) != 1 {
			continue
		}
		parent := tables[0]
		pc, ok := parent.Column(m[1])
		if !ok {
			continue
		}
		ct, cc, ok := outer.resolve(in.alias, in.column)
		if !ok || strings.EqualFold(ct.Name, parent.Name) {
			continue
		}
		if _, declared := ct.ForeignKey(cc.Name); declared {
			continue
		}
		implicit = append(implicit, implicitRef{child: ct.Name, ref: reference{column: cc.Name, parent: parent.Name, parentColumn: pc.Name, implicit: true}})
	}
	return support, implicit
}
