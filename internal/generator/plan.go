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
package generator

import (
	"math"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/constraint"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"go.uber.org/zap"
)

// reference links a column to the parent column its values are drawn from.
type reference struct {
	column       string
	parent       string
	parentColumn string
	// implicit references come from joins or IN subqueries rather than
	// declared foreign keys.
	implicit bool
}

func (r reference) self(table string) bool {
	return strings.EqualFold(r.parent, table)
}

type implicitRef struct {
	child string
	ref   reference
}

type tablePlan struct {
	table *schema.Table
	// driving tables appear in the query's FROM and JOIN clauses.
	driving bool
	// support tables appear only inside EXISTS or IN subqueries.
	support  bool
	count    int
	existing []Row
	// usable counts the existing rows that satisfy the rules on the table.
	usable  int
	maxKeys map[string]int64
	refs    []reference
	// planned is set once count is final.
	planned bool
}

func (tp *tablePlan) ref(column string) (reference, bool) {
	for _, r := range tp.refs {
		if strings.EqualFold(r.column, column) {
			return r, true
		}
	}
	return reference{}, false
}

func (tp *tablePlan) maxKey(column string) (int64, bool) {
	v, ok := tp.maxKeys[strings.ToLower(column)]
	return v, ok
}

type plan struct {
	order    []string
	tables   map[string]*tablePlan
	rowCount int
}

func (p *plan) get(name string) *tablePlan {
	return p.tables[strings.ToLower(name)]
}

// poolSize is the number of parent rows a child may reference through r.
// Rows of a driving parent that existed before generation are not used,
// since they need not satisfy the query's predicates.
func (p *plan) poolSize(r reference, need map[string]int) int {
	pp := p.get(r.parent)
	if pp == nil {
		return 0
	}
	if n, ok := need[strings.ToLower(pp.table.Name)]; ok {
		return n
	}
	return p.basePool(pp)
}

// basePool is the pool a parent offers before any expansion.
func (p *plan) basePool(pp *tablePlan) int {
	switch {
	case pp.driving:
		return pp.count
	case pp.planned:
		return pp.usable + pp.count
	case pp.usable == 0 || pp.support:
		return pp.usable + p.rowCount
	}
	return pp.usable
}

func lookupRows(existing map[string][]Row, table string) []Row {
	for name, rows := range existing {
		if strings.EqualFold(name, table) {
			return rows
		}
	}
	return nil
}

func lookupMaxKeys(maxKeys map[string]map[string]int64, table string) map[string]int64 {
	var out map[string]int64
	for name, cols := range maxKeys {
		if !strings.EqualFold(name, table) {
			continue
		}
		if out == nil {
			out = make(map[string]int64, len(cols))
		}
		for col, v := range cols {
			out[strings.ToLower(col)] = v
		}
	}
	return out
}

// buildPlan decides which tables get rows, in which order and how many.
func (g *Generator) buildPlan(req Request, driving, support []*schema.Table, implicit []implicitRef, rules ruleSet) (*plan, error) {
	p := &plan{tables: make(map[string]*tablePlan), rowCount: req.RowCount}

	var roots []string
	for _, t := range driving {
		roots = append(roots, t.Name)
	}
	for _, t := range support {
		roots = append(roots, t.Name)
	}
	names := g.schema.Closure(roots)
	for _, name := range names {
		t, _ := g.schema.Table(name)
		tp := &tablePlan{table: t, existing: lookupRows(req.Existing, t.Name), maxKeys: lookupMaxKeys(req.MaxKeys, t.Name)}
		for _, fk := range t.ForeignKeys {
			tp.refs = append(tp.refs, reference{column: fk.Column, parent: canonical(g.schema, fk.ReferencedTable), parentColumn: fk.ReferencedColumn})
		}
		p.tables[strings.ToLower(t.Name)] = tp
	}
	for _, t := range driving {
		tp := p.get(t.Name)
		tp.driving = true
		tp.planned = true
		tp.count = req.RowCount
	}
	for _, t := range support {
		if tp := p.get(t.Name); !tp.driving {
			tp.support = true
		}
	}

	// Implicit references that would close a cycle are dropped.
	var edges []schema.Edge
	for _, ir := range implicit {
		tp := p.get(ir.child)
		if tp == nil || p.get(ir.ref.parent) == nil {
			continue
		}
		if _, taken := tp.ref(ir.ref.column); taken {
			continue
		}
		candidate := append(append([]schema.Edge(nil), edges...), schema.Edge{Child: tp.table.Name, Parent: ir.ref.parent})
		if _, err := g.schema.DependencyOrder(names, candidate); err != nil {
			g.logger.Debug("Skipping implicit reference that would form a cycle",
				zap.String("table", tp.table.Name), zap.String("column", ir.ref.column), zap.String("parent", ir.ref.parent))
			continue
		}
		edges = candidate
		tp.refs = append(tp.refs, ir.ref)
	}

	order, err := g.schema.DependencyOrder(names, edges)
	if err != nil {
		return nil, err
	}
	p.order = order

	g.propagateRules(p, rules)
	for _, tp := range p.tables {
		tp.usable = usableRows(tp, rules)
	}
	if err := g.assignCounts(p, rules); err != nil {
		return nil, err
	}
	if err := g.checkCapacity(p, rules); err != nil {
		return nil, err
	}
	return p, nil
}

func canonical(s *schema.Schema, name string) string {
	if t, ok := s.Table(name); ok {
		return t.Name
	}
	return name
}

// propagateRules copies the value restrictions on reference columns to the
// parent columns they point at, so parents get keys the children may use.
// Children are visited before parents, so restrictions travel along chains
// of references. A query table only takes a restriction all its rows can
// meet.
func (g *Generator) propagateRules(p *plan, rules ruleSet) {
	for i := len(p.order) - 1; i >= 0; i-- {
		tp := p.get(p.order[i])
		for _, ref := range tp.refs {
			if ref.self(tp.table.Name) {
				continue
			}
			cr := rules.get(tp.table.Name, ref.column)
			if !cr.restrictsValues() {
				continue
			}
			pp := p.get(ref.parent)
			pc, ok := pp.table.Column(ref.parentColumn)
			if !ok {
				continue
			}
			narrowed := rules.get(pp.table.Name, pc.Name).narrowedBy(cr)
			if pp.driving && pp.table.IsUnique(pc.Name) && columnCapacity(pc, narrowed) < pp.count {
				g.logger.Debug("Query table cannot take reference predicates on every row",
					zap.String("table", pp.table.Name), zap.String("column", pc.Name))
				continue
			}
			*rules.rule(pp.table.Name, pc.Name) = *narrowed
		}
	}
}

// usableRows counts the existing rows of tp that satisfy every rule on its
// columns.
func usableRows(tp *tablePlan, rules ruleSet) int {
	n := 0
	for _, row := range tp.existing {
		ok := true
		for i := range tp.table.Columns {
			c := &tp.table.Columns[i]
			r := rules.get(tp.table.Name, c.Name)
			if r.empty() {
				continue
			}
			if v, _ := row.Get(c.Name); !satisfies(c.Kind(), v, r) {
				ok = false
				break
			}
		}
		if ok {
			n++
		}
	}
	return n
}

// nullReference reports whether the rules pin a nullable reference column
// to NULL, so the row needs no parent.
func nullReference(tp *tablePlan, r reference, rules ruleSet) bool {
	c, ok := tp.table.Column(r.column)
	rule := rules.get(tp.table.Name, r.column)
	return ok && c.Nullable && rule != nil && rule.isNull
}

// assignCounts walks children before parents. Each child states how large
// the pool of every parent must be, and a parent generates enough rows to
// cover the largest demand made on it. A parent nothing needs gets no rows.
func (g *Generator) assignCounts(p *plan, rules ruleSet) error {
	need := make(map[string]int)
	for i := len(p.order) - 1; i >= 0; i-- {
		tp := p.get(p.order[i])
		key := strings.ToLower(tp.table.Name)
		if !tp.driving {
			if need[key] == 0 && !tp.support {
				tp.count = 0
			} else {
				base := p.basePool(tp) - tp.usable
				tp.count = max(base, need[key]-tp.usable, 0)
				if room := newRowRoom(tp, rules); room < tp.count {
					tp.count = max(room, need[key]-tp.usable, 0)
				}
			}
			tp.planned = true
		}
		if tp.count == 0 {
			continue
		}

		for _, r := range tp.refs {
			if !r.self(tp.table.Name) && !nullReference(tp, r, rules) {
				key := strings.ToLower(r.parent)
				need[key] = max(need[key], 1)
			}
		}
		required := tp.count + len(tp.existing)
		for _, set := range tp.table.UniqueSets() {
			refs, ok := allRefs(tp, set)
			if !ok {
				continue
			}
			if err := g.expandPools(p, tp, set, refs, required, need); err != nil {
				return err
			}
		}
	}
	for _, tp := range p.tables {
		g.logger.Debug("Planned rows", zap.String("table", tp.table.Name), zap.Int("count", tp.count),
			zap.Int("existing", len(tp.existing)), zap.Bool("driving", tp.driving))
	}
	return nil
}

// newRowRoom is how many new rows the unique keys of tp can take under the
// rules on their own columns, less the existing rows already matching them.
// Keys that include reference columns depend on parent pools and are left
// to checkCapacity.
func newRowRoom(tp *tablePlan, rules ruleSet) int {
	room := math.MaxInt
	for _, set := range tp.table.UniqueSets() {
		capacity := math.MaxInt
		for _, col := range set {
			if _, isRef := tp.ref(col); isRef {
				capacity = math.MaxInt
				break
			}
			c, ok := tp.table.Column(col)
			if !ok {
				continue
			}
			n := columnCapacity(c, rules.get(tp.table.Name, c.Name))
			if capacity == math.MaxInt {
				capacity = n
			} else {
				capacity = mulSat(capacity, n)
			}
		}
		if capacity != math.MaxInt {
			room = min(room, max(capacity-tp.usable, 0))
		}
	}
	return room
}

// allRefs returns the references of set when every column of the set draws
// from a parent other than the table itself.
func allRefs(tp *tablePlan, set []string) ([]reference, bool) {
	if len(set) == 0 {
		return nil, false
	}
	refs := make([]reference, 0, len(set))
	for _, col := range set {
		r, ok := tp.ref(col)
		if !ok || r.self(tp.table.Name) {
			return nil, false
		}
		refs = append(refs, r)
	}
	return refs, true
}

// expandPools grows parent pools until their product covers required,
// always growing the smallest pool that is allowed to grow.
func (g *Generator) expandPools(p *plan, tp *tablePlan, set []string, refs []reference, required int, need map[string]int) error {
	product := func() int {
		n := 1
		for _, r := range refs {
			n = mulSat(n, p.poolSize(r, need))
		}
		return n
	}
	for _, r := range refs {
		key := strings.ToLower(r.parent)
		need[key] = max(need[key], p.basePool(p.get(r.parent)))
	}
	for product() < required {
		if !g.expand {
			return &UniqueSpaceError{Table: tp.table.Name, Columns: set, Requested: required, Available: product(), Msg: "pool expansion disabled"}
		}
		var grow string
		smallest := math.MaxInt
		for _, r := range refs {
			pp := p.get(r.parent)
			if pp.driving {
				continue
			}
			key := strings.ToLower(r.parent)
			if need[key] < smallest {
				smallest, grow = need[key], key
			}
		}
		if grow == "" {
			return &UniqueSpaceError{Table: tp.table.Name, Columns: set, Requested: required, Available: product(), Msg: "parents are query tables with fixed row counts"}
		}
		need[grow]++
	}
	return nil
}

// checkCapacity rejects plans where a unique key cannot hold as many
// distinct tuples as the table gets rows.
func (g *Generator) checkCapacity(p *plan, rules ruleSet) error {
	for _, name := range p.order {
		tp := p.get(name)
		if tp.count == 0 {
			continue
		}
		for _, set := range tp.table.UniqueSets() {
			capacity := math.MaxInt
			for _, col := range set {
				if r, ok := tp.ref(col); ok {
					if !r.self(tp.table.Name) {
						capacity = mulSat(capacity, p.basePool(p.get(r.parent)))
					}
					continue
				}
				c, _ := tp.table.Column(col)
				if c == nil {
					continue
				}
				capacity = mulSat(capacity, columnCapacity(c, rules.get(tp.table.Name, c.Name)))
			}
			if capacity < tp.count {
				return &UniqueSpaceError{Table: tp.table.Name, Columns: set, Requested: tp.count, Available: capacity}
			}
		}
	}
	return nil
}

// columnCapacity is the number of distinct values a column may take under
// its rule, or math.MaxInt when unbounded.
func columnCapacity(c *schema.Column, r *columnRule) int {
	kind := c.Kind()
	if r != nil {
		if len(r.eq) > 0 {
			return 1
		}
		for _, l := range r.likes {
			if l.Type == constraint.Exact && !strings.ContainsAny(l.Pattern, "%_") {
				return 1
			}
		}
		if r.hasIn {
			n := 0
			for _, v := range r.in {
				if !r.excluded(v) {
					n++
				}
			}
			return n
		}
		if kind == schema.KindInteger {
			if lo, hi, ok := intBounds(r); ok {
				if hi < lo {
					return 0
				}
				span := hi - lo + 1
				if span > 0 && span < math.MaxInt {
					return int(span)
				}
			}
		}
	}
	if kind == schema.KindBoolean {
		return 2
	}
	return math.MaxInt
}

func mulSat(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}
