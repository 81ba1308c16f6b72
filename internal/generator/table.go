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
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxAttempts = 64

// uniqueIndex tracks the value tuples already taken for one unique key.
type uniqueIndex struct {
	columns []string
	seen    map[string]bool
}

// key renders the tuple of values for the index's columns. ok is false when
// any of them is NULL, since NULLs never collide.
func (u *uniqueIndex) key(values map[string]any) (string, bool) {
	parts := make([]string, len(u.columns))
	for i, col := range u.columns {
		v := values[strings.ToLower(col)]
		if v == nil {
			return "", false
		}
		parts[i] = keyOf(v)
	}
	return strings.Join(parts, "\x1f"), true
}

func (u *uniqueIndex) taken(values map[string]any) bool {
	k, ok := u.key(values)
	return ok && u.seen[k]
}

func (u *uniqueIndex) add(values map[string]any) {
	if k, ok := u.key(values); ok {
		u.seen[k] = true
	}
}

// keyCursor walks the combinations of parent pools for a unique key made only
// of references, skipping tuples already taken. The last column varies
// fastest.
type keyCursor struct {
	columns []string
	pools   [][]any
	next    int
	total   int
	index   *uniqueIndex
}

func (kc *keyCursor) take() (map[string]any, bool) {
	for kc.next < kc.total {
		n := kc.next
		kc.next++
		tuple := make(map[string]any, len(kc.columns))
		for d := len(kc.pools) - 1; d >= 0; d-- {
			size := len(kc.pools[d])
			tuple[strings.ToLower(kc.columns[d])] = kc.pools[d][n%size]
			n /= size
		}
		if !kc.index.taken(tuple) {
			return tuple, true
		}
	}
	return nil, false
}

func rowValues(r Row) map[string]any {
	m := make(map[string]any, len(r.Values))
	for _, v := range r.Values {
		m[strings.ToLower(v.Column)] = v.Value
	}
	return m
}

// tableGen produces the rows of one table.
type tableGen struct {
	ctx    context.Context
	g      *Generator
	rng    *rand.Rand
	plan   *plan
	tp     *tablePlan
	table  *schema.Table
	rules  ruleSet
	result *Result

	rows        []Row
	indexes     []*uniqueIndex
	pools       map[string][]any
	cursors     []*keyCursor
	seq         map[string]int64
	suggestions map[string][]string
	suggested   map[string]map[string]bool
}

func newTableGen(ctx context.Context, g *Generator, rng *rand.Rand, p *plan, tp *tablePlan, rules ruleSet, result *Result) *tableGen {
	tg := &tableGen{
		ctx:         ctx,
		g:           g,
		rng:         rng,
		plan:        p,
		tp:          tp,
		table:       tp.table,
		rules:       rules,
		result:      result,
		pools:       make(map[string][]any),
		seq:         make(map[string]int64),
		suggestions: make(map[string][]string),
		suggested:   make(map[string]map[string]bool),
	}
	for _, set := range tp.table.UniqueSets() {
		idx := &uniqueIndex{columns: set, seen: make(map[string]bool)}
		for _, row := range tp.existing {
			idx.add(rowValues(row))
		}
		tg.indexes = append(tg.indexes, idx)
	}
	return tg
}

func (tg *tableGen) run() ([]Row, error) {
	if tg.tp.count == 0 {
		return nil, nil
	}
	if err := tg.loadPools(); err != nil {
		return nil, err
	}
	tg.buildCursors()
	tg.loadSuggestions()

	for i := 0; i < tg.tp.count; i++ {
		row, err := tg.makeRow(i)
		if err != nil {
			return nil, err
		}
		tg.rows = append(tg.rows, row)
	}
	return tg.rows, nil
}

// loadPools collects the candidate values of every non-self reference.
func (tg *tableGen) loadPools() error {
	for _, ref := range tg.tp.refs {
		if ref.self(tg.table.Name) {
			continue
		}
		c, ok := tg.table.Column(ref.column)
		if !ok {
			continue
		}
		r := tg.rules.get(tg.table.Name, c.Name)
		pp := tg.plan.get(ref.parent)
		if r != nil && r.isNull {
			continue
		}
		var candidates []Row
		if !pp.driving {
			candidates = append(candidates, pp.existing...)
		}
		candidates = append(candidates, tg.result.RowsFor(pp.table.Name)...)

		seen := make(map[string]bool)
		var values []any
		for _, row := range candidates {
			v, _ := row.Get(ref.parentColumn)
			if v == nil || seen[keyOf(v)] {
				continue
			}
			if !r.empty() && !satisfies(c.Kind(), v, r) {
				continue
			}
			seen[keyOf(v)] = true
			values = append(values, v)
		}
		if len(values) == 0 && (!c.Nullable || !r.empty()) {
			err := &MissingParentError{Table: tg.table.Name, Column: c.Name, ParentTable: pp.table.Name, ParentColumn: ref.parentColumn}
			if len(candidates) > 0 {
				err.Msg = "no parent row satisfies the column's predicates"
			}
			return err
		}
		tg.pools[strings.ToLower(c.Name)] = values
	}
	return nil
}

// buildCursors assigns a combination cursor to each unique key made only of
// references, as long as its columns are not already driven by another.
func (tg *tableGen) buildCursors() {
	covered := make(map[string]bool)
	for _, idx := range tg.indexes {
		if _, ok := allRefs(tg.tp, idx.columns); !ok {
			continue
		}
		kc := &keyCursor{columns: idx.columns, total: 1, index: idx}
		usable := true
		for _, col := range idx.columns {
			pool := tg.pools[strings.ToLower(col)]
			if len(pool) == 0 || covered[strings.ToLower(col)] {
				usable = false
				break
			}
			kc.pools = append(kc.pools, pool)
			kc.total = mulSat(kc.total, len(pool))
		}
		if !usable {
			continue
		}
		for _, col := range idx.columns {
			covered[strings.ToLower(col)] = true
		}
		tg.cursors = append(tg.cursors, kc)
	}
}

// loadSuggestions asks the supplier once for each unconstrained string
// column.
func (tg *tableGen) loadSuggestions() {
	if tg.g.supplier == nil {
		return
	}
	for i := range tg.table.Columns {
		c := &tg.table.Columns[i]
		if c.Kind() != schema.KindString || c.PrimaryKey || c.Identity {
			continue
		}
		if _, isRef := tg.tp.ref(c.Name); isRef {
			continue
		}
		if !tg.rules.get(tg.table.Name, c.Name).empty() {
			continue
		}
		var examples []string
		for _, row := range tg.tp.existing {
			if v, ok := row.Get(c.Name); ok && v != nil && len(examples) < 5 {
				examples = append(examples, textOf(v))
			}
		}
		values := tg.g.suggest(tg.ctx, SuggestionRequest{
			Table:     tg.table.Name,
			Column:    c.Name,
			Type:      c.Type,
			MaxLength: c.Length(),
			Count:     tg.tp.count,
			Examples:  examples,
		})
		if len(values) > 0 {
			tg.suggestions[strings.ToLower(c.Name)] = values
			tg.suggested[strings.ToLower(c.Name)] = make(map[string]bool)
		}
	}
}

func (tg *tableGen) singleIndex(column string) *uniqueIndex {
	for _, idx := range tg.indexes {
		if len(idx.columns) == 1 && strings.EqualFold(idx.columns[0], column) {
			return idx
		}
	}
	return nil
}

func (tg *tableGen) makeRow(i int) (Row, error) {
	values := make(map[string]any, len(tg.table.Columns))

	for ci := range tg.table.Columns {
		c := &tg.table.Columns[ci]
		if _, isRef := tg.tp.ref(c.Name); isRef {
			continue
		}
		v, err := tg.freeValue(c, i)
		if err != nil {
			return Row{}, err
		}
		values[strings.ToLower(c.Name)] = v
	}

	for _, kc := range tg.cursors {
		tuple, ok := kc.take()
		if !ok {
			return Row{}, &UniqueSpaceError{Table: tg.table.Name, Columns: kc.columns, Requested: tg.tp.count, Available: i}
		}
		for col, v := range tuple {
			values[col] = v
		}
	}

	for _, ref := range tg.tp.refs {
		key := strings.ToLower(ref.column)
		if _, done := values[key]; done {
			continue
		}
		c, ok := tg.table.Column(ref.column)
		if !ok {
			continue
		}
		v, err := tg.refValue(ref, c, i, values)
		if err != nil {
			return Row{}, err
		}
		values[key] = v
	}

	if err := tg.resolveCollisions(i, values); err != nil {
		return Row{}, err
	}
	for _, idx := range tg.indexes {
		idx.add(values)
	}

	row := Row{Table: tg.table.Name, Values: make([]ColumnValue, 0, len(tg.table.Columns))}
	for _, c := range tg.table.Columns {
		row.Values = append(row.Values, ColumnValue{Column: c.Name, Value: values[strings.ToLower(c.Name)]})
	}
	return row, nil
}

// resolveCollisions regenerates the unconstrained columns of any unique key
// whose tuple is already taken.
func (tg *tableGen) resolveCollisions(i int, values map[string]any) error {
	for _, idx := range tg.indexes {
		if !idx.taken(values) {
			continue
		}
		var free []*schema.Column
		for _, col := range idx.columns {
			if _, isRef := tg.tp.ref(col); isRef {
				continue
			}
			if c, ok := tg.table.Column(col); ok {
				free = append(free, c)
			}
		}
		for attempt := 1; attempt < maxAttempts && len(free) > 0 && idx.taken(values); attempt++ {
			for _, c := range free {
				values[strings.ToLower(c.Name)] = tg.candidate(c, tg.rules.get(tg.table.Name, c.Name), i, attempt, true)
			}
		}
		if idx.taken(values) {
			return &UniqueSpaceError{Table: tg.table.Name, Columns: idx.columns, Requested: tg.tp.count, Available: i}
		}
	}
	return nil
}

func (tg *tableGen) freeValue(c *schema.Column, i int) (any, error) {
	r := tg.rules.get(tg.table.Name, c.Name)
	kind := c.Kind()
	idx := tg.singleIndex(c.Name)
	unique := idx != nil

	if s := tg.suggestions[strings.ToLower(c.Name)]; i < len(s) {
		if v, ok := tg.acceptSuggestion(c, r, s[i], idx); ok {
			return v, nil
		}
	}

	var last any
	for attempt := 0; attempt < maxAttempts; attempt++ {
		v := tg.candidate(c, r, i, attempt, unique || c.Identity)
		last = v
		if !satisfies(kind, v, r) {
			continue
		}
		if unique && idx.taken(map[string]any{strings.ToLower(c.Name): v}) {
			continue
		}
		return v, nil
	}
	if unique {
		return nil, &UniqueSpaceError{Table: tg.table.Name, Columns: []string{c.Name}, Requested: tg.tp.count, Available: i,
			Msg: "no further value satisfies the column's predicates"}
	}
	if columnCapacity(c, r) == 0 {
		return nil, &UnsatisfiableError{Table: tg.table.Name, Column: c.Name, Msg: "no value satisfies the column's predicates"}
	}
	tg.g.logger.Warn("Could not satisfy every predicate on column", zap.String("table", tg.table.Name),
		zap.String("column", c.Name), zap.Any("value", last))
	return last, nil
}

func (tg *tableGen) acceptSuggestion(c *schema.Column, r *columnRule, s string, idx *uniqueIndex) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.IndexByte(s, 0) >= 0 {
		return nil, false
	}
	if n := c.Length(); n > 0 && utf8.RuneCountInString(s) > n {
		return nil, false
	}
	if !satisfies(schema.KindString, s, r) {
		return nil, false
	}
	if idx != nil && idx.taken(map[string]any{strings.ToLower(c.Name): s}) {
		return nil, false
	}
	used := tg.suggested[strings.ToLower(c.Name)]
	if used[s] {
		return nil, false
	}
	used[s] = true
	return s, true
}

var uuidSpace = uuid.NameSpaceOID

// candidate proposes a value for c. Different attempts for the same row give
// different values where the column's predicates leave room. sequential
// requests values that do not repeat within the batch.
func (tg *tableGen) candidate(c *schema.Column, r *columnRule, i, attempt int, sequential bool) any {
	kind := c.Kind()
	if r != nil {
		if r.isNull && c.Nullable && !c.PrimaryKey {
			return nil
		}
		for _, s := range r.eq {
			if v, ok := coerce(kind, s); ok {
				return v
			}
		}
		if r.hasIn {
			var options []any
			for _, s := range r.in {
				if v, ok := coerce(kind, s); ok && !r.excluded(s) {
					options = append(options, v)
				}
			}
			if len(options) > 0 {
				return options[(i+attempt)%len(options)]
			}
		}
	}

	k := i + 1 + attempt*max(tg.tp.count, 1)
	switch kind {
	case schema.KindInteger:
		if sequential || c.PrimaryKey {
			return tg.nextSeq(c, r)
		}
		lo, hi := intRange(r)
		if hi < lo {
			return lo
		}
		return lo + tg.rng.Int63n(hi-lo+1)
	case schema.KindDecimal:
		scale := schema.Scale(c.Type)
		lo, hi := floatRange(r, scale)
		var v float64
		if sequential {
			v = lo + float64(k-1)*stepOf(scale)
		} else {
			v = lo + tg.rng.Float64()*(hi-lo)
		}
		v = roundTo(v, scale)
		if v > hi {
			v = roundTo(hi, scale)
		}
		if v < lo {
			v = lo
		}
		return v
	case schema.KindBoolean:
		if sequential {
			return (i+attempt)%2 == 0
		}
		return tg.rng.Intn(2) == 0
	case schema.KindDate:
		lo, hi := timeRange(kind, r)
		days := max(int(hi.Sub(lo).Hours()/24), 0)
		off := tg.rng.Intn(days + 1)
		if sequential {
			off = (k - 1) % (days + 1)
		}
		return lo.AddDate(0, 0, off)
	case schema.KindDateTime:
		lo, hi := timeRange(kind, r)
		secs := max(int64(hi.Sub(lo)/time.Second), 0)
		off := tg.rng.Int63n(secs + 1)
		if sequential {
			off = int64(k-1) % (secs + 1)
		}
		return lo.Add(time.Duration(off) * time.Second)
	case schema.KindTime:
		secs := tg.rng.Intn(86400)
		if sequential {
			secs = (k - 1) % 86400
		}
		return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	case schema.KindUUID:
		return uuid.NewSHA1(uuidSpace, []byte(fmt.Sprintf("%s.%s.%d.%d", tg.table.Name, c.Name, tg.g.seed, k))).String()
	case schema.KindBinary:
		b := []byte(fmt.Sprintf("%s-%d", c.Name, k))
		if n := c.Length(); n > 0 && len(b) > n {
			b = b[len(b)-n:]
		}
		return b
	case schema.KindJSON:
		return fmt.Sprintf(`{"%s":%d}`, c.Name, k)
	}

	maxLen := c.Length()
	if r != nil && len(r.likes) > 0 {
		word := fillerWords[tg.rng.Intn(len(fillerWords))]
		return combineLikes(r.likes, k, word, maxLen)
	}
	return fitLength(readableString(tg.table.Name, c.Name, k), maxLen)
}

func stepOf(scale int) float64 {
	s := 1.0
	for ; scale > 0; scale-- {
		s /= 10
	}
	return s
}

// nextSeq hands out increasing integers for c, starting above any existing
// value and at the column's lower bound.
func (tg *tableGen) nextSeq(c *schema.Column, r *columnRule) int64 {
	key := strings.ToLower(c.Name)
	if _, ok := tg.seq[key]; !ok {
		start := int64(1)
		if r != nil {
			if lo, _, _ := intBounds(r); lo > start {
				start = lo
			}
		}
		if n, ok := tg.tp.maxKey(c.Name); ok && n >= start {
			start = n + 1
		}
		for _, row := range tg.tp.existing {
			if v, ok := row.Get(c.Name); ok {
				if n, ok := coerce(schema.KindInteger, textOf(v)); ok && n.(int64) >= start {
					start = n.(int64) + 1
				}
			}
		}
		tg.seq[key] = start
	}
	v := tg.seq[key]
	tg.seq[key]++
	return v
}

// refValue picks the value of a reference column not driven by a cursor.
func (tg *tableGen) refValue(ref reference, c *schema.Column, i int, values map[string]any) (any, error) {
	r := tg.rules.get(tg.table.Name, c.Name)
	if r != nil && r.isNull {
		if c.Nullable {
			return nil, nil
		}
		return nil, &UnsatisfiableError{Table: tg.table.Name, Column: c.Name, Msg: "IS NULL on a NOT NULL column"}
	}
	if ref.self(tg.table.Name) {
		var earlier []any
		for _, row := range append(append([]Row(nil), tg.tp.existing...), tg.rows...) {
			if v, _ := row.Get(ref.parentColumn); v != nil && (r.empty() || satisfies(c.Kind(), v, r)) {
				earlier = append(earlier, v)
			}
		}
		if len(earlier) == 0 {
			if c.Nullable {
				return nil, nil
			}
			return values[strings.ToLower(ref.parentColumn)], nil
		}
		return earlier[tg.rng.Intn(len(earlier))], nil
	}

	pool := tg.pools[strings.ToLower(c.Name)]
	if len(pool) == 0 {
		return nil, nil
	}
	if idx := tg.singleIndex(c.Name); idx != nil {
		for j := 0; j < len(pool); j++ {
			v := pool[(i+j)%len(pool)]
			if !idx.taken(map[string]any{strings.ToLower(c.Name): v}) {
				return v, nil
			}
		}
		return nil, &UniqueSpaceError{Table: tg.table.Name, Columns: []string{c.Name}, Requested: tg.tp.count, Available: len(pool)}
	}
	return pool[i%len(pool)], nil
}
