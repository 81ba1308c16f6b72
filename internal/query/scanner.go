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
package query

import (
	"regexp"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/sqltext"
)

const scannerName = "scanner"

var (
	fromRe      = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\b`)
	tableItemRe = regexp.MustCompile(`(?i)^\s*(` + sqltext.Ident + `(?:\s*\.\s*` + sqltext.Ident + `)?)(?:\s+(?:AS\s+)?(` + sqltext.Ident + `))?`)
)

// scannerStrategy recognizes tables and predicates by independent regular
// expression scans. It never rejects input.
type scannerStrategy struct{}

func (scannerStrategy) Name() string { return scannerName }

type tableDecl struct {
	pos   int
	alias string
}

type scanner struct {
	text       sqltext.Text
	b          *modelBuilder
	subqueries []sqltext.Span
	decls      []tableDecl
}

func (scannerStrategy) Parse(sql string) (*QueryModel, error) {
	s := &scanner{text: sqltext.Prepare(sql), b: newModelBuilder()}
	s.subqueries = s.text.SubquerySpans()
	s.scanTables()
	joinSpans := s.scanJoins()
	outside := append(append([]sqltext.Span(nil), s.subqueries...), joinSpans...)
	for _, c := range scanPredicates(s.text, func(pos int) bool { return !sqltext.InSpans(pos, outside) }) {
		s.b.addCondition(c)
	}
	for _, m := range sqltext.ColumnEquality.FindAllStringSubmatchIndex(s.text.Masked, -1) {
		if !sqltext.InSpans(m[0], outside) {
			s.b.addJoin(s.columnEquality(m, 0))
		}
	}
	return s.b.build()
}

func (s *scanner) columnEquality(m []int, off int) JoinRequirement {
	group := func(n int) string {
		return sqltext.UnquoteIdent(s.text.Slice(off+m[2*n], off+m[2*n+1]))
	}
	return JoinRequirement{
		LeftAlias:   group(1),
		LeftColumn:  group(2),
		RightAlias:  group(3),
		RightColumn: group(4),
	}
}

func (s *scanner) scanTables() {
	masked := s.text.Masked
	for _, m := range fromRe.FindAllStringIndex(masked, -1) {
		if sqltext.InSpans(m[0], s.subqueries) {
			continue
		}
		isFrom := strings.EqualFold(masked[m[0]:m[1]], "FROM")
		pos := m[1]
		for {
			item := tableItemRe.FindStringSubmatchIndex(masked[pos:])
			if item == nil {
				break
			}
			name := s.text.Slice(pos+item[2], pos+item[3])
			if sqltext.IsKeyword(name) {
				break
			}
			if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
				name = name[dot+1:]
			}
			name = sqltext.UnquoteIdent(strings.TrimSpace(name))
			end := pos + item[3]
			alias := ""
			if item[4] >= 0 {
				candidate := s.text.Slice(pos+item[4], pos+item[5])
				if !sqltext.IsKeyword(candidate) {
					alias = sqltext.UnquoteIdent(candidate)
					end = pos + item[1]
				}
			}
			s.b.addTable(name, alias)
			declared := alias
			if declared == "" {
				declared = name
			}
			s.decls = append(s.decls, tableDecl{pos: pos, alias: declared})
			rest := strings.TrimLeft(masked[end:], " \t\r\n")
			if !isFrom || !strings.HasPrefix(rest, ",") {
				break
			}
			pos = len(masked) - len(rest) + 1
		}
	}
}

// scanJoins records the column equalities of every ON clause and returns the
// clause spans. Literal predicates inside a clause are attributed to their own
// alias or, when unqualified, to the table joined by that clause.
func (s *scanner) scanJoins() []sqltext.Span {
	var spans []sqltext.Span
	for _, m := range sqltext.On.FindAllStringIndex(s.text.Masked, -1) {
		if sqltext.InSpans(m[0], s.subqueries) {
			continue
		}
		clause := sqltext.Span{Start: m[1], End: sqltext.ClauseEnd(s.text.Masked, m[1])}
		spans = append(spans, clause)

		rightAlias := ""
		for _, d := range s.decls {
			if d.pos < m[0] {
				rightAlias = d.alias
			}
		}
		body := s.text.Masked[clause.Start:clause.End]
		for _, j := range sqltext.ColumnEquality.FindAllStringSubmatchIndex(body, -1) {
			s.b.addJoin(s.columnEquality(j, clause.Start))
		}
		accept := func(pos int) bool {
			return clause.Contains(pos) && !sqltext.InSpans(pos, s.subqueries)
		}
		for _, c := range scanPredicates(s.text, accept) {
			c.FromJoin = true
			if c.Alias == "" {
				c.Alias = rightAlias
			}
			s.b.addCondition(c)
		}
	}
	return spans
}

var scanOperators = map[string]Operator{
	"=": OpEQ, "!=": OpNEQ, "<>": OpNEQ, ">": OpGT, ">=": OpGTE, "<": OpLT, "<=": OpLTE,
}

// scanPredicates runs every predicate pattern and keeps the matches whose start
// offset is accepted.
func scanPredicates(text sqltext.Text, accept func(pos int) bool) []WhereCondition {
	var out []WhereCondition
	each := func(re *regexp.Regexp, fn func(m []int, alias, col string)) {
		for _, m := range re.FindAllStringSubmatchIndex(text.Masked, -1) {
			if alias, col, ok := text.ColumnAt(m); ok && accept(m[0]) {
				fn(m, alias, col)
			}
		}
	}

	each(sqltext.Year, func(m []int, alias, col string) {
		out = append(out, WhereCondition{Alias: alias, Column: col, Operator: OpYearEquals,
			Value: sqltext.NormalizeLiteral(text.Group(m, 3))})
	})
	each(sqltext.Comparison, func(m []int, alias, col string) {
		out = append(out, WhereCondition{Alias: alias, Column: col, Operator: scanOperators[text.Group(m, 3)],
			Value: sqltext.NormalizeLiteral(text.Group(m, 4))})
	})
	each(sqltext.Like, func(m []int, alias, col string) {
		op := OpLike
		if m[6] >= 0 {
			op = OpNotLike
		}
		out = append(out, WhereCondition{Alias: alias, Column: col, Operator: op,
			Value: sqltext.Unquote(text.Group(m, 4))})
	})
	each(sqltext.In, func(m []int, alias, col string) {
		inner, _, closed := sqltext.CaptureParens(text.Original, m[1]-1)
		if !closed {
			return
		}
		op := OpIn
		if m[6] >= 0 {
			op = OpNotIn
		}
		c := WhereCondition{Alias: alias, Column: col, Operator: op}
		if trimmed := strings.TrimSpace(inner); len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "SELECT") {
			c.Subquery = trimmed
		} else {
			for _, v := range sqltext.SplitTopLevel(inner, ',') {
				c.Values = append(c.Values, sqltext.NormalizeLiteral(v))
			}
		}
		out = append(out, c)
	})
	each(sqltext.Between, func(m []int, alias, col string) {
		out = append(out, WhereCondition{Alias: alias, Column: col, Operator: OpBetween,
			Min: sqltext.NormalizeLiteral(text.Group(m, 3)),
			Max: sqltext.NormalizeLiteral(text.Group(m, 4))})
	})
	each(sqltext.Null, func(m []int, alias, col string) {
		op := OpIsNull
		if m[6] >= 0 {
			op = OpIsNotNull
		}
		out = append(out, WhereCondition{Alias: alias, Column: col, Operator: op})
	})

	for _, m := range sqltext.Exists.FindAllStringSubmatchIndex(text.Masked, -1) {
		if !accept(m[0]) {
			continue
		}
		inner, _, closed := sqltext.CaptureParens(text.Original, m[1]-1)
		if !closed {
			continue
		}
		op := OpExists
		if m[2] >= 0 {
			op = OpNotExists
		}
		out = append(out, WhereCondition{Operator: op, Subquery: strings.TrimSpace(inner)})
	}
	return out
}
