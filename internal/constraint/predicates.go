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
package constraint

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/query"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/sqltext"
)

func extractBooleans(in input, b *Builder) {
	for _, m := range sqltext.BooleanEquality.FindAllStringSubmatchIndex(in.text.Masked, -1) {
		alias, col, ok := in.text.ColumnAt(m)
		if !ok || !in.outside(m[0]) {
			continue
		}
		value := strings.ToUpper(in.text.Group(m, 3))
		b.AddBoolean(BooleanConstraint{
			Alias:  alias,
			Column: col,
			Value:  value,
			Bool:   value == "TRUE" || value == "1",
		})
	}
}

func extractDates(in input, b *Builder) {
	for _, m := range sqltext.Year.FindAllStringSubmatchIndex(in.text.Masked, -1) {
		alias, col, ok := in.text.ColumnAt(m)
		if !ok || !in.outside(m[0]) {
			continue
		}
		value := sqltext.Unquote(in.text.Group(m, 3))
		year, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		b.AddDate(DateConstraint{Alias: alias, Column: col, Operator: query.OpYearEquals, Value: value, Year: year})
	}
}

func extractInClauses(in input, b *Builder) {
	for _, m := range sqltext.In.FindAllStringSubmatchIndex(in.text.Masked, -1) {
		alias, col, ok := in.text.ColumnAt(m)
		if !ok || !in.outside(m[0]) {
			continue
		}
		inner, _, closed := sqltext.CaptureParens(in.text.Original, m[1]-1)
		if !closed {
			continue
		}
		c := InClauseConstraint{Alias: alias, Column: col, Negated: m[6] >= 0}
		trimmed := strings.TrimSpace(inner)
		if len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "SELECT") {
			c.Type = Subquery
			c.Subquery = trimmed
			b.AddInClause(c)
			continue
		}
		numeric := true
		for _, item := range sqltext.SplitTopLevel(inner, ',') {
			if sqltext.IsQuoted(item) {
				numeric = false
			} else if _, err := strconv.ParseFloat(item, 64); err != nil {
				numeric = false
			}
			c.Values = append(c.Values, sqltext.Unquote(item))
		}
		if len(c.Values) == 0 {
			continue
		}
		c.Type = StringList
		if numeric {
			c.Type = NumericList
		}
		b.AddInClause(c)
	}
}

func extractBetweens(in input, b *Builder) {
	for _, m := range sqltext.Between.FindAllStringSubmatchIndex(in.text.Masked, -1) {
		alias, col, ok := in.text.ColumnAt(m)
		if !ok || !in.outside(m[0]) {
			continue
		}
		lo, hi := in.text.Group(m, 3), in.text.Group(m, 4)
		dataType := Numeric
		if sqltext.IsQuoted(lo) || sqltext.IsQuoted(hi) {
			dataType = Date
		}
		b.AddBetween(BetweenConstraint{
			Alias:    alias,
			Column:   col,
			Min:      sqltext.Unquote(lo),
			Max:      sqltext.Unquote(hi),
			DataType: dataType,
		})
	}
}

func extractNullChecks(in input, b *Builder) {
	for _, m := range sqltext.Null.FindAllStringSubmatchIndex(in.text.Masked, -1) {
		alias, col, ok := in.text.ColumnAt(m)
		if !ok || !in.outside(m[0]) {
			continue
		}
		check := IsNull
		if m[6] >= 0 {
			check = IsNotNull
		}
		b.AddNull(NullConstraint{Alias: alias, Column: col, Type: check})
	}
}

// extractExists records every EXISTS predicate, nested ones included. The
// body capture tracks parenthesis depth so inner groups do not cut it short.
func extractExists(in input, b *Builder) {
	for _, m := range sqltext.Exists.FindAllStringSubmatchIndex(in.text.Masked, -1) {
		inner, _, closed := sqltext.CaptureParens(in.text.Original, m[1]-1)
		if !closed {
			continue
		}
		kind := ExistsCheck
		if m[2] >= 0 {
			kind = NotExistsCheck
		}
		b.AddExists(ExistsConstraint{Type: kind, Subquery: strings.TrimSpace(inner)})
	}
}

var joinTableRe = regexp.MustCompile(`(?i)\bJOIN\s+(` + sqltext.Ident + `(?:\s*\.\s*` + sqltext.Ident + `)?)(?:\s+(?:AS\s+)?(` + sqltext.Ident + `))?\s*$`)

// extractJoinPredicates finds column = literal predicates inside ON clauses.
// They are mandatory for rows of the joined table. Column to column
// equalities are the join keys and are skipped.
func extractJoinPredicates(in input, b *Builder) {
	masked := in.text.Masked
	for _, on := range sqltext.On.FindAllStringIndex(masked, -1) {
		if !in.outside(on[0]) {
			continue
		}
		clause := sqltext.Span{Start: on[1], End: sqltext.ClauseEnd(masked, on[1])}

		joinTable, joinAlias := "", ""
		if jm := joinTableRe.FindStringSubmatchIndex(masked[:on[0]]); jm != nil {
			joinTable = sqltext.UnquoteIdent(in.text.Group(jm, 1))
			if dot := strings.LastIndexByte(joinTable, '.'); dot >= 0 {
				joinTable = sqltext.UnquoteIdent(strings.TrimSpace(joinTable[dot+1:]))
			}
			joinAlias = joinTable
			if a := in.text.Group(jm, 2); a != "" && !sqltext.IsKeyword(a) {
				joinAlias = sqltext.UnquoteIdent(a)
			}
		}

		body := masked[clause.Start:clause.End]
		for _, rel := range sqltext.Comparison.FindAllStringSubmatchIndex(body, -1) {
			m := make([]int, len(rel))
			for i, v := range rel {
				if v >= 0 {
					v += clause.Start
				}
				m[i] = v
			}
			alias, col, ok := in.text.ColumnAt(m)
			if !ok || !in.outside(m[0]) {
				continue
			}
			if alias == "" {
				alias = joinAlias
			}
			if in.text.Group(m, 3) != "=" {
				continue
			}
			value := sqltext.NormalizeLiteral(in.text.Group(m, 4))
			if value == "NULL" {
				continue
			}
			b.AddJoin(JoinConstraint{
				Alias:     alias,
				Column:    col,
				Value:     value,
				JoinTable: joinTable,
				Condition: query.WhereCondition{
					Alias:    alias,
					Column:   col,
					Operator: query.OpEQ,
					Value:    value,
					FromJoin: true,
				},
			})
		}
	}
}
