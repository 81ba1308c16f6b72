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
package sqltext

import (
	"regexp"
	"strings"
)

// Predicate patterns, matched against Text.Masked. Groups 1 and 2 are always
// the optional alias and the column of the left-hand column reference.
var (
	// Comparison: 3 operator, 4 literal.
	Comparison = regexp.MustCompile(ColumnRef + `\s*(<=|>=|<>|!=|=|<|>)\s*(` + Literal + `)`)
	// BooleanEquality: 3 boolean literal.
	BooleanEquality = regexp.MustCompile(`(?i)` + ColumnRef + `\s*=\s*(TRUE|FALSE|0|1)(?:[^\w.]|$)`)
	// Like: 3 NOT, 4 pattern literal.
	Like = regexp.MustCompile(`(?i)` + ColumnRef + `\s+(NOT\s+)?LIKE\s+(` + String + `|"[^"]*")`)
	// In: 3 NOT. The match ends at the opening parenthesis.
	In = regexp.MustCompile(`(?i)` + ColumnRef + `\s+(NOT\s+)?IN\s*\(`)
	// Between: 3 lower bound, 4 upper bound.
	Between = regexp.MustCompile(`(?i)` + ColumnRef + `\s+BETWEEN\s+(?:DATE\s+|TIMESTAMP\s+)?(` + Literal + `)\s+AND\s+(?:DATE\s+|TIMESTAMP\s+)?(` + Literal + `)`)
	// Null: 3 NOT.
	Null = regexp.MustCompile(`(?i)` + ColumnRef + `\s+IS\s+(NOT\s+)?NULL\b`)
	// Year: 3 year literal.
	Year = regexp.MustCompile(`(?i)\bYEAR\s*\(\s*` + ColumnRef + `\s*\)\s*=\s*(` + String + `|\d+)`)
	// Exists: 1 NOT. The match ends at the opening parenthesis.
	Exists = regexp.MustCompile(`(?i)\b(NOT\s+)?EXISTS\s*\(`)
	// ColumnEquality: 1 left alias, 2 left column, 3 right alias, 4 right column.
	ColumnEquality = regexp.MustCompile(`(` + Ident + `)\s*\.\s*(` + Ident + `)\s*=\s*(` + Ident + `)\s*\.\s*(` + Ident + `)`)
	// On matches the ON keyword of a join.
	On = regexp.MustCompile(`(?i)\bON\b`)

	inSubquery = regexp.MustCompile(`(?i)\bIN\s*\(\s*SELECT\b`)
)

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "JOIN": true, "INNER": true, "LEFT": true,
	"RIGHT": true, "FULL": true, "OUTER": true, "CROSS": true, "NATURAL": true, "ON": true,
	"USING": true, "GROUP": true, "ORDER": true, "BY": true, "LIMIT": true, "HAVING": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "AS": true, "AND": true, "OR": true,
	"NOT": true, "OFFSET": true, "FETCH": true, "FOR": true, "WINDOW": true, "LATERAL": true,
	"STRAIGHT_JOIN": true, "WITH": true, "IS": true, "IN": true, "LIKE": true, "BETWEEN": true,
	"EXISTS": true, "NULL": true, "TRUE": true, "FALSE": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true,
}

var clauseTerminators = map[string]bool{
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "CROSS": true,
	"NATURAL": true, "WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true, "HAVING": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "OFFSET": true, "FETCH": true, "STRAIGHT_JOIN": true,
}

// IsKeyword reports whether word is a reserved word that can never be a table
// alias or a column name in the scanned grammar.
func IsKeyword(word string) bool {
	return keywords[strings.ToUpper(word)]
}

// ColumnAt returns the alias and column of a match of one of the predicate
// patterns. ok is false when the column is a keyword.
func (t Text) ColumnAt(m []int) (alias, column string, ok bool) {
	if len(m) < 6 {
		return "", "", false
	}
	if m[2] >= 0 {
		alias = UnquoteIdent(t.Slice(m[2], m[3]))
	}
	column = UnquoteIdent(t.Slice(m[4], m[5]))
	return alias, column, column != "" && !IsKeyword(column)
}

// Group returns the original text of submatch n, or "" when it did not take
// part in the match.
func (t Text) Group(m []int, n int) string {
	if 2*n+1 >= len(m) || m[2*n] < 0 {
		return ""
	}
	return t.Slice(m[2*n], m[2*n+1])
}

// Span is a half-open byte range.
type Span struct{ Start, End int }

// Contains reports whether pos lies inside the span.
func (s Span) Contains(pos int) bool {
	return pos >= s.Start && pos < s.End
}

// InSpans reports whether pos lies inside any of spans.
func InSpans(pos int, spans []Span) bool {
	for _, s := range spans {
		if s.Contains(pos) {
			return true
		}
	}
	return false
}

// SubquerySpans locates the parenthesized bodies of EXISTS and IN (SELECT ...)
// predicates.
func (t Text) SubquerySpans() []Span {
	var spans []Span
	add := func(open int) {
		if _, end, _ := CaptureParens(t.Original, open); end > open {
			spans = append(spans, Span{open, end})
		}
	}
	for _, m := range Exists.FindAllStringIndex(t.Masked, -1) {
		add(m[1] - 1)
	}
	for _, m := range inSubquery.FindAllStringIndex(t.Masked, -1) {
		add(strings.IndexByte(t.Masked[m[0]:], '(') + m[0])
	}
	return spans
}

// ClauseEnd returns the offset where the clause beginning at start ends: the
// next top-level clause keyword, an unbalanced close parenthesis or the end of
// the text.
func ClauseEnd(masked string, start int) int {
	depth := 0
	for i := start; i < len(masked); i++ {
		c := masked[i]
		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return i
			}
			depth--
		case depth == 0 && isWordByte(c) && (i == 0 || !isWordByte(masked[i-1])):
			j := i
			for j < len(masked) && isWordByte(masked[j]) {
				j++
			}
			if clauseTerminators[strings.ToUpper(masked[i:j])] {
				return i
			}
			i = j - 1
		}
	}
	return len(masked)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
