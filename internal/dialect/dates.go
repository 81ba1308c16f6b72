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
package dialect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/sqltext"
)

var (
	dateFuncRe = regexp.MustCompile(`(?i)\b(DATE_ADD|DATE_SUB|NOW|CURDATE|CURRENT_DATE|CURRENT_TIMESTAMP)\b`)
	intervalRe = regexp.MustCompile(`(?i)^INTERVAL\s+'?(-?\d+)'?\s+([A-Z]+)$`)
)

// dateSyntax renders the native forms of the generic date expressions.
type dateSyntax interface {
	now() string
	today() string
	// addInterval adds n units to expr. n carries its sign.
	addInterval(expr, n, unit string) string
}

// convertDates rewrites generic date expressions in expr using d. Text inside
// string literals is left alone, as are calls it cannot interpret.
func convertDates(expr string, d dateSyntax) string {
	text := sqltext.Prepare(expr)
	var out strings.Builder
	last := 0
	for _, m := range dateFuncRe.FindAllStringSubmatchIndex(text.Masked, -1) {
		if m[0] < last {
			continue
		}
		name := strings.ToUpper(text.Original[m[2]:m[3]])
		open := skipSpace(text.Masked, m[1])
		hasParens := open < len(text.Masked) && text.Masked[open] == '('
		var inner string
		end := m[1]
		if hasParens {
			var ok bool
			inner, end, ok = sqltext.CaptureParens(text.Original, open)
			if !ok {
				continue
			}
		}

		var repl string
		switch name {
		case "NOW", "CURDATE", "CURRENT_TIMESTAMP", "CURRENT_DATE":
			needsParens := name == "NOW" || name == "CURDATE"
			if strings.TrimSpace(inner) != "" || (needsParens && !hasParens) {
				continue
			}
			if name == "NOW" || name == "CURRENT_TIMESTAMP" {
				repl = d.now()
			} else {
				repl = d.today()
			}
		default:
			if !hasParens {
				continue
			}
			args := sqltext.SplitTopLevel(inner, ',')
			if len(args) != 2 {
				continue
			}
			iv := intervalRe.FindStringSubmatch(strings.TrimSpace(args[1]))
			if iv == nil {
				continue
			}
			n := iv[1]
			if name == "DATE_SUB" {
				n = negate(n)
			}
			repl = d.addInterval(convertDates(args[0], d), n, normalizeUnit(iv[2]))
		}
		out.WriteString(text.Original[last:m[0]])
		out.WriteString(repl)
		last = end
	}
	if last == 0 {
		return expr
	}
	out.WriteString(text.Original[last:])
	return out.String()
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func negate(n string) string {
	if strings.HasPrefix(n, "-") {
		return n[1:]
	}
	return "-" + n
}

func normalizeUnit(unit string) string {
	return strings.TrimSuffix(strings.ToUpper(unit), "S")
}

// scaled multiplies the integer literal n by factor.
func scaled(n string, factor int) string {
	v, err := strconv.Atoi(n)
	if err != nil {
		return n
	}
	return strconv.Itoa(v * factor)
}
