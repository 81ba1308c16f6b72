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
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/sqltext"
)

func extractLikePatterns(in input, b *Builder) {
	for _, m := range sqltext.Like.FindAllStringSubmatchIndex(in.text.Masked, -1) {
		alias, col, ok := in.text.ColumnAt(m)
		if !ok || !in.outside(m[0]) {
			continue
		}
		b.AddLikePattern(NewLikePattern(alias, col, sqltext.Unquote(in.text.Group(m, 4)), m[6] >= 0))
	}
}

// NewLikePattern classifies pattern. Only wildcards at the boundaries are
// significant: CONTAINS strips exactly one leading and one trailing %,
// STARTS_WITH strips the trailing wildcard run and ENDS_WITH the leading one.
func NewLikePattern(alias, column, pattern string, negated bool) LikePattern {
	lp := LikePattern{Alias: alias, Column: column, Pattern: pattern, Negated: negated}
	leading := strings.HasPrefix(pattern, "%")
	trailing := len(pattern) > 1 && strings.HasSuffix(pattern, "%") && !strings.HasSuffix(pattern, `\%`)
	switch {
	case strings.Trim(pattern, "%") == "" && pattern != "":
		lp.Type = Contains
	case leading && trailing:
		lp.Type = Contains
		lp.RequiredValue = pattern[1 : len(pattern)-1]
	case trailing:
		lp.Type = StartsWith
		lp.RequiredValue = strings.TrimRight(pattern, "%_")
	case leading:
		lp.Type = EndsWith
		lp.RequiredValue = strings.TrimLeft(pattern, "%_")
	default:
		lp.Type = Exact
		lp.RequiredValue = pattern
	}
	lp.Ambiguous = strings.ContainsAny(lp.RequiredValue, "%_")
	return lp
}
