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
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/constraint"
	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var fillerWords = []string{"Nova", "Atlas", "Orion", "Vega", "Lumen", "Apex", "Delta", "Sierra", "Nimbus", "Zephyr"}

// title upper-cases the first letter of every word. A Caser keeps state, so
// one is made per call.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

type likeToken struct {
	ch   rune
	wild bool
}

// tokenizeLike splits a LIKE pattern into literal runes and % or _ wildcards.
// A backslash makes the next rune literal.
func tokenizeLike(pattern string) []likeToken {
	var toks []likeToken
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\' && i+1 < len(runes):
			i++
			toks = append(toks, likeToken{ch: runes[i]})
		case c == '%' || c == '_':
			toks = append(toks, likeToken{ch: c, wild: true})
		default:
			toks = append(toks, likeToken{ch: c})
		}
	}
	return toks
}

// likeParts holds a pattern split into its leading wildcard run, the core
// and the trailing wildcard run. Wildcards inside the core are kept as
// literal characters, each of which matches itself.
type likeParts struct {
	lead, trail []likeToken
	core        string
}

func splitLike(pattern string) likeParts {
	toks := tokenizeLike(pattern)
	start, end := 0, len(toks)
	for start < end && toks[start].wild {
		start++
	}
	for end > start && toks[end-1].wild {
		end--
	}
	var core strings.Builder
	for _, t := range toks[start:end] {
		core.WriteRune(t.ch)
	}
	return likeParts{lead: toks[:start], trail: toks[end:], core: core.String()}
}

// fillRun renders a wildcard run: each _ becomes one character and the
// first % becomes fill.
func fillRun(run []likeToken, fill string, upper bool, k int) string {
	var b strings.Builder
	used := false
	for i, t := range run {
		if t.ch == '_' {
			c := 'a' + rune((k+i)%26)
			if upper {
				c = unicode.ToUpper(c)
			}
			b.WriteRune(c)
			continue
		}
		if !used {
			b.WriteString(fill)
			used = true
		}
	}
	return b.String()
}

func hasPercent(run []likeToken) bool {
	for _, t := range run {
		if t.ch == '%' {
			return true
		}
	}
	return false
}

// instantiateLike builds a value matching p. The k-th value differs from
// other ks wherever p leaves room for it. maxLen of 0 means unbounded.
func instantiateLike(p constraint.LikePattern, k int, word string, maxLen int) string {
	parts := splitLike(p.Pattern)
	core := parts.core
	if p.Type == constraint.Contains && !strings.Contains(p.RequiredValue, `\`) {
		core = p.RequiredValue
		parts = likeParts{lead: tokenizeLike("%"), trail: tokenizeLike("%"), core: core}
	}
	upper := core != "" && strings.ToUpper(core) == core
	num := strconv.Itoa(k)

	// Fill is set apart from the core by a space only where both meet on a
	// letter or digit, so "%@gmail.com" gives "Nova1@gmail.com".
	leadSep, trailSep := "", ""
	if core == "" || spaced("a", core) {
		leadSep = " "
	}
	if core == "" || spaced(core, "a") {
		trailSep = " "
	}
	leadFill, trailFill := "", ""
	switch {
	case hasPercent(parts.trail):
		trailFill = num
		if !upper || hasPercent(parts.lead) {
			trailFill = trailSep + num
		}
		if hasPercent(parts.lead) {
			leadFill = word + leadSep
		}
	case hasPercent(parts.lead):
		leadFill = word + num
		if !upper {
			leadFill += leadSep
		}
	}
	lead := fillRun(parts.lead, leadFill, upper, k)
	trail := fillRun(parts.trail, trailFill, upper, k)

	if maxLen > 0 {
		if over := len(lead) + len(core) + len(trail) - maxLen; over > 0 {
			lead = shrinkFill(parts.lead, lead, over, true)
			if over = len(lead) + len(core) + len(trail) - maxLen; over > 0 {
				trail = shrinkFill(parts.trail, trail, over, false)
			}
		}
	}
	return lead + core + trail
}

// shrinkFill cuts up to over bytes from the % portion of a rendered run,
// keeping the characters that stand for _ wildcards.
func shrinkFill(run []likeToken, rendered string, over int, fromStart bool) string {
	underscores := 0
	for _, t := range run {
		if t.ch == '_' {
			underscores++
		}
	}
	keep := len(rendered) - over
	if keep < underscores {
		keep = underscores
	}
	if keep >= len(rendered) {
		return rendered
	}
	if fromStart {
		return rendered[len(rendered)-keep:]
	}
	return rendered[:keep]
}

// combineLikes builds one value for several LIKE patterns on a column: a
// shared prefix, the contained fragments and a shared suffix.
func combineLikes(likes []constraint.LikePattern, k int, word string, maxLen int) string {
	if len(likes) == 1 {
		return instantiateLike(likes[0], k, word, maxLen)
	}
	var prefix, suffix string
	var middle []string
	for _, l := range likes {
		switch l.Type {
		case constraint.Exact:
			return instantiateLike(l, k, word, maxLen)
		case constraint.StartsWith:
			if s := instantiateLike(l, k, "", 0); len(s) > len(prefix) {
				prefix = strings.TrimSpace(strings.TrimSuffix(s, strconv.Itoa(k)))
			}
		case constraint.EndsWith:
			if s := instantiateLike(l, k, "", 0); len(s) > len(suffix) {
				suffix = strings.TrimSpace(strings.TrimPrefix(s, strconv.Itoa(k)))
			}
		default:
			middle = append(middle, l.RequiredValue)
		}
	}
	parts := []string{}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, middle...)
	parts = append(parts, word+strconv.Itoa(k))
	if suffix != "" {
		parts = append(parts, suffix)
	}
	s := joinWords(parts)
	if maxLen > 0 && len(s) > maxLen {
		s = fitLength(s, maxLen)
	}
	return s
}

// spaced reports whether left and right meet on a letter or digit on both
// sides, where run-together text would read as one word.
func spaced(left, right string) bool {
	l, r := []rune(left), []rune(right)
	if len(l) == 0 || len(r) == 0 {
		return false
	}
	wordy := func(c rune) bool { return unicode.IsLetter(c) || unicode.IsDigit(c) }
	return wordy(l[len(l)-1]) && wordy(r[0])
}

func joinWords(parts []string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 && spaced(parts[i-1], p) {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

// readableString derives a value from the column name, e.g. "First Name 3"
// or "user3@example.com". k keeps values of one batch apart.
func readableString(table, column string, k int) string {
	col := strings.ToLower(column)
	noun := strings.ToLower(inflection.Singular(table))
	switch {
	case strings.Contains(col, "email"):
		return fmt.Sprintf("%s%d@example.com", strings.ReplaceAll(noun, " ", "_"), k)
	case strings.Contains(col, "phone"):
		return fmt.Sprintf("555-%04d", k%10000)
	case strings.Contains(col, "url") || strings.Contains(col, "website"):
		return fmt.Sprintf("https://example.com/%s/%d", noun, k)
	case strings.HasSuffix(col, "code") || strings.HasSuffix(col, "sku"):
		prefix := strings.ToUpper(noun)
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		return fmt.Sprintf("%s%03d", prefix, k)
	case col == "name" || col == "title" || col == "label":
		return fmt.Sprintf("%s %d", title(humanize(noun)), k)
	}
	return fmt.Sprintf("%s %d", title(humanize(column)), k)
}

// humanize splits snake_case and camelCase names into lower-case words.
func humanize(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == '.':
			b.WriteByte(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// fitLength trims s to maxLen bytes, keeping its trailing number so values
// stay distinct.
func fitLength(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	digits := s[i:]
	if len(digits) >= maxLen {
		return digits[len(digits)-maxLen:]
	}
	return s[:maxLen-len(digits)] + digits
}
