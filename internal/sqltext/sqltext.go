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

// Package sqltext holds lexical helpers shared by the lenient SQL scanners.
// All helpers preserve byte offsets so that matches found on a masked copy can
// be sliced out of the original statement.
package sqltext

import (
	"strings"
)

// Regular expression fragments used by the scanners.
const (
	Ident     = "(?:`[^`]+`|\"[^\"]+\"|\\[[^\\]]+\\]|[A-Za-z_][A-Za-z0-9_$]*)"
	ColumnRef = `(?:(` + Ident + `)\s*\.\s*)?(` + Ident + `)`
	String    = `N?'(?:[^']|'')*'`
	Number    = `-?\d+(?:\.\d+)?`
	Literal   = `(?:` + String + `|` + Number + `|(?i:TRUE|FALSE|NULL)\b)`
)

// Text is a statement prepared for regex scanning.
type Text struct {
	// Original is the statement with comments blanked out.
	Original string
	// Masked additionally blanks the contents of single-quoted literals.
	Masked string
}

// Prepare blanks comments and masks literals. Both fields have the same length
// as the input.
func Prepare(sql string) Text {
	original := BlankComments(sql)
	return Text{Original: original, Masked: MaskLiterals(original)}
}

// Slice returns the original text between two offsets of the masked text.
func (t Text) Slice(start, end int) string {
	if start < 0 || end < start || end > len(t.Original) {
		return ""
	}
	return t.Original[start:end]
}

// BlankComments replaces `--` line comments and `/* */` block comments with
// spaces. Newlines and quoted sections are kept.
func BlankComments(sql string) string {
	b := []byte(sql)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '-' && i+1 < len(b) && b[i+1] == '-':
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			j := i
			for ; j < len(b); j++ {
				if b[j] == '*' && j+1 < len(b) && b[j+1] == '/' {
					b[j], b[j+1] = ' ', ' '
					j++
					break
				}
				if b[j] != '\n' {
					b[j] = ' '
				}
			}
			i = j
		}
	}
	return string(b)
}

// MaskLiterals blanks the contents of single-quoted string literals, keeping
// the quotes themselves. A doubled quote inside a literal is an escape.
func MaskLiterals(sql string) string {
	b := []byte(sql)
	in := false
	for i := 0; i < len(b); i++ {
		if b[i] != '\'' {
			if in {
				b[i] = ' '
			}
			continue
		}
		if !in {
			in = true
			continue
		}
		if i+1 < len(b) && b[i+1] == '\'' {
			b[i], b[i+1] = ' ', ' '
			i++
			continue
		}
		in = false
	}
	return string(b)
}

// CaptureParens returns the text between the parenthesis at open and its
// matching close, along with the offset just past the close. Parentheses inside
// quoted sections are ignored. ok is false when the group is unterminated.
func CaptureParens(s string, open int) (inner string, end int, ok bool) {
	if open < 0 || open >= len(s) || s[open] != '(' {
		return "", open, false
	}
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[open+1 : i], i + 1, true
			}
		}
	}
	return s[open+1:], len(s), false
}

// SplitTopLevel splits s on sep, ignoring separators nested in parentheses or
// quotes. Parts are trimmed and empty parts dropped.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			parts = appendTrimmed(parts, s[start:i])
			start = i + 1
		}
	}
	return appendTrimmed(parts, s[start:])
}

func appendTrimmed(parts []string, p string) []string {
	if p = strings.TrimSpace(p); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// IsQuoted reports whether lit is a quoted string literal.
func IsQuoted(lit string) bool {
	lit = strings.TrimSpace(lit)
	if len(lit) > 1 && (lit[0] == 'N' || lit[0] == 'n') && lit[1] == '\'' {
		lit = lit[1:]
	}
	if len(lit) < 2 {
		return false
	}
	first, last := lit[0], lit[len(lit)-1]
	return first == last && (first == '\'' || first == '"')
}

// Unquote strips string literal quoting: 'x', N'x' and "x". Doubled quotes are
// collapsed. Anything else is returned trimmed.
func Unquote(lit string) string {
	lit = strings.TrimSpace(lit)
	if !IsQuoted(lit) {
		return lit
	}
	if lit[0] == 'N' || lit[0] == 'n' {
		lit = lit[1:]
	}
	q := lit[:1]
	return strings.ReplaceAll(lit[1:len(lit)-1], q+q, q)
}

// UnquoteIdent strips identifier quoting: `x`, "x" and [x].
func UnquoteIdent(ident string) string {
	ident = strings.TrimSpace(ident)
	if len(ident) < 2 {
		return ident
	}
	switch first, last := ident[0], ident[len(ident)-1]; {
	case first == '`' && last == '`', first == '"' && last == '"', first == '[' && last == ']':
		return ident[1 : len(ident)-1]
	}
	return ident
}

// NormalizeLiteral turns a literal token into its value form: strings are
// unquoted and boolean keywords upper-cased.
func NormalizeLiteral(lit string) string {
	lit = strings.TrimSpace(lit)
	if IsQuoted(lit) {
		return Unquote(lit)
	}
	switch strings.ToUpper(lit) {
	case "TRUE", "FALSE", "NULL":
		return strings.ToUpper(lit)
	}
	return lit
}
