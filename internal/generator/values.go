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
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/sqltext"
)

var (
	timeLayouts = []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	defaultFrom = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultTo   = time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
)

// coerce converts a SQL literal to the Go value used for kind.
func coerce(kind schema.Kind, s string) (any, bool) {
	s = strings.TrimSpace(s)
	switch kind {
	case schema.KindInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
		if b, ok := parseBool(s); ok {
			if b {
				return int64(1), true
			}
			return int64(0), true
		}
		return nil, false
	case schema.KindDecimal:
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case schema.KindBoolean:
		b, ok := parseBool(s)
		return b, ok
	case schema.KindDate:
		t, ok := parseTime(s)
		if !ok {
			return nil, false
		}
		return truncateDay(t), true
	case schema.KindDateTime:
		t, ok := parseTime(s)
		return t, ok
	case schema.KindTime:
		if _, err := time.Parse("15:04:05", s); err != nil {
			return nil, false
		}
		return s, true
	}
	return s, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "1", "T", "Y", "YES":
		return true, true
	case "FALSE", "0", "F", "N", "NO":
		return false, true
	}
	return false, false
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// keyOf renders v for equality and uniqueness checks.
func keyOf(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00null"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	}
	return ""
}

func equalValues(a, b any) bool {
	if x, ok := a.([]byte); ok {
		if y, ok := b.([]byte); ok {
			return bytes.Equal(x, y)
		}
	}
	return keyOf(a) == keyOf(b)
}

func textOf(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02 15:04:05")
	}
	return keyOf(v)
}

// satisfies reports whether v meets every predicate of r.
func satisfies(kind schema.Kind, v any, r *columnRule) bool {
	if r == nil {
		return true
	}
	if v == nil {
		return !r.notNull && len(r.eq) == 0 && !r.hasIn
	}
	if len(r.eq) > 0 {
		want, ok := coerce(kind, r.eq[0])
		if !ok || !equalValues(v, want) {
			return false
		}
	}
	if r.hasIn {
		found := false
		for _, s := range r.in {
			if want, ok := coerce(kind, s); ok && equalValues(v, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, s := range append(append([]string(nil), r.neq...), r.notIn...) {
		if other, ok := coerce(kind, s); ok && equalValues(v, other) {
			return false
		}
	}
	if len(r.likes) > 0 || len(r.notLikes) > 0 {
		text := textOf(v)
		for _, l := range r.likes {
			if !sqltext.MatchLike(text, l.Pattern) {
				return false
			}
		}
		for _, p := range r.notLikes {
			if sqltext.MatchLike(text, p) {
				return false
			}
		}
	}
	switch kind {
	case schema.KindInteger, schema.KindDecimal:
		f, ok := toFloat(v)
		if !ok {
			return false
		}
		for _, b := range r.lower {
			if lo, err := strconv.ParseFloat(strings.TrimSpace(b.value), 64); err == nil && (f < lo || (!b.inclusive && f == lo)) {
				return false
			}
		}
		for _, b := range r.upper {
			if hi, err := strconv.ParseFloat(strings.TrimSpace(b.value), 64); err == nil && (f > hi || (!b.inclusive && f == hi)) {
				return false
			}
		}
	case schema.KindDate, schema.KindDateTime:
		t, ok := v.(time.Time)
		if !ok {
			return false
		}
		if r.year != 0 && t.Year() != r.year {
			return false
		}
		for _, b := range r.lower {
			if lo, ok := coerce(kind, b.value); ok && (t.Before(lo.(time.Time)) || (!b.inclusive && t.Equal(lo.(time.Time)))) {
				return false
			}
		}
		for _, b := range r.upper {
			if hi, ok := coerce(kind, b.value); ok && (t.After(hi.(time.Time)) || (!b.inclusive && t.Equal(hi.(time.Time)))) {
				return false
			}
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// intBounds returns the closed integer range allowed by r. ok is false when
// neither side is bounded.
func intBounds(r *columnRule) (lo, hi int64, ok bool) {
	lo, hi = math.MinInt64, math.MaxInt64
	loSet, hiSet := false, false
	for _, b := range r.lower {
		f, err := strconv.ParseFloat(strings.TrimSpace(b.value), 64)
		if err != nil {
			continue
		}
		v := int64(math.Ceil(f))
		if !b.inclusive && float64(v) == f {
			v++
		}
		if !loSet || v > lo {
			lo, loSet = v, true
		}
	}
	for _, b := range r.upper {
		f, err := strconv.ParseFloat(strings.TrimSpace(b.value), 64)
		if err != nil {
			continue
		}
		v := int64(math.Floor(f))
		if !b.inclusive && float64(v) == f {
			v--
		}
		if !hiSet || v < hi {
			hi, hiSet = v, true
		}
	}
	return lo, hi, loSet && hiSet
}

// intRange narrows intBounds to a span suitable for sampling.
func intRange(r *columnRule) (int64, int64) {
	var lo, hi int64 = 1, 100
	if r == nil {
		return lo, hi
	}
	blo, bhi, _ := intBounds(r)
	switch {
	case blo != math.MinInt64 && bhi != math.MaxInt64:
		return blo, bhi
	case blo != math.MinInt64:
		return blo, blo + 99
	case bhi != math.MaxInt64:
		if bhi >= 1 {
			return 1, bhi
		}
		return bhi - 99, bhi
	}
	return lo, hi
}

// floatRange returns the closed range for a decimal column with the given
// scale.
func floatRange(r *columnRule, scale int) (float64, float64) {
	step := math.Pow(10, -float64(scale))
	lo, hi := math.Inf(-1), math.Inf(1)
	if r != nil {
		for _, b := range r.lower {
			if f, err := strconv.ParseFloat(strings.TrimSpace(b.value), 64); err == nil {
				if !b.inclusive {
					f += step
				}
				lo = math.Max(lo, f)
			}
		}
		for _, b := range r.upper {
			if f, err := strconv.ParseFloat(strings.TrimSpace(b.value), 64); err == nil {
				if !b.inclusive {
					f -= step
				}
				hi = math.Min(hi, f)
			}
		}
	}
	switch {
	case math.IsInf(lo, -1) && math.IsInf(hi, 1):
		return 1, 1000
	case math.IsInf(hi, 1):
		return lo, lo + 999
	case math.IsInf(lo, -1):
		return math.Min(1, hi), hi
	}
	return lo, hi
}

func roundTo(f float64, scale int) float64 {
	p := math.Pow(10, float64(scale))
	return math.Round(f*p) / p
}

// timeRange returns the closed range for a date or timestamp column.
func timeRange(kind schema.Kind, r *columnRule) (time.Time, time.Time) {
	step := time.Second
	if kind == schema.KindDate {
		step = 24 * time.Hour
	}
	var lo, hi time.Time
	if r != nil {
		if r.year != 0 {
			lo = time.Date(r.year, 1, 1, 0, 0, 0, 0, time.UTC)
			hi = time.Date(r.year, 12, 31, 23, 59, 59, 0, time.UTC)
		}
		for _, b := range r.lower {
			if v, ok := parseTime(b.value); ok {
				if !b.inclusive {
					v = v.Add(step)
				}
				if lo.IsZero() || v.After(lo) {
					lo = v
				}
			}
		}
		for _, b := range r.upper {
			if v, ok := parseTime(b.value); ok {
				if !b.inclusive {
					v = v.Add(-step)
				}
				if hi.IsZero() || v.Before(hi) {
					hi = v
				}
			}
		}
	}
	switch {
	case lo.IsZero() && hi.IsZero():
		lo, hi = defaultFrom, defaultTo
	case hi.IsZero():
		hi = lo.AddDate(1, 0, 0)
	case lo.IsZero():
		lo = hi.AddDate(-1, 0, 0)
	}
	if kind == schema.KindDate {
		lo = truncateDay(lo.Add(24*time.Hour - time.Nanosecond))
		hi = truncateDay(hi)
	}
	if hi.Before(lo) {
		hi = lo
	}
	return lo, hi
}
