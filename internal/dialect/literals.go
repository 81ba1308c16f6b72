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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
	timeLayout      = "15:04:05"
)

var inputLayouts = []string{timestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout}

// literalSyntax holds the pieces of value rendering that differ per dialect.
type literalSyntax struct {
	dialect   DatabaseType
	quote     func(s, targetType string) string
	boolean   func(b bool) string
	date      func(t time.Time) string
	timestamp func(t time.Time) string
	binary    func(b []byte) string
}

func (l literalSyntax) format(value any, targetType string) (string, error) {
	if value == nil {
		return "NULL", nil
	}
	fail := func(format string, args ...any) (string, error) {
		return "", &FormatError{Dialect: l.dialect, Value: value, TargetType: targetType, Msg: fmt.Sprintf(format, args...)}
	}

	kind := schema.KindOf(targetType)
	if kind == schema.KindUnknown {
		kind = kindOfValue(value)
	}
	switch kind {
	case schema.KindBoolean:
		b, ok := toBool(value)
		if !ok {
			return fail("not a boolean")
		}
		return l.boolean(b), nil
	case schema.KindInteger:
		n, ok := toInt(value)
		if !ok {
			return fail("not an integer")
		}
		return strconv.FormatInt(n, 10), nil
	case schema.KindDecimal:
		s, ok := toDecimal(value)
		if !ok {
			return fail("not a finite number")
		}
		return s, nil
	case schema.KindDate:
		t, ok := toTime(value)
		if !ok {
			return fail("not a date")
		}
		return l.date(t), nil
	case schema.KindDateTime:
		t, ok := toTime(value)
		if !ok {
			return fail("not a timestamp")
		}
		return l.timestamp(t), nil
	case schema.KindTime:
		t, ok := toClock(value)
		if !ok {
			return fail("not a time of day")
		}
		return l.quote(t.Format(timeLayout), targetType), nil
	case schema.KindBinary:
		b, ok := toBytes(value)
		if !ok {
			return fail("not binary data")
		}
		return l.binary(b), nil
	case schema.KindJSON:
		s, ok := toJSON(value)
		if !ok {
			return fail("not JSON")
		}
		return l.quote(s, targetType), nil
	}

	s, ok := toText(value)
	if !ok {
		return fail("unsupported value type")
	}
	if strings.IndexByte(s, 0) >= 0 {
		return fail("string contains a NUL byte")
	}
	return l.quote(s, targetType), nil
}

func kindOfValue(value any) schema.Kind {
	switch value.(type) {
	case bool:
		return schema.KindBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return schema.KindInteger
	case float32, float64:
		return schema.KindDecimal
	case time.Time:
		return schema.KindDateTime
	case []byte:
		return schema.KindBinary
	}
	return schema.KindString
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "1", "yes", "y":
			return true, true
		case "false", "f", "0", "no", "n":
			return false, true
		}
		return false, false
	}
	if n, ok := toInt(value); ok && (n == 0 || n == 1) {
		return n == 1, true
	}
	return false, false
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), uint64(v) <= math.MaxInt64
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float32:
		return toInt(float64(v))
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toDecimal(value any) (string, bool) {
	switch v := value.(type) {
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 32), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case string:
		s := strings.TrimSpace(v)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return s, true
	case bool:
		return "", false
	}
	if n, ok := toInt(value); ok {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range inputLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func toClock(value any) (time.Time, bool) {
	if s, ok := value.(string); ok {
		t, err := time.Parse(timeLayout, strings.TrimSpace(s))
		return t, err == nil
	}
	return toTime(value)
}

func toBytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}

func toJSON(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, json.Valid([]byte(v))
	case []byte:
		return string(v), json.Valid(v)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func toText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return v.Format(timestampLayout), true
	case fmt.Stringer:
		return v.String(), true
	}
	if n, ok := toInt(value); ok {
		return strconv.FormatInt(n, 10), true
	}
	if s, ok := toDecimal(value); ok {
		return s, true
	}
	return "", false
}

// quoteDoubled wraps s in single quotes, doubling embedded quotes.
func quoteDoubled(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func trueFalse(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func oneZero(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
