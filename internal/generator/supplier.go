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
	"time"

	"go.uber.org/zap"
)

// DefaultSupplierTimeout bounds each call to a ValueSupplier.
const DefaultSupplierTimeout = 5 * time.Second

// SuggestionRequest asks for Count candidate values of one column.
type SuggestionRequest struct {
	Table     string
	Column    string
	Type      string
	MaxLength int
	Count     int
	// Examples holds values already present in the column.
	Examples []string
}

// ValueSupplier proposes realistic column values. Suggestions are advisory:
// each one is validated before use and rejected ones are replaced by
// generated values.
type ValueSupplier interface {
	SuggestValues(ctx context.Context, req SuggestionRequest) ([]string, error)
}

// SupplierFunc adapts a function to ValueSupplier.
type SupplierFunc func(ctx context.Context, req SuggestionRequest) ([]string, error)

func (f SupplierFunc) SuggestValues(ctx context.Context, req SuggestionRequest) ([]string, error) {
	return f(ctx, req)
}

type suggestion struct {
	values []string
	err    error
}

// suggest calls the supplier and gives up after the configured timeout, even
// when the supplier ignores cancellation. Failures yield no suggestions.
func (g *Generator) suggest(ctx context.Context, req SuggestionRequest) []string {
	if g.supplier == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.supplierTimeout)
	defer cancel()

	done := make(chan suggestion, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- suggestion{err: fmt.Errorf("supplier panicked: %v", r)}
			}
		}()
		values, err := g.supplier.SuggestValues(ctx, req)
		done <- suggestion{values: values, err: err}
	}()

	select {
	case s := <-done:
		if s.err != nil {
			g.logger.Warn("Value supplier failed, using generated values",
				zap.String("table", req.Table), zap.String("column", req.Column), zap.Error(s.err))
			return nil
		}
		return s.values
	case <-ctx.Done():
		g.logger.Warn("Value supplier timed out, using generated values",
			zap.String("table", req.Table), zap.String("column", req.Column), zap.Duration("timeout", g.supplierTimeout))
		return nil
	}
}
