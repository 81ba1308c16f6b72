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

// Package constraint extracts typed predicate constraints from raw SQL text.
// Extraction is lexical and independent of the query parser, so it keeps
// working on statements no grammar accepts.
package constraint

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/sqltext"
)

// input is the prepared statement handed to every sub-extractor. Matches that
// start inside a subquery body are skipped by all kinds except EXISTS.
type input struct {
	text       sqltext.Text
	subqueries []sqltext.Span
}

func (in input) outside(pos int) bool {
	return !sqltext.InSpans(pos, in.subqueries)
}

type subExtractor struct {
	name string
	run  func(in input, b *Builder)
}

var subExtractors = []subExtractor{
	{"like", extractLikePatterns},
	{"boolean", extractBooleans},
	{"date", extractDates},
	{"join", extractJoinPredicates},
	{"in", extractInClauses},
	{"between", extractBetweens},
	{"null", extractNullChecks},
	{"exists", extractExists},
}

// Extractor runs every sub-extractor over a statement.
type Extractor struct {
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used to report failing sub-extractors.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractAllConstraints never fails. A sub-extractor that breaks contributes
// nothing and the others still run.
func (e *Extractor) ExtractAllConstraints(sql string) *ConstraintSet {
	text := sqltext.Prepare(sql)
	in := input{text: text, subqueries: text.SubquerySpans()}
	var all Builder
	for _, sub := range subExtractors {
		part, err := runGuarded(sub, in)
		if err != nil {
			e.logger.Warn("constraint extractor failed", zap.String("kind", sub.name), zap.Error(err))
			continue
		}
		all.merge(part)
	}
	return all.Build()
}

func runGuarded(sub subExtractor, in input) (b *Builder, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%s: %v", sub.name, r)
		}
	}()
	b = &Builder{}
	sub.run(in, b)
	return b, nil
}

func (b *Builder) merge(o *Builder) {
	b.set.likePatterns = append(b.set.likePatterns, o.set.likePatterns...)
	b.set.booleans = append(b.set.booleans, o.set.booleans...)
	b.set.dates = append(b.set.dates, o.set.dates...)
	b.set.joins = append(b.set.joins, o.set.joins...)
	b.set.inClauses = append(b.set.inClauses, o.set.inClauses...)
	b.set.betweens = append(b.set.betweens, o.set.betweens...)
	b.set.nulls = append(b.set.nulls, o.set.nulls...)
	b.set.exists = append(b.set.exists, o.set.exists...)
}

var defaultExtractor = NewExtractor()

// ExtractAllConstraints extracts with a default extractor.
func ExtractAllConstraints(sql string) *ConstraintSet {
	return defaultExtractor.ExtractAllConstraints(sql)
}
