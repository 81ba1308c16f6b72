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

// Package query turns raw SQL text into a QueryModel. Parsing never fails: a
// chain of strategies is tried in order and the lenient scanner at the end of
// the chain always yields a (possibly empty) model.
package query

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Strategy is one attempt at understanding a statement.
type Strategy interface {
	Name() string
	Parse(sql string) (*QueryModel, error)
}

// Parser runs an ordered chain of strategies and returns the first success.
type Parser struct {
	strategies []Strategy
	logger     *zap.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used to report strategy fallbacks.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithStrategies replaces the structural strategies. The scanner is always
// appended as the last resort.
func WithStrategies(s ...Strategy) Option {
	return func(p *Parser) {
		p.strategies = s
	}
}

// DefaultStrategies returns the structural strategies in preference order.
func DefaultStrategies() []Strategy {
	return []Strategy{vitessStrategy{}, tidbStrategy{}}
}

// NewParser builds a parser with the default strategy chain.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		strategies: DefaultStrategies(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseQuery returns the model of the first strategy that succeeds. Empty or
// malformed input produces an empty or partial model, never nil.
func (p *Parser) ParseQuery(sql string) *QueryModel {
	if strings.TrimSpace(sql) == "" {
		return &QueryModel{Strategy: scannerName}
	}
	for _, s := range p.strategies {
		model, err := attempt(s, sql)
		if err == nil {
			model.Strategy = s.Name()
			return model
		}
		p.logger.Debug("parse strategy failed, falling back",
			zap.String("strategy", s.Name()), zap.Error(err))
	}
	model, err := attempt(scannerStrategy{}, sql)
	if err != nil {
		p.logger.Debug("scanner produced a partial model", zap.Error(err))
	}
	if model == nil {
		model = &QueryModel{}
	}
	model.Strategy = scannerName
	return model
}

// attempt runs one strategy, converting panics from third-party parsers into
// errors.
func attempt(s Strategy, sql string) (model *QueryModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("%s strategy panicked: %v", s.Name(), r)
		}
	}()
	return s.Parse(sql)
}

var defaultParser = NewParser()

// ParseQuery parses sql with the default strategy chain.
func ParseQuery(sql string) *QueryModel {
	return defaultParser.ParseQuery(sql)
}
