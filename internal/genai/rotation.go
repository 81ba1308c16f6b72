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
package genai

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQuotaExhausted is returned once the daily call budget is spent.
	ErrQuotaExhausted = errors.New("daily model call quota exhausted")
	// ErrNoHealthyModel is returned when every model in the rotation is
	// marked unhealthy.
	ErrNoHealthyModel = errors.New("no healthy model available")
)

// RotationConfig sets the limits of a RotationState.
type RotationConfig struct {
	Models []string
	// DailyLimit caps calls per calendar day. Zero means unlimited.
	DailyLimit int
	// MinInterval is the minimum delay between the start of two calls.
	MinInterval time.Duration
	// MaxFailures consecutive failures mark a model unhealthy.
	MaxFailures int
}

// Reservation is a granted call slot. The caller waits Wait before calling
// Model.
type Reservation struct {
	Model string
	Wait  time.Duration
}

// Stats is a point-in-time copy of the rotation counters.
type Stats struct {
	Day        string
	CallsToday int
	Cycle      int
	Unhealthy  []string
}

// RotationState tracks quota usage, call pacing and model health. It is
// safe for concurrent use and may be shared between clients.
type RotationState struct {
	mu  sync.Mutex
	cfg RotationConfig
	now func() time.Time
	log *zap.Logger

	day        string
	callsToday int
	next       time.Time
	index      int
	cycle      int
	failures   map[string]int
	// unhealthy maps a model to the cycle it was marked in.
	unhealthy map[string]int
}

// RotationOption configures a RotationState.
type RotationOption func(*RotationState)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RotationOption {
	return func(s *RotationState) {
		s.now = now
	}
}

// WithRotationLogger sets the logger used for health changes.
func WithRotationLogger(l *zap.Logger) RotationOption {
	return func(s *RotationState) {
		if l != nil {
			s.log = l
		}
	}
}

func NewRotationState(cfg RotationConfig, opts ...RotationOption) *RotationState {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	s := &RotationState{
		cfg:       cfg,
		now:       time.Now,
		log:       zap.NewNop(),
		failures:  make(map[string]int),
		unhealthy: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RotationState) healthy(model string) bool {
	c, marked := s.unhealthy[model]
	return !marked || s.cycle > c
}

// advance moves the rotation index, starting a new cycle when it wraps.
func (s *RotationState) advance() {
	s.index++
	if s.index >= len(s.cfg.Models) {
		s.index = 0
		s.cycle++
	}
}

// Reserve picks the next healthy model and books a call slot for it. A model
// marked unhealthy is skipped until the rotation has wrapped past it.
func (s *RotationState) Reserve() (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if day := now.UTC().Format("2006-01-02"); day != s.day {
		s.day = day
		s.callsToday = 0
	}
	if s.cfg.DailyLimit > 0 && s.callsToday >= s.cfg.DailyLimit {
		return Reservation{}, ErrQuotaExhausted
	}

	model := ""
	for tries := 0; tries < len(s.cfg.Models); tries++ {
		m := s.cfg.Models[s.index]
		ok := s.healthy(m)
		s.advance()
		if ok {
			model = m
			break
		}
	}
	if model == "" {
		return Reservation{}, ErrNoHealthyModel
	}
	if _, marked := s.unhealthy[model]; marked {
		delete(s.unhealthy, model)
		s.log.Info("Model back in rotation", zap.String("model", model))
	}

	start := now
	if s.next.After(start) {
		start = s.next
	}
	s.next = start.Add(s.cfg.MinInterval)
	s.callsToday++
	return Reservation{Model: model, Wait: start.Sub(now)}, nil
}

// Success clears the failure count of model.
func (s *RotationState) Success(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, model)
}

// Failure records a failed call. Enough consecutive failures take the model
// out of rotation for the rest of the cycle.
func (s *RotationState) Failure(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[model]++
	if s.failures[model] >= s.cfg.MaxFailures {
		delete(s.failures, model)
		s.unhealthy[model] = s.cycle
		s.log.Warn("Model marked unhealthy", zap.String("model", model), zap.Int("cycle", s.cycle))
	}
}

// Stats returns a copy of the current counters.
func (s *RotationState) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Day: s.day, CallsToday: s.callsToday, Cycle: s.cycle}
	for _, m := range s.cfg.Models {
		if _, marked := s.unhealthy[m]; marked {
			st.Unhealthy = append(st.Unhealthy, m)
		}
	}
	return st
}
