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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestState(cfg RotationConfig) (*RotationState, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)}
	return NewRotationState(cfg, WithClock(clock.now)), clock
}

func TestReserveRotatesModels(t *testing.T) {
	s, _ := newTestState(RotationConfig{Models: []string{"a", "b", "c"}})

	var got []string
	for i := 0; i < 4; i++ {
		r, err := s.Reserve()
		require.NoError(t, err)
		got = append(got, r.Model)
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
	assert.Equal(t, 1, s.Stats().Cycle)
}

func TestReserveDailyLimit(t *testing.T) {
	s, clock := newTestState(RotationConfig{Models: []string{"a"}, DailyLimit: 2})

	for i := 0; i < 2; i++ {
		_, err := s.Reserve()
		require.NoError(t, err)
	}
	_, err := s.Reserve()
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, "2025-03-10", s.Stats().Day)

	clock.advance(2 * time.Minute)
	_, err = s.Reserve()
	require.NoError(t, err)
	st := s.Stats()
	assert.Equal(t, "2025-03-11", st.Day)
	assert.Equal(t, 1, st.CallsToday)
}

func TestReserveMinInterval(t *testing.T) {
	s, clock := newTestState(RotationConfig{Models: []string{"a"}, MinInterval: 4 * time.Second})

	r, err := s.Reserve()
	require.NoError(t, err)
	assert.Zero(t, r.Wait)

	r, err = s.Reserve()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, r.Wait)

	// The second slot is booked, so a third caller queues behind it.
	clock.advance(time.Second)
	r, err = s.Reserve()
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, r.Wait)

	clock.advance(time.Minute)
	r, err = s.Reserve()
	require.NoError(t, err)
	assert.Zero(t, r.Wait)
}

func TestUnhealthyModelSkipped(t *testing.T) {
	s, _ := newTestState(RotationConfig{Models: []string{"a", "b"}, MaxFailures: 2})

	r, err := s.Reserve()
	require.NoError(t, err)
	require.Equal(t, "a", r.Model)
	s.Failure("a")
	s.Failure("a")
	assert.Equal(t, []string{"a"}, s.Stats().Unhealthy)

	// "a" was marked in cycle 0 and stays out until the rotation wraps.
	r, err = s.Reserve()
	require.NoError(t, err)
	assert.Equal(t, "b", r.Model)

	r, err = s.Reserve()
	require.NoError(t, err)
	assert.Equal(t, "a", r.Model)
	assert.Empty(t, s.Stats().Unhealthy)
}

func TestSuccessResetsFailures(t *testing.T) {
	s, _ := newTestState(RotationConfig{Models: []string{"a"}, MaxFailures: 2})
	s.Failure("a")
	s.Success("a")
	s.Failure("a")
	assert.Empty(t, s.Stats().Unhealthy)
}

func TestNoHealthyModel(t *testing.T) {
	s, _ := newTestState(RotationConfig{Models: []string{"a"}, MaxFailures: 1})

	_, err := s.Reserve()
	require.NoError(t, err)
	s.Failure("a")

	_, err = s.Reserve()
	assert.ErrorIs(t, err, ErrNoHealthyModel)

	r, err := s.Reserve()
	require.NoError(t, err)
	assert.Equal(t, "a", r.Model)

	_, err = NewRotationState(RotationConfig{}).Reserve()
	assert.ErrorIs(t, err, ErrNoHealthyModel)
}

func TestReserveConcurrent(t *testing.T) {
	s, _ := newTestState(RotationConfig{Models: []string{"a", "b"}, DailyLimit: 50})

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Reserve(); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, granted)
	assert.Equal(t, 50, s.Stats().CallsToday)
}
