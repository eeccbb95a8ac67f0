/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ratelimit implements the per-route, per-key fixed-window limiters
// of the Rate & Overload Guard, plus process-health-based overload shedding.
//
// Buckets are process-local. Limiter is a small interface so a multi-node
// deployment can later swap in a shared implementation without touching
// callers.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter grants or denies a request keyed by an arbitrary string (IP, a
// compound "ip|room" key, or a recipient address), inside a fixed window.
type Limiter interface {
	// Allow reports whether key may proceed, and if not, how long until
	// the window resets.
	Allow(key string, now time.Time) (ok bool, retryAfter time.Duration)
}

// Window is a fixed-window counter limiter: Max requests per Period per key.
// It is the process-local default Limiter implementation.
type Window struct {
	Max    int
	Period time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	// lastSweep bounds how often Allow opportunistically evicts expired
	// buckets, so the map does not grow without bound under many distinct
	// keys.
	lastSweep time.Time
}

type bucket struct {
	count      int
	windowFrom time.Time
}

// NewWindow constructs a fixed-window Limiter allowing max requests per
// period, per key.
func NewWindow(max int, period time.Duration) *Window {
	return &Window{Max: max, Period: period, buckets: make(map[string]*bucket)}
}

func (w *Window) Allow(key string, now time.Time) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sweepLocked(now)

	b, ok := w.buckets[key]
	if !ok || now.Sub(b.windowFrom) >= w.Period {
		b = &bucket{count: 0, windowFrom: now}
		w.buckets[key] = b
	}
	if b.count >= w.Max {
		return false, w.Period - now.Sub(b.windowFrom)
	}
	b.count++
	return true, 0
}

// sweepLocked evicts buckets whose window has long expired. Called at most
// once per Period to keep the cost amortized.
func (w *Window) sweepLocked(now time.Time) {
	if now.Sub(w.lastSweep) < w.Period {
		return
	}
	w.lastSweep = now
	for k, b := range w.buckets {
		if now.Sub(b.windowFrom) >= 2*w.Period {
			delete(w.buckets, k)
		}
	}
}

// MinInterval enforces a minimum gap between successive requests for the
// same key (used for invite's 8s-per-recipient throttle).
type MinInterval struct {
	Interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewMinInterval(interval time.Duration) *MinInterval {
	return &MinInterval{Interval: interval, last: make(map[string]time.Time)}
}

func (m *MinInterval) Allow(key string, now time.Time) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.last[key]; ok {
		if d := now.Sub(t); d < m.Interval {
			return false, m.Interval - d
		}
	}
	m.last[key] = now
	return true, 0
}

var _ Limiter = (*Window)(nil)
var _ Limiter = (*MinInterval)(nil)
