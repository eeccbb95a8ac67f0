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

package lifecycle

import (
	"sync"
	"time"
)

// Scheduler is a small interface around the
// destruction countdown, so a multi-node deployment can swap in a shared
// timer service without touching the lifecycle engine.
type Scheduler interface {
	// After arranges for fn to run after d, and returns a cancel func.
	After(d time.Duration, fn func()) (cancel func())
}

// timeScheduler is the single-node default: time.AfterFunc plus bookkeeping
// so in-flight timers can be canceled on clean shutdown.
type timeScheduler struct {
	mu     sync.Mutex
	timers map[*time.Timer]struct{}
}

// NewTimeScheduler returns the process-local Scheduler.
func NewTimeScheduler() Scheduler {
	return &timeScheduler{timers: make(map[*time.Timer]struct{})}
}

func (s *timeScheduler) After(d time.Duration, fn func()) func() {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		fn()
	})
	s.mu.Lock()
	s.timers[t] = struct{}{}
	s.mu.Unlock()
	return func() {
		t.Stop()
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
	}
}

// StopAll cancels every outstanding timer; used on clean shutdown so a
// destruction countdown never fires after the process has begun exiting.
func (s *timeScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.timers {
		t.Stop()
		delete(s.timers, t)
	}
}
