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

package ratelimit

import (
	"testing"
	"time"
)

func TestHealthSamplerCachesWithinMinInterval(t *testing.T) {
	h := NewHealthSampler(time.Minute)
	h.Ceilings = HealthCeilings{} // no ceilings set, so sample() always false
	now := time.Now()

	if h.Overloaded(now) {
		t.Fatal("expected not overloaded with zero ceilings")
	}
	// Force a stale cached verdict and confirm it isn't resampled within
	// MinInterval.
	h.overloaded = true
	if !h.Overloaded(now.Add(time.Second)) {
		t.Fatal("expected cached overloaded verdict to be reused within MinInterval")
	}
	if h.Overloaded(now.Add(2 * time.Minute)) {
		t.Fatal("expected resample after MinInterval to clear the stale verdict")
	}
}

func TestHealthSamplerResidentMemCeiling(t *testing.T) {
	h := NewHealthSampler(0)
	h.Ceilings = HealthCeilings{ResidentMemMB: 1} // guaranteed to be exceeded
	if !h.sample() {
		t.Fatal("expected overloaded with a 1MB resident-memory ceiling")
	}
}

func TestHealthSamplerZeroCeilingsNeverOverloaded(t *testing.T) {
	h := NewHealthSampler(0)
	h.Ceilings = HealthCeilings{}
	if h.sample() {
		t.Fatal("expected not overloaded with no ceilings configured")
	}
}
