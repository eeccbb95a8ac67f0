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
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// HealthCeilings configures the thresholds HealthSampler sheds load at.
type HealthCeilings struct {
	ResidentMemMB    uint64
	FreeSystemMemMB  uint64 // 0 disables the free-memory check
	LoadAvgPerCPU    float64
}

// DefaultCeilings mirror conservative single-node defaults.
var DefaultCeilings = HealthCeilings{
	ResidentMemMB: 1536,
	LoadAvgPerCPU: 2.0,
}

// HealthSampler samples process/host health at most once per MinInterval
// and reports whether the host is currently overloaded.
type HealthSampler struct {
	MinInterval time.Duration
	Ceilings    HealthCeilings

	mu        sync.Mutex
	lastCheck time.Time
	overloaded bool
}

func NewHealthSampler(minInterval time.Duration) *HealthSampler {
	return &HealthSampler{MinInterval: minInterval, Ceilings: DefaultCeilings}
}

// Overloaded reports the most recent overload verdict, resampling if
// MinInterval has elapsed.
func (h *HealthSampler) Overloaded(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if now.Sub(h.lastCheck) < h.MinInterval {
		return h.overloaded
	}
	h.lastCheck = now
	h.overloaded = h.sample()
	return h.overloaded
}

func (h *HealthSampler) sample() bool {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	residentMB := ms.Sys / (1024 * 1024)
	if h.Ceilings.ResidentMemMB > 0 && residentMB > h.Ceilings.ResidentMemMB {
		return true
	}
	if load, ok := loadAverage1Min(); ok {
		perCPU := load / float64(runtime.NumCPU())
		if h.Ceilings.LoadAvgPerCPU > 0 && perCPU > h.Ceilings.LoadAvgPerCPU {
			return true
		}
	}
	return false
}

// loadAverage1Min reads /proc/loadavg; on platforms without it (non-Linux),
// it returns ok=false and the load-average check is skipped.
func loadAverage1Min() (float64, bool) {
	f, err := os.Open("/proc/loadavg")
	if err != nil {
		return 0, false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, false
	}
	fields := strings.Fields(sc.Text())
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
