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

func TestWindowAllowsUpToMax(t *testing.T) {
	w := NewWindow(3, time.Minute)
	now := time.Now()
	for i := 0; i < 3; i++ {
		ok, _ := w.Allow("k", now)
		if !ok {
			t.Fatalf("request %d denied, want allowed", i)
		}
	}
	ok, retry := w.Allow("k", now)
	if ok {
		t.Fatal("4th request allowed, want denied")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("retryAfter = %v, want in (0, 1m]", retry)
	}
}

func TestWindowResetsAfterPeriod(t *testing.T) {
	w := NewWindow(1, time.Minute)
	now := time.Now()
	if ok, _ := w.Allow("k", now); !ok {
		t.Fatal("first request denied")
	}
	if ok, _ := w.Allow("k", now.Add(30*time.Second)); ok {
		t.Fatal("request within window allowed, want denied")
	}
	if ok, _ := w.Allow("k", now.Add(61*time.Second)); !ok {
		t.Fatal("request after window expiry denied, want allowed")
	}
}

func TestWindowKeysAreIndependent(t *testing.T) {
	w := NewWindow(1, time.Minute)
	now := time.Now()
	if ok, _ := w.Allow("a", now); !ok {
		t.Fatal("key a denied")
	}
	if ok, _ := w.Allow("b", now); !ok {
		t.Fatal("key b denied, want independent bucket from key a")
	}
}

func TestMinIntervalEnforcesGap(t *testing.T) {
	m := NewMinInterval(8 * time.Second)
	now := time.Now()
	if ok, _ := m.Allow("r", now); !ok {
		t.Fatal("first request denied")
	}
	if ok, _ := m.Allow("r", now.Add(4*time.Second)); ok {
		t.Fatal("request before interval elapsed allowed, want denied")
	}
	if ok, _ := m.Allow("r", now.Add(9*time.Second)); !ok {
		t.Fatal("request after interval elapsed denied, want allowed")
	}
}

func TestGuardAllowRouteChecksGlobalBin(t *testing.T) {
	g := &Guard{
		Global: NewWindow(1, time.Minute),
		Upload: NewWindow(10, time.Minute),
	}
	now := time.Now()
	if ok, _ := g.AllowRoute(RouteUpload, "ip1", now); !ok {
		t.Fatal("first request denied")
	}
	if ok, _ := g.AllowRoute(RouteUpload, "ip1", now); ok {
		t.Fatal("second request allowed, want global bin to deny")
	}
}

func TestGuardAllowRouteUnknownClassSkipsPerRouteBin(t *testing.T) {
	g := &Guard{Global: NewWindow(5, time.Minute)}
	now := time.Now()
	if ok, _ := g.AllowRoute(RouteClass("unmapped"), "ip1", now); !ok {
		t.Fatal("unmapped route class should only be subject to the global bin")
	}
}

func TestIsHeavy(t *testing.T) {
	if !IsHeavy(RouteUpload) {
		t.Error("RouteUpload should be a heavy route")
	}
	if IsHeavy(RouteGlobal) {
		t.Error("RouteGlobal should not be a heavy route")
	}
}

func TestNewGuardPopulatesEveryBin(t *testing.T) {
	g := NewGuard()
	now := time.Now()
	for _, class := range []RouteClass{
		RouteGlobal, RouteUpload, RoutePresign, RouteDownload, RouteRoomAccess,
		RouteHeartbeat, RouteActivity, RouteDelete, RouteAdminAnalytics,
	} {
		if ok, _ := g.AllowRoute(class, "ip-unique-"+string(class), now); !ok {
			t.Errorf("AllowRoute(%v) denied on first call", class)
		}
	}
	if g.Health == nil {
		t.Fatal("NewGuard should populate Health")
	}
}
