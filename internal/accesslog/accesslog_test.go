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

package accesslog

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/Eusha122/Backend/internal/store"
	"github.com/Eusha122/Backend/internal/store/memstore"
)

const roomID = "11111111-1111-4111-8111-111111111111"

func TestLogWritesEnrichedEntry(t *testing.T) {
	ms := memstore.New()
	l := New(ms, nil)

	r := httptest.NewRequest("GET", "/room-access/activity/"+roomID, nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/114.0 Safari/537.36")
	r.RemoteAddr = "203.0.113.4:12345"

	l.Log(context.Background(), Entry{RoomID: roomID, EventType: store.EventRoomAccess, Device: "device-1"}, r)

	entries, err := l.List(context.Background(), roomID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Browser != "Chrome" || e.OS != "Windows 10/11" {
		t.Errorf("parsed UA = %+v, want Chrome/Windows 10/11", e)
	}
	if e.IP != "203.0.113.4" {
		t.Errorf("IP = %q, want 203.0.113.4", e.IP)
	}
}

func TestLogDedupesRepeatsWithinWindow(t *testing.T) {
	ms := memstore.New()
	l := New(ms, nil)
	r := httptest.NewRequest("GET", "/", nil)

	entry := Entry{RoomID: roomID, EventType: store.EventFileDownload, Device: "device-1"}
	l.Log(context.Background(), entry, r)
	l.Log(context.Background(), entry, r)

	entries, err := l.List(context.Background(), roomID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (second call should dedup)", len(entries))
	}
}

func TestLogDoesNotDedupDistinctDevices(t *testing.T) {
	ms := memstore.New()
	l := New(ms, nil)
	r := httptest.NewRequest("GET", "/", nil)

	l.Log(context.Background(), Entry{RoomID: roomID, EventType: store.EventFileDownload, Device: "device-1"}, r)
	l.Log(context.Background(), Entry{RoomID: roomID, EventType: store.EventFileDownload, Device: "device-2"}, r)

	entries, err := l.List(context.Background(), roomID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (distinct devices should not dedup)", len(entries))
	}
}

func TestNewDefaultsToNopGeoLookup(t *testing.T) {
	ms := memstore.New()
	l := New(ms, nil)
	if _, ok := l.Geo.(NopGeoLookup); !ok {
		t.Errorf("Geo = %T, want NopGeoLookup when nil is passed", l.Geo)
	}
}
