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

package presence

import (
	"context"
	"testing"
	"time"

	"github.com/Eusha122/Backend/internal/store"
	"github.com/Eusha122/Backend/internal/store/memstore"
)

const roomID = "11111111-1111-4111-8111-111111111111"

func newGate(t *testing.T, capacity int) (*Gate, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	err := ms.CreateRoom(context.Background(), store.Room{
		ID:       roomID,
		Status:   store.StatusActive,
		Capacity: capacity,
	}, store.RoomSecret{AuthorToken: "t"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	g := New(ms, ms, ms)
	g.ActiveWindow = time.Minute
	return g, ms
}

func TestJoinAssignsStableGuestNumber(t *testing.T) {
	g, _ := newGate(t, 10)
	now := time.Now()

	res1, err := g.Join(context.Background(), roomID, "device-a", now)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res1.GuestNumber != 1 {
		t.Fatalf("first guest number = %d, want 1", res1.GuestNumber)
	}

	res2, err := g.Join(context.Background(), roomID, "device-a", now.Add(time.Second))
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if res2.GuestNumber != res1.GuestNumber {
		t.Fatalf("rejoining device got a new guest number: %d != %d", res2.GuestNumber, res1.GuestNumber)
	}

	res3, err := g.Join(context.Background(), roomID, "device-b", now)
	if err != nil {
		t.Fatalf("Join device-b: %v", err)
	}
	if res3.GuestNumber != 2 {
		t.Fatalf("second distinct device number = %d, want 2", res3.GuestNumber)
	}
}

func TestJoinRejectsWhenFull(t *testing.T) {
	g, _ := newGate(t, 1)
	now := time.Now()

	if _, err := g.Join(context.Background(), roomID, "device-a", now); err != nil {
		t.Fatalf("first Join: %v", err)
	}
	if _, err := g.Join(context.Background(), roomID, "device-b", now); err == nil {
		t.Fatal("expected capacity rejection for second distinct device")
	}
}

func TestJoinUnlimitedCapacityNeverRejects(t *testing.T) {
	g, _ := newGate(t, store.UnlimitedCapacity)
	now := time.Now()
	for i := 0; i < 5; i++ {
		device := string(rune('a' + i))
		if _, err := g.Join(context.Background(), roomID, device, now); err != nil {
			t.Fatalf("Join %s: %v", device, err)
		}
	}
}

func TestHeartbeatOutsideActiveWindowDoesNotCountAgainstSelf(t *testing.T) {
	g, _ := newGate(t, 1)
	now := time.Now()

	if _, err := g.Join(context.Background(), roomID, "device-a", now); err != nil {
		t.Fatalf("Join: %v", err)
	}
	// device-a heartbeats again; it must not be double-counted against its
	// own slot.
	if err := g.Heartbeat(context.Background(), roomID, "device-a", now.Add(time.Second)); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
}

func TestGaugeReportsFullness(t *testing.T) {
	g, _ := newGate(t, 2)
	now := time.Now()
	if _, err := g.Join(context.Background(), roomID, "device-a", now); err != nil {
		t.Fatalf("Join: %v", err)
	}

	cap, err := g.Gauge(context.Background(), roomID, now)
	if err != nil {
		t.Fatalf("Gauge: %v", err)
	}
	if cap.Current != 1 || cap.Max != 2 || cap.IsFull {
		t.Fatalf("Gauge = %+v, want Current=1 Max=2 IsFull=false", cap)
	}
	if !cap.IsNearFull {
		t.Fatal("expected IsNearFull with one slot remaining out of two")
	}
}

func TestGaugeUnlimitedRoom(t *testing.T) {
	g, _ := newGate(t, store.UnlimitedCapacity)
	cap, err := g.Gauge(context.Background(), roomID, time.Now())
	if err != nil {
		t.Fatalf("Gauge: %v", err)
	}
	if !cap.IsUnlimited {
		t.Fatal("expected IsUnlimited for an unlimited-capacity room")
	}
}

func TestLeaveMarksPresenceLeft(t *testing.T) {
	g, ms := newGate(t, 10)
	now := time.Now()
	if _, err := g.Join(context.Background(), roomID, "device-a", now); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := g.Leave(context.Background(), roomID, "device-a", now.Add(time.Second)); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	p, ok, err := ms.Get(context.Background(), roomID, "device-a")
	if err != nil || !ok {
		t.Fatalf("Get after Leave: ok=%v err=%v", ok, err)
	}
	if p.Status != store.PresenceLeft {
		t.Fatalf("status after Leave = %v, want PresenceLeft", p.Status)
	}
}
