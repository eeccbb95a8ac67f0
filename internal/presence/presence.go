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

// Package presence implements the Presence Store and Capacity Gate: device
// heartbeats, active-guest counting, idempotent guest-number assignment,
// and admit/reject capacity decisions.
package presence

import (
	"context"
	"time"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/store"
)

// DefaultActiveWindow is the default duration a presence row is considered
// live for capacity purposes.
const DefaultActiveWindow = 120 * time.Second

// Gate upserts presence and assigns guest numbers, enforcing per-room
// capacity.
type Gate struct {
	Rooms       store.RoomStore
	Pres        store.PresenceStore
	GuestIdx    store.GuestIndexStore
	ActiveWindow time.Duration
}

func New(rooms store.RoomStore, pres store.PresenceStore, idx store.GuestIndexStore) *Gate {
	return &Gate{Rooms: rooms, Pres: pres, GuestIdx: idx, ActiveWindow: DefaultActiveWindow}
}

func (g *Gate) window() time.Duration {
	if g.ActiveWindow <= 0 {
		return DefaultActiveWindow
	}
	return g.ActiveWindow
}

// JoinResult is returned by Join.
type JoinResult struct {
	GuestNumber int
	IsFull      bool
}

// Join admits or rejects a non-author device joining room, assigning it a
// stable guest number on success.
func (g *Gate) Join(ctx context.Context, roomID, device string, now time.Time) (JoinResult, error) {
	room, err := g.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return JoinResult{}, apierror.New(apierror.NotFound, "room not found")
	}
	if !room.IsUnlimited() {
		used, err := g.Pres.CountActive(ctx, roomID, device, now.Add(-g.window()))
		if err != nil {
			return JoinResult{}, err
		}
		if used >= room.Capacity {
			return JoinResult{IsFull: true}, apierror.New(apierror.Unauthorized, "room is full")
		}
	}
	if err := g.Pres.Upsert(ctx, roomID, device, false, now); err != nil {
		return JoinResult{}, err
	}
	n, err := g.GuestIdx.AssignNumber(ctx, roomID, device)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{GuestNumber: n}, nil
}

// Heartbeat refreshes last_seen_at for the device, subject to the same
// capacity check as Join (a stale device may be evicted by capacity before
// its next heartbeat succeeds). A device with no presence row yet is
// upserted as well; no prior Join is needed.
func (g *Gate) Heartbeat(ctx context.Context, roomID, device string, now time.Time) error {
	room, err := g.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return apierror.New(apierror.NotFound, "room not found")
	}
	if !room.IsUnlimited() {
		used, err := g.Pres.CountActive(ctx, roomID, device, now.Add(-g.window()))
		if err != nil {
			return err
		}
		if used >= room.Capacity {
			return apierror.New(apierror.Unauthorized, "room is full")
		}
	}
	return g.Pres.Upsert(ctx, roomID, device, false, now)
}

// Leave marks device as having left, for sendBeacon-style notifications.
func (g *Gate) Leave(ctx context.Context, roomID, device string, now time.Time) error {
	_, err := g.Pres.MarkLeft(ctx, roomID, device, now)
	return err
}

// Capacity reports the GET /room-capacity/:room gauge.
type Capacity struct {
	Current     int
	Max         int
	IsFull      bool
	IsNearFull  bool
	IsUnlimited bool
}

// Gauge computes the room-capacity/:room response.
func (g *Gate) Gauge(ctx context.Context, roomID string, now time.Time) (Capacity, error) {
	room, err := g.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Capacity{}, apierror.New(apierror.NotFound, "room not found")
	}
	if room.IsUnlimited() {
		return Capacity{IsUnlimited: true}, nil
	}
	used, err := g.Pres.CountActive(ctx, roomID, "", now.Add(-g.window()))
	if err != nil {
		return Capacity{}, err
	}
	return Capacity{
		Current:    used,
		Max:        room.Capacity,
		IsFull:     used >= room.Capacity,
		IsNearFull: used >= room.Capacity-1 && room.Capacity > 1,
	}, nil
}
