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

// Package lifecycle implements the Room Lifecycle Engine state machine
// (active -> terminating -> destroyed), its destruction countdown, and the
// author-initiated delete path.
package lifecycle

import (
	"context"
	"log"
	"time"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/store"
)

// DestructionCountdown is the fixed delay after a room enters terminating
// before the engine attempts to destroy it.
const DestructionCountdown = 30 * time.Second

// blobStore is the slice of *objectstore.Client this package needs, so
// tests can supply a fake without wiring an S3 endpoint.
type blobStore interface {
	Delete(ctx context.Context, key string) error
}

// Engine drives room destruction, both author-initiated and
// burn-exhaustion-triggered.
type Engine struct {
	Rooms     store.RoomStore
	Files     store.FileStore
	Blobs     blobStore
	Scheduler Scheduler
}

func New(rooms store.RoomStore, files store.FileStore, blobs blobStore, sched Scheduler) *Engine {
	if sched == nil {
		sched = NewTimeScheduler()
	}
	return &Engine{Rooms: rooms, Files: files, Blobs: blobs, Scheduler: sched}
}

// Close cancels every outstanding destruction timer, for clean shutdown.
func (e *Engine) Close() {
	if s, ok := e.Scheduler.(interface{ StopAll() }); ok {
		s.StopAll()
	}
}

// DeleteRoom is the author-initiated delete path: best-effort blob
// deletion, then a row delete that cascades to files, presence, guest
// index and counter.
func (e *Engine) DeleteRoom(ctx context.Context, roomID string) (filesDeleted int, err error) {
	files, err := e.Files.ListFiles(ctx, roomID)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := e.Blobs.Delete(ctx, f.BlobKey); err != nil {
			log.Printf("lifecycle: delete-room %s: best-effort blob delete of %s failed: %v", roomID, f.BlobKey, err)
		}
	}
	if err := e.Rooms.DeleteRoom(ctx, roomID); err != nil {
		return 0, err
	}
	return len(files), nil
}

// OnBurnExhausted transitions a room to terminating when its last burn
// file is consumed, and schedules the destruction countdown.
func (e *Engine) OnBurnExhausted(ctx context.Context, roomID string) error {
	ok, err := e.Rooms.SetStatus(ctx, roomID, []store.RoomStatus{store.StatusActive}, store.StatusTerminating)
	if err != nil {
		return err
	}
	if !ok {
		// Already terminating or destroyed from a concurrent caller; the
		// countdown that set it is authoritative.
		return nil
	}
	e.scheduleDestroyCheck(roomID, DestructionCountdown)
	return nil
}

func (e *Engine) scheduleDestroyCheck(roomID string, after time.Duration) {
	e.Scheduler.After(after, func() {
		ctx := context.Background()
		e.destroyCheck(ctx, roomID)
	})
}

// destroyCheck implements the timer-fire algorithm: reload,
// bail if no longer terminating, reschedule if a download is in flight,
// otherwise destroy.
func (e *Engine) destroyCheck(ctx context.Context, roomID string) {
	room, err := e.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return
	}
	if room.Status != store.StatusTerminating {
		return
	}
	inFlight, err := e.Rooms.IsDownloadInProgress(ctx, roomID)
	if err != nil {
		log.Printf("lifecycle: destroy-check %s: %v", roomID, err)
		return
	}
	if inFlight {
		e.scheduleDestroyCheck(roomID, DestructionCountdown)
		return
	}
	e.destroy(ctx, roomID, room)
}

func (e *Engine) destroy(ctx context.Context, roomID string, room store.Room) {
	files, err := e.Files.ListFiles(ctx, roomID)
	if err != nil {
		log.Printf("lifecycle: destroy %s: list files: %v", roomID, err)
		return
	}
	for _, f := range files {
		if err := e.Blobs.Delete(ctx, f.BlobKey); err != nil {
			log.Printf("lifecycle: destroy %s: best-effort blob delete of %s failed: %v", roomID, f.BlobKey, err)
		}
	}
	if _, err := e.Rooms.SetStatus(ctx, roomID, []store.RoomStatus{store.StatusTerminating}, store.StatusDestroyed); err != nil {
		log.Printf("lifecycle: destroy %s: set destroyed: %v", roomID, err)
		return
	}
	if err := e.Rooms.DeleteRoom(ctx, roomID); err != nil {
		log.Printf("lifecycle: destroy %s: delete row: %v", roomID, err)
	}
}

// RequireLive returns apierror.Gone if the room is expired or destroyed.
func RequireLive(room store.Room, now time.Time) error {
	if room.Status == store.StatusDestroyed {
		return apierror.New(apierror.Gone, "room destroyed")
	}
	if !room.IsPermanent && now.After(room.ExpiresAt) {
		return apierror.New(apierror.Gone, "room expired")
	}
	return nil
}
