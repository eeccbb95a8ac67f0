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
	"context"
	"testing"
	"time"

	"github.com/Eusha122/Backend/internal/store"
	"github.com/Eusha122/Backend/internal/store/memstore"
)

const roomID = "11111111-1111-4111-8111-111111111111"

type fakeBlobs struct {
	deleted []string
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

// immediateScheduler runs scheduled work synchronously so destruction
// countdowns are deterministic in tests. With hold set it only counts the
// call, so a test can observe a reschedule without running it.
type immediateScheduler struct {
	calls int
	hold  bool
}

func (s *immediateScheduler) After(d time.Duration, fn func()) func() {
	s.calls++
	if !s.hold {
		fn()
	}
	return func() {}
}

func newEngine(t *testing.T, mode store.RoomMode) (*Engine, *memstore.Store, *fakeBlobs, *immediateScheduler) {
	t.Helper()
	ms := memstore.New()
	err := ms.CreateRoom(context.Background(), store.Room{
		ID:     roomID,
		Status: store.StatusActive,
		Mode:   mode,
	}, store.RoomSecret{AuthorToken: "t"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	blobs := &fakeBlobs{}
	sched := &immediateScheduler{}
	e := New(ms, ms, blobs, sched)
	return e, ms, blobs, sched
}

func TestDeleteRoomDeletesBlobsAndRow(t *testing.T) {
	e, ms, blobs, _ := newEngine(t, store.ModeNormal)
	f := store.File{ID: "file-1", RoomID: roomID, BlobKey: roomID + "/file-1_a.txt", Status: store.FileLive}
	if err := ms.CreateFile(context.Background(), f); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	n, err := e.DeleteRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if n != 1 {
		t.Fatalf("filesDeleted = %d, want 1", n)
	}
	if len(blobs.deleted) != 1 {
		t.Fatalf("blobs deleted = %d, want 1", len(blobs.deleted))
	}
	if _, err := ms.GetRoom(context.Background(), roomID); err == nil {
		t.Fatal("expected the room row to be gone")
	}
}

func TestOnBurnExhaustedTransitionsAndSchedulesDestroy(t *testing.T) {
	e, ms, blobs, sched := newEngine(t, store.ModeBurn)

	if err := e.OnBurnExhausted(context.Background(), roomID); err != nil {
		t.Fatalf("OnBurnExhausted: %v", err)
	}
	if sched.calls != 1 {
		t.Fatalf("scheduler calls = %d, want 1", sched.calls)
	}
	// immediateScheduler already ran destroyCheck, which (since no
	// download is in flight) destroys the room outright.
	if _, err := ms.GetRoom(context.Background(), roomID); err == nil {
		t.Fatal("expected the room to have been destroyed")
	}
	_ = blobs
}

func TestOnBurnExhaustedIsIdempotentWhenAlreadyTerminating(t *testing.T) {
	e, ms, _, sched := newEngine(t, store.ModeBurn)
	if ok, err := ms.SetStatus(context.Background(), roomID, []store.RoomStatus{store.StatusActive}, store.StatusTerminating); err != nil || !ok {
		t.Fatalf("SetStatus: ok=%v err=%v", ok, err)
	}
	if err := e.OnBurnExhausted(context.Background(), roomID); err != nil {
		t.Fatalf("OnBurnExhausted: %v", err)
	}
	if sched.calls != 0 {
		t.Fatalf("scheduler calls = %d, want 0 when already terminating", sched.calls)
	}
}

func TestDestroyCheckReschedulesWhileDownloadInProgress(t *testing.T) {
	e, ms, _, sched := newEngine(t, store.ModeBurn)
	sched.hold = true
	if ok, err := ms.SetStatus(context.Background(), roomID, []store.RoomStatus{store.StatusActive}, store.StatusTerminating); err != nil || !ok {
		t.Fatalf("SetStatus: ok=%v err=%v", ok, err)
	}
	if err := ms.BeginDownload(context.Background(), roomID); err != nil {
		t.Fatalf("BeginDownload: %v", err)
	}

	e.destroyCheck(context.Background(), roomID)
	if sched.calls != 1 {
		t.Fatalf("scheduler calls = %d, want 1 (rescheduled)", sched.calls)
	}
	if _, err := ms.GetRoom(context.Background(), roomID); err != nil {
		t.Fatal("room should still exist while a download is in progress")
	}
}

func TestRequireLive(t *testing.T) {
	now := time.Now()
	if err := RequireLive(store.Room{Status: store.StatusDestroyed}, now); err == nil {
		t.Error("destroyed room should not be live")
	}
	if err := RequireLive(store.Room{Status: store.StatusActive, ExpiresAt: now.Add(-time.Second)}, now); err == nil {
		t.Error("expired non-permanent room should not be live")
	}
	if err := RequireLive(store.Room{Status: store.StatusActive, IsPermanent: true, ExpiresAt: now.Add(-time.Second)}, now); err != nil {
		t.Errorf("permanent room should be live regardless of ExpiresAt: %v", err)
	}
	if err := RequireLive(store.Room{Status: store.StatusActive, ExpiresAt: now.Add(time.Hour)}, now); err != nil {
		t.Errorf("active unexpired room should be live: %v", err)
	}
}
