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

// Package download implements the Download Coordinator: authorization,
// signed-URL minting, the download lock, burn/one-time destruction, and
// bulk-mark.
package download

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/Eusha122/Backend/internal/accesslog"
	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/lifecycle"
	"github.com/Eusha122/Backend/internal/objectstore"
	"github.com/Eusha122/Backend/internal/store"
)

// BurnDestroyDelay is the delay between a successful /end and the blob and
// row being removed.
const BurnDestroyDelay = 3 * time.Second

// blobStore is the slice of *objectstore.Client this package needs, so
// tests can supply a fake without wiring an S3 endpoint.
type blobStore interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Coordinator drives the /download, /download/start, /download/end and
// /download/bulk-mark endpoints.
type Coordinator struct {
	Rooms     store.RoomStore
	Files     store.FileStore
	Blobs     blobStore
	AccessLog *accesslog.Logger
	Lifecycle *lifecycle.Engine
	Scheduler lifecycle.Scheduler
	Now       func() time.Time
}

func New(rooms store.RoomStore, files store.FileStore, blobs blobStore, al *accesslog.Logger, lc *lifecycle.Engine, sched lifecycle.Scheduler) *Coordinator {
	if sched == nil {
		sched = lifecycle.NewTimeScheduler()
	}
	return &Coordinator{Rooms: rooms, Files: files, Blobs: blobs, AccessLog: al, Lifecycle: lc, Scheduler: sched, Now: time.Now}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) isBurnOrOneTime(f store.File, room store.Room) bool {
	return f.BurnAfterDownload || room.Mode == store.ModeBurn
}

// MintResult is the response to GET /download.
type MintResult struct {
	SignedURL  string
	Filename   string
	BurnMode   bool
	RoomStatus store.RoomStatus
}

// Mint authorizes and signs a download URL, applying the burn/one-time and
// busy-lock checks of the download state diagram.
func (c *Coordinator) Mint(ctx context.Context, roomID, fileKey string) (MintResult, error) {
	room, err := c.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return MintResult{}, apierror.New(apierror.NotFound, "room not found")
	}
	f, err := c.fileByKey(ctx, roomID, fileKey)
	if err != nil {
		return MintResult{}, err
	}
	if f.Status == store.FileDestroyed {
		return MintResult{}, apierror.New(apierror.Gone, "file destroyed")
	}
	burnish := c.isBurnOrOneTime(f, room)
	if burnish && f.DownloadCount > 0 {
		return MintResult{}, apierror.New(apierror.Gone, "already downloaded")
	}
	if burnish {
		busy, err := c.Rooms.IsDownloadInProgress(ctx, roomID)
		if err != nil {
			return MintResult{}, err
		}
		if busy {
			return MintResult{}, apierror.New(apierror.Conflict, "download already in progress")
		}
	}
	url, err := c.Blobs.PresignGet(ctx, f.BlobKey, objectstore.DownloadURLTTL)
	if err != nil {
		return MintResult{}, apierror.Wrap(apierror.Internal, err, "could not sign download url")
	}
	return MintResult{SignedURL: url, Filename: f.Filename, BurnMode: room.Mode == store.ModeBurn, RoomStatus: room.Status}, nil
}

func (c *Coordinator) fileByKey(ctx context.Context, roomID, fileKey string) (store.File, error) {
	files, err := c.Files.ListFiles(ctx, roomID)
	if err != nil {
		return store.File{}, err
	}
	for _, f := range files {
		if f.BlobKey == fileKey {
			return f, nil
		}
	}
	return store.File{}, apierror.New(apierror.NotFound, "file not found")
}

// Start records that a download is in flight for the room, incrementing
// the busy refcount so two concurrent downloads from different devices
// each keep the room destruction-ineligible until both finish.
func (c *Coordinator) Start(ctx context.Context, roomID string) error {
	if _, err := c.Rooms.GetRoom(ctx, roomID); err != nil {
		return apierror.New(apierror.NotFound, "room not found")
	}
	return c.Rooms.BeginDownload(ctx, roomID)
}

// End releases the download lock and, on success, increments the file's
// download count, logs file_download once per device, and schedules burn
// destruction if applicable.
func (c *Coordinator) End(ctx context.Context, r *http.Request, roomID, fileID, device string, success bool, guestNumber int) error {
	defer func() {
		if err := c.Rooms.EndDownload(ctx, roomID); err != nil {
			log.Printf("download: end-download refcount release for room %s: %v", roomID, err)
		}
	}()

	if !success {
		return nil
	}

	room, err := c.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return apierror.New(apierror.NotFound, "room not found")
	}
	f, err := c.Files.GetFile(ctx, fileID)
	if err != nil {
		return apierror.New(apierror.NotFound, "file not found")
	}
	if f.Status == store.FileDestroyed {
		// A retried /end on an already-destroyed file is a no-op success:
		// the first successful call already did the work.
		return nil
	}
	if err := c.Files.IncrementDownloadCount(ctx, fileID); err != nil {
		return err
	}

	// The logger's dedup is process-local, so the stored log is checked too.
	logged := false
	if prior, err := c.AccessLog.List(ctx, roomID); err == nil {
		for _, e := range prior {
			if e.EventType == store.EventFileDownload && e.Device == device {
				logged = true
				break
			}
		}
	}
	if !logged {
		c.AccessLog.Log(ctx, accesslog.Entry{
			RoomID:      roomID,
			EventType:   store.EventFileDownload,
			Device:      device,
			GuestNumber: guestNumber,
		}, r)
	}

	if c.isBurnOrOneTime(f, room) {
		c.scheduleBurnDestroy(roomID, fileID, room.Mode == store.ModeBurn)
	}
	return nil
}

func (c *Coordinator) scheduleBurnDestroy(roomID, fileID string, isBurnRoom bool) {
	c.Scheduler.After(BurnDestroyDelay, func() {
		ctx := context.Background()
		c.burnDestroy(ctx, roomID, fileID, isBurnRoom)
	})
}

func (c *Coordinator) burnDestroy(ctx context.Context, roomID, fileID string, isBurnRoom bool) {
	f, err := c.Files.GetFile(ctx, fileID)
	if err != nil {
		return
	}
	if err := c.Blobs.Delete(ctx, f.BlobKey); err != nil {
		log.Printf("download: burn-destroy %s: best-effort blob delete failed: %v", fileID, err)
	}
	if err := c.Files.DestroyFile(ctx, fileID); err != nil {
		log.Printf("download: burn-destroy %s: mark destroyed: %v", fileID, err)
	}
	if err := c.Files.DeleteFile(ctx, fileID); err != nil {
		log.Printf("download: burn-destroy %s: delete row: %v", fileID, err)
	}
	if !isBurnRoom {
		return
	}
	remaining, err := c.Rooms.DecrementRemainingFiles(ctx, roomID)
	if err != nil {
		log.Printf("download: burn-destroy %s: decrement remaining_files: %v", fileID, err)
		return
	}
	if remaining == 0 {
		if err := c.Lifecycle.OnBurnExhausted(ctx, roomID); err != nil {
			log.Printf("download: burn-destroy %s: lifecycle transition: %v", roomID, err)
		}
	}
}

// BulkMark is the archive-path analog of End: increment download_count for
// every listed file and, in burn rooms, decrement remaining_files once per
// file, triggering the lifecycle engine when it reaches zero. Each file is
// incremented individually rather than in one batch update, so partial
// failures don't lose counts for the files that did succeed.
func (c *Coordinator) BulkMark(ctx context.Context, roomID string, fileIDs []string) (int, error) {
	room, err := c.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return 0, apierror.New(apierror.NotFound, "room not found")
	}
	marked := 0
	for _, id := range fileIDs {
		f, err := c.Files.GetFile(ctx, id)
		if err != nil || f.Status == store.FileDestroyed {
			continue
		}
		if err := c.Files.IncrementDownloadCount(ctx, id); err != nil {
			log.Printf("download: bulk-mark %s: increment count: %v", id, err)
			continue
		}
		marked++
		if room.Mode == store.ModeBurn {
			remaining, err := c.Rooms.DecrementRemainingFiles(ctx, roomID)
			if err != nil {
				log.Printf("download: bulk-mark %s: decrement remaining: %v", id, err)
				continue
			}
			if remaining == 0 {
				if err := c.Lifecycle.OnBurnExhausted(ctx, roomID); err != nil {
					log.Printf("download: bulk-mark %s: lifecycle transition: %v", roomID, err)
				}
			}
		}
	}
	return marked, nil
}
