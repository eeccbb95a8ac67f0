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

// Package reaper implements the periodic sweep: abort stale multipart
// uploads, then delete expired non-permanent rooms and their blobs. It is
// invoked by an external scheduler (a cron or time.Ticker in
// cmd/roomserver) that guarantees single execution; this
// package itself is not reentrancy-safe across concurrent calls.
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/Eusha122/Backend/internal/objectstore"
	"github.com/Eusha122/Backend/internal/store"
)

// StaleUploadAge is the multipart-upload staleness threshold.
const StaleUploadAge = 24 * time.Hour

// blobStore is the slice of *objectstore.Client this package needs, so
// tests can supply a fake without wiring an S3 endpoint.
type blobStore interface {
	ListStaleUploads(ctx context.Context, olderThan time.Time) ([]objectstore.StaleUpload, error)
	AbortMultipart(ctx context.Context, key, uploadID string) error
	Delete(ctx context.Context, key string) error
}

// Reaper sweeps expired rooms and orphaned multipart uploads.
type Reaper struct {
	Rooms store.RoomStore
	Files store.FileStore
	Blobs blobStore
	Now   func() time.Time
}

func New(rooms store.RoomStore, files store.FileStore, blobs blobStore) *Reaper {
	return &Reaper{Rooms: rooms, Files: files, Blobs: blobs, Now: time.Now}
}

func (r *Reaper) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Result summarizes one sweep, for logging/metrics.
type Result struct {
	RoomsDeleted         int
	BlobsDeleted         int
	UploadsAborted       int
	RoomDeleteFailures   int
	UploadAbortFailures  int
}

// RunOnce performs one sweep: abort stale multipart uploads, then expired
// rooms. Each failure is logged and
// skipped; the sweep continues.
func (r *Reaper) RunOnce(ctx context.Context) Result {
	var res Result

	stale, err := r.Blobs.ListStaleUploads(ctx, r.now().Add(-StaleUploadAge))
	if err != nil {
		log.Printf("reaper: list stale uploads: %v", err)
	}
	for _, u := range stale {
		if err := r.Blobs.AbortMultipart(ctx, u.Key, u.UploadID); err != nil {
			log.Printf("reaper: abort stale upload %s/%s: %v", u.Key, u.UploadID, err)
			res.UploadAbortFailures++
			continue
		}
		res.UploadsAborted++
	}

	expired, err := r.Rooms.ListExpired(ctx, r.now())
	if err != nil {
		log.Printf("reaper: list expired rooms: %v", err)
		return res
	}
	for _, room := range expired {
		if room.IsPermanent {
			continue
		}
		files, err := r.Files.ListFiles(ctx, room.ID)
		if err != nil {
			log.Printf("reaper: list files for room %s: %v", room.ID, err)
			res.RoomDeleteFailures++
			continue
		}
		for _, f := range files {
			if err := r.Blobs.Delete(ctx, f.BlobKey); err != nil {
				log.Printf("reaper: delete blob %s: %v", f.BlobKey, err)
				continue
			}
			res.BlobsDeleted++
		}
		if err := r.Rooms.DeleteRoom(ctx, room.ID); err != nil {
			log.Printf("reaper: delete room %s: %v", room.ID, err)
			res.RoomDeleteFailures++
			continue
		}
		res.RoomsDeleted++
	}
	return res
}
