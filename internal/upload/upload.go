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

// Package upload implements the three-phase multipart Upload Orchestrator:
// initiate, sign-part-urls, complete-or-abort, plus the single-PUT
// presigned-upload shortcut.
package upload

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/objectstore"
	"github.com/Eusha122/Backend/internal/quota"
	"github.com/Eusha122/Backend/internal/store"
)

const maxPartNumbers = 10000

// blobStore is the slice of *objectstore.Client this package needs, so
// tests can supply a fake without wiring an S3 endpoint.
type blobStore interface {
	InitiateMultipart(ctx context.Context, key, contentType string) (uploadID string, err error)
	SignPartURLs(ctx context.Context, key, uploadID string, partNumbers []int64) ([]string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []objectstore.CompletedPart) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// Orchestrator drives upload initiation, part signing and completion.
type Orchestrator struct {
	Rooms store.RoomStore
	Files store.FileStore
	Quota *quota.Engine
	Blobs blobStore
	Now   func() time.Time
}

func New(rooms store.RoomStore, files store.FileStore, q *quota.Engine, blobs blobStore) *Orchestrator {
	return &Orchestrator{Rooms: rooms, Files: files, Quota: q, Blobs: blobs, Now: time.Now}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ValidateFilename rejects names containing a path separator or a null
// byte, before any blob-key construction.
func ValidateFilename(name string) error {
	if name == "" {
		return apierror.New(apierror.BadInput, "filename required")
	}
	if strings.ContainsAny(name, "/\\") || strings.ContainsRune(name, 0) {
		return apierror.New(apierror.BadInput, "filename contains illegal characters")
	}
	return nil
}

func (o *Orchestrator) checkRoomLive(ctx context.Context, roomID string) (store.Room, error) {
	room, err := o.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return store.Room{}, apierror.New(apierror.NotFound, "room not found")
	}
	if room.Status == store.StatusDestroyed {
		return store.Room{}, apierror.New(apierror.Gone, "room destroyed")
	}
	if !room.IsPermanent && o.now().After(room.ExpiresAt) {
		return store.Room{}, apierror.New(apierror.Gone, "room expired")
	}
	return room, nil
}

// InitiateResult is the response of Initiate.
type InitiateResult struct {
	UploadID string
	FileKey  string
	FileID   string
}

// Initiate validates the room and quota, then opens a multipart upload
// handle. No database row is written on this path.
func (o *Orchestrator) Initiate(ctx context.Context, roomID, filename string, sizeBytes int64, contentType string) (InitiateResult, error) {
	if sizeBytes <= 0 {
		return InitiateResult{}, apierror.New(apierror.BadInput, "file size must be > 0")
	}
	if err := ValidateFilename(filename); err != nil {
		return InitiateResult{}, err
	}
	if _, err := o.checkRoomLive(ctx, roomID); err != nil {
		return InitiateResult{}, err
	}
	if err := o.Quota.EnsureQuota(ctx, roomID, sizeBytes); err != nil {
		return InitiateResult{}, err
	}

	fileID := uuid.NewString()
	fileKey := objectstore.BlobKey(roomID, fileID, filename)
	uploadID, err := o.Blobs.InitiateMultipart(ctx, fileKey, contentType)
	if err != nil {
		return InitiateResult{}, apierror.Wrap(apierror.Internal, err, "could not open upload handle")
	}
	return InitiateResult{UploadID: uploadID, FileKey: fileKey, FileID: fileID}, nil
}

// SignPartURLs returns one presigned PUT URL per requested part number
// (1-indexed, 1..10000). Idempotent: callable again for any subset.
func (o *Orchestrator) SignPartURLs(ctx context.Context, roomID, fileKey, uploadID string, partNumbers []int64) ([]string, error) {
	if len(partNumbers) == 0 || len(partNumbers) > maxPartNumbers {
		return nil, apierror.New(apierror.BadInput, "part count must be between 1 and %d", maxPartNumbers)
	}
	if _, err := o.checkRoomLive(ctx, roomID); err != nil {
		return nil, err
	}
	urls, err := o.Blobs.SignPartURLs(ctx, fileKey, uploadID, partNumbers)
	if err != nil {
		return nil, apierror.Wrap(apierror.Internal, err, "could not sign part urls")
	}
	return urls, nil
}

// CompleteParams bundles Complete's inputs.
type CompleteParams struct {
	RoomID      string
	UploadID    string
	FileKey     string
	FileID      string
	Filename    string
	SizeBytes   int64
	ContentType string
	Message     string
	Parts       []objectstore.CompletedPart
	SampleBytes []byte // first bytes of the first part, for the heuristic scan
	BurnAfter   bool
}

// Complete finalizes the multipart upload, writes the File row, and bumps
// room usage and (in burn rooms) remaining_files.
func (o *Orchestrator) Complete(ctx context.Context, p CompleteParams) (store.File, error) {
	room, err := o.checkRoomLive(ctx, p.RoomID)
	if err != nil {
		return store.File{}, err
	}
	if err := o.Quota.EnsureQuota(ctx, p.RoomID, p.SizeBytes); err != nil {
		return store.File{}, err
	}

	if err := o.Blobs.CompleteMultipart(ctx, p.FileKey, p.UploadID, p.Parts); err != nil {
		_ = o.Blobs.AbortMultipart(ctx, p.FileKey, p.UploadID)
		return store.File{}, apierror.Wrap(apierror.Internal, err, "could not finalize upload")
	}

	result := scanUpload(p.Filename, p.SizeBytes, p.SampleBytes)

	f := store.File{
		ID:                p.FileID,
		RoomID:            p.RoomID,
		Filename:          p.Filename,
		BlobKey:           p.FileKey,
		SizeBytes:         p.SizeBytes,
		ContentType:       p.ContentType,
		Status:            store.FileLive,
		BurnAfterDownload: p.BurnAfter || room.Mode == store.ModeBurn,
		ScanStatus:        result.Status,
		ScanResult:        result.Result,
		Message:           p.Message,
		CreatedAt:         o.now(),
	}
	if err := o.Files.CreateFile(ctx, f); err != nil {
		return store.File{}, err
	}
	if err := o.Rooms.IncrementUsage(ctx, p.RoomID, 1, p.SizeBytes); err != nil {
		return store.File{}, err
	}
	if room.Mode == store.ModeBurn {
		if err := o.Rooms.IncrementRemainingFiles(ctx, p.RoomID); err != nil {
			return store.File{}, err
		}
	}
	return f, nil
}

// Abort aborts a multipart upload; a missing handle is treated as success.
func (o *Orchestrator) Abort(ctx context.Context, fileKey, uploadID string) error {
	return o.Blobs.AbortMultipart(ctx, fileKey, uploadID)
}

// PresignSingle signs a single-shot PUT URL for small files that skip
// multipart entirely.
func (o *Orchestrator) PresignSingle(ctx context.Context, roomID, filename, contentType string, sizeBytes int64) (uploadURL, fileID, fileKey string, err error) {
	if sizeBytes <= 0 {
		return "", "", "", apierror.New(apierror.BadInput, "file size must be > 0")
	}
	if err := ValidateFilename(filename); err != nil {
		return "", "", "", err
	}
	if _, err := o.checkRoomLive(ctx, roomID); err != nil {
		return "", "", "", err
	}
	if err := o.Quota.EnsureQuota(ctx, roomID, sizeBytes); err != nil {
		return "", "", "", err
	}
	fileID = uuid.NewString()
	fileKey = objectstore.BlobKey(roomID, fileID, filename)
	url, err := o.Blobs.PresignPut(ctx, fileKey, contentType, objectstore.UploadPartURLTTL)
	if err != nil {
		return "", "", "", apierror.Wrap(apierror.Internal, err, "could not presign upload")
	}
	return url, fileID, fileKey, nil
}
