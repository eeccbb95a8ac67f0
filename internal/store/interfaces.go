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

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by any lookup that finds no matching row.
var ErrNotFound = errors.New("store: not found")

// RoomStore is the metadata-store surface for rooms and their secrets.
type RoomStore interface {
	CreateRoom(ctx context.Context, room Room, secret RoomSecret) error
	GetRoom(ctx context.Context, roomID string) (Room, error)
	GetSecret(ctx context.Context, roomID string) (RoomSecret, error)

	// GetUsage reads the room's current usage and returns it so the
	// caller (internal/quota) can decide admit/reject without a second
	// round trip.
	GetUsage(ctx context.Context, roomID string) (fileCount int, totalBytes int64, maxFiles int, maxBytes int64, err error)

	// IncrementUsage atomically adds to file_count and total_size_bytes.
	// Implementations must make this safe under concurrent Complete calls
	// for the same room.
	IncrementUsage(ctx context.Context, roomID string, deltaFiles int, deltaBytes int64) error

	// IncrementRemainingFiles and DecrementRemainingFiles back the
	// increment_remaining_files / decrement_remaining_files stored
	// procedures defined in internal/store/postgres.
	IncrementRemainingFiles(ctx context.Context, roomID string) error
	DecrementRemainingFiles(ctx context.Context, roomID string) (remaining int, err error)

	// SetStatus performs a conditional state transition: it must only
	// succeed if fromStatuses contains the room's current status, and
	// reports whether the transition happened. It does not look at
	// download_in_progress; callers check that separately.
	SetStatus(ctx context.Context, roomID string, fromStatuses []RoomStatus, to RoomStatus) (bool, error)

	// BeginDownload/EndDownload maintain the download_in_progress refcount.
	BeginDownload(ctx context.Context, roomID string) error
	EndDownload(ctx context.Context, roomID string) error
	IsDownloadInProgress(ctx context.Context, roomID string) (bool, error)

	DeleteRoom(ctx context.Context, roomID string) error

	// ListExpired returns non-permanent rooms whose expiry has passed.
	ListExpired(ctx context.Context, now time.Time) ([]Room, error)
}

// FileStore is the metadata-store surface for files.
type FileStore interface {
	CreateFile(ctx context.Context, f File) error
	GetFile(ctx context.Context, fileID string) (File, error)
	ListFiles(ctx context.Context, roomID string) ([]File, error)

	// IncrementDownloadCount adds 1 to the file's download_count. It is
	// called from the /download/end success path and from bulk-mark, both
	// of which skip destroyed files before calling it.
	IncrementDownloadCount(ctx context.Context, fileID string) error

	DestroyFile(ctx context.Context, fileID string) error
	DeleteFile(ctx context.Context, fileID string) error
	UpdateFile(ctx context.Context, fileID string, targetURL, description *string) (File, error)
	SetScanResult(ctx context.Context, fileID string, status ScanStatus, result string) error
}

// PresenceStore tracks who is currently in a room.
type PresenceStore interface {
	Upsert(ctx context.Context, roomID, device string, isAuthor bool, now time.Time) error
	MarkLeft(ctx context.Context, roomID, device string, now time.Time) (bool, error)
	CountActive(ctx context.Context, roomID, excludeDevice string, activeSince time.Time) (int, error)
	Get(ctx context.Context, roomID, device string) (Presence, bool, error)
}

// GuestIndexStore hands out stable per-device guest numbers, backed by the
// assign_user_number stored procedure.
type GuestIndexStore interface {
	// AssignNumber returns the existing guest number for (roomID, device)
	// if one exists, otherwise reserves and returns the next integer.
	// Must be race-free under concurrent first calls.
	AssignNumber(ctx context.Context, roomID, device string) (int, error)
}

// AccessLogStore persists the room activity log.
type AccessLogStore interface {
	Insert(ctx context.Context, entry AccessLogEntry) error
	List(ctx context.Context, roomID string) ([]AccessLogEntry, error)
}

// Store bundles everything the core needs; implementations typically embed
// a single underlying connection (one *sql.DB, or one mutex-guarded map set).
type Store interface {
	RoomStore
	FileStore
	PresenceStore
	GuestIndexStore
	AccessLogStore
}
