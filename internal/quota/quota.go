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

// Package quota implements the per-room file-count and byte-total quota
// check shared by Initiate and Complete.
package quota

import (
	"context"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/store"
)

// Defaults, overridable per room via Room.MaxFiles / MaxTotalSizeBytes.
const (
	DefaultMaxFiles          = 100
	DefaultMaxTotalSizeBytes = 4 * 1024 * 1024 * 1024 // 4 GiB
)

// Engine checks projected usage against a room's caps.
type Engine struct {
	Rooms store.RoomStore
}

func New(rooms store.RoomStore) *Engine {
	return &Engine{Rooms: rooms}
}

// EnsureQuota reads current usage and validates the projected file count
// (+1) and byte total (+incomingBytes) against the room's caps. It returns
// a *apierror.Error with Kind apierror.PayloadTooLarge on violation.
func (e *Engine) EnsureQuota(ctx context.Context, roomID string, incomingBytes int64) error {
	fileCount, totalBytes, maxFiles, maxBytes, err := e.Rooms.GetUsage(ctx, roomID)
	if err != nil {
		return err
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTotalSizeBytes
	}
	if fileCount+1 > maxFiles {
		return apierror.New(apierror.PayloadTooLarge, "too_many_files: room already holds %d of %d files", fileCount, maxFiles)
	}
	if totalBytes+incomingBytes > maxBytes {
		return apierror.New(apierror.PayloadTooLarge, "size_exceeded: room holds %d of %d bytes, incoming %d", totalBytes, maxBytes, incomingBytes)
	}
	return nil
}
