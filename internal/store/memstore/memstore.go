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

// Package memstore is an in-memory store.Store, used by tests. It
// implements the same atomicity guarantees the
// production postgres store relies on (a single mutex serializes every
// room-scoped mutation), so concurrent joins, heartbeats and uploads are
// meaningful against it.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Eusha122/Backend/internal/store"
)

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	rooms    map[string]*store.Room
	secrets  map[string]store.RoomSecret
	files    map[string]*store.File
	presence map[presenceKey]*store.Presence
	guestIdx map[string]map[string]int // roomID -> device -> number
	guestSeq map[string]int            // roomID -> next number
	logs     []store.AccessLogEntry
	nextLog  int64
}

type presenceKey struct{ room, device string }

// New returns an empty Store.
func New() *Store {
	return &Store{
		rooms:    make(map[string]*store.Room),
		secrets:  make(map[string]store.RoomSecret),
		files:    make(map[string]*store.File),
		presence: make(map[presenceKey]*store.Presence),
		guestIdx: make(map[string]map[string]int),
		guestSeq: make(map[string]int),
	}
}

func (s *Store) CreateRoom(ctx context.Context, room store.Room, secret store.RoomSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := room
	s.rooms[room.ID] = &r
	s.secrets[room.ID] = secret
	return nil
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return store.Room{}, store.ErrNotFound
	}
	return *r, nil
}

func (s *Store) GetSecret(ctx context.Context, roomID string) (store.RoomSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[roomID]
	if !ok {
		return store.RoomSecret{}, store.ErrNotFound
	}
	return sec, nil
}

func (s *Store) GetUsage(ctx context.Context, roomID string) (int, int64, int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return 0, 0, 0, 0, store.ErrNotFound
	}
	return r.FileCount, r.TotalSizeBytes, r.MaxFiles, r.MaxTotalSizeBytes, nil
}

func (s *Store) IncrementUsage(ctx context.Context, roomID string, deltaFiles int, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	r.FileCount += deltaFiles
	r.TotalSizeBytes += deltaBytes
	return nil
}

func (s *Store) IncrementRemainingFiles(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	r.RemainingFiles++
	return nil
}

func (s *Store) DecrementRemainingFiles(ctx context.Context, roomID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if r.RemainingFiles > 0 {
		r.RemainingFiles--
	}
	return r.RemainingFiles, nil
}

func (s *Store) SetStatus(ctx context.Context, roomID string, fromStatuses []store.RoomStatus, to store.RoomStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return false, store.ErrNotFound
	}
	ok = false
	for _, from := range fromStatuses {
		if r.Status == from {
			ok = true
			break
		}
	}
	if !ok {
		return false, nil
	}
	r.Status = to
	if to == store.StatusTerminating {
		r.TerminationStartedAt = time.Now()
	}
	return true, nil
}

func (s *Store) BeginDownload(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	r.DownloadInProgress++
	r.LastDownloadActivity = time.Now()
	return nil
}

func (s *Store) EndDownload(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	if r.DownloadInProgress > 0 {
		r.DownloadInProgress--
	}
	r.LastDownloadActivity = time.Now()
	return nil
}

func (s *Store) IsDownloadInProgress(ctx context.Context, roomID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return false, store.ErrNotFound
	}
	return r.DownloadInProgress > 0, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	delete(s.secrets, roomID)
	delete(s.guestIdx, roomID)
	delete(s.guestSeq, roomID)
	for id, f := range s.files {
		if f.RoomID == roomID {
			delete(s.files, id)
		}
	}
	for k := range s.presence {
		if k.room == roomID {
			delete(s.presence, k)
		}
	}
	return nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Room
	for _, r := range s.rooms {
		if !r.IsPermanent && r.ExpiresAt.Before(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateFile(ctx context.Context, f store.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ff := f
	s.files[f.ID] = &ff
	return nil
}

func (s *Store) GetFile(ctx context.Context, fileID string) (store.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return store.File{}, store.ErrNotFound
	}
	return *f, nil
}

func (s *Store) ListFiles(ctx context.Context, roomID string) ([]store.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.File
	for _, f := range s.files {
		if f.RoomID == roomID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) IncrementDownloadCount(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return store.ErrNotFound
	}
	f.DownloadCount++
	return nil
}

func (s *Store) DestroyFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return store.ErrNotFound
	}
	f.Status = store.FileDestroyed
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, fileID)
	return nil
}

func (s *Store) UpdateFile(ctx context.Context, fileID string, targetURL, description *string) (store.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return store.File{}, store.ErrNotFound
	}
	if targetURL != nil {
		f.TargetURL = *targetURL
	}
	if description != nil {
		f.Description = *description
	}
	return *f, nil
}

func (s *Store) SetScanResult(ctx context.Context, fileID string, status store.ScanStatus, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return store.ErrNotFound
	}
	f.ScanStatus = status
	f.ScanResult = result
	return nil
}

func (s *Store) Upsert(ctx context.Context, roomID, device string, isAuthor bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := presenceKey{roomID, device}
	p, ok := s.presence[k]
	if !ok {
		p = &store.Presence{RoomID: roomID, Device: device}
		s.presence[k] = p
	}
	p.IsAuthor = isAuthor
	p.Status = store.PresenceActive
	p.LastSeenAt = now
	return nil
}

func (s *Store) MarkLeft(ctx context.Context, roomID, device string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presence[presenceKey{roomID, device}]
	if !ok || p.Status != store.PresenceActive {
		return false, nil
	}
	p.Status = store.PresenceLeft
	p.LastSeenAt = now
	return true, nil
}

func (s *Store) CountActive(ctx context.Context, roomID, excludeDevice string, activeSince time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, p := range s.presence {
		if k.room != roomID || k.device == excludeDevice {
			continue
		}
		if p.IsAuthor {
			continue
		}
		if p.Status == store.PresenceActive && !p.LastSeenAt.Before(activeSince) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Get(ctx context.Context, roomID, device string) (store.Presence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presence[presenceKey{roomID, device}]
	if !ok {
		return store.Presence{}, false, nil
	}
	return *p, true, nil
}

func (s *Store) AssignNumber(ctx context.Context, roomID, device string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.guestIdx[roomID]
	if !ok {
		idx = make(map[string]int)
		s.guestIdx[roomID] = idx
	}
	if n, ok := idx[device]; ok {
		return n, nil
	}
	s.guestSeq[roomID]++
	n := s.guestSeq[roomID]
	idx[device] = n
	return n, nil
}

func (s *Store) Insert(ctx context.Context, entry store.AccessLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLog++
	entry.ID = s.nextLog
	s.logs = append(s.logs, entry)
	return nil
}

func (s *Store) List(ctx context.Context, roomID string) ([]store.AccessLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.AccessLogEntry
	for _, e := range s.logs {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ store.Store = (*Store)(nil)
