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

package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/authn"
	"github.com/Eusha122/Backend/internal/store"
)

type createRoomRequest struct {
	DisplayName       string `json:"displayName"`
	AuthorDisplayName string `json:"authorDisplayName"`
	Mode              string `json:"mode"`
	PasswordHash      string `json:"passwordHash"`
	Capacity          int    `json:"capacity"`
	TTLSeconds        int64  `json:"ttlSeconds"`
	IsPermanent       bool   `json:"isPermanent"`
	MaxFiles          int    `json:"maxFiles"`
	MaxTotalSizeBytes int64  `json:"maxTotalSizeBytes"`
}

type createRoomResponse struct {
	ID          string `json:"id"`
	AuthorToken string `json:"author_token"`
}

// handleCreateRoom implements POST /rooms.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !authn.ValidPasswordHash(req.PasswordHash) {
		writeError(w, apierror.New(apierror.BadInput, "passwordHash must be a 64-character lower-hex sha256 digest"))
		return
	}
	mode := store.RoomMode(req.Mode)
	if mode != store.ModeBurn {
		mode = store.ModeNormal
	}
	capacity := req.Capacity
	if capacity <= 0 {
		capacity = store.UnlimitedCapacity
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := s.now()
	room := store.Room{
		ID:                uuid.NewString(),
		DisplayName:       req.DisplayName,
		AuthorDisplayName: req.AuthorDisplayName,
		Mode:              mode,
		Status:            store.StatusActive,
		ExpiresAt:         now.Add(ttl),
		IsPermanent:       req.IsPermanent,
		Capacity:          capacity,
		MaxFiles:          req.MaxFiles,
		MaxTotalSizeBytes: req.MaxTotalSizeBytes,
		CreatedAt:         now,
	}
	secret := store.RoomSecret{
		RoomID:       room.ID,
		PasswordHash: req.PasswordHash,
		AuthorToken:  authn.NewAuthorToken(),
	}
	if err := s.Rooms.CreateRoom(r.Context(), room, secret); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createRoomResponse{ID: room.ID, AuthorToken: secret.AuthorToken})
}

type verifyPasswordRequest struct {
	RoomID       string `json:"roomId"`
	PasswordHash string `json:"passwordHash"`
}

// handleVerifyPassword implements POST /rooms/verify-password.
func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req verifyPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !authn.ValidRoomID(req.RoomID) || !authn.ValidPasswordHash(req.PasswordHash) {
		writeError(w, apierror.New(apierror.BadInput, "malformed roomId or passwordHash"))
		return
	}
	secret, err := s.Rooms.GetSecret(r.Context(), req.RoomID)
	valid := err == nil && secret.PasswordHash == req.PasswordHash
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

type verifyAuthorRequest struct {
	RoomID string `json:"roomId"`
}

// handleVerifyAuthor lets a client confirm its cached author token still
// authenticates the room, without side effects.
func (s *Server) handleVerifyAuthor(w http.ResponseWriter, r *http.Request) {
	var req verifyAuthorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !authn.ValidRoomID(req.RoomID) {
		writeError(w, apierror.New(apierror.BadInput, "malformed roomId"))
		return
	}
	ok := s.Auth.IsAuthorToken(r.Context(), req.RoomID, authorToken(r))
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}
