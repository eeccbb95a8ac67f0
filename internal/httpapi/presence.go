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

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/accesslog"
	"github.com/Eusha122/Backend/internal/store"
)

type roomAccessRequest struct {
	RoomID string `json:"roomId"`
	Device string `json:"device"`
}

// handleRoomAccess implements POST /room-access: the author bypasses the
// capacity gate entirely; a guest is joined
// and assigned a stable guest number.
func (s *Server) handleRoomAccess(w http.ResponseWriter, r *http.Request) {
	var req roomAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Device == "" {
		writeError(w, apierror.New(apierror.BadInput, "device required"))
		return
	}
	now := s.now()
	if s.Auth.IsAuthorToken(r.Context(), req.RoomID, authorToken(r)) {
		writeJSON(w, http.StatusOK, map[string]string{"skipped": "author"})
		return
	}
	result, err := s.Presence.Join(r.Context(), req.RoomID, req.Device, now)
	if err != nil {
		writeError(w, err)
		return
	}
	s.AccessLog.Log(r.Context(), accesslog.Entry{
		RoomID:      req.RoomID,
		EventType:   store.EventRoomAccess,
		Device:      req.Device,
		GuestNumber: result.GuestNumber,
	}, r)
	writeJSON(w, http.StatusOK, map[string]int{"guestNumber": result.GuestNumber})
}

type heartbeatRequest struct {
	RoomID string `json:"roomId"`
	Device string `json:"device"`
}

// handleHeartbeat implements POST /room-access/presence.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Device == "" {
		writeError(w, apierror.New(apierror.BadInput, "device required"))
		return
	}
	if s.Auth.IsAuthorToken(r.Context(), req.RoomID, authorToken(r)) {
		writeJSON(w, http.StatusOK, map[string]string{"skipped": "author"})
		return
	}
	if err := s.Presence.Heartbeat(r.Context(), req.RoomID, req.Device, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type leaveRequest struct {
	RoomID string `json:"roomId"`
	Device string `json:"device"`
}

// handleLeave implements POST /room-access/leave, the sendBeacon-style
// notification; it always returns 204 regardless of whether device had a
// presence row.
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Device != "" {
		if err := s.Presence.Leave(r.Context(), req.RoomID, req.Device, s.now()); err != nil {
			writeError(w, err)
			return
		}
		s.AccessLog.Log(r.Context(), accesslog.Entry{
			RoomID:    req.RoomID,
			EventType: store.EventLeave,
			Device:    req.Device,
		}, r)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleActivity implements GET /room-access/activity/:room (author only).
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	if err := requireAuthor(s, r, roomID); err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.AccessLog.List(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activities": entries})
}

// handleCapacity implements GET /room-capacity/:room.
func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	cap, err := s.Presence.Gauge(r.Context(), roomID, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cap)
}
