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
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/invite"
)

// handleAccessLogs implements GET /access-logs/:room (author only).
func (s *Server) handleAccessLogs(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	if err := requireAuthor(s, r, roomID); err != nil {
		writeError(w, err)
		return
	}
	logs, err := s.AccessLog.List(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

type deleteFileRequest struct {
	RoomID string `json:"roomId"`
}

// handleDeleteFile implements DELETE /delete-file/:id (author only):
// best-effort blob delete, then row delete.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("id")
	var req deleteFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireAuthor(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	f, err := s.Files.GetFile(r.Context(), fileID)
	if err != nil {
		writeError(w, apierror.New(apierror.NotFound, "file not found"))
		return
	}
	if err := s.Blobs.Delete(r.Context(), f.BlobKey); err != nil {
		log.Printf("httpapi: delete-file %s: best-effort blob delete failed: %v", fileID, err)
	}
	if err := s.Files.DeleteFile(r.Context(), fileID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleDeleteRoom implements DELETE /delete-room/:id (author only).
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if err := requireAuthor(s, r, roomID); err != nil {
		writeError(w, err)
		return
	}
	n, err := s.Lifecycle.DeleteRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"filesDeleted": n})
}

type inviteRequest struct {
	RoomID         string `json:"roomId"`
	RecipientEmail string `json:"recipientEmail"`
	AuthorName     string `json:"authorName"`
	ShareLink      string `json:"shareLink"`
}

// handleInvite implements POST /invite.
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := s.Invite.Send(r.Context(), invite.Params{
		RecipientEmail: req.RecipientEmail,
		RoomID:         req.RoomID,
		AuthorName:     req.AuthorName,
		ShareLink:      req.ShareLink,
		ClientIP:       clientIP(r),
	}, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleAnalyticsLive and handleAnalyticsAdmin both deliberately answer 404
// (never 401) on a missing or wrong bearer token, so a prober cannot
// distinguish "no such route" from "wrong credentials".
func (s *Server) handleAnalyticsLive(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuthorized(r) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

func (s *Server) handleAnalyticsAdmin(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuthorized(r) {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) adminAuthorized(r *http.Request) bool {
	if s.AdminBearerToken == "" {
		return false
	}
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return false
	}
	token := h[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminBearerToken)) == 1
}
