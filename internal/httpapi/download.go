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
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/Eusha122/Backend/internal/accesslog"
	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/authn"
	"github.com/Eusha122/Backend/internal/store"
)

// handleDownloadMint implements GET /download?fileKey=.
func (s *Server) handleDownloadMint(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	fileKey := r.URL.Query().Get("fileKey")
	if _, err := principal(s, r, roomID); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Download.Mint(r.Context(), roomID, fileKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signedUrl":  res.SignedURL,
		"filename":   res.Filename,
		"burnMode":   res.BurnMode,
		"roomStatus": res.RoomStatus,
	})
}

type downloadStartRequest struct {
	RoomID string `json:"roomId"`
	FileID string `json:"fileId"`
}

// handleDownloadStart implements POST /download/start.
func (s *Server) handleDownloadStart(w http.ResponseWriter, r *http.Request) {
	var req downloadStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := principal(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Download.Start(r.Context(), req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type downloadEndRequest struct {
	RoomID  string `json:"roomId"`
	FileID  string `json:"fileId"`
	Device  string `json:"device"`
	Success bool   `json:"success"`
}

// handleDownloadEnd implements POST /download/end.
func (s *Server) handleDownloadEnd(w http.ResponseWriter, r *http.Request) {
	var req downloadEndRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := principal(s, r, req.RoomID)
	if err != nil {
		writeError(w, err)
		return
	}
	guestNumber := 0
	if p == authn.Guest && req.Device != "" {
		if n, err := s.GuestIdx.AssignNumber(r.Context(), req.RoomID, req.Device); err == nil {
			guestNumber = n
		}
	}
	if err := s.Download.End(r.Context(), r, req.RoomID, req.FileID, req.Device, req.Success, guestNumber); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type bulkMarkRequest struct {
	RoomID  string   `json:"roomId"`
	FileIDs []string `json:"fileIds"`
}

// handleBulkMark implements POST /download/bulk-mark.
func (s *Server) handleBulkMark(w http.ResponseWriter, r *http.Request) {
	var req bulkMarkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := principal(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	n, err := s.Download.BulkMark(r.Context(), req.RoomID, req.FileIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"filesMarked": n})
}

// handlePreview implements GET /preview?fileKey=&proxy=.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	fileKey := r.URL.Query().Get("fileKey")
	res, err := s.Download.Mint(r.Context(), roomID, fileKey)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("proxy") != "true" {
		writeJSON(w, http.StatusOK, map[string]string{"signedUrl": res.SignedURL})
		return
	}
	http.Redirect(w, r, res.SignedURL, http.StatusFound)
}

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.TrimSpace(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "room"
	}
	return s
}

// handleBulkDownload implements GET /bulk-download?roomId=.
func (s *Server) handleBulkDownload(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	room, err := s.Rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, apierror.New(apierror.NotFound, "room not found"))
		return
	}
	filename := fmt.Sprintf("%s.zip", slug(room.DisplayName))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if _, err := s.Archive.Stream(r.Context(), w, roomID); err != nil {
		writeError(w, err)
		return
	}
	s.AccessLog.Log(r.Context(), accesslog.Entry{
		RoomID:    roomID,
		EventType: store.EventBulkDownload,
	}, r)
}
