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
	"net/url"

	"github.com/Eusha122/Backend/internal/accesslog"
	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/objectstore"
	"github.com/Eusha122/Backend/internal/store"
	"github.com/Eusha122/Backend/internal/upload"
)

type presignedUploadRequest struct {
	RoomID      string `json:"roomId"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// handlePresignedUpload implements POST /presigned-upload.
func (s *Server) handlePresignedUpload(w http.ResponseWriter, r *http.Request) {
	var req presignedUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireAuthor(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	uploadURL, fileID, fileKey, err := s.Upload.PresignSingle(r.Context(), req.RoomID, req.Filename, req.ContentType, req.SizeBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uploadUrl": uploadURL, "fileId": fileID, "fileKey": fileKey})
}

type initiateRequest struct {
	RoomID      string `json:"roomId"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// handleInitiate implements POST /multipart-upload/initiate.
func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireAuthor(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Upload.Initiate(r.Context(), req.RoomID, req.Filename, req.SizeBytes, req.ContentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uploadId": res.UploadID, "fileKey": res.FileKey, "fileId": res.FileID})
}

type signPartsRequest struct {
	RoomID      string  `json:"roomId"`
	FileKey     string  `json:"fileKey"`
	UploadID    string  `json:"uploadId"`
	PartNumbers []int64 `json:"partNumbers"`
}

// handleSignParts implements POST /multipart-upload/get-part-urls.
func (s *Server) handleSignParts(w http.ResponseWriter, r *http.Request) {
	var req signPartsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireAuthor(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	urls, err := s.Upload.SignPartURLs(r.Context(), req.RoomID, req.FileKey, req.UploadID, req.PartNumbers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"presignedUrls": urls})
}

type completedPart struct {
	PartNumber int64  `json:"partNumber"`
	ETag       string `json:"etag"`
}

type completeRequest struct {
	RoomID      string          `json:"roomId"`
	UploadID    string          `json:"uploadId"`
	FileKey     string          `json:"fileKey"`
	FileID      string          `json:"fileId"`
	Filename    string          `json:"filename"`
	SizeBytes   int64           `json:"sizeBytes"`
	ContentType string          `json:"contentType"`
	Message     string          `json:"message"`
	BurnAfter   bool            `json:"burnAfterDownload"`
	Parts       []completedPart `json:"parts"`
}

// handleComplete implements POST /multipart-upload/complete.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireAuthor(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	parts := make([]objectstore.CompletedPart, len(req.Parts))
	for i, p := range req.Parts {
		parts[i] = objectstore.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag}
	}
	f, err := s.Upload.Complete(r.Context(), upload.CompleteParams{
		RoomID:      req.RoomID,
		UploadID:    req.UploadID,
		FileKey:     req.FileKey,
		FileID:      req.FileID,
		Filename:    req.Filename,
		SizeBytes:   req.SizeBytes,
		ContentType: req.ContentType,
		Message:     req.Message,
		Parts:       parts,
		BurnAfter:   req.BurnAfter,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.AccessLog.Log(r.Context(), accesslog.Entry{
		RoomID:    req.RoomID,
		EventType: store.EventFileUpload,
	}, r)
	w.Header().Set("ETag", req.FileID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"file": f})
}

type abortRequest struct {
	RoomID   string `json:"roomId"`
	FileKey  string `json:"fileKey"`
	UploadID string `json:"uploadId"`
}

// handleAbort implements POST /multipart-upload/abort.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req abortRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireAuthor(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Upload.Abort(r.Context(), req.FileKey, req.UploadID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type updateFileRequest struct {
	RoomID      string  `json:"roomId"`
	TargetURL   *string `json:"targetUrl"`
	Description *string `json:"description"`
}

// handleUpdateFile implements PATCH /update-file/:id; targetUrl must be
// http(s) when supplied.
func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("id")
	var req updateFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireAuthor(s, r, req.RoomID); err != nil {
		writeError(w, err)
		return
	}
	if req.TargetURL != nil && *req.TargetURL != "" {
		u, err := url.Parse(*req.TargetURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			writeError(w, apierror.New(apierror.BadInput, "targetUrl must be http or https"))
			return
		}
	}
	f, err := s.Files.UpdateFile(r.Context(), fileID, req.TargetURL, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"file": f})
}
