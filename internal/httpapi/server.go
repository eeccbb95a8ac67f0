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

// Package httpapi wires every core component into a route table,
// translating HTTP requests into calls against authn, presence, upload,
// download, archive, lifecycle and invite, and apierror.Kind values into
// HTTP status codes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Eusha122/Backend/internal/accesslog"
	"github.com/Eusha122/Backend/internal/archive"
	"github.com/Eusha122/Backend/internal/authn"
	"github.com/Eusha122/Backend/internal/download"
	"github.com/Eusha122/Backend/internal/invite"
	"github.com/Eusha122/Backend/internal/lifecycle"
	"github.com/Eusha122/Backend/internal/presence"
	"github.com/Eusha122/Backend/internal/ratelimit"
	"github.com/Eusha122/Backend/internal/store"
	"github.com/Eusha122/Backend/internal/upload"
)

// Mux is the subset of *http.ServeMux (or webserver.Server) Routes needs.
type Mux interface {
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

// blobStore is the slice of *objectstore.Client this package needs
// directly (outside of the Upload/Download/Archive/Lifecycle components),
// so tests can supply a fake without wiring an S3 endpoint.
type blobStore interface {
	Delete(ctx context.Context, key string) error
}

// Server holds every wired component and exposes Routes to register
// handlers on a Mux.
type Server struct {
	Rooms    store.RoomStore
	Files    store.FileStore
	GuestIdx store.GuestIndexStore

	Auth      *authn.Authenticator
	Presence  *presence.Gate
	Guard     *ratelimit.Guard
	Upload    *upload.Orchestrator
	Download  *download.Coordinator
	Archive   *archive.Archiver
	Lifecycle *lifecycle.Engine
	Invite    *invite.Flow
	AccessLog *accesslog.Logger
	Blobs     blobStore

	AdminBearerToken string

	Now func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Routes registers every endpoint on mux.
func (s *Server) Routes(mux Mux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /rooms", s.gate(ratelimit.RouteGlobal, s.handleCreateRoom))
	mux.HandleFunc("POST /rooms/verify-password", s.gate(ratelimit.RouteRoomAccess, s.handleVerifyPassword))

	mux.HandleFunc("POST /room-access", s.gate(ratelimit.RouteRoomAccess, s.handleRoomAccess))
	mux.HandleFunc("POST /room-access/presence", s.gate(ratelimit.RouteHeartbeat, s.handleHeartbeat))
	mux.HandleFunc("POST /room-access/leave", s.gate(ratelimit.RouteHeartbeat, s.handleLeave))
	mux.HandleFunc("GET /room-access/activity/{room}", s.gate(ratelimit.RouteActivity, s.handleActivity))

	mux.HandleFunc("POST /verify-author", s.gate(ratelimit.RouteGlobal, s.handleVerifyAuthor))

	mux.HandleFunc("POST /presigned-upload", s.gate(ratelimit.RoutePresign, s.handlePresignedUpload))
	mux.HandleFunc("POST /multipart-upload/initiate", s.gate(ratelimit.RouteUpload, s.handleInitiate))
	mux.HandleFunc("POST /multipart-upload/get-part-urls", s.gate(ratelimit.RoutePresign, s.handleSignParts))
	mux.HandleFunc("POST /multipart-upload/complete", s.gate(ratelimit.RouteUpload, s.handleComplete))
	mux.HandleFunc("POST /multipart-upload/abort", s.gate(ratelimit.RouteUpload, s.handleAbort))

	mux.HandleFunc("PATCH /update-file/{id}", s.gate(ratelimit.RouteGlobal, s.handleUpdateFile))

	mux.HandleFunc("GET /download", s.gate(ratelimit.RouteDownload, s.handleDownloadMint))
	mux.HandleFunc("POST /download/start", s.gate(ratelimit.RouteDownload, s.handleDownloadStart))
	mux.HandleFunc("POST /download/end", s.gate(ratelimit.RouteDownload, s.handleDownloadEnd))
	mux.HandleFunc("POST /download/bulk-mark", s.gate(ratelimit.RouteDownload, s.handleBulkMark))

	mux.HandleFunc("GET /preview", s.gate(ratelimit.RouteDownload, s.handlePreview))
	mux.HandleFunc("GET /bulk-download", s.gate(ratelimit.RouteDownload, s.handleBulkDownload))

	mux.HandleFunc("GET /access-logs/{room}", s.gate(ratelimit.RouteActivity, s.handleAccessLogs))

	mux.HandleFunc("DELETE /delete-file/{id}", s.gate(ratelimit.RouteDelete, s.handleDeleteFile))
	mux.HandleFunc("DELETE /delete-room/{id}", s.gate(ratelimit.RouteDelete, s.handleDeleteRoom))

	mux.HandleFunc("POST /invite", s.gate(ratelimit.RouteInvite, s.handleInvite))

	mux.HandleFunc("GET /room-capacity/{room}", s.gate(ratelimit.RouteGlobal, s.handleCapacity))

	mux.HandleFunc("GET /analytics/live", s.gate(ratelimit.RouteAdminAnalytics, s.handleAnalyticsLive))
	mux.HandleFunc("GET /analytics-admin/", s.gate(ratelimit.RouteAdminAnalytics, s.handleAnalyticsAdmin))
}

// gate applies the overload guard (heavy routes only) and the per-route
// rate-limit bin before calling fn.
func (s *Server) gate(class ratelimit.RouteClass, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := s.now()
		if ratelimit.IsHeavy(class) && s.Guard.Health.Overloaded(now) {
			writeOverloaded(w, 5)
			return
		}
		ip := accesslog.ResolveIP(r)
		if ok, retry := s.Guard.AllowRoute(class, ip, now); !ok {
			writeRateLimited(w, int(retry.Seconds())+1)
			return
		}
		fn(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().UTC(),
	})
}

func deviceID(r *http.Request) string    { return r.Header.Get("X-Device-Id") }
func authorToken(r *http.Request) string { return r.Header.Get("X-Author-Token") }

func clientIP(r *http.Request) string { return accesslog.ResolveIP(r) }

func requireAuthor(s *Server, r *http.Request, roomID string) error {
	return s.Auth.RequireAuthor(r.Context(), roomID, authorToken(r))
}

func principal(s *Server, r *http.Request, roomID string) (authn.Principal, error) {
	return s.Auth.RequireAuthorOrGuest(r.Context(), roomID, authorToken(r), deviceID(r))
}
