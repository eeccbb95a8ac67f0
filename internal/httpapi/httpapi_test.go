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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Eusha122/Backend/internal/accesslog"
	"github.com/Eusha122/Backend/internal/authn"
	"github.com/Eusha122/Backend/internal/invite"
	"github.com/Eusha122/Backend/internal/presence"
	"github.com/Eusha122/Backend/internal/ratelimit"
	"github.com/Eusha122/Backend/internal/store"
	"github.com/Eusha122/Backend/internal/store/memstore"
)

type fakeBlobs struct {
	deleted []string
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeMailer struct {
	sent []string
}

func (f *fakeMailer) Send(to, subject, htmlBody string) error {
	f.sent = append(f.sent, to)
	return nil
}

func newServer(t *testing.T) (*Server, *memstore.Store, *fakeBlobs) {
	t.Helper()
	ms := memstore.New()
	blobs := &fakeBlobs{}
	s := &Server{
		Rooms:     ms,
		Files:     ms,
		GuestIdx:  ms,
		Auth:      authn.New(ms, ms),
		Presence:  presence.New(ms, ms, ms),
		Guard:     ratelimit.NewGuard(),
		AccessLog: accesslog.New(ms, nil),
		Blobs:     blobs,
		Invite:    invite.New(ms, ratelimit.NewGuard(), &fakeMailer{}, "https://example.com", false),
	}
	return s, ms, blobs
}

func createActiveRoom(t *testing.T, ms *memstore.Store, roomID, authorToken string) {
	t.Helper()
	err := ms.CreateRoom(context.Background(), store.Room{
		ID: roomID, Status: store.StatusActive, Capacity: store.UnlimitedCapacity,
		ExpiresAt: time.Now().Add(time.Hour), AuthorDisplayName: "Alice",
	}, store.RoomSecret{RoomID: roomID, PasswordHash: strings.Repeat("a", 64), AuthorToken: authorToken})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
}

func doRequest(s *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handlerFor(s, method, path)(rec, req)
	return rec
}

// handlerFor looks up the handler without going through a real mux, since
// path parameters (r.PathValue) are set up below per call site instead.
func handlerFor(s *Server, method, path string) http.HandlerFunc {
	switch {
	case path == "/rooms" && method == "POST":
		return s.handleCreateRoom
	case path == "/rooms/verify-password":
		return s.handleVerifyPassword
	case path == "/verify-author":
		return s.handleVerifyAuthor
	case path == "/room-access" && method == "POST":
		return s.handleRoomAccess
	case path == "/room-access/presence":
		return s.handleHeartbeat
	case path == "/room-access/leave":
		return s.handleLeave
	case path == "/invite":
		return s.handleInvite
	case path == "/health":
		return s.handleHealth
	}
	panic("unhandled route in test: " + path)
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s, _, _ := newServer(t)
	rec := doRequest(s, "GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleCreateRoomSucceeds(t *testing.T) {
	s, _, _ := newServer(t)
	rec := doRequest(s, "POST", "/rooms", createRoomRequest{
		PasswordHash: strings.Repeat("a", 64),
		Mode:         "normal",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp createRoomResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" || resp.AuthorToken == "" {
		t.Fatalf("response missing id or author token: %+v", resp)
	}
}

func TestHandleCreateRoomRejectsBadPasswordHash(t *testing.T) {
	s, _, _ := newServer(t)
	rec := doRequest(s, "POST", "/rooms", createRoomRequest{PasswordHash: "short"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleVerifyPasswordMatchesAndMismatches(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "11111111-1111-4111-8111-111111111111"
	hash := strings.Repeat("b", 64)
	if err := ms.CreateRoom(context.Background(), store.Room{ID: roomID, Status: store.StatusActive},
		store.RoomSecret{RoomID: roomID, PasswordHash: hash}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	rec := doRequest(s, "POST", "/rooms/verify-password", verifyPasswordRequest{RoomID: roomID, PasswordHash: hash}, nil)
	var ok map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &ok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ok["valid"] {
		t.Error("expected valid=true for matching password hash")
	}

	rec = doRequest(s, "POST", "/rooms/verify-password", verifyPasswordRequest{RoomID: roomID, PasswordHash: strings.Repeat("c", 64)}, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &ok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok["valid"] {
		t.Error("expected valid=false for mismatching password hash")
	}
}

func TestHandleVerifyAuthorChecksBearerToken(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "22222222-2222-4222-8222-222222222222"
	createActiveRoom(t, ms, roomID, "secret-token")

	rec := doRequest(s, "POST", "/verify-author", verifyAuthorRequest{RoomID: roomID}, map[string]string{"X-Author-Token": "secret-token"})
	var ok map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &ok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ok["valid"] {
		t.Error("expected valid=true for matching author token")
	}

	rec = doRequest(s, "POST", "/verify-author", verifyAuthorRequest{RoomID: roomID}, map[string]string{"X-Author-Token": "wrong"})
	if err := json.Unmarshal(rec.Body.Bytes(), &ok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok["valid"] {
		t.Error("expected valid=false for mismatching author token")
	}
}

func TestHandleRoomAccessSkipsCapacityForAuthor(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "33333333-3333-4333-8333-333333333333"
	createActiveRoom(t, ms, roomID, "author-tok")

	rec := doRequest(s, "POST", "/room-access", roomAccessRequest{RoomID: roomID, Device: "dev-1"}, map[string]string{"X-Author-Token": "author-tok"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "author") {
		t.Errorf("expected author-skip response, got %s", rec.Body.String())
	}
}

func TestHandleRoomAccessJoinsGuestAndAssignsNumber(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "44444444-4444-4444-8444-444444444444"
	createActiveRoom(t, ms, roomID, "author-tok")

	rec := doRequest(s, "POST", "/room-access", roomAccessRequest{RoomID: roomID, Device: "guest-dev"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["guestNumber"] != 1 {
		t.Errorf("guestNumber = %d, want 1", body["guestNumber"])
	}
}

func TestHandleRoomAccessRejectsMissingDevice(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "55555555-5555-4555-8555-555555555555"
	createActiveRoom(t, ms, roomID, "author-tok")

	rec := doRequest(s, "POST", "/room-access", roomAccessRequest{RoomID: roomID}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleHeartbeatAfterJoinSucceeds(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "66666666-6666-4666-8666-666666666666"
	createActiveRoom(t, ms, roomID, "author-tok")

	_ = doRequest(s, "POST", "/room-access", roomAccessRequest{RoomID: roomID, Device: "dev-2"}, nil)
	rec := doRequest(s, "POST", "/room-access/presence", heartbeatRequest{RoomID: roomID, Device: "dev-2"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleLeaveAlwaysReturnsNoContent(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "77777777-7777-4777-8777-777777777777"
	createActiveRoom(t, ms, roomID, "author-tok")

	rec := doRequest(s, "POST", "/room-access/leave", leaveRequest{RoomID: roomID, Device: "never-joined"}, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestHandleDeleteFileBestEffortDeletesBlobThenRow(t *testing.T) {
	s, ms, blobs := newServer(t)
	roomID := "88888888-8888-4888-8888-888888888888"
	createActiveRoom(t, ms, roomID, "author-tok")
	fileID := "99999999-9999-4999-8999-999999999999"
	if err := ms.CreateFile(context.Background(), store.File{ID: fileID, RoomID: roomID, BlobKey: "rooms/" + roomID + "/" + fileID}); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/delete-file/"+fileID, jsonBody(deleteFileRequest{RoomID: roomID}))
	req.SetPathValue("id", fileID)
	req.Header.Set("X-Author-Token", "author-tok")
	rec := httptest.NewRecorder()
	s.handleDeleteFile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(blobs.deleted) != 1 {
		t.Fatalf("expected one blob delete, got %v", blobs.deleted)
	}
	if _, err := ms.GetFile(context.Background(), fileID); err == nil {
		t.Error("expected file row to be gone")
	}
}

func TestHandleDeleteFileRejectsNonAuthor(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "10101010-1010-4101-8101-101010101010"
	createActiveRoom(t, ms, roomID, "author-tok")

	req := httptest.NewRequest("DELETE", "/delete-file/nope", jsonBody(deleteFileRequest{RoomID: roomID}))
	req.SetPathValue("id", "nope")
	req.Header.Set("X-Author-Token", "wrong-token")
	rec := httptest.NewRecorder()
	s.handleDeleteFile(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatal("expected rejection of a non-author delete")
	}
}

func TestHandleInviteDeliversToMailer(t *testing.T) {
	s, ms, _ := newServer(t)
	roomID := "12121212-1212-4121-8121-121212121212"
	createActiveRoom(t, ms, roomID, "author-tok")

	rec := doRequest(s, "POST", "/invite", inviteRequest{RoomID: roomID, RecipientEmail: "bob@example.com"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleAnalyticsAdminReturns404WithoutToken(t *testing.T) {
	s, _, _ := newServer(t)
	s.AdminBearerToken = "admin-secret"
	req := httptest.NewRequest("GET", "/analytics-admin/", nil)
	rec := httptest.NewRecorder()
	s.handleAnalyticsAdmin(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleAnalyticsAdminAllowsCorrectToken(t *testing.T) {
	s, _, _ := newServer(t)
	s.AdminBearerToken = "admin-secret"
	req := httptest.NewRequest("GET", "/analytics-admin/", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	rec := httptest.NewRecorder()
	s.handleAnalyticsAdmin(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func jsonBody(v interface{}) *bytes.Buffer {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(v)
	return &buf
}
