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

package invite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/ratelimit"
	"github.com/Eusha122/Backend/internal/store"
	"github.com/Eusha122/Backend/internal/store/memstore"
)

const roomID = "11111111-1111-4111-8111-111111111111"

type fakeMailer struct {
	sent   []string
	bodies []string
	err    error
}

func (f *fakeMailer) Send(to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, htmlBody)
	return nil
}

func newFlow(t *testing.T) (*Flow, *fakeMailer) {
	t.Helper()
	ms := memstore.New()
	err := ms.CreateRoom(context.Background(), store.Room{
		ID: roomID, Status: store.StatusActive, AuthorDisplayName: "Alice",
	}, store.RoomSecret{AuthorToken: "t"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	mailer := &fakeMailer{}
	f := New(ms, ratelimit.NewGuard(), mailer, "https://example.com", false)
	return f, mailer
}

func asAPIError(t *testing.T, err error) *apierror.Error {
	t.Helper()
	ae, ok := err.(*apierror.Error)
	if !ok {
		t.Fatalf("error is %T, want *apierror.Error", err)
	}
	return ae
}

func TestSendRejectsInvalidEmail(t *testing.T) {
	f, _ := newFlow(t)
	err := f.Send(context.Background(), Params{RecipientEmail: "not-an-email", RoomID: roomID}, time.Now())
	if err == nil {
		t.Fatal("expected rejection of an invalid email")
	}
	if ae := asAPIError(t, err); ae.Kind != apierror.BadInput {
		t.Fatalf("Kind = %v, want BadInput", ae.Kind)
	}
}

func TestSendRejectsInvalidRoomID(t *testing.T) {
	f, _ := newFlow(t)
	err := f.Send(context.Background(), Params{RecipientEmail: "a@example.com", RoomID: "not-a-room"}, time.Now())
	if err == nil {
		t.Fatal("expected rejection of an invalid room id")
	}
}

func TestSendRejectsUnknownRoom(t *testing.T) {
	f, _ := newFlow(t)
	err := f.Send(context.Background(), Params{
		RecipientEmail: "a@example.com",
		RoomID:         "22222222-2222-4222-8222-222222222222",
	}, time.Now())
	if err == nil {
		t.Fatal("expected rejection of an unknown room")
	}
	if ae := asAPIError(t, err); ae.Kind != apierror.NotFound {
		t.Fatalf("Kind = %v, want NotFound", ae.Kind)
	}
}

func TestSendSucceedsAndUsesRoomAuthorDisplayName(t *testing.T) {
	f, mailer := newFlow(t)
	err := f.Send(context.Background(), Params{
		RecipientEmail: "bob@example.com",
		RoomID:         roomID,
		ClientIP:       "203.0.113.1",
	}, time.Now())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "bob@example.com" {
		t.Fatalf("mailer.sent = %v, want [bob@example.com]", mailer.sent)
	}
	if !strings.Contains(mailer.bodies[0], "Alice") {
		t.Fatalf("invite body does not name the room author %q: %s", "Alice", mailer.bodies[0])
	}
}

func TestSendHonorsRateLimit(t *testing.T) {
	f, _ := newFlow(t)
	now := time.Now()
	for i := 0; i < 100; i++ {
		_ = f.Send(context.Background(), Params{
			RecipientEmail: "a@example.com",
			RoomID:         roomID,
			ClientIP:       "203.0.113.1",
		}, now)
	}
	err := f.Send(context.Background(), Params{
		RecipientEmail: "a@example.com",
		RoomID:         roomID,
		ClientIP:       "203.0.113.1",
	}, now)
	if err == nil {
		t.Fatal("expected the invite rate limit to eventually trip")
	}
	if ae := asAPIError(t, err); ae.Kind != apierror.RateLimited {
		t.Fatalf("Kind = %v, want RateLimited", ae.Kind)
	}
}

func TestSendRejectsDisallowedShareLinkOrigin(t *testing.T) {
	f, _ := newFlow(t)
	err := f.Send(context.Background(), Params{
		RecipientEmail: "a@example.com",
		RoomID:         roomID,
		ShareLink:      "https://evil.example/room/" + roomID,
	}, time.Now())
	if err == nil {
		t.Fatal("expected rejection of a share link on a disallowed origin")
	}
}
