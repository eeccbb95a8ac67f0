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

// Package invite implements the Invite Flow: validation gates, rate
// limiting, template rendering, and handoff to the external mailer.
package invite

import (
	"context"
	"time"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/ratelimit"
	"github.com/Eusha122/Backend/internal/store"
)

// Flow drives POST /invite.
type Flow struct {
	Rooms          store.RoomStore
	Guard          *ratelimit.Guard
	Mailer         Mailer
	FrontendOrigin string
	Production     bool
}

func New(rooms store.RoomStore, guard *ratelimit.Guard, mailer Mailer, frontendOrigin string, production bool) *Flow {
	return &Flow{Rooms: rooms, Guard: guard, Mailer: mailer, FrontendOrigin: frontendOrigin, Production: production}
}

// Params bundles POST /invite's inputs.
type Params struct {
	RecipientEmail string
	RoomID         string
	AuthorName     string
	ShareLink      string // optional; client-supplied
	ClientIP       string
}

// Send runs the gates in order: email shape,
// UUID shape, four rate-limit bins, room existence, then share-link
// validation, template render, and mailer handoff. Rate-limit counters
// are consumed before the external send.
func (f *Flow) Send(ctx context.Context, p Params, now time.Time) error {
	if err := ValidateEmail(p.RecipientEmail); err != nil {
		return err
	}
	if !ValidRoomID(p.RoomID) {
		return apierror.New(apierror.BadInput, "invalid room id")
	}
	if ok, retry := f.Guard.AllowInvite(p.ClientIP, p.RoomID, p.RecipientEmail, now); !ok {
		return apierror.New(apierror.RateLimited, "invite rate limit exceeded, retry in %s", retry)
	}
	room, err := f.Rooms.GetRoom(ctx, p.RoomID)
	if err != nil {
		return apierror.New(apierror.NotFound, "room not found")
	}

	shareURL := CanonicalURL(f.FrontendOrigin, p.RoomID, "")
	if p.ShareLink != "" {
		allowed := AllowedOrigins(f.FrontendOrigin, f.Production)
		canon, err := ValidateShareLink(p.ShareLink, p.RoomID, allowed)
		if err != nil {
			return err
		}
		shareURL = canon
	}

	authorName := p.AuthorName
	if authorName == "" {
		authorName = room.AuthorDisplayName
	}
	body, err := RenderInvite(TemplateData{AuthorName: authorName, ShareURL: shareURL})
	if err != nil {
		return apierror.Wrap(apierror.Internal, err, "could not render invite email")
	}
	if err := f.Mailer.Send(p.RecipientEmail, "You've been invited to a shared room", body); err != nil {
		return apierror.Wrap(apierror.Internal, err, "could not send invite email")
	}
	return nil
}
