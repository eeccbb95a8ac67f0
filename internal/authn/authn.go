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

// Package authn implements the two principals a room recognizes: the
// author, holding an opaque token bound to one room, and the guest,
// identified by a device string present in that room's presence table.
package authn

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"regexp"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/store"
)

// Principal is the outcome of Authorize.
type Principal int

const (
	Unauthorized Principal = iota
	Author
	Guest
)

var roomIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// ValidRoomID reports whether s has the strict UUID v1-5 shape required of
// every room identifier.
func ValidRoomID(s string) bool {
	return roomIDPattern.MatchString(s)
}

var passwordHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidPasswordHash reports whether s is a 64-character lower-hex sha256 sum.
func ValidPasswordHash(s string) bool {
	return passwordHashPattern.MatchString(s)
}

// HashPassword returns the sha256 hex digest stored as Room Secret's
// password_hash.
func HashPassword(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return fmt.Sprintf("%x", sum)
}

// NewAuthorToken returns a fresh, opaque, >=128-bit random token.
func NewAuthorToken() string {
	buf := make([]byte, 32)
	if n, err := rand.Read(buf); err != nil || n != len(buf) {
		panic("authn: failed to read random bytes: " + errString(err))
	}
	return fmt.Sprintf("%x", buf)
}

func errString(err error) string {
	if err == nil {
		return "short read"
	}
	return err.Error()
}

// Authenticator resolves identity against a metadata store.
type Authenticator struct {
	Rooms store.RoomStore
	Pres  store.PresenceStore
}

func New(rooms store.RoomStore, pres store.PresenceStore) *Authenticator {
	return &Authenticator{Rooms: rooms, Pres: pres}
}

// IsAuthorToken reports whether token is the author token for room, in
// constant time. Malformed ids, missing rows, and mismatches all return
// false; the caller cannot distinguish them, by design, to avoid letting a
// prober distinguish "no such room" from "wrong token".
func (a *Authenticator) IsAuthorToken(ctx context.Context, roomID, token string) bool {
	if !ValidRoomID(roomID) || token == "" {
		return false
	}
	sec, err := a.Rooms.GetSecret(ctx, roomID)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sec.AuthorToken), []byte(token)) == 1
}

// Authorize resolves a request's principal: the author path wins if token
// matches; otherwise a guest is recognized iff a presence row (room,
// device) exists, regardless of its active/left status.
func (a *Authenticator) Authorize(ctx context.Context, roomID, token, device string) Principal {
	if token != "" && a.IsAuthorToken(ctx, roomID, token) {
		return Author
	}
	if device == "" {
		return Unauthorized
	}
	_, ok, err := a.Pres.Get(ctx, roomID, device)
	if err != nil || !ok {
		return Unauthorized
	}
	return Guest
}

// RequireAuthor returns apierror.Unauthorized unless token authenticates
// as room's author.
func (a *Authenticator) RequireAuthor(ctx context.Context, roomID, token string) error {
	if !a.IsAuthorToken(ctx, roomID, token) {
		return apierror.New(apierror.Unauthorized, "author token required")
	}
	return nil
}

// RequireAuthorOrGuest returns the resolved Principal, or an error if
// neither check succeeds.
func (a *Authenticator) RequireAuthorOrGuest(ctx context.Context, roomID, token, device string) (Principal, error) {
	p := a.Authorize(ctx, roomID, token, device)
	if p == Unauthorized {
		return p, apierror.New(apierror.Unauthorized, "not authorized for this room")
	}
	return p, nil
}
