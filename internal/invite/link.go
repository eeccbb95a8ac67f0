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
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/authn"
)

var fragmentKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{32,128}$`)

// ValidateEmail rejects anything net/mail can't parse as a single address.
func ValidateEmail(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return apierror.New(apierror.BadInput, "invalid email address")
	}
	return nil
}

// CanonicalURL reconstructs the outgoing share URL server-side: origin +
// "/room/<id>" with an optional "#key=<fragment>".
func CanonicalURL(origin, roomID, keyFragment string) string {
	u := strings.TrimSuffix(origin, "/") + "/room/" + roomID
	if keyFragment != "" {
		u += "#key=" + keyFragment
	}
	return u
}

// ValidateShareLink validates a client-supplied share link against the
// allow-listed origins, requiring path "/room/<roomId>", no query string,
// and at most one fragment parameter "key" matching
// [A-Za-z0-9_-]{32,128}.
//
// On success it returns the canonical form of the link to actually send.
func ValidateShareLink(raw, roomID string, allowedOrigins []string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", apierror.New(apierror.BadInput, "malformed share link")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", apierror.New(apierror.BadInput, "share link must be http(s)")
	}
	origin := u.Scheme + "://" + u.Host
	if !originAllowed(origin, allowedOrigins) {
		return "", apierror.New(apierror.BadInput, "share link origin not allowed")
	}
	if u.Path != "/room/"+roomID {
		return "", apierror.New(apierror.BadInput, "share link path must be /room/<roomId>")
	}
	if u.RawQuery != "" {
		return "", apierror.New(apierror.BadInput, "share link must not carry a query string")
	}
	keyFragment, err := validateFragment(u.Fragment)
	if err != nil {
		return "", err
	}
	return CanonicalURL(origin, roomID, keyFragment), nil
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if origin == a {
			return true
		}
	}
	return false
}

func validateFragment(frag string) (string, error) {
	if frag == "" {
		return "", nil
	}
	if !strings.HasPrefix(frag, "key=") {
		return "", apierror.New(apierror.BadInput, "share link fragment must be a single key=<...> parameter")
	}
	if strings.Contains(frag[len("key="):], "&") {
		return "", apierror.New(apierror.BadInput, "share link fragment must carry exactly one parameter")
	}
	keyVal := frag[len("key="):]
	if !fragmentKeyPattern.MatchString(keyVal) {
		return "", apierror.New(apierror.BadInput, "share link key fragment has an invalid shape")
	}
	return keyVal, nil
}

// AllowedOrigins builds the allow-list: the configured frontend origin,
// plus localhost variants when not in production.
func AllowedOrigins(frontendOrigin string, production bool) []string {
	origins := []string{frontendOrigin}
	if !production {
		origins = append(origins,
			"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000")
	}
	return origins
}

// ValidRoomID re-exports authn's UUID check for callers that only import
// this package.
var ValidRoomID = authn.ValidRoomID
