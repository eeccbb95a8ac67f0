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
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/Eusha122/Backend/internal/apierror"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError renders err as the taxonomy's HTTP status. It sets no
// Retry-After header, so a RateLimited or Overloaded error passed here is
// sent without one; writeRateLimited and writeOverloaded set it.
func writeError(w http.ResponseWriter, err error) {
	if apiErr, ok := apierror.As(err); ok {
		writeJSON(w, apiErr.Kind.HTTPStatus(), errorBody{Error: apiErr.Message, Kind: apiErr.Kind.String()})
		return
	}
	log.Printf("httpapi: unclassified error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: "internal"})
}

func writeRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Kind: "rate_limited"})
}

func writeOverloaded(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "server overloaded", Kind: "overloaded"})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierror.Wrap(apierror.BadInput, err, "malformed request body")
	}
	return nil
}
