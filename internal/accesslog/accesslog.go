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

// Package accesslog implements the Access Log & Dedup component: resolve
// IP, enrich with geolocation and parsed user-agent, dedup within a short
// in-process window, and write to the metadata store without ever failing
// the containing request.
package accesslog

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Eusha122/Backend/internal/store"
)

// DedupWindow is the TTL of the in-process dedup cache.
const DedupWindow = 3 * time.Second

type dedupKey struct {
	room   string
	event  store.AccessEventType
	device string
}

// Logger writes enriched access log entries, deduping repeats within
// DedupWindow. It is process-local: a restart or a second process may
// admit a duplicate, which is why the download path additionally dedups
// file_download at the database level.
type Logger struct {
	Store store.AccessLogStore
	Geo   GeoLookup

	mu   sync.Mutex
	seen map[dedupKey]time.Time
}

func New(s store.AccessLogStore, geo GeoLookup) *Logger {
	if geo == nil {
		geo = NopGeoLookup{}
	}
	return &Logger{Store: s, Geo: geo, seen: make(map[dedupKey]time.Time)}
}

// Entry describes one LogAccess call.
type Entry struct {
	RoomID      string
	EventType   store.AccessEventType
	Device      string
	Session     string
	GuestNumber int
}

// Log enriches and writes entry, deduplicating on (room, event, device)
// within DedupWindow. Enrichment and write failures are logged and
// swallowed: they must never fail the containing request.
func (l *Logger) Log(ctx context.Context, e Entry, r *http.Request) {
	now := time.Now()
	key := dedupKey{e.RoomID, e.EventType, e.Device}

	l.mu.Lock()
	if t, ok := l.seen[key]; ok && now.Sub(t) < DedupWindow {
		l.mu.Unlock()
		return
	}
	l.seen[key] = now
	l.sweepLocked(now)
	l.mu.Unlock()

	var ip, ua string
	if r != nil {
		ip = ResolveIP(r)
		ua = r.UserAgent()
	}
	parsed := ParseUserAgent(ua)

	geo, err := l.Geo.Lookup(ctx, ip)
	if err != nil {
		log.Printf("accesslog: geo lookup for %s failed, continuing without it: %v", ip, err)
	}

	entry := store.AccessLogEntry{
		RoomID:      e.RoomID,
		EventType:   e.EventType,
		Device:      e.Device,
		Session:     e.Session,
		Timestamp:   now,
		IP:          ip,
		UserAgent:   ua,
		Browser:     parsed.Browser,
		OS:          parsed.OS,
		DeviceType:  parsed.DeviceType,
		Geo:         geo,
		GuestNumber: e.GuestNumber,
	}
	if err := l.Store.Insert(ctx, entry); err != nil {
		log.Printf("accesslog: insert failed, continuing: %v", err)
	}
}

// sweepLocked evicts dedup entries older than DedupWindow. Must be called
// with mu held.
func (l *Logger) sweepLocked(now time.Time) {
	for k, t := range l.seen {
		if now.Sub(t) >= DedupWindow {
			delete(l.seen, k)
		}
	}
}

// List returns the raw log for a room.
func (l *Logger) List(ctx context.Context, roomID string) ([]store.AccessLogEntry, error) {
	return l.Store.List(ctx, roomID)
}
