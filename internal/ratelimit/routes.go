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

package ratelimit

import "time"

// RouteClass names one row of the rate-limit table.
type RouteClass string

const (
	RouteGlobal      RouteClass = "global"
	RouteUpload      RouteClass = "upload"
	RoutePresign     RouteClass = "presign"
	RouteDownload    RouteClass = "download"
	RouteRoomAccess  RouteClass = "room_access"
	RouteHeartbeat   RouteClass = "heartbeat"
	RouteActivity    RouteClass = "activity"
	RouteDelete      RouteClass = "delete"
	RouteInvite      RouteClass = "invite"
	RouteAdminAnalytics RouteClass = "analytics_admin"
)

// HeavyRoutes are the routes Overload Guard sheds with 503 under pressure.
var HeavyRoutes = map[RouteClass]bool{
	RouteUpload:         true,
	RoutePresign:        true,
	RouteInvite:         true,
	RouteAdminAnalytics: true,
	RouteActivity:       true,
}

// Guard bundles every named limiter bin.
type Guard struct {
	Global      *Window
	Upload      *Window
	Presign     *Window
	Download    *Window
	RoomAccess  *Window
	Heartbeat   *Window
	Activity    *Window
	Delete      *Window
	Invite      *Window
	InviteIPRoom *Window
	InviteRecipient *Window
	InviteMinInterval *MinInterval
	AdminAnalytics *Window

	Health *HealthSampler
}

// NewGuard constructs a Guard with the default caps.
func NewGuard() *Guard {
	return &Guard{
		Global:            NewWindow(300, 15*time.Minute),
		Upload:            NewWindow(30, 15*time.Minute),
		Presign:           NewWindow(12, time.Minute),
		Download:          NewWindow(80, 15*time.Minute),
		RoomAccess:        NewWindow(4, time.Minute),
		Heartbeat:         NewWindow(12, time.Minute),
		Activity:          NewWindow(60, time.Minute),
		Delete:            NewWindow(8, time.Minute),
		Invite:            NewWindow(6, 10*time.Minute),
		InviteIPRoom:      NewWindow(3, 30*time.Minute),
		InviteRecipient:   NewWindow(3, time.Hour),
		InviteMinInterval: NewMinInterval(8 * time.Second),
		AdminAnalytics:    NewWindow(20, time.Minute),
		Health:            NewHealthSampler(3 * time.Second),
	}
}

// AllowRoute applies the global bin plus the named route's bin and reports
// the first bin to deny, if any.
func (g *Guard) AllowRoute(class RouteClass, key string, now time.Time) (bool, time.Duration) {
	if ok, retry := g.Global.Allow(key, now); !ok {
		return false, retry
	}
	w := g.windowFor(class)
	if w == nil {
		return true, 0
	}
	return w.Allow(key, now)
}

func (g *Guard) windowFor(class RouteClass) *Window {
	switch class {
	case RouteUpload:
		return g.Upload
	case RoutePresign:
		return g.Presign
	case RouteDownload:
		return g.Download
	case RouteRoomAccess:
		return g.RoomAccess
	case RouteHeartbeat:
		return g.Heartbeat
	case RouteActivity:
		return g.Activity
	case RouteDelete:
		return g.Delete
	case RouteAdminAnalytics:
		return g.AdminAnalytics
	default:
		return nil
	}
}

// AllowInvite applies all four invite bins plus the minimum inter-request
// interval, consumed before any external send.
func (g *Guard) AllowInvite(ip, room, recipient string, now time.Time) (bool, time.Duration) {
	checks := []struct {
		l   Limiter
		key string
	}{
		{g.Invite, ip},
		{g.InviteIPRoom, ip + "|" + room},
		{g.InviteRecipient, recipient},
		{g.InviteMinInterval, recipient},
	}
	for _, c := range checks {
		if ok, retry := c.l.Allow(c.key, now); !ok {
			return false, retry
		}
	}
	return true, 0
}

// IsHeavy reports whether class is shed under overload.
func IsHeavy(class RouteClass) bool { return HeavyRoutes[class] }
