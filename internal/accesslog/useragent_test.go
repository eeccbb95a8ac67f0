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

package accesslog

import (
	"net/http/httptest"
	"testing"
)

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		ua         string
		browser    string
		os         string
		deviceType string
	}{
		{
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/114.0.0.0 Safari/537.36",
			browser:    "Chrome", os: "Windows 10/11", deviceType: "Desktop",
		},
		{
			ua:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 13_4) AppleWebKit/605.1.15 Version/16.5 Safari/605.1.15",
			browser:    "Safari", os: "macOS", deviceType: "Desktop",
		},
		{
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Edg/114.0.0.0",
			browser:    "Edge", os: "Windows 10/11", deviceType: "Desktop",
		},
		{
			ua:         "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 Chrome/114.0 Mobile Safari/537.36",
			browser:    "Chrome", os: "Android", deviceType: "Mobile",
		},
		{
			ua:         "Mozilla/5.0 (iPad; CPU OS 16_5 like Mac OS X) AppleWebKit/605.1.15 Version/16.5 Safari/604.1",
			browser:    "Safari", os: "iOS", deviceType: "Tablet",
		},
		{
			ua:         "",
			browser:    "Unknown", os: "Unknown", deviceType: "Desktop",
		},
	}
	for _, c := range cases {
		got := ParseUserAgent(c.ua)
		if got.Browser != c.browser || got.OS != c.os || got.DeviceType != c.deviceType {
			t.Errorf("ParseUserAgent(%q) = %+v, want {%s %s %s}", c.ua, got, c.browser, c.os, c.deviceType)
		}
	}
}

func TestResolveIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.RemoteAddr = "192.0.2.1:1234"
	if got := ResolveIP(r); got != "203.0.113.9" {
		t.Errorf("ResolveIP = %q, want 203.0.113.9", got)
	}
}

func TestResolveIPFallsBackToXRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "203.0.113.10")
	r.RemoteAddr = "192.0.2.1:1234"
	if got := ResolveIP(r); got != "203.0.113.10" {
		t.Errorf("ResolveIP = %q, want 203.0.113.10", got)
	}
}

func TestResolveIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	if got := ResolveIP(r); got != "192.0.2.1" {
		t.Errorf("ResolveIP = %q, want 192.0.2.1", got)
	}
}
