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
	"net"
	"net/http"
	"regexp"
	"strings"
)

// osPattern pairs a detection regex with the label it reports. Order
// matters: Windows before generic NT, iOS before macOS (iOS UAs contain
// "like Mac OS X"), Android before Linux.
var osPatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`Windows NT 10\.0`), "Windows 10/11"},
	{regexp.MustCompile(`Windows NT`), "Windows"},
	{regexp.MustCompile(`iPhone|iPad|iPod`), "iOS"},
	{regexp.MustCompile(`Mac OS X`), "macOS"},
	{regexp.MustCompile(`Android`), "Android"},
	{regexp.MustCompile(`Linux`), "Linux"},
}

// browserPatterns follows Edge -> Opera -> Chrome -> Firefox -> Safari
// precedence, since most browser UAs impersonate Chrome or Safari tokens.
var browserPatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`Edg/`), "Edge"},
	{regexp.MustCompile(`OPR/|Opera`), "Opera"},
	{regexp.MustCompile(`Chrome/`), "Chrome"},
	{regexp.MustCompile(`CriOS/`), "Chrome"},
	{regexp.MustCompile(`FxiOS/|Firefox/`), "Firefox"},
	{regexp.MustCompile(`Safari/`), "Safari"},
}

var (
	mobileRe = regexp.MustCompile(`Mobile|Android|iPhone`)
	tabletRe = regexp.MustCompile(`Tablet|iPad`)
)

// ParsedUA is the browser/OS/device-type enrichment attached to an access
// log entry.
type ParsedUA struct {
	Browser    string
	OS         string
	DeviceType string
}

// ParseUserAgent applies an ordered regex table.
func ParseUserAgent(ua string) ParsedUA {
	p := ParsedUA{Browser: "Unknown", OS: "Unknown", DeviceType: "Desktop"}
	for _, pat := range osPatterns {
		if pat.re.MatchString(ua) {
			p.OS = pat.label
			break
		}
	}
	// Edge and Opera both embed "Chrome/" and "Safari/" tokens, so ordering
	// the checks Edge -> Opera -> Chrome -> Firefox -> Safari resolves the
	// precedence the Windows/Mac UA strings create.
	order := []struct {
		re    *regexp.Regexp
		label string
	}{
		browserPatterns[0], // Edge
		browserPatterns[1], // Opera
		browserPatterns[2], // Chrome
		browserPatterns[3], // Chrome (iOS)
		browserPatterns[4], // Firefox
		browserPatterns[5], // Safari
	}
	for _, pat := range order {
		if pat.re.MatchString(ua) {
			p.Browser = pat.label
			break
		}
	}
	switch {
	case tabletRe.MatchString(ua):
		p.DeviceType = "Tablet"
	case mobileRe.MatchString(ua):
		p.DeviceType = "Mobile"
	}
	return p
}

// ResolveIP implements a trust-proxy header chain: first
// element of X-Forwarded-For, else X-Real-IP, else the router-computed
// remote address, normalizing an IPv6-mapped IPv4 address to its v4 form.
func ResolveIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return normalizeIP(first)
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return normalizeIP(strings.TrimSpace(real))
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalizeIP(r.RemoteAddr)
	}
	return normalizeIP(host)
}

func normalizeIP(s string) string {
	ip := net.ParseIP(s)
	if ip == nil {
		return s
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
