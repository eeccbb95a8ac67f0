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
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"go4.org/ctxutil"
	"go4.org/syncutil/singleflight"
	"golang.org/x/net/context/ctxhttp"

	"github.com/Eusha122/Backend/internal/store"
)

// GeoLookup resolves a client IP to a coarse location. The external
// provider is out of scope; this package only defines the
// interface and a process-local cache around it.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (store.GeoLocation, error)
}

// CachingGeoLookup wraps a GeoLookup with the same singleflight-plus-RWMutex
// memoization Perkeep's pkg/geocode uses around its provider call, so
// concurrent requests for the same IP collapse into a single outbound call.
type CachingGeoLookup struct {
	next GeoLookup

	mu    sync.RWMutex
	cache map[string]store.GeoLocation
	sf    singleflight.Group
}

func NewCachingGeoLookup(next GeoLookup) *CachingGeoLookup {
	return &CachingGeoLookup{next: next, cache: make(map[string]store.GeoLocation)}
}

func (c *CachingGeoLookup) Lookup(ctx context.Context, ip string) (store.GeoLocation, error) {
	c.mu.RLock()
	loc, ok := c.cache[ip]
	c.mu.RUnlock()
	if ok {
		return loc, nil
	}
	loci, err := c.sf.Do(ip, func() (interface{}, error) {
		loc, err := c.next.Lookup(ctx, ip)
		if err != nil {
			return store.GeoLocation{}, err
		}
		c.mu.Lock()
		c.cache[ip] = loc
		c.mu.Unlock()
		return loc, nil
	})
	if err != nil {
		return store.GeoLocation{}, err
	}
	return loci.(store.GeoLocation), nil
}

// HTTPGeoLookup is a simple geo-IP HTTP provider, using the same
// go4.org/ctxutil + ctxhttp plumbing Perkeep's pkg/geocode.Lookup uses
// to make a context-aware outbound call.
type HTTPGeoLookup struct {
	BaseURL string // e.g. "https://ipapi.co"
}

func (h HTTPGeoLookup) Lookup(ctx context.Context, ip string) (store.GeoLocation, error) {
	u := h.BaseURL + "/" + url.PathEscape(ip) + "/json/"
	res, err := ctxhttp.Get(ctx, ctxutil.Client(ctx), u)
	if err != nil {
		return store.GeoLocation{}, err
	}
	defer res.Body.Close()

	var body struct {
		CountryName string `json:"country_name"`
		City        string `json:"city"`
		Region      string `json:"region"`
		Postal      string `json:"postal"`
		Timezone    string `json:"timezone"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return store.GeoLocation{}, err
	}
	return store.GeoLocation{
		Country:  body.CountryName,
		City:     body.City,
		Region:   body.Region,
		Postal:   body.Postal,
		Timezone: body.Timezone,
	}, nil
}

// NopGeoLookup always returns the zero GeoLocation; used by tests and any
// deployment that runs without a geo provider.
type NopGeoLookup struct{}

func (NopGeoLookup) Lookup(ctx context.Context, ip string) (store.GeoLocation, error) {
	return store.GeoLocation{}, nil
}

var _ GeoLookup = NopGeoLookup{}
var _ GeoLookup = (*CachingGeoLookup)(nil)
var _ GeoLookup = HTTPGeoLookup{}
