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
	"testing"

	"github.com/Eusha122/Backend/internal/store"
)

type countingGeoLookup struct {
	calls int
	loc   store.GeoLocation
}

func (c *countingGeoLookup) Lookup(ctx context.Context, ip string) (store.GeoLocation, error) {
	c.calls++
	return c.loc, nil
}

func TestCachingGeoLookupCachesPerIP(t *testing.T) {
	next := &countingGeoLookup{loc: store.GeoLocation{Country: "Testland"}}
	c := NewCachingGeoLookup(next)

	loc1, err := c.Lookup(context.Background(), "203.0.113.1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	loc2, err := c.Lookup(context.Background(), "203.0.113.1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if loc1 != loc2 {
		t.Fatalf("Lookup results differ across calls: %+v vs %+v", loc1, loc2)
	}
	if next.calls != 1 {
		t.Fatalf("underlying Lookup calls = %d, want 1 (second call should hit cache)", next.calls)
	}
}

func TestCachingGeoLookupDistinctIPsEachCallThrough(t *testing.T) {
	next := &countingGeoLookup{}
	c := NewCachingGeoLookup(next)

	if _, err := c.Lookup(context.Background(), "203.0.113.1"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := c.Lookup(context.Background(), "203.0.113.2"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("underlying Lookup calls = %d, want 2 for distinct IPs", next.calls)
	}
}

func TestNopGeoLookupReturnsZeroValue(t *testing.T) {
	loc, err := (NopGeoLookup{}).Lookup(context.Background(), "203.0.113.1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if loc != (store.GeoLocation{}) {
		t.Errorf("loc = %+v, want zero value", loc)
	}
}
