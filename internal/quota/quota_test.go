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

package quota

import (
	"context"
	"testing"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/store"
	"github.com/Eusha122/Backend/internal/store/memstore"
)

const roomID = "11111111-1111-4111-8111-111111111111"

func newRoom(t *testing.T, maxFiles int, maxBytes int64) *memstore.Store {
	t.Helper()
	ms := memstore.New()
	err := ms.CreateRoom(context.Background(), store.Room{
		ID:                roomID,
		Status:            store.StatusActive,
		MaxFiles:          maxFiles,
		MaxTotalSizeBytes: maxBytes,
	}, store.RoomSecret{AuthorToken: "t"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return ms
}

func asAPIError(t *testing.T, err error) *apierror.Error {
	t.Helper()
	ae, ok := err.(*apierror.Error)
	if !ok {
		t.Fatalf("error is %T, want *apierror.Error", err)
	}
	return ae
}

func TestEnsureQuotaAllowsWithinCaps(t *testing.T) {
	ms := newRoom(t, 10, 1000)
	e := New(ms)
	if err := e.EnsureQuota(context.Background(), roomID, 500); err != nil {
		t.Fatalf("EnsureQuota: %v", err)
	}
}

func TestEnsureQuotaRejectsTooManyFiles(t *testing.T) {
	ms := newRoom(t, 1, 1000)
	if err := ms.IncrementUsage(context.Background(), roomID, 1, 0); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	e := New(ms)
	err := e.EnsureQuota(context.Background(), roomID, 1)
	if err == nil {
		t.Fatal("expected a quota violation")
	}
	if ae := asAPIError(t, err); ae.Kind != apierror.PayloadTooLarge {
		t.Fatalf("Kind = %v, want PayloadTooLarge", ae.Kind)
	}
}

func TestEnsureQuotaRejectsOverByteCap(t *testing.T) {
	ms := newRoom(t, 10, 100)
	e := New(ms)
	err := e.EnsureQuota(context.Background(), roomID, 101)
	if err == nil {
		t.Fatal("expected a quota violation for bytes over cap")
	}
	asAPIError(t, err)
}

func TestEnsureQuotaAtExactByteCapIsAllowed(t *testing.T) {
	ms := newRoom(t, 10, 100)
	e := New(ms)
	if err := e.EnsureQuota(context.Background(), roomID, 100); err != nil {
		t.Fatalf("EnsureQuota at exact cap: %v", err)
	}
}

func TestEnsureQuotaZeroCapsFallBackToDefaults(t *testing.T) {
	ms := newRoom(t, 0, 0)
	e := New(ms)
	// Well within the package defaults, so it should be allowed.
	if err := e.EnsureQuota(context.Background(), roomID, 1024); err != nil {
		t.Fatalf("EnsureQuota with default caps: %v", err)
	}

	// Exceed the default file count by pre-loading DefaultMaxFiles files.
	if err := ms.IncrementUsage(context.Background(), roomID, DefaultMaxFiles, 0); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	err := e.EnsureQuota(context.Background(), roomID, 1)
	if err == nil {
		t.Fatal("expected a quota violation once default file count is reached")
	}
	asAPIError(t, err)
}

func TestEnsureQuotaUnknownRoom(t *testing.T) {
	ms := memstore.New()
	e := New(ms)
	if err := e.EnsureQuota(context.Background(), "22222222-2222-4222-8222-222222222222", 1); err == nil {
		t.Fatal("expected an error for an unknown room")
	}
}
