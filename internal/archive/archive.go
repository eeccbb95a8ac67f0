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

// Package archive implements the Bulk Archiver: stream a room's files as a
// single zip archive, using the standard library's archive/zip.
package archive

import (
	"archive/zip"
	"context"
	"io"
	"log"

	"github.com/Eusha122/Backend/internal/apierror"
	"github.com/Eusha122/Backend/internal/store"
)

// blobStore is the slice of *objectstore.Client this package needs, so
// tests can supply a fake without wiring an S3 endpoint.
type blobStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Archiver streams every live file in a room into a zip archive.
type Archiver struct {
	Files store.FileStore
	Blobs blobStore
}

func New(files store.FileStore, blobs blobStore) *Archiver {
	return &Archiver{Files: files, Blobs: blobs}
}

// Stream writes a zip archive of roomID's live files to w, under their
// display filenames. A failure to stream one member is logged and does
// not abort the archive.
func (a *Archiver) Stream(ctx context.Context, w io.Writer, roomID string) (count int, err error) {
	files, err := a.Files.ListFiles(ctx, roomID)
	if err != nil {
		return 0, err
	}
	live := make([]store.File, 0, len(files))
	for _, f := range files {
		if f.Status == store.FileLive {
			live = append(live, f)
		}
	}
	if len(live) == 0 {
		return 0, apierror.New(apierror.NotFound, "room has no files to archive")
	}

	zw := zip.NewWriter(w)
	defer zw.Close()

	for _, f := range live {
		if err := a.addMember(ctx, zw, f); err != nil {
			log.Printf("archive: room %s: skipping %s: %v", roomID, f.Filename, err)
			continue
		}
		count++
	}
	return count, nil
}

func (a *Archiver) addMember(ctx context.Context, zw *zip.Writer, f store.File) error {
	body, err := a.Blobs.Get(ctx, f.BlobKey)
	if err != nil {
		return err
	}
	defer body.Close()

	mw, err := zw.Create(f.Filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(mw, body)
	return err
}
