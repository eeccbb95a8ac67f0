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

// Package postgres implements store.Store on top of PostgreSQL, grounded on
// Perkeep's pkg/sorted/postgres (schema-creation-at-open, a meta table
// recording the schema version, database/sql throughout).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Eusha122/Backend/internal/store"
)

// Store is a database/sql backed store.Store.
type Store struct {
	db *sql.DB
}

// Open connects to conninfo (a lib/pq connection string), creates any
// missing tables and stored procedures, and records requiredSchemaVersion
// in meta. A version already stored there is overwritten, not compared.
func Open(conninfo string) (*Store, error) {
	db, err := sql.Open("postgres", conninfo)
	if err != nil {
		return nil, err
	}
	for _, stmt := range sqlCreateTables() {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("postgres store: creating table: %v", err)
		}
	}
	for _, stmt := range sqlDefineProcedures() {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("postgres store: defining procedure: %v", err)
		}
	}
	if _, err := db.Exec(`INSERT INTO meta (metakey, value) VALUES ('version', $1)
		ON CONFLICT (metakey) DO UPDATE SET value = EXCLUDED.value`,
		fmt.Sprintf("%d", requiredSchemaVersion)); err != nil {
		return nil, fmt.Errorf("postgres store: setting schema version: %v", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres store: db unreachable: %v", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateRoom(ctx context.Context, room store.Room, secret store.RoomSecret) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO rooms
		(id, display_name, author_display_name, mode, status, expires_at, is_permanent,
		 capacity, remaining_files, max_files, max_total_size_bytes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		room.ID, room.DisplayName, room.AuthorDisplayName, string(room.Mode), string(room.Status),
		room.ExpiresAt, room.IsPermanent, room.Capacity, room.RemainingFiles,
		room.MaxFiles, room.MaxTotalSizeBytes, room.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO room_secrets (room_id, password_hash, author_token)
		VALUES ($1,$2,$3)`, room.ID, secret.PasswordHash, secret.AuthorToken); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (store.Room, error) {
	var r store.Room
	var mode, status string
	var lastDL, termAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name, author_display_name, mode, status,
		expires_at, is_permanent, capacity, remaining_files, download_in_progress,
		last_download_activity, termination_started_at, file_count, total_size_bytes,
		max_files, max_total_size_bytes, created_at FROM rooms WHERE id = $1`, roomID).Scan(
		&r.ID, &r.DisplayName, &r.AuthorDisplayName, &mode, &status,
		&r.ExpiresAt, &r.IsPermanent, &r.Capacity, &r.RemainingFiles, &r.DownloadInProgress,
		&lastDL, &termAt, &r.FileCount, &r.TotalSizeBytes,
		&r.MaxFiles, &r.MaxTotalSizeBytes, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return store.Room{}, store.ErrNotFound
	}
	if err != nil {
		return store.Room{}, err
	}
	r.Mode, r.Status = store.RoomMode(mode), store.RoomStatus(status)
	if lastDL.Valid {
		r.LastDownloadActivity = lastDL.Time
	}
	if termAt.Valid {
		r.TerminationStartedAt = termAt.Time
	}
	return r, nil
}

func (s *Store) GetSecret(ctx context.Context, roomID string) (store.RoomSecret, error) {
	var sec store.RoomSecret
	sec.RoomID = roomID
	err := s.db.QueryRowContext(ctx, `SELECT password_hash, author_token FROM room_secrets WHERE room_id = $1`,
		roomID).Scan(&sec.PasswordHash, &sec.AuthorToken)
	if err == sql.ErrNoRows {
		return store.RoomSecret{}, store.ErrNotFound
	}
	return sec, err
}

func (s *Store) GetUsage(ctx context.Context, roomID string) (int, int64, int, int64, error) {
	var fileCount, maxFiles int
	var totalBytes, maxBytes int64
	err := s.db.QueryRowContext(ctx, `SELECT file_count, total_size_bytes, max_files, max_total_size_bytes
		FROM rooms WHERE id = $1`, roomID).Scan(&fileCount, &totalBytes, &maxFiles, &maxBytes)
	if err == sql.ErrNoRows {
		return 0, 0, 0, 0, store.ErrNotFound
	}
	return fileCount, totalBytes, maxFiles, maxBytes, err
}

func (s *Store) IncrementUsage(ctx context.Context, roomID string, deltaFiles int, deltaBytes int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET file_count = file_count + $2,
		total_size_bytes = total_size_bytes + $3 WHERE id = $1`, roomID, deltaFiles, deltaBytes)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Store) IncrementRemainingFiles(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, `SELECT increment_remaining_files($1)`, roomID)
	return err
}

func (s *Store) DecrementRemainingFiles(ctx context.Context, roomID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT decrement_remaining_files($1)`, roomID).Scan(&n)
	return n, err
}

func (s *Store) SetStatus(ctx context.Context, roomID string, fromStatuses []store.RoomStatus, to store.RoomStatus) (bool, error) {
	strs := make([]string, len(fromStatuses))
	for i, f := range fromStatuses {
		strs[i] = string(f)
	}
	query := `UPDATE rooms SET status = $1`
	args := []interface{}{string(to)}
	if to == store.StatusTerminating {
		query += `, termination_started_at = now()`
	}
	query += ` WHERE id = $2 AND status = ANY($3)`
	args = append(args, roomID, pq.Array(strs))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) BeginDownload(ctx context.Context, roomID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET download_in_progress = download_in_progress + 1,
		last_download_activity = now() WHERE id = $1`, roomID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Store) EndDownload(ctx context.Context, roomID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET download_in_progress = GREATEST(download_in_progress - 1, 0),
		last_download_activity = now() WHERE id = $1`, roomID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Store) IsDownloadInProgress(ctx context.Context, roomID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT download_in_progress FROM rooms WHERE id = $1`, roomID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, store.ErrNotFound
	}
	return n > 0, err
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM rooms WHERE is_permanent = FALSE AND expires_at < $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	var out []store.Room
	for _, id := range ids {
		r, err := s.GetRoom(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) CreateFile(ctx context.Context, f store.File) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO files
		(id, room_id, filename, blob_key, size_bytes, content_type, status,
		 burn_after_download, scan_status, scan_result, message, target_url, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		f.ID, f.RoomID, f.Filename, f.BlobKey, f.SizeBytes, f.ContentType, string(f.Status),
		f.BurnAfterDownload, string(f.ScanStatus), f.ScanResult, f.Message, f.TargetURL, f.Description, f.CreatedAt)
	return err
}

func (s *Store) GetFile(ctx context.Context, fileID string) (store.File, error) {
	var f store.File
	var status, scanStatus string
	err := s.db.QueryRowContext(ctx, `SELECT id, room_id, filename, blob_key, size_bytes, content_type,
		download_count, status, burn_after_download, scan_status, scan_result, message, target_url,
		description, created_at FROM files WHERE id = $1`, fileID).Scan(
		&f.ID, &f.RoomID, &f.Filename, &f.BlobKey, &f.SizeBytes, &f.ContentType,
		&f.DownloadCount, &status, &f.BurnAfterDownload, &scanStatus, &f.ScanResult, &f.Message,
		&f.TargetURL, &f.Description, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return store.File{}, store.ErrNotFound
	}
	f.Status, f.ScanStatus = store.FileStatus(status), store.ScanStatus(scanStatus)
	return f, err
}

func (s *Store) ListFiles(ctx context.Context, roomID string) ([]store.File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM files WHERE room_id = $1 ORDER BY created_at`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	var out []store.File
	for _, id := range ids {
		f, err := s.GetFile(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) IncrementDownloadCount(ctx context.Context, fileID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE files SET download_count = download_count + 1 WHERE id = $1`, fileID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Store) DestroyFile(ctx context.Context, fileID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE files SET status = 'destroyed' WHERE id = $1`, fileID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	return err
}

func (s *Store) UpdateFile(ctx context.Context, fileID string, targetURL, description *string) (store.File, error) {
	if targetURL != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE files SET target_url = $2 WHERE id = $1`, fileID, *targetURL); err != nil {
			return store.File{}, err
		}
	}
	if description != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE files SET description = $2 WHERE id = $1`, fileID, *description); err != nil {
			return store.File{}, err
		}
	}
	return s.GetFile(ctx, fileID)
}

func (s *Store) SetScanResult(ctx context.Context, fileID string, status store.ScanStatus, result string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE files SET scan_status = $2, scan_result = $3 WHERE id = $1`,
		fileID, string(status), result)
	return err
}

func (s *Store) Upsert(ctx context.Context, roomID, device string, isAuthor bool, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO room_presence (room_id, device, is_author, status, last_seen_at)
		VALUES ($1,$2,$3,'active',$4)
		ON CONFLICT (room_id, device) DO UPDATE SET status = 'active', last_seen_at = $4`,
		roomID, device, isAuthor, now)
	return err
}

func (s *Store) MarkLeft(ctx context.Context, roomID, device string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE room_presence SET status = 'left', last_seen_at = $3
		WHERE room_id = $1 AND device = $2 AND status = 'active'`, roomID, device, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) CountActive(ctx context.Context, roomID, excludeDevice string, activeSince time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM room_presence
		WHERE room_id = $1 AND device != $2 AND is_author = FALSE
		AND status = 'active' AND last_seen_at >= $3`, roomID, excludeDevice, activeSince).Scan(&n)
	return n, err
}

func (s *Store) Get(ctx context.Context, roomID, device string) (store.Presence, bool, error) {
	var p store.Presence
	var status string
	p.RoomID, p.Device = roomID, device
	err := s.db.QueryRowContext(ctx, `SELECT is_author, status, last_seen_at FROM room_presence
		WHERE room_id = $1 AND device = $2`, roomID, device).Scan(&p.IsAuthor, &status, &p.LastSeenAt)
	if err == sql.ErrNoRows {
		return store.Presence{}, false, nil
	}
	p.Status = store.PresenceStatus(status)
	return p, err == nil, err
}

func (s *Store) AssignNumber(ctx context.Context, roomID, device string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT assign_user_number($1, $2)`, roomID, device).Scan(&n)
	return n, err
}

func (s *Store) Insert(ctx context.Context, e store.AccessLogEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO access_logs
		(room_id, event_type, device, session, ts, ip, user_agent, browser, os, device_type,
		 country, city, region, postal, timezone, guest_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		e.RoomID, string(e.EventType), e.Device, e.Session, e.Timestamp, e.IP, e.UserAgent,
		e.Browser, e.OS, e.DeviceType, e.Geo.Country, e.Geo.City, e.Geo.Region, e.Geo.Postal,
		e.Geo.Timezone, e.GuestNumber)
	return err
}

func (s *Store) List(ctx context.Context, roomID string) ([]store.AccessLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, room_id, event_type, device, session, ts, ip, user_agent,
		browser, os, device_type, country, city, region, postal, timezone, guest_number
		FROM access_logs WHERE room_id = $1 ORDER BY ts`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.AccessLogEntry
	for rows.Next() {
		var e store.AccessLogEntry
		var eventType string
		if err := rows.Scan(&e.ID, &e.RoomID, &eventType, &e.Device, &e.Session, &e.Timestamp, &e.IP,
			&e.UserAgent, &e.Browser, &e.OS, &e.DeviceType, &e.Geo.Country, &e.Geo.City, &e.Geo.Region,
			&e.Geo.Postal, &e.Geo.Timezone, &e.GuestNumber); err != nil {
			return nil, err
		}
		e.EventType = store.AccessEventType(eventType)
		out = append(out, e)
	}
	return out, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.Store = (*Store)(nil)
