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

package postgres

// requiredSchemaVersion is bumped whenever sqlCreateTables or the stored
// procedures change shape.
const requiredSchemaVersion = 1

// sqlCreateTables returns the persisted-state layout: rooms,
// room_secrets, files, access_logs, room_presence, room_user_counter,
// room_user_index, plus a meta table used the same way Perkeep's
// pkg/sorted/postgres tracks schema version.
func sqlCreateTables() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS meta (
 metakey VARCHAR(255) NOT NULL PRIMARY KEY,
 value VARCHAR(255) NOT NULL)`,

		`CREATE TABLE IF NOT EXISTS rooms (
 id TEXT PRIMARY KEY,
 display_name TEXT NOT NULL DEFAULT '',
 author_display_name TEXT NOT NULL DEFAULT '',
 mode TEXT NOT NULL DEFAULT 'normal',
 status TEXT NOT NULL DEFAULT 'active',
 expires_at TIMESTAMPTZ NOT NULL,
 is_permanent BOOLEAN NOT NULL DEFAULT FALSE,
 capacity INTEGER NOT NULL DEFAULT 999,
 remaining_files INTEGER NOT NULL DEFAULT 0,
 download_in_progress INTEGER NOT NULL DEFAULT 0,
 last_download_activity TIMESTAMPTZ,
 termination_started_at TIMESTAMPTZ,
 file_count INTEGER NOT NULL DEFAULT 0,
 total_size_bytes BIGINT NOT NULL DEFAULT 0,
 max_files INTEGER NOT NULL DEFAULT 100,
 max_total_size_bytes BIGINT NOT NULL DEFAULT 4294967296,
 created_at TIMESTAMPTZ NOT NULL DEFAULT now())`,

		`CREATE TABLE IF NOT EXISTS room_secrets (
 room_id TEXT PRIMARY KEY REFERENCES rooms(id) ON DELETE CASCADE,
 password_hash VARCHAR(64) NOT NULL,
 author_token TEXT NOT NULL)`,

		`CREATE TABLE IF NOT EXISTS files (
 id TEXT PRIMARY KEY,
 room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
 filename TEXT NOT NULL,
 blob_key TEXT NOT NULL,
 size_bytes BIGINT NOT NULL,
 content_type TEXT NOT NULL DEFAULT '',
 download_count INTEGER NOT NULL DEFAULT 0,
 status TEXT NOT NULL DEFAULT 'live',
 burn_after_download BOOLEAN NOT NULL DEFAULT FALSE,
 scan_status TEXT NOT NULL DEFAULT 'unknown',
 scan_result TEXT NOT NULL DEFAULT '',
 message TEXT NOT NULL DEFAULT '',
 target_url TEXT NOT NULL DEFAULT '',
 description TEXT NOT NULL DEFAULT '',
 created_at TIMESTAMPTZ NOT NULL DEFAULT now())`,

		`CREATE TABLE IF NOT EXISTS room_presence (
 room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
 device TEXT NOT NULL,
 is_author BOOLEAN NOT NULL DEFAULT FALSE,
 status TEXT NOT NULL DEFAULT 'active',
 last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
 PRIMARY KEY (room_id, device))`,

		`CREATE TABLE IF NOT EXISTS room_user_counter (
 room_id TEXT PRIMARY KEY REFERENCES rooms(id) ON DELETE CASCADE,
 next_number INTEGER NOT NULL DEFAULT 1)`,

		`CREATE TABLE IF NOT EXISTS room_user_index (
 room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
 device TEXT NOT NULL,
 guest_number INTEGER NOT NULL,
 PRIMARY KEY (room_id, device))`,

		`CREATE TABLE IF NOT EXISTS access_logs (
 id BIGSERIAL PRIMARY KEY,
 room_id TEXT NOT NULL,
 event_type TEXT NOT NULL,
 device TEXT NOT NULL DEFAULT '',
 session TEXT NOT NULL DEFAULT '',
 ts TIMESTAMPTZ NOT NULL DEFAULT now(),
 ip TEXT NOT NULL DEFAULT '',
 user_agent TEXT NOT NULL DEFAULT '',
 browser TEXT NOT NULL DEFAULT '',
 os TEXT NOT NULL DEFAULT '',
 device_type TEXT NOT NULL DEFAULT '',
 country TEXT NOT NULL DEFAULT '',
 city TEXT NOT NULL DEFAULT '',
 region TEXT NOT NULL DEFAULT '',
 postal TEXT NOT NULL DEFAULT '',
 timezone TEXT NOT NULL DEFAULT '',
 guest_number INTEGER NOT NULL DEFAULT 0)`,
	}
}

// sqlDefineProcedures creates the three stored procedures
// requires, the same way Perkeep's pkg/sorted/postgres/dbschema.go
// creates its "replaceinto"/"replaceintometa" upsert functions: idempotent
// CREATE OR REPLACE FUNCTION statements run once at store construction.
func sqlDefineProcedures() []string {
	return []string{
		// assign_user_number(room, device) -> int: idempotent guest numbering.
		// Two reads and a single atomic increment in one transaction,
		// tie-broken by room_user_index's primary key: the loser of a
		// concurrent INSERT falls through to the SELECT and observes the
		// winner's row.
		`CREATE OR REPLACE FUNCTION assign_user_number(p_room TEXT, p_device TEXT) RETURNS INTEGER AS
$$
DECLARE
    n INTEGER;
BEGIN
    SELECT guest_number INTO n FROM room_user_index WHERE room_id = p_room AND device = p_device;
    IF FOUND THEN
        RETURN n;
    END IF;

    INSERT INTO room_user_counter (room_id, next_number) VALUES (p_room, 1)
        ON CONFLICT (room_id) DO NOTHING;

    LOOP
        UPDATE room_user_counter SET next_number = next_number + 1
            WHERE room_id = p_room
            RETURNING next_number - 1 INTO n;
        BEGIN
            INSERT INTO room_user_index (room_id, device, guest_number) VALUES (p_room, p_device, n);
            RETURN n;
        EXCEPTION WHEN unique_violation THEN
            SELECT guest_number INTO n FROM room_user_index WHERE room_id = p_room AND device = p_device;
            IF FOUND THEN
                RETURN n;
            END IF;
        END;
    END LOOP;
END;
$$
LANGUAGE plpgsql;`,

		// increment_remaining_files(room): bumps the burn-room file counter.
		`CREATE OR REPLACE FUNCTION increment_remaining_files(p_room TEXT) RETURNS VOID AS
$$
BEGIN
    UPDATE rooms SET remaining_files = remaining_files + 1 WHERE id = p_room;
END;
$$
LANGUAGE plpgsql;`,

		// decrement_remaining_files(room) -> int: drives burn destruction.
		`CREATE OR REPLACE FUNCTION decrement_remaining_files(p_room TEXT) RETURNS INTEGER AS
$$
DECLARE
    n INTEGER;
BEGIN
    UPDATE rooms SET remaining_files = GREATEST(remaining_files - 1, 0) WHERE id = p_room
        RETURNING remaining_files INTO n;
    RETURN n;
END;
$$
LANGUAGE plpgsql;`,
	}
}
