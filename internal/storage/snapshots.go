/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// tsLayout is fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(ts, reason, strokes, doc_blob) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT id, ts, reason, strokes, doc_blob FROM snapshots ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectSnapshotSQL = `SELECT id, ts, reason, strokes, doc_blob FROM snapshots WHERE id = ?`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT id, ts, reason, strokes, doc_blob FROM snapshots ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE id NOT IN (
	SELECT id FROM snapshots ORDER BY ts DESC, id DESC LIMIT ?
)`

// Snapshot is a stored copy of a document taken before a destructive change.
type Snapshot struct {
	ID      int64
	TS      time.Time
	Reason  string
	Strokes int
	Doc     Document
}

// SaveSnapshot stores the handle's current document in the index.
func SaveSnapshot(ctx context.Context, h *DrawingHandle, reason string, ts time.Time) (int64, error) {
	if h == nil {
		return 0, errors.New("nil DrawingHandle")
	}
	blob, err := encodeDocument(h.Doc)
	if err != nil {
		return 0, err
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, insertSnapshotSQL, ts.UTC().Format(tsLayout), reason, len(h.Doc.Strokes), blob)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (Snapshot, error) {
	var s Snapshot
	var tsStr string
	var blob []byte
	if err := r.Scan(&s.ID, &tsStr, &s.Reason, &s.Strokes, &blob); err != nil {
		return s, err
	}
	s.TS, _ = time.Parse(tsLayout, tsStr)
	d, err := decodeDocument(blob)
	if err != nil {
		return s, fmt.Errorf("snapshot %d: %w", s.ID, err)
	}
	s.Doc = *d
	return s, nil
}

// LatestSnapshot returns the newest snapshot; ok is false when there is none.
func LatestSnapshot(ctx context.Context, h *DrawingHandle) (snap Snapshot, ok bool, err error) {
	if h == nil {
		return snap, false, errors.New("nil DrawingHandle")
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return snap, false, err
	}
	defer func() { _ = db.Close() }()
	snap, err = scanSnapshot(db.QueryRowContext(ctx, selectLatestSnapshotSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// GetSnapshot returns the snapshot with the given id.
func GetSnapshot(ctx context.Context, h *DrawingHandle, id int64) (Snapshot, error) {
	if h == nil {
		return Snapshot{}, errors.New("nil DrawingHandle")
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = db.Close() }()
	snap, err := scanSnapshot(db.QueryRowContext(ctx, selectSnapshotSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot %d not found", id)
	}
	return snap, err
}

// ListSnapshots returns up to limit most recent snapshots, newest first.
func ListSnapshots(ctx context.Context, h *DrawingHandle, limit int) ([]Snapshot, error) {
	if h == nil {
		return nil, errors.New("nil DrawingHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSnapshotsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots and deletes older ones.
func PruneSnapshots(ctx context.Context, h *DrawingHandle, keepLast int) (int64, error) {
	if h == nil {
		return 0, errors.New("nil DrawingHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldSnapshotsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DefaultSnapshotKeep is how many snapshots Checkpoint retains.
const DefaultSnapshotKeep = 50

// Checkpoint snapshots the current document under reason and prunes the
// index down to keep entries (DefaultSnapshotKeep when keep <= 0).
func Checkpoint(ctx context.Context, h *DrawingHandle, reason string, keep int) (int64, error) {
	id, err := SaveSnapshot(ctx, h, reason, time.Now())
	if err != nil {
		return 0, err
	}
	if keep <= 0 {
		keep = DefaultSnapshotKeep
	}
	if _, err := PruneSnapshots(ctx, h, keep); err != nil {
		return id, fmt.Errorf("prune snapshots: %w", err)
	}
	return id, nil
}
