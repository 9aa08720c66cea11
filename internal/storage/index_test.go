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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openRaw(t *testing.T, root string) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(IndexPath(root)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIndexInitCreatesWALAndTables(t *testing.T) {
	root := t.TempDir()
	idx, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	_ = idx.Close()
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}

	db := openRaw(t, root)
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version','snapshots','thumbnails')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 4 {
		t.Fatalf("expected 4 tables, got %d", cnt)
	}
	var schema int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil || schema != schemaVersion {
		t.Fatalf("schema = %d (%v)", schema, err)
	}
}

func TestInitOrOpenIndexRequiresRoot(t *testing.T) {
	if _, err := InitOrOpenIndex(" "); err == nil {
		t.Fatalf("expected error for blank root")
	}
}

// TestMigrations_UpgradeV1ToV2 ensures that a v1 index gains the snapshot reason/strokes columns.
func TestMigrations_UpgradeV1ToV2(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Dir(IndexPath(root)), 0o755); err != nil {
		t.Fatalf("mk %s: %v", IndexDirName, err)
	}
	db := openRaw(t, root)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE IF NOT EXISTS snapshots (id INTEGER PRIMARY KEY, ts TEXT NOT NULL, doc_blob BLOB NOT NULL);`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	db.Close()

	mdb, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer mdb.Close()
	var schema int
	if err := mdb.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != 2 {
		t.Fatalf("expected schema 2 after migration, got %d", schema)
	}
	cols, err := tableColumns(ctx, mdb, "snapshots")
	if err != nil {
		t.Fatal(err)
	}
	if !cols["reason"] || !cols["strokes"] {
		t.Fatalf("migration did not add columns: %v", cols)
	}
}

func TestDetectAndRebuildIndex(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// healthy index is left alone
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	_ = db.Close()
	rebuilt, err := DetectAndRebuildIndex(ctx, root)
	if err != nil || rebuilt {
		t.Fatalf("healthy index: rebuilt=%v err=%v", rebuilt, err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(IndexPath(root) + suffix)
	}
	if err := os.WriteFile(IndexPath(root), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	rebuilt, err = DetectAndRebuildIndex(ctx, root)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	st, err := os.Stat(IndexPath(root))
	if err != nil || st.Size() == 0 {
		t.Fatalf("rebuilt index missing or empty: %v", err)
	}
	bdir := filepath.Join(root, IndexDirName, "backups")
	if entries, _ := os.ReadDir(bdir); len(entries) == 0 {
		t.Fatalf("expected backup file in %s", bdir)
	}
}
