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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvThumbnailCacheMaxBytes caps the thumbnail cache; unset means 64MB.
const EnvThumbnailCacheMaxBytes = "SKP_THUMB_CACHE_MAX_BYTES"

// DocumentHash identifies the visible content of a document: canvas,
// background (the image through its content digest) and committed strokes.
// Undone strokes do not change it.
func DocumentHash(d Document) string {
	v := d
	v.Undone = nil
	v.Created, v.Modified = time.Time{}, time.Time{}
	b, _ := encodeDocument(v)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// GetThumbnail returns the cached PNG for hash at w x h, or nil, and touches its access time.
func GetThumbnail(ctx context.Context, root, hash string, w, h int) ([]byte, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT png_blob FROM thumbnails WHERE doc_hash=? AND w=? AND h=?`, hash, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query thumbnail: %w", err)
	}
	now := time.Now().UTC().Format(tsLayout)
	_, _ = db.ExecContext(ctx, `UPDATE thumbnails SET last_access=? WHERE doc_hash=? AND w=? AND h=?`, now, hash, w, h)
	return blob, nil
}

// PutThumbnail upserts a thumbnail and enforces the cache size cap via LRU eviction.
func PutThumbnail(ctx context.Context, root, hash string, w, h int, png []byte) error {
	if len(png) == 0 {
		return errors.New("empty thumbnail")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	now := time.Now().UTC().Format(tsLayout)
	_, err = db.ExecContext(ctx, `INSERT INTO thumbnails(doc_hash,w,h,png_blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(doc_hash,w,h) DO UPDATE SET png_blob=excluded.png_blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		hash, w, h, png, len(png), now, now)
	if err != nil {
		return fmt.Errorf("upsert thumbnail: %w", err)
	}
	if capBytes := MaxThumbnailBytesFromEnv(); capBytes > 0 {
		return EvictThumbnailsToFit(ctx, db, capBytes)
	}
	return nil
}

// GetOrCreateThumbnail fetches a thumbnail or generates and stores it.
func GetOrCreateThumbnail(ctx context.Context, root, hash string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := GetThumbnail(ctx, root, hash, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil || data == nil {
		return nil, err
	}
	if err := PutThumbnail(ctx, root, hash, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// EvictThumbnailsToFit deletes least-recently-used rows until total size <= capBytes.
func EvictThumbnailsToFit(ctx context.Context, db *sql.DB, capBytes int64) error {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbnails`).Scan(&total); err != nil {
		return fmt.Errorf("sum thumbnail size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	rows, err := db.QueryContext(ctx, `SELECT id, size FROM thumbnails ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []string
	cur := total
	for rows.Next() && cur > capBytes {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, strconv.FormatInt(id, 10))
		cur -= sz
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// close the cursor before writing; the pool has a single connection
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM thumbnails WHERE id IN (` + strings.Join(victims, ",") + `)`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalThumbnailBytes returns total bytes tracked by thumbnails.size.
func TotalThumbnailBytes(ctx context.Context, root string) (int64, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbnails`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MaxThumbnailBytesFromEnv reads SKP_THUMB_CACHE_MAX_BYTES, defaulting to 64MB.
func MaxThumbnailBytesFromEnv() int64 {
	const def = 64 * 1024 * 1024
	n, err := strconv.ParseInt(os.Getenv(EnvThumbnailCacheMaxBytes), 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
