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
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sketchpad/internal/stroke"
)

func TestThumbnailsPutGetAndEvict(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.Setenv(EnvThumbnailCacheMaxBytes, "64")

	for i, w := range []int{100, 200, 300} {
		if err := PutThumbnail(ctx, root, "h", w, w, make([]byte, 40)); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	total, err := TotalThumbnailBytes(ctx, root)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total > 64 {
		t.Fatalf("expected eviction to <=64 bytes, got %d", total)
	}
	// the newest survives
	if b, err := GetThumbnail(ctx, root, "h", 300, 300); err != nil || len(b) != 40 {
		t.Fatalf("newest thumbnail evicted: %v %d", err, len(b))
	}
	if b, _ := GetThumbnail(ctx, root, "h", 100, 100); b != nil {
		t.Fatalf("oldest thumbnail should be gone")
	}
	if err := PutThumbnail(ctx, root, "h", 1, 1, nil); err == nil {
		t.Fatalf("empty blob must be rejected")
	}
}

func TestGetOrCreateThumbnail(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	calls := 0
	gen := func(context.Context) ([]byte, error) { calls++; return []byte("png!"), nil }
	for i := 0; i < 2; i++ {
		b, err := GetOrCreateThumbnail(ctx, root, "abc", 64, 64, gen)
		if err != nil || string(b) != "png!" {
			t.Fatalf("call %d: %q %v", i, b, err)
		}
	}
	if calls != 1 {
		t.Fatalf("generator should be called once, got %d", calls)
	}
}

func TestDocumentHashIgnoresUndoneAndTimes(t *testing.T) {
	a := NewDocument(10, 10, stroke.White)
	b := a
	b.Modified = b.Modified.Add(time.Hour)
	b.Undone = []stroke.Stroke{{Points: []stroke.Point{{X: 1}}, Width: 1, Color: stroke.Black}}
	if DocumentHash(a) != DocumentHash(b) {
		t.Fatalf("hash should ignore undone strokes and timestamps")
	}
	b.Strokes = b.Undone
	if DocumentHash(a) == DocumentHash(b) {
		t.Fatalf("hash must change with committed strokes")
	}
}

func TestDocumentHashFollowsBackgroundContent(t *testing.T) {
	root := t.TempDir()
	h, err := Create(root, NewDocument(10, 10, stroke.White))
	if err != nil {
		t.Fatal(err)
	}
	write := func(c color.NRGBA) string {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
		for i := 0; i < 4; i++ {
			img.SetNRGBA(i%2, i/2, c)
		}
		p := filepath.Join(t.TempDir(), "bg.png")
		f, err := os.Create(p)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		return p
	}
	if _, err := ImportBackground(h, write(color.NRGBA{R: 255, A: 255})); err != nil {
		t.Fatal(err)
	}
	red := DocumentHash(h.Doc)
	if _, err := ImportBackground(h, write(color.NRGBA{B: 255, A: 255})); err != nil {
		t.Fatal(err)
	}
	if h.Doc.Background.Image != "assets/background.png" {
		t.Fatalf("image ref = %q", h.Doc.Background.Image)
	}
	if DocumentHash(h.Doc) == red {
		t.Fatalf("hash must change when the background image content changes")
	}
}
