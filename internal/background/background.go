/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package background imports images used as the canvas background.
package background

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	applog "sketchpad/internal/log"
	"sketchpad/internal/stroke"
)

// MaxPixels bounds decoded background size to keep memory in check.
const MaxPixels = 64 * 1024 * 1024

// ErrTooLarge is returned for images above MaxPixels.
var ErrTooLarge = errors.New("background image too large")

// Extensions lists the file extensions accepted by Load, for file dialogs.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".tif", ".tiff"}

// Supported reports whether path has an importable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Decode reads an image and returns a background with fill color c under it.
func Decode(r io.ReadSeeker, c stroke.Color) (stroke.Background, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return stroke.Background{}, "", fmt.Errorf("decode image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return stroke.Background{}, format, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return stroke.Background{}, format, fmt.Errorf("rewind image: %w", err)
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return stroke.Background{}, format, fmt.Errorf("decode %s image: %w", format, err)
	}
	return stroke.Background{Color: c, Image: img}, format, nil
}

// Load decodes the image at path into a background.
func Load(path string, c stroke.Color) (stroke.Background, error) {
	l := applog.WithOperation(applog.WithComponent("background"), "load").With(slog.String("path", path))
	f, err := os.Open(path)
	if err != nil {
		return stroke.Background{}, fmt.Errorf("open background: %w", err)
	}
	defer func() { _ = f.Close() }()
	bg, format, err := Decode(f, c)
	if err != nil {
		l.Warn("background import failed", slog.Any("err", err))
		return stroke.Background{}, err
	}
	bg.Source = path
	b := bg.Image.Bounds()
	l.Info("background imported", slog.String("format", format), slog.Int("w", b.Dx()), slog.Int("h", b.Dy()))
	return bg, nil
}
