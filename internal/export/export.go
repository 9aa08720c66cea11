/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export writes a stroke history to image and document formats.
// Every exporter drives History.Render against a format-specific surface, so
// all formats paint the background first and then the committed strokes in
// commit order.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	applog "sketchpad/internal/log"
	"sketchpad/internal/stroke"
)

// Format names an output encoding.
type Format string

const (
	FormatPNG    Format = "png"
	FormatJPEG   Format = "jpeg"
	FormatPDF    Format = "pdf"
	FormatSVG    Format = "svg"
	FormatFrames Format = "frames"
)

// ErrUnknownFormat is returned for file extensions or names no exporter handles.
var ErrUnknownFormat = errors.New("unknown export format")

// Options controls every exporter. Zero values pick sensible defaults.
type Options struct {
	// Width and Height are the canvas size in drawing units.
	Width, Height int
	// Scale multiplies the raster output size; strokes scale along. Default 1.
	Scale float32
	// JPEGQuality in 1..100, default 90.
	JPEGQuality int
	// Title is written into PDF metadata and the SVG <title>.
	Title string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1024
	}
	if o.Height <= 0 {
		o.Height = 768
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = 90
	}
	if o.Title == "" {
		o.Title = "Sketchpad drawing"
	}
	return o
}

// ParseFormat maps a format name (png, jpg, jpeg, pdf, svg, frames) to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "pdf":
		return FormatPDF, nil
	case "svg":
		return FormatSVG, nil
	case "frames", "zip", "cbz":
		return FormatFrames, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// Ext returns the canonical file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatFrames:
		return ".zip"
	}
	return "." + string(f)
}

// Write encodes h to w in format f.
func Write(w io.Writer, f Format, h *stroke.History, opt Options) error {
	switch f {
	case FormatPNG:
		return PNG(w, h, opt)
	case FormatJPEG:
		return JPEG(w, h, opt)
	case FormatPDF:
		return PDF(w, h, opt)
	case FormatSVG:
		return SVG(w, h, opt)
	case FormatFrames:
		return Frames(w, h, opt)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// ToFile exports h to path, choosing the encoder from the extension. The file
// is written next to its destination first and renamed into place.
func ToFile(path string, h *stroke.History, opt Options) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	return toFile(path, f, h, opt)
}

func toFile(path string, f Format, h *stroke.History, opt Options) (err error) {
	l := applog.WithOperation(applog.WithComponent("export"), "to_file").With(
		slog.String("path", path), slog.String("format", string(f)),
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			l.Error("export failed", slog.Any("err", err))
		}
	}()
	if err = Write(tmp, f, h, opt); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	l.Info("exported", slog.Int("strokes", h.Len()))
	return nil
}
