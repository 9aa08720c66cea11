/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"path/filepath"
	"strings"

	"sketchpad/internal/background"
	"sketchpad/internal/config"
	"sketchpad/internal/export"
	applog "sketchpad/internal/log"
	"sketchpad/internal/raster"
	"sketchpad/internal/storage"
	"sketchpad/internal/stroke"
	"sketchpad/internal/telemetry"
	"sketchpad/internal/vector"
)

// Session is the editor state behind the drawing window: the stroke
// history, the current brush and the drawing directory it is saved to.
// It knows nothing about the toolkit so it can run headless.
type Session struct {
	cfg     config.AppConfig
	hist    *stroke.History
	dh      *storage.DrawingHandle
	brush   stroke.Brush
	paint   stroke.Color // last picked color, restored when the eraser is turned off
	erasing bool
	width   int
	height  int
	dirty   bool
	log     *slog.Logger

	// committed strokes rendered once; the live stroke is drawn over a copy
	base      *image.RGBA
	baseValid bool
	frame     *image.RGBA
}

// NewSession starts an unsaved drawing sized and colored from cfg.
func NewSession(cfg config.AppConfig) *Session {
	s := &Session{
		cfg:    cfg,
		brush:  cfg.DefaultBrush(),
		paint:  cfg.DefaultBrush().Color,
		width:  cfg.Canvas.Width,
		height: cfg.Canvas.Height,
		log:    applog.WithComponent("ui"),
	}
	s.hist = stroke.NewHistory(stroke.WithBackground(stroke.Background{Color: cfg.CanvasBackground()}))
	return s
}

// OpenSession opens the drawing at dir, creating it from cfg when dir is not
// a drawing yet.
func OpenSession(cfg config.AppConfig, dir string) (*Session, error) {
	s := NewSession(cfg)
	if err := s.Open(dir); err != nil {
		if !errors.Is(err, storage.ErrNotDrawing) {
			return nil, err
		}
		if err := s.SaveAs(dir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) History() *stroke.History        { return s.hist }
func (s *Session) Handle() *storage.DrawingHandle  { return s.dh }
func (s *Session) Brush() stroke.Brush             { return s.brush }
func (s *Session) Erasing() bool                   { return s.erasing }
func (s *Session) Dirty() bool                     { return s.dirty }
func (s *Session) CanvasSize() (width, height int) { return s.width, s.height }
func (s *Session) invalidate()                     { s.baseValid = false }

func (s *Session) exportOptionsTitled(title string) export.Options {
	return export.Options{Width: s.width, Height: s.height, JPEGQuality: s.cfg.Export.JPEGQuality, Title: title}
}

// Title is the window title for the current drawing.
func (s *Session) Title() string {
	name := "Untitled"
	if s.dh != nil {
		name = filepath.Base(s.dh.Root)
	}
	if s.dirty {
		name += " *"
	}
	return name + " - Sketchpad"
}

// Open loads the drawing at dir, replacing the current one.
func (s *Session) Open(dir string) error {
	dh, err := storage.Open(dir)
	if err != nil {
		return err
	}
	hist, err := dh.History()
	if err != nil {
		s.log.Warn("background image unavailable", slog.String("root", dir), slog.Any("err", err))
	}
	s.dh, s.hist = dh, hist
	s.width, s.height = dh.Doc.Canvas.Width, dh.Doc.Canvas.Height
	s.dirty = false
	s.applyEraser()
	s.invalidate()
	return nil
}

// Save writes the drawing back to its directory.
func (s *Session) Save() error {
	if s.dh == nil {
		return errors.New("drawing has no folder yet; use Save As")
	}
	s.dh.Capture(s.hist)
	if err := storage.Save(s.dh); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// SaveAs writes the drawing into dir and makes it the current folder.
func (s *Session) SaveAs(dir string) error {
	if s.dh != nil {
		s.dh.Capture(s.hist)
		if err := storage.SaveAs(s.dh, dir); err != nil {
			return err
		}
		s.dirty = false
		return nil
	}
	doc := storage.NewDocument(s.width, s.height, s.hist.Background().Color)
	dh, err := storage.Create(dir, doc)
	if err != nil {
		return err
	}
	s.dh = dh
	if bg := s.hist.Background(); bg.HasImage() && bg.Source != "" {
		// imported before the drawing had a folder; copy it in now
		imported, err := storage.ImportBackground(dh, bg.Source)
		if err != nil {
			return err
		}
		s.hist.SetBackground(imported)
	}
	return s.Save()
}

// PointerDown starts a stroke with the current brush.
func (s *Session) PointerDown(p stroke.Point) bool {
	return s.hist.Begin(p, s.brush)
}

// PointerMove extends the stroke in progress.
func (s *Session) PointerMove(p stroke.Point) bool {
	return s.hist.ExtendStroke(p)
}

// PointerUp commits the stroke in progress.
func (s *Session) PointerUp() bool {
	if !s.hist.EndStroke() {
		return false
	}
	s.dirty = true
	s.invalidate()
	return true
}

// PointerCancel drops the stroke in progress.
func (s *Session) PointerCancel() bool { return s.hist.CancelStroke() }

func (s *Session) Undo() bool {
	if !s.hist.Undo() {
		return false
	}
	s.dirty = true
	s.invalidate()
	return true
}

func (s *Session) Redo() bool {
	if !s.hist.Redo() {
		return false
	}
	s.dirty = true
	s.invalidate()
	return true
}

// Clear removes every stroke. A saved drawing is snapshotted into its index
// first so the strokes can be restored from the command line.
func (s *Session) Clear(ctx context.Context) {
	if s.dh != nil {
		s.dh.Capture(s.hist)
		if _, err := storage.Checkpoint(ctx, s.dh, "clear", 0); err != nil {
			s.log.Warn("snapshot before clear failed", slog.Any("err", err))
		}
	}
	s.hist.Clear()
	s.dirty = true
	s.invalidate()
	telemetry.Event(telemetry.EventClear, nil)
}

// SetBrushSize changes the width of the current brush (eraser included).
func (s *Session) SetBrushSize(w float32) {
	if w <= 0 {
		return
	}
	s.brush.Width = w
}

// SetColor picks a paint color and leaves eraser mode.
func (s *Session) SetColor(c stroke.Color) {
	s.erasing = false
	s.paint = c
	s.brush.Color = c
}

// SetEraser toggles eraser mode. The eraser paints the solid background
// color, also over a background image. Turning it off brings back the last
// picked color.
func (s *Session) SetEraser(on bool) {
	if on == s.erasing {
		return
	}
	s.erasing = on
	if !on {
		s.brush.Color = s.paint
		return
	}
	s.applyEraser()
}

func (s *Session) applyEraser() {
	if s.erasing {
		s.brush = stroke.Eraser(s.hist.Background(), s.brush.Width)
	}
}

// ImportBackground replaces the background image. Saved drawings get a copy
// under assets/; unsaved ones keep the source path until the first save.
func (s *Session) ImportBackground(path string) error {
	var (
		bg  stroke.Background
		err error
	)
	if s.dh != nil {
		bg, err = storage.ImportBackground(s.dh, path)
	} else {
		bg, err = background.Load(path, s.hist.Background().Color)
		bg.Source = path
	}
	if err != nil {
		return err
	}
	s.hist.SetBackground(bg)
	s.dirty = true
	s.applyEraser()
	s.invalidate()
	s.log.Info("background imported", slog.String("path", path), slog.Int("w", bg.Image.Bounds().Dx()), slog.Int("h", bg.Image.Bounds().Dy()))
	return nil
}

// Export writes the committed drawing to path; the format follows the extension.
func (s *Session) Export(path string) error {
	f, err := export.FormatFor(path)
	if err != nil {
		return err
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := export.ToFile(path, s.hist, s.exportOptionsTitled(title)); err != nil {
		return fmt.Errorf("export %s: %w", f, err)
	}
	telemetry.Event(telemetry.EventExport, map[string]any{"format": string(f), "strokes": s.hist.Len()})
	return nil
}

// DefaultExportName suggests a file name for the export dialog.
func (s *Session) DefaultExportName() string {
	f, err := export.ParseFormat(s.cfg.Export.Format)
	if err != nil {
		f = export.FormatPNG
	}
	base := "drawing"
	if s.dh != nil {
		base = filepath.Base(s.dh.Root)
	}
	return base + f.Ext()
}

// Frame renders the canvas including the stroke in progress. The returned
// image is reused by the next call.
func (s *Session) Frame() *image.RGBA {
	if !s.baseValid || s.base == nil || s.base.Bounds().Dx() != s.width || s.base.Bounds().Dy() != s.height {
		s.base = raster.Render(s.hist, s.width, s.height)
		s.baseValid = true
	}
	cur, ok := s.hist.Current()
	if !ok {
		return s.base
	}
	if s.frame == nil || s.frame.Bounds() != s.base.Bounds() {
		s.frame = image.NewRGBA(s.base.Bounds())
	}
	draw.Draw(s.frame, s.frame.Bounds(), s.base, image.Point{}, draw.Src)
	raster.NewFor(s.frame).StrokePolyline(cur.Points, cur.Width, cur.Color)
	return s.frame
}

// ViewToCanvas maps a point in a view of size vw x vh, showing the canvas
// scaled to fit and centered, back to canvas coordinates.
func (s *Session) ViewToCanvas(x, y, vw, vh float32) stroke.Point {
	m := vector.Fit(float32(s.width), float32(s.height), vw, vh, false)
	if m.A == 0 || m.D == 0 {
		return stroke.Point{X: x, Y: y}
	}
	return stroke.Point{X: (x - m.E) / m.A, Y: (y - m.F) / m.D}
}

// SyncedHandle copies the live history into the drawing handle and returns
// it, or nil for a drawing that was never saved.
func (s *Session) SyncedHandle() *storage.DrawingHandle {
	if s.dh == nil {
		return nil
	}
	s.dh.Capture(s.hist)
	return s.dh
}
