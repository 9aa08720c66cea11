//go:build fyne && cgo

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
	"fmt"
	"image/color"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"sketchpad/internal/background"
	"sketchpad/internal/config"
	"sketchpad/internal/crash"
	applog "sketchpad/internal/log"
	"sketchpad/internal/stroke"
	"sketchpad/internal/telemetry"
)

// Run opens the drawing window. An empty dir starts an unsaved drawing.
func Run(cfg config.AppConfig, dir string) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("dir", dir))

	sess := NewSession(cfg)
	if strings.TrimSpace(dir) != "" {
		s, err := OpenSession(cfg, dir)
		if err != nil {
			return err
		}
		sess = s
	}
	defer func() {
		if r := recover(); r != nil {
			crash.Handle(r, sess.SyncedHandle())
		}
	}()
	telemetry.Event(telemetry.EventSessionStart, map[string]any{"surface": "ui"})

	fyneApp := app.NewWithID("sketchpad")
	w := fyneApp.NewWindow(sess.Title())
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1100)
	winH := prefs.IntWithFallback("window.height", 800)
	w.Resize(fyne.NewSize(float32(max(winW, 640)), float32(max(winH, 480))))

	status := widget.NewLabel("Ready")
	dc := NewDrawCanvas(sess)
	var refreshToolbar func()
	changed := func(msg string) {
		w.SetTitle(sess.Title())
		if msg != "" {
			status.SetText(msg)
		}
		dc.Refresh()
		refreshToolbar()
	}
	dc.OnChange = func() { changed("") }

	undoAct := widget.NewToolbarAction(theme.ContentUndoIcon(), func() {
		if sess.Undo() {
			changed("Undid last stroke.")
		}
	})
	redoAct := widget.NewToolbarAction(theme.ContentRedoIcon(), func() {
		if sess.Redo() {
			changed("Redid stroke.")
		}
	})
	refreshToolbar = func() {
		if sess.History().CanUndo() {
			undoAct.Enable()
		} else {
			undoAct.Disable()
		}
		if sess.History().CanRedo() {
			redoAct.Enable()
		} else {
			redoAct.Disable()
		}
	}

	clearDrawing := func() {
		dialog.ShowConfirm("Clear drawing", "Remove every stroke? The background is kept.", func(ok bool) {
			if !ok {
				return
			}
			sess.Clear(context.Background())
			l.Info("drawing cleared")
			changed("Cleared.")
		}, w)
	}

	sizeDialog := func() {
		labels := make([]string, len(stroke.BrushSizes))
		cur := ""
		for i, sz := range stroke.BrushSizes {
			labels[i] = sizeLabel(sz)
			if sz == sess.Brush().Width {
				cur = labels[i]
			}
		}
		for _, sz := range cfg.Brush.Sizes {
			if lbl := sizeLabel(sz); !containsString(labels, lbl) {
				labels = append(labels, lbl)
			}
		}
		radio := widget.NewRadioGroup(labels, func(sel string) {
			var sz float32
			if _, err := fmt.Sscanf(sel, "%g px", &sz); err == nil {
				sess.SetBrushSize(sz)
				status.SetText("Brush size " + sel)
			}
		})
		radio.SetSelected(cur)
		dialog.ShowCustom("Brush size", "Close", radio, w)
	}

	eraser := widget.NewCheck("Eraser", func(on bool) {
		sess.SetEraser(on)
		if on {
			status.SetText("Eraser")
		}
	})
	swatches := container.NewHBox()
	for _, name := range stroke.PaletteNames() {
		c := stroke.Palette[name]
		swatches.Add(newSwatch(name, c, func() {
			sess.SetColor(c)
			eraser.SetChecked(false)
			status.SetText("Color " + name)
		}))
	}

	importBackground := func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			if err := sess.ImportBackground(path); err != nil {
				l.Error("import background failed", slog.Any("err", err))
				dialog.ShowError(err, w)
				return
			}
			changed("Background imported.")
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter(background.Extensions))
		fd.Show()
	}

	exportDrawing := func() {
		fd := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if wc == nil {
				return
			}
			path := wc.URI().Path()
			_ = wc.Close()
			if err := sess.Export(path); err != nil {
				l.Error("export failed", slog.Any("err", err))
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Exported to " + path)
		}, w)
		fd.SetFileName(sess.DefaultExportName())
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".pdf", ".svg", ".zip"}))
		fd.Show()
	}

	saveAs := func() {
		fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uri == nil {
				return
			}
			if err := sess.SaveAs(uri.Path()); err != nil {
				dialog.ShowError(err, w)
				return
			}
			changed("Saved to " + uri.Path())
		}, w)
		fd.Show()
	}
	save := func() {
		if sess.Handle() == nil {
			saveAs()
			return
		}
		if err := sess.Save(); err != nil {
			l.Error("save failed", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		changed("Saved.")
	}
	open := func() {
		fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uri == nil {
				return
			}
			if err := sess.Open(uri.Path()); err != nil {
				dialog.ShowError(err, w)
				return
			}
			eraser.SetChecked(false)
			changed("Opened " + uri.Path())
		}, w)
		fd.Show()
	}

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), open),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), save),
		widget.NewToolbarSeparator(),
		undoAct,
		redoAct,
		widget.NewToolbarAction(theme.DeleteIcon(), clearDrawing),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ColorPaletteIcon(), sizeDialog),
		widget.NewToolbarAction(theme.FileImageIcon(), importBackground),
		widget.NewToolbarAction(theme.UploadIcon(), exportDrawing),
	)
	refreshToolbar()

	top := container.NewHBox(toolbar, widget.NewSeparator(), swatches, eraser)
	w.SetContent(container.NewBorder(top, status, nil, nil, dc))

	ctrl := fyne.KeyModifierShortcutDefault
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: ctrl}, func(fyne.Shortcut) { undoAct.OnActivated() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: ctrl}, func(fyne.Shortcut) { redoAct.OnActivated() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: ctrl}, func(fyne.Shortcut) { save() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: ctrl}, func(fyne.Shortcut) { open() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyE, Modifier: ctrl}, func(fyne.Shortcut) { exportDrawing() })

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if !sess.Dirty() {
			w.Close()
			return
		}
		dialog.ShowConfirm("Unsaved changes", "Quit without saving?", func(ok bool) {
			if ok {
				w.Close()
			}
		}, w)
	})

	w.ShowAndRun()
	telemetry.Flush(context.Background())
	l.Info("UI closed")
	return nil
}

func sizeLabel(sz float32) string { return fmt.Sprintf("%g px", sz) }

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DrawCanvas shows the session's drawing scaled to fit and turns pointer
// gestures into strokes.
type DrawCanvas struct {
	widget.BaseWidget
	sess *Session
	img  *canvas.Image
	// OnChange runs after a stroke is committed.
	OnChange func()
}

var (
	_ desktop.Mouseable = (*DrawCanvas)(nil)
	_ fyne.Draggable    = (*DrawCanvas)(nil)
)

func NewDrawCanvas(sess *Session) *DrawCanvas {
	dc := &DrawCanvas{sess: sess}
	dc.img = canvas.NewImageFromImage(sess.Frame())
	dc.img.FillMode = canvas.ImageFillContain
	dc.img.ScaleMode = canvas.ImageScaleSmooth
	dc.ExtendBaseWidget(dc)
	return dc
}

func (d *DrawCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 60, G: 60, B: 64, A: 255})
	return widget.NewSimpleRenderer(container.NewStack(bg, d.img))
}

func (d *DrawCanvas) MinSize() fyne.Size { return fyne.NewSize(320, 240) }

// Refresh redraws the canvas image from the session.
func (d *DrawCanvas) Refresh() {
	d.img.Image = d.sess.Frame()
	d.img.Refresh()
	d.BaseWidget.Refresh()
}

func (d *DrawCanvas) toCanvas(pos fyne.Position) stroke.Point {
	sz := d.Size()
	return d.sess.ViewToCanvas(pos.X, pos.Y, sz.Width, sz.Height)
}

func (d *DrawCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	if d.sess.PointerDown(d.toCanvas(e.Position)) {
		d.Refresh()
	}
}

func (d *DrawCanvas) Dragged(e *fyne.DragEvent) {
	if d.sess.PointerMove(d.toCanvas(e.Position)) {
		d.Refresh()
	}
}

func (d *DrawCanvas) DragEnd() { d.finish() }

func (d *DrawCanvas) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	d.finish()
}

func (d *DrawCanvas) finish() {
	if !d.sess.PointerUp() {
		return
	}
	d.Refresh()
	if d.OnChange != nil {
		d.OnChange()
	}
}

// swatch is a tappable color square.
type swatch struct {
	widget.BaseWidget
	name  string
	color stroke.Color
	onTap func()
}

func newSwatch(name string, c stroke.Color, onTap func()) *swatch {
	s := &swatch{name: name, color: c, onTap: onTap}
	s.ExtendBaseWidget(s)
	return s
}

func (s *swatch) CreateRenderer() fyne.WidgetRenderer {
	r := canvas.NewRectangle(s.color.NRGBA())
	r.StrokeColor = color.NRGBA{R: 30, G: 30, B: 30, A: 255}
	r.StrokeWidth = 1
	r.SetMinSize(fyne.NewSize(24, 24))
	return widget.NewSimpleRenderer(r)
}

func (s *swatch) Tapped(*fyne.PointEvent) {
	if s.onTap != nil {
		s.onTap()
	}
}
