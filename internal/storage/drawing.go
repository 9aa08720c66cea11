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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sketchpad/internal/background"
	applog "sketchpad/internal/log"
	"sketchpad/internal/stroke"
)

const (
	DocumentFileName = "drawing.json"
	AutosaveFileName = "drawing.autosave.json"
	BackupsDirName   = "backups"
	AssetsDirName    = "assets"
	ExportsDirName   = "exports"

	// FormatVersion is written into every document.
	FormatVersion = 1
)

// ErrNotDrawing is returned by Open when the directory holds neither a
// document nor a backup of one.
var ErrNotDrawing = errors.New("not a drawing directory")

var standardSubDirs = []string{
	AssetsDirName,
	ExportsDirName,
	BackupsDirName,
}

// Canvas is the logical drawing size in pixels.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BackgroundRef is the persisted form of a background. Image is relative to
// the drawing root; Digest is the sha256 of the imported file.
type BackgroundRef struct {
	Color  string `json:"color"`
	Image  string `json:"image,omitempty"`
	Digest string `json:"digest,omitempty"`
}

// Document is the on-disk drawing: canvas, background and both halves of the
// stroke history, so undo survives a reopen.
type Document struct {
	Version    int             `json:"version"`
	Canvas     Canvas          `json:"canvas"`
	Background BackgroundRef   `json:"background"`
	Strokes    []stroke.Stroke `json:"strokes"`
	Undone     []stroke.Stroke `json:"undone"`
	Created    time.Time       `json:"created"`
	Modified   time.Time       `json:"modified"`
}

// NewDocument returns an empty document of the given size and background color.
func NewDocument(w, h int, bg stroke.Color) Document {
	now := time.Now().UTC()
	return Document{
		Version:    FormatVersion,
		Canvas:     Canvas{Width: w, Height: h},
		Background: BackgroundRef{Color: bg.Hex()},
		Strokes:    []stroke.Stroke{},
		Undone:     []stroke.Stroke{},
		Created:    now,
		Modified:   now,
	}
}

// DrawingHandle ties a Document to its directory.
type DrawingHandle struct {
	Root         string
	DocumentPath string
	Doc          Document

	// assets replaced since the last save, removed by the next one
	stale []string
}

// ValidateCanvas checks a canvas size against the limits the renderer accepts.
func ValidateCanvas(c Canvas) error {
	if c.Width < 1 || c.Height < 1 || c.Width > stroke.MaxCanvasSide || c.Height > stroke.MaxCanvasSide {
		return fmt.Errorf("canvas %dx%d out of range 1..%d", c.Width, c.Height, stroke.MaxCanvasSide)
	}
	return nil
}

// Create makes a new drawing directory at root (creating it if needed),
// scaffolds the standard subfolders and writes doc.
func Create(root string, doc Document) (*DrawingHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := ValidateCanvas(doc.Canvas); err != nil {
		return nil, err
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	h := &DrawingHandle{Root: root, DocumentPath: filepath.Join(root, DocumentFileName), Doc: doc}
	if err := Save(h); err != nil {
		return nil, err
	}
	applog.WithOperation(applog.WithComponent("storage"), "create").Info("drawing created", slog.String("root", root))
	return h, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create drawing root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing drawing from root. A document that is missing,
// unparsable or fails schema validation is replaced by the latest backup.
func Open(root string) (*DrawingHandle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	dpath := filepath.Join(root, DocumentFileName)
	doc, err := readDocument(dpath)
	if err == nil {
		return &DrawingHandle{Root: root, DocumentPath: dpath, Doc: *doc}, nil
	}
	bdoc, berr := openFromLatestBackup(root)
	if berr != nil {
		if errors.Is(err, fs.ErrNotExist) && errors.Is(berr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", root, ErrNotDrawing)
		}
		return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
	}
	l.Warn("document unreadable, opened latest backup", slog.Any("err", err))
	return &DrawingHandle{Root: root, DocumentPath: dpath, Doc: *bdoc}, nil
}

func readDocument(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeDocument(b)
}

func decodeDocument(b []byte) (*Document, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if d.Strokes == nil {
		d.Strokes = []stroke.Stroke{}
	}
	if d.Undone == nil {
		d.Undone = []stroke.Stroke{}
	}
	return &d, nil
}

func encodeDocument(d Document) ([]byte, error) {
	if d.Strokes == nil {
		d.Strokes = []stroke.Stroke{}
	}
	if d.Undone == nil {
		d.Undone = []stroke.Stroke{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes h.Doc to disk with transactional semantics and a timestamped
// backup of the previous document (if present).
func Save(h *DrawingHandle) error {
	if h == nil {
		return errors.New("nil DrawingHandle")
	}
	if h.Root == "" || h.DocumentPath == "" {
		return errors.New("invalid DrawingHandle: missing paths")
	}
	h.Doc.Version = FormatVersion
	h.Doc.Modified = time.Now().UTC()
	data, err := encodeDocument(h.Doc)
	if err != nil {
		return err
	}

	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(h.DocumentPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", DocumentFileName, stamp))
		if cerr := copyFile(h.DocumentPath, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}
	if err := writeAtomic(h.DocumentPath, data); err != nil {
		return err
	}
	h.removeStaleAssets()
	return nil
}

func (h *DrawingHandle) removeStaleAssets() {
	for _, rel := range h.stale {
		if rel == h.Doc.Background.Image {
			continue
		}
		p := filepath.Join(h.Root, filepath.FromSlash(rel))
		if !strings.HasPrefix(p, filepath.Join(h.Root, AssetsDirName)+string(filepath.Separator)) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			applog.WithComponent("storage").Warn("remove replaced asset", slog.String("path", p), slog.Any("err", err))
		}
	}
	h.stale = nil
}

func (h *DrawingHandle) markStale(rel string) {
	if rel != "" {
		h.stale = append(h.stale, rel)
	}
}

// SaveAs writes the drawing to a new root folder, copying the background
// image along, and repoints the handle.
func SaveAs(h *DrawingHandle, newRoot string) error {
	if h == nil {
		return errors.New("nil DrawingHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	if rel := h.Doc.Background.Image; rel != "" {
		data, err := os.ReadFile(filepath.Join(h.Root, filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("copy background: %w", err)
		}
		if err := writeAtomic(filepath.Join(newRoot, filepath.FromSlash(rel)), data); err != nil {
			return fmt.Errorf("copy background: %w", err)
		}
	}
	h.Root = newRoot
	h.DocumentPath = filepath.Join(newRoot, DocumentFileName)
	return Save(h)
}

// ImportBackground copies the image at src into the drawing's assets folder
// and references it from the document. The image is decoded first so an
// unsupported file never reaches the document. A previous asset with another
// name is deleted by the next Save.
func ImportBackground(h *DrawingHandle, src string) (stroke.Background, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "import-background").With(slog.String("src", src))
	data, err := os.ReadFile(src)
	if err != nil {
		return stroke.Background{}, fmt.Errorf("open background: %w", err)
	}
	bg, format, err := background.Decode(bytes.NewReader(data), h.BackgroundColor())
	if err != nil {
		l.Warn("background import failed", slog.Any("err", err))
		return stroke.Background{}, err
	}
	name := "background" + strings.ToLower(filepath.Ext(src))
	rel := filepath.ToSlash(filepath.Join(AssetsDirName, name))
	dst := filepath.Join(h.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return stroke.Background{}, fmt.Errorf("ensure assets dir: %w", err)
	}
	// data is already in memory, so src may be dst itself
	if err := writeAtomic(dst, data); err != nil {
		return stroke.Background{}, fmt.Errorf("copy background: %w", err)
	}
	if old := h.Doc.Background.Image; old != rel {
		h.markStale(old)
	}
	sum := sha256.Sum256(data)
	h.Doc.Background.Image = rel
	h.Doc.Background.Digest = hex.EncodeToString(sum[:])
	bg.Source = rel
	b := bg.Image.Bounds()
	l.Info("background imported", slog.String("format", format), slog.Int("w", b.Dx()), slog.Int("h", b.Dy()))
	return bg, nil
}

// BackgroundColor parses the document background color, white when invalid.
func (h *DrawingHandle) BackgroundColor() stroke.Color {
	c, err := stroke.ParseColor(h.Doc.Background.Color)
	if err != nil {
		return stroke.White
	}
	return c
}

// LoadBackground resolves the document background, decoding its image if any.
func (h *DrawingHandle) LoadBackground() (stroke.Background, error) {
	bg := stroke.Background{Color: h.BackgroundColor()}
	if h.Doc.Background.Image == "" {
		return bg, nil
	}
	img, err := background.Load(filepath.Join(h.Root, filepath.FromSlash(h.Doc.Background.Image)), bg.Color)
	if err != nil {
		return bg, err
	}
	img.Source = h.Doc.Background.Image
	return img, nil
}

// History builds a stroke history holding the document's strokes and background.
// A background image that cannot be decoded degrades to the solid color and
// is reported through the returned error alongside a usable history.
func (h *DrawingHandle) History(opts ...stroke.Option) (*stroke.History, error) {
	bg, err := h.LoadBackground()
	hist := stroke.NewHistory(append([]stroke.Option{stroke.WithBackground(bg)}, opts...)...)
	hist.Restore(h.Doc.Strokes, h.Doc.Undone)
	return hist, err
}

// Capture copies the history state back into the document.
func (h *DrawingHandle) Capture(hist *stroke.History) {
	h.Doc.Strokes = hist.Strokes()
	h.Doc.Undone = hist.Undone()
	h.Doc.Background.Color = hist.Background().Color.Hex()
	if src := hist.Background().Source; hist.Background().HasImage() && src != "" {
		if src != h.Doc.Background.Image {
			h.Doc.Background.Digest = ""
		}
		h.Doc.Background.Image = src
	} else if !hist.Background().HasImage() {
		h.markStale(h.Doc.Background.Image)
		h.Doc.Background.Image = ""
		h.Doc.Background.Digest = ""
	}
}

// AutosaveCrashSnapshot writes the in-memory document next to the real one
// without touching it or its backups. It returns the written path.
func AutosaveCrashSnapshot(h *DrawingHandle) (string, error) {
	if h == nil || h.Root == "" {
		return "", errors.New("invalid DrawingHandle")
	}
	data, err := encodeDocument(h.Doc)
	if err != nil {
		return "", err
	}
	path := filepath.Join(h.Root, AutosaveFileName)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeAtomic writes data to a temp file in the target's directory, then renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// Backups lists document backups oldest first.
func Backups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, DocumentFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// openFromLatestBackup opens the newest backup that still decodes.
func openFromLatestBackup(root string) (*Document, error) {
	candidates, err := Backups(root)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no backups found: %w", fs.ErrNotExist)
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		d, err := readDocument(candidates[i])
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no usable backup: %w", lastErr)
}
