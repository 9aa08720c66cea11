/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sketchpad/internal/raster"
	"sketchpad/internal/stroke"
)

func testHistory() *stroke.History {
	n := 0
	h := stroke.NewHistory(stroke.WithIDFunc(func() string { n++; return "id" + string(rune('0'+n)) }))
	h.BeginStroke(stroke.Point{X: 10, Y: 10}, 6, stroke.Red)
	h.ExtendStroke(stroke.Point{X: 50, Y: 10})
	h.EndStroke()
	h.BeginStroke(stroke.Point{X: 30, Y: 30}, 8, stroke.Color{R: 0, G: 0, B: 255, A: 128})
	h.EndStroke()
	return h
}

var small = Options{Width: 64, Height: 48, Title: "Tom & Jerry"}

func TestFormatFor(t *testing.T) {
	cases := map[string]Format{
		"a.png": FormatPNG, "b.JPG": FormatJPEG, "c.jpeg": FormatJPEG,
		"d.pdf": FormatPDF, "e.svg": FormatSVG, "f.zip": FormatFrames, "g.cbz": FormatFrames,
	}
	for path, want := range cases {
		got, err := FormatFor(path)
		if err != nil || got != want {
			t.Errorf("FormatFor(%q) = %q, %v", path, got, err)
		}
	}
	for _, bad := range []string{"x.gif", "noext", "y.tar.gz"} {
		if _, err := FormatFor(bad); !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("FormatFor(%q): expected ErrUnknownFormat, got %v", bad, err)
		}
	}
	if err := ToFile(filepath.Join(t.TempDir(), "out.bmp"), testHistory(), small); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("ToFile unknown ext: %v", err)
	}
}

func TestPNGMatchesRaster(t *testing.T) {
	h := testHistory()
	out := filepath.Join(t.TempDir(), "nested", "d.png")
	if err := ToFile(out, h, small); err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := raster.Render(h, 64, 48)
	if img.Bounds() != want.Bounds() {
		t.Fatalf("bounds %v want %v", img.Bounds(), want.Bounds())
	}
	for _, p := range []image.Point{{0, 0}, {30, 10}, {30, 30}, {63, 47}} {
		g := color.RGBAModel.Convert(img.At(p.X, p.Y)).(color.RGBA)
		if g != want.RGBAAt(p.X, p.Y) {
			t.Errorf("pixel %v = %v want %v", p, g, want.RGBAAt(p.X, p.Y))
		}
	}
	// no temp files left behind
	ents, _ := os.ReadDir(filepath.Dir(out))
	if len(ents) != 1 {
		t.Fatalf("unexpected files: %v", ents)
	}
}

func TestJPEGScaled(t *testing.T) {
	var buf bytes.Buffer
	opt := small
	opt.Scale = 2
	opt.JPEGQuality = 50
	if err := JPEG(&buf, testHistory(), opt); err != nil {
		t.Fatalf("JPEG: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 128 || cfg.Height != 96 {
		t.Fatalf("size %dx%d", cfg.Width, cfg.Height)
	}
}

func bgImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 200, 255
	}
	return img
}

func TestPDF(t *testing.T) {
	h := testHistory()
	h.SetBackground(stroke.Background{Color: stroke.White, Image: bgImage()})
	var buf bytes.Buffer
	if err := PDF(&buf, h, small); err != nil {
		t.Fatalf("PDF: %v", err)
	}
	b := buf.Bytes()
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:8])
	}
	if !bytes.Contains(b, []byte("/Image")) {
		t.Fatalf("background image not embedded")
	}
	if h.Len() != 2 {
		t.Fatalf("export changed history")
	}
}

func TestSVG(t *testing.T) {
	h := testHistory()
	h.BeginStroke(stroke.Point{X: 5, Y: 5}, 4, stroke.Black)
	h.EndStroke()
	var buf bytes.Buffer
	if err := SVG(&buf, h, small); err != nil {
		t.Fatalf("SVG: %v", err)
	}
	s := buf.String()
	dec := xml.NewDecoder(strings.NewReader(s))
	for {
		if _, err := dec.Token(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("svg not well-formed: %v\n%s", err, s)
		}
	}
	rect := strings.Index(s, "<rect")
	first := strings.Index(s, `points="10,10 50,10"`)
	second := strings.Index(s, `r="4" fill="#0000ff" fill-opacity="0.502"`)
	dot := strings.Index(s, `<circle cx="5" cy="5" r="2" fill="#000000"/>`)
	if rect < 0 || first < 0 || second < 0 || dot < 0 {
		t.Fatalf("missing elements:\n%s", s)
	}
	if !(rect < first && first < second && second < dot) {
		t.Fatalf("elements out of render order:\n%s", s)
	}
	if !strings.Contains(s, "<title>Tom &amp; Jerry</title>") {
		t.Fatalf("title not escaped:\n%s", s)
	}
}

func TestSVGBackgroundImage(t *testing.T) {
	h := stroke.NewHistory(stroke.WithBackground(stroke.Background{Color: stroke.White, Image: bgImage()}))
	var buf bytes.Buffer
	if err := SVG(&buf, h, small); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `preserveAspectRatio="xMidYMid slice" xlink:href="data:image/png;base64,`) {
		t.Fatalf("background image missing:\n%s", buf.String())
	}
}

func TestFramesReplayDrawing(t *testing.T) {
	h := testHistory()
	var buf bytes.Buffer
	if err := Frames(&buf, h, small); err != nil {
		t.Fatalf("Frames: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}
	mf, ok := files[FramesManifestName]
	if !ok {
		t.Fatalf("manifest missing")
	}
	rc, _ := mf.Open()
	var man FramesManifest
	if err := json.NewDecoder(rc).Decode(&man); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	rc.Close()
	if len(man.Frames) != 3 || man.Frames[0].StrokeID != "" || man.Frames[2].StrokeID != "id2" {
		t.Fatalf("manifest frames: %+v", man.Frames)
	}

	// the last frame is the full render
	rc, err = files[man.Frames[2].File].Open()
	if err != nil {
		t.Fatal(err)
	}
	last, err := png.Decode(rc)
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	want := raster.Render(h, 64, 48)
	got := image.NewRGBA(last.Bounds())
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			got.Set(x, y, last.At(x, y))
		}
	}
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Fatalf("last frame differs from render")
	}
}

func TestBatchPresets(t *testing.T) {
	h := testHistory()
	dir := t.TempDir()
	paths, err := Batch(h, BatchOptions{Preset: PresetWeb, OutDir: filepath.Join(dir, "web"), Options: small})
	if err != nil {
		t.Fatalf("web: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "drawing.png" || filepath.Base(paths[1]) != "drawing.svg" {
		t.Fatalf("web paths: %v", paths)
	}

	paths, err = Batch(h, BatchOptions{Preset: PresetPrint, OutDir: filepath.Join(dir, "print"), Base: "art", Options: small})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if len(paths) != 2 || filepath.Ext(paths[0]) != ".pdf" {
		t.Fatalf("print paths: %v", paths)
	}
	f, err := os.Open(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil || cfg.Width != 192 || cfg.Height != 144 {
		t.Fatalf("print png %dx%d %v", cfg.Width, cfg.Height, err)
	}

	if _, err := Batch(h, BatchOptions{Preset: "poster", OutDir: dir}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("unknown preset: %v", err)
	}
	if _, err := Batch(h, BatchOptions{Preset: PresetWeb}); err == nil {
		t.Fatalf("missing out dir should fail")
	}
}
