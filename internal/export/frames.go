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
	"fmt"
	"image/png"
	"io"
	"math"

	"sketchpad/internal/raster"
	"sketchpad/internal/stroke"
	"sketchpad/internal/vector"
)

// FramesManifestName is the JSON index stored alongside the frames.
const FramesManifestName = "frames.json"

// FramesManifest describes a frames archive.
type FramesManifest struct {
	Title  string  `json:"title"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Frames []Frame `json:"frames"`
}

// Frame is one archive entry; StrokeID is empty for the background-only frame.
type Frame struct {
	File     string `json:"file"`
	StrokeID string `json:"stroke_id,omitempty"`
}

// frameSurface forwards to a raster surface and captures a frame after the
// background and after every stroke.
type frameSurface struct {
	*raster.Surface
	emit func()
}

func (f *frameSurface) FillBackground(bg stroke.Background) {
	f.Surface.FillBackground(bg)
	f.emit()
}

func (f *frameSurface) StrokePolyline(points []stroke.Point, width float32, c stroke.Color) {
	f.Surface.StrokePolyline(points, width, c)
	f.emit()
}

// Frames writes a ZIP archive replaying the drawing: frame 0 is the bare
// background and frame i shows the first i committed strokes.
func Frames(w io.Writer, h *stroke.History, opt Options) error {
	opt = opt.withDefaults()
	strokes := h.Strokes()
	pw := int(math.Round(float64(float32(opt.Width) * opt.Scale)))
	ph := int(math.Round(float64(float32(opt.Height) * opt.Scale)))
	rs := raster.New(pw, ph)
	rs.Transform = vector.Scale(opt.Scale, opt.Scale)

	pad := len(fmt.Sprint(len(strokes)))
	if pad < 3 {
		pad = 3
	}
	zw := zip.NewWriter(w)
	man := FramesManifest{Title: opt.Title, Width: pw, Height: ph}
	var imgBuf bytes.Buffer
	var werr error
	n := 0
	fs := &frameSurface{Surface: rs}
	fs.emit = func() {
		if werr != nil {
			return
		}
		id := ""
		if n > 0 && n <= len(strokes) {
			id = strokes[n-1].ID
		}
		name := fmt.Sprintf("frame-%0*d.png", pad, n)
		imgBuf.Reset()
		if err := png.Encode(&imgBuf, rs.Image()); err != nil {
			werr = fmt.Errorf("encode frame %d: %w", n, err)
			return
		}
		if err := addZipFile(zw, name, imgBuf.Bytes()); err != nil {
			werr = fmt.Errorf("zip add frame %d: %w", n, err)
			return
		}
		man.Frames = append(man.Frames, Frame{File: name, StrokeID: id})
		n++
	}
	h.Render(fs)
	if werr != nil {
		return werr
	}

	mb, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, FramesManifestName, mb); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
