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
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"

	"sketchpad/internal/raster"
	"sketchpad/internal/stroke"
)

// Image renders h at opt.Scale times the canvas size.
func Image(h *stroke.History, opt Options) *image.RGBA {
	opt = opt.withDefaults()
	return raster.RenderScaled(h, opt.Width, opt.Height, opt.Scale)
}

// PNG writes the composited drawing as PNG.
func PNG(w io.Writer, h *stroke.History, opt Options) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(w, Image(h, opt)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// JPEG writes the composited drawing as JPEG, flattened onto white.
func JPEG(w io.Writer, h *stroke.History, opt Options) error {
	opt = opt.withDefaults()
	src := Image(h, opt)
	flat := image.NewRGBA(src.Bounds())
	draw.Draw(flat, flat.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, src.Bounds().Min, draw.Over)
	if err := jpeg.Encode(w, flat, &jpeg.Options{Quality: opt.JPEGQuality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}
