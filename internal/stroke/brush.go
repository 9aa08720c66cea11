/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package stroke

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"
)

// Color is a non-premultiplied 8-bit RGBA color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

var (
	Black  = Color{0, 0, 0, 255}
	White  = Color{255, 255, 255, 255}
	Red    = Color{255, 0, 0, 255}
	Green  = Color{0, 255, 0, 255}
	Blue   = Color{0, 0, 255, 255}
	Yellow = Color{255, 255, 0, 255}
)

// Palette maps color names offered by the toolbar to their values.
var Palette = map[string]Color{
	"black":  Black,
	"white":  White,
	"red":    Red,
	"green":  Green,
	"blue":   Blue,
	"yellow": Yellow,
}

// PaletteNames returns the palette names in a stable order.
func PaletteNames() []string {
	names := make([]string, 0, len(Palette))
	for n := range Palette {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NRGBA converts to the standard library color type.
func (c Color) NRGBA() color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

// Hex formats the color as #rrggbb, or #rrggbbaa when not opaque.
func (c Color) Hex() string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// FromColor converts any color.Color.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B, A: n.A}
}

// ParseColor accepts a palette name, #rgb, #rrggbb or #rrggbbaa.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := Palette[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("unknown color %q", s)
	}
	h := s[1:]
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Brush is the width and color applied to the next stroke.
type Brush struct {
	Width float32
	Color Color
}

// Brush sizes offered by the size picker.
const (
	SizeSmall  float32 = 10
	SizeMedium float32 = 20
	SizeLarge  float32 = 30
)

// BrushSizes lists the selectable sizes smallest first.
var BrushSizes = []float32{SizeSmall, SizeMedium, SizeLarge}

// DefaultBrush is a small black brush.
func DefaultBrush() Brush { return Brush{Width: SizeSmall, Color: Black} }

// Eraser returns a brush that paints the background color. Over a
// background image it paints that solid color too; the image is not restored.
func Eraser(bg Background, width float32) Brush {
	c := bg.Color
	if c.A == 0 {
		c = White
	}
	return Brush{Width: width, Color: c}
}
