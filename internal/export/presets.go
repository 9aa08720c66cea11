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
	"path/filepath"
	"strings"

	"sketchpad/internal/stroke"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export.
//
// Path semantics:
//   - OutDir receives one file per format, named <Base><ext>.
//   - Base defaults to "drawing".
//   - The print preset renders rasters at PrintScale (default 3) for ~300 dpi output.
type BatchOptions struct {
	Preset     PresetName
	Formats    []string // empty means preset defaults
	OutDir     string
	Base       string
	PrintScale float32
	Options    Options
}

// Batch runs every format of the preset and returns the written paths.
func Batch(h *stroke.History, opt BatchOptions) ([]string, error) {
	if opt.OutDir == "" {
		return nil, fmt.Errorf("batch: output directory is required")
	}
	names := opt.Formats
	if len(names) == 0 {
		var err error
		if names, err = presetDefaultFormats(opt.Preset); err != nil {
			return nil, err
		}
	}
	base := opt.Base
	if base == "" {
		base = "drawing"
	}
	o := opt.Options
	if opt.Preset == PresetPrint {
		o.Scale = opt.PrintScale
		if o.Scale <= 0 {
			o.Scale = 3
		}
	}

	var out []string
	for _, n := range names {
		f, err := ParseFormat(strings.TrimSpace(n))
		if err != nil {
			return out, err
		}
		path := filepath.Join(opt.OutDir, base+f.Ext())
		if err := toFile(path, f, h, o); err != nil {
			return out, fmt.Errorf("%s: %w", f, err)
		}
		out = append(out, path)
	}
	return out, nil
}

// Presets lists the known preset names.
func Presets() []PresetName { return []PresetName{PresetWeb, PresetPrint} }

func presetDefaultFormats(p PresetName) ([]string, error) {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}, nil
	case PresetPrint:
		return []string{"pdf", "png"}, nil
	}
	return nil, fmt.Errorf("%w: preset %q", ErrUnknownFormat, p)
}
