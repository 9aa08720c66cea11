/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"sketchpad/internal/stroke"
)

// isolate points the config path at a temp dir and mocks the keyring.
func isolate(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, p)
	return p
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("unexpected token %q", tok)
	}
	if cfg.Canvas.Width != 1024 || cfg.Canvas.Height != 768 || cfg.Export.Format != "png" {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestSaveLoadRoundTripWithToken(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Canvas.Width = 640
	cfg.Brush.Color = "#ff0000"
	cfg.Telemetry.OptIn = true
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Canvas.Width != 640 || !got.Telemetry.OptIn {
		t.Fatalf("file values lost: %#v", got)
	}
	if tok != "s3cret" {
		t.Fatalf("token = %q", tok)
	}
	if got.DefaultBrush().Color != stroke.Red {
		t.Fatalf("brush color = %+v", got.DefaultBrush().Color)
	}
}

func TestMalformedFileIsError(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("canvas: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverridesCanvasAndExport(t *testing.T) {
	isolate(t)
	t.Setenv(EnvCanvasWidth, "320")
	t.Setenv(EnvCanvasBackground, "yellow")
	t.Setenv(EnvExportFormat, "PDF")
	t.Setenv(EnvExportQuality, "70")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Canvas.Width != 320 || cfg.CanvasBackground() != stroke.Yellow {
		t.Fatalf("canvas overrides not applied: %#v", cfg.Canvas)
	}
	if cfg.Export.Format != "pdf" || cfg.Export.JPEGQuality != 70 {
		t.Fatalf("export overrides not applied: %#v", cfg.Export)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	t.Setenv(EnvTelemetryURL, "https://example.test/events")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Telemetry.OptIn || cfg.Telemetry.EventsURL != "https://example.test/events" {
		t.Fatalf("telemetry overrides not applied: %#v", cfg.Telemetry)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/skp.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/skp.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeKeepsDefaultsForZeroValues(t *testing.T) {
	dst := Defaults()
	var src AppConfig
	src.Brush.Sizes = []float32{2, 4}
	mergeInto(&dst, &src)
	if dst.Canvas.Width != 1024 || dst.Brush.Color != "black" {
		t.Fatalf("zero values overwrote defaults: %#v", dst)
	}
	if len(dst.Brush.Sizes) != 2 || dst.Brush.Sizes[1] != 4 {
		t.Fatalf("sizes not merged: %v", dst.Brush.Sizes)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/tmp/skp.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/tmp/skp.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestEnvOverrideFor(t *testing.T) {
	t.Setenv(EnvBrushWidth, "")
	if _, ok := EnvOverrideFor("brush.width"); ok {
		t.Fatalf("brush.width should not be overridden")
	}
	t.Setenv(EnvBrushWidth, "12")
	name, ok := EnvOverrideFor("brush.width")
	if !ok || name != EnvBrushWidth {
		t.Fatalf("EnvOverrideFor = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("no.such.key"); ok {
		t.Fatalf("unknown key reported as overridden")
	}
	keys := EnvKeys()
	if len(keys) == 0 || keys[0] > keys[len(keys)-1] {
		t.Fatalf("EnvKeys not sorted: %v", keys)
	}
	found := false
	for _, k := range keys {
		found = found || k == "brush.width"
	}
	if !found {
		t.Fatalf("brush.width missing from EnvKeys: %v", keys)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Canvas.Width = 0
	cfg.Brush.Color = "mauve-ish"
	cfg.Export.Format = "gif"
	cfg.Export.JPEGQuality = 101
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"canvas size", "brush.color", "export.format", "jpeg_quality"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestTokenStore(t *testing.T) {
	keyring.MockInit()
	if _, err := Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if err := SetToken("abc"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if tok, err := Token(); err != nil || tok != "abc" {
		t.Fatalf("Token = %q, %v", tok, err)
	}
	if err := SetToken(""); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	if _, err := Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken after clear, got %v", err)
	}
	// clearing twice is fine
	if err := SetToken(""); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestValidateRejectsHugeCanvas(t *testing.T) {
	isolate(t)
	t.Setenv(EnvCanvasWidth, "2147483647")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "canvas size") {
		t.Fatalf("expected canvas size error, got %v", err)
	}
	fixed := cfg.Sanitized()
	if fixed.Canvas.Width != 1024 || fixed.Canvas.Height != cfg.Canvas.Height {
		t.Fatalf("sanitized canvas = %+v", fixed.Canvas)
	}
	if err := fixed.Validate(); err != nil {
		t.Fatalf("sanitized config should validate: %v", err)
	}
}

func TestSanitizedKeepsValidValues(t *testing.T) {
	cfg := Defaults()
	cfg.Brush.Color = "red"
	cfg.Export.Format = "gif"
	got := cfg.Sanitized()
	if got.Brush.Color != "red" || got.Export.Format != "png" {
		t.Fatalf("sanitized = %+v / %+v", got.Brush, got.Export)
	}
}
