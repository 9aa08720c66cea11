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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"sketchpad/internal/stroke"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type CanvasConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"` // color name or #rrggbb
}

type BrushConfig struct {
	Width float32   `yaml:"width"`
	Color string    `yaml:"color"`
	Sizes []float32 `yaml:"sizes"`
}

type ExportConfig struct {
	Format      string `yaml:"format"` // png | jpeg | pdf | svg
	JPEGQuality int    `yaml:"jpeg_quality"`
	OutputDir   string `yaml:"output_dir"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Canvas        CanvasConfig    `yaml:"canvas"`
	Brush         BrushConfig     `yaml:"brush"`
	Export        ExportConfig    `yaml:"export"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Canvas:        CanvasConfig{Width: 1024, Height: 768, Background: "white"},
		Brush: BrushConfig{
			Width: stroke.DefaultBrush().Width,
			Color: "black",
			Sizes: append([]float32(nil), stroke.BrushSizes...),
		},
		Export:    ExportConfig{Format: "png", JPEGQuality: 90},
		Telemetry: TelemetryConfig{TimeoutMs: 1500},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "SKP_CONFIG"
	EnvCanvasWidth      = "SKP_CANVAS_WIDTH"
	EnvCanvasHeight     = "SKP_CANVAS_HEIGHT"
	EnvCanvasBackground = "SKP_CANVAS_BACKGROUND"
	EnvBrushWidth       = "SKP_BRUSH_WIDTH"
	EnvBrushColor       = "SKP_BRUSH_COLOR"
	EnvExportFormat     = "SKP_EXPORT_FORMAT"
	EnvExportQuality    = "SKP_EXPORT_JPEG_QUALITY"
	EnvExportDir        = "SKP_EXPORT_DIR"
	EnvTelemetryOptIn   = "SKP_TELEMETRY_OPT_IN"
	EnvTelemetryURL     = "SKP_TELEMETRY_URL"
	EnvCrashUploadURL   = "SKP_CRASH_UPLOAD_URL"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SKP_LOG_LEVEL"
	EnvLogFormat = "SKP_LOG_FORMAT"
	EnvLogSource = "SKP_LOG_SOURCE"
	EnvLogFile   = "SKP_LOG_FILE"
)

// envKeys maps dotted config keys to the env var overriding them.
var envKeys = map[string]string{
	"canvas.width":         EnvCanvasWidth,
	"canvas.height":        EnvCanvasHeight,
	"canvas.background":    EnvCanvasBackground,
	"brush.width":          EnvBrushWidth,
	"brush.color":          EnvBrushColor,
	"export.format":        EnvExportFormat,
	"export.jpeg_quality":  EnvExportQuality,
	"export.output_dir":    EnvExportDir,
	"telemetry.opt_in":     EnvTelemetryOptIn,
	"telemetry.events_url": EnvTelemetryURL,
	"telemetry.crash_url":  EnvCrashUploadURL,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// ConfigPath returns the per-user config file path. SKP_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Sketchpad")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Sketchpad")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "sketchpad")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "sketchpad")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// It also loads the telemetry token from the keyring (returned separately, never kept in the struct).
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, "", err
	}
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// LoadFile is Load without the keyring lookup. A missing file yields defaults;
// a malformed file is an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

// Validate reports every out-of-range or unparsable value.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 || c.Canvas.Width > stroke.MaxCanvasSide || c.Canvas.Height > stroke.MaxCanvasSide {
		errs = append(errs, fmt.Errorf("canvas size must be within 1..%d, got %dx%d", stroke.MaxCanvasSide, c.Canvas.Width, c.Canvas.Height))
	}
	if _, err := stroke.ParseColor(c.Canvas.Background); err != nil {
		errs = append(errs, fmt.Errorf("canvas.background: %w", err))
	}
	if c.Brush.Width <= 0 {
		errs = append(errs, fmt.Errorf("brush.width must be positive, got %v", c.Brush.Width))
	}
	if _, err := stroke.ParseColor(c.Brush.Color); err != nil {
		errs = append(errs, fmt.Errorf("brush.color: %w", err))
	}
	switch c.Export.Format {
	case "png", "jpeg", "jpg", "pdf", "svg":
	default:
		errs = append(errs, fmt.Errorf("export.format %q not supported", c.Export.Format))
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("export.jpeg_quality must be in 1..100, got %d", c.Export.JPEGQuality))
	}
	return errors.Join(errs...)
}

// Sanitized returns a copy with every value Validate rejects replaced by its default.
func (c AppConfig) Sanitized() AppConfig {
	d := Defaults()
	if c.Canvas.Width <= 0 || c.Canvas.Width > stroke.MaxCanvasSide {
		c.Canvas.Width = d.Canvas.Width
	}
	if c.Canvas.Height <= 0 || c.Canvas.Height > stroke.MaxCanvasSide {
		c.Canvas.Height = d.Canvas.Height
	}
	if _, err := stroke.ParseColor(c.Canvas.Background); err != nil {
		c.Canvas.Background = d.Canvas.Background
	}
	if c.Brush.Width <= 0 {
		c.Brush.Width = d.Brush.Width
	}
	if _, err := stroke.ParseColor(c.Brush.Color); err != nil {
		c.Brush.Color = d.Brush.Color
	}
	switch c.Export.Format {
	case "png", "jpeg", "jpg", "pdf", "svg":
	default:
		c.Export.Format = d.Export.Format
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		c.Export.JPEGQuality = d.Export.JPEGQuality
	}
	return c
}

// CanvasBackground returns the parsed canvas background color, white on error.
func (c AppConfig) CanvasBackground() stroke.Color {
	col, err := stroke.ParseColor(c.Canvas.Background)
	if err != nil {
		return stroke.White
	}
	return col
}

// DefaultBrush returns the configured starting brush.
func (c AppConfig) DefaultBrush() stroke.Brush {
	b := stroke.DefaultBrush()
	if c.Brush.Width > 0 {
		b.Width = c.Brush.Width
	}
	if col, err := stroke.ParseColor(c.Brush.Color); err == nil {
		b.Color = col
	}
	return b
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Canvas.Width > 0 {
		dst.Canvas.Width = src.Canvas.Width
	}
	if src.Canvas.Height > 0 {
		dst.Canvas.Height = src.Canvas.Height
	}
	if s := strings.TrimSpace(src.Canvas.Background); s != "" {
		dst.Canvas.Background = s
	}
	if src.Brush.Width > 0 {
		dst.Brush.Width = src.Brush.Width
	}
	if s := strings.TrimSpace(src.Brush.Color); s != "" {
		dst.Brush.Color = s
	}
	if len(src.Brush.Sizes) > 0 {
		dst.Brush.Sizes = append([]float32(nil), src.Brush.Sizes...)
	}
	if s := strings.TrimSpace(src.Export.Format); s != "" {
		dst.Export.Format = strings.ToLower(s)
	}
	if src.Export.JPEGQuality != 0 {
		dst.Export.JPEGQuality = src.Export.JPEGQuality
	}
	if s := strings.TrimSpace(src.Export.OutputDir); s != "" {
		dst.Export.OutputDir = s
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Telemetry.OptIn = src.Telemetry.OptIn
	if s := strings.TrimSpace(src.Telemetry.EventsURL); s != "" {
		dst.Telemetry.EventsURL = s
	}
	if s := strings.TrimSpace(src.Telemetry.CrashURL); s != "" {
		dst.Telemetry.CrashURL = s
	}
	if src.Telemetry.TimeoutMs > 0 {
		dst.Telemetry.TimeoutMs = src.Telemetry.TimeoutMs
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	env := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	if v := env(EnvCanvasWidth); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Canvas.Width = n
		}
	}
	if v := env(EnvCanvasHeight); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Canvas.Height = n
		}
	}
	if v := env(EnvCanvasBackground); v != "" {
		cfg.Canvas.Background = v
	}
	if v := env(EnvBrushWidth); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Brush.Width = float32(f)
		}
	}
	if v := env(EnvBrushColor); v != "" {
		cfg.Brush.Color = v
	}
	if v := env(EnvExportFormat); v != "" {
		cfg.Export.Format = strings.ToLower(v)
	}
	if v := env(EnvExportQuality); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.JPEGQuality = n
		}
	}
	if v := env(EnvExportDir); v != "" {
		cfg.Export.OutputDir = v
	}
	if v := env(EnvTelemetryOptIn); v != "" {
		cfg.Telemetry.OptIn = parseBool(v)
	}
	if v := env(EnvTelemetryURL); v != "" {
		cfg.Telemetry.EventsURL = v
	}
	if v := env(EnvCrashUploadURL); v != "" {
		cfg.Telemetry.CrashURL = v
	}
	// logging overrides
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}

// EnvKeys lists the dotted config keys that have an env override, sorted.
func EnvKeys() []string {
	keys := make([]string, 0, len(envKeys))
	for k := range envKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
