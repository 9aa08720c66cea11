/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sketchpad/internal/config"
	"sketchpad/internal/crash"
	"sketchpad/internal/export"
	applog "sketchpad/internal/log"
	"sketchpad/internal/raster"
	"sketchpad/internal/storage"
	"sketchpad/internal/stroke"
	"sketchpad/internal/telemetry"
	"sketchpad/internal/ui"
	"sketchpad/internal/version"
)

// errUsage marks bad invocations; they exit with code 2.
var errUsage = errors.New("usage")

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `Sketchpad %s

Usage:
  sketchpad version|-v|--version                 Show version
  sketchpad new [-width N] [-height N] [-background C] <dir>
                                                 Create an empty drawing at <dir>
  sketchpad info <dir>                           Print a summary of the drawing
  sketchpad render [-scale F] <dir> <out>        Export to <out>; format from extension (png, jpg, pdf, svg, zip)
  sketchpad batch [-out DIR] <dir> <web|print>   Export a preset into DIR (default <dir>/exports)
  sketchpad undo <dir>                           Undo the last stroke
  sketchpad redo <dir>                           Redo the last undone stroke
  sketchpad clear <dir>                          Remove every stroke (background is kept)
  sketchpad background <dir> <image>             Import a background image
  sketchpad snapshots <dir>                      List snapshots taken before undo/redo/clear
  sketchpad restore <dir> <id>                   Restore a snapshot
  sketchpad thumb [-size N] <dir> <out.png>      Write a cached thumbnail
  sketchpad reindex <dir>                        Rebuild the snapshot index if it is damaged
  sketchpad config [show]                        Show the effective configuration
  sketchpad config validate                      Check the config file for invalid values
  sketchpad config save                          Write the effective configuration to the config file
  sketchpad config token [-clear] [<token>]      Store or remove the telemetry token in the OS keychain
  sketchpad ui [<dir>]                           Launch the drawing window (build with -tags fyne)
`, version.String())
}

type cli struct {
	cfg    config.AppConfig
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger
	// dh is the drawing being worked on, autosaved by the crash handler.
	dh *storage.DrawingHandle
}

func main() {
	cfg, token, err := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	if err != nil {
		applog.WithComponent("cli").Warn("config not loaded, using defaults", slog.Any("err", err))
	}
	if verr := cfg.Validate(); verr != nil {
		applog.WithComponent("cli").Warn("invalid config values replaced by defaults", slog.Any("err", verr))
		cfg = cfg.Sanitized()
	}
	telemetry.NewDefault(telemetry.FromConfig(cfg.Telemetry, token))
	code := run(cfg, os.Args[1:], os.Stdout, os.Stderr)
	telemetry.Flush(context.Background())
	os.Exit(code)
}

func run(cfg config.AppConfig, args []string, stdout, stderr io.Writer) int {
	c := &cli{cfg: cfg, out: stdout, errOut: stderr, log: applog.WithComponent("cli")}
	defer func() {
		if r := recover(); r != nil {
			crash.Handle(r, c.dh)
		}
	}()
	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	c.log.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)-1))

	var err error
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, "Sketchpad", version.String())
	case "help", "-h", "--help":
		usage(stdout)
	case "new":
		err = c.cmdNew(args[1:])
	case "info":
		err = c.cmdInfo(args[1:])
	case "render":
		err = c.cmdRender(args[1:])
	case "batch":
		err = c.cmdBatch(args[1:])
	case "undo", "redo", "clear":
		err = c.cmdEdit(args[0], args[1:])
	case "background":
		err = c.cmdBackground(args[1:])
	case "snapshots":
		err = c.cmdSnapshots(args[1:])
	case "restore":
		err = c.cmdRestore(args[1:])
	case "thumb":
		err = c.cmdThumb(args[1:])
	case "reindex":
		err = c.cmdReindex(args[1:])
	case "config":
		err = c.cmdConfig(args[1:])
	case "ui":
		dir := ""
		if len(args) > 1 {
			dir = args[1]
		}
		err = ui.Run(cfg, dir)
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		usage(stderr)
		return 2
	default:
		c.log.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
}

func needArgs(fs *flag.FlagSet, n int, what string) error {
	if fs.NArg() < n {
		return fmt.Errorf("%w: %s requires %s", errUsage, fs.Name(), what)
	}
	return nil
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// open loads the drawing at dir and remembers it for crash recovery.
func (c *cli) open(dir string) (*storage.DrawingHandle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	dh, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	c.dh = dh
	return dh, nil
}

func (c *cli) history(dh *storage.DrawingHandle) *stroke.History {
	h, err := dh.History()
	if err != nil {
		c.log.Warn("background image unavailable, using color", slog.String("root", dh.Root), slog.Any("err", err))
	}
	return h
}

func (c *cli) cmdNew(args []string) error {
	fs := c.flags("new")
	width := fs.Int("width", c.cfg.Canvas.Width, "canvas width")
	height := fs.Int("height", c.cfg.Canvas.Height, "canvas height")
	bg := fs.String("background", c.cfg.Canvas.Background, "background color (name or #rrggbb)")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, "<dir>"); err != nil {
		return err
	}
	if err := storage.ValidateCanvas(storage.Canvas{Width: *width, Height: *height}); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	col, err := stroke.ParseColor(*bg)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	abs, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	if _, err := storage.Open(abs); err == nil {
		return fmt.Errorf("%s already contains a drawing", abs)
	}
	dh, err := storage.Create(abs, storage.NewDocument(*width, *height, col))
	if err != nil {
		return err
	}
	c.dh = dh
	c.log.Info("drawing created", slog.String("root", abs), slog.Int("w", *width), slog.Int("h", *height))
	_, _ = fmt.Fprintln(c.out, "Created drawing at", abs)
	return nil
}

func (c *cli) cmdInfo(args []string) error {
	fs := c.flags("info")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, "<dir>"); err != nil {
		return err
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	d := dh.Doc
	_, _ = fmt.Fprintf(c.out, "Drawing:    %s\n", dh.Root)
	_, _ = fmt.Fprintf(c.out, "Canvas:     %dx%d\n", d.Canvas.Width, d.Canvas.Height)
	_, _ = fmt.Fprintf(c.out, "Background: %s", d.Background.Color)
	if d.Background.Image != "" {
		_, _ = fmt.Fprintf(c.out, " + %s", d.Background.Image)
	}
	_, _ = fmt.Fprintln(c.out)
	_, _ = fmt.Fprintf(c.out, "Strokes:    %d (undone: %d)\n", len(d.Strokes), len(d.Undone))
	_, _ = fmt.Fprintf(c.out, "Modified:   %s\n", d.Modified.Local().Format(time.RFC3339))
	if backups, err := storage.Backups(dh.Root); err == nil {
		_, _ = fmt.Fprintf(c.out, "Backups:    %d\n", len(backups))
	}
	return nil
}

func (c *cli) exportOptions(dh *storage.DrawingHandle) export.Options {
	return export.Options{
		Width:       dh.Doc.Canvas.Width,
		Height:      dh.Doc.Canvas.Height,
		JPEGQuality: c.cfg.Export.JPEGQuality,
		Title:       filepath.Base(dh.Root),
	}
}

func (c *cli) cmdRender(args []string) error {
	fs := c.flags("render")
	scale := fs.Float64("scale", 1, "raster scale factor")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 2, "<dir> and <out>"); err != nil {
		return err
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	out := fs.Arg(1)
	f, err := export.FormatFor(out)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(out) && c.cfg.Export.OutputDir != "" {
		out = filepath.Join(c.cfg.Export.OutputDir, out)
	}
	opt := c.exportOptions(dh)
	opt.Scale = float32(*scale)
	if err := export.ToFile(out, c.history(dh), opt); err != nil {
		return err
	}
	telemetry.Event(telemetry.EventExport, map[string]any{"format": string(f), "strokes": len(dh.Doc.Strokes)})
	_, _ = fmt.Fprintln(c.out, "Wrote", out)
	return nil
}

func (c *cli) cmdBatch(args []string) error {
	fs := c.flags("batch")
	outDir := fs.String("out", "", "output directory (default <dir>/exports)")
	formats := fs.String("formats", "", "comma separated formats overriding the preset")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 2, "<dir> and <preset>"); err != nil {
		return err
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	dir := *outDir
	if dir == "" {
		dir = filepath.Join(dh.Root, storage.ExportsDirName)
	}
	opt := export.BatchOptions{
		Preset:  export.PresetName(strings.ToLower(fs.Arg(1))),
		OutDir:  dir,
		Base:    filepath.Base(dh.Root),
		Options: c.exportOptions(dh),
	}
	if s := strings.TrimSpace(*formats); s != "" {
		opt.Formats = strings.Split(s, ",")
	}
	paths, err := export.Batch(c.history(dh), opt)
	for _, p := range paths {
		_, _ = fmt.Fprintln(c.out, "Wrote", p)
	}
	if err != nil {
		return err
	}
	telemetry.Event(telemetry.EventExport, map[string]any{"preset": string(opt.Preset), "files": len(paths)})
	return nil
}

// cmdEdit applies undo, redo or clear. The document is snapshotted into the
// index before it changes so the step can be reverted with restore.
func (c *cli) cmdEdit(op string, args []string) error {
	fs := c.flags(op)
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, "<dir>"); err != nil {
		return err
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	h := c.history(dh)
	var changed bool
	switch op {
	case "undo":
		changed = h.CanUndo()
	case "redo":
		changed = h.CanRedo()
	case "clear":
		changed = h.Len() > 0 || h.CanRedo()
	}
	if !changed {
		_, _ = fmt.Fprintf(c.out, "Nothing to %s.\n", op)
		return nil
	}

	ctx := applog.WithDrawing(context.Background(), dh.Root)
	if _, err := storage.Checkpoint(ctx, dh, op, 0); err != nil {
		c.log.WarnContext(ctx, "snapshot failed", slog.String("op", op), slog.Any("err", err))
	}
	switch op {
	case "undo":
		h.Undo()
	case "redo":
		h.Redo()
	case "clear":
		h.Clear()
		telemetry.Event(telemetry.EventClear, nil)
	}
	dh.Capture(h)
	if err := storage.Save(dh); err != nil {
		return err
	}
	c.log.InfoContext(ctx, "drawing edited", slog.String("op", op), slog.Int("strokes", h.Len()))
	_, _ = fmt.Fprintf(c.out, "%s done: %d strokes, %d undone.\n", op, h.Len(), len(dh.Doc.Undone))
	return nil
}

func (c *cli) cmdBackground(args []string) error {
	fs := c.flags("background")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 2, "<dir> and <image>"); err != nil {
		return err
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	bg, err := storage.ImportBackground(dh, fs.Arg(1))
	if err != nil {
		return err
	}
	if err := storage.Save(dh); err != nil {
		return err
	}
	b := bg.Image.Bounds()
	_, _ = fmt.Fprintf(c.out, "Background set to %s (%dx%d)\n", bg.Source, b.Dx(), b.Dy())
	return nil
}

func (c *cli) cmdSnapshots(args []string) error {
	fs := c.flags("snapshots")
	limit := fs.Int("n", 20, "how many snapshots to list")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, "<dir>"); err != nil {
		return err
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	snaps, err := storage.ListSnapshots(context.Background(), dh, *limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		_, _ = fmt.Fprintln(c.out, "No snapshots.")
		return nil
	}
	for _, s := range snaps {
		_, _ = fmt.Fprintf(c.out, "%4d  %s  %-8s %d strokes\n", s.ID, s.TS.Local().Format("2006-01-02 15:04:05"), s.Reason, s.Strokes)
	}
	return nil
}

func (c *cli) cmdRestore(args []string) error {
	fs := c.flags("restore")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 2, "<dir> and <id>"); err != nil {
		return err
	}
	id, err := strconv.ParseInt(fs.Arg(1), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: snapshot id must be a number", errUsage)
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	ctx := context.Background()
	snap, err := storage.GetSnapshot(ctx, dh, id)
	if err != nil {
		return err
	}
	if _, err := storage.Checkpoint(ctx, dh, "restore", 0); err != nil {
		c.log.Warn("snapshot before restore failed", slog.Any("err", err))
	}
	created := dh.Doc.Created
	dh.Doc = snap.Doc
	dh.Doc.Created = created
	if err := storage.Save(dh); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "Restored snapshot %d (%s, %d strokes).\n", snap.ID, snap.Reason, snap.Strokes)
	return nil
}

func (c *cli) cmdThumb(args []string) error {
	fs := c.flags("thumb")
	size := fs.Int("size", 256, "longest edge in pixels")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 2, "<dir> and <out.png>"); err != nil {
		return err
	}
	if *size < 1 {
		return fmt.Errorf("%w: size must be positive", errUsage)
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	cw, ch := dh.Doc.Canvas.Width, dh.Doc.Canvas.Height
	factor := float32(*size) / float32(max(cw, ch))
	tw, th := max(1, int(float32(cw)*factor+0.5)), max(1, int(float32(ch)*factor+0.5))
	hist := c.history(dh)
	data, err := storage.GetOrCreateThumbnail(context.Background(), dh.Root, storage.DocumentHash(dh.Doc), tw, th,
		func(context.Context) ([]byte, error) {
			var buf bytes.Buffer
			if err := png.Encode(&buf, raster.RenderScaled(hist, cw, ch, factor)); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		})
	if err != nil {
		return err
	}
	if err := os.WriteFile(fs.Arg(1), data, 0o644); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "Wrote %s (%dx%d)\n", fs.Arg(1), tw, th)
	return nil
}

func (c *cli) cmdReindex(args []string) error {
	fs := c.flags("reindex")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if err := needArgs(fs, 1, "<dir>"); err != nil {
		return err
	}
	dh, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	rebuilt, err := storage.DetectAndRebuildIndex(context.Background(), dh.Root)
	if err != nil {
		return err
	}
	if rebuilt {
		_, _ = fmt.Fprintln(c.out, "Index was damaged and has been rebuilt (snapshots were lost).")
	} else {
		_, _ = fmt.Fprintln(c.out, "Index is healthy.")
	}
	return nil
}

func (c *cli) cmdConfig(args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "show":
		return c.showConfig()
	case "validate":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fileCfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		if err := fileCfg.Validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		_, _ = fmt.Fprintln(c.out, "Configuration is valid:", path)
		return nil
	case "save":
		if err := config.Save(c.cfg, ""); err != nil {
			return err
		}
		path, _ := config.ConfigPath()
		_, _ = fmt.Fprintln(c.out, "Wrote", path)
		return nil
	case "token":
		fs := c.flags("config token")
		remove := fs.Bool("clear", false, "remove the stored token")
		if err := c.parse(fs, args[1:]); err != nil {
			return err
		}
		if *remove {
			if err := config.SetToken(""); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.out, "Telemetry token removed.")
			return nil
		}
		if err := needArgs(fs, 1, "<token> or -clear"); err != nil {
			return err
		}
		if err := config.SetToken(strings.TrimSpace(fs.Arg(0))); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(c.out, "Telemetry token stored.")
		return nil
	default:
		return fmt.Errorf("%w: unknown config command %q", errUsage, sub)
	}
}

func (c *cli) showConfig() error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "# file:", path)
	for _, key := range config.EnvKeys() {
		if name, ok := config.EnvOverrideFor(key); ok {
			_, _ = fmt.Fprintf(c.out, "# %s overridden by %s\n", key, name)
		}
	}
	b, err := yaml.Marshal(c.cfg)
	if err != nil {
		return err
	}
	_, err = c.out.Write(b)
	return err
}
