/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"cardstudio/internal/config"
	"cardstudio/internal/crash"
	"cardstudio/internal/editor"
	"cardstudio/internal/export"
	applog "cardstudio/internal/log"
	"cardstudio/internal/scene"
	"cardstudio/internal/storage"
	"cardstudio/internal/templates"
	"cardstudio/internal/version"
)

func usage() {
	fmt.Println("Card Studio")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cardstudio version|-v|--version         Show version")
	fmt.Println("  cardstudio templates [en|ar]            List available templates")
	fmt.Println("  cardstudio demo <out.png|.jpg|.pdf>     Build a sample card, save it and export it")
	fmt.Println("  cardstudio render <out.png|.jpg|.pdf>   Export the saved design")
	fmt.Println("  cardstudio info                         Show the saved design")
	fmt.Println("  cardstudio reset                        Delete the saved design and its autosave")
}

type app struct {
	cfg     config.AppConfig
	store   storage.DesignStore
	exp     *export.Exporter
	catalog *templates.Catalog
	l       *slog.Logger
}

func main() {
	_ = godotenv.Load()
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config problem, using defaults where needed", slog.Any("err", cfgErr))
	}

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Card Studio")
		fmt.Println(version.String())
		return
	case "templates", "demo", "render", "info", "reset":
	default:
		usage()
		os.Exit(2)
	}

	a, err := newApp(cfg, l)
	if err != nil {
		l.Error("startup failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			l.Warn("closing store failed", slog.Any("err", err))
		}
	}()

	if err := a.run(args[1], args[2:]); err != nil {
		fmt.Println("Error:", err)
		_ = a.store.Close()
		os.Exit(1)
	}
}

func newApp(cfg config.AppConfig, l *slog.Logger) (*app, error) {
	fonts, err := export.NewFontLibrary()
	if err != nil {
		return nil, fmt.Errorf("fonts: %w", err)
	}
	if dir := cfg.Export.FontDir; dir != "" {
		n, err := fonts.LoadDir(dir)
		if err != nil {
			l.Warn("font directory not fully loaded", slog.String("dir", dir), slog.Any("err", err))
		}
		l.Info("custom fonts loaded", slog.Int("count", n))
	}
	catalog := templates.NewCatalog()
	if err := catalog.LoadFile(cfg.Templates.File); err != nil {
		l.Warn("template catalog ignored", slog.String("file", cfg.Templates.File), slog.Any("err", err))
	}
	store, err := storage.OpenStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{
		cfg:     cfg,
		store:   store,
		exp:     export.NewExporter(export.NewGGRenderer(fonts), cfg.Export.JPEGQuality, cfg.Export.ThumbnailWidth),
		catalog: catalog,
		l:       l,
	}, nil
}

func (a *app) start(ctx context.Context) *editor.Session {
	s := editor.Start(ctx, editor.Options{
		Config:   a.cfg,
		Store:    a.store,
		Exporter: a.exp,
		Catalog:  a.catalog,
	})
	for _, n := range s.Notices() {
		fmt.Printf("[%s] %s\n", n.Severity, n.Message)
	}
	return s
}

func (a *app) run(cmd string, args []string) error {
	ctx := context.Background()
	switch cmd {
	case "templates":
		lang := a.cfg.Editor.Language
		if len(args) > 0 {
			lang = args[0]
		}
		for _, t := range a.catalog.All() {
			fmt.Printf("%-12s %-8s %s\n", t.ID, t.Background, t.Name.In(lang))
		}
		return nil
	case "info":
		s := a.start(ctx)
		defer s.Close()
		f := s.Frame()
		fmt.Printf("Canvas: %dx%d  Background: %s  Objects: %d\n", f.Width, f.Height, f.Background, len(f.Objects))
		for _, o := range f.Objects {
			b := o.Base()
			fmt.Printf("  %-6s %s at (%.0f,%.0f) z=%d\n", scene.KindOf(o), b.ID, b.X, b.Y, b.Z)
		}
		return nil
	case "reset":
		s := a.start(ctx)
		defer s.Close()
		if err := s.ResetStorage(ctx); err != nil {
			return err
		}
		fmt.Println("Saved design removed.")
		return nil
	case "demo", "render":
		if len(args) < 1 {
			return fmt.Errorf("%s requires <out>", cmd)
		}
		return a.export(ctx, cmd == "demo", args[0])
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) export(ctx context.Context, demo bool, out string) error {
	format, err := export.ParseFormat(strings.ToLower(strings.TrimPrefix(filepath.Ext(out), ".")))
	if err != nil {
		return err
	}
	s := a.start(ctx)
	defer s.Close()
	defer crash.Recover(filepath.Dir(out), s)
	if err := s.Diagnostic(); err != nil {
		return err
	}
	if demo {
		if err := buildDemo(s); err != nil {
			return err
		}
		if _, err := s.Save(ctx, "Demo card"); err != nil {
			return err
		}
	}

	tmp := out + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.Export(ctx, format, f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		return err
	}
	a.l.Info("exported", slog.String("path", out), slog.String("format", string(format)))
	fmt.Println("Wrote", out)
	return nil
}

func buildDemo(s *editor.Session) error {
	if err := s.SelectTemplate("birthday"); err != nil {
		return err
	}
	s.Clear()
	if _, err := s.AddShape(scene.Circle, "#f48fb1"); err != nil {
		return err
	}
	s.UpdateProperty("radius", 120.0)
	if _, err := s.AddText("Happy Birthday!", scene.Georgia, 40, "#ad1457"); err != nil {
		return err
	}
	if _, err := s.AddShape(scene.Triangle, ""); err != nil {
		return err
	}
	s.UpdateProperty("left", 80.0)
	s.UpdateProperty("top", 80.0)
	s.UpdateProperty("angle", 15.0)
	return nil
}
