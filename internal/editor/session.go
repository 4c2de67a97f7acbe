/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor is the editing session: the only component that mutates the
// scene. Every completed mutation records exactly one history snapshot, and
// every failure is reported both as a returned error and as a Notice.
package editor

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"cardstudio/internal/config"
	"cardstudio/internal/export"
	"cardstudio/internal/history"
	"cardstudio/internal/imaging"
	applog "cardstudio/internal/log"
	"cardstudio/internal/scene"
	"cardstudio/internal/selection"
	"cardstudio/internal/storage"
	"cardstudio/internal/templates"
)

// Options wires a session to its collaborators.
type Options struct {
	Config config.AppConfig
	// Store holds saved designs; nil uses an in-memory store.
	Store storage.DesignStore
	// Exporter renders output; nil leaves the session read-only.
	Exporter *export.Exporter
	// Catalog lists templates; nil uses the built-ins.
	Catalog      *templates.Catalog
	Now          func() time.Time
	GraphOptions []scene.Option
}

// Session owns the live scene, its history and selection. It is not safe for
// concurrent use; drive it from one goroutine.
type Session struct {
	id       string
	cfg      config.AppConfig
	g        *scene.Graph
	hist     *history.Manager
	sel      *selection.Controller
	store    *storage.Adapter
	exp      *export.Exporter
	catalog  *templates.Catalog
	template templates.Template
	graphOpt []scene.Option

	diag     error
	closed   bool
	resize   *resizeRequest
	debounce time.Duration

	noticeSubs map[int]func(Notice)
	recent     []Notice
	nextSub    int
	now        func() time.Time
	log        *slog.Logger
	// logCtx carries the session id to the log handlers.
	logCtx context.Context
}

type resizeRequest struct {
	w, h int
	at   time.Time
}

// Start opens a session: it probes the renderer, restores the saved design
// (or starts from the default template) and records the initial state.
func Start(ctx context.Context, opts Options) *Session {
	cfg := opts.Config
	if cfg.Editor.CanvasWidth <= 0 || cfg.Editor.CanvasHeight <= 0 {
		cfg.Editor.CanvasWidth, cfg.Editor.CanvasHeight = scene.DefaultWidth, scene.DefaultHeight
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Catalog == nil {
		opts.Catalog = templates.NewCatalog()
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	id := ulid.MustNew(ulid.Timestamp(opts.Now()), rand.Reader).String()
	s := &Session{
		id:         id,
		cfg:        cfg,
		exp:        opts.Exporter,
		catalog:    opts.Catalog,
		graphOpt:   opts.GraphOptions,
		debounce:   time.Duration(cfg.Editor.ResizeDebounceMs) * time.Millisecond,
		noticeSubs: map[int]func(Notice){},
		now:        opts.Now,
		log:        applog.WithComponent("editor"),
		logCtx:     applog.ContextWithSession(context.WithoutCancel(ctx), id),
		hist: history.NewManager(history.Config{
			MaxEntries: cfg.History.MaxEntries,
			MaxBytes:   cfg.History.MaxBytes,
			Now:        opts.Now,
		}),
	}
	s.store = storage.NewAdapter(opts.Store, storage.Options{
		Key:            cfg.Storage.SlotKey,
		QuotaBytes:     cfg.Storage.QuotaBytes,
		ThumbnailWidth: cfg.Export.ThumbnailWidth,
		Thumbnailer:    s.thumbnail,
		CanvasWidth:    cfg.Editor.CanvasWidth,
		CanvasHeight:   cfg.Editor.CanvasHeight,
		Now:            opts.Now,
	})

	l := applog.WithOperation(s.log, "start")
	if err := s.exp.Probe(); err != nil {
		s.diag = err
		_ = s.fail("start", Failure, "rendering backend unavailable; editing disabled", err)
	}

	tpl, ok := s.catalog.Lookup(cfg.Editor.DefaultTemplate)
	if !ok {
		tpl, _ = s.catalog.Lookup(templates.DefaultID)
	}
	s.template = tpl
	s.g = s.initialGraph(ctx)
	s.sel = selection.New(s.g, s.hist)
	if err := s.hist.Record(s.g); err != nil {
		l.ErrorContext(s.logCtx, "initial snapshot failed", slog.Any("err", err))
	}
	l.InfoContext(s.logCtx, "session started",
		slog.Int("objects", s.g.Len()),
		slog.String("template", s.template.ID),
		slog.Bool("read_only", s.diag != nil))
	return s
}

// initialGraph picks the newest of autosave and saved design, falling back to
// a backup and finally to the active template.
func (s *Session) initialGraph(ctx context.Context) *scene.Graph {
	w, h := s.cfg.Editor.CanvasWidth, s.cfg.Editor.CanvasHeight
	ctx = s.tag(ctx)
	g, d, err := s.store.Load(ctx, s.graphOpt...)
	if err != nil {
		var cde *storage.CorruptDesignError
		if errors.As(err, &cde) {
			_ = s.fail("start", Warning, "saved design is unreadable; starting blank", err)
			if rg, _, rerr := s.store.Restore(ctx, s.graphOpt...); rerr == nil {
				s.publish(Notice{Severity: Info, Op: "start", Message: "restored the previous version of your design"})
				g = rg
			}
		} else {
			_ = s.fail("start", Warning, "could not read saved design", err)
		}
	}
	if ag, ad, aerr := s.store.LoadAutosave(ctx, s.graphOpt...); aerr == nil && ag != nil {
		if d == nil || ad.CreatedAt.After(d.CreatedAt) {
			s.publish(Notice{Severity: Info, Op: "start", Message: "recovered unsaved changes"})
			g = ag
		}
	}
	if g != nil {
		_ = g.ResizeCanvas(w, h)
		return g
	}
	g, err = s.template.Build(w, h, s.graphOpt...)
	if err != nil {
		_ = s.fail("start", Warning, "template unusable; starting blank", err)
		g = scene.New(w, h, scene.White, s.graphOpt...)
	}
	return g
}

func (s *Session) thumbnail(ctx context.Context, g *scene.Graph) (image.Image, error) {
	if s.diag != nil {
		return nil, s.diag
	}
	return s.exp.Thumbnail(ctx, g, s.cfg.Export.ThumbnailWidth)
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Alive reports whether the session still accepts calls.
func (s *Session) Alive() bool { return !s.closed }

// Diagnostic returns the start-up failure that made the session read-only.
func (s *Session) Diagnostic() error { return s.diag }

// Close tears the session down. Later calls are silent no-ops.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.resize = nil
	clear(s.noticeSubs)
	s.log.InfoContext(s.logCtx, "session closed")
}

// Frame returns the current paint list.
func (s *Session) Frame() scene.Frame { return s.g.Frame() }

// Graph returns a copy of the live scene.
func (s *Session) Graph() *scene.Graph { return s.g.Clone() }

// Template returns the active template.
func (s *Session) Template() templates.Template { return s.template }

// Selection exposes the selection controller for reads and subscriptions.
func (s *Session) Selection() *selection.Controller { return s.sel }

// HistoryStats returns byte usage, entry count and cursor of the undo history.
func (s *Session) HistoryStats() (bytes, entries, cursor int) { return s.hist.Stats() }

// editable reports whether a mutating call may proceed. A closed session
// ignores the call without error.
func (s *Session) editable(op string) (bool, error) {
	if s.closed {
		return false, nil
	}
	if s.diag != nil {
		return false, s.fail(op, Warning, "editing is disabled", ErrDisabled)
	}
	return true, nil
}

func (s *Session) record(op string) {
	if err := s.hist.Record(s.g); err != nil {
		_ = s.fail(op, Failure, "could not record history", err)
	}
}

// tag marks ctx with the session id for log records written further down.
func (s *Session) tag(ctx context.Context) context.Context {
	return applog.ContextWithSession(ctx, s.id)
}

func (s *Session) center() (float64, float64) {
	return float64(s.g.Width()) / 2, float64(s.g.Height()) / 2
}

func (s *Session) insert(op string, o scene.Object) (string, error) {
	id, err := s.g.Add(o)
	if err != nil {
		return "", s.fail(op, Warning, "object rejected", err)
	}
	s.record(op)
	s.sel.Select(id)
	applog.WithOperation(s.log, op).DebugContext(s.logCtx, "object added", slog.String("id", id))
	return id, nil
}

// AddText inserts a text object at the canvas center. Zero arguments take
// the defaults: "Hello", Arial, 24 and black.
func (s *Session) AddText(content string, font scene.FontFamily, size int, fill scene.Color) (string, error) {
	if ok, err := s.editable("add_text"); !ok {
		return "", err
	}
	if content == "" {
		content = "Hello"
	}
	x, y := s.center()
	t := scene.NewText(content, x, y)
	if font != "" {
		t.Font = font
	}
	if size != 0 {
		t.Size = size
	}
	if fill != "" {
		t.Fill = fill
	}
	return s.insert("add_text", t)
}

// AddShape inserts a default-sized shape of kind at the canvas center. An
// empty fill keeps the default colour.
func (s *Session) AddShape(kind scene.ShapeKind, fill scene.Color) (string, error) {
	if ok, err := s.editable("add_shape"); !ok {
		return "", err
	}
	x, y := s.center()
	sh := scene.NewShape(kind, x, y)
	if fill != "" {
		sh.Fill = fill
	}
	return s.insert("add_shape", sh)
}

// AddImage starts decoding r in the background. Pass the result to
// InsertPending once it is done.
func (s *Session) AddImage(ctx context.Context, r io.Reader) (*imaging.Pending, error) {
	if ok, err := s.editable("add_image"); !ok {
		return nil, err
	}
	return imaging.Decode(ctx, r), nil
}

// InsertPending places a decoded image at the canvas center, scaled down to
// half the canvas width when wider. A failed decode returns the
// *imaging.DecodeError and inserts nothing. It is a no-op once the session is
// closed.
func (s *Session) InsertPending(p *imaging.Pending) (string, error) {
	if ok, err := s.editable("add_image"); !ok {
		return "", err
	}
	bmp, err := p.Result()
	if err != nil {
		return "", s.fail("add_image", Warning, "image could not be loaded", err)
	}
	x, y := s.center()
	im := scene.NewImage(bmp, x, y)
	if half := float64(s.g.Width()) / 2; float64(im.NaturalWidth) > half {
		im.Scale = half / float64(im.NaturalWidth)
	}
	return s.insert("add_image", im)
}

// UpdateProperty applies one property to the selected object.
func (s *Session) UpdateProperty(name string, value any) bool {
	if ok, _ := s.editable("update_property"); !ok {
		return false
	}
	return s.sel.ApplyProperty(name, value)
}

// DeleteSelected removes the selected objects.
func (s *Session) DeleteSelected() int {
	if ok, _ := s.editable("delete"); !ok {
		return 0
	}
	return s.sel.DeleteSelected()
}

// Reorder moves the selected object one step in paint order.
func (s *Session) Reorder(dir scene.Direction) bool {
	if ok, _ := s.editable("reorder"); !ok {
		return false
	}
	id, sel := s.sel.Selected()
	if !sel || !s.g.Reorder(id, dir) {
		return false
	}
	s.record("reorder")
	return true
}

// Duplicate copies the selected object and selects the copy.
func (s *Session) Duplicate() (string, error) {
	if ok, err := s.editable("duplicate"); !ok {
		return "", err
	}
	id, err := s.sel.DuplicateSelected()
	if err != nil {
		return "", s.fail("duplicate", Warning, "nothing to duplicate", err)
	}
	return id, nil
}

// Undo restores the previous snapshot. The live canvas size is kept.
func (s *Session) Undo() bool {
	if ok, _ := s.editable("undo"); !ok {
		return false
	}
	snap, ok := s.hist.Undo()
	if !ok {
		return false
	}
	restored, err := scene.Deserialize(snap.Blob, scene.WithGraphOptions(s.graphOpt...))
	if err != nil {
		_ = s.fail("undo", Failure, "history entry unreadable", err)
		return false
	}
	_ = restored.ResizeCanvas(s.g.Width(), s.g.Height())
	s.g.Replace(restored)
	s.sel.Refresh()
	return true
}

// Clear removes every object and restores the template background.
func (s *Session) Clear() {
	if ok, _ := s.editable("clear"); !ok {
		return
	}
	s.g.Clear(s.template.Background)
	s.sel.Clear()
	s.record("clear")
}

// SelectTemplate activates template id. A template with a scene replaces the
// graph; one without only changes the background.
func (s *Session) SelectTemplate(id string) error {
	if ok, err := s.editable("select_template"); !ok {
		return err
	}
	tpl, ok := s.catalog.Lookup(id)
	if !ok {
		return s.fail("select_template", Warning, "unknown template", fmt.Errorf("%w: %s", templates.ErrUnknownTemplate, id))
	}
	if tpl.Scene != "" {
		g, err := tpl.Build(s.g.Width(), s.g.Height(), s.graphOpt...)
		if err != nil {
			return s.fail("select_template", Warning, "template unusable", err)
		}
		s.g.Replace(g)
		s.sel.Clear()
	} else if err := s.g.SetBackground(tpl.Background); err != nil {
		return s.fail("select_template", Warning, "template unusable", err)
	}
	s.template = tpl
	s.record("select_template")
	return nil
}

// SetBackground changes the canvas colour.
func (s *Session) SetBackground(c string) error {
	if ok, err := s.editable("set_background"); !ok {
		return err
	}
	col, err := scene.ParseColor(c)
	if err == nil {
		err = s.g.SetBackground(col)
	}
	if err != nil {
		return s.fail("set_background", Warning, "invalid colour", err)
	}
	s.record("set_background")
	return nil
}

// RequestResize queues a canvas resize. Requests arriving within the
// debounce window replace each other; only the last one is applied.
func (s *Session) RequestResize(w, h int) {
	if s.closed || w <= 0 || h <= 0 {
		return
	}
	s.resize = &resizeRequest{w: w, h: h, at: s.now()}
}

// ApplyPendingResize applies the queued resize once the debounce window has
// passed. Resizing is not an undoable edit.
func (s *Session) ApplyPendingResize(now time.Time) bool {
	if s.closed || s.resize == nil || now.Sub(s.resize.at) < s.debounce {
		return false
	}
	r := s.resize
	s.resize = nil
	if err := s.g.ResizeCanvas(r.w, r.h); err != nil {
		_ = s.fail("resize", Warning, "invalid canvas size", err)
		return false
	}
	return true
}

// Save writes the design to storage.
func (s *Session) Save(ctx context.Context, name string) (storage.CardDesign, error) {
	if s.closed {
		return storage.CardDesign{}, nil
	}
	d, err := s.store.Save(s.tag(ctx), name, s.g)
	if err != nil {
		return d, s.fail("save", Warning, "design could not be saved", err)
	}
	s.publish(Notice{Severity: Info, Op: "save", Message: "design saved"})
	return d, nil
}

// Load replaces the scene with the saved design. It reports false when
// nothing has been saved.
func (s *Session) Load(ctx context.Context) (bool, error) {
	if ok, err := s.editable("load"); !ok {
		return false, err
	}
	g, _, err := s.store.Load(s.tag(ctx), s.graphOpt...)
	if err != nil {
		return false, s.fail("load", Warning, "saved design could not be loaded", err)
	}
	if g == nil {
		s.publish(Notice{Severity: Info, Op: "load", Message: "no saved design"})
		return false, nil
	}
	_ = g.ResizeCanvas(s.g.Width(), s.g.Height())
	s.g.Replace(g)
	s.sel.Clear()
	s.record("load")
	return true, nil
}

// Autosave writes the crash-recovery copy.
func (s *Session) Autosave(ctx context.Context) error {
	if s.closed {
		return nil
	}
	return s.store.Autosave(s.tag(ctx), s.g)
}

// ResetStorage deletes the saved design and its autosave.
func (s *Session) ResetStorage(ctx context.Context) error {
	if s.closed {
		return nil
	}
	if err := s.store.Reset(s.tag(ctx)); err != nil {
		return s.fail("reset", Warning, "saved design could not be removed", err)
	}
	return nil
}

// Export renders the scene to w. Selection never appears in the output.
func (s *Session) Export(ctx context.Context, format export.Format, w io.Writer) error {
	if s.closed {
		return nil
	}
	if s.exp == nil {
		err := &export.ExportError{Format: format, Err: &export.DependencyUnavailableError{Dependency: "renderer"}}
		return s.fail("export", Failure, "export unavailable", err)
	}
	if err := s.exp.Export(ctx, s.g, format, w); err != nil {
		return s.fail("export", Failure, "export failed", err)
	}
	return nil
}
