/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"testing"
	"time"

	"cardstudio/internal/config"
	"cardstudio/internal/export"
	"cardstudio/internal/imaging"
	applog "cardstudio/internal/log"
	"cardstudio/internal/scene"
	"cardstudio/internal/storage"
)

type flatRenderer struct{}

func (flatRenderer) Render(_ context.Context, f scene.Frame) (image.Image, error) {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: f.Background.RGBA()}, image.Point{}, draw.Src)
	return img, nil
}

func (flatRenderer) Probe() error { return nil }

type brokenRenderer struct{ flatRenderer }

func (brokenRenderer) Probe() error { return errors.New("no backend") }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func seqIDs() scene.Option {
	n := 0
	return scene.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("obj-%d", n)
	})
}

func newSession(t *testing.T, store storage.DesignStore, exp *export.Exporter) (*Session, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := Start(context.Background(), Options{
		Config:       config.Defaults(),
		Store:        store,
		Exporter:     exp,
		Now:          c.now,
		GraphOptions: []scene.Option{seqIDs()},
	})
	t.Cleanup(s.Close)
	return s, c
}

func workingExporter() *export.Exporter { return export.NewExporter(flatRenderer{}, 90, 120) }

func TestStartDefaults(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	if err := s.Diagnostic(); err != nil {
		t.Fatalf("Diagnostic = %v", err)
	}
	f := s.Frame()
	if f.Width != 600 || f.Height != 400 || f.Background != "#ffffff" || len(f.Objects) != 0 {
		t.Fatalf("unexpected initial frame: %+v", f)
	}
	if s.Template().ID != "blank" {
		t.Fatalf("template = %q", s.Template().ID)
	}
	if _, n, cur := s.HistoryStats(); n != 1 || cur != 0 {
		t.Fatalf("history entries=%d cursor=%d, want 1/0", n, cur)
	}
}

func TestAddAndUndo(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	id, err := s.AddText("", "", 0, "")
	if err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if sel, _ := s.Selection().Selected(); sel != id {
		t.Fatalf("new text not selected: %q", sel)
	}
	o, _ := s.Graph().Get(id)
	txt := o.(*scene.Text)
	if txt.Content != "Hello" || txt.X != 300 || txt.Y != 200 {
		t.Fatalf("unexpected default text: %+v", txt)
	}
	if _, err := s.AddShape(scene.Circle, ""); err != nil {
		t.Fatalf("AddShape: %v", err)
	}
	if !s.UpdateProperty("opacity", 0.5) {
		t.Fatalf("UpdateProperty failed")
	}
	if len(s.Frame().Objects) != 2 {
		t.Fatalf("want 2 objects")
	}

	if !s.Undo() {
		t.Fatalf("undo of property change failed")
	}
	if !s.Undo() || len(s.Frame().Objects) != 1 {
		t.Fatalf("undo of shape failed: %d objects", len(s.Frame().Objects))
	}
	if !s.Undo() || len(s.Frame().Objects) != 0 {
		t.Fatalf("undo of text failed")
	}
	if s.Undo() {
		t.Fatalf("undo past the initial state succeeded")
	}
	if _, ok := s.Selection().Selected(); ok {
		t.Fatalf("selection survived removal of its object")
	}
}

func TestUndoAfterNewEditDropsRedoBranch(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	_, _ = s.AddText("", "", 0, "")
	_, _ = s.AddText("", "", 0, "")
	s.Undo()
	_, _ = s.AddShape(scene.Rectangle, "")
	if _, n, cur := s.HistoryStats(); n != 3 || cur != 2 {
		t.Fatalf("entries=%d cursor=%d, want 3/2", n, cur)
	}
	s.Undo()
	objs := s.Frame().Objects
	if len(objs) != 1 || scene.KindOf(objs[0]) != "text" {
		t.Fatalf("unexpected state after undo: %d objects", len(objs))
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.NRGBA{R: 200, A: 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAddImageScalesWideBitmaps(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	ctx := context.Background()
	p, err := s.AddImage(ctx, bytes.NewReader(pngBytes(t, 800, 100)))
	if err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	if _, err := p.Wait(ctx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, err := s.InsertPending(p)
	if err != nil {
		t.Fatalf("InsertPending: %v", err)
	}
	o, _ := s.Graph().Get(id)
	im := o.(*scene.Image)
	if im.Scale != 0.375 || im.X != 300 || im.Y != 200 {
		t.Fatalf("scale=%v at (%v,%v)", im.Scale, im.X, im.Y)
	}

	small, _ := s.AddImage(ctx, bytes.NewReader(pngBytes(t, 50, 40)))
	_, _ = small.Wait(ctx)
	id, _ = s.InsertPending(small)
	o, _ = s.Graph().Get(id)
	if o.(*scene.Image).Scale != 1 {
		t.Fatalf("small image was rescaled")
	}
}

func TestAddImageRejectsGarbage(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	var got []Notice
	s.OnNotice(func(n Notice) { got = append(got, n) })
	ctx := context.Background()
	p, _ := s.AddImage(ctx, bytes.NewReader([]byte("not an image")))
	_, _ = p.Wait(ctx)
	_, err := s.InsertPending(p)
	var de *imaging.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("InsertPending err = %v, want *imaging.DecodeError", err)
	}
	if len(got) != 1 || got[0].Severity != Warning || got[0].Op != "add_image" || !errors.As(got[0].Err, &de) {
		t.Fatalf("notices = %+v", got)
	}
	if len(s.Frame().Objects) != 0 {
		t.Fatalf("graph changed")
	}
}

func TestReadOnlyWithoutRenderer(t *testing.T) {
	for name, exp := range map[string]*export.Exporter{
		"missing": nil,
		"broken":  export.NewExporter(brokenRenderer{}, 0, 0),
	} {
		t.Run(name, func(t *testing.T) {
			s, _ := newSession(t, nil, exp)
			var dep *export.DependencyUnavailableError
			if !errors.As(s.Diagnostic(), &dep) {
				t.Fatalf("Diagnostic = %v", s.Diagnostic())
			}
			if _, err := s.AddText("", "", 0, ""); !errors.Is(err, ErrDisabled) {
				t.Fatalf("AddText err = %v", err)
			}
			if s.Undo() || s.UpdateProperty("opacity", 1.0) {
				t.Fatalf("mutation allowed in read-only mode")
			}
			ns := s.Notices()
			if len(ns) == 0 || ns[0].Severity != Failure {
				t.Fatalf("start-up failure not reported: %+v", ns)
			}
			if len(s.Frame().Objects) != 0 {
				t.Fatalf("read-only graph changed")
			}
		})
	}
}

func TestClosedSessionIgnoresCalls(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	s.Close()
	if s.Alive() {
		t.Fatalf("Alive after Close")
	}
	id, err := s.AddText("", "", 0, "")
	if id != "" || err != nil {
		t.Fatalf("AddText after close = %q, %v", id, err)
	}
	if s.HandleKey(Key{Name: "z", Ctrl: true}) {
		t.Fatalf("key handled after close")
	}
	var buf bytes.Buffer
	if err := s.Export(context.Background(), export.PNG, &buf); err != nil || buf.Len() != 0 {
		t.Fatalf("Export after close wrote %d bytes, err %v", buf.Len(), err)
	}
	s.Close()
}

func TestSelectTemplateAndClear(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	_, _ = s.AddText("", "", 0, "")
	if err := s.SelectTemplate("birthday"); err != nil {
		t.Fatalf("SelectTemplate: %v", err)
	}
	f := s.Frame()
	if f.Background != "#ffebee" || len(f.Objects) != 1 {
		t.Fatalf("frame after template: bg=%s objects=%d", f.Background, len(f.Objects))
	}
	if err := s.SetBackground("#000"); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	s.Clear()
	f = s.Frame()
	if f.Background != "#ffebee" || len(f.Objects) != 0 {
		t.Fatalf("Clear: bg=%s objects=%d", f.Background, len(f.Objects))
	}
	if err := s.SelectTemplate("nope"); err == nil {
		t.Fatalf("unknown template accepted")
	}
	if err := s.SetBackground("purple-ish"); err == nil {
		t.Fatalf("bad colour accepted")
	}
	s.Undo()
	if s.Frame().Background != "#000000" {
		t.Fatalf("undo of clear: bg=%s", s.Frame().Background)
	}
}

func TestResizeIsDebounced(t *testing.T) {
	s, c := newSession(t, nil, workingExporter())
	_, _ = s.AddText("", "", 0, "")
	s.RequestResize(800, 600)
	c.advance(50 * time.Millisecond)
	s.RequestResize(900, 700)
	if s.ApplyPendingResize(c.t.Add(100 * time.Millisecond)) {
		t.Fatalf("resize applied inside the debounce window")
	}
	if !s.ApplyPendingResize(c.t.Add(150 * time.Millisecond)) {
		t.Fatalf("resize not applied after the window")
	}
	if f := s.Frame(); f.Width != 900 || f.Height != 700 {
		t.Fatalf("canvas = %dx%d", f.Width, f.Height)
	}
	if s.ApplyPendingResize(c.t.Add(time.Second)) {
		t.Fatalf("resize applied twice")
	}
	s.Undo()
	if f := s.Frame(); f.Width != 900 || len(f.Objects) != 0 {
		t.Fatalf("undo changed canvas size or kept text: %dx%d, %d objects", f.Width, f.Height, len(f.Objects))
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := storage.NewMemoryStore()
	s, _ := newSession(t, store, workingExporter())
	ctx := context.Background()

	if ok, err := s.Load(ctx); ok || err != nil {
		t.Fatalf("Load with nothing saved = %v, %v", ok, err)
	}
	_, _ = s.AddText("", "", 0, "")
	d, err := s.Save(ctx, "Party")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.Name != "Party" || d.Thumbnail == "" {
		t.Fatalf("design = %+v", d)
	}
	_, _ = s.AddShape(scene.Triangle, "")
	ok, err := s.Load(ctx)
	if !ok || err != nil {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if n := len(s.Frame().Objects); n != 1 {
		t.Fatalf("loaded %d objects, want 1", n)
	}
	s.Undo()
	if n := len(s.Frame().Objects); n != 2 {
		t.Fatalf("undo of load left %d objects", n)
	}

	// A new session picks the saved design up.
	s2, _ := newSession(t, store, workingExporter())
	if n := len(s2.Frame().Objects); n != 1 {
		t.Fatalf("restarted session has %d objects", n)
	}
}

func TestStartRecoversFromCorruptDesign(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Put(context.Background(), "cardDesign", []byte("{broken")); err != nil {
		t.Fatal(err)
	}
	s, _ := newSession(t, store, workingExporter())
	if len(s.Frame().Objects) != 0 || s.Diagnostic() != nil {
		t.Fatalf("corrupt design not replaced by a blank card")
	}
	ns := s.Notices()
	if len(ns) == 0 || ns[0].Severity != Warning || ns[0].Op != "start" {
		t.Fatalf("notices = %+v", ns)
	}
}

func TestStartPrefersNewerAutosave(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	s, c := newSession(t, store, workingExporter())
	_, _ = s.AddText("", "", 0, "")
	if _, err := s.Save(ctx, ""); err != nil {
		t.Fatal(err)
	}
	c.advance(time.Minute)
	_, _ = s.AddText("", "", 0, "")
	if err := s.Autosave(ctx); err != nil {
		t.Fatal(err)
	}

	s2, _ := newSession(t, store, workingExporter())
	if n := len(s2.Frame().Objects); n != 2 {
		t.Fatalf("autosave not recovered: %d objects", n)
	}
	if err := s2.ResetStorage(ctx); err != nil {
		t.Fatalf("ResetStorage: %v", err)
	}
	s3, _ := newSession(t, store, workingExporter())
	if n := len(s3.Frame().Objects); n != 0 {
		t.Fatalf("reset left %d objects", n)
	}
}

func TestHandleKey(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	if s.HandleKey(Key{Name: "Delete"}) {
		t.Fatalf("Delete without selection fired")
	}
	_, _ = s.AddText("", "", 0, "")
	if s.HandleKey(Key{Name: "Backspace", TextEditing: true}) {
		t.Fatalf("Backspace while editing text deleted the object")
	}
	if !s.HandleKey(Key{Name: "Backspace"}) || len(s.Frame().Objects) != 0 {
		t.Fatalf("Backspace did not delete")
	}
	if !s.HandleKey(Key{Name: "z", Meta: true}) || len(s.Frame().Objects) != 1 {
		t.Fatalf("Cmd+Z did not restore the text")
	}
	s.Selection().Select(s.Frame().Objects[0].Base().ID)
	if !s.HandleKey(Key{Name: "d", Ctrl: true}) || len(s.Frame().Objects) != 2 {
		t.Fatalf("Ctrl+D did not duplicate")
	}
	if !s.HandleKey(Key{Name: "[", Ctrl: true}) {
		t.Fatalf("Ctrl+[ did not move the copy backward")
	}
	if s.HandleKey(Key{Name: "q"}) {
		t.Fatalf("unbound key fired")
	}
}

func TestExport(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	_, _ = s.AddShape(scene.Rectangle, "")
	var buf bytes.Buffer
	if err := s.Export(context.Background(), export.PNG, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 400 {
		t.Fatalf("export size %v", b)
	}

	ro, _ := newSession(t, nil, nil)
	var exportErr *export.ExportError
	if err := ro.Export(context.Background(), export.PNG, &bytes.Buffer{}); !errors.As(err, &exportErr) {
		t.Fatalf("export without renderer err = %v", err)
	}
}

func TestUndoInvertsEachOperation(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(s *Session){
		"add text":       func(s *Session) { _, _ = s.AddText("Hi", scene.Tahoma, 30, "#ff0000") },
		"add shape":      func(s *Session) { _, _ = s.AddShape(scene.Triangle, "#00ff00") },
		"property":       func(s *Session) { s.UpdateProperty("fill", "#123456") },
		"delete":         func(s *Session) { s.DeleteSelected() },
		"reorder":        func(s *Session) { s.Reorder(scene.Backward) },
		"duplicate":      func(s *Session) { _, _ = s.Duplicate() },
		"clear":          func(s *Session) { s.Clear() },
		"template":       func(s *Session) { _ = s.SelectTemplate("business") },
		"background":     func(s *Session) { _ = s.SetBackground("#abcdef") },
		"load saved":     func(s *Session) { _, _ = s.Load(ctx) },
		"delete via key": func(s *Session) { s.HandleKey(Key{Name: "Delete"}) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			s, _ := newSession(t, nil, workingExporter())
			_, _ = s.AddText("", "", 0, "")
			if _, err := s.Save(ctx, "base"); err != nil {
				t.Fatal(err)
			}
			_, _ = s.AddShape(scene.Rectangle, "")
			before, err := s.Graph().Serialize()
			if err != nil {
				t.Fatal(err)
			}
			op(s)
			if !s.Undo() {
				t.Fatalf("nothing to undo")
			}
			after, _ := s.Graph().Serialize()
			if !bytes.Equal(before, after) {
				t.Fatalf("undo is not an inverse:\nbefore %s\nafter  %s", before, after)
			}
		})
	}
}

func TestThreeAddsTwoUndos(t *testing.T) {
	s, _ := newSession(t, nil, workingExporter())
	id, _ := s.AddText("Hello", scene.Arial, 24, "#000000")
	_, _ = s.AddShape(scene.Rectangle, "")
	_, _ = s.AddShape(scene.Circle, "")
	s.Undo()
	s.Undo()
	objs := s.Frame().Objects
	if len(objs) != 1 || objs[0].Base().ID != id {
		t.Fatalf("want only the first text, got %d objects", len(objs))
	}
}

func TestLogRecordsCarrySessionID(t *testing.T) {
	var buf bytes.Buffer
	applog.Init(applog.Options{Level: "debug", Format: "json", Console: &buf})
	t.Cleanup(func() { applog.Init(applog.FromEnv()) })

	s, _ := newSession(t, nil, nil)
	_, _ = s.AddText("", "", 0, "")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected start-up and read-only records, got %q", buf.String())
	}
	want := `"session":"` + s.ID() + `"`
	for _, l := range lines {
		if !strings.Contains(l, want) {
			t.Fatalf("record without session id: %s", l)
		}
	}
}
