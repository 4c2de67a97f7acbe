/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package selection

import (
	"image"
	"testing"

	"cardstudio/internal/history"
	"cardstudio/internal/scene"
)

type fixture struct {
	g    *scene.Graph
	h    *history.Manager
	c    *Controller
	seen []Change
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{g: scene.New(600, 400, scene.White), h: history.NewManager(history.Config{})}
	if err := f.h.Record(f.g); err != nil {
		t.Fatal(err)
	}
	f.c = New(f.g, f.h)
	f.c.Subscribe(func(ch Change) { f.seen = append(f.seen, ch) })
	return f
}

func (f *fixture) add(t *testing.T, o scene.Object) string {
	t.Helper()
	id, err := f.g.Add(o)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return id
}

func TestSelectPublishesProps(t *testing.T) {
	f := newFixture(t)
	id := f.add(t, scene.NewText("Hello", 300, 200))
	if !f.c.Select(id) {
		t.Fatalf("Select returned false")
	}
	last := f.seen[len(f.seen)-1]
	if last.ID != id || last.Kind != "text" {
		t.Fatalf("change = %+v", last)
	}
	if last.Props["text"] != "Hello" || last.Props["fontSize"] != 24 || last.Props["fill"] != "#000000" || last.Props["fontFamily"] != "Arial" {
		t.Fatalf("props = %v", last.Props)
	}
	if f.c.Select("missing") {
		t.Fatalf("selecting unknown id succeeded")
	}
	f.c.Clear()
	if _, ok := f.c.Selected(); ok || f.seen[len(f.seen)-1].ID != "" {
		t.Fatalf("Clear did not publish an empty selection")
	}
}

func TestApplyPropertyRecordsOnce(t *testing.T) {
	f := newFixture(t)
	id := f.add(t, scene.NewText("Hello", 300, 200))
	f.c.Select(id)
	before := f.h.Len()

	if !f.c.ApplyProperty("fontSize", 48) {
		t.Fatalf("fontSize rejected")
	}
	if f.h.Len() != before+1 {
		t.Fatalf("history len = %d, want %d", f.h.Len(), before+1)
	}
	o, _ := f.g.Get(id)
	if o.(*scene.Text).Size != 48 {
		t.Fatalf("size = %d", o.(*scene.Text).Size)
	}
	if !f.c.ApplyProperty("fill", "#F00") {
		t.Fatalf("fill rejected")
	}
	o, _ = f.g.Get(id)
	if o.(*scene.Text).Fill != "#ff0000" {
		t.Fatalf("fill = %s", o.(*scene.Text).Fill)
	}
}

func TestApplyPropertyRejections(t *testing.T) {
	f := newFixture(t)
	txt := f.add(t, scene.NewText("Hello", 300, 200))
	img := f.add(t, scene.NewImage(bitmap(), 10, 10))
	circ := f.add(t, scene.NewShape(scene.Circle, 50, 50))

	cases := []struct {
		id    string
		name  string
		value any
	}{
		{txt, "fontSize", 300},
		{txt, "fontSize", 7},
		{txt, "fontSize", 12.5},
		{txt, "fontFamily", "Wingdings"},
		{txt, "fill", "purple"},
		{txt, "radius", 10},
		{img, "fill", "#000000"},
		{img, "scale", 0},
		{circ, "width", 20},
		{circ, "radius", -1},
		{circ, "opacity", 1.5},
		{circ, "left", "abc"},
	}
	for _, tc := range cases {
		f.c.Select(tc.id)
		before, _ := f.g.Serialize()
		hist := f.h.Len()
		if f.c.ApplyProperty(tc.name, tc.value) {
			t.Fatalf("ApplyProperty(%s=%v) on %s accepted", tc.name, tc.value, tc.id)
		}
		after, _ := f.g.Serialize()
		if string(before) != string(after) || f.h.Len() != hist {
			t.Fatalf("rejected %s changed state", tc.name)
		}
	}
	f.c.Clear()
	if f.c.ApplyProperty("opacity", 0.5) {
		t.Fatalf("apply without selection succeeded")
	}
}

func TestApplyPropertyClearsText(t *testing.T) {
	f := newFixture(t)
	id := f.add(t, scene.NewText("Hello", 300, 200))
	f.c.Select(id)
	hist := f.h.Len()
	if !f.c.ApplyProperty("text", "") {
		t.Fatalf("clearing text was refused")
	}
	o, _ := f.g.Get(id)
	if got := o.(*scene.Text).Content; got != "" {
		t.Fatalf("content = %q, want empty", got)
	}
	if f.h.Len() != hist+1 {
		t.Fatalf("history len = %d, want %d", f.h.Len(), hist+1)
	}
	if !f.c.ApplyProperty("text", "Bye") {
		t.Fatalf("retyping after clear was refused")
	}
}

func TestCommonProperties(t *testing.T) {
	f := newFixture(t)
	id := f.add(t, scene.NewImage(bitmap(), 10, 10))
	f.c.Select(id)
	for name, v := range map[string]any{"opacity": 0.25, "angle": 45, "left": "120", "top": 80.5, "scale": 0.5} {
		if !f.c.ApplyProperty(name, v) {
			t.Fatalf("%s rejected", name)
		}
	}
	o, _ := f.g.Get(id)
	im := o.(*scene.Image)
	if im.Opacity != 0.25 || im.Angle != 45 || im.X != 120 || im.Y != 80.5 || im.Scale != 0.5 {
		t.Fatalf("image = %+v", im)
	}
	if p := f.seen[len(f.seen)-1].Props; len(p) != 1 || p["opacity"] != 0.25 {
		t.Fatalf("image props = %v", p)
	}
}

func TestDeleteSelectedClearsAndRecordsOnce(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, scene.NewShape(scene.Rectangle, 0, 0))
	b := f.add(t, scene.NewShape(scene.Triangle, 0, 0))
	keep := f.add(t, scene.NewText("stay", 0, 0))
	if n := f.c.SelectMany(a, "ghost", b, a); n != 2 {
		t.Fatalf("SelectMany = %d", n)
	}
	hist := f.h.Len()
	if n := f.c.DeleteSelected(); n != 2 {
		t.Fatalf("DeleteSelected = %d", n)
	}
	if f.h.Len() != hist+1 {
		t.Fatalf("history grew by %d", f.h.Len()-hist)
	}
	if _, ok := f.c.Selected(); ok {
		t.Fatalf("selection not cleared")
	}
	if ids := f.g.IDs(); len(ids) != 1 || ids[0] != keep {
		t.Fatalf("remaining = %v", ids)
	}
	if f.c.DeleteSelected() != 0 || f.h.Len() != hist+1 {
		t.Fatalf("delete with empty selection must be a no-op")
	}
}

func TestDuplicateSelectedSelectsCopy(t *testing.T) {
	f := newFixture(t)
	id := f.add(t, scene.NewShape(scene.Rectangle, 100, 100))
	f.c.Select(id)
	dup, err := f.c.DuplicateSelected()
	if err != nil {
		t.Fatalf("DuplicateSelected: %v", err)
	}
	if cur, _ := f.c.Selected(); cur != dup {
		t.Fatalf("selected %s, want copy %s", cur, dup)
	}
	o, _ := f.g.Get(dup)
	if o.Base().X != 120 || o.Base().Y != 120 {
		t.Fatalf("copy at (%v,%v)", o.Base().X, o.Base().Y)
	}
}

func TestSelectAtAndRefresh(t *testing.T) {
	f := newFixture(t)
	id := f.add(t, scene.NewShape(scene.Circle, 300, 200))
	if !f.c.SelectAt(310, 190) {
		t.Fatalf("SelectAt missed the circle")
	}
	if f.c.SelectAt(10, 10) {
		t.Fatalf("SelectAt on empty canvas returned true")
	}
	f.c.Select(id)
	f.g.Remove(id)
	f.c.Refresh()
	if _, ok := f.c.Selected(); ok {
		t.Fatalf("stale selection kept after Refresh")
	}
}

func TestSubscribeCancel(t *testing.T) {
	f := newFixture(t)
	n := 0
	cancel := f.c.Subscribe(func(Change) { n++ })
	f.c.Clear()
	cancel()
	f.c.Clear()
	if n != 1 {
		t.Fatalf("callback ran %d times, want 1", n)
	}
}

func bitmap() *image.NRGBA { return image.NewNRGBA(image.Rect(0, 0, 4, 4)) }
