/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardstudio/internal/scene"
)

func TestBuiltins(t *testing.T) {
	c := NewCatalog()
	want := map[string]scene.Color{
		"blank":      "#ffffff",
		"birthday":   "#ffebee",
		"business":   "#e3f2fd",
		"invitation": "#f3e5f5",
	}
	for id, bg := range want {
		tpl, ok := c.Lookup(id)
		if !ok {
			t.Fatalf("template %s missing", id)
		}
		if tpl.Background != bg {
			t.Fatalf("%s background = %s, want %s", id, tpl.Background, bg)
		}
		g, err := tpl.Build(600, 400)
		if err != nil {
			t.Fatalf("Build(%s): %v", id, err)
		}
		if g.Len() != 0 || g.Background() != bg || g.Width() != 600 {
			t.Fatalf("%s graph: len=%d bg=%s w=%d", id, g.Len(), g.Background(), g.Width())
		}
	}
	if _, ok := c.Lookup("nope"); ok {
		t.Fatalf("unknown id found")
	}
	if got := c.All()[2].Name.In("ar"); got != "بطاقة عمل" {
		t.Fatalf("arabic name = %q", got)
	}
	if got := c.All()[1].Name.In("fr"); got != "Birthday" {
		t.Fatalf("fallback name = %q", got)
	}
}

const catalogYAML = `
templates:
  - id: thanks
    name: {en: "Thank you", ar: "شكرا"}
    background: "#FFF8E1"
    scene: |
      {"formatVersion":1,"width":600,"height":400,"background":"#fff8e1","objects":[
        {"type":"text","id":"t1","left":300,"top":60,"angle":0,"opacity":1,"zIndex":0,"hasControls":true,"text":"Thank you","fontFamily":"Georgia","fontSize":48,"fill":"#5d4037"}
      ]}
`

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "templates.yaml")
	if err := os.WriteFile(p, []byte(catalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCatalog()
	if err := c.LoadFile(p); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	tpl, ok := c.Lookup("thanks")
	if !ok {
		t.Fatalf("loaded template missing")
	}
	if tpl.Background != "#fff8e1" {
		t.Fatalf("background not normalized: %s", tpl.Background)
	}
	g1, err := tpl.Build(800, 500)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	g2, _ := tpl.Build(800, 500)
	if g1.Len() != 1 || g1.Width() != 800 {
		t.Fatalf("graph len=%d w=%d", g1.Len(), g1.Width())
	}
	if g1.IDs()[0] == "t1" || g1.IDs()[0] == g2.IDs()[0] {
		t.Fatalf("template objects must get fresh ids")
	}
	if len(c.All()) != 5 {
		t.Fatalf("catalog size = %d", len(c.All()))
	}
}

func TestLoadCatalogRejectsBuiltinOverride(t *testing.T) {
	c := NewCatalog()
	err := c.Load(strings.NewReader("templates:\n  - id: blank\n    background: \"#000000\"\n"))
	if err == nil {
		t.Fatalf("expected error overriding built-in")
	}
	tpl, _ := c.Lookup("blank")
	if tpl.Background != "#ffffff" {
		t.Fatalf("built-in changed: %s", tpl.Background)
	}
}

func TestLoadCatalogInvalidEntries(t *testing.T) {
	for _, in := range []string{
		"templates:\n  - background: \"#fff\"\n",
		"templates:\n  - id: x\n    background: nope\n",
		"templates:\n  - id: x\n    background: \"#fff\"\n    scene: \"{broken\"\n",
		"templates: [",
	} {
		c := NewCatalog()
		if err := c.Load(strings.NewReader(in)); err == nil {
			t.Fatalf("Load(%q) expected error", in)
		}
		if len(c.All()) != 4 {
			t.Fatalf("partial catalog applied for %q", in)
		}
	}
	if err := NewCatalog().LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("missing file: %v", err)
	}
}
