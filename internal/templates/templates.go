/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package templates provides the starting points for a new card: the built-in
// set plus any templates loaded from a YAML catalog.
package templates

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"cardstudio/internal/scene"
)

// DefaultID is the template used when nothing else is selected.
const DefaultID = "blank"

var ErrUnknownTemplate = errors.New("templates: unknown template")

// Name is a template's display name per UI language.
type Name struct {
	EN string `yaml:"en"`
	AR string `yaml:"ar"`
}

// In returns the name for lang ("en" or "ar"), falling back to English.
func (n Name) In(lang string) string {
	if lang == "ar" && n.AR != "" {
		return n.AR
	}
	return n.EN
}

// Template is an immutable starting design. Scene, when set, is a serialized
// scene whose objects are placed on the new card.
type Template struct {
	ID         string
	Name       Name
	Background scene.Color
	Scene      string
}

// Build creates a fresh graph for the template on a w x h canvas.
func (t Template) Build(w, h int, opts ...scene.Option) (*scene.Graph, error) {
	if t.Scene == "" {
		return scene.New(w, h, t.Background, opts...), nil
	}
	g, err := scene.Deserialize([]byte(t.Scene),
		scene.WithFreshIdentities(),
		scene.WithDefaultSize(w, h),
		scene.WithGraphOptions(opts...))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", t.ID, err)
	}
	if err := g.ResizeCanvas(w, h); err != nil {
		return nil, err
	}
	if t.Background.Valid() {
		_ = g.SetBackground(t.Background)
	}
	return g, nil
}

// Builtins returns the built-in templates in menu order.
func Builtins() []Template {
	return []Template{
		{ID: "blank", Name: Name{EN: "Blank", AR: "فارغ"}, Background: "#ffffff"},
		{ID: "birthday", Name: Name{EN: "Birthday", AR: "عيد ميلاد"}, Background: "#ffebee"},
		{ID: "business", Name: Name{EN: "Business", AR: "بطاقة عمل"}, Background: "#e3f2fd"},
		{ID: "invitation", Name: Name{EN: "Invitation", AR: "دعوة"}, Background: "#f3e5f5"},
	}
}

// Catalog is the set of selectable templates. Built-ins always come first and
// cannot be replaced.
type Catalog struct {
	order []Template
}

// NewCatalog returns a catalog holding only the built-ins.
func NewCatalog() *Catalog {
	return &Catalog{order: Builtins()}
}

// Lookup finds a template by id.
func (c *Catalog) Lookup(id string) (Template, bool) {
	i := slices.IndexFunc(c.order, func(t Template) bool { return t.ID == id })
	if i < 0 {
		return Template{}, false
	}
	return c.order[i], true
}

// All returns every template in menu order.
func (c *Catalog) All() []Template { return slices.Clone(c.order) }

type catalogFile struct {
	Templates []struct {
		ID         string `yaml:"id"`
		Name       Name   `yaml:"name"`
		Background string `yaml:"background"`
		Scene      string `yaml:"scene"`
	} `yaml:"templates"`
}

// LoadFile adds the templates of a YAML catalog file. A missing file is not
// an error.
func (c *Catalog) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open template catalog: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}

// Load adds the templates read from r. The whole catalog is rejected if any
// entry is invalid or clashes with an existing id.
func (c *Catalog) Load(r io.Reader) error {
	var cf catalogFile
	if err := yaml.NewDecoder(r).Decode(&cf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse template catalog: %w", err)
	}
	added := make([]Template, 0, len(cf.Templates))
	for _, e := range cf.Templates {
		if e.ID == "" {
			return errors.New("template catalog: entry without id")
		}
		if _, exists := c.Lookup(e.ID); exists || slices.ContainsFunc(added, func(t Template) bool { return t.ID == e.ID }) {
			return fmt.Errorf("template catalog: duplicate id %q", e.ID)
		}
		bg, err := scene.ParseColor(e.Background)
		if err != nil {
			return fmt.Errorf("template %s: background: %w", e.ID, err)
		}
		if e.Name.EN == "" {
			e.Name.EN = e.ID
		}
		t := Template{ID: e.ID, Name: e.Name, Background: bg, Scene: e.Scene}
		if t.Scene != "" {
			if _, err := t.Build(scene.DefaultWidth, scene.DefaultHeight); err != nil {
				return err
			}
		}
		added = append(added, t)
	}
	c.order = append(c.order, added...)
	return nil
}
