/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene holds the card's object model: an ordered set of drawables on
// a sized, coloured canvas, with JSON serialization for history and storage.
package scene

import (
	"github.com/google/uuid"
)

// Default canvas parameters.
const (
	DefaultWidth  = 600
	DefaultHeight = 400

	// DuplicateOffset shifts copies right and down so they don't hide the source.
	DuplicateOffset = 20
)

// Direction moves an object one step in paint order.
type Direction int

const (
	Forward Direction = iota + 1
	Backward
)

// Graph is the ordered set of objects on the canvas. Sequence order always
// equals ascending Z. Graph is not safe for concurrent use; the editor session
// owns it.
type Graph struct {
	objects    []Object
	background Color
	width      int
	height     int
	newID      func() string
}

// Option configures a new Graph.
type Option func(*Graph)

// WithIDGenerator replaces the uuid generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(g *Graph) { g.newID = fn }
}

// New returns an empty graph. Non-positive sizes fall back to the defaults and
// an invalid background to white.
func New(width, height int, background Color, opts ...Option) *Graph {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	if !background.Valid() {
		background = White
	}
	g := &Graph{background: background, width: width, height: height, newID: uuid.NewString}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Graph) Width() int        { return g.width }
func (g *Graph) Height() int       { return g.height }
func (g *Graph) Background() Color { return g.background }
func (g *Graph) Len() int          { return len(g.objects) }

func (g *Graph) index(id string) int {
	for i, o := range g.objects {
		if o.Base().ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether an object with id exists.
func (g *Graph) Contains(id string) bool { return g.index(id) >= 0 }

// Get returns a copy of the object with id.
func (g *Graph) Get(id string) (Object, bool) {
	i := g.index(id)
	if i < 0 {
		return nil, false
	}
	return g.objects[i].Clone(), true
}

// Objects returns copies of all objects in paint order.
func (g *Graph) Objects() []Object {
	out := make([]Object, len(g.objects))
	for i, o := range g.objects {
		out[i] = o.Clone()
	}
	return out
}

// IDs returns the object ids in paint order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.objects))
	for i, o := range g.objects {
		out[i] = o.Base().ID
	}
	return out
}

func (g *Graph) topZ() int {
	if len(g.objects) == 0 {
		return -1
	}
	return g.objects[len(g.objects)-1].Base().Z
}

// Add validates obj and appends a copy on top with a fresh id.
func (g *Graph) Add(obj Object) (string, error) {
	if obj == nil {
		return "", invalid("unknown", "", "object is nil")
	}
	if err := obj.Validate(); err != nil {
		return "", err
	}
	c := obj.Clone()
	b := c.Base()
	b.ID = g.newID()
	b.Z = g.topZ() + 1
	g.objects = append(g.objects, c)
	return b.ID, nil
}

// Remove deletes the object with id; unknown ids are ignored.
func (g *Graph) Remove(id string) bool {
	i := g.index(id)
	if i < 0 {
		return false
	}
	g.objects = append(g.objects[:i], g.objects[i+1:]...)
	return true
}

// RemoveMany deletes every listed object and returns how many were present.
func (g *Graph) RemoveMany(ids ...string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := g.objects[:0]
	n := 0
	for _, o := range g.objects {
		if _, ok := drop[o.Base().ID]; ok {
			n++
			continue
		}
		kept = append(kept, o)
	}
	clear(g.objects[len(kept):])
	g.objects = kept
	return n
}

// Clear removes all objects and resets the background to bg (white when
// invalid).
func (g *Graph) Clear(bg Color) {
	g.objects = nil
	if !bg.Valid() {
		bg = White
	}
	g.background = bg
}

// Reorder swaps id with its neighbour in the given direction. Moving the top
// object forward or the bottom one backward is a no-op.
func (g *Graph) Reorder(id string, dir Direction) bool {
	i := g.index(id)
	if i < 0 {
		return false
	}
	j := i + 1
	if dir == Backward {
		j = i - 1
	}
	if j < 0 || j >= len(g.objects) {
		return false
	}
	a, b := g.objects[i].Base(), g.objects[j].Base()
	a.Z, b.Z = b.Z, a.Z
	g.objects[i], g.objects[j] = g.objects[j], g.objects[i]
	return true
}

// Duplicate copies id with a new identity, offset by DuplicateOffset and
// placed directly above the source.
func (g *Graph) Duplicate(id string) (string, error) {
	i := g.index(id)
	if i < 0 {
		return "", ErrNotFound
	}
	c := g.objects[i].Clone()
	b := c.Base()
	b.ID = g.newID()
	b.X += DuplicateOffset
	b.Y += DuplicateOffset
	b.Z = g.objects[i].Base().Z + 1
	if i+1 < len(g.objects) && g.objects[i+1].Base().Z <= b.Z {
		for _, o := range g.objects[i+1:] {
			o.Base().Z++
		}
	}
	g.objects = append(g.objects, nil)
	copy(g.objects[i+2:], g.objects[i+1:])
	g.objects[i+1] = c
	return b.ID, nil
}

// SetBackground changes the canvas colour.
func (g *Graph) SetBackground(c Color) error {
	if !c.Valid() {
		return invalid("canvas", "background", "%q is not a hex colour", c)
	}
	g.background = c
	return nil
}

// ResizeCanvas changes the canvas size. Object positions are not rescaled.
func (g *Graph) ResizeCanvas(w, h int) error {
	if w <= 0 || h <= 0 {
		return invalid("canvas", "size", "must be positive, got %dx%d", w, h)
	}
	g.width, g.height = w, h
	return nil
}

// Update applies fn to a copy of the object and commits it only if fn
// succeeds and the result validates. ID and Z cannot be changed this way.
func (g *Graph) Update(id string, fn func(Object) error) error {
	i := g.index(id)
	if i < 0 {
		return ErrNotFound
	}
	orig := g.objects[i].Base()
	c := g.objects[i].Clone()
	if err := fn(c); err != nil {
		return err
	}
	b := c.Base()
	b.ID, b.Z = orig.ID, orig.Z
	if err := c.Validate(); err != nil {
		return err
	}
	g.objects[i] = c
	return nil
}

// ObjectAt returns the id of the topmost object under (x, y).
func (g *Graph) ObjectAt(x, y float64) (string, bool) {
	p := Pt{X: x, Y: y}
	for i := len(g.objects) - 1; i >= 0; i-- {
		if Hit(g.objects[i], p) {
			return g.objects[i].Base().ID, true
		}
	}
	return "", false
}

// Replace makes g an exact copy of src's content, keeping g's id generator.
func (g *Graph) Replace(src *Graph) {
	g.objects = src.Objects()
	g.background = src.background
	g.width, g.height = src.width, src.height
}

// Clone returns an independent copy of g.
func (g *Graph) Clone() *Graph {
	c := &Graph{newID: g.newID}
	c.Replace(g)
	return c
}

// Frame is an immutable paint list: background first, then objects bottom to
// top. It never contains selection or editing affordances.
type Frame struct {
	Width, Height int
	Background    Color
	Objects       []Object
}

// Frame snapshots the graph for rendering.
func (g *Graph) Frame() Frame {
	return Frame{Width: g.width, Height: g.height, Background: g.background, Objects: g.Objects()}
}
