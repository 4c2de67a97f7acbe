/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Object geometry. Every object is drawn inside a local box centered on the
// origin and placed by Transform (rotation about the center, then translation
// to X,Y). Canvas coordinates grow right and down.

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := min(r.X, o.X)
	minY := min(r.Y, o.Y)
	maxX := max(r.X+r.W, o.X+o.W)
	maxY := max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Invert returns the inverse transform; a singular matrix yields Identity.
func (m Affine2D) Invert() Affine2D {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity
	}
	inv := 1 / det
	return Affine2D{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }

// Rotate rotates clockwise on screen by deg degrees.
func Rotate(deg float64) Affine2D {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return Affine2D{A: c, B: s, C: -s, D: c}
}

// Text metrics used for hit testing and bounds. Renderers measure with real
// faces; these approximate an average glyph.
const (
	avgGlyphWidth = 0.6
	lineHeight    = 1.16
)

// TextLines splits text content into display lines.
func TextLines(content string) []string {
	return strings.Split(content, "\n")
}

// Size returns the unrotated width and height of o.
func Size(o Object) (w, h float64) {
	switch v := o.(type) {
	case *Text:
		lines := TextLines(v.Content)
		longest := 0
		for _, l := range lines {
			longest = max(longest, utf8.RuneCountInString(l))
		}
		return float64(longest) * float64(v.Size) * avgGlyphWidth, float64(len(lines)) * float64(v.Size) * lineHeight
	case *Shape:
		if v.Kind == Circle {
			return 2 * v.Radius, 2 * v.Radius
		}
		return v.Width, v.Height
	case *Image:
		return float64(v.NaturalWidth) * v.Scale, float64(v.NaturalHeight) * v.Scale
	}
	return 0, 0
}

// LocalBox is o's box in its own coordinate space, centered on the origin.
func LocalBox(o Object) Rect {
	w, h := Size(o)
	return Rect{X: -w / 2, Y: -h / 2, W: w, H: h}
}

// Transform maps local coordinates of o to canvas coordinates.
func Transform(o Object) Affine2D {
	c := o.Base()
	return Translate(c.X, c.Y).Mul(Rotate(c.Angle))
}

// Bounds returns the axis-aligned canvas box around o, rotation included.
func Bounds(o Object) Rect {
	box := LocalBox(o)
	xf := Transform(o)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range []Pt{{box.X, box.Y}, {box.X + box.W, box.Y}, {box.X, box.Y + box.H}, {box.X + box.W, box.Y + box.H}} {
		p := xf.Apply(c)
		minX, minY = min(minX, p.X), min(minY, p.Y)
		maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// TriangleVertices returns the apex-up triangle inscribed in a w x h box
// centered on the origin.
func TriangleVertices(w, h float64) [3]Pt {
	return [3]Pt{{0, -h / 2}, {w / 2, h / 2}, {-w / 2, h / 2}}
}

// Hit reports whether canvas point p lies on o.
func Hit(o Object, p Pt) bool {
	q := Transform(o).Invert().Apply(p)
	switch v := o.(type) {
	case *Shape:
		switch v.Kind {
		case Circle:
			return q.X*q.X+q.Y*q.Y <= v.Radius*v.Radius
		case Triangle:
			t := TriangleVertices(v.Width, v.Height)
			return inTriangle(q, t[0], t[1], t[2])
		}
	}
	return LocalBox(o).Contains(q)
}

func inTriangle(p, a, b, c Pt) bool {
	cross := func(o, u, v Pt) float64 { return (u.X-o.X)*(v.Y-o.Y) - (u.Y-o.Y)*(v.X-o.X) }
	d1, d2, d3 := cross(a, b, p), cross(b, c, p), cross(c, a, p)
	neg := d1 < 0 || d2 < 0 || d3 < 0
	pos := d1 > 0 || d2 > 0 || d3 > 0
	return !(neg && pos)
}
