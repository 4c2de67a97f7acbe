/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"image"
	"math"
)

// FontFamily is one of the families offered by the text tools.
type FontFamily string

const (
	Arial           FontFamily = "Arial"
	TimesNewRoman   FontFamily = "Times New Roman"
	CourierNew      FontFamily = "Courier New"
	Verdana         FontFamily = "Verdana"
	Georgia         FontFamily = "Georgia"
	Tahoma          FontFamily = "Tahoma"
	Tajawal         FontFamily = "Tajawal"
	DefaultFont                = Arial
	MinFontSize                = 8
	MaxFontSize                = 200
	DefaultFontSize            = 24
)

// Families lists the supported font families in menu order.
func Families() []FontFamily {
	return []FontFamily{Arial, TimesNewRoman, CourierNew, Verdana, Georgia, Tahoma, Tajawal}
}

func (f FontFamily) Valid() bool {
	for _, k := range Families() {
		if f == k {
			return true
		}
	}
	return false
}

// ShapeKind selects the outline of a Shape. The values double as wire type tags.
type ShapeKind string

const (
	Rectangle ShapeKind = "rect"
	Circle    ShapeKind = "circle"
	Triangle  ShapeKind = "triangle"
)

// DefaultShapeFill is the fill of newly inserted shapes.
const DefaultShapeFill Color = "#1e88e5"

// Common carries the attributes shared by every drawable. X and Y locate the
// object's center; Angle is in degrees.
type Common struct {
	ID       string
	X, Y     float64
	Angle    float64
	Opacity  float64
	Z        int
	Controls bool
}

// Object is a drawable: *Text, *Shape or *Image.
type Object interface {
	Base() *Common
	Clone() Object
	Validate() error
	sealed()
}

// Text is a single-style text run; lines are separated by '\n'.
type Text struct {
	Common
	Content string
	Font    FontFamily
	Size    int
	Fill    Color
}

// Shape is a filled rectangle, circle or triangle.
type Shape struct {
	Common
	Kind   ShapeKind
	Fill   Color
	Width  float64 // Rectangle, Triangle
	Height float64 // Rectangle, Triangle
	Radius float64 // Circle
}

// Image is a raster object. Bitmap is never modified after construction;
// clones share it.
type Image struct {
	Common
	Bitmap        image.Image
	NaturalWidth  int
	NaturalHeight int
	Scale         float64

	src   string
	srcOf image.Image
}

func (t *Text) Base() *Common  { return &t.Common }
func (s *Shape) Base() *Common { return &s.Common }
func (i *Image) Base() *Common { return &i.Common }

func (*Text) sealed()  {}
func (*Shape) sealed() {}
func (*Image) sealed() {}

func (t *Text) Clone() Object  { c := *t; return &c }
func (s *Shape) Clone() Object { c := *s; return &c }
func (i *Image) Clone() Object { c := *i; return &c }

// KindOf names the variant of o: "text", "shape" or "image".
func KindOf(o Object) string {
	switch o.(type) {
	case *Text:
		return "text"
	case *Shape:
		return "shape"
	case *Image:
		return "image"
	}
	return "unknown"
}

func defaults(x, y float64) Common {
	return Common{X: x, Y: y, Opacity: 1, Controls: true}
}

// NewText returns a text object with the default font, size and fill.
func NewText(content string, x, y float64) *Text {
	return &Text{Common: defaults(x, y), Content: content, Font: DefaultFont, Size: DefaultFontSize, Fill: Black}
}

// NewShape returns a 100x100 (radius 50) shape in the default fill.
func NewShape(kind ShapeKind, x, y float64) *Shape {
	s := &Shape{Common: defaults(x, y), Kind: kind, Fill: DefaultShapeFill}
	if kind == Circle {
		s.Radius = 50
	} else {
		s.Width, s.Height = 100, 100
	}
	return s
}

// NewImage wraps bmp at natural size.
func NewImage(bmp image.Image, x, y float64) *Image {
	im := &Image{Common: defaults(x, y), Bitmap: bmp, Scale: 1}
	if bmp != nil {
		b := bmp.Bounds()
		im.NaturalWidth, im.NaturalHeight = b.Dx(), b.Dy()
	}
	return im
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (c *Common) validate(kind string) error {
	if !finite(c.X) || !finite(c.Y) {
		return invalid(kind, "position", "must be finite")
	}
	if !finite(c.Angle) {
		return invalid(kind, "angle", "must be finite")
	}
	if !finite(c.Opacity) || c.Opacity < 0 || c.Opacity > 1 {
		return invalid(kind, "opacity", "must be within 0..1, got %v", c.Opacity)
	}
	return nil
}

func (t *Text) Validate() error {
	if err := t.Common.validate("text"); err != nil {
		return err
	}
	if !t.Font.Valid() {
		return invalid("text", "fontFamily", "%q is not supported", t.Font)
	}
	if t.Size < MinFontSize || t.Size > MaxFontSize {
		return invalid("text", "fontSize", "must be within %d..%d, got %d", MinFontSize, MaxFontSize, t.Size)
	}
	if !t.Fill.Valid() {
		return invalid("text", "fill", "%q is not a hex colour", t.Fill)
	}
	return nil
}

func (s *Shape) Validate() error {
	if err := s.Common.validate("shape"); err != nil {
		return err
	}
	if !s.Fill.Valid() {
		return invalid("shape", "fill", "%q is not a hex colour", s.Fill)
	}
	switch s.Kind {
	case Rectangle, Triangle:
		if !finite(s.Width) || !finite(s.Height) || s.Width <= 0 || s.Height <= 0 {
			return invalid("shape", "size", "must be positive, got %vx%v", s.Width, s.Height)
		}
	case Circle:
		if !finite(s.Radius) || s.Radius <= 0 {
			return invalid("shape", "radius", "must be positive, got %v", s.Radius)
		}
	default:
		return invalid("shape", "kind", "%q is not supported", s.Kind)
	}
	return nil
}

func (i *Image) Validate() error {
	if err := i.Common.validate("image"); err != nil {
		return err
	}
	if i.Bitmap == nil {
		return invalid("image", "bitmap", "is missing")
	}
	if i.NaturalWidth <= 0 || i.NaturalHeight <= 0 {
		return invalid("image", "size", "must be positive, got %dx%d", i.NaturalWidth, i.NaturalHeight)
	}
	if !finite(i.Scale) || i.Scale <= 0 {
		return invalid("image", "scale", "must be positive, got %v", i.Scale)
	}
	return nil
}
