/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"cardstudio/internal/imaging"
)

// FormatVersion is written into every serialized scene. Documents without it
// are read as the legacy fabric-style layout.
const FormatVersion = 1

type document struct {
	FormatVersion   int          `json:"formatVersion,omitempty"`
	Background      string       `json:"background,omitempty"`
	BackgroundColor string       `json:"backgroundColor,omitempty"`
	Width           int          `json:"width,omitempty"`
	Height          int          `json:"height,omitempty"`
	Objects         []wireObject `json:"objects"`
}

type wireObject struct {
	Type        string   `json:"type"`
	ID          string   `json:"id,omitempty"`
	Left        float64  `json:"left"`
	Top         float64  `json:"top"`
	Angle       float64  `json:"angle"`
	Opacity     *float64 `json:"opacity,omitempty"`
	ZIndex      *int     `json:"zIndex,omitempty"`
	HasControls *bool    `json:"hasControls,omitempty"`
	OriginX     string   `json:"originX,omitempty"`
	OriginY     string   `json:"originY,omitempty"`
	Text        string   `json:"text,omitempty"`
	FontFamily  string   `json:"fontFamily,omitempty"`
	FontSize    float64  `json:"fontSize,omitempty"`
	Fill        string   `json:"fill,omitempty"`
	Width       float64  `json:"width,omitempty"`
	Height      float64  `json:"height,omitempty"`
	Radius      float64  `json:"radius,omitempty"`
	Src         string   `json:"src,omitempty"`
	ScaleX      *float64 `json:"scaleX,omitempty"`
	ScaleY      *float64 `json:"scaleY,omitempty"`
}

// Serialize encodes g as JSON. Equal graphs encode to equal bytes.
func (g *Graph) Serialize() ([]byte, error) {
	doc := document{
		FormatVersion: FormatVersion,
		Background:    string(g.background),
		Width:         g.width,
		Height:        g.height,
		Objects:       make([]wireObject, 0, len(g.objects)),
	}
	for _, o := range g.objects {
		w, err := toWire(o)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", o.Base().ID, err)
		}
		doc.Objects = append(doc.Objects, w)
	}
	return json.Marshal(doc)
}

func toWire(o Object) (wireObject, error) {
	c := o.Base()
	op, z, ctl := c.Opacity, c.Z, c.Controls
	w := wireObject{ID: c.ID, Left: c.X, Top: c.Y, Angle: c.Angle, Opacity: &op, ZIndex: &z, HasControls: &ctl}
	switch v := o.(type) {
	case *Text:
		w.Type = "text"
		w.Text, w.FontFamily, w.FontSize, w.Fill = v.Content, string(v.Font), float64(v.Size), string(v.Fill)
	case *Shape:
		w.Type = string(v.Kind)
		w.Fill = string(v.Fill)
		if v.Kind == Circle {
			w.Radius = v.Radius
		} else {
			w.Width, w.Height = v.Width, v.Height
		}
	case *Image:
		src, err := v.dataURL()
		if err != nil {
			return w, err
		}
		sc := v.Scale
		w.Type = "image"
		w.Src = src
		w.Width, w.Height = float64(v.NaturalWidth), float64(v.NaturalHeight)
		w.ScaleX, w.ScaleY = &sc, &sc
	default:
		return w, fmt.Errorf("unknown object type %T", o)
	}
	return w, nil
}

// dataURL encodes the bitmap once and reuses the result while the bitmap is
// unchanged.
func (i *Image) dataURL() (string, error) {
	if i.src != "" && i.srcOf == i.Bitmap {
		return i.src, nil
	}
	s, err := imaging.EncodeDataURL(i.Bitmap)
	if err != nil {
		return "", err
	}
	i.src, i.srcOf = s, i.Bitmap
	return s, nil
}

type decodeOptions struct {
	fresh     bool
	defW      int
	defH      int
	graphOpts []Option
}

// DecodeOption tunes Deserialize.
type DecodeOption func(*decodeOptions)

// WithFreshIdentities assigns new ids to every decoded object. Stored ids are
// kept otherwise.
func WithFreshIdentities() DecodeOption { return func(o *decodeOptions) { o.fresh = true } }

// WithDefaultSize sets the canvas size used when the document has none.
func WithDefaultSize(w, h int) DecodeOption {
	return func(o *decodeOptions) { o.defW, o.defH = w, h }
}

// WithGraphOptions passes options to the graph being built.
func WithGraphOptions(opts ...Option) DecodeOption {
	return func(o *decodeOptions) { o.graphOpts = append(o.graphOpts, opts...) }
}

// Deserialize decodes blob into a new graph. Any structural problem yields a
// *MalformedSceneError and no graph.
func Deserialize(blob []byte, opts ...DecodeOption) (*Graph, error) {
	o := decodeOptions{defW: DefaultWidth, defH: DefaultHeight}
	for _, fn := range opts {
		fn(&o)
	}
	var doc *document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, malformed(err, "invalid JSON")
	}
	if doc == nil {
		return nil, malformed(nil, "empty document")
	}
	if doc.FormatVersion < 0 || doc.FormatVersion > FormatVersion {
		return nil, malformed(nil, "unsupported format version %d", doc.FormatVersion)
	}
	legacy := doc.FormatVersion == 0

	w, h := doc.Width, doc.Height
	if legacy && (w <= 0 || h <= 0) {
		w, h = o.defW, o.defH
	}
	if w <= 0 || h <= 0 {
		return nil, malformed(nil, "canvas size %dx%d", w, h)
	}
	bgRaw := doc.Background
	if bgRaw == "" {
		bgRaw = doc.BackgroundColor
	}
	bg := White
	if bgRaw != "" {
		var err error
		if bg, err = wireColor(bgRaw, legacy); err != nil {
			return nil, malformed(err, "background")
		}
	}

	g := New(w, h, bg, o.graphOpts...)
	seen := make(map[string]struct{}, len(doc.Objects))
	objs := make([]Object, 0, len(doc.Objects))
	for i, wo := range doc.Objects {
		obj, err := fromWire(wo, legacy)
		if err != nil {
			return nil, malformed(err, "object %d", i)
		}
		b := obj.Base()
		b.Z = i
		if !legacy && wo.ZIndex != nil {
			b.Z = *wo.ZIndex
		}
		if _, dup := seen[b.ID]; o.fresh || b.ID == "" || dup {
			b.ID = g.newID()
		}
		seen[b.ID] = struct{}{}
		objs = append(objs, obj)
	}
	slices.SortStableFunc(objs, func(a, b Object) int { return a.Base().Z - b.Base().Z })
	for i := 1; i < len(objs); i++ {
		if objs[i].Base().Z == objs[i-1].Base().Z {
			return nil, malformed(nil, "duplicate zIndex %d", objs[i].Base().Z)
		}
	}
	g.objects = objs
	return g, nil
}

func fromWire(w wireObject, legacy bool) (Object, error) {
	c := Common{ID: w.ID, X: w.Left, Y: w.Top, Angle: w.Angle, Opacity: 1, Controls: true}
	if w.Opacity != nil {
		c.Opacity = *w.Opacity
	}
	if w.HasControls != nil {
		c.Controls = *w.HasControls
	}
	sx, sy := 1.0, 1.0
	if w.ScaleX != nil {
		sx = *w.ScaleX
	}
	if w.ScaleY != nil {
		sy = *w.ScaleY
	}

	var obj Object
	switch w.Type {
	case "text", "i-text", "textbox":
		t := &Text{Common: c, Content: w.Text, Font: FontFamily(w.FontFamily), Size: int(math.Round(w.FontSize))}
		if legacy {
			t.Size = legacyFontSize(w.FontSize, sy)
			if !t.Font.Valid() {
				t.Font = DefaultFont
			}
		}
		fill, err := wireColor(w.Fill, legacy)
		if err != nil {
			return nil, err
		}
		t.Fill = fill
		obj = t
	case "rect", "circle", "triangle":
		s := &Shape{Common: c, Kind: ShapeKind(w.Type), Width: w.Width, Height: w.Height, Radius: w.Radius}
		if legacy {
			s.Width, s.Height, s.Radius = s.Width*sx, s.Height*sy, s.Radius*sx
		}
		fill, err := wireColor(w.Fill, legacy)
		if err != nil {
			return nil, err
		}
		s.Fill = fill
		obj = s
	case "image":
		bmp, err := imaging.DecodeDataURL(w.Src)
		if err != nil {
			return nil, fmt.Errorf("image src: %w", err)
		}
		im := NewImage(bmp, c.X, c.Y)
		im.Common = c
		im.Scale = sx
		im.src, im.srcOf = w.Src, im.Bitmap
		obj = im
	default:
		return nil, fmt.Errorf("unknown type %q", w.Type)
	}
	if legacy {
		recenter(obj, w)
	}
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	return obj, nil
}

// legacyFontSize folds a fabric handle scale into the font size and clamps
// the result to the supported range.
func legacyFontSize(size, scale float64) int {
	if size <= 0 || !finite(size) {
		return DefaultFontSize
	}
	if !finite(scale) || scale <= 0 {
		scale = 1
	}
	return min(max(int(math.Round(size*scale)), MinFontSize), MaxFontSize)
}

// wireColor keeps versioned colours verbatim so a round trip reproduces the
// same bytes; legacy values are normalized.
func wireColor(s string, legacy bool) (Color, error) {
	if !legacy {
		if c := Color(s); c.Valid() {
			return c, nil
		}
		return "", fmt.Errorf("bad colour %q", s)
	}
	if s == "" {
		return Black, nil
	}
	return ParseColor(s)
}

// recenter converts a legacy left/top anchor into the center anchor.
func recenter(o Object, w wireObject) {
	width, height := Size(o)
	if _, ok := o.(*Text); ok {
		sx, sy := 1.0, 1.0
		if w.ScaleX != nil {
			sx = *w.ScaleX
		}
		if w.ScaleY != nil {
			sy = *w.ScaleY
		}
		if w.Width > 0 {
			width = w.Width * sx
		}
		if w.Height > 0 {
			height = w.Height * sy
		}
	}
	b := o.Base()
	switch w.OriginX {
	case "", "left":
		b.X += width / 2
	case "right":
		b.X -= width / 2
	}
	switch w.OriginY {
	case "", "top":
		b.Y += height / 2
	case "bottom":
		b.Y -= height / 2
	}
}
