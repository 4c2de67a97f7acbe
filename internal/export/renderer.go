/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"cardstudio/internal/scene"
)

// Renderer paints a frame to a bitmap of the frame's canvas size.
type Renderer interface {
	Render(ctx context.Context, f scene.Frame) (image.Image, error)
	// Probe checks that the backend can render at all.
	Probe() error
}

// GGRenderer draws frames with fogleman/gg. Renders are serialized because
// font faces are shared.
type GGRenderer struct {
	fonts *FontLibrary
	mu    sync.Mutex
}

func NewGGRenderer(fonts *FontLibrary) *GGRenderer { return &GGRenderer{fonts: fonts} }

func (r *GGRenderer) Probe() error {
	if r == nil || r.fonts == nil {
		return &DependencyUnavailableError{Dependency: "font library"}
	}
	if _, err := r.fonts.Face(scene.DefaultFont, scene.DefaultFontSize); err != nil {
		return &DependencyUnavailableError{Dependency: "font library", Err: err}
	}
	dc := gg.NewContext(1, 1)
	dc.SetColor(color.White)
	dc.Clear()
	return nil
}

// Render paints the background then every object bottom to top.
func (r *GGRenderer) Render(ctx context.Context, f scene.Frame) (image.Image, error) {
	if err := r.Probe(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	dc := gg.NewContext(f.Width, f.Height)
	dc.SetColor(f.Background.RGBA())
	dc.Clear()
	for _, o := range f.Objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := o.Base()
		dc.Push()
		dc.Translate(b.X, b.Y)
		dc.Rotate(gg.Radians(b.Angle))
		var err error
		switch v := o.(type) {
		case *scene.Text:
			err = r.drawText(dc, v)
		case *scene.Shape:
			drawShape(dc, v)
		case *scene.Image:
			drawImage(dc, v)
		}
		dc.Pop()
		if err != nil {
			return nil, err
		}
	}
	return dc.Image(), nil
}

func withOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	c.A = uint8(float64(c.A)*opacity + 0.5)
	return c
}

func (r *GGRenderer) drawText(dc *gg.Context, t *scene.Text) error {
	face, err := r.fonts.Face(t.Font, t.Size)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetColor(withOpacity(t.Fill.RGBA(), t.Opacity))
	lines := scene.TextLines(t.Content)
	lh := float64(t.Size) * 1.16
	top := -lh * float64(len(lines)) / 2
	for i, line := range lines {
		dc.DrawStringAnchored(line, 0, top+lh*(float64(i)+0.5), 0.5, 0.5)
	}
	return nil
}

func drawShape(dc *gg.Context, s *scene.Shape) {
	dc.SetColor(withOpacity(s.Fill.RGBA(), s.Opacity))
	switch s.Kind {
	case scene.Rectangle:
		dc.DrawRectangle(-s.Width/2, -s.Height/2, s.Width, s.Height)
	case scene.Circle:
		dc.DrawCircle(0, 0, s.Radius)
	case scene.Triangle:
		v := scene.TriangleVertices(s.Width, s.Height)
		dc.MoveTo(v[0].X, v[0].Y)
		dc.LineTo(v[1].X, v[1].Y)
		dc.LineTo(v[2].X, v[2].Y)
		dc.ClosePath()
	}
	dc.Fill()
}

func drawImage(dc *gg.Context, im *scene.Image) {
	dc.Scale(im.Scale, im.Scale)
	dc.DrawImageAnchored(fade(im.Bitmap, im.Opacity), 0, 0, 0.5, 0.5)
}

// fade returns src with its alpha multiplied by opacity.
func fade(src image.Image, opacity float64) image.Image {
	if opacity >= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, dst.Bounds(), src, b.Min, mask, image.Point{}, draw.Over)
	return dst
}
