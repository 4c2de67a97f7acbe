/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export turns a scene into PNG, JPEG or single-page PDF output.
// Rendering is delegated to a Renderer so the editor never depends on a
// particular drawing backend.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"

	"github.com/jung-kurt/gofpdf"

	"cardstudio/internal/imaging"
	applog "cardstudio/internal/log"
	"cardstudio/internal/scene"
	"cardstudio/internal/version"
)

// Format names an output format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	PDF  Format = "pdf"
)

// ParseFormat accepts png, jpeg/jpg and pdf.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "pdf":
		return PDF, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Ext is the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// Exporter renders graphs and encodes the result.
type Exporter struct {
	Renderer       Renderer
	JPEGQuality    int
	ThumbnailWidth int
	log            *slog.Logger
}

func NewExporter(r Renderer, jpegQuality, thumbWidth int) *Exporter {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 92
	}
	if thumbWidth <= 0 {
		thumbWidth = 200
	}
	return &Exporter{Renderer: r, JPEGQuality: jpegQuality, ThumbnailWidth: thumbWidth, log: applog.WithComponent("export")}
}

// Probe reports whether rendering is possible.
func (e *Exporter) Probe() error {
	if e == nil || e.Renderer == nil {
		return &DependencyUnavailableError{Dependency: "renderer"}
	}
	if err := e.Renderer.Probe(); err != nil {
		var dep *DependencyUnavailableError
		if errors.As(err, &dep) {
			return err
		}
		return &DependencyUnavailableError{Dependency: "renderer", Err: err}
	}
	return nil
}

func (e *Exporter) render(ctx context.Context, g *scene.Graph, format Format) (image.Image, error) {
	if err := e.Probe(); err != nil {
		return nil, &ExportError{Format: format, Err: err}
	}
	img, err := e.Renderer.Render(ctx, g.Frame())
	if err != nil {
		return nil, &ExportError{Format: format, Err: err}
	}
	return img, nil
}

// Export writes g to w in the given format.
func (e *Exporter) Export(ctx context.Context, g *scene.Graph, format Format, w io.Writer) error {
	l := applog.WithOperation(e.log, "export").With(slog.String("format", string(format)))
	var (
		data []byte
		err  error
	)
	switch format {
	case PNG, JPEG:
		data, err = e.ToRaster(ctx, g, format)
	case PDF:
		data, err = e.ToDocument(ctx, g)
	default:
		err = &ExportError{Format: format, Err: errors.New("unsupported format")}
	}
	if err != nil {
		l.Error("export failed", slog.Any("err", err))
		return err
	}
	if _, err := w.Write(data); err != nil {
		l.Error("write failed", slog.Any("err", err))
		return &ExportError{Format: format, Err: err}
	}
	l.Info("exported", slog.Int("bytes", len(data)), slog.Int("width", g.Width()), slog.Int("height", g.Height()))
	return nil
}

// ToRaster renders g at canvas size and encodes it as PNG or JPEG.
func (e *Exporter) ToRaster(ctx context.Context, g *scene.Graph, format Format) ([]byte, error) {
	img, err := e.render(ctx, g, format)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch format {
	case PNG:
		err = png.Encode(&buf, img)
	case JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.JPEGQuality})
	default:
		err = errors.New("not a raster format")
	}
	if err != nil {
		return nil, &ExportError{Format: format, Err: err}
	}
	return buf.Bytes(), nil
}

// pageSize returns the gofpdf size and orientation for a w x h point page.
// gofpdf swaps width and height for landscape pages.
func pageSize(w, h float64) (gofpdf.SizeType, string) {
	if w >= h {
		return gofpdf.SizeType{Wd: h, Ht: w}, "L"
	}
	return gofpdf.SizeType{Wd: w, Ht: h}, "P"
}

// ToDocument renders g and places it on a single PDF page of the same size
// (1 px = 1 pt).
func (e *Exporter) ToDocument(ctx context.Context, g *scene.Graph) ([]byte, error) {
	img, err := e.render(ctx, g, PDF)
	if err != nil {
		return nil, err
	}
	var raster bytes.Buffer
	if err := png.Encode(&raster, img); err != nil {
		return nil, &ExportError{Format: PDF, Err: err}
	}
	w, h := float64(g.Width()), float64(g.Height())
	size, orient := pageSize(w, h)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size, OrientationStr: orient})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Card", true)
	pdf.SetCreator("Card Studio "+version.String(), true)
	pdf.AddPage()
	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("card", opt, &raster)
	pdf.ImageOptions("card", 0, 0, w, h, false, opt, 0, "")
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, &ExportError{Format: PDF, Err: err}
	}
	return out.Bytes(), nil
}

// Thumbnail renders g scaled to at most maxW pixels wide.
func (e *Exporter) Thumbnail(ctx context.Context, g *scene.Graph, maxW int) (image.Image, error) {
	if maxW <= 0 {
		maxW = e.ThumbnailWidth
	}
	img, err := e.render(ctx, g, PNG)
	if err != nil {
		return nil, err
	}
	return imaging.Fit(img, maxW, 0), nil
}
