/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imaging decodes user-supplied bitmaps and converts them to and from
// the data URLs stored inside serialized scenes.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"

	// Additional decoders registered with image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels rejects decoded bitmaps above this size (about 40 MP).
const MaxPixels = 40_000_000

var (
	ErrEmpty       = errors.New("imaging: empty input")
	ErrTooLarge    = errors.New("imaging: bitmap too large")
	ErrBadDataURL  = errors.New("imaging: malformed data URL")
	ErrUnsupported = errors.New("imaging: unsupported format")
)

// DecodeError reports that an asynchronous decode produced no bitmap.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "image decode failed: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeBytes decodes data into an NRGBA copy of the bitmap and returns the
// detected format name.
func DecodeBytes(data []byte) (*image.NRGBA, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupported
		}
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("decode %s: empty bitmap", format)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, format, ErrTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("decode %s: %w", format, err)
	}
	return ToNRGBA(img), format, nil
}

// ToNRGBA returns img as a freshly allocated NRGBA whose bounds start at 0,0.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return dst
}

// Fit scales img down (never up) so it fits within maxW x maxH, keeping the
// aspect ratio. A non-positive bound leaves that axis unconstrained.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}
	if scale >= 1 {
		return img
	}
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeDataURL encodes img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	if img == nil {
		return "", ErrEmpty
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL parses a base64 data URL of any registered image format.
func DecodeDataURL(s string) (*image.NRGBA, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, ErrBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") || !strings.HasPrefix(meta, "image/") {
		return nil, ErrBadDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	img, _, err := DecodeBytes(data)
	return img, err
}

// Pending is an in-flight asynchronous decode. There is no cancellation of
// the decode itself; a caller that goes away simply never reads the result.
// Failures are reported as *DecodeError.
type Pending struct {
	done chan struct{}
	img  *image.NRGBA
	err  error
}

// Decode reads and decodes r on a separate goroutine. If ctx ends before the
// bitmap is ready the result carries ctx.Err().
func Decode(ctx context.Context, r io.Reader) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		type result struct {
			img *image.NRGBA
			err error
		}
		ch := make(chan result, 1)
		go func() {
			data, err := io.ReadAll(r)
			if err != nil {
				ch <- result{err: fmt.Errorf("read image: %w", err)}
				return
			}
			img, _, err := DecodeBytes(data)
			ch <- result{img: img, err: err}
		}()
		select {
		case res := <-ch:
			p.img, p.err = res.img, res.err
		case <-ctx.Done():
			p.err = ctx.Err()
		}
		if p.err != nil {
			p.err = &DecodeError{Err: p.err}
		}
		close(p.done)
	}()
	return p
}

// Done is closed once Result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Ready reports whether the decode has finished.
func (p *Pending) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the decode finishes or ctx ends.
func (p *Pending) Wait(ctx context.Context) (*image.NRGBA, error) {
	select {
	case <-p.done:
		return p.img, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the decoded bitmap; it must only be called after Done is closed.
func (p *Pending) Result() (*image.NRGBA, error) {
	if !p.Ready() {
		return nil, errors.New("imaging: decode still in progress")
	}
	return p.img, p.err
}
