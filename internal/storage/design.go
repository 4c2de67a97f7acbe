/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	gojsonschema "github.com/xeipuuv/gojsonschema"
	"golang.org/x/image/draw"

	"cardstudio/internal/imaging"
	applog "cardstudio/internal/log"
	"cardstudio/internal/scene"
)

const (
	// DefaultKey is the single design slot.
	DefaultKey = "cardDesign"
	// DefaultName labels designs saved without a name.
	DefaultName = "Untitled card"

	autosaveSuffix = ".autosave"
)

// ErrNoBackup is returned by Restore when the store has no usable backup.
var ErrNoBackup = errors.New("no backup available")

//go:embed design.schema.json
var designSchemaJSON []byte

var designSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(designSchemaJSON))
})

// CardDesign is a saved design: the serialized scene plus metadata.
type CardDesign struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Thumbnail     string          `json:"thumbnail,omitempty"` // PNG data URL
	CreatedAt     time.Time       `json:"createdAt"`
	FormatVersion int             `json:"formatVersion"`
	JSON          json.RawMessage `json:"scene"`
}

// Thumbnailer renders a preview of g. Save falls back to a plain swatch of
// the background colour when it is nil or fails.
type Thumbnailer func(ctx context.Context, g *scene.Graph) (image.Image, error)

// Options configures an Adapter.
type Options struct {
	Key            string
	QuotaBytes     int // 0 means unlimited
	Thumbnailer    Thumbnailer
	ThumbnailWidth int
	CanvasWidth    int
	CanvasHeight   int
	Now            func() time.Time
}

// Adapter saves and loads the design slot of a DesignStore.
type Adapter struct {
	store DesignStore
	opts  Options
	log   *slog.Logger
}

func NewAdapter(store DesignStore, opts Options) *Adapter {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.ThumbnailWidth <= 0 {
		opts.ThumbnailWidth = 200
	}
	if opts.CanvasWidth <= 0 || opts.CanvasHeight <= 0 {
		opts.CanvasWidth, opts.CanvasHeight = scene.DefaultWidth, scene.DefaultHeight
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Adapter{store: store, opts: opts, log: applog.WithComponent("storage")}
}

// Key returns the slot key written by Save.
func (a *Adapter) Key() string { return a.opts.Key }

// Save stores g under the slot key. On failure the previous design is left
// unchanged.
func (a *Adapter) Save(ctx context.Context, name string, g *scene.Graph) (CardDesign, error) {
	return a.save(ctx, a.opts.Key, name, g)
}

// Autosave writes g to the crash-recovery slot next to the main one.
func (a *Adapter) Autosave(ctx context.Context, g *scene.Graph) error {
	_, err := a.save(ctx, a.opts.Key+autosaveSuffix, DefaultName, g)
	return err
}

func (a *Adapter) save(ctx context.Context, key, name string, g *scene.Graph) (CardDesign, error) {
	l := applog.WithOperation(a.log, "save").With(slog.String("key", key))
	blob, err := g.Serialize()
	if err != nil {
		return CardDesign{}, &StorageError{Op: "save", Key: key, Err: err}
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	d := CardDesign{
		ID:            ulid.MustNew(ulid.Timestamp(a.opts.Now()), rand.Reader).String(),
		Name:          name,
		Thumbnail:     a.thumbnail(ctx, g, l),
		CreatedAt:     a.opts.Now().UTC(),
		FormatVersion: scene.FormatVersion,
		JSON:          blob,
	}
	data, err := json.Marshal(d)
	if err != nil {
		return CardDesign{}, &StorageError{Op: "save", Key: key, Err: err}
	}
	if a.opts.QuotaBytes > 0 && len(data) > a.opts.QuotaBytes {
		l.WarnContext(ctx, "design exceeds quota", slog.Int("bytes", len(data)), slog.Int("quota", a.opts.QuotaBytes))
		return CardDesign{}, &StorageError{Op: "save", Key: key, Err: fmt.Errorf("%w: %d > %d bytes", ErrQuotaExceeded, len(data), a.opts.QuotaBytes)}
	}
	if err := a.store.Put(ctx, key, data); err != nil {
		l.ErrorContext(ctx, "put failed", slog.Any("err", err))
		return CardDesign{}, &StorageError{Op: "save", Key: key, Err: err}
	}
	l.InfoContext(ctx, "design saved", slog.String("id", d.ID), slog.Int("bytes", len(data)), slog.Int("objects", g.Len()))
	return d, nil
}

func (a *Adapter) thumbnail(ctx context.Context, g *scene.Graph, l *slog.Logger) string {
	var img image.Image
	if a.opts.Thumbnailer != nil {
		var err error
		if img, err = a.opts.Thumbnailer(ctx, g); err != nil {
			l.WarnContext(ctx, "thumbnail render failed, using placeholder", slog.Any("err", err))
			img = nil
		}
	}
	if img == nil {
		img = placeholder(g, a.opts.ThumbnailWidth)
	}
	url, err := imaging.EncodeDataURL(img)
	if err != nil {
		l.WarnContext(ctx, "thumbnail encode failed", slog.Any("err", err))
		return ""
	}
	return url
}

// placeholder is a swatch of the canvas background at thumbnail size.
func placeholder(g *scene.Graph, width int) image.Image {
	h := max(1, width*g.Height()/max(1, g.Width()))
	img := image.NewNRGBA(image.Rect(0, 0, width, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(g.Background().RGBA()), image.Point{}, draw.Src)
	return img
}

// Load reads the slot and returns a graph with fresh object ids. Both results
// are nil when nothing has been saved. Unreadable data yields a
// *CorruptDesignError.
func (a *Adapter) Load(ctx context.Context, opts ...scene.Option) (*scene.Graph, *CardDesign, error) {
	return a.load(ctx, a.opts.Key, opts)
}

// LoadAutosave reads the crash-recovery slot.
func (a *Adapter) LoadAutosave(ctx context.Context, opts ...scene.Option) (*scene.Graph, *CardDesign, error) {
	return a.load(ctx, a.opts.Key+autosaveSuffix, opts)
}

func (a *Adapter) load(ctx context.Context, key string, opts []scene.Option) (*scene.Graph, *CardDesign, error) {
	data, ok, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, nil, &StorageError{Op: "load", Key: key, Err: err}
	}
	if !ok {
		return nil, nil, nil
	}
	return a.decode(key, data, opts)
}

// Restore loads the newest backup of the slot from stores that keep backups.
func (a *Adapter) Restore(ctx context.Context, opts ...scene.Option) (*scene.Graph, *CardDesign, error) {
	br, ok := a.store.(interface {
		LatestBackup(key string) ([]byte, error)
	})
	if !ok {
		return nil, nil, ErrNoBackup
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	data, err := br.LatestBackup(a.opts.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoBackup, err)
	}
	return a.decode(a.opts.Key, data, opts)
}

// Reset removes the slot and its autosave.
func (a *Adapter) Reset(ctx context.Context) error {
	for _, k := range []string{a.opts.Key, a.opts.Key + autosaveSuffix} {
		if err := a.store.Delete(ctx, k); err != nil {
			return &StorageError{Op: "delete", Key: k, Err: err}
		}
	}
	return nil
}

func (a *Adapter) decode(key string, data []byte, opts []scene.Option) (*scene.Graph, *CardDesign, error) {
	d, err := decodeDesign(key, data)
	if err != nil {
		a.log.Warn("stored design unreadable", slog.String("key", key), slog.Any("err", err))
		return nil, nil, err
	}
	g, err := scene.Deserialize(d.JSON,
		scene.WithFreshIdentities(),
		scene.WithDefaultSize(a.opts.CanvasWidth, a.opts.CanvasHeight),
		scene.WithGraphOptions(opts...))
	if err != nil {
		return nil, nil, &CorruptDesignError{Key: key, Reason: "scene", Err: err}
	}
	return g, &d, nil
}

// decodeDesign validates data against the design schema and unwraps the
// envelope. A bare scene document is wrapped in a synthetic envelope.
func decodeDesign(key string, data []byte) (CardDesign, error) {
	schema, err := designSchema()
	if err != nil {
		return CardDesign{}, fmt.Errorf("load design schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return CardDesign{}, &CorruptDesignError{Key: key, Reason: "not JSON", Err: err}
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return CardDesign{}, &CorruptDesignError{Key: key, Reason: "schema: " + strings.Join(msgs, "; ")}
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return CardDesign{}, &CorruptDesignError{Key: key, Reason: "not JSON", Err: err}
	}
	if _, ok := probe["scene"]; !ok {
		return CardDesign{Name: DefaultName, JSON: json.RawMessage(data)}, nil
	}
	var d CardDesign
	if err := json.Unmarshal(data, &d); err != nil {
		return CardDesign{}, &CorruptDesignError{Key: key, Reason: "envelope", Err: err}
	}
	return d, nil
}
