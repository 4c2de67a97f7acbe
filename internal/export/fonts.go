/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"cardstudio/internal/scene"
)

// FontLibrary maps font families to parsed OpenType fonts. Families without a
// loaded file use a bundled Go font of similar width. It is safe for
// concurrent use; faces it hands out are not.
type FontLibrary struct {
	mu    sync.Mutex
	fonts map[scene.FontFamily]*opentype.Font
	faces map[faceKey]font.Face
}

type faceKey struct {
	family scene.FontFamily
	size   int
}

// NewFontLibrary parses the bundled Go fonts and assigns them to every
// supported family.
func NewFontLibrary() (*FontLibrary, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse goregular: %w", err)
	}
	medium, err := opentype.Parse(gomedium.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse gomedium: %w", err)
	}
	mono, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse gomono: %w", err)
	}
	fl := &FontLibrary{fonts: make(map[scene.FontFamily]*opentype.Font), faces: make(map[faceKey]font.Face)}
	for _, fam := range scene.Families() {
		switch fam {
		case scene.CourierNew:
			fl.fonts[fam] = mono
		case scene.Verdana, scene.Georgia:
			fl.fonts[fam] = medium
		default:
			fl.fonts[fam] = regular
		}
	}
	return fl, nil
}

// LoadTTF replaces the font used for family with the file at path.
func (fl *FontLibrary) LoadTTF(family scene.FontFamily, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.fonts[family] = f
	for k := range fl.faces {
		if k.family == family {
			delete(fl.faces, k)
		}
	}
	return nil
}

// LoadDir loads "<Family>.ttf" or "<Family>.otf" files from dir, e.g.
// "Times New Roman.ttf". It returns how many families were replaced.
func (fl *FontLibrary) LoadDir(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read font dir: %w", err)
	}
	n := 0
	for _, e := range ents {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		fam := scene.FontFamily(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if !fam.Valid() {
			continue
		}
		if err := fl.LoadTTF(fam, filepath.Join(dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Face returns a cached face for family at size pixels (72 DPI).
func (fl *FontLibrary) Face(family scene.FontFamily, size int) (font.Face, error) {
	if size <= 0 {
		size = scene.DefaultFontSize
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	key := faceKey{family: family, size: size}
	if f, ok := fl.faces[key]; ok {
		return f, nil
	}
	ot, ok := fl.fonts[family]
	if !ok {
		ot, ok = fl.fonts[scene.DefaultFont]
	}
	if !ok {
		return nil, fmt.Errorf("no font for family %q", family)
	}
	face, err := opentype.NewFace(ot, &opentype.FaceOptions{Size: float64(size), DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("face %s %d: %w", family, size, err)
	}
	fl.faces[key] = face
	return face, nil
}
