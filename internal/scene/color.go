/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a hex colour, "#rrggbb" once parsed.
type Color string

const (
	White Color = "#ffffff"
	Black Color = "#000000"
)

// ParseColor accepts "#rgb", "#rrggbb" and "rgb(r, g, b)" and returns the
// lowercase "#rrggbb" form.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if inner, ok := strings.CutPrefix(s, "rgb("); ok && strings.HasSuffix(inner, ")") {
		parts := strings.Split(strings.TrimSuffix(inner, ")"), ",")
		if len(parts) != 3 {
			return "", fmt.Errorf("bad colour %q", s)
		}
		var out [3]uint8
		for i, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || v < 0 || v > 255 {
				return "", fmt.Errorf("bad colour %q", s)
			}
			out[i] = uint8(v)
		}
		return Color(fmt.Sprintf("#%02x%02x%02x", out[0], out[1], out[2])), nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || !isHex(hex) {
		return "", fmt.Errorf("bad colour %q", s)
	}
	switch len(hex) {
	case 3:
		return Color("#" + string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})), nil
	case 6:
		return Color("#" + hex), nil
	}
	return "", fmt.Errorf("bad colour %q", s)
}

// MustColor is ParseColor for literals.
func MustColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid reports whether c is "#rgb" or "#rrggbb" in either case.
func (c Color) Valid() bool {
	hex, ok := strings.CutPrefix(string(c), "#")
	return ok && (len(hex) == 3 || len(hex) == 6) && isHex(hex)
}

// RGBA converts c to an opaque colour. Invalid values map to black.
func (c Color) RGBA() color.NRGBA {
	n, err := ParseColor(string(c))
	if err != nil {
		return color.NRGBA{A: 0xff}
	}
	v, _ := strconv.ParseUint(string(n[1:]), 16, 32)
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
