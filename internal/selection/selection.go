/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package selection tracks the selected objects and applies property edits
// to them.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"cardstudio/internal/history"
	applog "cardstudio/internal/log"
	"cardstudio/internal/scene"
)

// Recorder receives one snapshot per completed mutation.
type Recorder interface {
	Record(src history.Serializer) error
}

// Change describes the selection after it changed. ID is empty when nothing
// is selected. Props holds the editable values of the primary object.
type Change struct {
	ID    string
	Kind  string
	Props map[string]any
	Group []string
}

var errUnsupported = errors.New("unsupported property")

// Controller holds the primary selection plus any group members. It mutates
// the graph only through ApplyProperty, DeleteSelected and DuplicateSelected.
type Controller struct {
	g       *scene.Graph
	rec     Recorder
	primary string
	group   []string
	subs    map[int]func(Change)
	nextSub int
	log     *slog.Logger
}

func New(g *scene.Graph, rec Recorder) *Controller {
	return &Controller{g: g, rec: rec, subs: map[int]func(Change){}, log: applog.WithComponent("selection")}
}

// Subscribe registers fn for selection changes. Calling the returned func
// removes it.
func (c *Controller) Subscribe(fn func(Change)) (cancel func()) {
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() { delete(c.subs, id) }
}

// Selected returns the primary selection.
func (c *Controller) Selected() (string, bool) { return c.primary, c.primary != "" }

// Group returns the primary followed by the other selected ids.
func (c *Controller) Group() []string {
	if c.primary == "" {
		return nil
	}
	return append([]string{c.primary}, c.group...)
}

// Select makes id the only selected object.
func (c *Controller) Select(id string) bool {
	if !c.g.Contains(id) {
		return false
	}
	c.primary, c.group = id, nil
	c.notify()
	return true
}

// SelectMany selects every existing id; the first becomes primary. It returns
// the number of objects selected.
func (c *Controller) SelectMany(ids ...string) int {
	var keep []string
	for _, id := range ids {
		if c.g.Contains(id) && !slices.Contains(keep, id) {
			keep = append(keep, id)
		}
	}
	if len(keep) == 0 {
		c.Clear()
		return 0
	}
	c.primary, c.group = keep[0], keep[1:]
	c.notify()
	return len(keep)
}

// SelectAt selects the topmost object under the point, or clears the
// selection when there is none.
func (c *Controller) SelectAt(x, y float64) bool {
	id, ok := c.g.ObjectAt(x, y)
	if !ok {
		c.Clear()
		return false
	}
	return c.Select(id)
}

// Clear empties the selection.
func (c *Controller) Clear() {
	c.primary, c.group = "", nil
	c.notify()
}

// Refresh drops ids that no longer exist, e.g. after an undo, and republishes
// the selection.
func (c *Controller) Refresh() {
	c.group = slices.DeleteFunc(c.group, func(id string) bool { return !c.g.Contains(id) })
	if c.primary != "" && !c.g.Contains(c.primary) {
		c.primary = ""
		if len(c.group) > 0 {
			c.primary, c.group = c.group[0], c.group[1:]
		}
	}
	c.notify()
}

// ApplyProperty sets one property on the primary selection. Unsupported names
// and invalid values are logged and leave the graph unchanged.
func (c *Controller) ApplyProperty(name string, value any) bool {
	l := applog.WithOperation(c.log, "apply_property").With(slog.String("property", name))
	if c.primary == "" {
		l.Debug("no selection")
		return false
	}
	err := c.g.Update(c.primary, func(o scene.Object) error { return apply(o, name, value) })
	if err != nil {
		if errors.Is(err, errUnsupported) {
			l.Warn("property not supported", slog.String("id", c.primary), slog.Any("value", value))
		} else {
			l.Warn("property rejected", slog.String("id", c.primary), slog.Any("err", err))
		}
		return false
	}
	c.record(l)
	c.notify()
	return true
}

// DeleteSelected removes the primary and group objects, clears the selection
// and records once. It returns how many objects were removed.
func (c *Controller) DeleteSelected() int {
	ids := c.Group()
	if len(ids) == 0 {
		return 0
	}
	n := c.g.RemoveMany(ids...)
	c.primary, c.group = "", nil
	if n > 0 {
		c.record(applog.WithOperation(c.log, "delete_selected"))
	}
	c.notify()
	return n
}

// DuplicateSelected copies the primary object, records once and selects the
// copy.
func (c *Controller) DuplicateSelected() (string, error) {
	if c.primary == "" {
		return "", scene.ErrNotFound
	}
	id, err := c.g.Duplicate(c.primary)
	if err != nil {
		return "", err
	}
	c.record(applog.WithOperation(c.log, "duplicate_selected"))
	c.Select(id)
	return id, nil
}

func (c *Controller) record(l *slog.Logger) {
	if c.rec == nil {
		return
	}
	if err := c.rec.Record(c.g); err != nil {
		l.Error("history record failed", slog.Any("err", err))
	}
}

func (c *Controller) notify() {
	ch := Change{Group: c.Group()}
	if c.primary != "" {
		if o, ok := c.g.Get(c.primary); ok {
			ch.ID, ch.Kind, ch.Props = c.primary, scene.KindOf(o), Props(o)
		}
	}
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := c.subs[id]; ok {
			fn(ch)
		}
	}
}

// Props returns the panel-editable values of o.
func Props(o scene.Object) map[string]any {
	switch v := o.(type) {
	case *scene.Text:
		return map[string]any{"text": v.Content, "fontFamily": string(v.Font), "fontSize": v.Size, "fill": string(v.Fill)}
	case *scene.Shape:
		return map[string]any{"fill": string(v.Fill), "opacity": v.Opacity}
	case *scene.Image:
		return map[string]any{"opacity": v.Opacity}
	}
	return nil
}

func apply(o scene.Object, name string, value any) error {
	b := o.Base()
	switch name {
	case "opacity":
		return setFloat(&b.Opacity, value)
	case "angle":
		return setFloat(&b.Angle, value)
	case "left":
		return setFloat(&b.X, value)
	case "top":
		return setFloat(&b.Y, value)
	}
	switch v := o.(type) {
	case *scene.Text:
		switch name {
		case "text":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("text: want string, got %T", value)
			}
			v.Content = s
			return nil
		case "fontSize":
			f, err := number(value)
			if err != nil {
				return err
			}
			if f != math.Trunc(f) || f < scene.MinFontSize || f > scene.MaxFontSize {
				return fmt.Errorf("fontSize %v out of range", f)
			}
			v.Size = int(f)
			return nil
		case "fontFamily":
			s, _ := value.(string)
			v.Font = scene.FontFamily(s)
			return nil
		case "fill":
			return setColor(&v.Fill, value)
		}
	case *scene.Shape:
		switch name {
		case "fill":
			return setColor(&v.Fill, value)
		case "width", "height":
			if v.Kind == scene.Circle {
				return errUnsupported
			}
			if name == "width" {
				return setFloat(&v.Width, value)
			}
			return setFloat(&v.Height, value)
		case "radius":
			if v.Kind != scene.Circle {
				return errUnsupported
			}
			return setFloat(&v.Radius, value)
		}
	case *scene.Image:
		if name == "scale" {
			return setFloat(&v.Scale, value)
		}
	}
	return errUnsupported
}

func setFloat(dst *float64, value any) error {
	f, err := number(value)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func setColor(dst *scene.Color, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("colour: want string, got %T", value)
	}
	c, err := scene.ParseColor(s)
	if err != nil {
		return err
	}
	*dst = c
	return nil
}

func number(value any) (float64, error) {
	switch n := value.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %T", value)
}
