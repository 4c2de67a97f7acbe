/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"strings"

	"cardstudio/internal/scene"
)

// Key is a keyboard event as delivered by the host.
type Key struct {
	Name        string // "Delete", "Backspace", "z", ...
	Ctrl, Meta  bool
	Shift       bool
	TextEditing bool // a text object is in inline edit mode
}

// HandleKey runs the shortcut bound to k and reports whether one fired.
// Ctrl/Cmd+Z undoes; Delete and Backspace remove the selection unless text
// is being edited; Ctrl/Cmd+D duplicates; Ctrl/Cmd+] and [ reorder.
func (s *Session) HandleKey(k Key) bool {
	if s.closed {
		return false
	}
	mod := k.Ctrl || k.Meta
	switch name := strings.ToLower(k.Name); {
	case mod && name == "z" && !k.Shift:
		return s.Undo()
	case !mod && (name == "delete" || name == "backspace"):
		if k.TextEditing {
			return false
		}
		if _, ok := s.sel.Selected(); !ok {
			return false
		}
		return s.DeleteSelected() > 0
	case mod && name == "d":
		_, err := s.Duplicate()
		return err == nil
	case mod && name == "]":
		return s.Reorder(scene.Forward)
	case mod && name == "[":
		return s.Reorder(scene.Backward)
	}
	return false
}
