/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps full scene snapshots for linear undo.
package history

import (
	"fmt"
	"sync"
	"time"
)

// Snapshot is one serialized scene state. Blob content is opaque to the
// manager; its size is accounted as len(Blob).
type Snapshot struct {
	Blob []byte
	TS   time.Time
}

// Serializer produces the state to record; *scene.Graph satisfies it.
type Serializer interface {
	Serialize() ([]byte, error)
}

// Config controls depth and memory caps.
type Config struct {
	// MaxEntries limits the number of snapshots kept (0 means unlimited).
	MaxEntries int
	// MaxBytes is a soft cap; the oldest entries are pruned when exceeded.
	MaxBytes int
	// Now stamps snapshots; defaults to time.Now.
	Now func() time.Time
}

// Manager is a linear undo list with a cursor. entries[cursor] always holds the
// state after the most recently recorded operation. Recording after an undo
// discards everything past the cursor; there is no redo.
// It is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	entries    []Snapshot
	cursor     int
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, cursor: -1}
}

// Record serializes src and appends it as the newest state. On error nothing
// changes.
func (m *Manager) Record(src Serializer) error {
	blob, err := src.Serialize()
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	m.Push(Snapshot{Blob: blob, TS: m.cfg.Now()})
	return nil
}

// Push appends s after the cursor, dropping any entries beyond it.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor+1 < len(m.entries) {
		for _, dropped := range m.entries[m.cursor+1:] {
			m.totalBytes -= len(dropped.Blob)
		}
		clear(m.entries[m.cursor+1:])
		m.entries = m.entries[:m.cursor+1]
	}
	m.entries = append(m.entries, s)
	m.totalBytes += len(s.Blob)
	m.cursor = len(m.entries) - 1
	m.enforceCapsLocked()
}

// Undo steps back one entry and returns the state to restore. At the oldest
// entry it returns false and changes nothing.
func (m *Manager) Undo() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor <= 0 {
		return Snapshot{}, false
	}
	m.cursor--
	return m.entries[m.cursor], true
}

// Current returns the entry under the cursor.
func (m *Manager) Current() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor < 0 {
		return Snapshot{}, false
	}
	return m.entries[m.cursor], true
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor > 0
}

// Cursor returns the index of the current entry, -1 when empty.
func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, entries int, cursor int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.entries), m.cursor
}

// Reset drops all entries.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.cursor = -1
	m.totalBytes = 0
}

// enforceCapsLocked prunes from the oldest end. The entry under the cursor is
// never pruned.
func (m *Manager) enforceCapsLocked() {
	drop := 0
	for m.cursor-drop > 0 {
		over := m.cfg.MaxEntries > 0 && len(m.entries)-drop > m.cfg.MaxEntries
		if !over && m.totalBytes <= m.cfg.MaxBytes {
			break
		}
		m.totalBytes -= len(m.entries[drop].Blob)
		drop++
	}
	if drop == 0 {
		return
	}
	m.entries = append([]Snapshot(nil), m.entries[drop:]...)
	m.cursor -= drop
}
