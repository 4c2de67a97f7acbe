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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardstudio/internal/config"
)

func exerciseStore(t *testing.T, s DesignStore) {
	t.Helper()
	ctx := context.Background()
	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("Get on empty store = ok %v, err %v", ok, err)
	}
	if err := s.Put(ctx, "k", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "k", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != `{"v":2}` {
		t.Fatalf("Get = %q, %v, %v", got, ok, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete absent key: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("key still present after Delete")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, s)
	if _, _, err := s.Get(context.Background(), "../escape"); err == nil {
		t.Fatalf("path traversal key accepted")
	}
}

func TestFileStoreBackupsAndPruning(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Second) }
	ctx := context.Background()
	for i := 0; i < MaxBackups+3; i++ {
		if err := s.Put(ctx, "card", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	if got := len(s.Backups("card")); got != MaxBackups {
		t.Fatalf("backups = %d, want %d", got, MaxBackups)
	}
	latest, err := s.LatestBackup("card")
	if err != nil {
		t.Fatalf("LatestBackup: %v", err)
	}
	if want := byte('a' + MaxBackups + 1); latest[0] != want {
		t.Fatalf("latest backup = %q, want %q", latest, want)
	}
	ents, _ := os.ReadDir(dir)
	for _, e := range ents {
		if filepath.Ext(e.Name()) != ".json" && e.Name() != BackupsDirName {
			t.Fatalf("leftover file %s", e.Name())
		}
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "designs.sqlite")
	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	exerciseStore(t, s)
	ctx := context.Background()
	if err := s.Put(ctx, "keep", []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })
	got, ok, err := s2.Get(ctx, "keep")
	if err != nil || !ok || string(got) != "persisted" {
		t.Fatalf("after reopen Get = %q, %v, %v", got, ok, err)
	}
	v, err := s2.SchemaVersion(ctx)
	if err != nil || v != schemaVersion {
		t.Fatalf("schema version = %d, %v", v, err)
	}
}

func TestSQLiteStoreRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "designs.sqlite")
	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE version SET schema=? WHERE id=1`, schemaVersion+1); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSQLiteStore(path); !errors.Is(err, ErrSchemaTooNew) {
		t.Fatalf("reopen err = %v, want ErrSchemaTooNew", err)
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, cfg := range []config.StorageConfig{
		{Backend: "memory"},
		{Backend: "file", Path: filepath.Join(dir, "files")},
		{Backend: "sqlite", Path: filepath.Join(dir, "d.sqlite")},
	} {
		s, err := OpenStore(cfg)
		if err != nil {
			t.Fatalf("OpenStore(%s): %v", cfg.Backend, err)
		}
		_ = s.Close()
	}
	if _, err := OpenStore(config.StorageConfig{Backend: "s3"}); err == nil {
		t.Fatalf("unknown backend accepted")
	}
	if _, err := OpenStore(config.StorageConfig{Backend: "file"}); err == nil {
		t.Fatalf("file backend without path accepted")
	}
}
