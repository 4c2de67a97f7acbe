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
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	BackupsDirName = "backups"
	// MaxBackups is the number of previous versions kept per key.
	MaxBackups = 5
)

// FileStore keeps one JSON file per key in Dir. Writes go to a temp file that
// is renamed over the target, and the previous file is copied to a
// timestamped backup first.
type FileStore struct {
	Dir string
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file store: directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{Dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.Dir, key+".json"), nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return b, true, nil
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	bdir := filepath.Join(s.Dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(p); statErr == nil {
		stamp := s.now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.json.%s.bak", key, stamp))
		if cerr := copyFile(p, bpath); cerr != nil {
			return fmt.Errorf("backup current design: %w", cerr)
		}
		s.pruneBackups(key)
	}
	temp := filepath.Join(s.Dir, fmt.Sprintf(".%s.tmp-%d-%d", key, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", werr)
	}
	if rerr := os.Rename(temp, p); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace design: %w", rerr)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Backups lists the backup files for key, oldest first.
func (s *FileStore) Backups(key string) []string {
	ents, err := os.ReadDir(filepath.Join(s.Dir, BackupsDirName))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, key+".json.") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(s.Dir, BackupsDirName, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out
}

// LatestBackup returns the newest backup of key.
func (s *FileStore) LatestBackup(key string) ([]byte, error) {
	bs := s.Backups(key)
	if len(bs) == 0 {
		return nil, errors.New("no backups found")
	}
	b, err := os.ReadFile(bs[len(bs)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	return b, nil
}

func (s *FileStore) pruneBackups(key string) {
	bs := s.Backups(key)
	for len(bs) > MaxBackups {
		_ = os.Remove(bs[0])
		bs = bs[1:]
	}
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
