/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config holds the user-editable Card Studio configuration.
// The YAML file lives in the per-user config directory; CARD_* environment
// variables are read-only overrides applied at load time.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EditorConfig controls the editing session defaults.
type EditorConfig struct {
	CanvasWidth     int    `yaml:"canvas_width"`
	CanvasHeight    int    `yaml:"canvas_height"`
	DefaultTemplate string `yaml:"default_template"`
	Language        string `yaml:"language"` // "en" | "ar"
	// ResizeDebounceMs is the quiet period before a pending canvas resize is applied.
	ResizeDebounceMs int `yaml:"resize_debounce_ms"`
}

// HistoryConfig bounds the undo history.
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
	MaxBytes   int `yaml:"max_bytes"`
}

// StorageConfig selects the design store backend.
type StorageConfig struct {
	Backend    string `yaml:"backend"` // memory | file | sqlite
	Path       string `yaml:"path"`    // directory (file) or database file (sqlite)
	SlotKey    string `yaml:"slot_key"`
	QuotaBytes int    `yaml:"quota_bytes"`
}

// ExportConfig tunes rendering output.
type ExportConfig struct {
	JPEGQuality    int    `yaml:"jpeg_quality"`
	ThumbnailWidth int    `yaml:"thumbnail_width"`
	FontDir        string `yaml:"font_dir"` // optional "<Family>.ttf" files replacing the bundled faces
}

type TemplatesConfig struct {
	File string `yaml:"file"` // optional YAML catalog with extra templates
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the root of config.yaml. Bump ConfigVersion on incompatible changes.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Editor        EditorConfig    `yaml:"editor"`
	History       HistoryConfig   `yaml:"history"`
	Storage       StorageConfig   `yaml:"storage"`
	Export        ExportConfig    `yaml:"export"`
	Templates     TemplatesConfig `yaml:"templates"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor: EditorConfig{
			CanvasWidth:      600,
			CanvasHeight:     400,
			DefaultTemplate:  "blank",
			Language:         "en",
			ResizeDebounceMs: 150,
		},
		History:   HistoryConfig{MaxEntries: 200, MaxBytes: 16 * 1024 * 1024},
		Storage:   StorageConfig{Backend: "file", Path: "", SlotKey: "cardDesign", QuotaBytes: 5 * 1024 * 1024},
		Export:    ExportConfig{JPEGQuality: 92, ThumbnailWidth: 200},
		Templates: TemplatesConfig{},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvCanvasWidth     = "CARD_CANVAS_WIDTH"
	EnvCanvasHeight    = "CARD_CANVAS_HEIGHT"
	EnvDefaultTemplate = "CARD_DEFAULT_TEMPLATE"
	EnvLanguage        = "CARD_LANGUAGE"
	EnvStorageBackend  = "CARD_STORAGE_BACKEND"
	EnvStoragePath     = "CARD_STORAGE_PATH"
	EnvStorageQuota    = "CARD_STORAGE_QUOTA_BYTES"
	EnvHistoryMax      = "CARD_HISTORY_MAX_ENTRIES"
	EnvTemplatesFile   = "CARD_TEMPLATES_FILE"
	EnvFontDir         = "CARD_FONT_DIR"
	EnvConfigFile      = "CARD_CONFIG_FILE"

	EnvLogLevel  = "CARD_LOG_LEVEL"
	EnvLogFormat = "CARD_LOG_FORMAT"
	EnvLogSource = "CARD_LOG_SOURCE"
	EnvLogFile   = "CARD_LOG_FILE"
)

// ConfigDir returns the per-user Card Studio directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "CardStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "CardStudio")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "cardstudio")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "cardstudio")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the config file path; CARD_CONFIG_FILE takes precedence.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config (if present), applies defaults and env overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit file path. A missing file is not an error;
// an unparsable one is reported but defaults are still returned.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			loadErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		loadErr = fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	fillStoragePath(&cfg)
	return cfg, loadErr
}

// Save writes cfg as YAML to the user config path.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Editor.CanvasWidth > 0 {
		dst.Editor.CanvasWidth = src.Editor.CanvasWidth
	}
	if src.Editor.CanvasHeight > 0 {
		dst.Editor.CanvasHeight = src.Editor.CanvasHeight
	}
	if s := strings.TrimSpace(src.Editor.DefaultTemplate); s != "" {
		dst.Editor.DefaultTemplate = s
	}
	if s := strings.ToLower(strings.TrimSpace(src.Editor.Language)); s != "" {
		dst.Editor.Language = s
	}
	if src.Editor.ResizeDebounceMs > 0 {
		dst.Editor.ResizeDebounceMs = src.Editor.ResizeDebounceMs
	}
	if src.History.MaxEntries > 0 {
		dst.History.MaxEntries = src.History.MaxEntries
	}
	if src.History.MaxBytes > 0 {
		dst.History.MaxBytes = src.History.MaxBytes
	}
	if s := strings.ToLower(strings.TrimSpace(src.Storage.Backend)); s != "" {
		dst.Storage.Backend = s
	}
	if s := strings.TrimSpace(src.Storage.Path); s != "" {
		dst.Storage.Path = s
	}
	if s := strings.TrimSpace(src.Storage.SlotKey); s != "" {
		dst.Storage.SlotKey = s
	}
	if src.Storage.QuotaBytes > 0 {
		dst.Storage.QuotaBytes = src.Storage.QuotaBytes
	}
	if src.Export.JPEGQuality > 0 {
		dst.Export.JPEGQuality = src.Export.JPEGQuality
	}
	if src.Export.ThumbnailWidth > 0 {
		dst.Export.ThumbnailWidth = src.Export.ThumbnailWidth
	}
	if s := strings.TrimSpace(src.Export.FontDir); s != "" {
		dst.Export.FontDir = s
	}
	if s := strings.TrimSpace(src.Templates.File); s != "" {
		dst.Templates.File = s
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if n, ok := envInt(EnvCanvasWidth); ok && n > 0 {
		cfg.Editor.CanvasWidth = n
	}
	if n, ok := envInt(EnvCanvasHeight); ok && n > 0 {
		cfg.Editor.CanvasHeight = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvDefaultTemplate)); v != "" {
		cfg.Editor.DefaultTemplate = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLanguage)); v != "" {
		cfg.Editor.Language = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageBackend)); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if n, ok := envInt(EnvStorageQuota); ok && n > 0 {
		cfg.Storage.QuotaBytes = n
	}
	if n, ok := envInt(EnvHistoryMax); ok && n > 0 {
		cfg.History.MaxEntries = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvTemplatesFile)); v != "" {
		cfg.Templates.File = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontDir)); v != "" {
		cfg.Export.FontDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// fillStoragePath points file/sqlite stores into the config dir when no path is set.
func fillStoragePath(cfg *AppConfig) {
	if cfg.Storage.Path != "" || cfg.Storage.Backend == "memory" {
		return
	}
	dir, err := ConfigDir()
	if err != nil {
		return
	}
	switch cfg.Storage.Backend {
	case "sqlite":
		cfg.Storage.Path = filepath.Join(dir, "designs.sqlite")
	default:
		cfg.Storage.Path = filepath.Join(dir, "designs")
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EnvOverrideFor reports the env var overriding the given dotted key, if set.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"editor.canvas_width":     EnvCanvasWidth,
		"editor.canvas_height":    EnvCanvasHeight,
		"editor.default_template": EnvDefaultTemplate,
		"editor.language":         EnvLanguage,
		"storage.backend":         EnvStorageBackend,
		"storage.path":            EnvStoragePath,
		"storage.quota_bytes":     EnvStorageQuota,
		"history.max_entries":     EnvHistoryMax,
		"templates.file":          EnvTemplatesFile,
		"export.font_dir":         EnvFontDir,
		"logging.level":           EnvLogLevel,
		"logging.format":          EnvLogFormat,
		"logging.source":          EnvLogSource,
		"logging.file":            EnvLogFile,
	}
	env, ok := names[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
