package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const appName = "bizassist"

// ConfigBackend abstracts persistent config storage. Keys are "section.name".
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
}

// xdgDir resolves an XDG base directory, or the given path under the home
// directory when the variable is unset. It returns "" when neither is known.
func xdgDir(env string, homeRel ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append([]string{home}, homeRel...)...)
}

func defaultDataDir() string {
	base := xdgDir("XDG_DATA_HOME", ".local", "share")
	if base == "" {
		return appName + "-data"
	}
	return filepath.Join(base, appName)
}

func configFilePath() string {
	base := xdgDir("XDG_CONFIG_HOME", ".config")
	if base == "" {
		base = "."
	}
	return filepath.Join(base, appName, "config.json")
}

// fileBackend stores config as JSON grouped by section:
//
//	{"server": {"port": 4000}, "datastore": {"driver": "sqlite"}}
type fileBackend struct {
	path     string
	sections map[string]map[string]any
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, sections: make(map[string]map[string]any)}
	if err := b.load(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v. Using default values.\n", err)
		b.sections = make(map[string]map[string]any)
	}
	return b
}

func splitKey(key string) (section, name string, err error) {
	section, name, ok := strings.Cut(key, ".")
	if !ok || section == "" || name == "" {
		return "", "", fmt.Errorf("config key %q is not of the form section.name", key)
	}
	return section, name, nil
}

func (b *fileBackend) load() error {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", b.path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&b.sections); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", b.path, err)
	}
	if b.sections == nil {
		b.sections = make(map[string]map[string]any)
	}
	return nil
}

// save replaces the file atomically through a temp file in the same directory.
func (b *fileBackend) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.sections, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting config permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *fileBackend) lookup(key string) (any, bool, error) {
	section, name, err := splitKey(key)
	if err != nil {
		return nil, false, err
	}
	v, ok := b.sections[section][name]
	return v, ok, nil
}

func (b *fileBackend) put(key string, v any) error {
	section, name, err := splitKey(key)
	if err != nil {
		return err
	}
	if b.sections[section] == nil {
		b.sections[section] = make(map[string]any)
	}
	b.sections[section][name] = v
	return b.save()
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok, err := b.lookup(key)
	if err != nil || !ok {
		return "", false, err
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case json.Number:
		return val.String(), true, nil
	default:
		return fmt.Sprintf("%v", val), true, nil
	}
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok, err := b.lookup(key)
	if err != nil || !ok {
		return 0, false, err
	}
	var raw string
	switch val := v.(type) {
	case int:
		return val, true, nil
	case json.Number:
		raw = val.String()
	case string:
		raw = val
	default:
		return 0, true, fmt.Errorf("%s: expected an integer, got %T", key, v)
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return i, true, nil
}

func (b *fileBackend) SetString(key, val string) error {
	return b.put(key, val)
}

func (b *fileBackend) SetInt(key string, val int) error {
	return b.put(key, val)
}
