// Package iniconf reads and overrides single keys of INI configuration files.
//
// Overrides never touch the original file: the rewritten configuration is
// written to a temporary file that lives until the caller closes it.
package iniconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-ini/ini"
)

// Section and key holding the simulator's output prefix.
const (
	OutputSection = "other"
	OutputKey     = "output_prefix"
)

var (
	// ErrSectionNotFound is returned when the requested section is absent.
	ErrSectionNotFound = errors.New("section not found")
	// ErrKeyNotFound is returned when the requested key is absent.
	ErrKeyNotFound = errors.New("key not found")
)

func load(path string) (*ini.File, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		// Values are paths; a ';' or '#' inside them is data.
		IgnoreInlineComment: true,
		// The copy handed to the simulator must carry every other value
		// exactly as written, quotes included.
		PreserveSurroundedQuote: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return f, nil
}

// Get returns the value of key in section of the INI file at path.
func Get(path, section, key string) (string, error) {
	f, err := load(path)
	if err != nil {
		return "", err
	}
	sec, err := f.GetSection(section)
	if err != nil {
		return "", fmt.Errorf("%s: %w: [%s]", path, ErrSectionNotFound, section)
	}
	if !sec.HasKey(key) {
		return "", fmt.Errorf("%s: %w: [%s] %s", path, ErrKeyNotFound, section, key)
	}
	return sec.Key(key).String(), nil
}

// OutputPrefix returns the simulator output prefix configured in path.
func OutputPrefix(path string) (string, error) {
	return Get(path, OutputSection, OutputKey)
}

// Temp is a rewritten copy of a configuration file.
type Temp struct {
	path string
	once sync.Once
	err  error
}

// Path returns the location of the temporary file.
func (t *Temp) Path() string { return t.path }

// Close removes the temporary file. It is safe to call more than once.
func (t *Temp) Close() error {
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.err = fmt.Errorf("removing temporary config %s: %w", t.path, err)
		}
	})
	return t.err
}

// Override writes a copy of the INI file at path to a temporary file in
// which section.key is set to value. The section and key are created when
// absent. The caller must Close the returned Temp.
func Override(path, section, key, value string) (*Temp, error) {
	return OverrideIn("", path, section, key, value)
}

// OverrideIn is like Override but creates the temporary file in dir.
// An empty dir means the system temporary directory.
func OverrideIn(dir, path, section, key, value string) (*Temp, error) {
	f, err := load(path)
	if err != nil {
		return nil, err
	}
	f.Section(section).Key(key).SetValue(value)

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	pattern := strings.TrimSuffix(base, ext) + "-*" + ext

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("creating temporary config for %s: %w", path, err)
	}
	t := &Temp{path: tmp.Name()}

	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = t.Close()
		return nil, fmt.Errorf("writing temporary config for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("writing temporary config for %s: %w", path, err)
	}
	return t, nil
}

// OverrideOutputPrefix is Override for the simulator output prefix.
func OverrideOutputPrefix(path, prefix string) (*Temp, error) {
	return Override(path, OutputSection, OutputKey, prefix)
}
