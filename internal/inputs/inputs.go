// Package inputs expands files and directories given on the command line
// into the ordered list of simulator configuration files to run.
package inputs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/deixis/simbatch/internal/logging"
	"go.uber.org/zap"
)

// DefaultExtension is the extension recognised as a configuration file.
const DefaultExtension = ".ini"

var (
	// ErrNoInputs is returned when no input was given at all.
	ErrNoInputs = errors.New("please specify at least one input")
	// ErrNotExist is returned when an input path does not exist.
	ErrNotExist = errors.New("input does not exist")
	// ErrUnsupportedInput is returned for inputs that are neither regular
	// files nor directories.
	ErrUnsupportedInput = errors.New("input is neither a file nor a directory")
)

// Options controls how inputs are resolved.
type Options struct {
	Extension string      // defaults to DefaultExtension
	Logger    *zap.Logger // receives one info entry per ignored path
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Configs []string `json:"configs"`           // configuration files, in resolution order
	Ignored []string `json:"ignored,omitempty"` // paths skipped because they are not configuration files
}

// Resolve expands items into configuration file paths. Files are kept when
// they carry the configuration extension; directories are listed one level
// deep in lexical order. Everything else is ignored and logged.
func Resolve(items []string, opts Options) (*Resolution, error) {
	if len(items) == 0 {
		return nil, ErrNoInputs
	}
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	log := logging.OrNop(opts.Logger)

	res := &Resolution{}
	seen := make(map[string]bool)
	add := func(path string) {
		key := filepath.Clean(path)
		if seen[key] {
			log.Debug("skipping duplicate config", zap.String("path", path))
			return
		}
		seen[key] = true
		res.Configs = append(res.Configs, path)
	}
	ignore := func(path, reason string) {
		log.Info("ignoring non-config input", zap.String("path", path), zap.String("reason", reason))
		res.Ignored = append(res.Ignored, path)
	}

	for _, item := range items {
		fi, err := os.Stat(item)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotExist, item)
			}
			return nil, fmt.Errorf("inspecting input %s: %w", item, err)
		}

		switch {
		case fi.Mode().IsRegular():
			if HasExtension(item, ext) {
				add(item)
			} else {
				ignore(item, "extension is not "+ext)
			}

		case fi.IsDir():
			entries, err := os.ReadDir(item)
			if err != nil {
				return nil, fmt.Errorf("listing input directory %s: %w", item, err)
			}
			// os.ReadDir returns entries sorted by file name.
			for _, e := range entries {
				path := filepath.Join(item, e.Name())
				if e.IsDir() {
					ignore(path, "nested directory")
					continue
				}
				if !HasExtension(e.Name(), ext) {
					ignore(path, "extension is not "+ext)
					continue
				}
				add(path)
			}

		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, item)
		}
	}

	return res, nil
}

// HasExtension reports whether path ends with ext and has a non-empty stem.
func HasExtension(path, ext string) bool {
	base := filepath.Base(path)
	return len(base) > len(ext) && strings.HasSuffix(base, ext)
}

// Name returns the configuration name of path: its base name with the
// extension removed.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
