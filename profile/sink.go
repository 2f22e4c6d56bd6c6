package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type writeOptions struct {
	prefix string
	indent string
}

// WriteOption configures WriteFile.
type WriteOption func(*writeOptions)

// WithIndent pretty-prints the export with the given prefix and indent.
func WithIndent(prefix, indent string) WriteOption {
	return func(o *writeOptions) {
		o.prefix = prefix
		o.indent = indent
	}
}

// Encode serializes doc to JSON text.
func Encode(doc *Document, opts ...WriteOption) ([]byte, error) {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if o.prefix != "" || o.indent != "" {
		enc.SetIndent(o.prefix, o.indent)
	}

	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode profile export: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteFile writes doc to path, replacing any existing file. Symlinks are
// followed. A regular or missing target is replaced through a temporary
// file in the target's directory, so it never holds a partial export and
// keeps its existing permissions. Any other existing target, such as a
// device or pipe, is opened and written directly.
func WriteFile(doc *Document, path string, opts ...WriteOption) error {
	if path == "" {
		return ErrEmptyOutputPath
	}

	data, err := Encode(doc, opts...)
	if err != nil {
		return err
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w %s: %w", ErrFileOpen, path, err)
		}

		// Missing target, or a symlink whose target does not exist yet.
		if info, lerr := os.Lstat(path); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			return writeDirect(path, data)
		}
		target = path
	}

	mode := fs.FileMode(0o644)

	info, err := os.Stat(target)
	switch {
	case err == nil && !info.Mode().IsRegular():
		return writeDirect(path, data)
	case err == nil:
		mode = info.Mode().Perm()
	}

	return replaceFile(path, target, data, mode)
}

func writeDirect(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrFileOpen, path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

func replaceFile(path, target string, data []byte, mode fs.FileMode) error {
	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrFileOpen, path, err)
	}

	tmpPath := tmp.Name()
	committed := false

	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}

	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("%w %s: %w", ErrFileOpen, path, err)
	}

	committed = true

	return nil
}
