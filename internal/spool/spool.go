// Package spool stores downloaded voice messages on disk for the duration of a
// single request. Every file gets a unique name so concurrent requests never
// share a path.
package spool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"aide/internal/fault"
)

var ErrTooLarge = errors.New("voice message too large")

type Spool struct {
	dir      string
	maxBytes int64
}

func New(dir string, maxBytes int64) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating spool dir: %w", err)
	}
	return &Spool{dir: dir, maxBytes: maxBytes}, nil
}

// Write copies r into a new file named voice-<uuid><ext>. The caller must call
// Remove on the returned file once the request is done.
func (s *Spool) Write(r io.Reader, ext string) (*File, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path := filepath.Join(s.dir, "voice-"+uuid.NewString()+strings.ToLower(ext))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating spool file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing spool file: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		os.Remove(path)
		return nil, fault.Input("spool", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes))
	}

	return &File{Path: path, Size: n}, nil
}

type File struct {
	Path string
	Size int64
}

func (f *File) Remove() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
