// SPDX-License-Identifier: MPL-2.0

package cachestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invowk/modload/pkg/program"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

const (
	// HeaderSize is the number of bytes in front of the program body.
	HeaderSize = 8

	// mtimeOffset is the offset of the source mtime within the header.
	mtimeOffset = 4
)

var (
	// ErrStale is returned when a cache header does not match the current
	// format or the expected source mtime. It is never shown to users.
	ErrStale = errors.New("stale cache")
	// ErrBadFormat is returned when a cache body is not a valid program.
	ErrBadFormat = errors.New("bad cache format")
)

type (
	// Header is the fixed-size prefix of every cache file.
	Header struct {
		Magic       uint32
		SourceMTime uint32
	}

	// Store reads and writes cache files.
	Store struct {
		fs    afero.Fs
		magic uint32
		log   *log.Logger
	}

	// Option configures a Store.
	Option func(*Store)
)

// WithLogger sets the logger that receives cache trace output.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMagic overrides the format tag. Only tests need this.
func WithMagic(m uint32) Option {
	return func(s *Store) { s.magic = m }
}

// New creates a Store over fs.
func New(fs afero.Fs, opts ...Option) *Store {
	s := &Store{
		fs:    fs,
		magic: program.Magic,
		log:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Magic returns the format tag this store reads and writes.
func (s *Store) Magic() uint32 { return s.magic }

// ReadValid returns the cached body at path if its header carries the
// current magic and expectedMTime. A header mismatch yields ErrStale and a
// body that does not decode yields ErrBadFormat. A missing file yields an
// error matching fs.ErrNotExist.
func (s *Store) ReadValid(path string, expectedMTime uint32) (*program.Program, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only handle

	hdr, err := readHeader(f)
	if err != nil {
		s.log.Debug("# truncated header", "path", path)
		return nil, fmt.Errorf("%s: %w", path, ErrStale)
	}
	if hdr.Magic != s.magic {
		s.log.Debug("# bad magic", "path", path)
		return nil, fmt.Errorf("%s: %w", path, ErrStale)
	}
	if hdr.SourceMTime != expectedMTime {
		s.log.Debug("# bad mtime", "path", path)
		return nil, fmt.Errorf("%s: %w", path, ErrStale)
	}

	prog, err := readBody(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrBadFormat, err)
	}
	s.log.Debug("# matches", "path", path)
	return prog, nil
}

// ReadCompiled reads a cache file that has no live source to compare
// against. Only the magic is checked; any problem yields ErrBadFormat.
func (s *Store) ReadCompiled(path string) (*program.Program, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only handle

	hdr, err := readHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: truncated header", path, ErrBadFormat)
	}
	if hdr.Magic != s.magic {
		return nil, fmt.Errorf("%s: %w: bad magic %#08x", path, ErrBadFormat, hdr.Magic)
	}

	prog, err := readBody(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrBadFormat, err)
	}
	return prog, nil
}

// ReadHeader returns the header of the cache file at path.
func (s *Store) ReadHeader(path string) (Header, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close() //nolint:errcheck // read-only handle

	hdr, err := readHeader(f)
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w: truncated header", path, ErrBadFormat)
	}
	return hdr, nil
}

// Write stores prog at path for a source with the given mtime.
//
// The header is first written with a zero mtime. The real mtime is filled
// in only after the whole body has been written, so a file cut short at any
// point never matches a real source. On failure the partial file is removed
// and the error returned; callers treat it as advisory.
func (s *Store) Write(prog *program.Program, path string, sourceMTime uint32) error {
	body, err := program.Encode(prog)
	if err != nil {
		return err
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		s.log.Debug("# can't create", "path", path, "err", err)
		return fmt.Errorf("create cache: %w", err)
	}

	if err := s.writeFile(f, body, sourceMTime); err != nil {
		_ = f.Close()          // best-effort; the write error takes precedence
		_ = s.fs.Remove(path) // best-effort cleanup of the partial file
		s.log.Debug("# can't write", "path", path, "err", err)
		return err
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(path) // best-effort cleanup of the partial file
		return fmt.Errorf("close cache: %w", err)
	}

	s.log.Debug("# wrote", "path", path)
	return nil
}

func (s *Store) writeFile(f afero.File, body []byte, sourceMTime uint32) error {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[:mtimeOffset], s.magic)
	if _, err := f.Write(hdr[:]); err != nil {
		return fmt.Errorf("write cache header: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("write cache body: %w", err)
	}

	if _, err := f.Seek(mtimeOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek cache header: %w", err)
	}
	var mtime [4]byte
	binary.LittleEndian.PutUint32(mtime[:], sourceMTime)
	if _, err := f.Write(mtime[:]); err != nil {
		return fmt.Errorf("write cache mtime: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync cache: %w", err)
	}
	return nil
}

// SourceMTime returns the modification time of path in the resolution
// stored in cache headers.
func SourceMTime(fs afero.Fs, path string) (uint32, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint32(info.ModTime().Unix()), nil //nolint:gosec // truncation is part of the header format
}

func readHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Header{
		Magic:       binary.LittleEndian.Uint32(buf[:mtimeOffset]),
		SourceMTime: binary.LittleEndian.Uint32(buf[mtimeOffset:]),
	}, nil
}

func readBody(r io.Reader) (*program.Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return program.Decode(data)
}
