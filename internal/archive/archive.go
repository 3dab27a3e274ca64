// Package archive provides read access to password-protected archives.
//
// It is the only place that knows about archive formats. The search code
// sees an Archive (metadata captured once at open time) and creates
// independent Handles from it to decrypt candidate streams.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shirou/gopsutil/mem"

	"github.com/lamim/zipcrack/pkg/models"
)

var (
	// ErrCannotOpen is returned when the archive file cannot be read or parsed
	ErrCannotOpen = errors.New("cannot open archive")
	// ErrUnsupportedFormat is returned for files that are neither zip nor 7z
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrNoSuchEntry is returned for an entry identifier outside the archive
	ErrNoSuchEntry = errors.New("no such entry")
	// ErrBadPassword is returned when the password is rejected while opening a stream
	ErrBadPassword = errors.New("bad password")
	// ErrUnsupportedCipher is returned when the entry uses an encryption or
	// compression method the reader cannot handle
	ErrUnsupportedCipher = errors.New("unsupported cipher")
)

// Format names
const (
	FormatZip      = "zip"
	FormatSevenZip = "7z"
)

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	sevenZipMagic = []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}
)

// Handle is an independent read handle on an archive. A Handle is not safe
// for concurrent use; each worker owns its own.
type Handle interface {
	// OpenEncrypted opens the content stream of entry id, decrypting it with
	// password. Returns ErrBadPassword or ErrUnsupportedCipher when the
	// reader refuses the key outright.
	OpenEncrypted(id int, password string) (io.ReadCloser, error)
	Close() error
}

// Archive is an opened archive with its entry metadata
type Archive interface {
	Path() string
	Format() string
	// Entries lists all entries in archive order. Zero entries is valid.
	Entries() []models.Entry
	// Stat returns the metadata of one entry or ErrNoSuchEntry
	Stat(id int) (models.Entry, error)
	// NewHandle opens a fresh read handle sharing no state with others
	NewHandle() (Handle, error)
	Close() error
}

// Options controls how an archive is opened
type Options struct {
	// Preload reads the whole archive into memory so handles never touch the disk
	Preload bool
	// PreloadShare caps preloading to 1/PreloadShare of available memory
	PreloadShare uint64
	Logger       *slog.Logger
}

// Option configures Open
type Option func(*Options)

// WithPreload enables or disables loading the archive into memory
func WithPreload(enabled bool) Option {
	return func(o *Options) {
		o.Preload = enabled
	}
}

// WithLogger sets the logger used while opening
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Open detects the archive format from its magic bytes and reads its metadata
func Open(path string, opts ...Option) (Archive, error) {
	o := Options{
		Preload:      true,
		PreloadShare: 4,
		Logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	src, err := newSource(path, o)
	if err != nil {
		return nil, err
	}

	format, err := detectFormat(src)
	if err != nil {
		return nil, err
	}

	o.Logger.Debug("Opening archive",
		"path", path,
		"format", format,
		"size", src.size,
		"preloaded", src.data != nil)

	var a Archive
	switch format {
	case FormatZip:
		a, err = openZip(src)
	case FormatSevenZip:
		a, err = openSevenZip(src)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// source is either an in-memory copy of the archive or its path on disk
type source struct {
	path string
	data []byte
	size int64
}

func newSource(path string, o Options) (*source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrCannotOpen, path)
	}

	src := &source{path: path, size: info.Size()}
	if !o.Preload {
		return src, nil
	}

	if !fitsInMemory(info.Size(), o.PreloadShare) {
		o.Logger.Warn("Archive too large to preload, reading from disk",
			"path", path,
			"size", info.Size())
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	src.data = data
	src.size = int64(len(data))
	return src, nil
}

// fitsInMemory reports whether size bytes stay under 1/share of available memory
func fitsInMemory(size int64, share uint64) bool {
	if share == 0 {
		share = 1
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		// Unknown memory: preload only modest files
		return size <= 256<<20
	}
	return uint64(size) <= vm.Available/share
}

// readerAt returns a fresh random-access reader over the archive bytes
func (s *source) readerAt() (io.ReaderAt, io.Closer, error) {
	if s.data != nil {
		return bytes.NewReader(s.data), nopCloser{}, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func detectFormat(src *source) (string, error) {
	ra, closer, err := src.readerAt()
	if err != nil {
		return "", err
	}
	defer closer.Close()

	head := make([]byte, len(sevenZipMagic))
	n, err := ra.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmptyMagic):
		return FormatZip, nil
	case bytes.HasPrefix(head, sevenZipMagic):
		return FormatSevenZip, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, src.path)
}

func statEntry(entries []models.Entry, id int) (models.Entry, error) {
	if id < 0 || id >= len(entries) {
		return models.Entry{}, fmt.Errorf("%w: %d (archive has %d entries)", ErrNoSuchEntry, id, len(entries))
	}
	return entries[id], nil
}
