package archive

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/bodgit/sevenzip"

	"github.com/lamim/zipcrack/pkg/models"
)

// 7z takes the password when the archive is opened, not per file, so a
// handle re-reads the header for every candidate.
type sevenZipArchive struct {
	src     *source
	entries []models.Entry
}

func openSevenZip(src *source) (*sevenZipArchive, error) {
	ra, closer, err := src.readerAt()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	r, err := sevenzip.NewReader(ra, src.size)
	if err != nil {
		// Encrypted headers also land here: without the password there is
		// no metadata to attack.
		return nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}

	// A second reader keyed with a different password tells encrypted
	// streams apart when there is no CRC to check against.
	var (
		alt      *sevenzip.Reader
		altTried bool
	)

	// 7z has no MAC: without a CRC a wrong key reads to EOF unnoticed, so
	// such entries are left unverifiable.
	entries := make([]models.Entry, 0, len(r.File))
	for i, f := range r.File {
		isDir := f.FileInfo().IsDir()
		encrypted := false
		if !isDir && f.UncompressedSize > 0 {
			if f.CRC32 == 0 && !altTried {
				altTried = true
				alt, _ = sevenzip.NewReaderWithPassword(ra, src.size, altPassword)
			}
			var altFile *sevenzip.File
			if alt != nil && i < len(alt.File) {
				altFile = alt.File[i]
			}
			encrypted = needsPassword(f, altFile)
		}

		entries = append(entries, models.Entry{
			ID:        i,
			Name:      f.Name,
			Size:      f.UncompressedSize,
			CRC32:     f.CRC32,
			HasCRC:    f.CRC32 != 0 || f.UncompressedSize == 0,
			Encrypted: encrypted,
			IsDir:     isDir,
			Method:    "7z",
		})
	}

	return &sevenZipArchive{src: src, entries: entries}, nil
}

// altPassword keys the comparison reader used by needsPassword
const altPassword = "\x00zipcrack"

// needsPassword tests an entry by decoding it without a password. Garbage
// from a keyless AES decoder can survive a short read, so the whole stream
// is checked against the stored CRC. Without a CRC the stream is compared
// with alt, the same entry decoded under another password.
func needsPassword(f, alt *sevenzip.File) bool {
	sum, ok := streamSum(f)
	if !ok {
		return true
	}
	if f.CRC32 != 0 {
		return sum != f.CRC32
	}
	if alt == nil {
		return false
	}
	altSum, ok := streamSum(alt)
	return !ok || altSum != sum
}

// streamSum decodes f and returns the CRC-32 of its content. ok is false
// when the stream cannot be read to its full size.
func streamSum(f *sevenzip.File) (sum uint32, ok bool) {
	rc, err := f.Open()
	if err != nil {
		return 0, false
	}
	defer rc.Close()

	hash := crc32.NewIEEE()
	n, err := io.Copy(hash, rc)
	if err != nil || uint64(n) != f.UncompressedSize {
		return 0, false
	}
	return hash.Sum32(), true
}

func (a *sevenZipArchive) Path() string { return a.src.path }

func (a *sevenZipArchive) Format() string { return FormatSevenZip }

func (a *sevenZipArchive) Entries() []models.Entry {
	return append([]models.Entry(nil), a.entries...)
}

func (a *sevenZipArchive) Stat(id int) (models.Entry, error) {
	return statEntry(a.entries, id)
}

func (a *sevenZipArchive) Close() error { return nil }

func (a *sevenZipArchive) NewHandle() (Handle, error) {
	ra, closer, err := a.src.readerAt()
	if err != nil {
		return nil, err
	}
	return &sevenZipHandle{ra: ra, size: a.src.size, closer: closer}, nil
}

type sevenZipHandle struct {
	ra     io.ReaderAt
	size   int64
	closer io.Closer
}

func (h *sevenZipHandle) OpenEncrypted(id int, password string) (io.ReadCloser, error) {
	r, err := sevenzip.NewReaderWithPassword(h.ra, h.size, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPassword, err)
	}
	if id < 0 || id >= len(r.File) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchEntry, id)
	}

	rc, err := r.File[id].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPassword, err)
	}
	return rc, nil
}

func (h *sevenZipHandle) Close() error {
	return h.closer.Close()
}
