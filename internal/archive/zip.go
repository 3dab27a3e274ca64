package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/yeka/zip"

	"github.com/lamim/zipcrack/pkg/models"
)

type zipArchive struct {
	src     *source
	entries []models.Entry
}

func openZip(src *source) (*zipArchive, error) {
	r, closer, err := openZipReader(src)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	entries := make([]models.Entry, 0, len(r.File))
	for i, f := range r.File {
		encrypted := f.IsEncrypted()
		ae2 := encrypted && winZipAESVersion(f.Extra) == 2
		entries = append(entries, models.Entry{
			ID:            i,
			Name:          f.Name,
			Size:          f.UncompressedSize64,
			CRC32:         f.CRC32,
			HasCRC:        !ae2,
			Authenticated: ae2,
			Encrypted:     encrypted,
			IsDir:         f.FileInfo().IsDir(),
			Method:        zipMethodName(f.Method, encrypted),
		})
	}

	return &zipArchive{src: src, entries: entries}, nil
}

func openZipReader(src *source) (*zip.Reader, io.Closer, error) {
	ra, closer, err := src.readerAt()
	if err != nil {
		return nil, nil, err
	}
	r, err := zip.NewReader(ra, src.size)
	if err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	return r, closer, nil
}

func (a *zipArchive) Path() string { return a.src.path }

func (a *zipArchive) Format() string { return FormatZip }

func (a *zipArchive) Entries() []models.Entry {
	return append([]models.Entry(nil), a.entries...)
}

func (a *zipArchive) Stat(id int) (models.Entry, error) {
	return statEntry(a.entries, id)
}

func (a *zipArchive) Close() error { return nil }

// NewHandle parses the central directory again so the handle's File values
// (which carry the password) are private to it.
func (a *zipArchive) NewHandle() (Handle, error) {
	r, closer, err := openZipReader(a.src)
	if err != nil {
		return nil, err
	}
	return &zipHandle{reader: r, closer: closer}, nil
}

type zipHandle struct {
	reader *zip.Reader
	closer io.Closer
}

func (h *zipHandle) OpenEncrypted(id int, password string) (io.ReadCloser, error) {
	if id < 0 || id >= len(h.reader.File) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchEntry, id)
	}
	f := h.reader.File[id]
	if f.IsEncrypted() {
		f.SetPassword(password)
	}

	rc, err := f.Open()
	if err != nil {
		if errors.Is(err, zip.ErrAlgorithm) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedCipher, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrBadPassword, err)
	}
	return rc, nil
}

func (h *zipHandle) Close() error {
	return h.closer.Close()
}

// winZipAESExtraID is the extra field header of WinZip AES entries
const winZipAESExtraID = 0x9901

// winZipAESVersion returns the AE-x vendor version recorded in a WinZip AES
// extra field, or 0 when extra holds none. AE-2 entries store CRC 0 and rely
// on the HMAC instead.
func winZipAESVersion(extra []byte) uint16 {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		extra = extra[4:]
		if size > len(extra) {
			return 0
		}
		if id == winZipAESExtraID && size >= 2 {
			return binary.LittleEndian.Uint16(extra[0:2])
		}
		extra = extra[size:]
	}
	return 0
}

func zipMethodName(method uint16, encrypted bool) string {
	var name string
	switch method {
	case zip.Store:
		name = "store"
	case zip.Deflate:
		name = "deflate"
	case 12:
		name = "bzip2"
	case 14:
		name = "lzma"
	case 93:
		name = "zstd"
	case 99:
		name = "aes"
	default:
		name = fmt.Sprintf("method-%d", method)
	}
	if encrypted {
		name += "+encrypted"
	}
	return name
}
