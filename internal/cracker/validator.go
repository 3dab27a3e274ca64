package cracker

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/lamim/zipcrack/internal/archive"
	"github.com/lamim/zipcrack/pkg/models"
)

// readBufferSize bounds the scratch buffer used while checksumming content
const readBufferSize = 32 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, readBufferSize)
		return &b
	},
}

// Validator decides whether a candidate password unlocks an entry. A
// successful open is not proof: only the content checksum is.
type Validator struct{}

// Validate returns true iff password decrypts entry to content matching its
// stored checksum. Wrong passwords are (false, nil); an error means the
// handle itself failed.
func (Validator) Validate(h archive.Handle, entry models.Entry, password string) (bool, error) {
	rc, err := h.OpenEncrypted(entry.ID, password)
	if err != nil {
		if errors.Is(err, archive.ErrNoSuchEntry) {
			return false, err
		}
		// ErrBadPassword, ErrUnsupportedCipher and any other refusal of the key
		return false, nil
	}
	defer rc.Close()

	bufp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufp)
	buf := *bufp

	hash := crc32.NewIEEE()
	n, err := io.CopyBuffer(hash, io.LimitReader(rc, int64(entry.Size)), buf)
	if err != nil || uint64(n) != entry.Size {
		// Short read: the stream desynchronised during decompression
		return false, nil
	}

	if entry.HasCRC {
		return hash.Sum32() == entry.CRC32, nil
	}
	if !entry.Authenticated {
		return false, fmt.Errorf("%w: entry %d stores no checksum", archive.ErrUnsupportedCipher, entry.ID)
	}

	// AE-2: the reader checks the HMAC once the stream hits EOF
	if _, err := io.CopyBuffer(io.Discard, rc, buf); err != nil {
		return false, nil
	}
	return true, nil
}

// validateWithNewHandle opens a handle for a single attempt
func (v Validator) validateWithNewHandle(a archive.Archive, entry models.Entry, password string) (bool, error) {
	h, err := a.NewHandle()
	if err != nil {
		return false, fmt.Errorf("failed to open archive handle: %w", err)
	}
	defer h.Close()
	return v.Validate(h, entry, password)
}
