// Package archivetest builds encrypted archives and in-memory fakes for tests.
package archivetest

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/yeka/zip"

	"github.com/lamim/zipcrack/internal/archive"
	"github.com/lamim/zipcrack/pkg/models"
)

// ZeroCRC is content whose CRC-32 is 0, the value zip readers treat as
// "no checksum"
var ZeroCRC = []byte("zero-crc:\x9akh;")

// File is one entry of a fixture archive. An empty Password stores the
// entry unencrypted.
type File struct {
	Name     string
	Content  []byte
	Password string
	AES      bool
}

// WriteZip writes a zip archive with the given entries into dir and returns its path
func WriteZip(t testing.TB, dir, name string, files ...File) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		var (
			fw  io.Writer
			err error
		)
		switch {
		case f.Password == "":
			fw, err = w.Create(f.Name)
		case f.AES:
			fw, err = w.Encrypt(f.Name, f.Password, zip.AES256Encryption)
		default:
			fw, err = w.Encrypt(f.Name, f.Password, zip.StandardEncryption)
		}
		if err != nil {
			t.Fatalf("create zip entry %s: %v", f.Name, err)
		}
		if _, err := fw.Write(f.Content); err != nil {
			t.Fatalf("write zip entry %s: %v", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write zip file: %v", err)
	}
	return path
}

// 7z fixtures under internal/archive/testdata. Each holds one AES-256
// encrypted entry, secret.txt, containing SevenZipContent.
const (
	SevenZipAES             = "aes.7z"              // plain header, CRC stored
	SevenZipNoCRC           = "nocrc.7z"            // plain header, no CRC defined
	SevenZipEncryptedHeader = "encrypted-header.7z" // header encrypted too

	SevenZipPassword = "go"
)

// SevenZipContent is the plaintext of every 7z fixture entry
var SevenZipContent = []byte("the quick brown fox jumps over the lazy dog\n")

// SevenZip returns the path of a 7z fixture
func SevenZip(t testing.TB, name string) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate archivetest package")
	}
	path := filepath.Join(filepath.Dir(file), "..", "testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("7z fixture %s: %v", name, err)
	}
	return path
}

// Fake is an in-memory archive.Archive. An entry accepts every password in
// its Passwords set; any other password yields content that fails the CRC.
type Fake struct {
	entries   []models.Entry
	content   map[int][]byte
	passwords map[int]map[string]bool

	failAfter atomic.Int64
	failArmed atomic.Bool

	mu      sync.Mutex
	handles int
	opened  map[string]int
}

// NewFake creates an empty fake archive
func NewFake() *Fake {
	return &Fake{
		content:   make(map[int][]byte),
		passwords: make(map[int]map[string]bool),
		opened:    make(map[string]int),
	}
}

// AddEntry adds an encrypted entry unlocked by any of passwords and returns its ID
func (f *Fake) AddEntry(name string, content []byte, passwords ...string) int {
	id := len(f.entries)
	f.entries = append(f.entries, models.Entry{
		ID:        id,
		Name:      name,
		Size:      uint64(len(content)),
		CRC32:     crc32.ChecksumIEEE(content),
		HasCRC:    true,
		Encrypted: true,
		Method:    "fake",
	})
	f.content[id] = content
	set := make(map[string]bool, len(passwords))
	for _, p := range passwords {
		set[p] = true
	}
	f.passwords[id] = set
	return id
}

// FailAfter makes NewHandle fail after n successful calls
func (f *Fake) FailAfter(n int64) {
	f.failAfter.Store(n)
	f.failArmed.Store(true)
}

// Handles returns how many handles were opened
func (f *Fake) Handles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles
}

// Opened returns how many times password was tried against any entry
func (f *Fake) Opened(password string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[password]
}

func (f *Fake) Path() string   { return "fake.zip" }
func (f *Fake) Format() string { return "fake" }
func (f *Fake) Close() error   { return nil }

func (f *Fake) Entries() []models.Entry {
	return append([]models.Entry(nil), f.entries...)
}

func (f *Fake) Stat(id int) (models.Entry, error) {
	if id < 0 || id >= len(f.entries) {
		return models.Entry{}, fmt.Errorf("%w: %d", archive.ErrNoSuchEntry, id)
	}
	return f.entries[id], nil
}

func (f *Fake) NewHandle() (archive.Handle, error) {
	if f.failArmed.Load() && f.failAfter.Add(-1) < 0 {
		return nil, errors.New("fake: handle limit reached")
	}
	f.mu.Lock()
	f.handles++
	f.mu.Unlock()
	return &fakeHandle{fake: f}, nil
}

type fakeHandle struct {
	fake *Fake
}

func (h *fakeHandle) OpenEncrypted(id int, password string) (io.ReadCloser, error) {
	f := h.fake
	f.mu.Lock()
	f.opened[password]++
	f.mu.Unlock()

	content, ok := f.content[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", archive.ErrNoSuchEntry, id)
	}
	if password == "" {
		return nil, archive.ErrBadPassword
	}
	if f.passwords[id][password] {
		return io.NopCloser(bytes.NewReader(content)), nil
	}
	// A wrong key still "opens" but decrypts to garbage of the same length
	garbage := make([]byte, len(content))
	for i := range garbage {
		garbage[i] = content[i] ^ 0x5a
	}
	return io.NopCloser(bytes.NewReader(garbage)), nil
}

func (h *fakeHandle) Close() error { return nil }
