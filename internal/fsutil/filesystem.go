// Package fsutil provides the filesystem seam used by the codec and the
// pipeline so tests can inject I/O failures and count open handles.
package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileSystem abstracts the file operations the pipeline performs.
// Use OSFileSystem for production; MemoryFileSystem for testing.
type FileSystem interface {
	// Open opens the named file for reading.
	Open(name string) (io.ReadCloser, error)

	// Create creates or truncates the named file.
	Create(name string) (io.WriteCloser, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// Remove removes the named file.
	Remove(name string) error

	// Exists checks if a file exists.
	Exists(name string) bool
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// Open opens the named file.
func (OSFileSystem) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Create creates the named file.
func (OSFileSystem) Create(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// ReadFile reads the named file.
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Remove removes the named file.
func (OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}

// Exists checks if a file exists.
func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// ErrInjected is returned by MemoryFileSystem operations armed to fail.
var ErrInjected = errors.New("fsutil: injected failure")

// MemoryFileSystem is an in-memory filesystem for tests. Individual paths
// can be armed to fail on open, create, read or after a number of written
// bytes, and every handle it hands out is tracked until closed.
type MemoryFileSystem struct {
	mu    sync.Mutex
	files map[string][]byte

	failOpen   map[string]bool
	failCreate map[string]bool
	failRead   map[string]bool
	failWrite  map[string]int // bytes accepted before the write fails

	open   int
	closes int
}

// NewMemoryFileSystem creates a new in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files:      make(map[string][]byte),
		failOpen:   make(map[string]bool),
		failCreate: make(map[string]bool),
		failRead:   make(map[string]bool),
		failWrite:  make(map[string]int),
	}
}

// FailOpen makes Open of name return ErrInjected.
func (m *MemoryFileSystem) FailOpen(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen[filepath.Clean(name)] = true
}

// FailCreate makes Create of name return ErrInjected.
func (m *MemoryFileSystem) FailCreate(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCreate[filepath.Clean(name)] = true
}

// FailRead makes reads from name return ErrInjected after the file opens.
func (m *MemoryFileSystem) FailRead(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead[filepath.Clean(name)] = true
}

// FailWriteAfter makes writes to name fail once n bytes have been accepted.
// Bytes accepted before the failure are kept, like a truncated file on disk.
func (m *MemoryFileSystem) FailWriteAfter(name string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite[filepath.Clean(name)] = n
}

// OpenHandles reports how many handles are open (opened and not closed).
func (m *MemoryFileSystem) OpenHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Closes reports how many times any handle has been closed, including
// repeated closes of the same handle.
func (m *MemoryFileSystem) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Open opens a file for reading.
func (m *MemoryFileSystem) Open(name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if m.failOpen[name] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: ErrInjected}
	}
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	m.open++
	return &memReader{fs: m, data: data, fail: m.failRead[name]}, nil
}

// Create creates or truncates a file.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if m.failCreate[name] {
		return nil, &fs.PathError{Op: "create", Path: name, Err: ErrInjected}
	}
	m.files[name] = []byte{}

	limit, armed := m.failWrite[name]
	if !armed {
		limit = -1
	}
	m.open++
	return &memWriter{fs: m, name: name, limit: limit}, nil
}

// ReadFile reads a file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// WriteFile stores data under name.
func (m *MemoryFileSystem) WriteFile(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(name)] = append([]byte(nil), data...)
}

// Remove removes a file.
func (m *MemoryFileSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if _, ok := m.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, name)
	return nil
}

// Exists checks if a file exists.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(name)]
	return ok
}

func (m *MemoryFileSystem) release(closed *bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	if !*closed {
		*closed = true
		m.open--
	}
}

type memReader struct {
	fs     *MemoryFileSystem
	data   []byte
	offset int
	fail   bool
	closed bool
}

func (r *memReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}
	if r.fail {
		return 0, ErrInjected
	}
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

func (r *memReader) Close() error {
	r.fs.release(&r.closed)
	return nil
}

type memWriter struct {
	fs     *MemoryFileSystem
	name   string
	limit  int
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}

	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()

	data := w.fs.files[w.name]
	if w.limit >= 0 {
		room := w.limit - len(data)
		if room < len(p) {
			if room > 0 {
				w.fs.files[w.name] = append(data, p[:room]...)
			} else {
				room = 0
			}
			return room, ErrInjected
		}
	}
	w.fs.files[w.name] = append(data, p...)
	return len(p), nil
}

func (w *memWriter) Close() error {
	w.fs.release(&w.closed)
	return nil
}
