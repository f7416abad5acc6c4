//go:build unix

package shm

import (
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/aelexs/shmport/internal/domain"
)

// FileSegment is a Segment backed by a memory-mapped file. Processes that
// map the same path share the memory.
type FileSegment struct {
	name  string
	path  string
	owner bool

	mu   sync.Mutex
	fd   int
	data []byte
}

// CreateFileSegment creates dir/name exclusively, sizes it to size bytes
// and maps it shared. The creator owns the file and unlinks it on Close.
func CreateFileSegment(dir, name string, size int) (*FileSegment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: segment %s: size %d", domain.ErrUnableToCreateDataSegment, name, size)
	}
	path := filepath.Join(dir, name)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrUnableToCreateDataSegment, path, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("%w: truncate %s: %w", domain.ErrUnableToCreateDataSegment, path, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("%w: mmap %s: %w", domain.ErrUnableToCreateDataSegment, path, err)
	}

	return &FileSegment{name: name, path: path, owner: true, fd: fd, data: data}, nil
}

// OpenFileSegment maps an existing segment created by another port,
// possibly in another process. The returned segment does not unlink the
// file on Close.
func OpenFileSegment(dir, name string) (*FileSegment, error) {
	path := filepath.Join(dir, name)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("stat segment %s: %w", path, err)
	}
	if st.Size <= 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("segment %s is empty: %w", path, domain.ErrInvalidInput)
	}
	data, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap segment %s: %w", path, err)
	}

	return &FileSegment{name: name, path: path, fd: fd, data: data}, nil
}

func (s *FileSegment) Name() string { return s.name }

// Path returns the file backing the segment.
func (s *FileSegment) Path() string { return s.path }

func (s *FileSegment) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *FileSegment) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Close unmaps the segment and closes its descriptor. The owning segment
// also removes the backing file.
func (s *FileSegment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil
	}

	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := unix.Close(s.fd); cerr != nil && err == nil {
		err = cerr
	}
	if s.owner {
		if uerr := unix.Unlink(s.path); uerr != nil && err == nil {
			err = uerr
		}
	}
	if err != nil {
		return fmt.Errorf("close segment %s: %w", s.path, err)
	}
	return nil
}

var _ Segment = (*FileSegment)(nil)
