package driver

import (
	"errors"
	"io"
	"os"

	"github.com/scigolib/h5core/internal/utils"
)

// Sec2 is the single-POSIX-file driver: one address space, one file, no
// driver-private superblock state.
type Sec2 struct {
	file *os.File
	eoa  uint64
}

// OpenSec2 opens an existing file. Writing requires rw.
func OpenSec2(path string, rw bool) (*Sec2, error) {
	flag := os.O_RDONLY
	if rw {
		flag = os.O_RDWR
	}
	//nolint:gosec // G304: user-provided path is the point of a file library
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, utils.WrapError("sec2 open failed", err)
	}
	return &Sec2{file: f}, nil
}

// CreateSec2 creates (or truncates) a file for writing.
func CreateSec2(path string) (*Sec2, error) {
	//nolint:gosec // G304: user-provided path is the point of a file library
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, utils.WrapError("sec2 create failed", err)
	}
	return &Sec2{file: f}, nil
}

// Name identifies the driver class.
func (s *Sec2) Name() string { return "sec2" }

// ReadAt reads exactly len(p) bytes at off.
func (s *Sec2) ReadAt(_ AllocKind, p []byte, off uint64) error {
	if err := checkRange(off, uint64(len(p)), s.eoa); err != nil {
		return err
	}
	//nolint:gosec // G115: addresses within EOA fit in int64
	n, err := s.file.ReadAt(p, int64(off))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(p)) {
		return utils.Kindf(utils.ErrIO, "sec2 read at %d: %v", off, err)
	}
	if n != len(p) {
		return utils.Kindf(utils.ErrIO, "sec2 short read at %d: %d of %d bytes", off, n, len(p))
	}
	return nil
}

// WriteAt writes exactly len(p) bytes at off.
func (s *Sec2) WriteAt(_ AllocKind, p []byte, off uint64) error {
	if err := checkRange(off, uint64(len(p)), s.eoa); err != nil {
		return err
	}
	//nolint:gosec // G115: addresses within EOA fit in int64
	n, err := s.file.WriteAt(p, int64(off))
	if err != nil {
		return utils.Kindf(utils.ErrIO, "sec2 write at %d: %v", off, err)
	}
	if n != len(p) {
		return utils.Kindf(utils.ErrIO, "sec2 short write at %d: %d of %d bytes", off, n, len(p))
	}
	return nil
}

// EOF returns the physical file size.
func (s *Sec2) EOF() (uint64, error) {
	fi, err := s.file.Stat()
	if err != nil {
		return Undef, utils.WrapError("sec2 stat failed", err)
	}
	//nolint:gosec // G115: file sizes are non-negative
	return uint64(fi.Size()), nil
}

// EOA returns the end-of-allocated mark.
func (s *Sec2) EOA(_ AllocKind) uint64 { return s.eoa }

// SetEOA moves the end-of-allocated mark.
func (s *Sec2) SetEOA(_ AllocKind, addr uint64) error {
	s.eoa = addr
	return nil
}

// Alloc reserves size bytes at the end of the allocated space.
func (s *Sec2) Alloc(_ AllocKind, size uint64) (uint64, error) {
	if err := addOverflows(s.eoa, size); err != nil {
		return Undef, utils.WrapError("sec2 alloc", err)
	}
	addr := s.eoa
	s.eoa += size
	return addr, nil
}

// SBSize reports no driver-private superblock state.
func (s *Sec2) SBSize() uint64 { return 0 }

// SBEncode has nothing to serialize.
func (s *Sec2) SBEncode() ([SBNameLen]byte, []byte, error) {
	return [SBNameLen]byte{}, nil, nil
}

// SBDecode rejects driver info from stateful driver classes.
func (s *Sec2) SBDecode(name [SBNameLen]byte, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return utils.Kindf(utils.ErrUnsupported, "sec2 driver cannot decode %q driver info", string(name[:]))
}

// Close closes the underlying file.
func (s *Sec2) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
