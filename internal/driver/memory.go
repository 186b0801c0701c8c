package driver

import "github.com/scigolib/h5core/internal/utils"

// Memory is a byte-slice backed driver. It exists for tests and for callers
// that want to assemble or inspect a file image without touching disk.
type Memory struct {
	buf []byte
	eoa uint64
}

// NewMemory returns a memory driver over a copy-free view of image. A nil
// image starts an empty address space.
func NewMemory(image []byte) *Memory {
	return &Memory{buf: image, eoa: uint64(len(image))}
}

// Name identifies the driver class.
func (m *Memory) Name() string { return "memory" }

// Bytes returns the current file image.
func (m *Memory) Bytes() []byte { return m.buf }

// ReadAt reads exactly len(p) bytes at off.
func (m *Memory) ReadAt(_ AllocKind, p []byte, off uint64) error {
	if err := checkRange(off, uint64(len(p)), m.eoa); err != nil {
		return err
	}
	if off+uint64(len(p)) > uint64(len(m.buf)) {
		return utils.Kindf(utils.ErrIO, "read past end of memory file: [%d, %d) of %d",
			off, off+uint64(len(p)), len(m.buf))
	}
	copy(p, m.buf[off:])
	return nil
}

// WriteAt writes exactly len(p) bytes at off, growing the image as needed.
func (m *Memory) WriteAt(_ AllocKind, p []byte, off uint64) error {
	if err := checkRange(off, uint64(len(p)), m.eoa); err != nil {
		return err
	}
	if end := off + uint64(len(p)); end > uint64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:], p)
	return nil
}

// EOF returns the physical size of the image.
func (m *Memory) EOF() (uint64, error) { return uint64(len(m.buf)), nil }

// EOA returns the end-of-allocated mark.
func (m *Memory) EOA(_ AllocKind) uint64 { return m.eoa }

// SetEOA moves the end-of-allocated mark.
func (m *Memory) SetEOA(_ AllocKind, addr uint64) error {
	m.eoa = addr
	return nil
}

// Alloc reserves size bytes at the end of the allocated space.
func (m *Memory) Alloc(_ AllocKind, size uint64) (uint64, error) {
	if err := addOverflows(m.eoa, size); err != nil {
		return Undef, utils.WrapError("memory alloc", err)
	}
	addr := m.eoa
	m.eoa += size
	return addr, nil
}

// SBSize reports no driver-private superblock state.
func (m *Memory) SBSize() uint64 { return 0 }

// SBEncode has nothing to serialize.
func (m *Memory) SBEncode() ([SBNameLen]byte, []byte, error) {
	return [SBNameLen]byte{}, nil, nil
}

// SBDecode rejects driver info blocks: a file that carries one was written
// through a stateful driver class.
func (m *Memory) SBDecode(name [SBNameLen]byte, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return utils.Kindf(utils.ErrUnsupported, "memory driver cannot decode %q driver info", string(name[:]))
}

// Close releases the image.
func (m *Memory) Close() error {
	m.buf = nil
	return nil
}
