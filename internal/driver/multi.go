package driver

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/scigolib/h5core/internal/utils"
)

// multiSBName tags multi driver info blocks in the file.
const multiSBName = "NCSAmult"

// regionSize is the span of logical address space each allocation kind owns
// under the multi driver. The superblock kind's region starts at logical
// zero so the first allocation lands at address 0.
const regionSize = Undef / NumKinds

// memberSuffix names each kind's backing file relative to the base path.
var memberSuffix = [NumKinds]string{
	KindDefault: "-s.h5", // default routes to the superblock member
	KindSuper:   "-s.h5",
	KindBTree:   "-b.h5",
	KindDraw:    "-r.h5",
	KindGHeap:   "-g.h5",
	KindLHeap:   "-l.h5",
	KindOHdr:    "-o.h5",
}

// Multi routes each allocation kind to a distinct backing file. The logical
// address space is partitioned into one fixed-size region per kind; an
// address alone identifies its region and therefore its member file.
type Multi struct {
	base    string
	members [NumKinds]*os.File
	membMap [NumKinds]AllocKind
	eoa     [NumKinds]uint64 // absolute logical EOA per mapped kind
	rw      bool
}

// NewMulti opens or creates a multi driver rooted at the base path.
// Member files are opened lazily as kinds are touched.
func NewMulti(base string, rw, create bool) *Multi {
	m := &Multi{base: base, rw: rw || create}
	for k := AllocKind(0); k < NumKinds; k++ {
		m.membMap[k] = k
		m.eoa[k] = m.regionBase(k)
	}
	m.membMap[KindDefault] = KindSuper
	m.eoa[KindDefault] = 0
	return m
}

// regionBase returns the first logical address of a kind's region.
func (m *Multi) regionBase(kind AllocKind) uint64 {
	k := m.mapped(kind)
	if k <= KindSuper {
		return 0
	}
	return uint64(k-KindSuper) * regionSize
}

func (m *Multi) mapped(kind AllocKind) AllocKind {
	if kind >= NumKinds {
		kind = KindDefault
	}
	return m.membMap[kind]
}

// kindForAddr recovers the kind owning a logical address.
func (m *Multi) kindForAddr(addr uint64) AllocKind {
	k := AllocKind(addr/regionSize) + KindSuper
	if k >= NumKinds {
		k = NumKinds - 1
	}
	return k
}

func (m *Multi) file(kind AllocKind) (*os.File, error) {
	k := m.mapped(kind)
	if m.members[k] != nil {
		return m.members[k], nil
	}
	name := m.base + memberSuffix[k]
	flag := os.O_RDONLY
	if m.rw {
		flag = os.O_RDWR | os.O_CREATE
	}
	//nolint:gosec // G304: user-provided path is the point of a file library
	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, utils.WrapError("multi member open failed", err)
	}
	m.members[k] = f
	return f, nil
}

// Name identifies the driver class.
func (m *Multi) Name() string { return "multi" }

// ReadAt reads exactly len(p) bytes at the logical address off. The region
// containing off selects the member file.
func (m *Multi) ReadAt(_ AllocKind, p []byte, off uint64) error {
	kind := m.kindForAddr(off)
	if err := checkRange(off, uint64(len(p)), m.eoa[kind]); err != nil {
		return err
	}
	f, err := m.file(kind)
	if err != nil {
		return err
	}
	within := off - m.regionBase(kind)
	//nolint:gosec // G115: member offsets fit in int64
	n, err := f.ReadAt(p, int64(within))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(p)) {
		return utils.Kindf(utils.ErrIO, "multi read kind %d at %d: %v", kind, within, err)
	}
	if n != len(p) {
		return utils.Kindf(utils.ErrIO, "multi short read kind %d: %d of %d bytes", kind, n, len(p))
	}
	return nil
}

// WriteAt writes exactly len(p) bytes at the logical address off.
func (m *Multi) WriteAt(_ AllocKind, p []byte, off uint64) error {
	kind := m.kindForAddr(off)
	if err := checkRange(off, uint64(len(p)), m.eoa[kind]); err != nil {
		return err
	}
	f, err := m.file(kind)
	if err != nil {
		return err
	}
	within := off - m.regionBase(kind)
	//nolint:gosec // G115: member offsets fit in int64
	n, err := f.WriteAt(p, int64(within))
	if err != nil {
		return utils.Kindf(utils.ErrIO, "multi write kind %d at %d: %v", kind, within, err)
	}
	if n != len(p) {
		return utils.Kindf(utils.ErrIO, "multi short write kind %d: %d of %d bytes", kind, n, len(p))
	}
	return nil
}

// EOF returns the largest logical address backed by any member file.
func (m *Multi) EOF() (uint64, error) {
	var eof uint64
	for k := KindSuper; k < NumKinds; k++ {
		f := m.members[k]
		if f == nil {
			continue
		}
		fi, err := f.Stat()
		if err != nil {
			return Undef, utils.WrapError("multi stat failed", err)
		}
		//nolint:gosec // G115: file sizes are non-negative
		end := m.regionBase(k) + uint64(fi.Size())
		if end > eof {
			eof = end
		}
	}
	return eof, nil
}

// EOA returns the end-of-allocated mark of the kind's region.
func (m *Multi) EOA(kind AllocKind) uint64 { return m.eoa[m.mapped(kind)] }

// SetEOA moves a kind's end-of-allocated mark.
func (m *Multi) SetEOA(kind AllocKind, addr uint64) error {
	m.eoa[m.mapped(kind)] = addr
	return nil
}

// Alloc reserves size bytes in the kind's region, failing with Undef when
// the region is exhausted.
func (m *Multi) Alloc(kind AllocKind, size uint64) (uint64, error) {
	k := m.mapped(kind)
	base := m.regionBase(k)
	addr := m.eoa[k]
	if err := addOverflows(addr, size); err != nil {
		return Undef, utils.WrapError("multi alloc", err)
	}
	if addr+size > base+regionSize {
		return Undef, utils.Kindf(utils.ErrIO, "multi region for kind %d exhausted", k)
	}
	m.eoa[k] = addr + size
	return addr, nil
}

// SBSize returns the size of the multi driver's private state: the kind
// routing map, each region's base address, and each region's EOA.
func (m *Multi) SBSize() uint64 { return NumKinds + NumKinds*8 + NumKinds*8 }

// SBEncode serializes the routing map, region bases, and per-kind EOAs
// under the multi name tag. The non-superblock EOAs have no other home in
// the file; the superblock engine only persists its own kind's mark.
func (m *Multi) SBEncode() ([SBNameLen]byte, []byte, error) {
	var name [SBNameLen]byte
	copy(name[:], multiSBName)
	data := make([]byte, m.SBSize())
	for k := 0; k < NumKinds; k++ {
		data[k] = byte(m.membMap[k])
		binary.LittleEndian.PutUint64(data[NumKinds+8*k:], m.regionBase(AllocKind(k)))
		binary.LittleEndian.PutUint64(data[NumKinds+8*(NumKinds+k):], m.eoa[k])
	}
	return name, data, nil
}

// SBDecode checks the stored routing against the open configuration and
// restores the per-kind end-of-allocated marks.
func (m *Multi) SBDecode(name [SBNameLen]byte, data []byte) error {
	if string(name[:]) != multiSBName {
		return utils.Kindf(utils.ErrCantOpen, "driver info names %q, not a multi file", string(name[:]))
	}
	if uint64(len(data)) < m.SBSize() {
		return utils.Kindf(utils.ErrCantOpen, "multi driver info too short: %d bytes", len(data))
	}
	for k := 0; k < NumKinds; k++ {
		if AllocKind(data[k]) != m.membMap[k] {
			return utils.Kindf(utils.ErrCantOpen, "multi kind %d routed to %d, file was written with %d",
				k, data[k], m.membMap[k])
		}
		base := binary.LittleEndian.Uint64(data[NumKinds+8*k:])
		if base != m.regionBase(AllocKind(k)) {
			return utils.Kindf(utils.ErrCantOpen, "multi region base mismatch for kind %d", k)
		}
	}
	for k := 0; k < NumKinds; k++ {
		m.eoa[k] = binary.LittleEndian.Uint64(data[NumKinds+8*(NumKinds+k):])
	}
	return nil
}

// Close closes every member file.
func (m *Multi) Close() error {
	var first error
	for k := range m.members {
		if m.members[k] == nil {
			continue
		}
		if err := m.members[k].Close(); err != nil && first == nil {
			first = err
		}
		m.members[k] = nil
	}
	return first
}
