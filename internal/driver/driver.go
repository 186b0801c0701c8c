// Package driver provides the file-driver abstraction the rest of the
// container layer uses to read and write bytes. A driver owns one logical
// address space; every byte range carries an allocation kind so a driver may
// partition the space by purpose. Variants: sec2 (single POSIX file), family
// (one logical space sharded across equally sized member files), multi (each
// kind routed to its own backing file), and memory (byte slice, for tests).
package driver

import "github.com/scigolib/h5core/internal/utils"

// AllocKind tags each byte range with its purpose.
type AllocKind uint8

// Allocation kinds. KindDefault routes to whatever the driver considers its
// primary space; the remaining kinds mirror the metadata classes the format
// distinguishes.
const (
	KindDefault AllocKind = iota
	KindSuper
	KindBTree
	KindDraw
	KindGHeap
	KindLHeap
	KindOHdr
)

// NumKinds is the number of distinct allocation kinds, KindDefault included.
const NumKinds = 7

// Undef marks "no address": allocation exhaustion, absent blocks.
const Undef = utils.Undef

// SBNameLen is the width of the driver name field in the driver info block.
const SBNameLen = 8

// Driver is the capability set every file driver implements. Read and write
// move exactly len(p) bytes or fail; drivers are not retried internally.
//
// SetEOA normally raises the end-of-allocated mark; lowering is permitted
// only while the superblock engine probes for the format signature, and that
// caller restores the saved mark on the failure path.
type Driver interface {
	// Name identifies the driver class ("sec2", "family", "multi", "memory").
	Name() string

	// ReadAt reads exactly len(p) bytes at off. Fails with ErrIO when the
	// range extends past the end-of-allocated mark or the read is short.
	ReadAt(kind AllocKind, p []byte, off uint64) error

	// WriteAt writes exactly len(p) bytes at off, failing with ErrIO on a
	// short write.
	WriteAt(kind AllocKind, p []byte, off uint64) error

	// EOF returns the physical end of the file(s).
	EOF() (uint64, error)

	// EOA returns the logical end-of-allocated address for the kind.
	EOA(kind AllocKind) uint64

	// SetEOA moves the end-of-allocated mark for the kind.
	SetEOA(kind AllocKind, addr uint64) error

	// Alloc reserves size bytes of the kind's space, returning the start
	// address. Returns Undef with an error on exhaustion.
	Alloc(kind AllocKind, size uint64) (uint64, error)

	// SBSize returns the number of bytes of driver-private state the driver
	// stores in the superblock's driver info block; zero means none.
	SBSize() uint64

	// SBEncode serializes driver-private state under an 8-byte name.
	SBEncode() (name [SBNameLen]byte, data []byte, err error)

	// SBDecode applies driver-private state read from a driver info block.
	// Drivers reject names belonging to a different driver class.
	SBDecode(name [SBNameLen]byte, data []byte) error

	// Close releases the driver's resources.
	Close() error
}

// checkRange verifies an I/O range against the end-of-allocated mark.
func checkRange(off, n, eoa uint64) error {
	if err := addOverflows(off, n); err != nil {
		return err
	}
	if off+n > eoa {
		return utils.Kindf(utils.ErrIO, "addr overflow: request [%d, %d) past eoa %d", off, off+n, eoa)
	}
	return nil
}

func addOverflows(a, b uint64) error {
	if a+b < a {
		return utils.Kindf(utils.ErrBadRange, "address %d + %d overflows", a, b)
	}
	return nil
}
