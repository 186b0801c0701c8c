package h5core

import (
	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/freelist"
	"github.com/scigolib/h5core/internal/xfer"
)

// Dataspace is an extent plus a selection; transfers are shaped by a pair
// of them.
type Dataspace = xfer.Dataspace

// Hyperslab is a regular N-dimensional strided selection descriptor.
type Hyperslab = xfer.Hyperslab

// Layout describes one dataset's stored shape and address.
type Layout = xfer.Layout

// Pipeline is an ordered filter chain applied to dataset bytes.
type Pipeline = xfer.Pipeline

// ExternalFileList describes data stored outside the container file.
type ExternalFileList = xfer.ExternalFileList

// TransferOptions tunes transfer pass buffering.
type TransferOptions = xfer.TransferOptions

// Driver is the pluggable address-space abstraction backing a File.
type Driver = driver.Driver

// AllocKind tags byte ranges with their purpose.
type AllocKind = driver.AllocKind

// Allocation kinds.
const (
	KindDefault = driver.KindDefault
	KindSuper   = driver.KindSuper
	KindBTree   = driver.KindBTree
	KindDraw    = driver.KindDraw
	KindGHeap   = driver.KindGHeap
	KindLHeap   = driver.KindLHeap
	KindOHdr    = driver.KindOHdr
)

// Undef marks "no address".
const Undef = driver.Undef

// FreeListLimits caps free-list memory; see SetFreeListLimits.
type FreeListLimits = freelist.Limits

// NewSimpleDataspace creates a dataspace with the given extent and an ALL
// selection.
func NewSimpleDataspace(dims []uint64) (*Dataspace, error) {
	return xfer.NewSimple(dims)
}

// NewPipeline builds a filter pipeline in application order.
func NewPipeline(filters ...xfer.Filter) *Pipeline {
	return xfer.NewPipeline(filters...)
}

// NewDeflateFilter returns the deflate compression filter.
func NewDeflateFilter(level int) xfer.Filter {
	return xfer.NewDeflateFilter(level)
}

// NewShuffleFilter returns the byte shuffle filter.
func NewShuffleFilter(elmtSize uint64) xfer.Filter {
	return xfer.NewShuffleFilter(elmtSize)
}

// NewMemoryDriver returns the byte-slice backed test driver.
func NewMemoryDriver(image []byte) Driver {
	return driver.NewMemory(image)
}

// OpenFamilyDriver opens the members of an existing family file.
func OpenFamilyDriver(pattern string, membSize uint64, rw bool) (Driver, error) {
	return driver.OpenFamily(pattern, membSize, rw)
}

// CreateFamilyDriver creates a new family file.
func CreateFamilyDriver(pattern string, membSize uint64) (Driver, error) {
	return driver.CreateFamily(pattern, membSize)
}

// NewMultiDriver opens or creates a multi file rooted at the base path.
func NewMultiDriver(base string, rw, create bool) Driver {
	return driver.NewMulti(base, rw, create)
}

// SetFreeListLimits installs process-wide free-list memory caps.
func SetFreeListLimits(l FreeListLimits) {
	freelist.SetListLimits(l)
}

// GarbageCollect drains every free list.
func GarbageCollect() {
	freelist.GarbageCollect()
}
