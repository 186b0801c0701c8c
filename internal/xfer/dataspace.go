// Package xfer implements the transfer pipeline: it computes a hyperslab
// shape from a pair of dataspaces, stripmines it into bounded-size passes,
// and drives the four direction-crossed primitives (file-gather,
// memory-scatter, memory-gather, file-scatter) plus the in-place direct
// read and write paths.
package xfer

import "github.com/scigolib/h5core/internal/utils"

// SelType tags a dataspace selection.
type SelType uint8

// Selection types. Only SelAll transfers are implemented today; SelPoints
// and SelHyperslabs are reserved and fail with ErrUnsupported, SelNone
// fails with ErrBadValue.
const (
	SelNone SelType = iota
	SelAll
	SelPoints
	SelHyperslabs
)

// Hyperslab is a regular N-dimensional strided selection: origin, count,
// stride, and sample. Only unit sample (and unit stride) transfers are
// implemented.
type Hyperslab struct {
	Offset []int64
	Count  []uint64
	Stride []uint64
	Sample []uint64
}

// Dataspace is an extent plus a selection. A hyperslab descriptor may be
// attached independently of the selection type; transfers consult it for
// the slab shape the way the primitives expect.
type Dataspace struct {
	dims []uint64
	sel  SelType
	slab *Hyperslab
}

// NewSimple creates a dataspace with the given extent and an ALL selection.
func NewSimple(dims []uint64) (*Dataspace, error) {
	if len(dims) == 0 {
		return nil, utils.Kindf(utils.ErrBadValue, "dataspace needs at least one dimension")
	}
	for i, d := range dims {
		if d == 0 {
			return nil, utils.Kindf(utils.ErrBadValue, "zero extent in dimension %d", i)
		}
	}
	if _, err := utils.DimsProduct(dims); err != nil {
		return nil, err
	}
	ds := &Dataspace{sel: SelAll}
	ds.dims = append(ds.dims, dims...)
	return ds, nil
}

// Rank returns the dataspace dimensionality.
func (ds *Dataspace) Rank() int { return len(ds.dims) }

// Dims returns the extent.
func (ds *Dataspace) Dims() []uint64 { return ds.dims }

// Selection returns the current selection type.
func (ds *Dataspace) Selection() SelType { return ds.sel }

// SelectAll selects the entire extent.
func (ds *Dataspace) SelectAll() { ds.sel = SelAll }

// SelectNone empties the selection.
func (ds *Dataspace) SelectNone() { ds.sel = SelNone }

// SelectHyperslab attaches a hyperslab selection. The selection type
// becomes SelHyperslabs, which the transfer surfaces currently reject.
func (ds *Dataspace) SelectHyperslab(slab Hyperslab) error {
	if err := ds.SetHyperslab(slab); err != nil {
		return err
	}
	ds.sel = SelHyperslabs
	return nil
}

// SetHyperslab attaches a hyperslab descriptor without changing the
// selection type. The primitives use the descriptor for the slab shape; an
// ALL selection with a descriptor restricted to the full extent is how the
// stripmined path addresses its passes.
func (ds *Dataspace) SetHyperslab(slab Hyperslab) error {
	r := ds.Rank()
	if len(slab.Offset) != r || len(slab.Count) != r {
		return utils.Kindf(utils.ErrBadValue, "hyperslab rank mismatch: space is %d-dimensional", r)
	}
	if slab.Stride != nil && len(slab.Stride) != r {
		return utils.Kindf(utils.ErrBadValue, "hyperslab stride rank mismatch")
	}
	if slab.Sample != nil && len(slab.Sample) != r {
		return utils.Kindf(utils.ErrBadValue, "hyperslab sample rank mismatch")
	}
	for i := 0; i < r; i++ {
		if slab.Count[i] == 0 {
			return utils.Kindf(utils.ErrBadValue, "hyperslab count must be > 0 in dimension %d", i)
		}
		if slab.Offset[i] < 0 {
			return utils.Kindf(utils.ErrBadRange, "negative hyperslab offset in dimension %d", i)
		}
		end := uint64(slab.Offset[i]) + slab.Count[i]
		if end > ds.dims[i] {
			return utils.Kindf(utils.ErrBadRange,
				"hyperslab exceeds extent in dimension %d: offset=%d count=%d size=%d",
				i, slab.Offset[i], slab.Count[i], ds.dims[i])
		}
	}
	cp := Hyperslab{
		Offset: append([]int64(nil), slab.Offset...),
		Count:  append([]uint64(nil), slab.Count...),
	}
	if slab.Stride != nil {
		cp.Stride = append([]uint64(nil), slab.Stride...)
	}
	if slab.Sample != nil {
		cp.Sample = append([]uint64(nil), slab.Sample...)
	}
	ds.slab = &cp
	return nil
}

// GetHyperslab returns the slab shape transfers operate on: the attached
// descriptor when one is set, otherwise the whole extent with unit stride
// and sample.
func (ds *Dataspace) GetHyperslab() (offset []int64, size, stride, sample []uint64) {
	r := ds.Rank()
	offset = make([]int64, r)
	size = make([]uint64, r)
	stride = make([]uint64, r)
	sample = make([]uint64, r)
	for i := 0; i < r; i++ {
		stride[i] = 1
		sample[i] = 1
	}
	if ds.slab == nil {
		copy(size, ds.dims)
		return offset, size, stride, sample
	}
	copy(offset, ds.slab.Offset)
	copy(size, ds.slab.Count)
	if ds.slab.Stride != nil {
		copy(stride, ds.slab.Stride)
	}
	if ds.slab.Sample != nil {
		copy(sample, ds.slab.Sample)
	}
	return offset, size, stride, sample
}

// SelectNPoints returns the number of selected elements.
func (ds *Dataspace) SelectNPoints() uint64 {
	if ds.sel == SelNone {
		return 0
	}
	_, size, _, _ := ds.GetHyperslab()
	n, err := utils.DimsProduct(size)
	if err != nil {
		return 0
	}
	return n
}
