package xfer

import (
	"github.com/scigolib/h5core/internal/freelist"
	"github.com/scigolib/h5core/internal/utils"
)

// DefaultBufferSize is the transfer pass buffer budget in bytes.
const DefaultBufferSize = 1 << 20

// tconvPool recycles transfer pass buffers across operations.
var tconvPool = freelist.NewBlock("xfer_tconv")

// TransferOptions tunes a transfer. The zero value uses the defaults.
type TransferOptions struct {
	BufferSize uint64 // pass buffer budget in bytes; 0 means DefaultBufferSize
}

func (o *TransferOptions) bufferSize() uint64 {
	if o == nil || o.BufferSize == 0 {
		return DefaultBufferSize
	}
	return o.BufferSize
}

// slabShape resolves a dataspace's transfer shape and enforces the
// unit-stride, unit-sample restriction the primitives are built on.
func slabShape(ds *Dataspace) (offset []int64, size []uint64, err error) {
	offset, size, stride, sample := ds.GetHyperslab()
	for i := range sample {
		if sample[i] != 1 {
			return nil, nil, utils.Kindf(utils.ErrUnsupported, "hyperslab sampling is not implemented (dimension %d)", i)
		}
		if stride[i] != 1 {
			return nil, nil, utils.Kindf(utils.ErrUnsupported, "hyperslab striding is not implemented (dimension %d)", i)
		}
	}
	return offset, size, nil
}

// adjustStrip rebases the slowest-varying dimension of a slab for the pass
// [start, start+nelmts). Both bounds must be whole multiples of the
// inner-dimensions product: strips split only along the slowest axis.
func adjustStrip(offset []int64, size []uint64, start, nelmts uint64) error {
	acc := uint64(1)
	for i := 1; i < len(size); i++ {
		var err error
		acc, err = utils.SafeMultiply(acc, size[i])
		if err != nil {
			return err
		}
	}
	if start%acc != 0 || nelmts%acc != 0 {
		return utils.Kindf(utils.ErrBadValue, "transfer pass is not slab-row aligned: start=%d nelmts=%d rowsize=%d",
			start, nelmts, acc)
	}
	//nolint:gosec // G115: start/acc is bounded by the slab extent
	offset[0] += int64(start / acc)
	size[0] = nelmts / acc
	return nil
}

// FileGather gathers nelmts elements beginning at linear element number
// start from the file into the transfer buffer.
func FileGather(arr ArrayIO, layout *Layout, pip *Pipeline, efl *ExternalFileList,
	elmtSize uint64, fileSpace *Dataspace, start, nelmts uint64, buf []byte) (uint64, error) {
	if elmtSize == 0 || nelmts == 0 {
		return 0, utils.Kindf(utils.ErrBadValue, "nothing to gather: elmt_size=%d nelmts=%d", elmtSize, nelmts)
	}
	offset, size, err := slabShape(fileSpace)
	if err != nil {
		return 0, err
	}
	if err := adjustStrip(offset, size, start, nelmts); err != nil {
		return 0, err
	}

	// The fastest varying dimension is the data point itself.
	size = append(size, elmtSize)
	offset = append(offset, 0)
	zero := make([]int64, len(size))

	if err := arr.ArrRead(layout, pip, efl, size, size, zero, offset, buf); err != nil {
		return 0, utils.WrapError("read error", err)
	}
	return nelmts, nil
}

// MemScatter scatters nelmts elements from the transfer buffer into the
// application buffer arranged according to the memory dataspace.
func MemScatter(tconv []byte, elmtSize uint64, memSpace *Dataspace,
	start, nelmts uint64, buf []byte) error {
	if elmtSize == 0 || nelmts == 0 {
		return utils.Kindf(utils.ErrBadValue, "nothing to scatter: elmt_size=%d nelmts=%d", elmtSize, nelmts)
	}
	offset, size, err := slabShape(memSpace)
	if err != nil {
		return err
	}
	if err := adjustStrip(offset, size, start, nelmts); err != nil {
		return err
	}

	memSize := append(append([]uint64(nil), memSpace.Dims()...), elmtSize)
	size = append(size, elmtSize)
	offset = append(offset, 0)
	zero := make([]int64, len(size))

	if err := hyperCopy(len(size), size, memSize, offset, buf, size, zero, tconv); err != nil {
		return utils.WrapError("unable to scatter data to memory", err)
	}
	return nil
}

// MemGather gathers nelmts elements from the application buffer into the
// transfer buffer, packed in element-number order.
func MemGather(buf []byte, elmtSize uint64, memSpace *Dataspace,
	start, nelmts uint64, tconv []byte) (uint64, error) {
	if elmtSize == 0 || nelmts == 0 {
		return 0, utils.Kindf(utils.ErrBadValue, "nothing to gather: elmt_size=%d nelmts=%d", elmtSize, nelmts)
	}
	offset, size, err := slabShape(memSpace)
	if err != nil {
		return 0, err
	}
	if err := adjustStrip(offset, size, start, nelmts); err != nil {
		return 0, err
	}

	memSize := append(append([]uint64(nil), memSpace.Dims()...), elmtSize)
	size = append(size, elmtSize)
	offset = append(offset, 0)
	zero := make([]int64, len(size))

	if err := hyperCopy(len(size), size, size, zero, tconv, memSize, offset, buf); err != nil {
		return 0, utils.WrapError("unable to gather data from memory", err)
	}
	return nelmts, nil
}

// FileScatter scatters nelmts elements from the transfer buffer into the
// file beginning at linear element number start.
func FileScatter(arr ArrayIO, layout *Layout, pip *Pipeline, efl *ExternalFileList,
	elmtSize uint64, fileSpace *Dataspace, start, nelmts uint64, buf []byte) error {
	if elmtSize == 0 || nelmts == 0 {
		return utils.Kindf(utils.ErrBadValue, "nothing to scatter: elmt_size=%d nelmts=%d", elmtSize, nelmts)
	}
	offset, size, err := slabShape(fileSpace)
	if err != nil {
		return err
	}
	if err := adjustStrip(offset, size, start, nelmts); err != nil {
		return err
	}

	size = append(size, elmtSize)
	offset = append(offset, 0)
	zero := make([]int64, len(size))

	if err := arr.ArrWrite(layout, pip, efl, size, size, zero, offset, buf); err != nil {
		return utils.WrapError("write error", err)
	}
	return nil
}

// checkSelections applies the selection rules shared by both surfaces.
func checkSelections(fileSpace, memSpace *Dataspace) error {
	for _, ds := range []*Dataspace{fileSpace, memSpace} {
		switch ds.Selection() {
		case SelNone:
			return utils.Kindf(utils.ErrBadValue, "selection not defined")
		case SelPoints, SelHyperslabs:
			return utils.Kindf(utils.ErrUnsupported, "selection type not supported currently")
		case SelAll:
		}
	}
	return nil
}

// directEligible reports whether a transfer can skip stripmining: both
// sides select their whole extents and the extents agree axis by axis.
func directEligible(fileSpace, memSpace *Dataspace) bool {
	if fileSpace.Rank() != memSpace.Rank() {
		return false
	}
	if fileSpace.slab != nil || memSpace.slab != nil {
		return false
	}
	fd, md := fileSpace.Dims(), memSpace.Dims()
	for i := range fd {
		if fd[i] != md[i] {
			return false
		}
	}
	return true
}

// DirectRead reads a whole dataset in one array operation, converting
// dataspaces in a single step.
func DirectRead(arr ArrayIO, layout *Layout, pip *Pipeline, efl *ExternalFileList,
	elmtSize uint64, fileSpace, memSpace *Dataspace, buf []byte) error {
	r := fileSpace.Rank()
	hslabSize := make([]uint64, r+1)
	memSize := make([]uint64, r+1)
	copy(hslabSize, fileSpace.Dims())
	copy(memSize, memSpace.Dims())
	hslabSize[r] = elmtSize
	memSize[r] = elmtSize
	fileOffset := make([]int64, r+1)
	memOffset := make([]int64, r+1)

	if err := arr.ArrRead(layout, pip, efl, hslabSize, memSize, memOffset, fileOffset, buf); err != nil {
		return utils.WrapError("unable to read dataset", err)
	}
	return nil
}

// DirectWrite writes a whole dataset in one array operation.
func DirectWrite(arr ArrayIO, layout *Layout, pip *Pipeline, efl *ExternalFileList,
	elmtSize uint64, fileSpace, memSpace *Dataspace, buf []byte) error {
	r := fileSpace.Rank()
	hslabSize := make([]uint64, r+1)
	memSize := make([]uint64, r+1)
	copy(hslabSize, fileSpace.Dims())
	copy(memSize, memSpace.Dims())
	hslabSize[r] = elmtSize
	memSize[r] = elmtSize
	fileOffset := make([]int64, r+1)
	memOffset := make([]int64, r+1)

	if err := arr.ArrWrite(layout, pip, efl, hslabSize, memSize, memOffset, fileOffset, buf); err != nil {
		return utils.WrapError("unable to write dataset", err)
	}
	return nil
}

// Read moves one dataset's worth of elements from the file into the
// application buffer. Whole-extent transfers with agreeing shapes go
// through the direct path; everything else is stripmined through the
// gather/scatter primitives with a bounded pass buffer.
func Read(arr ArrayIO, layout *Layout, pip *Pipeline, efl *ExternalFileList,
	elmtSize uint64, fileSpace, memSpace *Dataspace, opts *TransferOptions, buf []byte) error {
	if err := checkSelections(fileSpace, memSpace); err != nil {
		return err
	}
	if _, _, err := slabShape(fileSpace); err != nil {
		return err
	}
	if _, _, err := slabShape(memSpace); err != nil {
		return err
	}

	total := fileSpace.SelectNPoints()
	if total != memSpace.SelectNPoints() {
		return utils.Kindf(utils.ErrBadValue, "memory and file selections differ: %d vs %d elements",
			memSpace.SelectNPoints(), total)
	}
	nbytes, err := utils.SafeMultiply(total, elmtSize)
	if err != nil {
		return err
	}
	if uint64(len(buf)) < nbytes {
		return utils.Kindf(utils.ErrBadValue, "application buffer holds %d bytes, transfer needs %d", len(buf), nbytes)
	}

	if directEligible(fileSpace, memSpace) {
		return DirectRead(arr, layout, pip, efl, elmtSize, fileSpace, memSpace, buf)
	}

	smine, err := Stripmine(memSpace, fileSpace, opts.bufferSize()/elmtSize)
	if err != nil {
		return err
	}
	tconv := tconvPool.Alloc(smine*elmtSize, false)
	defer tconvPool.Free(tconv)

	for start := uint64(0); start < total; {
		n := smine
		if rest := total - start; n > rest {
			n = rest
		}
		if _, err := FileGather(arr, layout, pip, efl, elmtSize, fileSpace, start, n, tconv); err != nil {
			return err
		}
		if err := MemScatter(tconv, elmtSize, memSpace, start, n, buf); err != nil {
			return err
		}
		start += n
	}
	return nil
}

// Write moves one dataset's worth of elements from the application buffer
// into the file. The file is not modified after a scatter error is
// reported.
func Write(arr ArrayIO, layout *Layout, pip *Pipeline, efl *ExternalFileList,
	elmtSize uint64, fileSpace, memSpace *Dataspace, opts *TransferOptions, buf []byte) error {
	if err := checkSelections(fileSpace, memSpace); err != nil {
		return err
	}
	if _, _, err := slabShape(fileSpace); err != nil {
		return err
	}
	if _, _, err := slabShape(memSpace); err != nil {
		return err
	}

	total := fileSpace.SelectNPoints()
	if total != memSpace.SelectNPoints() {
		return utils.Kindf(utils.ErrBadValue, "memory and file selections differ: %d vs %d elements",
			memSpace.SelectNPoints(), total)
	}
	nbytes, err := utils.SafeMultiply(total, elmtSize)
	if err != nil {
		return err
	}
	if uint64(len(buf)) < nbytes {
		return utils.Kindf(utils.ErrBadValue, "application buffer holds %d bytes, transfer needs %d", len(buf), nbytes)
	}

	if directEligible(fileSpace, memSpace) {
		return DirectWrite(arr, layout, pip, efl, elmtSize, fileSpace, memSpace, buf)
	}

	smine, err := Stripmine(memSpace, fileSpace, opts.bufferSize()/elmtSize)
	if err != nil {
		return err
	}
	tconv := tconvPool.Alloc(smine*elmtSize, false)
	defer tconvPool.Free(tconv)

	for start := uint64(0); start < total; {
		n := smine
		if rest := total - start; n > rest {
			n = rest
		}
		if _, err := MemGather(buf, elmtSize, memSpace, start, n, tconv); err != nil {
			return err
		}
		if err := FileScatter(arr, layout, pip, efl, elmtSize, fileSpace, start, n, tconv); err != nil {
			return err
		}
		start += n
	}
	return nil
}
