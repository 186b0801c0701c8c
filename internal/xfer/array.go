package xfer

import (
	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/utils"
)

// Layout describes where and how one dataset's elements are stored. Dims is
// the full file-array extent with a trailing element-size byte dimension,
// matching the shape vectors the primitives build. StoredSize is the
// on-disk byte count when a filter pipeline is applied; zero means raw.
type Layout struct {
	Addr       uint64
	Dims       []uint64
	StoredSize uint64
}

// ExternalFile is one segment of an external file list.
type ExternalFile struct {
	Name   string
	Offset uint64
	Size   uint64
}

// ExternalFileList describes data stored outside the container file. The
// contiguous array layer does not implement it; a non-empty list fails
// with ErrUnsupported.
type ExternalFileList struct {
	Entries []ExternalFile
}

// ArrayIO is the array-read/array-write contract between the transfer
// pipeline and the storage index layer. The hyperslab size, memory extent,
// and the two origins address byte rectangles; the trailing dimension of
// every shape vector is the element size.
type ArrayIO interface {
	ArrRead(layout *Layout, pip *Pipeline, efl *ExternalFileList,
		hslabSize, memSize []uint64, memOffset, fileOffset []int64, buf []byte) error
	ArrWrite(layout *Layout, pip *Pipeline, efl *ExternalFileList,
		hslabSize, memSize []uint64, memOffset, fileOffset []int64, buf []byte) error
}

// ContiguousArray implements ArrayIO for contiguous layouts backed by a
// file driver. Chunked and indexed layouts live behind the same contract in
// the B-tree layer and stay external to the container core.
type ContiguousArray struct {
	D    driver.Driver
	Kind driver.AllocKind
}

func (c *ContiguousArray) validate(layout *Layout, efl *ExternalFileList,
	hslabSize, memSize []uint64, memOffset, fileOffset []int64) error {
	if efl != nil && len(efl.Entries) > 0 {
		return utils.Kindf(utils.ErrUnsupported, "external file lists are not implemented for contiguous storage")
	}
	n := len(layout.Dims)
	if n == 0 {
		return utils.Kindf(utils.ErrBadValue, "layout has no dimensions")
	}
	if len(hslabSize) != n || len(memSize) != n || len(memOffset) != n || len(fileOffset) != n {
		return utils.Kindf(utils.ErrBadValue, "shape vector rank mismatch against %d-dimensional layout", n)
	}
	for i := 0; i < n; i++ {
		if fileOffset[i] < 0 || memOffset[i] < 0 {
			return utils.Kindf(utils.ErrBadRange, "negative rectangle origin in dimension %d", i)
		}
		if uint64(fileOffset[i])+hslabSize[i] > layout.Dims[i] {
			return utils.Kindf(utils.ErrBadRange, "rectangle exceeds file array in dimension %d", i)
		}
		if uint64(memOffset[i])+hslabSize[i] > memSize[i] {
			return utils.Kindf(utils.ErrBadRange, "rectangle exceeds memory array in dimension %d", i)
		}
	}
	return nil
}

// ArrRead gathers a byte rectangle from contiguous storage into buf.
func (c *ContiguousArray) ArrRead(layout *Layout, pip *Pipeline, efl *ExternalFileList,
	hslabSize, memSize []uint64, memOffset, fileOffset []int64, buf []byte) error {
	if err := c.validate(layout, efl, hslabSize, memSize, memOffset, fileOffset); err != nil {
		return err
	}
	if !pip.IsEmpty() {
		return c.filteredRead(layout, pip, hslabSize, memSize, memOffset, fileOffset, buf)
	}
	return c.eachRun(layout, hslabSize, memSize, memOffset, fileOffset,
		func(fileOff, memOff, run uint64) error {
			return c.D.ReadAt(c.Kind, buf[memOff:memOff+run], layout.Addr+fileOff)
		})
}

// ArrWrite scatters a byte rectangle from buf into contiguous storage,
// allocating the full array on first write.
func (c *ContiguousArray) ArrWrite(layout *Layout, pip *Pipeline, efl *ExternalFileList,
	hslabSize, memSize []uint64, memOffset, fileOffset []int64, buf []byte) error {
	if err := c.validate(layout, efl, hslabSize, memSize, memOffset, fileOffset); err != nil {
		return err
	}
	if !pip.IsEmpty() {
		return c.filteredWrite(layout, pip, hslabSize, memSize, memOffset, fileOffset, buf)
	}
	if !utils.AddrDefined(layout.Addr) {
		nbytes, err := utils.DimsProduct(layout.Dims)
		if err != nil {
			return err
		}
		addr, err := c.D.Alloc(c.Kind, nbytes)
		if err != nil {
			return utils.Kindf(utils.ErrIO, "contiguous storage allocation failed: %v", err)
		}
		layout.Addr = addr
	}
	return c.eachRun(layout, hslabSize, memSize, memOffset, fileOffset,
		func(fileOff, memOff, run uint64) error {
			return c.D.WriteAt(c.Kind, buf[memOff:memOff+run], layout.Addr+fileOff)
		})
}

// eachRun walks the rectangle as maximal contiguous byte runs, handing each
// run's linear file and memory offsets to fn.
func (c *ContiguousArray) eachRun(layout *Layout, size, memSize []uint64,
	memOffset, fileOffset []int64, fn func(fileOff, memOff, run uint64) error) error {
	n := len(size)

	run := uint64(1)
	outer := n
	for outer > 0 {
		i := outer - 1
		if size[i] == layout.Dims[i] && size[i] == memSize[i] && fileOffset[i] == 0 && memOffset[i] == 0 {
			run *= size[i]
			outer--
			continue
		}
		break
	}
	if outer > 0 {
		run *= size[outer-1]
		outer--
	}

	fileStride, err := rowStrides(layout.Dims)
	if err != nil {
		return err
	}
	memStride, err := rowStrides(memSize)
	if err != nil {
		return err
	}

	idx := make([]uint64, outer)
	for {
		fileOff := uint64(0)
		memOff := uint64(0)
		for i := 0; i < outer; i++ {
			fileOff += (uint64(fileOffset[i]) + idx[i]) * fileStride[i]
			memOff += (uint64(memOffset[i]) + idx[i]) * memStride[i]
		}
		if outer < n {
			fileOff += uint64(fileOffset[outer]) * fileStride[outer]
			memOff += uint64(memOffset[outer]) * memStride[outer]
		}
		if err := fn(fileOff, memOff, run); err != nil {
			return err
		}

		i := outer - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < size[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// filteredRead handles pipelines on the contiguous path. Filtered data is
// one encoded stream, so only whole-array rectangles can be addressed.
func (c *ContiguousArray) filteredRead(layout *Layout, pip *Pipeline,
	hslabSize, memSize []uint64, memOffset, fileOffset []int64, buf []byte) error {
	if err := c.requireFullArray(layout, hslabSize, memSize, memOffset, fileOffset); err != nil {
		return err
	}
	if layout.StoredSize == 0 || !utils.AddrDefined(layout.Addr) {
		return utils.Kindf(utils.ErrBadValue, "filtered layout has no stored data")
	}
	raw := make([]byte, layout.StoredSize)
	if err := c.D.ReadAt(c.Kind, raw, layout.Addr); err != nil {
		return utils.WrapError("filtered data read failed", err)
	}
	data, err := pip.DecodeData(raw)
	if err != nil {
		return err
	}
	nbytes, err := utils.DimsProduct(layout.Dims)
	if err != nil {
		return err
	}
	if uint64(len(data)) != nbytes {
		return utils.Kindf(utils.ErrIO, "filter pipeline produced %d bytes, array holds %d", len(data), nbytes)
	}
	copy(buf, data)
	return nil
}

func (c *ContiguousArray) filteredWrite(layout *Layout, pip *Pipeline,
	hslabSize, memSize []uint64, memOffset, fileOffset []int64, buf []byte) error {
	if err := c.requireFullArray(layout, hslabSize, memSize, memOffset, fileOffset); err != nil {
		return err
	}
	nbytes, err := utils.DimsProduct(layout.Dims)
	if err != nil {
		return err
	}
	encoded, err := pip.EncodeData(buf[:nbytes])
	if err != nil {
		return err
	}
	if !utils.AddrDefined(layout.Addr) || uint64(len(encoded)) > layout.StoredSize {
		addr, err := c.D.Alloc(c.Kind, uint64(len(encoded)))
		if err != nil {
			return utils.Kindf(utils.ErrIO, "filtered storage allocation failed: %v", err)
		}
		layout.Addr = addr
	}
	layout.StoredSize = uint64(len(encoded))
	if err := c.D.WriteAt(c.Kind, encoded, layout.Addr); err != nil {
		return utils.WrapError("filtered data write failed", err)
	}
	return nil
}

func (c *ContiguousArray) requireFullArray(layout *Layout,
	hslabSize, memSize []uint64, memOffset, fileOffset []int64) error {
	for i := range layout.Dims {
		if hslabSize[i] != layout.Dims[i] || memSize[i] != layout.Dims[i] ||
			memOffset[i] != 0 || fileOffset[i] != 0 {
			return utils.Kindf(utils.ErrUnsupported, "filtered contiguous storage supports whole-array transfers only")
		}
	}
	return nil
}
