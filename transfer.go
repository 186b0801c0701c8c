package h5core

import (
	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/utils"
	"github.com/scigolib/h5core/internal/xfer"
)

// CreateDataset reserves contiguous raw-data space for an array of the
// given extent and element size and returns its layout. The layout is the
// handle the transfer operations address storage through; persisting it in
// an object header is the (external) object-header layer's job.
func (f *File) CreateDataset(dims []uint64, elmtSize uint64) (*xfer.Layout, error) {
	if !f.writable {
		return nil, utils.Kindf(utils.ErrCantCreate, "file is not writable")
	}
	if len(dims) == 0 || elmtSize == 0 {
		return nil, utils.Kindf(utils.ErrBadValue, "dataset needs dimensions and an element size")
	}
	full := make([]uint64, 0, len(dims)+1)
	full = append(full, dims...)
	full = append(full, elmtSize)
	nbytes, err := utils.DimsProduct(full)
	if err != nil {
		return nil, err
	}
	addr, err := f.drv.Alloc(driver.KindDraw, nbytes)
	if err != nil {
		return nil, utils.Kindf(utils.ErrCantCreate, "raw data allocation failed: %v", err)
	}
	return &xfer.Layout{Addr: addr, Dims: full}, nil
}

// OpenDataset rebuilds a layout for contiguous storage at a known address.
func (f *File) OpenDataset(addr uint64, dims []uint64, elmtSize uint64) *xfer.Layout {
	full := make([]uint64, 0, len(dims)+1)
	full = append(full, dims...)
	full = append(full, elmtSize)
	return &xfer.Layout{Addr: addr, Dims: full}
}

// ReadDataset transfers elements from the file into buf, shaped by the
// pair of dataspaces.
func (f *File) ReadDataset(layout *xfer.Layout, pip *xfer.Pipeline, efl *xfer.ExternalFileList,
	elmtSize uint64, fileSpace, memSpace *xfer.Dataspace, opts *xfer.TransferOptions, buf []byte) error {
	arr := &xfer.ContiguousArray{D: f.drv, Kind: driver.KindDraw}
	return xfer.Read(arr, layout, pip, efl, elmtSize, fileSpace, memSpace, opts, buf)
}

// WriteDataset transfers elements from buf into the file, shaped by the
// pair of dataspaces.
func (f *File) WriteDataset(layout *xfer.Layout, pip *xfer.Pipeline, efl *xfer.ExternalFileList,
	elmtSize uint64, fileSpace, memSpace *xfer.Dataspace, opts *xfer.TransferOptions, buf []byte) error {
	if !f.writable {
		return utils.Kindf(utils.ErrIO, "file is not writable")
	}
	arr := &xfer.ContiguousArray{D: f.drv, Kind: driver.KindDraw}
	return xfer.Write(arr, layout, pip, efl, elmtSize, fileSpace, memSpace, opts, buf)
}
