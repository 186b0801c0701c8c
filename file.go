// Package h5core implements the file container layer of the HDF5 format:
// the superblock and driver info block, the pluggable file-driver address
// space, the typed free-list allocator, and the hyperslab transfer pipeline
// that moves dataset elements between application memory and the file.
// Object headers, B-tree indexes, and datatype conversion are external
// collaborators reached through narrow contracts.
package h5core

import (
	"github.com/scigolib/h5core/internal/core"
	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/freelist"
	"github.com/scigolib/h5core/internal/utils"
)

// File is an open container file: the decoded superblock, the driver that
// backs its address space, and the property lists it was created and opened
// with. A File is single-goroutine: it holds no lock of its own.
type File struct {
	drv       driver.Driver
	sb        *core.Superblock
	cplist    *core.PropertyList
	aplist    *core.PropertyList
	rootLoc   core.ObjLoc
	nopenObjs int
	writable  bool
	sohm      core.SOHMInfo
}

// CreateOptions configures a new file. Zero fields take the format
// defaults.
type CreateOptions struct {
	UserBlockSize uint64
	SuperVersion  uint8
	SizeofAddr    uint8
	SizeofSize    uint8
	SymLeafK      uint16
	BtreeK        [core.NumBtreeID]uint16
	SOHMNIndexes  uint8

	// Driver overrides the default sec2 driver. The caller keeps ownership
	// of nothing: Close closes the driver.
	Driver driver.Driver
}

// OpenOptions configures opening an existing file.
type OpenOptions struct {
	ReadWrite bool

	// Driver overrides the default sec2 driver.
	Driver driver.Driver

	// FamToSec2 discards the driver information stored in the file so a
	// repartitioned family can be opened through a plain driver.
	FamToSec2 bool
}

// Create creates a new container file, bootstraps an empty root group, and
// writes the superblock.
func Create(path string, opts *CreateOptions) (*File, error) {
	if opts == nil {
		opts = &CreateOptions{}
	}
	cplist := core.DefaultCreateList()
	if err := applyCreateOptions(cplist, opts); err != nil {
		return nil, err
	}

	drv := opts.Driver
	if drv == nil {
		var err error
		drv, err = driver.CreateSec2(path)
		if err != nil {
			return nil, utils.WrapError("file create failed", err)
		}
	}

	f := &File{
		drv:      drv,
		cplist:   cplist,
		aplist:   core.NewPropertyList(),
		writable: true,
	}

	sb, err := core.InitSuperblock(drv, cplist, f)
	if err != nil {
		_ = drv.Close()
		return nil, utils.WrapError("superblock init failed", err)
	}
	f.sb = sb

	// The root group exists from the moment the file does: a header with
	// no messages.
	rootAddr, err := core.WriteObjectHeader(drv, nil)
	if err != nil {
		_ = drv.Close()
		return nil, utils.WrapError("root group create failed", err)
	}
	// Entry addresses persist relative to the base address; the location
	// keeps the absolute form.
	f.rootLoc = core.ObjLoc{Addr: rootAddr}
	sb.RootEnt = core.SymbolTableEntry{HeaderAddr: rootAddr - sb.BaseAddr}

	if err := core.WriteSuperblock(drv, sb); err != nil {
		_ = drv.Close()
		return nil, utils.WrapError("superblock write failed", err)
	}
	return f, nil
}

// Open opens an existing container file and decodes its superblock.
func Open(path string, opts *OpenOptions) (*File, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}
	drv := opts.Driver
	if drv == nil {
		var err error
		drv, err = driver.OpenSec2(path, opts.ReadWrite)
		if err != nil {
			return nil, utils.WrapError("file open failed", err)
		}
	}

	f := &File{
		drv:      drv,
		cplist:   core.NewPropertyList(),
		aplist:   core.NewPropertyList(),
		writable: opts.ReadWrite,
	}

	sb, err := core.ReadSuperblock(drv, f.cplist, f, opts.FamToSec2)
	if err != nil {
		_ = drv.Close()
		return nil, utils.WrapError("superblock read failed", err)
	}
	f.sb = sb

	if utils.AddrDefined(sb.RootEnt.HeaderAddr) {
		rootAddr := sb.BaseAddr + sb.RootEnt.HeaderAddr
		if _, err := core.ReadObjectHeader(drv, rootAddr); err != nil {
			_ = drv.Close()
			return nil, utils.WrapError("root group load failed", err)
		}
		f.rootLoc = core.ObjLoc{Addr: rootAddr}
	}
	return f, nil
}

func applyCreateOptions(cplist *core.PropertyList, opts *CreateOptions) error {
	set := func(key string, v interface{}) error { return cplist.Set(key, v) }
	if err := set(core.PropUserBlockSize, opts.UserBlockSize); err != nil {
		return err
	}
	if opts.SuperVersion > core.SuperblockVersionLatest {
		return utils.Kindf(utils.ErrBadValue, "bad superblock version number %d", opts.SuperVersion)
	}
	if err := set(core.PropSuperVersion, opts.SuperVersion); err != nil {
		return err
	}
	if opts.SizeofAddr != 0 {
		if err := set(core.PropSizeofAddr, opts.SizeofAddr); err != nil {
			return err
		}
	}
	if opts.SizeofSize != 0 {
		if err := set(core.PropSizeofSize, opts.SizeofSize); err != nil {
			return err
		}
	}
	if opts.SymLeafK != 0 {
		if err := set(core.PropSymLeafK, opts.SymLeafK); err != nil {
			return err
		}
	}
	if opts.BtreeK != ([core.NumBtreeID]uint16{}) {
		if err := set(core.PropBtreeRank, opts.BtreeK); err != nil {
			return err
		}
	}
	return set(core.PropSOHMNIndexes, opts.SOHMNIndexes)
}

// ReadExtension implements the superblock extension contract: the
// extension stays open for the duration of the read so closing it cannot
// tear down the file's last open object.
func (f *File) ReadExtension(addr uint64, plist *core.PropertyList) error {
	f.nopenObjs++
	err := core.ReadExtensionObject(f.drv, addr, plist)
	f.nopenObjs--
	if err != nil {
		return err
	}
	if v, gerr := plist.Get(core.PropSOHMNIndexes); gerr == nil {
		if n, ok := v.(uint8); ok {
			f.sohm.NIndexes = n
		}
	}
	if v, gerr := plist.Get(core.PropSOHMTableAddr); gerr == nil {
		if a, ok := v.(uint64); ok {
			f.sohm.TableAddr = a
		}
	}
	return nil
}

// CreateExtension implements the create-path extension contract.
func (f *File) CreateExtension(plist *core.PropertyList) (uint64, error) {
	info := core.SOHMInfo{TableAddr: driver.Undef}
	if v, err := plist.Get(core.PropSOHMNIndexes); err == nil {
		if n, ok := v.(uint8); ok {
			info.NIndexes = n
		}
	}
	addr, err := core.CreateExtensionObject(f.drv, info)
	if err != nil {
		return driver.Undef, err
	}
	f.sohm = info
	return addr, nil
}

// Close flushes the superblock when the file is writable, drains the
// free-list allocators, and closes the driver. Close is safe to call more
// than once.
func (f *File) Close() error {
	if f.drv == nil {
		return nil
	}
	var err error
	if f.writable && f.sb != nil {
		err = core.WriteSuperblock(f.drv, f.sb)
	}
	freelist.GarbageCollect()
	cerr := f.drv.Close()
	f.drv = nil
	if err != nil {
		return err
	}
	return cerr
}

// Superblock returns the decoded superblock.
func (f *File) Superblock() *core.Superblock { return f.sb }

// SuperblockVersion returns the superblock format version.
func (f *File) SuperblockVersion() uint8 { return f.sb.Version }

// Driver returns the file's address-space driver.
func (f *File) Driver() driver.Driver { return f.drv }

// RootAddr returns the root group's object header address.
func (f *File) RootAddr() uint64 { return f.rootLoc.Addr }

// SOHMInfo returns the shared-message table info recorded in the
// superblock extension, if any.
func (f *File) SOHMInfo() core.SOHMInfo { return f.sohm }

// NumOpenObjects returns the file's open-object count.
func (f *File) NumOpenObjects() int { return f.nopenObjs }

// CreationProperties returns the creation property list, populated from
// the superblock on open.
func (f *File) CreationProperties() *core.PropertyList { return f.cplist }
