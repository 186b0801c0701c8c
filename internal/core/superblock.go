package core

import (
	"bytes"
	"encoding/binary"

	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/utils"
)

// Signature is the 8-byte mark opening every file of the format.
const Signature = "\x89HDF\r\n\x1a\n"

// SignatureLen is the length of the format signature.
const SignatureLen = 8

// Superblock format versions.
const (
	SuperblockVersionDef    = 0
	SuperblockVersion1      = 1
	SuperblockVersion2      = 2
	SuperblockVersionLatest = 2
)

// Versions of the subsystem formats recorded in the superblock. Decoding
// rejects any other value.
const (
	FreespaceVersion    = 0
	ObjectDirVersion    = 0
	SharedHeaderVersion = 0
)

// B-tree identifiers for the per-tree internal-node ranks.
const (
	BtreeSnodeID  = 0
	BtreeIstoreID = 1
	NumBtreeID    = 2
)

// Default shape parameters for freshly created files.
const (
	SymLeafKDefault      = 4
	BtreeSnodeIKDefault  = 16
	BtreeIstoreIKDefault = 32
)

// Driver info block framing.
const (
	DriverInfoVersion0      = 0
	DriverInfoVersionLatest = 0
	DrvInfoHdrSize          = 16
	SizeofChecksum          = 4
)

const superblockFixedSize = SignatureLen + 1

// Superblock holds the decoded format preamble: global shape parameters,
// the four principal addresses, and the root group entry.
type Superblock struct {
	Version             uint8
	FreespaceVersion    uint8
	ObjectDirVersion    uint8
	SharedHeaderVersion uint8
	SizeofAddr          uint8
	SizeofSize          uint8
	SymLeafK            uint16
	BtreeK              [NumBtreeID]uint16
	ConsistFlags        uint32

	SuperAddr     uint64
	BaseAddr      uint64
	ExtensionAddr uint64
	DriverAddr    uint64 // relative to BaseAddr
	StoredEOA     uint64

	RootEnt SymbolTableEntry
}

// varlenSize is the byte count of the version-specific superblock body.
func varlenSize(vers, addrSize uint8) uint64 {
	common := uint64(15)
	entry := SymbolTableEntrySize(addrSize)
	addrs := 4 * uint64(addrSize)
	switch vers {
	case SuperblockVersionDef:
		return common + addrs + entry
	case SuperblockVersion1:
		return common + 2 + 2 + addrs + entry
	default:
		return common + 2 + addrs + entry + SizeofChecksum
	}
}

// SuperblockSize returns the full encoded size of a superblock, the
// version-2 trailing checksum included.
func SuperblockSize(vers, addrSize uint8) uint64 {
	return superblockFixedSize + varlenSize(vers, addrSize)
}

func checksumSize(vers uint8) uint64 {
	if vers >= SuperblockVersion2 {
		return SizeofChecksum
	}
	return 0
}

// LocateSignature scans for the format signature at offset 0 and at every
// power of two from 512 up to the smallest power strictly greater than EOF.
// Each probe speculatively raises the end-of-allocated mark; the saved mark
// is restored when no candidate matches.
func LocateSignature(d driver.Driver) (uint64, error) {
	eof, err := d.EOF()
	if err != nil {
		return driver.Undef, utils.Kindf(utils.ErrCantInit, "unable to obtain EOF value: %v", err)
	}
	savedEOA := d.EOA(driver.KindSuper)

	maxpow := uint(0)
	for v := eof; v != 0; v >>= 1 {
		maxpow++
	}
	if maxpow < 9 {
		maxpow = 9
	}

	sig := utils.GetBuffer(SignatureLen)
	defer utils.ReleaseBuffer(sig)
	for n := uint(8); n < maxpow; n++ {
		addr := uint64(0)
		if n > 8 {
			addr = uint64(1) << n
		}
		if err := d.SetEOA(driver.KindSuper, addr+SignatureLen); err != nil {
			return driver.Undef, utils.Kindf(utils.ErrCantInit, "unable to set EOA for signature probe: %v", err)
		}
		if err := d.ReadAt(driver.KindSuper, sig, addr); err != nil {
			continue // absence at this candidate; keep searching
		}
		if bytes.Equal(sig, []byte(Signature)) {
			return addr, nil
		}
	}

	_ = d.SetEOA(driver.KindSuper, savedEOA)
	return driver.Undef, utils.Kindf(utils.ErrNotHDF5, "unable to find a valid file signature")
}

// ReadSuperblock locates and decodes the superblock, publishes the shape
// parameters into the creation property list, verifies the checksum and
// truncation state, decodes the driver info block, and reads the extension
// through the handler. famToSec2 discards stored driver information so a
// repartitioned family can be opened through a plain driver.
//
//nolint:maintidx // version-crossed format parsing is irreducibly branchy
func ReadSuperblock(d driver.Driver, plist *PropertyList, ext ExtensionHandler, famToSec2 bool) (*Superblock, error) {
	sb := &Superblock{}

	superAddr, err := LocateSignature(d)
	if err != nil {
		return nil, utils.WrapError("superblock search failed", err)
	}
	sb.SuperAddr = superAddr

	// Fixed-size prefix: signature (already checked) and version.
	buf := make([]byte, 512)
	if err := readRaising(d, buf[:superblockFixedSize], superAddr); err != nil {
		return nil, utils.WrapError("unable to read superblock", err)
	}
	sb.Version = buf[SignatureLen]
	if sb.Version > SuperblockVersionLatest {
		return nil, utils.Kindf(utils.ErrBadValue, "bad superblock version number %d", sb.Version)
	}
	if err := plist.Set(PropSuperVersion, sb.Version); err != nil {
		return nil, err
	}

	// Common variable-size body: subsystem versions, widths, ranks, flags.
	p := uint64(superblockFixedSize)
	if err := readRaising(d, buf[p:p+15], superAddr+p); err != nil {
		return nil, utils.WrapError("unable to read superblock", err)
	}
	sb.FreespaceVersion = buf[p]
	if sb.FreespaceVersion != FreespaceVersion {
		return nil, utils.Kindf(utils.ErrBadValue, "bad free space version number %d", sb.FreespaceVersion)
	}
	sb.ObjectDirVersion = buf[p+1]
	if sb.ObjectDirVersion != ObjectDirVersion {
		return nil, utils.Kindf(utils.ErrBadValue, "bad object directory version number %d", sb.ObjectDirVersion)
	}
	sb.SharedHeaderVersion = buf[p+3]
	if sb.SharedHeaderVersion != SharedHeaderVersion {
		return nil, utils.Kindf(utils.ErrBadValue, "bad shared-header format version number %d", sb.SharedHeaderVersion)
	}
	sb.SizeofAddr = buf[p+4]
	if !utils.ValidOffsetSize(sb.SizeofAddr) {
		return nil, utils.Kindf(utils.ErrBadValue, "bad byte number in an address: %d", sb.SizeofAddr)
	}
	sb.SizeofSize = buf[p+5]
	if !utils.ValidOffsetSize(sb.SizeofSize) {
		return nil, utils.Kindf(utils.ErrBadValue, "bad byte number for object size: %d", sb.SizeofSize)
	}
	sb.SymLeafK = binary.LittleEndian.Uint16(buf[p+7:])
	if sb.SymLeafK == 0 {
		return nil, utils.Kindf(utils.ErrBadRange, "bad symbol table leaf node 1/2 rank")
	}
	sb.BtreeK[BtreeSnodeID] = binary.LittleEndian.Uint16(buf[p+9:])
	if sb.BtreeK[BtreeSnodeID] == 0 {
		return nil, utils.Kindf(utils.ErrBadRange, "bad 1/2 rank for btree internal nodes")
	}
	sb.ConsistFlags = binary.LittleEndian.Uint32(buf[p+11:])
	p += 15

	if err := plist.Set(PropFreespaceVersion, sb.FreespaceVersion); err != nil {
		return nil, err
	}
	if err := plist.Set(PropObjectDirVersion, sb.ObjectDirVersion); err != nil {
		return nil, err
	}
	if err := plist.Set(PropSharedHeaderVersion, sb.SharedHeaderVersion); err != nil {
		return nil, err
	}
	if err := plist.Set(PropSizeofAddr, sb.SizeofAddr); err != nil {
		return nil, err
	}
	if err := plist.Set(PropSizeofSize, sb.SizeofSize); err != nil {
		return nil, err
	}
	if err := plist.Set(PropSymLeafK, sb.SymLeafK); err != nil {
		return nil, err
	}

	// Remainder of the version-specific body.
	total := superblockFixedSize + varlenSize(sb.Version, sb.SizeofAddr)
	if err := readRaising(d, buf[p:total], superAddr+p); err != nil {
		return nil, utils.WrapError("unable to read superblock", err)
	}

	if sb.Version > SuperblockVersionDef {
		sb.BtreeK[BtreeIstoreID] = binary.LittleEndian.Uint16(buf[p:])
		if sb.BtreeK[BtreeIstoreID] == 0 {
			return nil, utils.Kindf(utils.ErrBadRange, "bad 1/2 rank for indexed storage btree nodes")
		}
		p += 2
		if sb.Version == SuperblockVersion1 {
			p += 2 // reserved
		}
	} else {
		sb.BtreeK[BtreeIstoreID] = BtreeIstoreIKDefault
	}
	if err := plist.Set(PropBtreeRank, sb.BtreeK); err != nil {
		return nil, err
	}

	for _, dst := range []*uint64{&sb.BaseAddr, &sb.ExtensionAddr, &sb.StoredEOA, &sb.DriverAddr} {
		v, err := utils.DecodeOffset(buf[p:], sb.SizeofAddr)
		if err != nil {
			return nil, utils.WrapError("superblock address decode failed", err)
		}
		*dst = v
		p += uint64(sb.SizeofAddr)
	}

	ent, n, err := decodeSymbolTableEntry(buf[p:], sb.SizeofAddr)
	if err != nil {
		return nil, utils.Kindf(utils.ErrCantOpen, "unable to read root symbol entry: %v", err)
	}
	sb.RootEnt = ent
	p += n

	// Files renamed or concatenated into a user-block preamble move the
	// superblock away from the recorded base address; shift the stored EOA
	// by the signed delta and rebase.
	if sb.SuperAddr != sb.BaseAddr {
		if sb.SuperAddr < sb.BaseAddr {
			sb.StoredEOA -= sb.BaseAddr - sb.SuperAddr
		} else {
			sb.StoredEOA += sb.SuperAddr - sb.BaseAddr
		}
		sb.BaseAddr = sb.SuperAddr
	}

	if famToSec2 {
		sb.DriverAddr = driver.Undef
	}

	// Optional driver info block; checksummed together with the superblock.
	var drvBlock []byte
	if utils.AddrDefined(sb.DriverAddr) {
		drvAddr := sb.BaseAddr + sb.DriverAddr
		hdr := make([]byte, DrvInfoHdrSize)
		if err := readRaising(d, hdr, drvAddr); err != nil {
			return nil, utils.Kindf(utils.ErrCantOpen, "unable to read driver information block: %v", err)
		}
		if hdr[0] > DriverInfoVersionLatest {
			return nil, utils.Kindf(utils.ErrCantOpen, "bad driver information block version number %d", hdr[0])
		}
		drvSize := uint64(binary.LittleEndian.Uint32(hdr[4:]))
		var name [driver.SBNameLen]byte
		copy(name[:], hdr[8:])

		data := make([]byte, drvSize)
		if err := readRaising(d, data, drvAddr+DrvInfoHdrSize); err != nil {
			return nil, utils.Kindf(utils.ErrCantOpen, "unable to read file driver information: %v", err)
		}

		// The class check cannot be pushed into the drivers: it is the
		// mismatch between file and driver that must be detected.
		if string(name[:]) == "NCSAfami" && d.Name() != "family" {
			return nil, utils.Kindf(utils.ErrCantOpen, "family driver should be used")
		}
		if string(name[:]) == "NCSAmult" && d.Name() != "multi" {
			return nil, utils.Kindf(utils.ErrCantOpen, "multi driver should be used")
		}
		if err := d.SBDecode(name, data); err != nil {
			return nil, utils.Kindf(utils.ErrCantOpen, "unable to decode driver information: %v", err)
		}

		drvBlock = make([]byte, 0, DrvInfoHdrSize+drvSize)
		drvBlock = append(drvBlock, hdr...)
		drvBlock = append(drvBlock, data...)
	}

	if sb.Version >= SuperblockVersion2 {
		computed := MetadataChecksum(buf[:total-SizeofChecksum], 0)
		var stored uint32
		if drvBlock != nil {
			computed = MetadataChecksum(drvBlock, computed)
			tail := make([]byte, SizeofChecksum)
			tailAddr := sb.BaseAddr + sb.DriverAddr + uint64(len(drvBlock))
			if err := readRaising(d, tail, tailAddr); err != nil {
				return nil, utils.Kindf(utils.ErrCantOpen, "unable to read superblock checksum: %v", err)
			}
			stored = binary.LittleEndian.Uint32(tail)
		} else {
			stored = binary.LittleEndian.Uint32(buf[total-SizeofChecksum:])
		}
		if stored != computed {
			return nil, utils.Kindf(utils.ErrCantOpen, "bad checksum on driver information block")
		}
	}

	if err := plist.Set(PropUserBlockSize, sb.BaseAddr); err != nil {
		return nil, err
	}

	// A truncated file is detectable here: the first member of a family
	// opened individually is the classic case.
	eof, err := d.EOF()
	if err != nil {
		return nil, utils.Kindf(utils.ErrCantOpen, "unable to determine file size: %v", err)
	}
	if eof < sb.StoredEOA {
		return nil, utils.Kindf(utils.ErrTruncated, "truncated file: eof %d < stored eoa %d", eof, sb.StoredEOA)
	}
	if err := d.SetEOA(driver.KindSuper, sb.StoredEOA); err != nil {
		return nil, utils.Kindf(utils.ErrCantOpen, "unable to set end-of-address marker: %v", err)
	}

	if utils.AddrDefined(sb.ExtensionAddr) {
		if sb.Version < SuperblockVersion2 {
			return nil, utils.Kindf(utils.ErrBadValue, "superblock extension on version %d file", sb.Version)
		}
		if ext != nil {
			if err := ext.ReadExtension(sb.BaseAddr+sb.ExtensionAddr, plist); err != nil {
				return nil, utils.WrapError("superblock extension read failed", err)
			}
		}
	}

	return sb, nil
}

// readRaising raises the end-of-allocated mark over the target range before
// reading, the way the decode path walks an unknown-size preamble.
func readRaising(d driver.Driver, p []byte, addr uint64) error {
	if err := d.SetEOA(driver.KindSuper, addr+uint64(len(p))); err != nil {
		return utils.Kindf(utils.ErrCantInit, "set end of space allocation request failed: %v", err)
	}
	return d.ReadAt(driver.KindSuper, p, addr)
}

// InitSuperblock allocates and initializes the superblock for a new file.
// Nothing is written yet; WriteSuperblock persists the result. The single
// allocation spans the user block, superblock, and driver info block, and
// the driver must hand it back at format address zero.
func InitSuperblock(d driver.Driver, plist *PropertyList, ext ExtensionHandler) (*Superblock, error) {
	userBlock, err := getUint64(plist, PropUserBlockSize)
	if err != nil {
		return nil, utils.Kindf(utils.ErrCantGet, "unable to get user block size: %v", err)
	}
	vers, err := getUint8(plist, PropSuperVersion)
	if err != nil {
		return nil, utils.Kindf(utils.ErrCantGet, "unable to get superblock version: %v", err)
	}
	if vers > SuperblockVersionLatest {
		return nil, utils.Kindf(utils.ErrBadValue, "bad superblock version number %d", vers)
	}
	addrSize, err := getUint8(plist, PropSizeofAddr)
	if err != nil {
		return nil, err
	}
	sizeSize, err := getUint8(plist, PropSizeofSize)
	if err != nil {
		return nil, err
	}
	if !utils.ValidOffsetSize(addrSize) || !utils.ValidOffsetSize(sizeSize) {
		return nil, utils.Kindf(utils.ErrBadValue, "bad address or size width: %d/%d", addrSize, sizeSize)
	}
	if addrSize > 8 || sizeSize > 8 {
		// Wide addresses round-trip through the codec but are refused on
		// every allocation path.
		return nil, utils.Kindf(utils.ErrUnsupported, "cannot allocate with %d-byte addresses", addrSize)
	}
	symLeafK, err := getUint16(plist, PropSymLeafK)
	if err != nil {
		return nil, err
	}
	btreeK, err := getBtreeRank(plist, PropBtreeRank)
	if err != nil {
		return nil, utils.Kindf(utils.ErrCantGet, "unable to get rank for btree internal nodes: %v", err)
	}

	sb := &Superblock{
		Version:             vers,
		FreespaceVersion:    FreespaceVersion,
		ObjectDirVersion:    ObjectDirVersion,
		SharedHeaderVersion: SharedHeaderVersion,
		SizeofAddr:          addrSize,
		SizeofSize:          sizeSize,
		SymLeafK:            symLeafK,
		BtreeK:              btreeK,
		ConsistFlags:        0x03,
		SuperAddr:           userBlock,
		BaseAddr:            userBlock,
		ExtensionAddr:       driver.Undef,
		DriverAddr:          driver.Undef,
		RootEnt: SymbolTableEntry{
			HeaderAddr: driver.Undef,
		},
	}

	superSize := SuperblockSize(vers, addrSize)
	driverSize := d.SBSize()
	if driverSize > 0 {
		driverSize += DrvInfoHdrSize
		// The driver info block begins right after the superblock body,
		// before the version-2 trailing checksum that covers them both.
		sb.DriverAddr = superSize - checksumSize(vers)
	}

	addr, err := d.Alloc(driver.KindSuper, userBlock+superSize+driverSize)
	if err != nil {
		return nil, utils.Kindf(utils.ErrCantInit, "unable to allocate file space for userblock and/or superblock: %v", err)
	}
	if addr != 0 {
		return nil, utils.Kindf(utils.ErrCantInit, "file driver failed to allocate userblock and/or superblock at address zero")
	}

	sohmN, err := getUint8(plist, PropSOHMNIndexes)
	if err == nil && sohmN > 0 {
		if ext == nil {
			return nil, utils.Kindf(utils.ErrCantCreate, "shared messages requested without an extension handler")
		}
		extAddr, err := ext.CreateExtension(plist)
		if err != nil {
			return nil, utils.Kindf(utils.ErrCantCreate, "unable to create superblock extension: %v", err)
		}
		sb.ExtensionAddr = extAddr - sb.BaseAddr
	}

	return sb, nil
}

// WriteSuperblock encodes the superblock and driver info block and writes
// them in one contiguous write at the superblock address. The stored EOA is
// taken from the driver at encode time.
func WriteSuperblock(d driver.Driver, sb *Superblock) error {
	superSize := SuperblockSize(sb.Version, sb.SizeofAddr)
	chk := checksumSize(sb.Version)
	sb.StoredEOA = d.EOA(driver.KindSuper)

	buf := make([]byte, superSize-chk, superSize+DrvInfoHdrSize+d.SBSize())
	copy(buf, Signature)
	buf[SignatureLen] = sb.Version
	p := uint64(superblockFixedSize)
	buf[p] = sb.FreespaceVersion
	buf[p+1] = sb.ObjectDirVersion
	buf[p+3] = sb.SharedHeaderVersion
	buf[p+4] = sb.SizeofAddr
	buf[p+5] = sb.SizeofSize
	binary.LittleEndian.PutUint16(buf[p+7:], sb.SymLeafK)
	binary.LittleEndian.PutUint16(buf[p+9:], sb.BtreeK[BtreeSnodeID])
	binary.LittleEndian.PutUint32(buf[p+11:], sb.ConsistFlags)
	p += 15

	if sb.Version > SuperblockVersionDef {
		binary.LittleEndian.PutUint16(buf[p:], sb.BtreeK[BtreeIstoreID])
		p += 2
		if sb.Version == SuperblockVersion1 {
			p += 2 // reserved
		}
	}

	for _, src := range []uint64{sb.BaseAddr, sb.ExtensionAddr, sb.StoredEOA, sb.DriverAddr} {
		if err := utils.EncodeOffset(buf[p:], sb.SizeofAddr, src); err != nil {
			return utils.WrapError("superblock address encode failed", err)
		}
		p += uint64(sb.SizeofAddr)
	}

	n, err := encodeSymbolTableEntry(buf[p:], sb.SizeofAddr, &sb.RootEnt)
	if err != nil {
		return utils.Kindf(utils.ErrCantInit, "unable to encode root group information: %v", err)
	}
	p += n

	var chksum uint32
	if sb.Version >= SuperblockVersion2 {
		chksum = MetadataChecksum(buf, 0)
	}

	if drvSize := d.SBSize(); drvSize > 0 {
		name, data, err := d.SBEncode()
		if err != nil {
			return utils.Kindf(utils.ErrCantInit, "unable to encode driver information: %v", err)
		}
		if uint64(len(data)) != drvSize {
			return utils.Kindf(utils.ErrCantInit, "driver encoded %d bytes, promised %d", len(data), drvSize)
		}
		hdr := make([]byte, DrvInfoHdrSize)
		hdr[0] = DriverInfoVersion0
		//nolint:gosec // G115: driver info blocks are tiny
		binary.LittleEndian.PutUint32(hdr[4:], uint32(drvSize))
		copy(hdr[8:], name[:])

		start := len(buf)
		buf = append(buf, hdr...)
		buf = append(buf, data...)
		if sb.Version >= SuperblockVersion2 {
			chksum = MetadataChecksum(buf[start:], chksum)
		}
	}

	if sb.Version >= SuperblockVersion2 {
		var tail [SizeofChecksum]byte
		binary.LittleEndian.PutUint32(tail[:], chksum)
		buf = append(buf, tail[:]...)
	}

	if err := d.WriteAt(driver.KindSuper, buf, sb.SuperAddr); err != nil {
		return utils.Kindf(utils.ErrIO, "unable to write superblock: %v", err)
	}
	return nil
}
