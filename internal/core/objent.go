package core

import (
	"encoding/binary"

	"github.com/scigolib/h5core/internal/utils"
)

// symbolTableScratchLen is the scratch-pad space at the tail of an entry.
const symbolTableScratchLen = 16

// SymbolTableEntry is the fixed-width root-group entry embedded in the
// superblock: a link-name offset, the object header address, a cache-type
// tag, and scratch space whose meaning depends on the cache type.
type SymbolTableEntry struct {
	LinkNameOff uint64
	HeaderAddr  uint64
	CacheType   uint32
	Scratch     [symbolTableScratchLen]byte
}

// SymbolTableEntrySize returns the encoded width of an entry for a given
// address width.
func SymbolTableEntrySize(addrSize uint8) uint64 {
	return 2*uint64(addrSize) + 4 + 4 + symbolTableScratchLen
}

// decodeSymbolTableEntry reads an entry from p, returning the bytes consumed.
func decodeSymbolTableEntry(p []byte, addrSize uint8) (SymbolTableEntry, uint64, error) {
	var ent SymbolTableEntry
	need := SymbolTableEntrySize(addrSize)
	if uint64(len(p)) < need {
		return ent, 0, utils.Kindf(utils.ErrBadRange, "symbol table entry needs %d bytes, have %d", need, len(p))
	}
	off := uint64(0)
	v, err := utils.DecodeOffset(p[off:], addrSize)
	if err != nil {
		return ent, 0, utils.WrapError("link name offset decode failed", err)
	}
	ent.LinkNameOff = v
	off += uint64(addrSize)

	v, err = utils.DecodeOffset(p[off:], addrSize)
	if err != nil {
		return ent, 0, utils.WrapError("object header address decode failed", err)
	}
	ent.HeaderAddr = v
	off += uint64(addrSize)

	ent.CacheType = binary.LittleEndian.Uint32(p[off:])
	off += 4
	off += 4 // reserved
	copy(ent.Scratch[:], p[off:off+symbolTableScratchLen])
	off += symbolTableScratchLen
	return ent, off, nil
}

// encodeSymbolTableEntry writes an entry into p, returning the bytes written.
func encodeSymbolTableEntry(p []byte, addrSize uint8, ent *SymbolTableEntry) (uint64, error) {
	need := SymbolTableEntrySize(addrSize)
	if uint64(len(p)) < need {
		return 0, utils.Kindf(utils.ErrBadRange, "symbol table entry needs %d bytes, have %d", need, len(p))
	}
	off := uint64(0)
	if err := utils.EncodeOffset(p[off:], addrSize, ent.LinkNameOff); err != nil {
		return 0, utils.WrapError("link name offset encode failed", err)
	}
	off += uint64(addrSize)
	if err := utils.EncodeOffset(p[off:], addrSize, ent.HeaderAddr); err != nil {
		return 0, utils.WrapError("object header address encode failed", err)
	}
	off += uint64(addrSize)
	binary.LittleEndian.PutUint32(p[off:], ent.CacheType)
	off += 4
	binary.LittleEndian.PutUint32(p[off:], 0) // reserved
	off += 4
	copy(p[off:], ent.Scratch[:])
	off += symbolTableScratchLen
	return off, nil
}
