package utils

import "encoding/binary"

// Undef is the "no address" sentinel: all ones at the widest width the
// library holds in memory. On disk the sentinel is all ones at the
// persisted width; DecodeOffset and EncodeOffset translate between the two.
const Undef = ^uint64(0)

// AddrDefined reports whether addr is a real address rather than Undef.
func AddrDefined(addr uint64) bool {
	return addr != Undef
}

// ValidOffsetSize reports whether width is a legal sizeof_addr/sizeof_size
// value. Widths 16 and 32 are decoded and re-encoded losslessly but refused
// by allocation paths.
func ValidOffsetSize(width uint8) bool {
	switch width {
	case 2, 4, 8, 16, 32:
		return true
	}
	return false
}

// EncodeOffset writes v little-endian into p at the given width.
// The Undef sentinel becomes all ones at that width. Values that do not fit
// the width fail with ErrBadRange; widths above 8 bytes zero-fill the high
// bytes (or one-fill them for Undef), which round-trips every value this
// implementation can represent.
func EncodeOffset(p []byte, width uint8, v uint64) error {
	if !ValidOffsetSize(width) {
		return Kindf(ErrBadValue, "bad offset width %d", width)
	}
	if len(p) < int(width) {
		return Kindf(ErrBadRange, "offset encode buffer too small: %d < %d", len(p), width)
	}
	if v == Undef {
		for i := 0; i < int(width); i++ {
			p[i] = 0xff
		}
		return nil
	}
	if width < 8 && v>>(8*uint(width)) != 0 {
		return Kindf(ErrBadRange, "address %#x does not fit in %d bytes", v, width)
	}
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	n := copy(p[:width], tmp[:min(int(width), 8)])
	for i := n; i < int(width); i++ {
		p[i] = 0
	}
	return nil
}

// DecodeOffset reads a little-endian value of the given width from p.
// All ones decodes to Undef. Values with significant bytes beyond the
// eighth cannot be represented and fail with ErrUnsupported.
func DecodeOffset(p []byte, width uint8) (uint64, error) {
	if !ValidOffsetSize(width) {
		return 0, Kindf(ErrBadValue, "bad offset width %d", width)
	}
	if len(p) < int(width) {
		return 0, Kindf(ErrBadRange, "offset decode buffer too small: %d < %d", len(p), width)
	}
	allOnes := true
	for i := 0; i < int(width); i++ {
		if p[i] != 0xff {
			allOnes = false
			break
		}
	}
	if allOnes {
		return Undef, nil
	}
	var v uint64
	for i := 0; i < int(width); i++ {
		b := p[i]
		if i >= 8 {
			if b != 0 {
				return 0, Kindf(ErrUnsupported, "address wider than 8 significant bytes")
			}
			continue
		}
		v |= uint64(b) << (8 * uint(i))
	}
	// Widths up to 8 cannot produce the in-memory sentinel here: their
	// all-ones pattern was handled above. For widths 16 and 32, low eight
	// bytes of all ones with zero high bytes also decode to Undef.
	return v, nil
}

// ReadUint64 reads a 64-bit little-endian value at the specified offset.
func ReadUint64(r ReaderAt, offset int64) (uint64, error) {
	buf := GetBuffer(8)
	defer ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReaderAt is a simplified interface for io.ReaderAt.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}
