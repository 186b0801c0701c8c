package core

import (
	"encoding/binary"

	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/utils"
)

// The object-header/message subsystem proper is an external collaborator;
// the container layer only needs enough of it to bootstrap a root group and
// to store the shared-message table info in the superblock extension. This
// file carries that minimal version-1 header codec.

// Object header message types the container layer understands.
const (
	MsgNil         = 0x0000
	MsgSharedTable = 0x000F
)

const (
	objHeaderVersion1   = 1
	objHeaderPrefixSize = 16 // version, reserved, nmsgs, refcount, hdrsize, pad
	msgHeaderSize       = 8  // type, size, flags, reserved
)

// HeaderMessage is one raw message of an object header.
type HeaderMessage struct {
	Type  uint16
	Flags uint8
	Body  []byte
}

// ObjectHeader is the decoded prefix and message list of a version-1 header.
type ObjectHeader struct {
	Version    uint8
	RefCount   uint32
	HeaderSize uint32
	Messages   []HeaderMessage
}

// ObjLoc is an object location: an address within a borrowed file. The
// location is strictly shorter-lived than the file it points into.
type ObjLoc struct {
	Addr uint64
}

// WriteObjectHeader allocates object-header space and writes a version-1
// header carrying the given messages. A nil message list produces a
// zero-message header, which is what a freshly created group looks like.
func WriteObjectHeader(d driver.Driver, msgs []HeaderMessage) (uint64, error) {
	body := uint64(0)
	for i := range msgs {
		body += msgHeaderSize + alignUp8(uint64(len(msgs[i].Body)))
	}

	buf := make([]byte, objHeaderPrefixSize+body)
	buf[0] = objHeaderVersion1
	// buf[1] reserved
	//nolint:gosec // G115: message counts are tiny
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(msgs)))
	binary.LittleEndian.PutUint32(buf[4:], 1) // reference count
	//nolint:gosec // G115: header body sizes are tiny
	binary.LittleEndian.PutUint32(buf[8:], uint32(body))
	// buf[12:16] padding

	off := uint64(objHeaderPrefixSize)
	for i := range msgs {
		m := &msgs[i]
		padded := alignUp8(uint64(len(m.Body)))
		binary.LittleEndian.PutUint16(buf[off:], m.Type)
		//nolint:gosec // G115: message bodies are tiny
		binary.LittleEndian.PutUint16(buf[off+2:], uint16(padded))
		buf[off+4] = m.Flags
		copy(buf[off+msgHeaderSize:], m.Body)
		off += msgHeaderSize + padded
	}

	addr, err := d.Alloc(driver.KindOHdr, uint64(len(buf)))
	if err != nil {
		return driver.Undef, utils.Kindf(utils.ErrCantCreate, "object header allocation failed: %v", err)
	}
	if err := d.WriteAt(driver.KindOHdr, buf, addr); err != nil {
		return driver.Undef, utils.WrapError("object header write failed", err)
	}
	return addr, nil
}

// ReadObjectHeader decodes the version-1 header at addr.
func ReadObjectHeader(d driver.Driver, addr uint64) (*ObjectHeader, error) {
	prefix := utils.GetBuffer(objHeaderPrefixSize)
	defer utils.ReleaseBuffer(prefix)
	if err := d.ReadAt(driver.KindOHdr, prefix, addr); err != nil {
		return nil, utils.WrapError("object header prefix read failed", err)
	}
	if prefix[0] != objHeaderVersion1 {
		return nil, utils.Kindf(utils.ErrBadValue, "bad object header version %d", prefix[0])
	}
	oh := &ObjectHeader{
		Version:    prefix[0],
		RefCount:   binary.LittleEndian.Uint32(prefix[4:]),
		HeaderSize: binary.LittleEndian.Uint32(prefix[8:]),
	}
	nmsgs := binary.LittleEndian.Uint16(prefix[2:])

	body := make([]byte, oh.HeaderSize)
	if len(body) > 0 {
		if err := d.ReadAt(driver.KindOHdr, body, addr+objHeaderPrefixSize); err != nil {
			return nil, utils.WrapError("object header body read failed", err)
		}
	}
	off := uint64(0)
	for i := uint16(0); i < nmsgs; i++ {
		if off+msgHeaderSize > uint64(len(body)) {
			return nil, utils.Kindf(utils.ErrBadRange, "object header message %d overruns header", i)
		}
		mtype := binary.LittleEndian.Uint16(body[off:])
		msize := uint64(binary.LittleEndian.Uint16(body[off+2:]))
		flags := body[off+4]
		off += msgHeaderSize
		if off+msize > uint64(len(body)) {
			return nil, utils.Kindf(utils.ErrBadRange, "object header message %d body overruns header", i)
		}
		oh.Messages = append(oh.Messages, HeaderMessage{
			Type:  mtype,
			Flags: flags,
			Body:  body[off : off+msize],
		})
		off += msize
	}
	return oh, nil
}

func alignUp8(n uint64) uint64 {
	return (n + 7) &^ 7
}
