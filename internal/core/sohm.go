package core

import (
	"encoding/binary"

	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/utils"
)

// SOHMInfo is the shared-object-header-message table information stored in
// the superblock extension.
type SOHMInfo struct {
	NIndexes  uint8
	TableAddr uint64
}

const sohmMsgVersion = 0

// ExtensionHandler is how the superblock engine reaches the object-header
// collaborator for the superblock extension: reading the extension on open
// and creating it on the create path. The handler owns the open-object
// bookkeeping around the access.
type ExtensionHandler interface {
	// ReadExtension opens the extension object at addr, publishes its
	// shared-message info into the property list, and closes it again.
	ReadExtension(addr uint64, plist *PropertyList) error

	// CreateExtension creates a fresh extension object and returns its
	// address.
	CreateExtension(plist *PropertyList) (uint64, error)
}

// EncodeSOHMMessage builds the shared-message table header message.
func EncodeSOHMMessage(info SOHMInfo) HeaderMessage {
	body := make([]byte, 10)
	body[0] = sohmMsgVersion
	binary.LittleEndian.PutUint64(body[1:], info.TableAddr)
	body[9] = info.NIndexes
	return HeaderMessage{Type: MsgSharedTable, Body: body}
}

// DecodeSOHMMessage parses a shared-message table message body.
func DecodeSOHMMessage(m *HeaderMessage) (SOHMInfo, error) {
	if m.Type != MsgSharedTable {
		return SOHMInfo{}, utils.Kindf(utils.ErrBadValue, "message type %#04x is not a shared table message", m.Type)
	}
	if len(m.Body) < 10 {
		return SOHMInfo{}, utils.Kindf(utils.ErrBadRange, "shared table message too short: %d bytes", len(m.Body))
	}
	if m.Body[0] != sohmMsgVersion {
		return SOHMInfo{}, utils.Kindf(utils.ErrBadValue, "bad shared table message version %d", m.Body[0])
	}
	return SOHMInfo{
		NIndexes:  m.Body[9],
		TableAddr: binary.LittleEndian.Uint64(m.Body[1:]),
	}, nil
}

// CreateExtensionObject writes an extension object header holding the
// shared-message table info and returns its address.
func CreateExtensionObject(d driver.Driver, info SOHMInfo) (uint64, error) {
	addr, err := WriteObjectHeader(d, []HeaderMessage{EncodeSOHMMessage(info)})
	if err != nil {
		return driver.Undef, utils.Kindf(utils.ErrCantCreate, "unable to create superblock extension: %v", err)
	}
	return addr, nil
}

// ReadExtensionObject opens the extension header at addr and publishes the
// shared-message info it carries into the property list.
func ReadExtensionObject(d driver.Driver, addr uint64, plist *PropertyList) error {
	oh, err := ReadObjectHeader(d, addr)
	if err != nil {
		return utils.Kindf(utils.ErrCantOpen, "unable to open superblock extension: %v", err)
	}
	for i := range oh.Messages {
		m := &oh.Messages[i]
		if m.Type != MsgSharedTable {
			continue
		}
		info, err := DecodeSOHMMessage(m)
		if err != nil {
			return utils.Kindf(utils.ErrCantOpen, "unable to read SOHM table information: %v", err)
		}
		if err := plist.Set(PropSOHMNIndexes, info.NIndexes); err != nil {
			return err
		}
		return plist.Set(PropSOHMTableAddr, info.TableAddr)
	}
	return nil
}
