package core

import "github.com/scigolib/h5core/internal/utils"

// Property keys the container layer reads and writes. The property list
// itself is an opaque keyed bag; these names form its contract with the
// superblock engine.
const (
	PropUserBlockSize       = "user_block_size"
	PropSuperVersion        = "super_version"
	PropFreespaceVersion    = "freespace_version"
	PropObjectDirVersion    = "object_dir_version"
	PropSharedHeaderVersion = "shared_header_version"
	PropSizeofAddr          = "sizeof_addr"
	PropSizeofSize          = "sizeof_size"
	PropSymLeafK            = "sym_leaf_k"
	PropBtreeRank           = "btree_rank"
	PropSOHMNIndexes        = "sohm_nindexes"
	PropSOHMTableAddr       = "sohm_table_addr"
)

// PropertyList is a keyed bag of options. Creation and access parameters
// flow through it; the superblock engine publishes decoded shape parameters
// back into it.
type PropertyList struct {
	vals map[string]interface{}
}

// NewPropertyList returns an empty property list.
func NewPropertyList() *PropertyList {
	return &PropertyList{vals: make(map[string]interface{})}
}

// DefaultCreateList returns a creation property list populated with the
// default shape parameters for a new file.
func DefaultCreateList() *PropertyList {
	p := NewPropertyList()
	p.vals[PropUserBlockSize] = uint64(0)
	p.vals[PropSuperVersion] = uint8(SuperblockVersionDef)
	p.vals[PropFreespaceVersion] = uint8(FreespaceVersion)
	p.vals[PropObjectDirVersion] = uint8(ObjectDirVersion)
	p.vals[PropSharedHeaderVersion] = uint8(SharedHeaderVersion)
	p.vals[PropSizeofAddr] = uint8(8)
	p.vals[PropSizeofSize] = uint8(8)
	p.vals[PropSymLeafK] = uint16(SymLeafKDefault)
	p.vals[PropBtreeRank] = [NumBtreeID]uint16{BtreeSnodeIKDefault, BtreeIstoreIKDefault}
	p.vals[PropSOHMNIndexes] = uint8(0)
	return p
}

// Set stores a value under a symbolic key.
func (p *PropertyList) Set(key string, v interface{}) error {
	if p == nil || p.vals == nil {
		return utils.Kindf(utils.ErrCantSet, "property list not initialized")
	}
	p.vals[key] = v
	return nil
}

// Get retrieves the value stored under a symbolic key.
func (p *PropertyList) Get(key string) (interface{}, error) {
	if p == nil || p.vals == nil {
		return nil, utils.Kindf(utils.ErrCantGet, "property list not initialized")
	}
	v, ok := p.vals[key]
	if !ok {
		return nil, utils.Kindf(utils.ErrCantGet, "property %q not set", key)
	}
	return v, nil
}

func getUint64(p *PropertyList, key string) (uint64, error) {
	v, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint64)
	if !ok {
		return 0, utils.Kindf(utils.ErrCantGet, "property %q is not a uint64", key)
	}
	return u, nil
}

func getUint16(p *PropertyList, key string) (uint16, error) {
	v, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint16)
	if !ok {
		return 0, utils.Kindf(utils.ErrCantGet, "property %q is not a uint16", key)
	}
	return u, nil
}

func getUint8(p *PropertyList, key string) (uint8, error) {
	v, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint8)
	if !ok {
		return 0, utils.Kindf(utils.ErrCantGet, "property %q is not a uint8", key)
	}
	return u, nil
}

func getBtreeRank(p *PropertyList, key string) ([NumBtreeID]uint16, error) {
	v, err := p.Get(key)
	if err != nil {
		return [NumBtreeID]uint16{}, err
	}
	u, ok := v.([NumBtreeID]uint16)
	if !ok {
		return [NumBtreeID]uint16{}, utils.Kindf(utils.ErrCantGet, "property %q is not a b-tree rank array", key)
	}
	return u, nil
}
