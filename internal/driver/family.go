package driver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/scigolib/h5core/internal/utils"
)

// familySBName tags family driver info blocks in the file.
const familySBName = "NCSAfami"

// Family shards one logical address space across equally sized member
// files. Member i holds logical bytes [i*membSize, (i+1)*membSize). The
// member size is driver-private superblock state so reopening a family
// detects a mismatched configuration.
type Family struct {
	pattern  string // must contain one integer verb, e.g. "data-%05d.h5"
	membSize uint64
	members  []*os.File
	eoa      uint64
	rw       bool
}

// OpenFamily opens the members of an existing family, counting up from
// member zero until a name is missing.
func OpenFamily(pattern string, membSize uint64, rw bool) (*Family, error) {
	if membSize == 0 {
		return nil, utils.Kindf(utils.ErrBadValue, "family member size cannot be zero")
	}
	fam := &Family{pattern: pattern, membSize: membSize, rw: rw}
	flag := os.O_RDONLY
	if rw {
		flag = os.O_RDWR
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf(pattern, i)
		//nolint:gosec // G304: user-provided path is the point of a file library
		f, err := os.OpenFile(name, flag, 0)
		if err != nil {
			if os.IsNotExist(err) && i > 0 {
				break
			}
			fam.closeMembers()
			return nil, utils.WrapError("family member open failed", err)
		}
		fam.members = append(fam.members, f)
	}
	return fam, nil
}

// CreateFamily creates a new family with a single empty first member.
func CreateFamily(pattern string, membSize uint64) (*Family, error) {
	if membSize == 0 {
		return nil, utils.Kindf(utils.ErrBadValue, "family member size cannot be zero")
	}
	fam := &Family{pattern: pattern, membSize: membSize, rw: true}
	if _, err := fam.member(0); err != nil {
		return nil, err
	}
	return fam, nil
}

// member returns the i'th member file, creating it (and padding every
// earlier member to full size) when the family is writable.
func (fam *Family) member(i int) (*os.File, error) {
	if i < len(fam.members) {
		return fam.members[i], nil
	}
	if !fam.rw {
		return nil, utils.Kindf(utils.ErrIO, "family member %d does not exist", i)
	}
	for n := len(fam.members); n <= i; n++ {
		if n > 0 {
			//nolint:gosec // G115: member size fits in int64
			if err := fam.members[n-1].Truncate(int64(fam.membSize)); err != nil {
				return nil, utils.WrapError("family member pad failed", err)
			}
		}
		name := fmt.Sprintf(fam.pattern, n)
		//nolint:gosec // G304: user-provided path is the point of a file library
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, utils.WrapError("family member create failed", err)
		}
		fam.members = append(fam.members, f)
	}
	return fam.members[i], nil
}

// Name identifies the driver class.
func (fam *Family) Name() string { return "family" }

// ReadAt reads exactly len(p) bytes at off, splitting the range across
// member boundaries.
func (fam *Family) ReadAt(_ AllocKind, p []byte, off uint64) error {
	if err := checkRange(off, uint64(len(p)), fam.eoa); err != nil {
		return err
	}
	for len(p) > 0 {
		//nolint:gosec // G115: member index bounded by member count
		i := int(off / fam.membSize)
		within := off % fam.membSize
		n := uint64(len(p))
		if room := fam.membSize - within; n > room {
			n = room
		}
		if i >= len(fam.members) {
			return utils.Kindf(utils.ErrIO, "family read past last member: logical addr %d", off)
		}
		//nolint:gosec // G115: within < membSize fits in int64
		got, err := fam.members[i].ReadAt(p[:n], int64(within))
		if err != nil && !(errors.Is(err, io.EOF) && uint64(got) == n) {
			return utils.Kindf(utils.ErrIO, "family read member %d at %d: %v", i, within, err)
		}
		if uint64(got) != n {
			return utils.Kindf(utils.ErrIO, "family short read member %d: %d of %d bytes", i, got, n)
		}
		p = p[n:]
		off += n
	}
	return nil
}

// WriteAt writes exactly len(p) bytes at off, creating members as the range
// crosses into them.
func (fam *Family) WriteAt(_ AllocKind, p []byte, off uint64) error {
	if err := checkRange(off, uint64(len(p)), fam.eoa); err != nil {
		return err
	}
	for len(p) > 0 {
		//nolint:gosec // G115: member index bounded by address space
		i := int(off / fam.membSize)
		within := off % fam.membSize
		n := uint64(len(p))
		if room := fam.membSize - within; n > room {
			n = room
		}
		f, err := fam.member(i)
		if err != nil {
			return err
		}
		//nolint:gosec // G115: within < membSize fits in int64
		got, err := f.WriteAt(p[:n], int64(within))
		if err != nil {
			return utils.Kindf(utils.ErrIO, "family write member %d at %d: %v", i, within, err)
		}
		if uint64(got) != n {
			return utils.Kindf(utils.ErrIO, "family short write member %d: %d of %d bytes", i, got, n)
		}
		p = p[n:]
		off += n
	}
	return nil
}

// EOF returns the logical end of the family: full members plus the size of
// the last one.
func (fam *Family) EOF() (uint64, error) {
	if len(fam.members) == 0 {
		return 0, nil
	}
	last := fam.members[len(fam.members)-1]
	fi, err := last.Stat()
	if err != nil {
		return Undef, utils.WrapError("family stat failed", err)
	}
	//nolint:gosec // G115: file sizes are non-negative
	return uint64(len(fam.members)-1)*fam.membSize + uint64(fi.Size()), nil
}

// EOA returns the end-of-allocated mark for the logical space.
func (fam *Family) EOA(_ AllocKind) uint64 { return fam.eoa }

// SetEOA moves the end-of-allocated mark.
func (fam *Family) SetEOA(_ AllocKind, addr uint64) error {
	fam.eoa = addr
	return nil
}

// Alloc reserves size bytes at the end of the logical space.
func (fam *Family) Alloc(_ AllocKind, size uint64) (uint64, error) {
	if err := addOverflows(fam.eoa, size); err != nil {
		return Undef, utils.WrapError("family alloc", err)
	}
	addr := fam.eoa
	fam.eoa += size
	return addr, nil
}

// SBSize returns the size of the family's driver-private state.
func (fam *Family) SBSize() uint64 { return 8 }

// SBEncode serializes the member size under the family name tag.
func (fam *Family) SBEncode() ([SBNameLen]byte, []byte, error) {
	var name [SBNameLen]byte
	copy(name[:], familySBName)
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, fam.membSize)
	return name, data, nil
}

// SBDecode checks stored state against the open configuration. A family
// written with a different member size cannot be addressed correctly.
func (fam *Family) SBDecode(name [SBNameLen]byte, data []byte) error {
	if string(name[:]) != familySBName {
		return utils.Kindf(utils.ErrCantOpen, "driver info names %q, not a family file", string(name[:]))
	}
	if len(data) < 8 {
		return utils.Kindf(utils.ErrCantOpen, "family driver info too short: %d bytes", len(data))
	}
	stored := binary.LittleEndian.Uint64(data)
	if stored != fam.membSize {
		return utils.Kindf(utils.ErrCantOpen, "family member size is %d, file was written with %d",
			fam.membSize, stored)
	}
	return nil
}

// Close closes every member.
func (fam *Family) Close() error {
	return fam.closeMembers()
}

func (fam *Family) closeMembers() error {
	var first error
	for _, f := range fam.members {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	fam.members = nil
	return first
}
