package core

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/utils"
)

// buildImage creates a file image through the memory driver: superblock,
// zero-message root header, optional user block.
func buildImage(t *testing.T, vers uint8, userBlock uint64, d driver.Driver) *Superblock {
	t.Helper()
	plist := DefaultCreateList()
	require.NoError(t, plist.Set(PropSuperVersion, vers))
	require.NoError(t, plist.Set(PropUserBlockSize, userBlock))

	sb, err := InitSuperblock(d, plist, nil)
	require.NoError(t, err)

	rootAddr, err := WriteObjectHeader(d, nil)
	require.NoError(t, err)
	sb.RootEnt = SymbolTableEntry{HeaderAddr: rootAddr - sb.BaseAddr, CacheType: 1}

	require.NoError(t, WriteSuperblock(d, sb))
	return sb
}

func TestSuperblockRoundTrip(t *testing.T) {
	for _, vers := range []uint8{0, 1, 2} {
		t.Run(map[uint8]string{0: "v0", 1: "v1", 2: "v2"}[vers], func(t *testing.T) {
			d := driver.NewMemory(nil)
			want := buildImage(t, vers, 0, d)

			d2 := driver.NewMemory(d.Bytes())
			got, err := ReadSuperblock(d2, NewPropertyList(), nil, false)
			require.NoError(t, err)

			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("superblock round trip mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, want.StoredEOA, d2.EOA(driver.KindSuper))
		})
	}
}

func TestSuperblockSizes(t *testing.T) {
	assert.Equal(t, uint64(96), SuperblockSize(0, 8))
	assert.Equal(t, uint64(100), SuperblockSize(1, 8))
	assert.Equal(t, uint64(102), SuperblockSize(2, 8))
}

func TestSuperblockDecodePublishesProperties(t *testing.T) {
	d := driver.NewMemory(nil)
	buildImage(t, 0, 0, d)

	plist := NewPropertyList()
	_, err := ReadSuperblock(driver.NewMemory(d.Bytes()), plist, nil, false)
	require.NoError(t, err)

	v, err := plist.Get(PropSymLeafK)
	require.NoError(t, err)
	assert.Equal(t, uint16(SymLeafKDefault), v)
	v, err = plist.Get(PropBtreeRank)
	require.NoError(t, err)
	assert.Equal(t, [NumBtreeID]uint16{BtreeSnodeIKDefault, BtreeIstoreIKDefault}, v)
	v, err = plist.Get(PropUserBlockSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestLocateSignaturePowersOfTwo(t *testing.T) {
	for _, userBlock := range []uint64{0, 512, 1024, 2048} {
		d := driver.NewMemory(nil)
		buildImage(t, 2, userBlock, d)

		d2 := driver.NewMemory(d.Bytes())
		addr, err := LocateSignature(d2)
		require.NoError(t, err, "user block %d", userBlock)
		assert.Equal(t, userBlock, addr)
	}
}

func TestLocateSignatureNotAPowerOfTwo(t *testing.T) {
	img := make([]byte, 600)
	copy(img[256:], Signature)

	d := driver.NewMemory(img)
	saved := d.EOA(driver.KindSuper)
	_, err := LocateSignature(d)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrNotHDF5)
	assert.Equal(t, saved, d.EOA(driver.KindSuper))
}

func TestLocateSignatureGarbage(t *testing.T) {
	img := make([]byte, 4096)
	for i := range img {
		img[i] = 0x41
	}
	_, err := LocateSignature(driver.NewMemory(img))
	assert.ErrorIs(t, err, utils.ErrNotHDF5)

	_, err = ReadSuperblock(driver.NewMemory(img), NewPropertyList(), nil, false)
	assert.ErrorIs(t, err, utils.ErrNotHDF5)
}

func TestSuperblockTruncated(t *testing.T) {
	d := driver.NewMemory(nil)
	buildImage(t, 0, 0, d)

	img := d.Bytes()
	_, err := ReadSuperblock(driver.NewMemory(img[:len(img)-1]), NewPropertyList(), nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrTruncated)
}

func TestSuperblockChecksumDetectsCorruption(t *testing.T) {
	d := driver.NewMemory(nil)
	buildImage(t, 2, 0, d)

	img := append([]byte(nil), d.Bytes()...)
	img[20] ^= 0xFF // inside the variable-size body
	_, err := ReadSuperblock(driver.NewMemory(img), NewPropertyList(), nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrCantOpen)
}

func TestSuperblockBaseRelocation(t *testing.T) {
	// A file concatenated behind a 2048-byte preamble: the signature moves
	// to 2048 while the embedded base address still says zero.
	d := driver.NewMemory(nil)
	orig := buildImage(t, 2, 0, d)

	shifted := make([]byte, 2048+len(d.Bytes()))
	copy(shifted[2048:], d.Bytes())

	got, err := ReadSuperblock(driver.NewMemory(shifted), NewPropertyList(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), got.SuperAddr)
	assert.Equal(t, uint64(2048), got.BaseAddr)
	assert.Equal(t, orig.StoredEOA+2048, got.StoredEOA)
}

// stubFamily pretends to be the family driver over a memory image, enough
// to exercise the driver info block paths.
type stubFamily struct {
	*driver.Memory
}

func (s *stubFamily) Name() string   { return "family" }
func (s *stubFamily) SBSize() uint64 { return 8 }

func (s *stubFamily) SBEncode() ([driver.SBNameLen]byte, []byte, error) {
	var name [driver.SBNameLen]byte
	copy(name[:], "NCSAfami")
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, 1<<16)
	return name, data, nil
}

func (s *stubFamily) SBDecode(name [driver.SBNameLen]byte, data []byte) error {
	if string(name[:]) != "NCSAfami" {
		return utils.Kindf(utils.ErrCantOpen, "not a family file")
	}
	return nil
}

func TestDriverInfoCrossCheck(t *testing.T) {
	fam := &stubFamily{driver.NewMemory(nil)}
	want := buildImage(t, 0, 0, fam)
	assert.Equal(t, SuperblockSize(0, 8), want.DriverAddr)

	// The wrong driver class must be rejected by name.
	_, err := ReadSuperblock(driver.NewMemory(fam.Bytes()), NewPropertyList(), nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrCantOpen)
	assert.Contains(t, err.Error(), "family driver should be used")

	// The family driver opens it.
	got, err := ReadSuperblock(&stubFamily{driver.NewMemory(fam.Bytes())}, NewPropertyList(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, want.DriverAddr, got.DriverAddr)
}

func TestDriverInfoFamToSec2Override(t *testing.T) {
	fam := &stubFamily{driver.NewMemory(nil)}
	buildImage(t, 0, 0, fam)

	got, err := ReadSuperblock(driver.NewMemory(fam.Bytes()), NewPropertyList(), nil, true)
	require.NoError(t, err)
	assert.False(t, utils.AddrDefined(got.DriverAddr))
}

func TestDriverInfoChecksumCoversBlock(t *testing.T) {
	fam := &stubFamily{driver.NewMemory(nil)}
	buildImage(t, 2, 0, fam)

	// Flip a byte inside the driver info payload; the trailing checksum
	// spans the superblock and driver info together.
	img := append([]byte(nil), fam.Bytes()...)
	drvPayload := SuperblockSize(2, 8) - SizeofChecksum + DrvInfoHdrSize
	img[drvPayload+2] ^= 0x80
	_, err := ReadSuperblock(&stubFamily{driver.NewMemory(img)}, NewPropertyList(), nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrCantOpen)
}

func TestInitSuperblockRefusesWideAddresses(t *testing.T) {
	plist := DefaultCreateList()
	require.NoError(t, plist.Set(PropSizeofAddr, uint8(16)))
	_, err := InitSuperblock(driver.NewMemory(nil), plist, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrUnsupported)
}

func TestInitSuperblockDemandsAddressZero(t *testing.T) {
	d := driver.NewMemory(nil)
	_, err := d.Alloc(driver.KindSuper, 10) // somebody got there first
	require.NoError(t, err)
	_, err = InitSuperblock(d, DefaultCreateList(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrCantInit)
}
