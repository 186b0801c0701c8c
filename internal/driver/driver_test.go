package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5core/internal/utils"
)

func TestMemoryReadWriteWithinEOA(t *testing.T) {
	m := NewMemory(nil)
	addr, err := m.Alloc(KindSuper, 16)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), addr)

	require.NoError(t, m.WriteAt(KindSuper, []byte("0123456789abcdef"), 0))
	got := make([]byte, 16)
	require.NoError(t, m.ReadAt(KindSuper, got, 0))
	assert.Equal(t, "0123456789abcdef", string(got))

	eof, err := m.EOF()
	require.NoError(t, err)
	assert.Equal(t, uint64(16), eof)
}

func TestMemoryReadPastEOAFails(t *testing.T) {
	m := NewMemory([]byte("hello"))
	require.NoError(t, m.SetEOA(KindDefault, 3))
	err := m.ReadAt(KindDefault, make([]byte, 4), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrIO)
}

func TestMemoryEOALowerAndRestore(t *testing.T) {
	m := NewMemory(make([]byte, 100))
	saved := m.EOA(KindSuper)
	require.NoError(t, m.SetEOA(KindSuper, 8))
	assert.Equal(t, uint64(8), m.EOA(KindSuper))
	require.NoError(t, m.SetEOA(KindSuper, saved))
	assert.Equal(t, saved, m.EOA(KindSuper))
}

func TestSec2RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.h5")
	s, err := CreateSec2(path)
	require.NoError(t, err)

	addr, err := s.Alloc(KindDraw, 8)
	require.NoError(t, err)
	require.NoError(t, s.WriteAt(KindDraw, []byte("deadbeef"), addr))
	require.NoError(t, s.Close())

	s, err = OpenSec2(path, false)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	eof, err := s.EOF()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), eof)

	require.NoError(t, s.SetEOA(KindDraw, 8))
	got := make([]byte, 8)
	require.NoError(t, s.ReadAt(KindDraw, got, addr))
	assert.Equal(t, "deadbeef", string(got))
}

func TestSec2ShortReadFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.h5")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	s, err := OpenSec2(path, false)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.SetEOA(KindDefault, 100))
	err = s.ReadAt(KindDefault, make([]byte, 10), 0)
	assert.ErrorIs(t, err, utils.ErrIO)
}

func TestFamilySplitsAcrossMembers(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "fam-%05d.h5")
	fam, err := CreateFamily(pattern, 16)
	require.NoError(t, err)

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	_, err = fam.Alloc(KindDraw, 40)
	require.NoError(t, err)
	require.NoError(t, fam.WriteAt(KindDraw, data, 0))
	require.NoError(t, fam.Close())

	fam, err = OpenFamily(pattern, 16, false)
	require.NoError(t, err)
	defer func() { require.NoError(t, fam.Close()) }()

	eof, err := fam.EOF()
	require.NoError(t, err)
	assert.Equal(t, uint64(40), eof)

	require.NoError(t, fam.SetEOA(KindDraw, 40))
	got := make([]byte, 40)
	require.NoError(t, fam.ReadAt(KindDraw, got, 0))
	assert.Equal(t, data, got)

	// A read crossing the second member boundary.
	got = make([]byte, 10)
	require.NoError(t, fam.ReadAt(KindDraw, got, 12))
	assert.Equal(t, data[12:22], got)
}

func TestFamilySBRoundTrip(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "sb-%d.h5")
	fam, err := CreateFamily(pattern, 1024)
	require.NoError(t, err)
	defer func() { _ = fam.Close() }()

	assert.Equal(t, uint64(8), fam.SBSize())
	name, data, err := fam.SBEncode()
	require.NoError(t, err)
	assert.Equal(t, "NCSAfami", string(name[:]))
	require.NoError(t, fam.SBDecode(name, data))
}

func TestFamilySBDecodeMismatchedSize(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "mm-%d.h5")
	fam, err := CreateFamily(pattern, 1024)
	require.NoError(t, err)
	name, data, err := fam.SBEncode()
	require.NoError(t, err)
	require.NoError(t, fam.Close())

	other, err := OpenFamily(pattern, 2048, false)
	require.NoError(t, err)
	defer func() { _ = other.Close() }()
	err = other.SBDecode(name, data)
	assert.ErrorIs(t, err, utils.ErrCantOpen)
}

func TestMultiRoutesKindsToMembers(t *testing.T) {
	base := filepath.Join(t.TempDir(), "multi")
	m := NewMulti(base, true, true)

	superAddr, err := m.Alloc(KindSuper, 32)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), superAddr)

	drawAddr, err := m.Alloc(KindDraw, 64)
	require.NoError(t, err)
	assert.Equal(t, m.regionBase(KindDraw), drawAddr)

	require.NoError(t, m.WriteAt(KindSuper, []byte("superblk"), superAddr))
	require.NoError(t, m.WriteAt(KindDraw, make([]byte, 64), drawAddr))
	require.NoError(t, m.Close())

	// Each kind landed in its own backing file.
	fi, err := os.Stat(base + "-s.h5")
	require.NoError(t, err)
	assert.Equal(t, int64(8), fi.Size())
	fi, err = os.Stat(base + "-r.h5")
	require.NoError(t, err)
	assert.Equal(t, int64(64), fi.Size())
}

func TestMultiSBRoundTripRestoresEOA(t *testing.T) {
	base := filepath.Join(t.TempDir(), "multi2")
	m := NewMulti(base, true, true)
	_, err := m.Alloc(KindSuper, 100)
	require.NoError(t, err)
	_, err = m.Alloc(KindOHdr, 48)
	require.NoError(t, err)

	name, data, err := m.SBEncode()
	require.NoError(t, err)
	assert.Equal(t, "NCSAmult", string(name[:]))
	require.NoError(t, m.Close())

	m2 := NewMulti(base, false, false)
	defer func() { _ = m2.Close() }()
	require.NoError(t, m2.SBDecode(name, data))
	assert.Equal(t, uint64(100), m2.EOA(KindSuper))
	assert.Equal(t, m2.regionBase(KindOHdr)+48, m2.EOA(KindOHdr))
}

func TestMultiRejectsFamilyName(t *testing.T) {
	m := NewMulti(filepath.Join(t.TempDir(), "x"), false, false)
	defer func() { _ = m.Close() }()
	var name [SBNameLen]byte
	copy(name[:], "NCSAfami")
	err := m.SBDecode(name, make([]byte, m.SBSize()))
	assert.ErrorIs(t, err, utils.ErrCantOpen)
}
