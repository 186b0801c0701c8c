package xfer

import "github.com/scigolib/h5core/internal/utils"

// Stripmine chooses the number of elements moved per transfer pass: the
// largest multiple of the inner-dimensions product not exceeding the
// caller's buffer budget, so only the slowest-varying dimension is split.
// A buffer too small for even one slab row fails, as does a memory/file
// shape change that cannot complete in a single pass.
func Stripmine(memSpace, fileSpace *Dataspace, desiredNelmts uint64) (uint64, error) {
	if desiredNelmts == 0 {
		return 0, utils.Kindf(utils.ErrBadValue, "transfer buffer budget cannot be zero")
	}

	_, size, _, memSample := memSpace.GetHyperslab()
	for i, s := range memSample {
		if s != 1 {
			return 0, utils.Kindf(utils.ErrUnsupported, "hyperslab sampling is not implemented (dimension %d)", i)
		}
	}

	acc := uint64(1)
	for i := len(size) - 1; i > 0; i-- {
		var err error
		acc, err = utils.SafeMultiply(acc, size[i])
		if err != nil {
			return 0, err
		}
	}
	nelmts := (desiredNelmts / acc) * acc
	if nelmts == 0 {
		return 0, utils.Kindf(utils.ErrUnsupported, "strip mine buffer is too small")
	}

	_, fsize, _, fileSample := fileSpace.GetHyperslab()
	for i, s := range fileSample {
		if s != 1 {
			return 0, utils.Kindf(utils.ErrUnsupported, "hyperslab sampling is not implemented (dimension %d)", i)
		}
	}

	if memSpace.Rank() != fileSpace.Rank() {
		// A shape change cannot be split mid-transfer: the whole selection
		// must fit in one pass.
		nelmts = fileSpace.SelectNPoints()
		if nelmts > desiredNelmts {
			return 0, utils.Kindf(utils.ErrUnsupported, "strip mining not supported across dimensionalities")
		}
		return nelmts, nil
	}

	facc := uint64(1)
	for i := len(fsize) - 1; i > 0; i-- {
		var err error
		facc, err = utils.SafeMultiply(facc, fsize[i])
		if err != nil {
			return 0, err
		}
	}
	facc *= desiredNelmts / facc
	if nelmts != facc {
		return 0, utils.Kindf(utils.ErrUnsupported, "unsupported strip mine size for shape change")
	}
	return nelmts, nil
}
