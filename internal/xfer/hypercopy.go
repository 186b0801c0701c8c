package xfer

import "github.com/scigolib/h5core/internal/utils"

// hyperCopy copies an n-dimensional rectangle of bytes between two
// row-major arrays. size is the rectangle extent; dstSize/srcSize are the
// full array extents and dstOffset/srcOffset the rectangle origin in each.
// The innermost dimensions are byte dimensions, so a maximal contiguous
// suffix collapses into single copy runs.
func hyperCopy(n int, size, dstSize []uint64, dstOffset []int64, dst []byte,
	srcSize []uint64, srcOffset []int64, src []byte) error {
	if n == 0 {
		return nil
	}

	// Collapse the contiguous suffix: trailing dimensions that span both
	// arrays completely move as one run.
	run := uint64(1)
	outer := n
	for outer > 0 {
		i := outer - 1
		if size[i] == dstSize[i] && size[i] == srcSize[i] && dstOffset[i] == 0 && srcOffset[i] == 0 {
			run *= size[i]
			outer--
			continue
		}
		break
	}
	if outer > 0 {
		run *= size[outer-1]
		outer--
	}

	dstStride, err := rowStrides(dstSize)
	if err != nil {
		return err
	}
	srcStride, err := rowStrides(srcSize)
	if err != nil {
		return err
	}

	// Odometer over the outer dimensions.
	idx := make([]uint64, outer)
	for {
		dstOff := uint64(0)
		srcOff := uint64(0)
		for i := 0; i < outer; i++ {
			dstOff += (uint64(dstOffset[i]) + idx[i]) * dstStride[i]
			srcOff += (uint64(srcOffset[i]) + idx[i]) * srcStride[i]
		}
		if outer < n {
			dstOff += uint64(dstOffset[outer]) * dstStride[outer]
			srcOff += uint64(srcOffset[outer]) * srcStride[outer]
		}
		if dstOff+run > uint64(len(dst)) || srcOff+run > uint64(len(src)) {
			return utils.Kindf(utils.ErrBadRange, "rectangle copy overruns buffer")
		}
		copy(dst[dstOff:dstOff+run], src[srcOff:srcOff+run])

		// Advance the odometer, slowest digit last to overflow.
		i := outer - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < size[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return nil
}

// rowStrides returns the byte stride of each dimension of a row-major
// array whose innermost dimensions are bytes.
func rowStrides(dims []uint64) ([]uint64, error) {
	n := len(dims)
	strides := make([]uint64, n)
	acc := uint64(1)
	for i := n - 1; i >= 0; i-- {
		strides[i] = acc
		next, err := utils.SafeMultiply(acc, dims[i])
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return strides, nil
}
