package h5core

import "github.com/scigolib/h5core/internal/utils"

// The closed set of failure kinds the container layer reports. Test with
// errors.Is. Failures found by the container layer's own checks wrap one of
// these; operating-system errors from opening, creating, or closing backing
// files (family members included) are returned with added context only and
// match none of them.
var (
	ErrIO          = utils.ErrIO
	ErrNotHDF5     = utils.ErrNotHDF5
	ErrBadValue    = utils.ErrBadValue
	ErrBadRange    = utils.ErrBadRange
	ErrTruncated   = utils.ErrTruncated
	ErrCantInit    = utils.ErrCantInit
	ErrCantOpen    = utils.ErrCantOpen
	ErrUnsupported = utils.ErrUnsupported
	ErrCantGet     = utils.ErrCantGet
	ErrCantSet     = utils.ErrCantSet
	ErrCantCreate  = utils.ErrCantCreate
)
