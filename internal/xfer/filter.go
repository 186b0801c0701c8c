package xfer

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/scigolib/h5core/internal/utils"
)

// Filter transforms one dataset's byte stream on its way to or from
// storage. Filters apply in pipeline order on write and in reverse on read.
type Filter interface {
	ID() uint16
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// Filter identifiers.
const (
	FilterDeflate uint16 = 1
	FilterShuffle uint16 = 2
)

// Pipeline is an ordered filter chain. The zero value and nil are both the
// empty pipeline.
type Pipeline struct {
	filters []Filter
}

// NewPipeline builds a pipeline from filters in application order.
func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

// IsEmpty reports whether the pipeline transforms anything.
func (p *Pipeline) IsEmpty() bool {
	return p == nil || len(p.filters) == 0
}

// EncodeData runs data through every filter in order.
func (p *Pipeline) EncodeData(data []byte) ([]byte, error) {
	if p.IsEmpty() {
		return data, nil
	}
	out := data
	for _, f := range p.filters {
		var err error
		out, err = f.Encode(out)
		if err != nil {
			return nil, utils.Kindf(utils.ErrIO, "filter %q encode failed: %v", f.Name(), err)
		}
	}
	return out, nil
}

// DecodeData runs data through every filter in reverse order.
func (p *Pipeline) DecodeData(data []byte) ([]byte, error) {
	if p.IsEmpty() {
		return data, nil
	}
	out := data
	for i := len(p.filters) - 1; i >= 0; i-- {
		f := p.filters[i]
		var err error
		out, err = f.Decode(out)
		if err != nil {
			return nil, utils.Kindf(utils.ErrIO, "filter %q decode failed: %v", f.Name(), err)
		}
	}
	return out, nil
}

// DeflateFilter compresses with the zlib stream format the deflate filter
// uses on disk.
type DeflateFilter struct {
	Level int
}

// NewDeflateFilter returns a deflate filter at the given compression level.
func NewDeflateFilter(level int) *DeflateFilter {
	return &DeflateFilter{Level: level}
}

// ID returns the deflate filter identifier.
func (f *DeflateFilter) ID() uint16 { return FilterDeflate }

// Name returns the filter name.
func (f *DeflateFilter) Name() string { return "deflate" }

// Encode compresses data.
func (f *DeflateFilter) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses data.
func (f *DeflateFilter) Decode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// ShuffleFilter regroups bytes by significance across elements, which helps
// the deflate stage find runs in numeric data.
type ShuffleFilter struct {
	ElmtSize uint64
}

// NewShuffleFilter returns a shuffle filter for elements of the given size.
func NewShuffleFilter(elmtSize uint64) *ShuffleFilter {
	return &ShuffleFilter{ElmtSize: elmtSize}
}

// ID returns the shuffle filter identifier.
func (f *ShuffleFilter) ID() uint16 { return FilterShuffle }

// Name returns the filter name.
func (f *ShuffleFilter) Name() string { return "shuffle" }

// Encode shuffles data byte planes.
func (f *ShuffleFilter) Encode(data []byte) ([]byte, error) {
	return f.apply(data, true)
}

// Decode unshuffles data byte planes.
func (f *ShuffleFilter) Decode(data []byte) ([]byte, error) {
	return f.apply(data, false)
}

func (f *ShuffleFilter) apply(data []byte, forward bool) ([]byte, error) {
	es := f.ElmtSize
	if es <= 1 || uint64(len(data))%es != 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	n := uint64(len(data)) / es
	out := make([]byte, len(data))
	for i := uint64(0); i < n; i++ {
		for j := uint64(0); j < es; j++ {
			if forward {
				out[j*n+i] = data[i*es+j]
			} else {
				out[i*es+j] = data[j*n+i]
			}
		}
	}
	return out, nil
}
