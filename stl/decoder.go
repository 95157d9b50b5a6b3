// Package stl decodes native standard-library containers out of remote
// memory: vectors, linked lists, ordered maps, open-addressing buckets and
// strings.
//
// Every count or length read from the target is checked against Limits
// before it sizes a read or an allocation. A violation is reported through
// the Reader as CorruptData and the decoder returns an empty (or partial)
// result together with the error; nothing here panics on bad data.
package stl

import (
	"memview/pod"
)

const (
	DefaultMaxElements    = 1 << 20
	DefaultMaxStringBytes = 4096
	DefaultTreeMargin     = 5
)

// Limits bounds what a Decoder will believe about remote containers.
type Limits struct {
	MaxElements    int
	MaxStringBytes int
	// TreeMargin is added to a reported size to bound tree and list walks.
	TreeMargin int
}

// Decoder couples a Reader with container limits.
type Decoder struct {
	r      *pod.Reader
	limits Limits
}

// NewDecoder returns a decoder reading through r. Zero limits take their defaults.
func NewDecoder(r *pod.Reader, limits Limits) *Decoder {
	if limits.MaxElements <= 0 {
		limits.MaxElements = DefaultMaxElements
	}
	if limits.MaxStringBytes <= 0 {
		limits.MaxStringBytes = DefaultMaxStringBytes
	}
	if limits.TreeMargin <= 0 {
		limits.TreeMargin = DefaultTreeMargin
	}
	return &Decoder{r: r, limits: limits}
}

func (d *Decoder) Reader() *pod.Reader {
	return d.r
}

func (d *Decoder) Limits() Limits {
	return d.limits
}
