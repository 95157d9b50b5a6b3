// Package inspect builds views of remote data from the field-layout schema:
// structs whose fields are located by offset, containers of scalar
// elements, and strings. Every view is a view.Object underneath, so it
// follows the same address-driven lifecycle.
package inspect

import (
	"memview/layout"
	"memview/pod"
	"memview/process"
	"memview/stl"
	"memview/view"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// NameKey identifies an immutable string by address and character width.
type NameKey struct {
	Addr process.ProcessMemoryAddress
	Wide bool
}

// Env is shared by every view of a session.
type Env struct {
	Decoder *stl.Decoder
	Schema  layout.Schema
	// Names caches strings behind name_ref and wname_ref fields.
	Names *view.Cache[NameKey, string]
	// Parallel bounds concurrent child re-addressing in one collection.
	Parallel int

	log *logger.Logger
}

// NewEnv returns an environment with an empty name cache.
func NewEnv(d *stl.Decoder, schema layout.Schema, parallel int) *Env {
	return &Env{
		Decoder:  d,
		Schema:   schema,
		Names:    view.NewCache[NameKey, string](),
		Parallel: parallel,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "inspect")),
	}
}

func (e *Env) Reader() *pod.Reader {
	return e.Decoder.Reader()
}

// name resolves a NUL-terminated string once per address.
func (e *Env) name(addr process.ProcessMemoryAddress, wide bool) (string, error) {
	if addr == 0 {
		return "", nil
	}
	return e.Names.GetOrLoad(NameKey{Addr: addr, Wide: wide}, func(k NameKey) (string, error) {
		limit := e.Decoder.Limits().MaxStringBytes
		if k.Wide {
			return e.Reader().ReadBoundedUTF16(k.Addr, limit/2)
		}
		return e.Reader().ReadBoundedString(k.Addr, limit)
	})
}

// View is a top-level view wired to a root address.
type View interface {
	Name() string
	SetAddress(addr process.ProcessMemoryAddress) error
	// Refresh re-applies the current address; see view.Object.Refresh.
	Refresh() error
	Address() process.ProcessMemoryAddress
	Err() error
	// Snapshot returns a JSON-friendly copy of the decoded state.
	Snapshot() any
}
