// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package walker

import (
	"github.com/hazard-re/uedump/fname"
	"github.com/hazard-re/uedump/layout"
	"github.com/hazard-re/uedump/remote"
)

// NameEmulator is the optional fallback hook for FNames this walker
// cannot resolve through fname.Pool alone (spec.md §4.6): a single
// sandboxed call into the target's own GetPlainNameString equivalent.
// emulate.Decoder satisfies this interface structurally; walker does
// not import emulate to avoid a dependency a build without Unicorn
// support does not need.
type NameEmulator interface {
	DecodeName(raw []byte) (string, error)
}

// Config bundles every input the walker needs to run, per spec.md
// §4.5's "six core inputs" framing (memory, layout, names, object
// array, recursion controls, engine identity).
type Config struct {
	Mem            remote.Mem
	Catalogue      *layout.Catalogue
	EngineVersion  layout.Version
	CasePreserving bool
	Names          *fname.Pool

	// ObjectArray is the address of the GUObjectArray global
	// (an FUObjectArray).
	ObjectArray remote.Address
	// Chunked selects the post-chunked-allocator object table shape
	// (FChunkedFixedUObjectArray) over the flat TArray<FUObjectItem>
	// used by pre-4.x engines.
	Chunked bool
	// ObjectsPerChunk overrides the default chunk size (64Ki entries)
	// used when Chunked is set.
	ObjectsPerChunk uint32

	ImageBaseAddress uint64

	// RecurseParents decodes properties and names inherited from a
	// struct's parents into every descendant entry rather than relying
	// on readers to walk SuperStruct themselves (spec.md §4.5.3).
	RecurseParents bool

	// MaxRecursion bounds nested inner-property decoding (arrays of
	// arrays of structs...); spec.md §7 names a hard cap to guarantee
	// termination against a malformed or adversarial target.
	MaxRecursion int

	// Emulator is consulted only when fname.Pool.Decode fails on an
	// otherwise well-formed FName; nil disables the fallback entirely.
	Emulator NameEmulator
}

// maxRecursion returns cfg.MaxRecursion, defaulting to 16 (spec.md §7).
func (cfg *Config) maxRecursion() int {
	if cfg.MaxRecursion <= 0 {
		return 16
	}
	return cfg.MaxRecursion
}

// objectsPerChunk returns cfg.ObjectsPerChunk, defaulting to the
// engine's own FChunkedFixedUObjectArray chunk size of 64Ki entries.
func (cfg *Config) objectsPerChunk() uint32 {
	if cfg.ObjectsPerChunk == 0 {
		return 64 * 1024
	}
	return cfg.ObjectsPerChunk
}
