// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package walker

import (
	"encoding/binary"
	"fmt"

	"github.com/hazard-re/uedump/fname"
	"github.com/hazard-re/uedump/model"
	"github.com/hazard-re/uedump/remote"
	"github.com/hazard-re/uedump/rptr"
)

// Walker holds the running state for one reflection dump: the typed
// memory context every rptr call shares, plus the output it is
// assembling. Build one with New and call Walk once; a Walker is not
// meant to be reused across runs.
type Walker struct {
	ctx *rptr.Context
	cfg *Config

	pathCache map[remote.Address]string
	data      *model.ReflectionData
}

// New builds a Walker from cfg.
func New(cfg *Config) *Walker {
	ctx := rptr.NewContext(cfg.Mem, cfg.Catalogue, cfg.EngineVersion, cfg.CasePreserving)
	return &Walker{
		ctx:       ctx,
		cfg:       cfg,
		pathCache: make(map[remote.Address]string),
		data:      model.NewReflectionData(cfg.ImageBaseAddress),
	}
}

// Walk enumerates GUObjectArray, classifies and decodes every entry,
// and returns the assembled dump (spec.md §4.5.1–§4.5.8).
func (w *Walker) Walk() (*model.ReflectionData, error) {
	addrs, err := w.enumerateObjects()
	if err != nil {
		return nil, fmt.Errorf("walker: enumerate object table: %w", err)
	}

	for _, addr := range addrs {
		path, err := w.resolvePath(addr)
		if err != nil {
			return nil, fmt.Errorf("walker: resolve path for object at %s: %w", addr, err)
		}
		if w.data.Objects.Has(path) {
			continue
		}
		obj, err := w.decodeObject(addr)
		if err != nil {
			return nil, fmt.Errorf("walker: decode object %q at %s: %w", path, addr, err)
		}
		w.data.Objects.Set(path, obj)
	}

	w.populateChildren()

	if err := w.scanVTables(addrs); err != nil {
		return nil, fmt.Errorf("walker: scan vtables: %w", err)
	}

	return w.data, nil
}

// populateChildren fills ObjectCommon.Children: the containment tree
// spec.md §4.5.8's path scheme encodes (every object whose Outer
// resolves to this one), which decodeObjectCommon cannot know at
// decode time since an object's children are discovered throughout
// the rest of the enumeration, not before it. A second pass over the
// now-complete Objects map is the simplest way to invert Outer into
// Children once every path is known. Keys() is already sorted, so each
// parent's Children list comes out sorted too.
func (w *Walker) populateChildren() {
	for _, path := range w.data.Objects.Keys() {
		obj, ok := w.data.Objects.Get(path)
		if !ok || obj.Object.Outer == "" {
			continue
		}
		parent, ok := w.data.Objects.Get(obj.Object.Outer)
		if !ok {
			continue
		}
		parent.Object.Children = append(parent.Object.Children, path)
		w.data.Objects.Set(obj.Object.Outer, parent)
	}
}

// objectName decodes the FName stored at UObjectBase.NamePrivate.
func (w *Walker) objectName(addr remote.Address) (string, error) {
	off, err := w.ctx.MemberOffset("UObjectBase", "NamePrivate")
	if err != nil {
		return "", err
	}
	idxPtr := rptr.New[[2]uint32](w.ctx, addr+remote.Address(off))
	raw, err := idxPtr.Read()
	if err != nil {
		return "", fmt.Errorf("read NamePrivate: %w", err)
	}
	idx := fname.Index{ComparisonIndex: raw[0], Number: raw[1]}
	name, err := w.cfg.Names.Decode(idx)
	if err == nil {
		return name, nil
	}
	if w.cfg.Emulator != nil {
		var rawBytes [8]byte
		binary.LittleEndian.PutUint32(rawBytes[0:], raw[0])
		binary.LittleEndian.PutUint32(rawBytes[4:], raw[1])
		if emName, emErr := w.cfg.Emulator.DecodeName(rawBytes[:]); emErr == nil {
			return emName, nil
		}
	}
	return "", fmt.Errorf("decode name at %s: %w", addr, err)
}

// objectOuter returns UObjectBase.OuterPrivate, or 0 for a root object.
func (w *Walker) objectOuter(addr remote.Address) (remote.Address, error) {
	off, err := w.ctx.MemberOffset("UObjectBase", "OuterPrivate")
	if err != nil {
		return 0, err
	}
	outerPtr := rptr.New[uint64](w.ctx, addr+remote.Address(off))
	v, err := outerPtr.Read()
	if err != nil {
		return 0, fmt.Errorf("read OuterPrivate: %w", err)
	}
	return remote.Address(v), nil
}

// objectClassPtr returns UObjectBase.ClassPrivate.
func (w *Walker) objectClassPtr(addr remote.Address) (remote.Address, error) {
	off, err := w.ctx.MemberOffset("UObjectBase", "ClassPrivate")
	if err != nil {
		return 0, err
	}
	classPtr := rptr.New[uint64](w.ctx, addr+remote.Address(off))
	v, err := classPtr.Read()
	if err != nil {
		return 0, fmt.Errorf("read ClassPrivate: %w", err)
	}
	return remote.Address(v), nil
}

// classifyObject resolves addr's classification by reading its
// class's ClassCastFlags. An object that is itself a UClass/UStruct
// (i.e. addr == classPtr, as happens for UClass::StaticClass()'s own
// metaclass chain) is classified directly from its own cast flags.
func (w *Walker) classifyObject(addr remote.Address) (ObjectClassification, CastFlag, remote.Address, error) {
	classPtr, err := w.objectClassPtr(addr)
	if err != nil {
		return ClassifyGeneric, 0, 0, err
	}
	if classPtr == 0 {
		// No class at all: this is UObject's own class-of-classes root.
		return ClassifyClass, CastUClass, 0, nil
	}
	off, err := w.ctx.MemberOffset("UClass", "ClassCastFlags")
	if err != nil {
		return ClassifyGeneric, 0, classPtr, err
	}
	flagsPtr := rptr.New[uint64](w.ctx, classPtr+remote.Address(off))
	raw, err := flagsPtr.Read()
	if err != nil {
		return ClassifyGeneric, 0, classPtr, fmt.Errorf("read class cast flags: %w", err)
	}
	flags := CastFlag(raw)
	return Classify(flags), flags, classPtr, nil
}

// resolvePath walks addr's Outer chain to the root and joins the
// collected names per spec.md §4.5.8: the package/top-level boundary
// uses '.', every nested boundary beneath it uses ':'.
func (w *Walker) resolvePath(addr remote.Address) (string, error) {
	if p, ok := w.pathCache[addr]; ok {
		return p, nil
	}

	var chain []string
	cur := addr
	seen := make(map[remote.Address]bool)
	for cur != 0 {
		if seen[cur] {
			return "", fmt.Errorf("outer chain cycle detected at %s", cur)
		}
		seen[cur] = true

		name, err := w.objectName(cur)
		if err != nil {
			return "", err
		}
		chain = append(chain, name)

		outer, err := w.objectOuter(cur)
		if err != nil {
			return "", err
		}
		cur = outer
	}
	if len(chain) == 0 {
		return "", fmt.Errorf("empty outer chain")
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	path := chain[0]
	for i := 1; i < len(chain); i++ {
		sep := ":"
		if i == 1 {
			sep = "."
		}
		path += sep + chain[i]
	}
	w.pathCache[addr] = path
	return path, nil
}
