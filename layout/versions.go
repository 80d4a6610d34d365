// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package layout

import "fmt"

// builtinSources holds the compiled-in description-language text for
// every engine version this catalogue ships with out of the box. Real
// deployments are expected to override or extend this with their own
// catalogue file (LoadFile), but a fresh checkout can decode a 4.25+
// target and a 4.18–4.24 target with nothing else configured.
var builtinSources = []struct {
	version        Version
	casePreserving bool
	source         string
}{
	{Version{4, 25}, false, dsl425},
	{Version{4, 18}, false, dsl418},
}

// Default compiles the built-in catalogue. It never returns an error
// in practice (the built-in sources are part of the binary) but keeps
// the same signature as LoadFile so callers can treat both uniformly.
func Default() (*Catalogue, error) {
	cat := &Catalogue{}
	for _, src := range builtinSources {
		structs, err := Compile(src.source)
		if err != nil {
			return nil, fmt.Errorf("layout: built-in catalogue for %s: %w", src.version, err)
		}
		cat.entries = append(cat.entries, versionEntry{
			version:        src.version,
			casePreserving: src.casePreserving,
			structs:        structs,
		})
	}
	return cat, nil
}

// dsl418 covers engine releases before the 4.25 FField/FProperty split:
// UField uses an intrusive Next chain and UClass uses UObject-derived
// children, per spec.md §4.5.4.
const dsl418 = `
struct UObjectBase size=0x28 align=8 {
    VTable         offset=0x0  size=8
    ObjectFlags    offset=0x8  size=4
    InternalIndex  offset=0xc  size=4
    ClassPrivate   offset=0x10 size=8
    NamePrivate    offset=0x18 size=8
    OuterPrivate   offset=0x20 size=8
}

struct UField size=0x30 align=8 {
    Next offset=0x28 size=8
}

struct UStruct size=0x50 align=8 {
    SuperStruct    offset=0x30 size=8
    Children       offset=0x38 size=8
    PropertiesSize offset=0x40 size=4
    MinAlignment   offset=0x44 size=4
    PropertyLink   offset=0x48 size=8
}

struct UProperty size=0x70 align=8 {
    ArrayDim    offset=0x30 size=4
    ElementSize offset=0x34 size=4
    PropertyFlags offset=0x38 size=8
    Offset_Internal offset=0x44 size=4
    PropertyLinkNext offset=0x58 size=8
}

struct UClass size=0x1b0 align=8 {
    ClassFlags            offset=0x50 size=4
    ClassCastFlags        offset=0x58 size=8
    ClassDefaultObject    offset=0xc8 size=8
}

struct UFunction size=0x90 align=8 {
    FunctionFlags offset=0x50 size=4
    Func          offset=0x88 size=8
}

struct UEnum size=0x40 align=8 {
    CppType offset=0x28 size=16
    Names   offset=0x38 size=8
}

struct UEnumNameTuple size=0x10 align=8 {
    Name  offset=0x0  size=8
    Value offset=0x8  size=8
}

struct TArray size=0x10 align=8 {
    Data     offset=0x0 size=8
    ArrayNum offset=0x8 size=4
    ArrayMax offset=0xc size=4
}

struct FUObjectArray size=0x38 align=8 {
    ObjFirstGCIndex offset=0x0  size=4
    ObjLastNonGCIndex offset=0x4 size=4
    MaxElements offset=0x10 size=4
    NumElements offset=0x14 size=4
    Objects     offset=0x18 size=8
}

struct FUObjectItem size=0x18 align=8 {
    Object         offset=0x0 size=8
    Flags          offset=0x8 size=4
    ClusterRootIndex offset=0xc size=4
    SerialNumber   offset=0x10 size=4
}

struct FChunkedFixedUObjectArray size=0x30 align=8 {
    Objects        offset=0x0  size=8
    PreAllocatedObjects offset=0x8 size=8
    MaxElements    offset=0x10 size=4
    NumElements    offset=0x14 size=4
    MaxChunks      offset=0x18 size=4
    NumChunks      offset=0x1c size=4
}

struct FObjectPropertyBase size=0x78 align=8 {
    PropertyClass offset=0x70 size=8
}

struct FClassProperty size=0x80 align=8 {
    MetaClass offset=0x78 size=8
}

struct FArrayProperty size=0x80 align=8 {
    Inner offset=0x78 size=8
}

struct FSetProperty size=0x80 align=8 {
    ElementProp offset=0x78 size=8
}

struct FMapProperty size=0x88 align=8 {
    KeyProp   offset=0x78 size=8
    ValueProp offset=0x80 size=8
}

struct FEnumProperty size=0x88 align=8 {
    UnderlyingProp offset=0x78 size=8
    Enum           offset=0x80 size=8
}

struct FByteProperty size=0x80 align=8 {
    Enum offset=0x78 size=8
}

struct FBoolProperty size=0x7c align=8 {
    FieldSize  offset=0x78 size=1
    ByteOffset offset=0x79 size=1
    ByteMask   offset=0x7a size=1
    FieldMask  offset=0x7b size=1
}

struct FStructProperty size=0x80 align=8 {
    Struct offset=0x78 size=8
}

struct FInterfaceProperty size=0x80 align=8 {
    InterfaceClass offset=0x78 size=8
}

struct FDelegateProperty size=0x80 align=8 {
    SignatureFunction offset=0x78 size=8
}

struct FOptionalProperty size=0x80 align=8 {
    ValueProperty offset=0x78 size=8
}
`

// dsl425 covers 4.25 and later: the FField/FFieldClass property system
// and the ChildProperties chain described in spec.md §4.5.4.
const dsl425 = `
struct UObjectBase size=0x28 align=8 {
    VTable         offset=0x0  size=8
    ObjectFlags    offset=0x8  size=4
    InternalIndex  offset=0xc  size=4
    ClassPrivate   offset=0x10 size=8
    NamePrivate    offset=0x18 size=8
    OuterPrivate   offset=0x20 size=8
}

struct UField size=0x30 align=8 {
    Next offset=0x28 size=8
}

struct UStruct size=0x70 align=8 {
    SuperStruct      offset=0x30 size=8
    Children         offset=0x38 size=8
    ChildProperties  offset=0x40 size=8
    PropertiesSize   offset=0x48 size=4
    MinAlignment     offset=0x4c size=4
    PropertyLink     offset=0x50 size=8
}

struct FField size=0x38 align=8 {
    Vtable    offset=0x0  size=8
    ClassPtr  offset=0x8  size=8
    Next      offset=0x20 size=8
    NamePrivate offset=0x28 size=8
    FlagsPrivate offset=0x30 size=4
}

struct FFieldClass size=0x28 align=8 {
    Name offset=0x0 size=8
    Id   offset=0x8 size=8
    CastFlags offset=0x10 size=8
}

struct FProperty size=0x78 align=8 {
    ArrayDim    offset=0x38 size=4
    ElementSize offset=0x3c size=4
    PropertyFlags offset=0x40 size=8
    Offset_Internal offset=0x4c size=4
    PropertyLinkNext offset=0x60 size=8
}

struct UClass size=0x1d0 align=8 {
    ClassFlags            offset=0x70 size=4
    ClassCastFlags        offset=0x78 size=8
    ClassDefaultObject    offset=0xd8 size=8
}

struct UFunction size=0xa0 align=8 {
    FunctionFlags offset=0x70 size=4
    Func          offset=0x98 size=8
}

struct UEnum size=0x40 align=8 {
    CppType offset=0x28 size=16
    Names   offset=0x38 size=8
}

struct UEnumNameTuple size=0x10 align=8 {
    Name  offset=0x0  size=8
    Value offset=0x8  size=8
}

struct TArray size=0x10 align=8 {
    Data     offset=0x0 size=8
    ArrayNum offset=0x8 size=4
    ArrayMax offset=0xc size=4
}

struct FUObjectArray size=0x38 align=8 {
    ObjFirstGCIndex offset=0x0  size=4
    ObjLastNonGCIndex offset=0x4 size=4
    MaxElements offset=0x10 size=4
    NumElements offset=0x14 size=4
    Objects     offset=0x18 size=8
}

struct FUObjectItem size=0x18 align=8 {
    Object         offset=0x0 size=8
    Flags          offset=0x8 size=4
    ClusterRootIndex offset=0xc size=4
    SerialNumber   offset=0x10 size=4
}

struct FChunkedFixedUObjectArray size=0x30 align=8 {
    Objects        offset=0x0  size=8
    PreAllocatedObjects offset=0x8 size=8
    MaxElements    offset=0x10 size=4
    NumElements    offset=0x14 size=4
    MaxChunks      offset=0x18 size=4
    NumChunks      offset=0x1c size=4
}

struct FObjectPropertyBase size=0x80 align=8 {
    PropertyClass offset=0x78 size=8
}

struct FClassProperty size=0x88 align=8 {
    MetaClass offset=0x80 size=8
}

struct FArrayProperty size=0x88 align=8 {
    Inner offset=0x80 size=8
}

struct FSetProperty size=0x88 align=8 {
    ElementProp offset=0x80 size=8
}

struct FMapProperty size=0x90 align=8 {
    KeyProp   offset=0x80 size=8
    ValueProp offset=0x88 size=8
}

struct FEnumProperty size=0x90 align=8 {
    UnderlyingProp offset=0x80 size=8
    Enum           offset=0x88 size=8
}

struct FByteProperty size=0x88 align=8 {
    Enum offset=0x80 size=8
}

struct FBoolProperty size=0x84 align=8 {
    FieldSize  offset=0x80 size=1
    ByteOffset offset=0x81 size=1
    ByteMask   offset=0x82 size=1
    FieldMask  offset=0x83 size=1
}

struct FStructProperty size=0x88 align=8 {
    Struct offset=0x80 size=8
}

struct FInterfaceProperty size=0x88 align=8 {
    InterfaceClass offset=0x80 size=8
}

struct FDelegateProperty size=0x88 align=8 {
    SignatureFunction offset=0x80 size=8
}

struct FOptionalProperty size=0x88 align=8 {
    ValueProperty offset=0x80 size=8
}
`
