// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package walker is component E: it enumerates GUObjectArray, classifies
// every entry by its class's cast flags, decodes each into the
// model.ObjectType tagged union, and assembles the result into a
// model.ReflectionData (spec.md §4.5). It is the composition point for
// every other component: A (remote) supplies bytes, B (rptr) decodes
// typed fields from them, C (layout) supplies the offsets B uses, and
// D (fname) turns the names that appear throughout into strings.
package walker

// CastFlag mirrors the engine's EClassCastFlags bitmask used to
// classify a UObject without string-comparing its class name (spec.md
// §4.5.2). Only the flags this walker needs to distinguish are listed;
// an object matching none of them is treated as a generic UObject.
type CastFlag uint64

// The subset of EClassCastFlags this walker tests. Classify and
// propertyDispatchFlags test them in priority order: a UClass whose
// cast flags also happen to set the UFunction bit (which cannot occur,
// but mirrors how the engine defines these as independent bits) is
// still classified as a UClass because CastUClass is tested first.
const (
	CastUField           CastFlag = 1 << 0
	CastUScriptStruct    CastFlag = 1 << 8
	CastUClass           CastFlag = 1 << 9
	CastUEnum            CastFlag = 1 << 17
	CastUFunction        CastFlag = 1 << 6
	CastUPackage         CastFlag = 1 << 30
	CastUProperty        CastFlag = 1 << 1

	CastFClassProperty      CastFlag = 1 << 2
	CastFObjectProperty     CastFlag = 1 << 3
	CastFSoftClassProperty  CastFlag = 1 << 4
	CastFSoftObjectProperty CastFlag = 1 << 5
	CastFWeakObjectProperty CastFlag = 1 << 10
	CastFLazyObjectProperty CastFlag = 1 << 11
	CastFInterfaceProperty  CastFlag = 1 << 12
	CastFStructProperty     CastFlag = 1 << 13
	CastFArrayProperty      CastFlag = 1 << 14
	CastFSetProperty        CastFlag = 1 << 15
	CastFMapProperty        CastFlag = 1 << 16
	CastFEnumProperty       CastFlag = 1 << 18
	CastFByteProperty       CastFlag = 1 << 19
	CastFBoolProperty       CastFlag = 1 << 20
	CastFStrProperty        CastFlag = 1 << 21
	CastFNameProperty       CastFlag = 1 << 22
	CastFTextProperty       CastFlag = 1 << 23

	CastFMulticastInlineDelegateProperty CastFlag = 1 << 24
	CastFMulticastSparseDelegateProperty CastFlag = 1 << 25
	CastFMulticastDelegateProperty       CastFlag = 1 << 26
	CastFDelegateProperty                CastFlag = 1 << 27

	CastFFloatProperty     CastFlag = 1 << 28
	CastFDoubleProperty    CastFlag = 1 << 29
	CastFInt8Property      CastFlag = 1 << 31
	CastFInt16Property     CastFlag = 1 << 32
	CastFIntProperty       CastFlag = 1 << 33
	CastFInt64Property     CastFlag = 1 << 34
	CastFUInt16Property    CastFlag = 1 << 35
	CastFUInt32Property    CastFlag = 1 << 36
	CastFUInt64Property    CastFlag = 1 << 37
	CastFFieldPathProperty CastFlag = 1 << 38
	CastFOptionalProperty  CastFlag = 1 << 39
)

// Has reports whether bit is set in flags.
func (flags CastFlag) Has(bit CastFlag) bool { return flags&bit != 0 }

// ObjectClassification is the coarse object kind cast-flag testing
// selects, before the full struct-shaped decode runs. Priority order
// when more than one bit is theoretically plausible: UClass >
// UFunction > UScriptStruct > UEnum > UPackage > generic UObject
// (spec.md §4.5.2, invariant 2).
type ObjectClassification int

const (
	ClassifyGeneric ObjectClassification = iota
	ClassifyPackage
	ClassifyEnum
	ClassifyScriptStruct
	ClassifyFunction
	ClassifyClass
)

// Classify applies the cast-flag priority order.
func Classify(flags CastFlag) ObjectClassification {
	switch {
	case flags.Has(CastUClass):
		return ClassifyClass
	case flags.Has(CastUFunction):
		return ClassifyFunction
	case flags.Has(CastUScriptStruct):
		return ClassifyScriptStruct
	case flags.Has(CastUEnum):
		return ClassifyEnum
	case flags.Has(CastUPackage):
		return ClassifyPackage
	default:
		return ClassifyGeneric
	}
}

// propertyDispatchFlags lists, in priority order, the cast-flag bit
// tested for each model.PropertyKind. It mirrors model.DispatchOrder
// exactly; kept as a parallel slice (rather than a map from
// PropertyKind to CastFlag) so the iteration order is the literal
// source of truth, matching spec.md invariant 4's "first match wins"
// wording.
var propertyDispatchFlags = []CastFlag{
	CastFClassProperty, CastFObjectProperty, CastFSoftClassProperty, CastFSoftObjectProperty,
	CastFWeakObjectProperty, CastFLazyObjectProperty, CastFInterfaceProperty,
	CastFStructProperty, CastFArrayProperty, CastFSetProperty, CastFMapProperty,
	CastFEnumProperty, CastFByteProperty, CastFBoolProperty, CastFStrProperty, CastFNameProperty,
	CastFTextProperty, CastFMulticastInlineDelegateProperty, CastFMulticastSparseDelegateProperty,
	CastFMulticastDelegateProperty, CastFDelegateProperty, CastFFloatProperty, CastFDoubleProperty,
	CastFInt8Property, CastFInt16Property, CastFIntProperty, CastFInt64Property,
	CastFUInt16Property, CastFUInt32Property, CastFUInt64Property, CastFFieldPathProperty,
	CastFOptionalProperty,
}
