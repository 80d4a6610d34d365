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

// fieldHandle is one node of either historical field-chain
// representation (spec.md §4.5.4): the ≥4.25 FField/FFieldClass chain
// linked through Next, or the pre-4.25 chain where each property is
// itself a UObject linked through UField.Next and classified through
// its UClass's ClassCastFlags exactly like any other object.
type fieldHandle struct {
	addr      remote.Address
	name      string
	castFlags CastFlag
	next      remote.Address
	isModern  bool
}

// decodeProperties walks structAddr's property chain, picking the
// field-chain representation the UStruct itself indicates by whether
// it carries a ChildProperties member in this engine version's
// catalogue (spec.md §4.5.4, invariant 3: "the field-chain
// representation is determined once per engine version, never mixed
// within one walk").
func (w *Walker) decodeProperties(structAddr remote.Address) ([]model.Property, error) {
	if off, err := w.ctx.MemberOffset("UStruct", "ChildProperties"); err == nil {
		head, err := rptr.New[uint64](w.ctx, structAddr+remote.Address(off)).Read()
		if err != nil {
			return nil, fmt.Errorf("read ChildProperties: %w", err)
		}
		return w.decodeFieldChain(remote.Address(head), true, 0)
	}
	off, err := w.ctx.MemberOffset("UStruct", "Children")
	if err != nil {
		return nil, err
	}
	head, err := rptr.New[uint64](w.ctx, structAddr+remote.Address(off)).Read()
	if err != nil {
		return nil, fmt.Errorf("read Children: %w", err)
	}
	return w.decodeFieldChain(remote.Address(head), false, 0)
}

func (w *Walker) decodeFieldChain(head remote.Address, isModern bool, depth int) ([]model.Property, error) {
	var props []model.Property
	cur := head
	seen := make(map[remote.Address]bool)
	for cur != 0 {
		if seen[cur] {
			return nil, fmt.Errorf("walker: field chain cycle detected at %s", cur)
		}
		seen[cur] = true

		fh, err := w.resolveField(cur, isModern)
		if err != nil {
			return nil, err
		}
		kind, ok := classifyPropertyKind(fh.castFlags)
		if !ok {
			return nil, fmt.Errorf("walker: unrecognized property cast flags %#x for %q at %s", fh.castFlags, fh.name, cur)
		}
		prop, err := w.decodeProperty(fh, kind, depth)
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
		cur = fh.next
	}
	return props, nil
}

func (w *Walker) resolveField(addr remote.Address, isModern bool) (fieldHandle, error) {
	if isModern {
		return w.resolveModernField(addr)
	}
	return w.resolveLegacyField(addr)
}

func (w *Walker) resolveModernField(addr remote.Address) (fieldHandle, error) {
	classPtrOff, err := w.ctx.MemberOffset("FField", "ClassPtr")
	if err != nil {
		return fieldHandle{}, err
	}
	nextOff, err := w.ctx.MemberOffset("FField", "Next")
	if err != nil {
		return fieldHandle{}, err
	}
	nameOff, err := w.ctx.MemberOffset("FField", "NamePrivate")
	if err != nil {
		return fieldHandle{}, err
	}
	castFlagsOff, err := w.ctx.MemberOffset("FFieldClass", "CastFlags")
	if err != nil {
		return fieldHandle{}, err
	}

	classPtr, err := rptr.New[uint64](w.ctx, addr+remote.Address(classPtrOff)).Read()
	if err != nil {
		return fieldHandle{}, fmt.Errorf("read FField.ClassPtr: %w", err)
	}
	castFlags, err := rptr.New[uint64](w.ctx, remote.Address(classPtr)+remote.Address(castFlagsOff)).Read()
	if err != nil {
		return fieldHandle{}, fmt.Errorf("read FFieldClass.CastFlags: %w", err)
	}
	next, err := rptr.New[uint64](w.ctx, addr+remote.Address(nextOff)).Read()
	if err != nil {
		return fieldHandle{}, fmt.Errorf("read FField.Next: %w", err)
	}
	nameRaw, err := rptr.New[[2]uint32](w.ctx, addr+remote.Address(nameOff)).Read()
	if err != nil {
		return fieldHandle{}, fmt.Errorf("read FField.NamePrivate: %w", err)
	}
	name, err := w.decodeFNameRaw(nameRaw)
	if err != nil {
		return fieldHandle{}, err
	}

	return fieldHandle{addr: addr, name: name, castFlags: CastFlag(castFlags), next: remote.Address(next), isModern: true}, nil
}

func (w *Walker) resolveLegacyField(addr remote.Address) (fieldHandle, error) {
	name, err := w.objectName(addr)
	if err != nil {
		return fieldHandle{}, err
	}
	_, castFlags, _, err := w.classifyObject(addr)
	if err != nil {
		return fieldHandle{}, err
	}
	nextOff, err := w.ctx.MemberOffset("UField", "Next")
	if err != nil {
		return fieldHandle{}, err
	}
	next, err := rptr.New[uint64](w.ctx, addr+remote.Address(nextOff)).Read()
	if err != nil {
		return fieldHandle{}, fmt.Errorf("read UField.Next: %w", err)
	}
	return fieldHandle{addr: addr, name: name, castFlags: castFlags, next: remote.Address(next), isModern: false}, nil
}

// decodeFNameRaw turns a (comparison_index, number) pair already read
// off the wire into a string, applying the same emulator fallback
// objectName does.
func (w *Walker) decodeFNameRaw(raw [2]uint32) (string, error) {
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
	return "", err
}

// classifyPropertyKind applies the first-match-wins cast-flag priority
// order from model.DispatchOrder (spec.md invariant 4).
func classifyPropertyKind(flags CastFlag) (model.PropertyKind, bool) {
	for i, bit := range propertyDispatchFlags {
		if flags.Has(bit) {
			return model.DispatchOrder[i], true
		}
	}
	return "", false
}

func baseStructNameFor(isModern bool) string {
	if isModern {
		return "FProperty"
	}
	return "UProperty"
}

func (w *Walker) decodeProperty(fh fieldHandle, kind model.PropertyKind, depth int) (model.Property, error) {
	baseName := baseStructNameFor(fh.isModern)

	arrayDimOff, err := w.ctx.MemberOffset(baseName, "ArrayDim")
	if err != nil {
		return model.Property{}, err
	}
	elemSizeOff, err := w.ctx.MemberOffset(baseName, "ElementSize")
	if err != nil {
		return model.Property{}, err
	}
	flagsOff, err := w.ctx.MemberOffset(baseName, "PropertyFlags")
	if err != nil {
		return model.Property{}, err
	}
	internalOff, err := w.ctx.MemberOffset(baseName, "Offset_Internal")
	if err != nil {
		return model.Property{}, err
	}

	arrayDim, err := rptr.New[uint32](w.ctx, fh.addr+remote.Address(arrayDimOff)).Read()
	if err != nil {
		return model.Property{}, fmt.Errorf("read ArrayDim: %w", err)
	}
	elemSize, err := rptr.New[uint32](w.ctx, fh.addr+remote.Address(elemSizeOff)).Read()
	if err != nil {
		return model.Property{}, fmt.Errorf("read ElementSize: %w", err)
	}
	propFlags, err := rptr.New[uint64](w.ctx, fh.addr+remote.Address(flagsOff)).Read()
	if err != nil {
		return model.Property{}, fmt.Errorf("read PropertyFlags: %w", err)
	}
	offsetInternal, err := rptr.New[uint32](w.ctx, fh.addr+remote.Address(internalOff)).Read()
	if err != nil {
		return model.Property{}, fmt.Errorf("read Offset_Internal: %w", err)
	}

	payload, err := w.decodePropertyPayload(fh, kind, depth)
	if err != nil {
		return model.Property{}, fmt.Errorf("property %q: %w", fh.name, err)
	}

	return model.Property{
		Name:     fh.name,
		Offset:   offsetInternal,
		ArrayDim: arrayDim,
		Size:     elemSize * arrayDim,
		Flags:    propFlags,
		Type:     payload,
	}, nil
}

func (w *Walker) readPtrField(addr remote.Address, structName, field string) (remote.Address, error) {
	off, err := w.ctx.MemberOffset(structName, field)
	if err != nil {
		return 0, err
	}
	v, err := rptr.New[uint64](w.ctx, addr+remote.Address(off)).Read()
	if err != nil {
		return 0, fmt.Errorf("read %s.%s: %w", structName, field, err)
	}
	return remote.Address(v), nil
}

func (w *Walker) resolveOptionalPath(addr remote.Address) string {
	if addr == 0 {
		return ""
	}
	p, err := w.resolvePath(addr)
	if err != nil {
		return ""
	}
	return p
}

// decodeNestedProperty decodes the FProperty/UProperty ptr points at,
// used for a container property's inner property(ies). A nil ptr (no
// inner property recorded) yields a nil *model.Property rather than
// an error, which matters for variants where the inner slot is
// genuinely optional.
func (w *Walker) decodeNestedProperty(ptr remote.Address, isModern bool, depth int) (*model.Property, error) {
	if ptr == 0 {
		return nil, nil
	}
	if depth > w.cfg.maxRecursion() {
		return nil, fmt.Errorf("walker: nested property recursion limit exceeded at %s", ptr)
	}
	fh, err := w.resolveField(ptr, isModern)
	if err != nil {
		return nil, err
	}
	kind, ok := classifyPropertyKind(fh.castFlags)
	if !ok {
		return nil, fmt.Errorf("walker: unrecognized nested property cast flags %#x for %q", fh.castFlags, fh.name)
	}
	prop, err := w.decodeProperty(fh, kind, depth)
	if err != nil {
		return nil, err
	}
	return &prop, nil
}

func (w *Walker) decodePropertyPayload(fh fieldHandle, kind model.PropertyKind, depth int) (model.PropertyType, error) {
	switch kind {
	case model.KindClassProp, model.KindSoftClassProp:
		propClassPtr, err := w.readPtrField(fh.addr, "FObjectPropertyBase", "PropertyClass")
		if err != nil {
			return nil, err
		}
		metaClassPtr, err := w.readPtrField(fh.addr, "FClassProperty", "MetaClass")
		if err != nil {
			return nil, err
		}
		propClass := w.resolveOptionalPath(propClassPtr)
		metaClass := w.resolveOptionalPath(metaClassPtr)
		if kind == model.KindClassProp {
			return model.ClassProp{PropertyClass: propClass, MetaClass: metaClass}, nil
		}
		return model.SoftClassProp{PropertyClass: propClass, MetaClass: metaClass}, nil

	case model.KindObjectProp, model.KindSoftObjectProp, model.KindWeakObjectProp, model.KindLazyObjectProp:
		propClassPtr, err := w.readPtrField(fh.addr, "FObjectPropertyBase", "PropertyClass")
		if err != nil {
			return nil, err
		}
		propClass := w.resolveOptionalPath(propClassPtr)
		switch kind {
		case model.KindObjectProp:
			return model.ObjectProp{PropertyClass: propClass}, nil
		case model.KindSoftObjectProp:
			return model.SoftObjectProp{PropertyClass: propClass}, nil
		case model.KindWeakObjectProp:
			return model.WeakObjectProp{PropertyClass: propClass}, nil
		default:
			return model.LazyObjectProp{PropertyClass: propClass}, nil
		}

	case model.KindInterfaceProp:
		ptr, err := w.readPtrField(fh.addr, "FInterfaceProperty", "InterfaceClass")
		if err != nil {
			return nil, err
		}
		return model.InterfaceProp{InterfaceClass: w.resolveOptionalPath(ptr)}, nil

	case model.KindStructProp:
		ptr, err := w.readPtrField(fh.addr, "FStructProperty", "Struct")
		if err != nil {
			return nil, err
		}
		return model.StructProp{Struct: w.resolveOptionalPath(ptr)}, nil

	case model.KindArrayProp:
		ptr, err := w.readPtrField(fh.addr, "FArrayProperty", "Inner")
		if err != nil {
			return nil, err
		}
		inner, err := w.decodeNestedProperty(ptr, fh.isModern, depth+1)
		if err != nil {
			return nil, err
		}
		return model.ArrayProp{Inner: inner}, nil

	case model.KindSetProp:
		ptr, err := w.readPtrField(fh.addr, "FSetProperty", "ElementProp")
		if err != nil {
			return nil, err
		}
		key, err := w.decodeNestedProperty(ptr, fh.isModern, depth+1)
		if err != nil {
			return nil, err
		}
		return model.SetProp{Key: key}, nil

	case model.KindMapProp:
		keyPtr, err := w.readPtrField(fh.addr, "FMapProperty", "KeyProp")
		if err != nil {
			return nil, err
		}
		valPtr, err := w.readPtrField(fh.addr, "FMapProperty", "ValueProp")
		if err != nil {
			return nil, err
		}
		key, err := w.decodeNestedProperty(keyPtr, fh.isModern, depth+1)
		if err != nil {
			return nil, err
		}
		val, err := w.decodeNestedProperty(valPtr, fh.isModern, depth+1)
		if err != nil {
			return nil, err
		}
		return model.MapProp{Key: key, Value: val}, nil

	case model.KindEnumProp:
		underlyingPtr, err := w.readPtrField(fh.addr, "FEnumProperty", "UnderlyingProp")
		if err != nil {
			return nil, err
		}
		enumPtr, err := w.readPtrField(fh.addr, "FEnumProperty", "Enum")
		if err != nil {
			return nil, err
		}
		underlying, err := w.decodeNestedProperty(underlyingPtr, fh.isModern, depth+1)
		if err != nil {
			return nil, err
		}
		return model.EnumProp{Underlying: underlying, Enum: w.resolveOptionalPath(enumPtr)}, nil

	case model.KindByteProp:
		ptr, err := w.readPtrField(fh.addr, "FByteProperty", "Enum")
		if err != nil {
			return nil, err
		}
		return model.ByteProp{Enum: w.resolveOptionalPath(ptr)}, nil

	case model.KindBoolProp:
		return w.decodeBoolProperty(fh.addr)

	case model.KindStrProp:
		return model.StrProp{}, nil
	case model.KindNameProp:
		return model.NameProp{}, nil
	case model.KindTextProp:
		return model.TextProp{}, nil

	case model.KindMulticastInlineDelegateProp, model.KindMulticastSparseDelegateProp,
		model.KindMulticastDelegateProp, model.KindDelegateProp:
		ptr, err := w.readPtrField(fh.addr, "FDelegateProperty", "SignatureFunction")
		if err != nil {
			return nil, err
		}
		sig := w.resolveOptionalPath(ptr)
		switch kind {
		case model.KindMulticastInlineDelegateProp:
			return model.MulticastInlineDelegateProp{SignatureFunction: sig}, nil
		case model.KindMulticastSparseDelegateProp:
			return model.MulticastSparseDelegateProp{SignatureFunction: sig}, nil
		case model.KindMulticastDelegateProp:
			return model.MulticastDelegateProp{SignatureFunction: sig}, nil
		default:
			return model.DelegateProp{SignatureFunction: sig}, nil
		}

	case model.KindFloatProp:
		return model.FloatProp{}, nil
	case model.KindDoubleProp:
		return model.DoubleProp{}, nil
	case model.KindInt8Prop:
		return model.Int8Prop{}, nil
	case model.KindInt16Prop:
		return model.Int16Prop{}, nil
	case model.KindInt32Prop:
		return model.Int32Prop{}, nil
	case model.KindInt64Prop:
		return model.Int64Prop{}, nil
	case model.KindUInt16Prop:
		return model.UInt16Prop{}, nil
	case model.KindUInt32Prop:
		return model.UInt32Prop{}, nil
	case model.KindUInt64Prop:
		return model.UInt64Prop{}, nil
	case model.KindFieldPathProp:
		return model.FieldPathProp{}, nil

	case model.KindOptionalProp:
		ptr, err := w.readPtrField(fh.addr, "FOptionalProperty", "ValueProperty")
		if err != nil {
			return nil, err
		}
		inner, err := w.decodeNestedProperty(ptr, fh.isModern, depth+1)
		if err != nil {
			return nil, err
		}
		return model.OptionalProp{Inner: inner}, nil

	default:
		return nil, fmt.Errorf("walker: no decoder registered for property kind %q", kind)
	}
}

func (w *Walker) decodeBoolProperty(addr remote.Address) (model.PropertyType, error) {
	fieldSizeOff, err := w.ctx.MemberOffset("FBoolProperty", "FieldSize")
	if err != nil {
		return nil, err
	}
	byteOffsetOff, err := w.ctx.MemberOffset("FBoolProperty", "ByteOffset")
	if err != nil {
		return nil, err
	}
	byteMaskOff, err := w.ctx.MemberOffset("FBoolProperty", "ByteMask")
	if err != nil {
		return nil, err
	}
	fieldMaskOff, err := w.ctx.MemberOffset("FBoolProperty", "FieldMask")
	if err != nil {
		return nil, err
	}

	fieldSize, err := rptr.New[uint8](w.ctx, addr+remote.Address(fieldSizeOff)).Read()
	if err != nil {
		return nil, err
	}
	byteOffset, err := rptr.New[uint8](w.ctx, addr+remote.Address(byteOffsetOff)).Read()
	if err != nil {
		return nil, err
	}
	byteMask, err := rptr.New[uint8](w.ctx, addr+remote.Address(byteMaskOff)).Read()
	if err != nil {
		return nil, err
	}
	fieldMask, err := rptr.New[uint8](w.ctx, addr+remote.Address(fieldMaskOff)).Read()
	if err != nil {
		return nil, err
	}

	return model.BoolProp{FieldSize: fieldSize, ByteOffset: byteOffset, ByteMask: byteMask, FieldMask: fieldMask}, nil
}
