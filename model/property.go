// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"fmt"
)

// PropertyKind discriminates the PropertyType tagged variant. The
// names match the "Emitted variant" column of spec.md §4.5.5's
// dispatch table exactly.
type PropertyKind string

// All PropertyKind values from spec.md §4.5.5, in the dispatch order
// that table specifies. Callers that need to replicate "first match
// wins" classification should use DispatchOrder.
const (
	KindClassProp                    PropertyKind = "Class"
	KindObjectProp                   PropertyKind = "Object"
	KindSoftClassProp                PropertyKind = "SoftClass"
	KindSoftObjectProp                PropertyKind = "SoftObject"
	KindWeakObjectProp                PropertyKind = "WeakObject"
	KindLazyObjectProp                PropertyKind = "LazyObject"
	KindInterfaceProp                 PropertyKind = "Interface"
	KindStructProp                    PropertyKind = "Struct"
	KindArrayProp                     PropertyKind = "Array"
	KindSetProp                       PropertyKind = "Set"
	KindMapProp                       PropertyKind = "Map"
	KindEnumProp                      PropertyKind = "Enum"
	KindByteProp                      PropertyKind = "Byte"
	KindBoolProp                      PropertyKind = "Bool"
	KindStrProp                       PropertyKind = "Str"
	KindNameProp                      PropertyKind = "Name"
	KindTextProp                      PropertyKind = "Text"
	KindMulticastInlineDelegateProp   PropertyKind = "MulticastInlineDelegate"
	KindMulticastSparseDelegateProp   PropertyKind = "MulticastSparseDelegate"
	KindMulticastDelegateProp         PropertyKind = "MulticastDelegate"
	KindDelegateProp                  PropertyKind = "Delegate"
	KindFloatProp                     PropertyKind = "Float"
	KindDoubleProp                    PropertyKind = "Double"
	KindInt8Prop                      PropertyKind = "Int8"
	KindInt16Prop                     PropertyKind = "Int16"
	KindInt32Prop                     PropertyKind = "Int"
	KindInt64Prop                     PropertyKind = "Int64"
	KindUInt16Prop                    PropertyKind = "UInt16"
	KindUInt32Prop                    PropertyKind = "UInt32"
	KindUInt64Prop                    PropertyKind = "UInt64"
	KindFieldPathProp                 PropertyKind = "FieldPath"
	KindOptionalProp                  PropertyKind = "Optional"
)

// DispatchOrder is the authoritative cast-flag test order from spec.md
// §4.5.5 / invariant 4: "specific variants match before base variants".
var DispatchOrder = []PropertyKind{
	KindClassProp, KindObjectProp, KindSoftClassProp, KindSoftObjectProp,
	KindWeakObjectProp, KindLazyObjectProp, KindInterfaceProp,
	KindStructProp, KindArrayProp, KindSetProp, KindMapProp,
	KindEnumProp, KindByteProp, KindBoolProp, KindStrProp, KindNameProp,
	KindTextProp, KindMulticastInlineDelegateProp, KindMulticastSparseDelegateProp,
	KindMulticastDelegateProp, KindDelegateProp, KindFloatProp, KindDoubleProp,
	KindInt8Prop, KindInt16Prop, KindInt32Prop, KindInt64Prop,
	KindUInt16Prop, KindUInt32Prop, KindUInt64Prop, KindFieldPathProp,
	KindOptionalProp,
}

// PropertyType is the payload carried by one of the 32 property
// kinds. Concrete types implement it by value.
type PropertyType interface {
	Kind() PropertyKind
}

// Property is one decoded field definition: the fields common to every
// cast-flag kind plus its dispatched PropertyType payload.
type Property struct {
	Name     string       `json:"name"`
	Offset   uint32       `json:"offset"`
	ArrayDim uint32       `json:"array_dim"`
	Size     uint32       `json:"size"`
	Flags    uint64       `json:"flags"`
	Type     PropertyType `json:"type"`
}

// MarshalJSON flattens Type's kind tag and payload fields under "type".
func (p Property) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name     string          `json:"name"`
		Offset   uint32          `json:"offset"`
		ArrayDim uint32          `json:"array_dim"`
		Size     uint32          `json:"size"`
		Flags    uint64          `json:"flags"`
		Type     json.RawMessage `json:"type"`
	}
	a := alias{Name: p.Name, Offset: p.Offset, ArrayDim: p.ArrayDim, Size: p.Size, Flags: p.Flags}
	payload, err := marshalPropertyType(p.Type)
	if err != nil {
		return nil, err
	}
	a.Type = payload
	return json.Marshal(a)
}

func marshalPropertyType(t PropertyType) (json.RawMessage, error) {
	if t == nil {
		return nil, fmt.Errorf("model: nil PropertyType")
	}
	fields, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(t.Kind())
	if err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{"kind": kind}
	for k, v := range m {
		out[k] = v
	}
	return json.Marshal(out)
}

// --- Object-reference family ---

// ClassProp ("FClassProperty"): a UClass reference carrying both the
// property's static class and its meta class.
type ClassProp struct {
	PropertyClass string `json:"property_class"`
	MetaClass     string `json:"meta_class"`
}

func (ClassProp) Kind() PropertyKind { return KindClassProp }

// ObjectProp ("FObjectProperty"). PropertyClass is empty when null is
// permitted and the target had none.
type ObjectProp struct {
	PropertyClass string `json:"property_class,omitempty"`
}

func (ObjectProp) Kind() PropertyKind { return KindObjectProp }

// SoftClassProp ("FSoftClassProperty").
type SoftClassProp struct {
	PropertyClass string `json:"property_class"`
	MetaClass     string `json:"meta_class"`
}

func (SoftClassProp) Kind() PropertyKind { return KindSoftClassProp }

// SoftObjectProp ("FSoftObjectProperty").
type SoftObjectProp struct {
	PropertyClass string `json:"property_class"`
}

func (SoftObjectProp) Kind() PropertyKind { return KindSoftObjectProp }

// WeakObjectProp ("FWeakObjectProperty").
type WeakObjectProp struct {
	PropertyClass string `json:"property_class"`
}

func (WeakObjectProp) Kind() PropertyKind { return KindWeakObjectProp }

// LazyObjectProp ("FLazyObjectProperty").
type LazyObjectProp struct {
	PropertyClass string `json:"property_class"`
}

func (LazyObjectProp) Kind() PropertyKind { return KindLazyObjectProp }

// InterfaceProp ("FInterfaceProperty").
type InterfaceProp struct {
	InterfaceClass string `json:"interface_class"`
}

func (InterfaceProp) Kind() PropertyKind { return KindInterfaceProp }

// --- Struct / containers ---

// StructProp ("FStructProperty"): the path of the referenced
// ScriptStruct.
type StructProp struct {
	Struct string `json:"struct"`
}

func (StructProp) Kind() PropertyKind { return KindStructProp }

// ArrayProp ("FArrayProperty"): TArray<Inner>.
type ArrayProp struct {
	Inner *Property `json:"inner"`
}

func (ArrayProp) Kind() PropertyKind { return KindArrayProp }

// SetProp ("FSetProperty"): TSet<Key>.
type SetProp struct {
	Key *Property `json:"key_prop"`
}

func (SetProp) Kind() PropertyKind { return KindSetProp }

// MapProp ("FMapProperty"): TMap<Key, Value>.
type MapProp struct {
	Key   *Property `json:"key_prop"`
	Value *Property `json:"value_prop"`
}

func (MapProp) Kind() PropertyKind { return KindMapProp }

// EnumProp ("FEnumProperty"): the underlying numeric property plus an
// optional enum definition path.
type EnumProp struct {
	Underlying *Property `json:"underlying"`
	Enum       string    `json:"enum,omitempty"`
}

func (EnumProp) Kind() PropertyKind { return KindEnumProp }

// ByteProp ("FByteProperty"): a plain byte, optionally upgraded to an
// enum when Enum is non-empty (spec.md §3, Property data model).
type ByteProp struct {
	Enum string `json:"enum,omitempty"`
}

func (ByteProp) Kind() PropertyKind { return KindByteProp }

// BoolProp ("FBoolProperty"): bitfield placement within the owning
// container.
type BoolProp struct {
	FieldSize  uint8 `json:"field_size"`
	ByteOffset uint8 `json:"byte_offset"`
	ByteMask   uint8 `json:"byte_mask"`
	FieldMask  uint8 `json:"field_mask"`
}

func (BoolProp) Kind() PropertyKind { return KindBoolProp }

// --- Scalars with no extra payload ---

// StrProp ("FStrProperty").
type StrProp struct{}

func (StrProp) Kind() PropertyKind { return KindStrProp }

// NameProp ("FNameProperty").
type NameProp struct{}

func (NameProp) Kind() PropertyKind { return KindNameProp }

// TextProp ("FTextProperty").
type TextProp struct{}

func (TextProp) Kind() PropertyKind { return KindTextProp }

// FloatProp ("FFloatProperty").
type FloatProp struct{}

func (FloatProp) Kind() PropertyKind { return KindFloatProp }

// DoubleProp ("FDoubleProperty").
type DoubleProp struct{}

func (DoubleProp) Kind() PropertyKind { return KindDoubleProp }

// Int8Prop ("FInt8Property").
type Int8Prop struct{}

func (Int8Prop) Kind() PropertyKind { return KindInt8Prop }

// Int16Prop ("FInt16Property").
type Int16Prop struct{}

func (Int16Prop) Kind() PropertyKind { return KindInt16Prop }

// Int32Prop ("FIntProperty").
type Int32Prop struct{}

func (Int32Prop) Kind() PropertyKind { return KindInt32Prop }

// Int64Prop ("FInt64Property").
type Int64Prop struct{}

func (Int64Prop) Kind() PropertyKind { return KindInt64Prop }

// UInt16Prop ("FUInt16Property").
type UInt16Prop struct{}

func (UInt16Prop) Kind() PropertyKind { return KindUInt16Prop }

// UInt32Prop ("FUInt32Property").
type UInt32Prop struct{}

func (UInt32Prop) Kind() PropertyKind { return KindUInt32Prop }

// UInt64Prop ("FUInt64Property").
type UInt64Prop struct{}

func (UInt64Prop) Kind() PropertyKind { return KindUInt64Prop }

// FieldPathProp ("FFieldPathProperty"). Structural only, per spec.md
// §9 Open Questions.
type FieldPathProp struct{}

func (FieldPathProp) Kind() PropertyKind { return KindFieldPathProp }

// --- Delegates ---

// MulticastInlineDelegateProp ("FMulticastInlineDelegateProperty").
type MulticastInlineDelegateProp struct {
	SignatureFunction string `json:"signature_function,omitempty"`
}

func (MulticastInlineDelegateProp) Kind() PropertyKind { return KindMulticastInlineDelegateProp }

// MulticastSparseDelegateProp ("FMulticastSparseDelegateProperty").
type MulticastSparseDelegateProp struct {
	SignatureFunction string `json:"signature_function,omitempty"`
}

func (MulticastSparseDelegateProp) Kind() PropertyKind { return KindMulticastSparseDelegateProp }

// MulticastDelegateProp ("FMulticastDelegateProperty") — the
// pre-split base kind, matched only when neither Inline nor Sparse
// applies.
type MulticastDelegateProp struct {
	SignatureFunction string `json:"signature_function,omitempty"`
}

func (MulticastDelegateProp) Kind() PropertyKind { return KindMulticastDelegateProp }

// DelegateProp ("FDelegateProperty"): a single (non-multicast) delegate.
type DelegateProp struct {
	SignatureFunction string `json:"signature_function,omitempty"`
}

func (DelegateProp) Kind() PropertyKind { return KindDelegateProp }

// --- Optional ---

// OptionalProp ("FOptionalProperty"): TOptional<Inner>.
type OptionalProp struct {
	Inner *Property `json:"inner"`
}

func (OptionalProp) Kind() PropertyKind { return KindOptionalProp }
