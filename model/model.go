// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package model is the canonical, language-neutral reflection output
// described in spec.md §3: ReflectionData, the ObjectType tagged
// variant, and the Property tagged variant covering the 32 cast-flag
// kinds dispatched in spec.md §4.5.5. Object references are stored as
// fully-qualified paths (strings), never raw addresses, so the
// document is relocation-independent and trivially comparable across
// runs — the teacher's File struct (pe.go) plays the same "one struct
// is the whole dump" role for a PE image.
package model

import "github.com/google/uuid"

// ReflectionData is the top-level dump produced by the walker.
type ReflectionData struct {
	ImageBaseAddress uint64      `json:"image_base_address"`
	Objects          *ObjectMap  `json:"objects"`
	VTables          *VTableMap  `json:"vtables"`
}

// NewReflectionData returns an empty dump ready to be populated.
func NewReflectionData(imageBase uint64) *ReflectionData {
	return &ReflectionData{
		ImageBaseAddress: imageBase,
		Objects:          NewObjectMap(),
		VTables:          NewVTableMap(),
	}
}

// Manifest wraps a ReflectionData with run metadata that is not part
// of the canonical shape spec.md defines (a run identifier for log
// correlation across a dump's lifetime).
type Manifest struct {
	RunID      uuid.UUID       `json:"run_id"`
	Reflection *ReflectionData `json:"reflection"`
}

// NewManifest stamps data with a fresh run id.
func NewManifest(data *ReflectionData) *Manifest {
	return &Manifest{RunID: uuid.New(), Reflection: data}
}

// ObjectKind discriminates the ObjectType tagged variant.
type ObjectKind string

// The six ObjectType variants from spec.md §3.
const (
	KindObject       ObjectKind = "Object"
	KindPackage      ObjectKind = "Package"
	KindEnum         ObjectKind = "Enum"
	KindScriptStruct ObjectKind = "ScriptStruct"
	KindClass        ObjectKind = "Class"
	KindFunction     ObjectKind = "Function"
)

// ObjectCommon is the record every ObjectType variant carries.
type ObjectCommon struct {
	VTable         uint64   `json:"vtable,omitempty"`
	ObjectFlags    uint32   `json:"object_flags"`
	Outer          string   `json:"outer,omitempty"`
	Class          string   `json:"class,omitempty"`
	Children       []string `json:"children,omitempty"`
	PropertyValues []byte   `json:"property_values,omitempty"`
}

// StructCommon is added by the Struct-flavoured variants (ScriptStruct,
// Class, Function).
type StructCommon struct {
	SuperStruct    string     `json:"super_struct,omitempty"`
	Properties     []Property `json:"properties,omitempty"`
	PropertiesSize uint32     `json:"properties_size"`
	MinAlignment   uint32     `json:"min_alignment"`
}

// ObjectType is the tagged union over the six object kinds.
type ObjectType struct {
	Kind ObjectKind `json:"kind"`

	Object ObjectCommon `json:"object"`

	// Struct-flavoured fields (ScriptStruct, Class, Function).
	Struct *StructCommon `json:"struct,omitempty"`

	// Class-only.
	ClassFlags             uint32 `json:"class_flags,omitempty"`
	ClassCastFlags         uint64 `json:"class_cast_flags,omitempty"`
	ClassDefaultObject     string `json:"class_default_object,omitempty"`
	ObservedInstanceVTable uint64 `json:"observed_instance_vtable,omitempty"`

	// Function-only.
	FunctionFlags uint32 `json:"function_flags,omitempty"`
	Func          uint64 `json:"func,omitempty"`

	// Enum-only.
	CppType  string      `json:"cpp_type,omitempty"`
	EnumFlags uint32     `json:"enum_flags,omitempty"`
	CppForm  EnumCppForm `json:"cpp_form,omitempty"`
	Names    []EnumEntry `json:"names,omitempty"`
}

// EnumCppForm mirrors the engine's UEnum::ECppForm discriminant.
type EnumCppForm string

// The three forms the engine historically supports.
const (
	CppFormRegular EnumCppForm = "Regular"
	CppFormNamespace EnumCppForm = "Namespaced"
	CppFormEnumClass EnumCppForm = "EnumClass"
)

// EnumEntry is one (name, value) pair of an enum definition.
type EnumEntry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}
