// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package walker

import (
	"fmt"

	"github.com/hazard-re/uedump/model"
	"github.com/hazard-re/uedump/remote"
	"github.com/hazard-re/uedump/rptr"
)

// decodeObject classifies addr and dispatches to the matching decoder,
// per spec.md §4.5.2's priority order (UClass > UFunction >
// UScriptStruct > UEnum > UPackage > generic UObject).
func (w *Walker) decodeObject(addr remote.Address) (model.ObjectType, error) {
	classification, _, classPtr, err := w.classifyObject(addr)
	if err != nil {
		return model.ObjectType{}, err
	}

	common, err := w.decodeObjectCommon(addr, classPtr)
	if err != nil {
		return model.ObjectType{}, err
	}

	switch classification {
	case ClassifyClass:
		return w.decodeClass(addr, common)
	case ClassifyFunction:
		return w.decodeFunction(addr, common)
	case ClassifyScriptStruct:
		return w.decodeScriptStruct(addr, common)
	case ClassifyEnum:
		return w.decodeEnum(addr, common)
	case ClassifyPackage:
		return model.ObjectType{Kind: model.KindPackage, Object: common}, nil
	default:
		return model.ObjectType{Kind: model.KindObject, Object: common}, nil
	}
}

// decodeObjectCommon decodes the fields every ObjectType variant
// shares (spec.md §3's ObjectCommon).
func (w *Walker) decodeObjectCommon(addr, classPtr remote.Address) (model.ObjectCommon, error) {
	vtableOff, err := w.ctx.MemberOffset("UObjectBase", "VTable")
	if err != nil {
		return model.ObjectCommon{}, err
	}
	flagsOff, err := w.ctx.MemberOffset("UObjectBase", "ObjectFlags")
	if err != nil {
		return model.ObjectCommon{}, err
	}

	vtable, err := rptr.New[uint64](w.ctx, addr+remote.Address(vtableOff)).Read()
	if err != nil {
		return model.ObjectCommon{}, fmt.Errorf("read VTable: %w", err)
	}
	flags, err := rptr.New[uint32](w.ctx, addr+remote.Address(flagsOff)).Read()
	if err != nil {
		return model.ObjectCommon{}, fmt.Errorf("read ObjectFlags: %w", err)
	}

	var outerPath, classPath string
	if outer, err := w.objectOuter(addr); err == nil && outer != 0 {
		if p, err := w.resolvePath(outer); err == nil {
			outerPath = p
		}
	}
	if classPtr != 0 {
		if p, err := w.resolvePath(classPtr); err == nil {
			classPath = p
		}
	}

	return model.ObjectCommon{
		VTable:      vtable,
		ObjectFlags: flags,
		Outer:       outerPath,
		Class:       classPath,
	}, nil
}

// decodeStructCommon decodes the fields shared by ScriptStruct, Class
// and Function (spec.md §3's StructCommon): SuperStruct, the property
// chain, PropertiesSize and MinAlignment.
func (w *Walker) decodeStructCommon(addr remote.Address) (model.StructCommon, error) {
	superOff, err := w.ctx.MemberOffset("UStruct", "SuperStruct")
	if err != nil {
		return model.StructCommon{}, err
	}
	sizeOff, err := w.ctx.MemberOffset("UStruct", "PropertiesSize")
	if err != nil {
		return model.StructCommon{}, err
	}
	alignOff, err := w.ctx.MemberOffset("UStruct", "MinAlignment")
	if err != nil {
		return model.StructCommon{}, err
	}

	var superPath string
	superPtr, err := rptr.New[uint64](w.ctx, addr+remote.Address(superOff)).Read()
	if err != nil {
		return model.StructCommon{}, fmt.Errorf("read SuperStruct: %w", err)
	}
	if superPtr != 0 {
		if p, err := w.resolvePath(remote.Address(superPtr)); err == nil {
			superPath = p
		}
	}

	propsSize, err := rptr.New[uint32](w.ctx, addr+remote.Address(sizeOff)).Read()
	if err != nil {
		return model.StructCommon{}, fmt.Errorf("read PropertiesSize: %w", err)
	}
	minAlign, err := rptr.New[uint32](w.ctx, addr+remote.Address(alignOff)).Read()
	if err != nil {
		return model.StructCommon{}, fmt.Errorf("read MinAlignment: %w", err)
	}

	properties, err := w.decodeProperties(addr)
	if err != nil {
		return model.StructCommon{}, err
	}

	if w.cfg.RecurseParents {
		seen := map[uint64]bool{uint64(addr): true}
		for super := superPtr; super != 0 && !seen[super]; {
			seen[super] = true
			parentProps, err := w.decodeProperties(remote.Address(super))
			if err != nil {
				break
			}
			properties = append(append([]model.Property{}, parentProps...), properties...)
			super, err = rptr.New[uint64](w.ctx, remote.Address(super)+remote.Address(superOff)).Read()
			if err != nil {
				break
			}
		}
	}

	return model.StructCommon{
		SuperStruct:    superPath,
		Properties:     properties,
		PropertiesSize: propsSize,
		MinAlignment:   minAlign,
	}, nil
}

func (w *Walker) decodeClass(addr remote.Address, common model.ObjectCommon) (model.ObjectType, error) {
	structCommon, err := w.decodeStructCommon(addr)
	if err != nil {
		return model.ObjectType{}, err
	}

	flagsOff, err := w.ctx.MemberOffset("UClass", "ClassFlags")
	if err != nil {
		return model.ObjectType{}, err
	}
	castFlagsOff, err := w.ctx.MemberOffset("UClass", "ClassCastFlags")
	if err != nil {
		return model.ObjectType{}, err
	}
	cdoOff, err := w.ctx.MemberOffset("UClass", "ClassDefaultObject")
	if err != nil {
		return model.ObjectType{}, err
	}

	classFlags, err := rptr.New[uint32](w.ctx, addr+remote.Address(flagsOff)).Read()
	if err != nil {
		return model.ObjectType{}, fmt.Errorf("read ClassFlags: %w", err)
	}
	classCastFlags, err := rptr.New[uint64](w.ctx, addr+remote.Address(castFlagsOff)).Read()
	if err != nil {
		return model.ObjectType{}, fmt.Errorf("read ClassCastFlags: %w", err)
	}
	cdoPtr, err := rptr.New[uint64](w.ctx, addr+remote.Address(cdoOff)).Read()
	if err != nil {
		return model.ObjectType{}, fmt.Errorf("read ClassDefaultObject: %w", err)
	}

	var cdoPath string
	if cdoPtr != 0 {
		if p, err := w.resolvePath(remote.Address(cdoPtr)); err == nil {
			cdoPath = p
		}
	}

	var observedVTable uint64
	if cdoPtr != 0 {
		if vtOff, err := w.ctx.MemberOffset("UObjectBase", "VTable"); err == nil {
			if v, err := rptr.New[uint64](w.ctx, remote.Address(cdoPtr)+remote.Address(vtOff)).Read(); err == nil {
				observedVTable = v
			}
		}
	}

	// The CDO carries the class's default property values inline,
	// laid out exactly per structCommon.Properties' offsets. Read the
	// whole PropertiesSize span now, while the CDO address is already
	// at hand, rather than asking a caller to re-walk ClassDefaultObject.
	if cdoPtr != 0 && structCommon.PropertiesSize > 0 {
		buf := make([]byte, structCommon.PropertiesSize)
		if err := w.cfg.Mem.ReadBuf(remote.Address(cdoPtr), buf); err == nil {
			common.PropertyValues = buf
		}
	}

	return model.ObjectType{
		Kind:                   model.KindClass,
		Object:                 common,
		Struct:                 &structCommon,
		ClassFlags:             classFlags,
		ClassCastFlags:         classCastFlags,
		ClassDefaultObject:     cdoPath,
		ObservedInstanceVTable: observedVTable,
	}, nil
}

func (w *Walker) decodeFunction(addr remote.Address, common model.ObjectCommon) (model.ObjectType, error) {
	structCommon, err := w.decodeStructCommon(addr)
	if err != nil {
		return model.ObjectType{}, err
	}
	flagsOff, err := w.ctx.MemberOffset("UFunction", "FunctionFlags")
	if err != nil {
		return model.ObjectType{}, err
	}
	funcOff, err := w.ctx.MemberOffset("UFunction", "Func")
	if err != nil {
		return model.ObjectType{}, err
	}
	flags, err := rptr.New[uint32](w.ctx, addr+remote.Address(flagsOff)).Read()
	if err != nil {
		return model.ObjectType{}, fmt.Errorf("read FunctionFlags: %w", err)
	}
	fn, err := rptr.New[uint64](w.ctx, addr+remote.Address(funcOff)).Read()
	if err != nil {
		return model.ObjectType{}, fmt.Errorf("read Func: %w", err)
	}
	return model.ObjectType{
		Kind:          model.KindFunction,
		Object:        common,
		Struct:        &structCommon,
		FunctionFlags: flags,
		Func:          fn,
	}, nil
}

func (w *Walker) decodeScriptStruct(addr remote.Address, common model.ObjectCommon) (model.ObjectType, error) {
	structCommon, err := w.decodeStructCommon(addr)
	if err != nil {
		return model.ObjectType{}, err
	}
	return model.ObjectType{Kind: model.KindScriptStruct, Object: common, Struct: &structCommon}, nil
}
