// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package walker

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/hazard-re/uedump/fname"
	"github.com/hazard-re/uedump/model"
	"github.com/hazard-re/uedump/remote"
	"github.com/hazard-re/uedump/rptr"
)

// decodeEnum decodes a UEnum's Names array. Two of the three
// historical element layouts are handled directly, selected by the
// catalogue-resolved size of UEnumNameTuple.Value for the target
// engine version: one byte (pre-4.15, an up-to-255 enumerator value)
// or eight bytes (4.15+, a full int64). The oldest, index-only layout
// (pre-4.9, where Names held plain FNames and the ordinal was
// implicit) predates every engine version this catalogue ships
// built-in entries for; a catalogue extended to cover it would decode
// through this same function once UEnumNameTuple.Value resolves to
// size 0, which decodeEnum treats as "value defaults to the entry's
// ordinal" below.
func (w *Walker) decodeEnum(addr remote.Address, common model.ObjectCommon) (model.ObjectType, error) {
	cppTypeOff, err := w.ctx.MemberOffset("UEnum", "CppType")
	if err != nil {
		return model.ObjectType{}, err
	}
	namesOff, err := w.ctx.MemberOffset("UEnum", "Names")
	if err != nil {
		return model.ObjectType{}, err
	}

	cppType, err := w.readFString(addr + remote.Address(cppTypeOff))
	if err != nil {
		return model.ObjectType{}, fmt.Errorf("read CppType: %w", err)
	}

	entries, err := w.decodeEnumNames(addr + remote.Address(namesOff))
	if err != nil {
		return model.ObjectType{}, err
	}

	return model.ObjectType{
		Kind:    model.KindEnum,
		Object:  common,
		CppType: cppType,
		Names:   entries,
	}, nil
}

func (w *Walker) decodeEnumNames(arrayAddr remote.Address) ([]model.EnumEntry, error) {
	dataOff, err := w.ctx.MemberOffset("TArray", "Data")
	if err != nil {
		return nil, err
	}
	numOff, err := w.ctx.MemberOffset("TArray", "ArrayNum")
	if err != nil {
		return nil, err
	}
	stride, err := w.ctx.Catalogue.StructSize(w.cfg.EngineVersion, w.cfg.CasePreserving, "UEnumNameTuple")
	if err != nil {
		return nil, err
	}
	valueSize, err := w.ctx.Catalogue.MemberSize(w.cfg.EngineVersion, w.cfg.CasePreserving, "UEnumNameTuple", "Value")
	if err != nil {
		return nil, err
	}
	nameOff, err := w.ctx.MemberOffset("UEnumNameTuple", "Name")
	if err != nil {
		return nil, err
	}
	valueOff, err := w.ctx.MemberOffset("UEnumNameTuple", "Value")
	if err != nil {
		return nil, err
	}

	data, err := rptr.New[uint64](w.ctx, arrayAddr+remote.Address(dataOff)).Read()
	if err != nil {
		return nil, fmt.Errorf("read Names.Data: %w", err)
	}
	num, err := rptr.New[uint32](w.ctx, arrayAddr+remote.Address(numOff)).Read()
	if err != nil {
		return nil, fmt.Errorf("read Names.ArrayNum: %w", err)
	}

	entries := make([]model.EnumEntry, 0, num)
	for i := uint32(0); i < num; i++ {
		tupleAddr := remote.Address(data) + remote.Address(i)*remote.Address(stride)

		nameRaw, err := rptr.New[[2]uint32](w.ctx, tupleAddr+remote.Address(nameOff)).Read()
		if err != nil {
			return nil, fmt.Errorf("read enum entry %d name: %w", i, err)
		}
		name, err := w.cfg.Names.Decode(fname.Index{ComparisonIndex: nameRaw[0], Number: nameRaw[1]})
		if err != nil {
			return nil, fmt.Errorf("decode enum entry %d name: %w", i, err)
		}

		var value int64
		switch valueSize {
		case 0:
			value = int64(i)
		case 1:
			v, err := rptr.New[uint8](w.ctx, tupleAddr+remote.Address(valueOff)).Read()
			if err != nil {
				return nil, fmt.Errorf("read enum entry %d value: %w", i, err)
			}
			value = int64(v)
		default:
			v, err := rptr.New[int64](w.ctx, tupleAddr+remote.Address(valueOff)).Read()
			if err != nil {
				return nil, fmt.Errorf("read enum entry %d value: %w", i, err)
			}
			value = v
		}

		entries = append(entries, model.EnumEntry{Name: name, Value: value})
	}
	return entries, nil
}

// readFString decodes an FString (a TArray<TCHAR>, TCHAR being UTF-16)
// at addr: Data/ArrayNum/ArrayMax exactly matching the catalogue's
// TArray layout. The character count comes from ArrayNum, but the
// decode still stops at the first wide NUL rather than trusting
// ArrayNum's length precisely, matching how the Rust original's
// FString::read trims its result (jmap_dumper's
// containers.rs:FString::read takes the NUL position over the raw
// array length). A null Data pointer (an empty FString) decodes to "".
func (w *Walker) readFString(addr remote.Address) (string, error) {
	dataOff, err := w.ctx.MemberOffset("TArray", "Data")
	if err != nil {
		return "", err
	}
	numOff, err := w.ctx.MemberOffset("TArray", "ArrayNum")
	if err != nil {
		return "", err
	}

	data, err := rptr.New[uint64](w.ctx, addr+remote.Address(dataOff)).Read()
	if err != nil {
		return "", fmt.Errorf("read FString.Data: %w", err)
	}
	if data == 0 {
		return "", nil
	}
	num, err := rptr.New[uint32](w.ctx, addr+remote.Address(numOff)).Read()
	if err != nil {
		return "", fmt.Errorf("read FString.ArrayNum: %w", err)
	}
	if num == 0 {
		return "", nil
	}

	buf := make([]byte, int(num)*2)
	if err := w.cfg.Mem.ReadBuf(remote.Address(data), buf); err != nil {
		return "", fmt.Errorf("read FString character data: %w", err)
	}

	n := 0
	for n+1 < len(buf) {
		if buf[n] == 0 && buf[n+1] == 0 {
			break
		}
		n += 2
	}

	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(buf[:n])
	if err != nil {
		return "", fmt.Errorf("decode FString utf16: %w", err)
	}
	return string(out), nil
}
