// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package walker

import (
	"encoding/binary"
	"testing"

	"github.com/hazard-re/uedump/fname"
	"github.com/hazard-re/uedump/layout"
	"github.com/hazard-re/uedump/model"
	"github.com/hazard-re/uedump/remote"
)

const (
	enumAddrBlocksArray = 0x6000
	enumAddrBlockBase   = 0x6100

	enumAddrEnum     = 0x3000
	enumAddrCppType  = 0x3100 // wide "EEnum" character data
	enumAddrTuples   = 0x3200 // two UEnumNameTuple entries, 0x10 apart
)

// buildEnumFixture lays out a standalone UEnum object ("EEnum") with a
// real FString CppType ("EEnum") and two entries ("First"=0,
// "Second"=1), using dsl425 offsets (UEnum.CppType@0x28,
// UEnum.Names@0x38, UEnumNameTuple{Name@0x0,Value@0x8} with an 8-byte
// Value, matching engine 4.27).
func buildEnumFixture(t *testing.T) *Walker {
	t.Helper()
	buf := make([]byte, 0x8000)

	binary.LittleEndian.PutUint64(buf[enumAddrBlocksArray:], enumAddrBlockBase)
	names := []string{"First", "Second"}
	idx := make(map[string]uint32, len(names))
	off := 0
	for _, n := range names {
		idx[n] = uint32(off / 2)
		off = writeName(buf, off, n)
	}
	copy(buf[enumAddrBlockBase:enumAddrBlockBase+off], buf[0:off])
	for i := 0; i < off; i++ {
		buf[i] = 0
	}

	mem := remote.NewFlatMem(0, buf)
	pool := fname.NewModernPool(mem, remote.Address(enumAddrBlocksArray))

	putName := func(addr int, s string) {
		i := idx[s]
		binary.LittleEndian.PutUint32(buf[addr:], i)
		binary.LittleEndian.PutUint32(buf[addr+4:], 0)
	}

	// CppType: FString (TArray<u16>) pointing at a wide, NUL-terminated
	// "EEnum", with ArrayNum covering it including the terminator.
	cppType := "EEnum"
	for i, c := range cppType {
		binary.LittleEndian.PutUint16(buf[enumAddrCppType+i*2:], uint16(c))
	}
	binary.LittleEndian.PutUint64(buf[enumAddrEnum+0x28:], enumAddrCppType) // Data
	binary.LittleEndian.PutUint32(buf[enumAddrEnum+0x30:], uint32(len(cppType)+1))

	// Names: TArray<UEnumNameTuple> with two entries.
	binary.LittleEndian.PutUint64(buf[enumAddrEnum+0x38:], enumAddrTuples) // Data
	binary.LittleEndian.PutUint32(buf[enumAddrEnum+0x40:], 2)              // ArrayNum

	putName(enumAddrTuples+0x00, "First")
	binary.LittleEndian.PutUint64(buf[enumAddrTuples+0x08:], 0)
	putName(enumAddrTuples+0x10, "Second")
	binary.LittleEndian.PutUint64(buf[enumAddrTuples+0x18:], 1)

	cat, err := layout.Default()
	if err != nil {
		t.Fatalf("layout.Default: %v", err)
	}
	cfg := &Config{
		Mem:            mem,
		Catalogue:      cat,
		EngineVersion:  layout.Version{Major: 4, Minor: 27},
		CasePreserving: false,
		Names:          pool,
	}
	return New(cfg)
}

func TestDecodeEnum(t *testing.T) {
	w := buildEnumFixture(t)

	obj, err := w.decodeEnum(remote.Address(enumAddrEnum), model.ObjectCommon{})
	if err != nil {
		t.Fatalf("decodeEnum: %v", err)
	}
	if obj.CppType != "EEnum" {
		t.Fatalf("CppType = %q, want %q", obj.CppType, "EEnum")
	}
	if len(obj.Names) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(obj.Names), obj.Names)
	}
	if obj.Names[0].Name != "First" || obj.Names[0].Value != 0 {
		t.Fatalf("entry 0 = %+v, want {First 0}", obj.Names[0])
	}
	if obj.Names[1].Name != "Second" || obj.Names[1].Value != 1 {
		t.Fatalf("entry 1 = %+v, want {Second 1}", obj.Names[1])
	}
}

func TestReadFStringEmpty(t *testing.T) {
	w := buildEnumFixture(t)

	// A null Data pointer decodes to the empty string without reading
	// any character data.
	got, err := w.readFString(remote.Address(enumAddrEnum + 0x50))
	if err != nil {
		t.Fatalf("readFString: %v", err)
	}
	if got != "" {
		t.Fatalf("readFString = %q, want empty string", got)
	}
}
