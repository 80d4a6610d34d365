// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package layout

import "testing"

func TestDefaultCatalogueResolvesKnownMember(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	off, err := cat.MemberOffset(Version{4, 27}, false, "UObjectBase", "NamePrivate")
	if err != nil {
		t.Fatalf("MemberOffset: %v", err)
	}
	if off != 0x18 {
		t.Fatalf("NamePrivate offset = %#x, want 0x18", off)
	}
}

func TestCatalogueSelectsNearestNotAfter(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	// 4.20 should resolve against the pre-4.25 entry, not 4.25's.
	sl, err := cat.Struct(Version{4, 20}, false, "UStruct")
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	if _, ok := sl.Members["ChildProperties"]; ok {
		t.Fatalf("4.20 UStruct should not carry ChildProperties (post-4.25 field)")
	}
	sl, err = cat.Struct(Version{4, 27}, false, "UStruct")
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	if _, ok := sl.Members["ChildProperties"]; !ok {
		t.Fatalf("4.27 UStruct should carry ChildProperties")
	}
}

func TestMemberNotFoundIsFatal(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	_, err = cat.MemberOffset(Version{4, 27}, false, "UObjectBase", "DoesNotExist")
	if err == nil {
		t.Fatalf("expected error for unknown member")
	}
}

func TestCompileRejectsMalformedSource(t *testing.T) {
	_, err := Compile("struct Foo size=0x8 align=8 {\n  Bar offset=0x0\n}\n")
	if err == nil {
		t.Fatalf("expected error: field missing size attribute")
	}
}

func TestDetectVersionPicksHighest(t *testing.T) {
	v, ok := DetectVersion([]string{
		"some unrelated string",
		"++UE4+Release-4.23-CL-0",
		"++UE4+Release-4.27-CL-0",
	})
	if !ok {
		t.Fatalf("expected a version to be detected")
	}
	if v != (Version{4, 27}) {
		t.Fatalf("DetectVersion = %s, want 4.27", v)
	}
}
