// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestObjectMapOrdersByPath(t *testing.T) {
	om := NewObjectMap()
	om.Set("/Script/Demo.Zeta", ObjectType{Kind: KindClass})
	om.Set("/Script/Demo.Alpha", ObjectType{Kind: KindClass})
	om.Set("/Script/Demo", ObjectType{Kind: KindPackage})

	keys := om.Keys()
	want := []string{"/Script/Demo", "/Script/Demo.Alpha", "/Script/Demo.Zeta"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("key[%d] = %q, want %q", i, keys[i], k)
		}
	}

	buf, err := json.Marshal(om)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	iAlpha := strings.Index(string(buf), "Alpha")
	iZeta := strings.Index(string(buf), "Zeta")
	if iAlpha > iZeta {
		t.Fatalf("expected Alpha before Zeta in %s", buf)
	}
}

func TestPropertyMarshalFlattensType(t *testing.T) {
	p := Property{
		Name:   "MyArray",
		Offset: 0x10,
		Size:   16,
		Type: ArrayProp{Inner: &Property{
			Name: "MyArray_Inner",
			Type: Int32Prop{},
		}},
	}
	buf, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(buf, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	typ, ok := got["type"].(map[string]interface{})
	if !ok {
		t.Fatalf("type not an object: %v", got["type"])
	}
	if typ["kind"] != "Array" {
		t.Fatalf("kind = %v, want Array", typ["kind"])
	}
	inner, ok := typ["inner"].(map[string]interface{})
	if !ok {
		t.Fatalf("inner not an object: %v", typ["inner"])
	}
	if inner["name"] != "MyArray_Inner" {
		t.Fatalf("inner.name = %v", inner["name"])
	}
}

func TestVTableMapHexKeys(t *testing.T) {
	vt := NewVTableMap()
	vt.Set(0x2000, []uint64{1, 2})
	vt.Set(0x1000, []uint64{3})
	buf, err := json.Marshal(vt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	i1000 := strings.Index(string(buf), "0x1000")
	i2000 := strings.Index(string(buf), "0x2000")
	if i1000 < 0 || i2000 < 0 || i1000 > i2000 {
		t.Fatalf("expected ascending address order in %s", buf)
	}
}
