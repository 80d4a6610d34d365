// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ObjectMap is a lexicographically-ordered map<path, ObjectType>, per
// spec.md §4.5.8: "Objects are collected into a lexicographically
// ordered map keyed by their resolved path." Insertion order does not
// matter; Marshal always re-sorts by key so the document is a pure
// function of its contents.
type ObjectMap struct {
	m map[string]ObjectType
}

// NewObjectMap returns an empty ObjectMap.
func NewObjectMap() *ObjectMap {
	return &ObjectMap{m: make(map[string]ObjectType)}
}

// Set inserts or overwrites the entry for path.
func (o *ObjectMap) Set(path string, obj ObjectType) {
	o.m[path] = obj
}

// Get returns the entry for path, if present.
func (o *ObjectMap) Get(path string) (ObjectType, bool) {
	v, ok := o.m[path]
	return v, ok
}

// Has reports whether path has already been decoded.
func (o *ObjectMap) Has(path string) bool {
	_, ok := o.m[path]
	return ok
}

// Len returns the number of entries.
func (o *ObjectMap) Len() int { return len(o.m) }

// Keys returns every path in sorted order.
func (o *ObjectMap) Keys() []string {
	keys := make([]string, 0, len(o.m))
	for k := range o.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON emits entries as a JSON object in sorted key order, so
// the document round-trips byte-identically across runs (spec.md §8).
func (o *ObjectMap) MarshalJSON() ([]byte, error) {
	keys := o.Keys()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores an ObjectMap from its JSON object form.
func (o *ObjectMap) UnmarshalJSON(data []byte) error {
	raw := make(map[string]ObjectType)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.m = raw
	return nil
}

// VTableMap is an ordered map<vtable address, [function address]>,
// keyed as a hex string in JSON (object keys must be strings) but
// addressable by its numeric form through the Go API.
type VTableMap struct {
	m map[uint64][]uint64
}

// NewVTableMap returns an empty VTableMap.
func NewVTableMap() *VTableMap {
	return &VTableMap{m: make(map[uint64][]uint64)}
}

// Set records the scanned slots for a vtable at addr.
func (v *VTableMap) Set(addr uint64, slots []uint64) {
	v.m[addr] = slots
}

// Get returns the slots recorded for addr.
func (v *VTableMap) Get(addr uint64) ([]uint64, bool) {
	s, ok := v.m[addr]
	return s, ok
}

// Addresses returns every recorded vtable address, sorted ascending.
func (v *VTableMap) Addresses() []uint64 {
	keys := make([]uint64, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of distinct vtables recorded.
func (v *VTableMap) Len() int { return len(v.m) }

// MarshalJSON emits entries keyed by "0x..." address, ascending.
func (v *VTableMap) MarshalJSON() ([]byte, error) {
	addrs := v.Addresses()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range addrs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key := fmt.Sprintf("\"0x%x\":", a)
		buf.WriteString(key)
		vb, err := json.Marshal(v.m[a])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
