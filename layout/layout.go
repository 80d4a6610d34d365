// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package layout is component C: it maps (struct, field) to a byte
// offset and struct to a size for whichever engine version the host
// detected, per spec.md §4.3. The concrete offsets are produced ahead
// of time by evaluating a small embedded description language (dsl.go)
// against a table of known engine versions (versions.go).
package layout

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

// ErrMemberNotFound signals an unsupported engine version per spec.md
// §4.3: "if missing, the walker fails fatally."
var ErrMemberNotFound = errors.New("layout: member not found")

// ErrStructNotFound is the struct-level counterpart of ErrMemberNotFound.
var ErrStructNotFound = errors.New("layout: struct not found")

// Member is one field's position within a StructLayout.
type Member struct {
	Name   string
	Offset uint32
	Size   uint32
}

// StructLayout is the resolved shape of one engine struct for one
// target version.
type StructLayout struct {
	Name      string
	Size      uint32
	Alignment uint32
	Members   map[string]Member
}

// Version identifies an engine release, e.g. {4, 27}.
type Version struct {
	Major int
	Minor int
}

func (v Version) semver() string {
	return fmt.Sprintf("v%d.%d.0", v.Major, v.Minor)
}

// Less reports whether v precedes o.
func (v Version) Less(o Version) bool {
	return semver.Compare(v.semver(), o.semver()) < 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// versionEntry is one compiled (version, case-preserving) slice of the
// catalogue.
type versionEntry struct {
	version        Version
	casePreserving bool
	structs        map[string]StructLayout
}

// Catalogue is an immutable-after-construction set of struct layouts,
// selected by (engine version, case-preserving). Per spec.md §5, it
// never mutates after Compile returns, so concurrent lookups need no
// synchronization.
type Catalogue struct {
	entries []versionEntry
}

// MemberOffset returns the byte offset of field within structName for
// the catalogue's selected target. Missing struct or field is a fatal,
// non-recoverable error (spec.md §4.3, §7 item 2).
func (c *Catalogue) MemberOffset(version Version, casePreserving bool, structName, field string) (uint32, error) {
	sl, err := c.Struct(version, casePreserving, structName)
	if err != nil {
		return 0, err
	}
	m, ok := sl.Members[field]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s (engine %s)", ErrMemberNotFound, structName, field, version)
	}
	return m.Offset, nil
}

// MemberSize returns the byte size of field within structName.
func (c *Catalogue) MemberSize(version Version, casePreserving bool, structName, field string) (uint32, error) {
	sl, err := c.Struct(version, casePreserving, structName)
	if err != nil {
		return 0, err
	}
	m, ok := sl.Members[field]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s (engine %s)", ErrMemberNotFound, structName, field, version)
	}
	return m.Size, nil
}

// StructSize returns structName's total size for the target version.
func (c *Catalogue) StructSize(version Version, casePreserving bool, structName string) (uint32, error) {
	sl, err := c.Struct(version, casePreserving, structName)
	if err != nil {
		return 0, err
	}
	return sl.Size, nil
}

// Struct resolves the full StructLayout for structName at the nearest
// compiled entry not newer than version, matching the requested
// case-preserving flag. An exact version match is preferred; absent
// one, the highest compiled version ≤ the requested version is used,
// mirroring how real catalogues cover "4.25+" style ranges rather than
// every point release.
func (c *Catalogue) Struct(version Version, casePreserving bool, structName string) (StructLayout, error) {
	var best *versionEntry
	for i := range c.entries {
		e := &c.entries[i]
		if e.casePreserving != casePreserving {
			continue
		}
		if e.version.Less(version) || e.version == version {
			if best == nil || best.version.Less(e.version) {
				best = e
			}
		}
	}
	if best == nil {
		return StructLayout{}, fmt.Errorf("%w: no catalogue entry covers engine %s (case_preserving=%v)",
			ErrStructNotFound, version, casePreserving)
	}
	sl, ok := best.structs[structName]
	if !ok {
		return StructLayout{}, fmt.Errorf("%w: %s (engine %s)", ErrStructNotFound, structName, version)
	}
	return sl, nil
}
