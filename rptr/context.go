// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package rptr is component B: a typed remote pointer. A Ptr[T] is
// nothing more than (address, context, phantom type T) per spec.md
// §4.2 — no bytes are read until Read is called, and every operation
// that needs to know T's size or shape does so through the Context's
// layout.Catalogue rather than Go reflection over the target process.
package rptr

import (
	"github.com/hazard-re/uedump/layout"
	"github.com/hazard-re/uedump/remote"
)

// Context bundles everything a Ptr needs to resolve a read: the byte
// source, the struct-layout catalogue for the detected engine version,
// and the name-pool base address fname.Decode needs to turn FName
// indices into strings (kept as a raw address here to avoid an import
// cycle between rptr and fname; the walker passes the resolved pool
// in explicitly where it is needed).
type Context struct {
	Mem            remote.Mem
	Catalogue      *layout.Catalogue
	EngineVersion  layout.Version
	CasePreserving bool
	NamePoolBase   remote.Address
}

// NewContext builds a Context from its four required inputs.
func NewContext(mem remote.Mem, cat *layout.Catalogue, version layout.Version, casePreserving bool) *Context {
	return &Context{
		Mem:            mem,
		Catalogue:      cat,
		EngineVersion:  version,
		CasePreserving: casePreserving,
	}
}

// MemberOffset resolves a field offset within structName for this
// context's engine version, per spec.md §4.3.
func (c *Context) MemberOffset(structName, field string) (uint32, error) {
	return c.Catalogue.MemberOffset(c.EngineVersion, c.CasePreserving, structName, field)
}

// StructSize resolves structName's total size for this context's
// engine version.
func (c *Context) StructSize(structName string) (uint32, error) {
	return c.Catalogue.StructSize(c.EngineVersion, c.CasePreserving, structName)
}
