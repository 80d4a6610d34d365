// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hazard-re/uedump/remote"
)

// prebuiltFixture is the on-disk shape of a --prebuilt-json target: a
// single flat byte range, for reproducing a bug report or a demo
// without a live process or a captured snapshot (spec.md §6's third
// input mode).
type prebuiltFixture struct {
	Base string `json:"base"`
	Data string `json:"data"` // base64-encoded
}

func loadPrebuiltFixture(path string) (remote.Mem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prebuilt fixture %s: %w", path, err)
	}
	var fx prebuiltFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse prebuilt fixture %s: %w", path, err)
	}
	base, err := parseAddr(fx.Base)
	if err != nil {
		return nil, fmt.Errorf("prebuilt fixture %s: base: %w", path, err)
	}
	data, err := base64.StdEncoding.DecodeString(fx.Data)
	if err != nil {
		return nil, fmt.Errorf("prebuilt fixture %s: data: %w", path, err)
	}
	return remote.NewFlatMem(remote.Address(base), data), nil
}
