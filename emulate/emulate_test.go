// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package emulate

import "testing"

func TestEmulatePageBase(t *testing.T) {
	cases := []struct {
		addr uint64
		want uint64
	}{
		{0x1000, 0x1000},
		{0x1001, 0x1000},
		{0x1fff, 0x1000},
		{0x2000, 0x2000},
	}
	for _, c := range cases {
		if got := emulatePageBase(c.addr); got != c.want {
			t.Errorf("emulatePageBase(%#x) = %#x, want %#x", c.addr, got, c.want)
		}
	}
}

func TestUTF16ToString(t *testing.T) {
	// "Hi" little-endian UTF-16.
	b := []byte{'H', 0, 'i', 0}
	if got, want := utf16ToString(b), "Hi"; got != want {
		t.Errorf("utf16ToString = %q, want %q", got, want)
	}
}

func TestUTF16ToStringOddTrailingByte(t *testing.T) {
	b := []byte{'H', 0, 'i'}
	if got, want := utf16ToString(b), "H"; got != want {
		t.Errorf("utf16ToString = %q, want %q", got, want)
	}
}
