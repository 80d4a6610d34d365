// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package layout

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Compile parses the small struct-description language spec.md §4.3
// calls "a compiled description language" into a catalogue entry.
// Grammar, one declaration per struct:
//
//	struct NAME size=SIZE align=ALIGN {
//	    FIELD offset=OFFSET size=SIZE
//	    ...
//	}
//
// Numbers accept 0x hex or decimal. Blank lines and lines starting
// with '#' are ignored. This is deliberately minimal: it is evaluated
// once per declared engine version at program startup into a plain
// map, so lookups on the hot path (every property decode) never touch
// the parser again.
func Compile(source string) (map[string]StructLayout, error) {
	structs := make(map[string]StructLayout)

	var cur *StructLayout
	sc := bufio.NewScanner(strings.NewReader(source))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "}" {
			if cur == nil {
				return nil, fmt.Errorf("layout dsl:%d: unexpected '}'", lineNo)
			}
			structs[cur.Name] = *cur
			cur = nil
			continue
		}
		if strings.HasPrefix(line, "struct ") {
			if cur != nil {
				return nil, fmt.Errorf("layout dsl:%d: nested struct declaration", lineNo)
			}
			name, attrs, err := splitDecl(strings.TrimPrefix(line, "struct "))
			if err != nil {
				return nil, fmt.Errorf("layout dsl:%d: %w", lineNo, err)
			}
			size, err := attrUint(attrs, "size")
			if err != nil {
				return nil, fmt.Errorf("layout dsl:%d: %w", lineNo, err)
			}
			align, err := attrUint(attrs, "align")
			if err != nil {
				return nil, fmt.Errorf("layout dsl:%d: %w", lineNo, err)
			}
			cur = &StructLayout{
				Name:      name,
				Size:      size,
				Alignment: align,
				Members:   make(map[string]Member),
			}
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("layout dsl:%d: field outside struct: %q", lineNo, line)
		}
		name, attrs, err := splitDecl(line)
		if err != nil {
			return nil, fmt.Errorf("layout dsl:%d: %w", lineNo, err)
		}
		offset, err := attrUint(attrs, "offset")
		if err != nil {
			return nil, fmt.Errorf("layout dsl:%d: %w", lineNo, err)
		}
		size, err := attrUint(attrs, "size")
		if err != nil {
			return nil, fmt.Errorf("layout dsl:%d: %w", lineNo, err)
		}
		cur.Members[name] = Member{Name: name, Offset: offset, Size: size}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, fmt.Errorf("layout dsl: struct %q missing closing '}'", cur.Name)
	}
	return structs, nil
}

// splitDecl splits "NAME key=val key=val {" into the leading name and
// the attribute map, tolerating an optional trailing '{'.
func splitDecl(line string) (string, map[string]string, error) {
	line = strings.TrimSuffix(strings.TrimSpace(line), "{")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty declaration")
	}
	attrs := make(map[string]string, len(fields)-1)
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return "", nil, fmt.Errorf("malformed attribute %q", f)
		}
		attrs[kv[0]] = kv[1]
	}
	return fields[0], attrs, nil
}

func attrUint(attrs map[string]string, key string) (uint32, error) {
	v, ok := attrs[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", key, err)
	}
	return uint32(n), nil
}
