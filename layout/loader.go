// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileEntry is the on-disk shape of one catalogue entry, shared by the
// JSON and YAML loaders (SPEC_FULL.md §4.8 wires gopkg.in/yaml.v3 as
// an alternate, more hand-editable catalogue format).
type fileEntry struct {
	EngineMajor    int                         `json:"engine_major" yaml:"engine_major"`
	EngineMinor    int                         `json:"engine_minor" yaml:"engine_minor"`
	CasePreserving bool                        `json:"case_preserving" yaml:"case_preserving"`
	Structs        map[string]fileStructLayout `json:"structs" yaml:"structs"`
}

type fileStructLayout struct {
	Size      uint32                `json:"size" yaml:"size"`
	Alignment uint32                `json:"alignment" yaml:"alignment"`
	Members   map[string]fileMember `json:"members" yaml:"members"`
}

type fileMember struct {
	Offset uint32 `json:"offset" yaml:"offset"`
	Size   uint32 `json:"size" yaml:"size"`
}

// LoadFile reads a catalogue from path. The format is selected by
// extension: ".yaml"/".yml" parse with gopkg.in/yaml.v3, everything
// else parses as JSON. The loaded entries are appended to Default()'s
// built-in table so a user-supplied catalogue can add coverage for a
// version the binary doesn't ship without losing the built-ins.
func LoadFile(path string) (*Catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layout: read catalogue %s: %w", path, err)
	}

	var entries []fileEntry
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("layout: parse yaml catalogue %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("layout: parse json catalogue %s: %w", path, err)
		}
	}

	cat, err := Default()
	if err != nil {
		return nil, err
	}
	for _, fe := range entries {
		structs := make(map[string]StructLayout, len(fe.Structs))
		for name, fs := range fe.Structs {
			sl := StructLayout{
				Name:      name,
				Size:      fs.Size,
				Alignment: fs.Alignment,
				Members:   make(map[string]Member, len(fs.Members)),
			}
			for mname, m := range fs.Members {
				sl.Members[mname] = Member{Name: mname, Offset: m.Offset, Size: m.Size}
			}
			structs[name] = sl
		}
		cat.entries = append(cat.entries, versionEntry{
			version:        Version{Major: fe.EngineMajor, Minor: fe.EngineMinor},
			casePreserving: fe.CasePreserving,
			structs:        structs,
		})
	}
	return cat, nil
}

// DetectVersion is a best-effort supplemented feature (SPEC_FULL.md
// §4.9): scan the candidate strings it is given (for example, strings
// pulled from the image) for an "X.Y" version marker of
// the kind UE stamps into every build (e.g. embedded in the .rodata
// "++UE4+Release-4.27" branch string). Callers that already know the
// target version from external metadata should skip this and build a
// Version directly; DetectVersion exists for the prebuilt-json and
// snapshot-file entry points where no launcher told the tool what it's
// looking at.
func DetectVersion(candidates []string) (Version, bool) {
	best := Version{}
	found := false
	for _, s := range candidates {
		v, ok := parseVersionMarker(s)
		if !ok {
			continue
		}
		if !found || best.Less(v) {
			best = v
			found = true
		}
	}
	return best, found
}

func parseVersionMarker(s string) (Version, bool) {
	const prefix = "++UE4+Release-"
	const prefix5 = "++UE5+Release-"
	var rest string
	switch {
	case strings.HasPrefix(s, prefix):
		rest = s[len(prefix):]
	case strings.HasPrefix(s, prefix5):
		rest = s[len(prefix5):]
	default:
		return Version{}, false
	}
	parts := strings.SplitN(rest, ".", 3)
	if len(parts) < 2 {
		return Version{}, false
	}
	var major, minor int
	if _, err := fmt.Sscanf(parts[0], "%d", &major); err != nil {
		return Version{}, false
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &minor); err != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}
