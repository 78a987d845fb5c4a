// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
)

// Layout is the key-ordering policy of a store's leaf paths.  It is chosen
// when a store is first written and cannot change afterwards.
type Layout string

const (
	// LayoutUnspecified adopts the layout of an existing store, and
	// LayoutByTarget for a new one.
	LayoutUnspecified Layout = ""
	// LayoutByTarget orders leaf paths as
	// <target-condition>/<replicate>/<reference>.
	LayoutByTarget Layout = "by-target"
	// LayoutByReference orders leaf paths as
	// <reference>/<target-condition>/<replicate>.
	LayoutByReference Layout = "by-reference"
)

// ControlsName is the reserved top-level node holding the control set.
const ControlsName = "controls"

// ParseLayout converts a command-line value into a Layout.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case LayoutByTarget, LayoutByReference, LayoutUnspecified:
		return l, nil
	}
	return LayoutUnspecified, errors.E(errors.Invalid, fmt.Sprintf("store: unknown layout %q (want %q or %q)", s, LayoutByTarget, LayoutByReference))
}

func (l Layout) String() string {
	if l == LayoutUnspecified {
		return "unspecified"
	}
	return string(l)
}

func checkComponent(what, c string) error {
	if c == "" || strings.IndexByte(c, '/') >= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("store: invalid %s name %q", what, c))
	}
	return nil
}

// ReplicateParent returns the group under which replicate slots for the
// given target-condition and reference are allocated.
func (l Layout) ReplicateParent(targetCondition, reference string) (string, error) {
	if err := checkComponent("target-condition", targetCondition); err != nil {
		return "", err
	}
	if err := checkComponent("reference", reference); err != nil {
		return "", err
	}
	switch l {
	case LayoutByTarget, LayoutUnspecified:
		return targetCondition, nil
	case LayoutByReference:
		return reference + "/" + targetCondition, nil
	}
	return "", errors.E(errors.Invalid, fmt.Sprintf("store: unknown layout %q", string(l)))
}

// LeafPath returns the path of the leaf holding the profile of reference for
// the given target-condition and replicate (a slot number, or a sample ID for
// controls).
func (l Layout) LeafPath(targetCondition, replicate, reference string) (string, error) {
	parent, err := l.ReplicateParent(targetCondition, reference)
	if err != nil {
		return "", err
	}
	if err := checkComponent("replicate", replicate); err != nil {
		return "", err
	}
	if l == LayoutByReference {
		return parent + "/" + replicate, nil
	}
	return parent + "/" + replicate + "/" + reference, nil
}

// splitPath validates path and returns its components.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, errors.E(errors.Invalid, "store: empty path")
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("store: path %q has an empty component", path))
		}
	}
	if parts[0] == ControlsName {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("store: path %q is under the reserved %q node", path, ControlsName))
	}
	return parts, nil
}

// basename returns the last component of path.
func basename(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}
