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
	"sort"
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
)

type nodeKind uint8

const (
	// kindGroup nodes may also carry a forward/reverse array pair.
	kindGroup nodeKind = iota + 1
	// kindSet is only used for the top-level control set.
	kindSet
)

// node is one entry of the tree.  The llrb key is path.
type node struct {
	path string
	kind nodeKind

	hasArrays bool
	forward   []int64
	reverse   []int64
	// replicate is set on reserved replicate slots and on leaves written
	// once.  Nothing at or below such a node may be overwritten.
	replicate bool

	members []string // sorted, kindSet only
}

// Compare compares two nodes by path, for use in llrb.
func (n *node) Compare(c llrb.Comparable) int {
	return strings.Compare(n.path, c.(*node).path)
}

// tree maps a path to a node.  Nodes are kept in path order, so the children
// of a group are a contiguous run starting right after "<group>/".
type tree struct {
	nodes llrb.Tree
}

func (t *tree) size() int { return t.nodes.Len() }

func (t *tree) get(path string) *node {
	c := t.nodes.Get(&node{path: path})
	if c == nil {
		return nil
	}
	return c.(*node)
}

// createGroupIfAbsent creates the group at path, and any missing ancestor
// groups.  It reports whether anything was created.  An existing group is
// left unchanged.
func (t *tree) createGroupIfAbsent(path string) (bool, error) {
	parts, err := splitPath(path)
	if err != nil {
		return false, err
	}
	created := false
	prefix := ""
	for i, part := range parts {
		if i > 0 {
			prefix += "/"
		}
		prefix += part
		n := t.get(prefix)
		if n == nil {
			t.nodes.Insert(&node{path: prefix, kind: kindGroup})
			created = true
			continue
		}
		if n.kind != kindGroup {
			return false, errors.E(errors.Invalid, fmt.Sprintf("store: %s is not a group", prefix))
		}
	}
	return created, nil
}

// children returns the immediate children of the group at path, in name
// order.  The root's children are returned for path == "".
func (t *tree) children(path string) []*node {
	var out []*node
	collect := func(prefix string) llrb.Operation {
		return func(c llrb.Comparable) bool {
			n := c.(*node)
			if strings.IndexByte(n.path[len(prefix):], '/') < 0 {
				out = append(out, n)
			}
			return false
		}
	}
	if path == "" {
		t.nodes.Do(collect(""))
		return out
	}
	// '0' is the byte after '/', so [path+"/", path+"0") spans the subtree.
	t.nodes.DoRange(collect(path+"/"), &node{path: path + "/"}, &node{path: path + "0"})
	return out
}

// setArrayLeaf stores forward and reverse at path, creating the group (and
// its ancestors) if needed.  The slices are copied.
func (t *tree) setArrayLeaf(path string, forward, reverse []int64) error {
	if len(forward) != len(reverse) {
		return errors.E(errors.Invalid, fmt.Sprintf("store: %s: forward and reverse lengths differ (%d vs %d)", path, len(forward), len(reverse)))
	}
	if _, err := t.createGroupIfAbsent(path); err != nil {
		return err
	}
	n := t.get(path)
	n.hasArrays = true
	n.forward = append([]int64(nil), forward...)
	n.reverse = append([]int64(nil), reverse...)
	return nil
}

// getArrayLeaf returns the arrays stored at path.  ok is false if path does
// not exist or is a group without arrays.
func (t *tree) getArrayLeaf(path string) (forward, reverse []int64, ok bool) {
	n := t.get(path)
	if n == nil || !n.hasArrays {
		return nil, nil, false
	}
	return n.forward, n.reverse, true
}

// markReplicate flags the existing group at path as a replicate.  It reports
// whether the flag changed.
func (t *tree) markReplicate(path string) bool {
	n := t.get(path)
	if n == nil || n.kind != kindGroup || n.replicate {
		return false
	}
	n.replicate = true
	return true
}

// replicateAncestor returns the first node, from the root down to path
// itself, that is flagged as a replicate, or "" if there is none.
func (t *tree) replicateAncestor(path string) string {
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '/' {
			continue
		}
		if n := t.get(path[:i]); n != nil && n.replicate {
			return n.path
		}
	}
	return ""
}

// addToSet inserts member into the top-level set node called name, creating
// it if needed.  It reports whether the set changed.
func (t *tree) addToSet(name, member string) (bool, error) {
	n := t.get(name)
	if n == nil {
		t.nodes.Insert(&node{path: name, kind: kindSet, members: []string{member}})
		return true, nil
	}
	if n.kind != kindSet {
		return false, errors.E(errors.Invalid, fmt.Sprintf("store: %s is not a set", name))
	}
	i := sort.SearchStrings(n.members, member)
	if i < len(n.members) && n.members[i] == member {
		return false, nil
	}
	n.members = append(n.members, "")
	copy(n.members[i+1:], n.members[i:])
	n.members[i] = member
	return true, nil
}

// setMembers returns the members of the set node called name, in sorted
// order.
func (t *tree) setMembers(name string) []string {
	n := t.get(name)
	if n == nil || n.kind != kindSet {
		return nil
	}
	return append([]string(nil), n.members...)
}

// do calls fn on every node in path order until fn returns false.
func (t *tree) do(fn func(n *node) bool) {
	t.nodes.Do(func(c llrb.Comparable) bool {
		return !fn(c.(*node))
	})
}
