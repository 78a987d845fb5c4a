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
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/grailbio/base/errorreporter"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Opts configures a Store.
type Opts struct {
	// Layout is the key order for a new store.  An existing store must have
	// been written with the same layout, unless Layout is LayoutUnspecified.
	Layout Layout
	// LockTimeout bounds the wait for the store lock.  Zero or negative waits
	// indefinitely.
	LockTimeout time.Duration
}

// DefaultOpts is the default Store configuration.
var DefaultOpts = Opts{Layout: LayoutByTarget}

// Store is a handle on a shared store file.  It holds no state between
// transactions; every transaction reloads the file.
type Store struct {
	path string
	opts Opts
}

// Open returns a handle on the store at path.  No IO is performed; a store
// that does not exist yet is created by the first Update.
func Open(path string, opts Opts) *Store {
	return &Store{path: path, opts: opts}
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// LockPath returns the path of the store's sibling lock file.
func (s *Store) LockPath() string { return s.path + ".lock" }

// WriteMode selects what WriteLeaf does when the leaf already has arrays.
type WriteMode int

const (
	// WriteOnce fails with errors.Exists if the leaf was already written.
	// Replicate profiles use this.
	WriteOnce WriteMode = iota
	// Overwrite replaces existing arrays.  Control profiles use this.
	Overwrite
)

// Txn is the view of the tree inside one transaction.  It must not be used
// after the function passed to Update or View returns.
type Txn struct {
	tree     *tree
	layout   Layout
	readOnly bool
	dirty    bool
}

// Update runs fn as one locked read-modify-write transaction.  The lock is
// held from before the store is read until after it is written, and is
// released on every exit path.  If fn returns an error, nothing is written.
func (s *Store) Update(ctx context.Context, fn func(*Txn) error) (err error) {
	lock := NewLock(s.LockPath())
	if err = lock.Acquire(ctx, s.opts.LockTimeout); err != nil {
		return err
	}
	defer func() {
		if e := lock.Release(); e != nil && err == nil {
			err = e
		}
	}()
	t, layout, err := s.load(ctx)
	if err != nil {
		return err
	}
	txn := &Txn{tree: t, layout: layout}
	if err = fn(txn); err != nil {
		return err
	}
	if !txn.dirty {
		return nil
	}
	return s.save(ctx, t, layout)
}

// View runs fn against a snapshot of the store.  No lock is taken: writers
// replace the file atomically, so a reader always sees a complete
// transaction.  Mutating methods of Txn fail inside View.
func (s *Store) View(ctx context.Context, fn func(*Txn) error) error {
	t, layout, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(&Txn{tree: t, layout: layout, readOnly: true})
}

// Controls returns the sorted set of target-conditions registered as
// controls.
func (s *Store) Controls(ctx context.Context) (controls []string, err error) {
	err = s.View(ctx, func(txn *Txn) error {
		controls = txn.Controls()
		return nil
	})
	return
}

func (s *Store) resolveLayout(stored Layout) (Layout, error) {
	switch {
	case stored == LayoutUnspecified && s.opts.Layout == LayoutUnspecified:
		return LayoutByTarget, nil
	case stored == LayoutUnspecified:
		return s.opts.Layout, nil
	case s.opts.Layout == LayoutUnspecified || s.opts.Layout == stored:
		return stored, nil
	}
	return LayoutUnspecified, errors.E(errors.Precondition,
		fmt.Sprintf("store: %s was written with layout %v, not %v", s.path, stored, s.opts.Layout))
}

// load reads the store file.  A missing file is an empty store.
func (s *Store) load(ctx context.Context) (t *tree, layout Layout, err error) {
	in, err := file.Open(ctx, s.path)
	if err != nil {
		if errors.Is(errors.NotExist, err) {
			layout, err = s.resolveLayout(LayoutUnspecified)
			return &tree{}, layout, err
		}
		return nil, LayoutUnspecified, errors.E(err, "store: open", s.path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var stored Layout
	if t, stored, err = readTree(in.Reader(ctx)); err != nil {
		return nil, LayoutUnspecified, errors.E(err, "store: read", s.path)
	}
	layout, err = s.resolveLayout(stored)
	return t, layout, err
}

// save replaces the store file with t.  The tree is fully encoded before the
// file is created, and file.Create renames the finished file into place on
// Close, so a failure never leaves a partial store behind.
func (s *Store) save(ctx context.Context, t *tree, layout Layout) error {
	var buf bytes.Buffer
	if err := writeTree(&buf, t, layout); err != nil {
		return errors.E(err, "store: encode", s.path)
	}
	out, err := file.Create(ctx, s.path)
	if err != nil {
		return errors.E(err, "store: create", s.path)
	}
	var rep errorreporter.T
	_, err = out.Writer(ctx).Write(buf.Bytes())
	rep.Set(err)
	rep.Set(out.Close(ctx))
	if err := rep.Err(); err != nil {
		return errors.E(err, "store: write", s.path)
	}
	log.Debug.Printf("store: wrote %s (%d node(s), %d byte(s))", s.path, t.size(), buf.Len())
	return nil
}

// Layout returns the key order of the store.
func (txn *Txn) Layout() Layout { return txn.layout }

func (txn *Txn) checkWritable() error {
	if txn.readOnly {
		return errors.E(errors.NotAllowed, "store: mutation inside a read-only transaction")
	}
	return nil
}

// EnsureGroup creates the group at path (and any missing ancestors) if it
// does not exist.  An existing group is left unchanged, so calling it twice is
// the same as calling it once.
func (txn *Txn) EnsureGroup(path string) error {
	if err := txn.checkWritable(); err != nil {
		return err
	}
	created, err := txn.tree.createGroupIfAbsent(path)
	if created {
		txn.dirty = true
	}
	return err
}

// Exists reports whether a node exists at path.
func (txn *Txn) Exists(path string) bool {
	return txn.tree.get(path) != nil
}

// Children returns the names of the immediate children of the group at path,
// in lexicographic order.  For path == "" the top-level groups are returned;
// the reserved control set is not included.
func (txn *Txn) Children(path string) []string {
	var names []string
	for _, n := range txn.tree.children(path) {
		if n.kind != kindGroup {
			continue
		}
		names = append(names, basename(n.path))
	}
	return names
}

// ReserveReplicateSlot allocates the smallest positive integer that is not
// already the name of a child of parent, creates that child group, and
// returns its name.  Children whose names are not positive integers (e.g.
// control sample IDs) are ignored, except that a numeric sample ID occupies
// its slot.  The parent group is created if needed.  The new slot is flagged
// as a replicate, so WriteLeaf never overwrites anything beneath it.
func (txn *Txn) ReserveReplicateSlot(parent string) (string, error) {
	if err := txn.EnsureGroup(parent); err != nil {
		return "", err
	}
	used := map[int]bool{}
	for _, n := range txn.tree.children(parent) {
		if v, err := strconv.Atoi(basename(n.path)); err == nil && v > 0 {
			used[v] = true
		}
	}
	slot := 1
	for used[slot] {
		slot++
	}
	name := strconv.Itoa(slot)
	if err := txn.EnsureGroup(parent + "/" + name); err != nil {
		return "", err
	}
	if txn.tree.markReplicate(parent + "/" + name) {
		txn.dirty = true
	}
	return name, nil
}

// WriteLeaf stores the forward and reverse arrays at path, creating the group
// and its ancestors if needed.  With WriteOnce an existing leaf is an
// errors.Exists failure, and the new leaf can never be replaced.  With
// Overwrite an existing leaf is replaced, unless it or one of its ancestors
// is a replicate (a reserved slot or a WriteOnce leaf), which is also an
// errors.Exists failure.
func (txn *Txn) WriteLeaf(path string, forward, reverse []int64, mode WriteMode) error {
	if err := txn.checkWritable(); err != nil {
		return err
	}
	switch mode {
	case WriteOnce:
		if _, _, ok := txn.tree.getArrayLeaf(path); ok {
			return errors.E(errors.Exists, fmt.Sprintf("store: %s already written", path))
		}
	case Overwrite:
		if rep := txn.tree.replicateAncestor(path); rep != "" {
			return errors.E(errors.Exists, fmt.Sprintf("store: cannot overwrite %s: %s holds a replicate", path, rep))
		}
	}
	if err := txn.tree.setArrayLeaf(path, forward, reverse); err != nil {
		return err
	}
	if mode == WriteOnce {
		txn.tree.markReplicate(path)
	}
	txn.dirty = true
	return nil
}

// ReadLeaf returns the arrays stored at path.  ok is false if path is absent
// or has no arrays.  The returned slices must not be modified.
func (txn *Txn) ReadLeaf(path string) (forward, reverse []int64, ok bool) {
	return txn.tree.getArrayLeaf(path)
}

// Walk calls fn on every leaf (group with arrays) in path order.  Walk stops
// at the first error.
func (txn *Txn) Walk(fn func(path string, forward, reverse []int64) error) (err error) {
	txn.tree.do(func(n *node) bool {
		if n.kind == kindGroup && n.hasArrays {
			err = fn(n.path, n.forward, n.reverse)
		}
		return err == nil
	})
	return
}

// MarkControl adds targetCondition to the control set.  Adding a member that
// is already present changes nothing.
func (txn *Txn) MarkControl(targetCondition string) error {
	if err := txn.checkWritable(); err != nil {
		return err
	}
	if err := checkComponent("target-condition", targetCondition); err != nil {
		return err
	}
	changed, err := txn.tree.addToSet(ControlsName, targetCondition)
	if changed {
		txn.dirty = true
	}
	return err
}

// Controls returns the sorted control set.
func (txn *Txn) Controls() []string {
	return txn.tree.setMembers(ControlsName)
}
