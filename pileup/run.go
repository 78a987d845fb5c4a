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

package pileup

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/tagpile/coverage"
	"github.com/grailbio/tagpile/store"
	"github.com/grailbio/tagpile/util"
)

// Result summarizes one Run.
type Result struct {
	Sample SampleInfo
	// Control is true if the sample was merged as a control.
	Control bool
	// Slots maps each reference name to the store component the sample was
	// written under: the sample ID for a control, the reserved replicate slot
	// otherwise.
	Slots map[string]string
	// Written lists the store paths written, in write order.
	Written []string
	// Skipped lists the out-of-bounds intervals.
	Skipped []OutOfBounds
}

// ReadFileList returns the non-blank lines of the file at path, with
// surrounding whitespace removed.
func ReadFileList(ctx context.Context, path string) (paths []string, err error) {
	err = util.ReadPath(ctx, path, func(r io.Reader) error {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				paths = append(paths, line)
			}
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, errors.E(err, "pileup: reading file list", path)
	}
	return paths, nil
}

// Merge writes every profile in ps into st, one transaction per profile in
// reference-name order.
//
// A control sample's target-condition first joins the store's control set,
// in a transaction of its own, even if ps is empty.  Its profiles are then
// written under its sample ID, replacing earlier control profiles there.  A
// replicate gets the lowest free replicate slot: once for the whole call when
// the store is laid out by target, once per reference when it is laid out by
// reference.  Replicate leaves are never overwritten: a control whose sample
// ID names an existing replicate slot fails with errors.Exists.
func Merge(ctx context.Context, st *store.Store, sample SampleInfo, ps *ProfileSet, control bool) (*Result, error) {
	tc := sample.TargetCondition()
	res := &Result{
		Sample:  sample,
		Control: control,
		Slots:   map[string]string{},
		Skipped: ps.Skipped,
	}
	if control {
		err := st.Update(ctx, func(txn *store.Txn) error {
			return txn.MarkControl(tc)
		})
		if err != nil {
			return res, errors.E(err, "pileup: registering control", tc, "in", st.Path())
		}
	}
	var slot string // replicate slot shared by all references, by-target only
	for _, name := range ps.Names() {
		prof := ps.Get(name)
		err := st.Update(ctx, func(txn *store.Txn) error {
			layout := txn.Layout()
			component := sample.ID
			mode := store.Overwrite
			if !control {
				mode = store.WriteOnce
				component = slot
				if component == "" {
					parent, err := layout.ReplicateParent(tc, name)
					if err != nil {
						return err
					}
					if component, err = txn.ReserveReplicateSlot(parent); err != nil {
						return err
					}
					if layout == store.LayoutByTarget {
						slot = component
					}
				}
			}
			path, err := layout.LeafPath(tc, component, name)
			if err != nil {
				return err
			}
			if err := txn.WriteLeaf(path, prof.Forward, prof.Reverse, mode); err != nil {
				return err
			}
			res.Slots[name] = component
			res.Written = append(res.Written, path)
			return nil
		})
		if err != nil {
			return res, errors.E(err, "pileup: merging", name, "into", st.Path())
		}
	}
	return res, nil
}

// Run computes the composite profiles of one sample and merges them into the
// store at outPath.
//
// scidxPath is the sample's coverage index; its basename must match
// opts.SamplePattern.  bedListPath lists the interval files, one per line.
// chromSizesPath is the chromosome size table.  Nothing is written to the
// store unless every input was read and accumulated successfully.
func Run(ctx context.Context, scidxPath, bedListPath, chromSizesPath, outPath string, opts *Opts) (*Result, error) {
	samplePattern, err := NewSamplePattern(opts.SamplePattern)
	if err != nil {
		return nil, err
	}
	sample, err := samplePattern.Parse(scidxPath)
	if err != nil {
		return nil, err
	}
	// Reject bad patterns before the slow index read.
	if _, err = NewRefPattern(opts.RefPattern); err != nil {
		return nil, err
	}
	sizes, err := coverage.ReadChromSizesFromPath(ctx, chromSizesPath)
	if err != nil {
		return nil, err
	}
	bedPaths, err := ReadFileList(ctx, bedListPath)
	if err != nil {
		return nil, err
	}
	idx, err := coverage.ReadIndexFromPath(ctx, scidxPath, sizes)
	if err != nil {
		return nil, err
	}
	ps, err := Accumulate(ctx, idx, bedPaths, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("pileup.Run: sample %s (%s): %d profile(s) from %d file(s), %d interval(s) skipped",
		sample.ID, sample.TargetCondition(), ps.Len(), len(bedPaths), len(ps.Skipped))

	st := store.Open(outPath, store.Opts{Layout: opts.Layout, LockTimeout: opts.LockTimeout})
	res, err := Merge(ctx, st, sample, ps, opts.Control)
	if err != nil {
		return res, err
	}
	log.Printf("pileup.Run: wrote %d profile(s) to %s", len(res.Written), outPath)
	return res, nil
}
