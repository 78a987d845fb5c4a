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
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/tagpile/coverage"
	"github.com/grailbio/tagpile/interval"
)

// Profile is the strand-resolved composite of every interval sharing one
// reference name.  Forward[i] and Reverse[i] are the summed tag counts at
// offset i from the 5' end of the intervals, in interval orientation.
type Profile struct {
	Name    string
	Forward []int64
	Reverse []int64
}

// Width returns the number of offsets in the profile.
func (p *Profile) Width() int { return len(p.Forward) }

// OutOfBounds records an interval that was skipped because it does not fit
// strictly inside its chromosome.
type OutOfBounds struct {
	// Path is the interval file the entry came from.
	Path  string
	Entry interval.Entry
}

func (o OutOfBounds) String() string {
	return fmt.Sprintf("%s: %v", o.Path, o.Entry)
}

// ProfileSet holds the composites of one Accumulate call, keyed by reference
// name.
type ProfileSet struct {
	profiles map[string]*Profile
	// Skipped lists every out-of-bounds interval, in input order.
	Skipped []OutOfBounds
}

// Names returns the reference names in lexicographic order.
func (ps *ProfileSet) Names() []string {
	names := make([]string, 0, len(ps.profiles))
	for name := range ps.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the profile for a reference name, or nil.
func (ps *ProfileSet) Get(name string) *Profile {
	return ps.profiles[name]
}

// Len returns the number of profiles.
func (ps *ProfileSet) Len() int { return len(ps.profiles) }

// filePileup is the contribution of a single interval file.
type filePileup struct {
	ref     RefInfo
	forward []int64
	reverse []int64
	skipped []OutOfBounds
}

// addEntry adds one interval's window to fp.  ok is false if the interval
// was skipped for being out of bounds.
func (fp *filePileup) addEntry(idx *coverage.Index, e interval.Entry) (ok bool, err error) {
	size, found := idx.Len(e.ChrName)
	if !found {
		return false, errors.E(errors.NotExist, fmt.Sprintf("pileup: interval %v is on a chromosome absent from the size table", e))
	}
	// Position 0 and the last base are excluded, matching the coverage
	// index's usable range.
	if e.Start0 < 1 || int(e.End) > size-1 {
		return false, nil
	}
	width := len(fp.forward)
	if e.Len() != width {
		return false, errors.E(errors.Invalid, fmt.Sprintf("pileup: interval %v has length %d, expected %d", e, e.Len(), width))
	}
	fwdCol := idx.Forward(e.ChrName)
	revCol := idx.Reverse(e.ChrName)
	start := int(e.Start0)
	if e.Strand == interval.StrandFwd {
		fwdWin := fwdCol[start : start+width]
		revWin := revCol[start : start+width]
		for i := 0; i < width; i++ {
			fp.forward[i] += int64(fwdWin[i])
			fp.reverse[i] += int64(revWin[i])
		}
		return true, nil
	}
	// On the minus strand, offset 0 is the last base and the strands swap.
	last := int(e.End) - 1
	for i := 0; i < width; i++ {
		fp.forward[i] += int64(revCol[last-i])
		fp.reverse[i] += int64(fwdCol[last-i])
	}
	return true, nil
}

func pileupFile(ctx context.Context, idx *coverage.Index, refPattern *RefPattern, path string) (*filePileup, error) {
	ref, err := refPattern.Parse(path)
	if err != nil {
		return nil, err
	}
	entries, err := interval.ReadStrandedBEDFromPath(ctx, path)
	if err != nil {
		return nil, err
	}
	fp := &filePileup{
		ref:     ref,
		forward: make([]int64, ref.Width),
		reverse: make([]int64, ref.Width),
	}
	for _, e := range entries {
		ok, err := fp.addEntry(idx, e)
		if err != nil {
			return nil, errors.E(err, path)
		}
		if !ok {
			log.Printf("pileup: %s: skipping out-of-bounds interval %v", path, e)
			fp.skipped = append(fp.skipped, OutOfBounds{Path: path, Entry: e})
		}
	}
	log.Debug.Printf("pileup: %s: %d interval(s), %d skipped", path, len(entries), len(fp.skipped))
	return fp, nil
}

// Accumulate builds one composite profile per reference name from the
// interval files at paths.  Files are processed concurrently against the
// (read-only) index; their contributions are then summed in path order, so
// the result does not depend on opts.Parallelism.
//
// An interval on an unknown chromosome (errors.NotExist) or of the wrong
// length (errors.Invalid) fails the whole call, as does a reference name
// declared with two different widths.  Intervals that reach position 0 or the
// last base of their chromosome are skipped and listed in Skipped.
func Accumulate(ctx context.Context, idx *coverage.Index, paths []string, opts *Opts) (*ProfileSet, error) {
	refPattern, err := NewRefPattern(opts.RefPattern)
	if err != nil {
		return nil, err
	}
	nFile := len(paths)
	ps := &ProfileSet{profiles: map[string]*Profile{}}
	if nFile == 0 {
		return ps, nil
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	parallelism = minInt(parallelism, nFile)

	results := make([]*filePileup, nFile)
	log.Debug.Printf("pileup.Accumulate: %d file(s), %d job(s)", nFile, parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * nFile) / parallelism
		endIdx := ((jobIdx + 1) * nFile) / parallelism
		for fileIdx := startIdx; fileIdx < endIdx; fileIdx++ {
			if err := ctx.Err(); err != nil {
				return errors.E(errors.Canceled, err)
			}
			fp, err := pileupFile(ctx, idx, refPattern, paths[fileIdx])
			if err != nil {
				return err
			}
			results[fileIdx] = fp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for fileIdx, fp := range results {
		ps.Skipped = append(ps.Skipped, fp.skipped...)
		prof, ok := ps.profiles[fp.ref.Name]
		if !ok {
			ps.profiles[fp.ref.Name] = &Profile{Name: fp.ref.Name, Forward: fp.forward, Reverse: fp.reverse}
			continue
		}
		if prof.Width() != fp.ref.Width {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("pileup: %s declares width %d for reference %s, but an earlier file declared %d",
				paths[fileIdx], fp.ref.Width, fp.ref.Name, prof.Width()))
		}
		for i := range fp.forward {
			prof.Forward[i] += fp.forward[i]
			prof.Reverse[i] += fp.reverse[i]
		}
	}
	return ps, nil
}
