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

package coverage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/tagpile/util"
)

// nHeaderLine is the number of leading .scidx lines that carry no counts.
const nHeaderLine = 2

// scidxNCol is the number of columns in a .scidx row: chromosome, 1-based
// position, forward count, reverse count.
const scidxNCol = 4

// strandCounts holds the two count columns of one chromosome.  Both slices
// have the chromosome's length and are indexed by 0-based position.
type strandCounts struct {
	fwd []int32
	rev []int32
}

// Index is a genome-wide, per-base, per-strand tag-count table.  It is built
// once and is read-only afterwards, so it may be shared by concurrent readers.
type Index struct {
	sizes  ChromSizes
	counts map[string]*strandCounts
}

// NewIndex allocates a zeroed Index covering every chromosome in sizes.
// Memory use is proportional to the total genome length.
func NewIndex(sizes ChromSizes) *Index {
	idx := &Index{
		sizes:  sizes,
		counts: make(map[string]*strandCounts, len(sizes)),
	}
	for chrom, size := range sizes {
		idx.counts[chrom] = &strandCounts{
			fwd: make([]int32, size),
			rev: make([]int32, size),
		}
	}
	return idx
}

// Sizes returns the chromosome-size table the index was built from.
func (idx *Index) Sizes() ChromSizes { return idx.sizes }

// Len returns the length of chrom, and whether chrom is known at all.
func (idx *Index) Len(chrom string) (int, bool) {
	size, ok := idx.sizes[chrom]
	return size, ok
}

// Forward returns the forward-strand counts of chrom, or nil if chrom is
// unknown.  The caller must not modify the returned slice.
func (idx *Index) Forward(chrom string) []int32 {
	if c := idx.counts[chrom]; c != nil {
		return c.fwd
	}
	return nil
}

// Reverse returns the reverse-strand counts of chrom, or nil if chrom is
// unknown.  The caller must not modify the returned slice.
func (idx *Index) Reverse(chrom string) []int32 {
	if c := idx.counts[chrom]; c != nil {
		return c.rev
	}
	return nil
}

// Set overwrites the counts at the 0-based position pos0 of chrom.
func (idx *Index) Set(chrom string, pos0 int, fwd, rev int32) error {
	c := idx.counts[chrom]
	if c == nil {
		return errors.E(errors.NotExist, fmt.Sprintf("coverage: unknown chromosome %s", chrom))
	}
	if pos0 < 0 || pos0 >= len(c.fwd) {
		return errors.E(errors.Invalid, fmt.Sprintf("coverage: position %d outside %s (length %d)", pos0+1, chrom, len(c.fwd)))
	}
	c.fwd[pos0] = fwd
	c.rev[pos0] = rev
	return nil
}

func parseCount(token []byte) (int32, error) {
	v, err := strconv.ParseInt(gunsafe.BytesToString(token), 10, 32)
	return int32(v), err
}

// ReadIndex builds an Index from a .scidx stream.  The first two lines are
// headers and are skipped; every subsequent line is
//   <chromosome>\t<1-based position>\t<forward count>\t<reverse count>
// Each row overwrites the counts at its position; positions that never appear
// stay zero.
func ReadIndex(r io.Reader, sizes ChromSizes) (*Index, error) {
	idx := NewIndex(sizes)
	scanner := bufio.NewScanner(r)
	var tokens [scidxNCol][]byte
	lineIdx := 0
	nRow := 0
	// The most recently seen chromosome is cached, since .scidx rows are
	// grouped by chromosome.
	var (
		lastChrom  []byte
		lastCounts *strandCounts
	)
	for scanner.Scan() {
		lineIdx++
		if lineIdx <= nHeaderLine {
			continue
		}
		curLine := scanner.Bytes()
		nToken := util.SplitFields(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		if nToken != scidxNCol {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("coverage.ReadIndex: line %d has %d column(s), expected %d", lineIdx, nToken, scidxNCol))
		}
		if lastCounts == nil || string(tokens[0]) != string(lastChrom) {
			lastCounts = idx.counts[gunsafe.BytesToString(tokens[0])]
			if lastCounts == nil {
				return nil, errors.E(errors.NotExist, fmt.Sprintf("coverage.ReadIndex: line %d: chromosome %s absent from size table", lineIdx, tokens[0]))
			}
			lastChrom = append(lastChrom[:0], tokens[0]...)
		}
		pos1, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("coverage.ReadIndex: line %d: bad position %q", lineIdx, tokens[1]))
		}
		if pos1 < 1 || pos1 > len(lastCounts.fwd) {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("coverage.ReadIndex: line %d: position %d outside %s (length %d)", lineIdx, pos1, lastChrom, len(lastCounts.fwd)))
		}
		fwd, err := parseCount(tokens[2])
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("coverage.ReadIndex: line %d: bad forward count %q", lineIdx, tokens[2]))
		}
		rev, err := parseCount(tokens[3])
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("coverage.ReadIndex: line %d: bad reverse count %q", lineIdx, tokens[3]))
		}
		lastCounts.fwd[pos1-1] = fwd
		lastCounts.rev[pos1-1] = rev
		nRow++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "coverage.ReadIndex")
	}
	log.Printf("coverage index loaded, %d row(s) across %d chromosome(s)", nRow, len(sizes))
	return idx, nil
}

// ReadIndexFromPath is a wrapper for ReadIndex that takes a path instead of
// an io.Reader.  Gzipped .scidx files are supported.
func ReadIndexFromPath(ctx context.Context, path string, sizes ChromSizes) (idx *Index, err error) {
	err = util.ReadPath(ctx, path, func(r io.Reader) (err error) {
		idx, err = ReadIndex(r, sizes)
		return
	})
	if err != nil {
		err = errors.E(err, path)
	}
	return
}
