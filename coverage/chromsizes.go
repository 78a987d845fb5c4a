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

// Package coverage holds per-base, per-strand raw tag counts (a "coverage
// index", read from .scidx files) for every chromosome of a genome, along
// with the chromosome-size table that bounds them.
package coverage

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/tagpile/util"
)

// ChromSizes maps a chromosome name to its length in bases.
type ChromSizes map[string]int

// chromSizeRow is one line of a chrom.sizes file.
type chromSizeRow struct {
	Chrom  string
	Length int
}

// Names returns the chromosome names in lexicographic order.
func (s ChromSizes) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadChromSizes parses a chrom.sizes table: one "<chromosome>\t<length>" pair
// per line.  Lengths must be positive and each chromosome may appear only
// once.
func ReadChromSizes(r io.Reader) (ChromSizes, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	sizes := ChromSizes{}
	for lineIdx := 1; ; lineIdx++ {
		var row chromSizeRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("coverage.ReadChromSizes: row %d", lineIdx))
		}
		if row.Length <= 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("coverage.ReadChromSizes: row %d: non-positive length %d for %s", lineIdx, row.Length, row.Chrom))
		}
		if _, found := sizes[row.Chrom]; found {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("coverage.ReadChromSizes: row %d: duplicate chromosome %s", lineIdx, row.Chrom))
		}
		sizes[row.Chrom] = row.Length
	}
	if len(sizes) == 0 {
		return nil, errors.E(errors.Invalid, "coverage.ReadChromSizes: empty chromosome-size table")
	}
	return sizes, nil
}

// ReadChromSizesFromPath is a wrapper for ReadChromSizes that takes a path
// instead of an io.Reader.
func ReadChromSizesFromPath(ctx context.Context, path string) (sizes ChromSizes, err error) {
	err = util.ReadPath(ctx, path, func(r io.Reader) (err error) {
		sizes, err = ReadChromSizes(r)
		return
	})
	if err != nil {
		err = errors.E(err, path)
	}
	return
}
