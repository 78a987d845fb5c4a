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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/tagpile/coverage"
	"github.com/grailbio/tagpile/interval"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, data string) {
	ctx := vcontext.Background()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	out, err := file.Create(ctx, path)
	require.NoError(t, err)
	_, err = out.Writer(ctx).Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, out.Close(ctx))
}

// rampIndex returns an index over one 10-base chromosome, chrI, whose
// forward count at 0-based position p is p and whose reverse count is 100+p.
func rampIndex(t *testing.T) *coverage.Index {
	idx := coverage.NewIndex(coverage.ChromSizes{"chrI": 10})
	for p := 0; p < 10; p++ {
		require.NoError(t, idx.Set("chrI", p, int32(p), int32(100+p)))
	}
	return idx
}

func TestAccumulateStrands(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	plus := filepath.Join(tmpdir, "plus_3bp.bed")
	writeFile(t, plus, "chrI\t2\t5\t.\t.\t+\n")
	minus := filepath.Join(tmpdir, "minus_3bp.bed")
	writeFile(t, minus, "chrI\t2\t5\t.\t.\t-\n")

	ps, err := Accumulate(ctx, rampIndex(t), []string{plus, minus}, &DefaultOpts)
	require.NoError(t, err)
	assert.Equal(t, []string{"minus", "plus"}, ps.Names())
	assert.Empty(t, ps.Skipped)

	p := ps.Get("plus")
	assert.Equal(t, []int64{2, 3, 4}, p.Forward)
	assert.Equal(t, []int64{102, 103, 104}, p.Reverse)

	// Minus-strand windows are read from the 3' end with the strands swapped.
	m := ps.Get("minus")
	assert.Equal(t, []int64{104, 103, 102}, m.Forward)
	assert.Equal(t, []int64{4, 3, 2}, m.Reverse)
}

func TestAccumulateOutOfBounds(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	// Start 0 and end 10 (== size) both touch an excluded position; the last
	// in-bounds window is [6, 9).
	path := filepath.Join(tmpdir, "edge_3bp.bed")
	writeFile(t, path, strings.Join([]string{
		"chrI\t0\t3\t.\t.\t+",
		"chrI\t7\t10\t.\t.\t-",
		"chrI\t-2\t1\t.\t.\t+",
		"chrI\t6\t9\t.\t.\t+",
		"chrI\t1\t4\t.\t.\t+",
	}, "\n")+"\n")

	ps, err := Accumulate(ctx, rampIndex(t), []string{path}, &DefaultOpts)
	require.NoError(t, err)
	require.Len(t, ps.Skipped, 3)
	assert.Equal(t, interval.Entry{ChrName: "chrI", Start0: 0, End: 3, Strand: interval.StrandFwd}, ps.Skipped[0].Entry)
	assert.Equal(t, path, ps.Skipped[0].Path)
	assert.Equal(t, interval.PosType(7), ps.Skipped[1].Entry.Start0)
	assert.Equal(t, interval.PosType(-2), ps.Skipped[2].Entry.Start0)

	edge := ps.Get("edge")
	assert.Equal(t, []int64{6 + 1, 7 + 2, 8 + 3}, edge.Forward)
	assert.Equal(t, []int64{106 + 101, 107 + 102, 108 + 103}, edge.Reverse)
}

func TestAccumulateErrors(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	unknown := filepath.Join(tmpdir, "unknown_3bp.bed")
	writeFile(t, unknown, "chrI\t2\t5\t.\t.\t+\nchrXV\t2\t5\t.\t.\t+\n")
	_, err := Accumulate(ctx, rampIndex(t), []string{unknown}, &DefaultOpts)
	assert.True(t, errors.Is(errors.NotExist, err), "%v", err)

	wrongWidth := filepath.Join(tmpdir, "wide_3bp.bed")
	writeFile(t, wrongWidth, "chrI\t2\t6\t.\t.\t+\n")
	_, err = Accumulate(ctx, rampIndex(t), []string{wrongWidth}, &DefaultOpts)
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)

	a := filepath.Join(tmpdir, "a", "peak_3bp.bed")
	writeFile(t, a, "chrI\t2\t5\t.\t.\t+\n")
	b := filepath.Join(tmpdir, "b", "peak_4bp.bed")
	writeFile(t, b, "chrI\t2\t6\t.\t.\t+\n")
	_, err = Accumulate(ctx, rampIndex(t), []string{a, b}, &DefaultOpts)
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)

	badName := filepath.Join(tmpdir, "peak.bed")
	writeFile(t, badName, "chrI\t2\t5\t.\t.\t+\n")
	_, err = Accumulate(ctx, rampIndex(t), []string{badName}, &DefaultOpts)
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
}

func TestAccumulateParallelismInvariant(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	var paths []string
	for i := 0; i < 12; i++ {
		// Three references, each split over four files in different
		// directories.
		path := filepath.Join(tmpdir, fmt.Sprint(i), fmt.Sprintf("ref%d_2bp.bed", i%3))
		strand := "+"
		if i%2 == 1 {
			strand = "-"
		}
		writeFile(t, path, fmt.Sprintf("chrI\t%d\t%d\t.\t.\t%s\n", 1+i%7, 3+i%7, strand))
		paths = append(paths, path)
	}
	idx := rampIndex(t)

	serialOpts := DefaultOpts
	serialOpts.Parallelism = 1
	want, err := Accumulate(ctx, idx, paths, &serialOpts)
	require.NoError(t, err)
	require.Equal(t, 3, want.Len())

	for _, parallelism := range []int{2, 5, 12, 64} {
		opts := DefaultOpts
		opts.Parallelism = parallelism
		got, err := Accumulate(ctx, idx, paths, &opts)
		require.NoError(t, err)
		assert.Equal(t, want.Names(), got.Names())
		for _, name := range want.Names() {
			assert.Equal(t, want.Get(name), got.Get(name), "parallelism %d, %s", parallelism, name)
		}
	}
}

func TestAccumulateNoFiles(t *testing.T) {
	ps, err := Accumulate(vcontext.Background(), rampIndex(t), nil, &DefaultOpts)
	require.NoError(t, err)
	assert.Equal(t, 0, ps.Len())
	assert.Empty(t, ps.Names())
}
