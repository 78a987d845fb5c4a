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

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/tagpile/store"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestView(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	st := store.Open(filepath.Join(tmpdir, "composite.rio"), store.DefaultOpts)
	assert.NoError(t, st.Update(ctx, func(txn *store.Txn) error {
		if err := txn.WriteLeaf("Reb1-WT/1/peakA", []int64{0, 3}, []int64{1, 0}, store.WriteOnce); err != nil {
			return err
		}
		if err := txn.WriteLeaf("Input-WT/12150/peakA", []int64{5, 0}, []int64{0, 7}, store.Overwrite); err != nil {
			return err
		}
		return txn.MarkControl("Input-WT")
	}))

	var buf bytes.Buffer
	assert.NoError(t, writeLeaves(ctx, st, &buf))
	expect.EQ(t, buf.String(), "PATH\tOFFSET\tFORWARD\tREVERSE\n"+
		"Input-WT/12150/peakA\t0\t5\t0\n"+
		"Input-WT/12150/peakA\t1\t0\t7\n"+
		"Reb1-WT/1/peakA\t0\t0\t1\n"+
		"Reb1-WT/1/peakA\t1\t3\t0\n")

	buf.Reset()
	assert.NoError(t, writeChecksums(ctx, st, &buf))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.EQ(t, len(lines), 3)
	expect.EQ(t, lines[0], "PATH\tWIDTH\tSEAHASH")
	input := strings.Split(lines[1], "\t")
	reb1 := strings.Split(lines[2], "\t")
	expect.EQ(t, input[:2], []string{"Input-WT/12150/peakA", "2"})
	expect.EQ(t, reb1[:2], []string{"Reb1-WT/1/peakA", "2"})
	expect.EQ(t, len(input[2]), 16)
	expect.True(t, input[2] != reb1[2])

	buf.Reset()
	assert.NoError(t, writeControls(ctx, st, &buf))
	expect.EQ(t, buf.String(), "Input-WT\n")
}
