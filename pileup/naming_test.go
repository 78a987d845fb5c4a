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
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestRefPattern(t *testing.T) {
	p, err := NewRefPattern("")
	assert.NoError(t, err)

	tests := []struct {
		path string
		want RefInfo
	}{
		{"peakA_4bp.bed", RefInfo{"peakA", 4}},
		{"/data/beds/Reb1_sites_40bp.bed.gz", RefInfo{"Reb1_sites", 40}},
	}
	for _, tt := range tests {
		got, err := p.Parse(tt.path)
		assert.NoError(t, err, tt.path)
		expect.EQ(t, got, tt.want)
	}

	for _, bad := range []string{"peakA.bed", "peakA_0bp.bed", "_4bp.bed", "peakA_4bp.txt"} {
		_, err := p.Parse(bad)
		expect.True(t, errors.Is(errors.Invalid, err), "%s: %v", bad, err)
	}
}

func TestSamplePattern(t *testing.T) {
	p, err := NewSamplePattern("")
	assert.NoError(t, err)
	got, err := p.Parse("/scidx/12141_Reb1_i5006_BY4741_-_YPD_Heat15min_XO_FilteredBAM.scidx")
	assert.NoError(t, err)
	expect.EQ(t, got, SampleInfo{ID: "12141", Target: "Reb1", Condition: "Heat15min"})
	expect.EQ(t, got.TargetCondition(), "Reb1-Heat15min")

	_, err = p.Parse("sample.scidx")
	expect.True(t, errors.Is(errors.Invalid, err), "%v", err)

	custom, err := NewSamplePattern(`^(\w+)\.(\w+)\.(\w+)\.scidx`)
	assert.NoError(t, err)
	got, err = custom.Parse("7.Abf1.WT.scidx")
	assert.NoError(t, err)
	expect.EQ(t, got.TargetCondition(), "Abf1-WT")
}

func TestPatternGroupCount(t *testing.T) {
	_, err := NewRefPattern(`^(.+)\.bed`)
	expect.True(t, errors.Is(errors.Invalid, err), "%v", err)
	_, err = NewSamplePattern(`^(\d+)_(.+)`)
	expect.True(t, errors.Is(errors.Invalid, err), "%v", err)
	_, err = NewRefPattern(`(`)
	expect.True(t, errors.Is(errors.Invalid, err), "%v", err)
}
