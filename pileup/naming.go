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
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/grailbio/base/errors"
)

const (
	// DefaultRefPattern extracts (reference name, element width) from an
	// interval file basename such as "Reb1_40bp.bed".
	DefaultRefPattern = `^(.+)_(\d+)bp\.bed`
	// DefaultSamplePattern extracts (sample ID, target, condition) from a
	// coverage index basename.
	DefaultSamplePattern = `^(\d+)_(.+?)_i5006_BY4741_-_YPD_(.+?)_XO_FilteredBAM`
)

// RefInfo is the metadata encoded in an interval file name.
type RefInfo struct {
	// Name is the reference name, shared by every file contributing to one
	// composite profile.
	Name string
	// Width is the number of bases in every interval of the file.
	Width int
}

// SampleInfo is the metadata encoded in a coverage index file name.
type SampleInfo struct {
	ID        string
	Target    string
	Condition string
}

// TargetCondition returns "<target>-<condition>", the top-level grouping key
// of the store.
func (s SampleInfo) TargetCondition() string {
	return s.Target + "-" + s.Condition
}

func compileGroups(what, pattern string, nGroup int) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("pileup: bad %s pattern %q", what, pattern), err)
	}
	if re.NumSubexp() != nGroup {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("pileup: %s pattern %q has %d capture group(s), expected %d", what, pattern, re.NumSubexp(), nGroup))
	}
	return re, nil
}

// RefPattern parses interval file names.
type RefPattern struct {
	re *regexp.Regexp
}

// NewRefPattern compiles pattern, which must have exactly two capture groups:
// the reference name and the decimal element width.  An empty pattern means
// DefaultRefPattern.
func NewRefPattern(pattern string) (*RefPattern, error) {
	if pattern == "" {
		pattern = DefaultRefPattern
	}
	re, err := compileGroups("reference", pattern, 2)
	if err != nil {
		return nil, err
	}
	return &RefPattern{re: re}, nil
}

// Parse extracts the reference metadata from path's basename.
func (p *RefPattern) Parse(path string) (RefInfo, error) {
	base := filepath.Base(path)
	m := p.re.FindStringSubmatch(base)
	if m == nil {
		return RefInfo{}, errors.E(errors.Invalid, fmt.Sprintf("pileup: interval file name %q does not match %q", base, p.re))
	}
	width, err := strconv.Atoi(m[2])
	if err != nil || width < 1 {
		return RefInfo{}, errors.E(errors.Invalid, fmt.Sprintf("pileup: interval file name %q has invalid width %q", base, m[2]))
	}
	if m[1] == "" {
		return RefInfo{}, errors.E(errors.Invalid, fmt.Sprintf("pileup: interval file name %q has an empty reference name", base))
	}
	return RefInfo{Name: m[1], Width: width}, nil
}

// SamplePattern parses coverage index file names.
type SamplePattern struct {
	re *regexp.Regexp
}

// NewSamplePattern compiles pattern, which must have exactly three capture
// groups: sample ID, target and condition.  An empty pattern means
// DefaultSamplePattern.
func NewSamplePattern(pattern string) (*SamplePattern, error) {
	if pattern == "" {
		pattern = DefaultSamplePattern
	}
	re, err := compileGroups("sample", pattern, 3)
	if err != nil {
		return nil, err
	}
	return &SamplePattern{re: re}, nil
}

// Parse extracts the sample metadata from path's basename.
func (p *SamplePattern) Parse(path string) (SampleInfo, error) {
	base := filepath.Base(path)
	m := p.re.FindStringSubmatch(base)
	if m == nil {
		return SampleInfo{}, errors.E(errors.Invalid, fmt.Sprintf("pileup: coverage index name %q does not match %q", base, p.re))
	}
	info := SampleInfo{ID: m[1], Target: m[2], Condition: m[3]}
	if info.ID == "" || info.Target == "" || info.Condition == "" {
		return SampleInfo{}, errors.E(errors.Invalid, fmt.Sprintf("pileup: coverage index name %q has an empty field", base))
	}
	return info, nil
}
