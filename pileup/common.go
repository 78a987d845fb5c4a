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
	"time"

	"github.com/grailbio/tagpile/store"
)

// Opts holds the per-invocation settings of Run.
type Opts struct {
	// Control marks the sample as a control: its profiles are stored under
	// its sample ID (replacing earlier ones) and its target-condition is added
	// to the store's control set.
	Control bool
	// RefPattern parses interval file basenames.  Empty means
	// DefaultRefPattern.
	RefPattern string
	// SamplePattern parses the coverage index basename.  Empty means
	// DefaultSamplePattern.
	SamplePattern string
	// Layout is the store key order; see store.Layout.
	Layout store.Layout
	// LockTimeout bounds each wait for the store lock.  Zero waits
	// indefinitely.
	LockTimeout time.Duration
	// Parallelism is the maximum number of interval files accumulated at once;
	// 0 = runtime.NumCPU().
	Parallelism int
}

// DefaultOpts is the default Run configuration.
var DefaultOpts = Opts{
	RefPattern:    DefaultRefPattern,
	SamplePattern: DefaultSamplePattern,
	Layout:        store.LayoutByTarget,
	Parallelism:   0,
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
