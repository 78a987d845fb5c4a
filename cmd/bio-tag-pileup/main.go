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
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/tagpile/pileup"
	"github.com/grailbio/tagpile/store"
	"github.com/pkg/errors"
)

var (
	control       = flag.Bool("control", pileup.DefaultOpts.Control, "Store the sample as a control: under its sample ID, replacing earlier runs, with its target-condition added to the control set")
	refPattern    = flag.String("ref-pattern", pileup.DefaultOpts.RefPattern, "Regexp applied to BED basenames; must capture (reference name, width)")
	samplePattern = flag.String("sample-pattern", pileup.DefaultOpts.SamplePattern, "Regexp applied to the .scidx basename; must capture (sample ID, target, condition)")
	layout        = flag.String("layout", string(pileup.DefaultOpts.Layout), "Key order of a new store; 'by-target' (target-condition/replicate/reference) or 'by-reference' (reference/target-condition/replicate)")
	lockTimeout   = flag.Duration("lock-timeout", pileup.DefaultOpts.LockTimeout, "Give up waiting for the store lock after this long; 0 = wait indefinitely")
	parallelism   = flag.Int("parallelism", pileup.DefaultOpts.Parallelism, "Maximum number of BED files to accumulate simultaneously; 0 = runtime.NumCPU()")
)

func bioTagPileupUsage() {
	fmt.Printf("Usage: %s [OPTIONS] scidxpath bedlistpath chromsizespath storepath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioTagPileupUsage
	shutdown := grail.Init()
	defer shutdown()

	positionalArgs := flag.Args()
	if nPositionalArgs := len(positionalArgs); nPositionalArgs != 4 {
		log.Fatalf("Expected 4 positional arguments (scidxpath, bedlistpath, chromsizespath, storepath), got %d; please check flag syntax: '%s'",
			nPositionalArgs, strings.Join(positionalArgs, " "))
	}
	storeLayout, err := store.ParseLayout(*layout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := vcontext.Background()
	opts := pileup.Opts{
		Control:       *control,
		RefPattern:    *refPattern,
		SamplePattern: *samplePattern,
		Layout:        storeLayout,
		LockTimeout:   *lockTimeout,
		Parallelism:   *parallelism,
	}
	res, err := pileup.Run(ctx, positionalArgs[0], positionalArgs[1], positionalArgs[2], positionalArgs[3], &opts)
	if err != nil {
		log.Fatalf("%v", errors.Wrapf(err, "bio-tag-pileup %s", positionalArgs[0]))
	}
	for _, s := range res.Skipped {
		log.Debug.Printf("skipped %v", s)
	}
	log.Printf("%s (%s): wrote %d profile(s), skipped %d out-of-bounds interval(s)",
		res.Sample.ID, res.Sample.TargetCondition(), len(res.Written), len(res.Skipped))
}
