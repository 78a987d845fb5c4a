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

// bio-tag-pileup-view prints the contents of a bio-tag-pileup store as TSV.
//
// By default every leaf is printed one offset per line:
//   PATH	OFFSET	FORWARD	REVERSE
// With -controls, the store's control set is printed instead, one
// target-condition per line.  With -checksum, each leaf is reduced to one
// line holding its width and a seahash of its arrays, which makes identical
// profiles easy to spot across replicates or stores.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/tagpile/store"
	"github.com/pkg/errors"
)

var (
	controlsOnly = flag.Bool("controls", false, "Print the control set instead of the profiles")
	checksum     = flag.Bool("checksum", false, "Print one checksum per leaf instead of its values")
)

func writeLeaves(ctx context.Context, st *store.Store, w io.Writer) error {
	out := tsv.NewWriter(w)
	out.WriteString("PATH\tOFFSET\tFORWARD\tREVERSE")
	if err := out.EndLine(); err != nil {
		return err
	}
	err := st.View(ctx, func(txn *store.Txn) error {
		return txn.Walk(func(path string, forward, reverse []int64) error {
			for i := range forward {
				out.WriteString(path)
				out.WriteInt64(int64(i))
				out.WriteInt64(forward[i])
				out.WriteInt64(reverse[i])
				if err := out.EndLine(); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	return out.Flush()
}

func writeChecksums(ctx context.Context, st *store.Store, w io.Writer) error {
	out := tsv.NewWriter(w)
	out.WriteString("PATH\tWIDTH\tSEAHASH")
	if err := out.EndLine(); err != nil {
		return err
	}
	h := seahash.New()
	var buf [8]byte
	err := st.View(ctx, func(txn *store.Txn) error {
		return txn.Walk(func(path string, forward, reverse []int64) error {
			h.Reset()
			for _, arr := range [][]int64{forward, reverse} {
				for _, v := range arr {
					binary.LittleEndian.PutUint64(buf[:], uint64(v))
					h.Write(buf[:]) // nolint: errcheck
				}
			}
			out.WriteString(path)
			out.WriteInt64(int64(len(forward)))
			out.WriteString(fmt.Sprintf("%016x", h.Sum64()))
			return out.EndLine()
		})
	})
	if err != nil {
		return err
	}
	return out.Flush()
}

func writeControls(ctx context.Context, st *store.Store, w io.Writer) error {
	controls, err := st.Controls(ctx)
	if err != nil {
		return err
	}
	out := tsv.NewWriter(w)
	for _, c := range controls {
		out.WriteString(c)
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-controls|-checksum] storepath\n", os.Args[0])
		flag.PrintDefaults()
	}
	shutdown := grail.Init()
	defer shutdown()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	ctx := vcontext.Background()
	// The layout is taken from the store itself.
	st := store.Open(flag.Arg(0), store.Opts{})
	w := bufio.NewWriter(os.Stdout)
	var err error
	switch {
	case *controlsOnly && *checksum:
		log.Fatalf("-controls and -checksum are mutually exclusive")
	case *controlsOnly:
		err = writeControls(ctx, st, w)
	case *checksum:
		err = writeChecksums(ctx, st, w)
	default:
		err = writeLeaves(ctx, st, w)
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		log.Fatalf("%v", errors.Wrapf(err, "bio-tag-pileup-view %s", flag.Arg(0)))
	}
}
