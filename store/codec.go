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

package store

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

const (
	// layoutHeader is the recordio header key recording the store Layout.
	layoutHeader = "layout"
	// formatHeader is the recordio header key recording the record encoding.
	formatHeader  = "format"
	formatVersion = "tagpile-store-1"
)

const (
	flagArrays byte = 1 << iota
	flagReplicate
)

func init() {
	recordiozstd.Init()
}

// Node record encoding, all integers varint-encoded:
//   kind (1 byte) | len(path) | path
//   kindGroup: flags (1 byte) [| n | forward[0..n) | reverse[0..n)]
//              flags: flagArrays, flagReplicate
//   kindSet:   n | n x (len | bytes)
// Counts are small and mostly zero, so varints followed by zstd keep the
// file compact.

func marshalNode(scratch []byte, v interface{}) ([]byte, error) {
	n := v.(*node)
	t := scratch[:0]
	var buf [binary.MaxVarintLen64]byte
	putUvarint := func(x uint64) {
		t = append(t, buf[:binary.PutUvarint(buf[:], x)]...)
	}
	putVarint := func(x int64) {
		t = append(t, buf[:binary.PutVarint(buf[:], x)]...)
	}
	t = append(t, byte(n.kind))
	putUvarint(uint64(len(n.path)))
	t = append(t, n.path...)
	switch n.kind {
	case kindGroup:
		var flags byte
		if n.replicate {
			flags |= flagReplicate
		}
		if !n.hasArrays {
			t = append(t, flags)
			break
		}
		t = append(t, flags|flagArrays)
		putUvarint(uint64(len(n.forward)))
		for _, x := range n.forward {
			putVarint(x)
		}
		for _, x := range n.reverse {
			putVarint(x)
		}
	case kindSet:
		putUvarint(uint64(len(n.members)))
		for _, m := range n.members {
			putUvarint(uint64(len(m)))
			t = append(t, m...)
		}
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("store: %s: unknown node kind %d", n.path, n.kind))
	}
	return t, nil
}

// nodeDecoder reads the fields of one marshaled node, remembering the first
// error.
type nodeDecoder struct {
	in  []byte
	err error
}

func (d *nodeDecoder) fail(what string) {
	if d.err == nil {
		d.err = errors.E(errors.Integrity, fmt.Sprintf("store: corrupt node record (%s)", what))
	}
}

func (d *nodeDecoder) readByte() byte {
	if d.err != nil || len(d.in) < 1 {
		d.fail("truncated")
		return 0
	}
	b := d.in[0]
	d.in = d.in[1:]
	return b
}

func (d *nodeDecoder) readUvarint() uint64 {
	if d.err != nil {
		return 0
	}
	x, n := binary.Uvarint(d.in)
	if n <= 0 {
		d.fail("bad uvarint")
		return 0
	}
	d.in = d.in[n:]
	return x
}

func (d *nodeDecoder) readVarint() int64 {
	if d.err != nil {
		return 0
	}
	x, n := binary.Varint(d.in)
	if n <= 0 {
		d.fail("bad varint")
		return 0
	}
	d.in = d.in[n:]
	return x
}

func (d *nodeDecoder) readString() string {
	l := d.readUvarint()
	if d.err != nil || uint64(len(d.in)) < l {
		d.fail("truncated string")
		return ""
	}
	s := string(d.in[:l])
	d.in = d.in[l:]
	return s
}

// readInt64s decodes n varints.  Each varint takes at least one byte, which
// bounds n before anything is allocated.
func (d *nodeDecoder) readInt64s(n uint64) []int64 {
	if d.err != nil || uint64(len(d.in)) < n {
		d.fail("truncated array")
		return nil
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = d.readVarint()
	}
	return out
}

func unmarshalNode(in []byte) (interface{}, error) {
	d := nodeDecoder{in: in}
	n := &node{kind: nodeKind(d.readByte())}
	n.path = d.readString()
	switch n.kind {
	case kindGroup:
		flags := d.readByte()
		n.replicate = flags&flagReplicate != 0
		if flags&flagArrays != 0 {
			n.hasArrays = true
			l := d.readUvarint()
			n.forward = d.readInt64s(l)
			n.reverse = d.readInt64s(l)
		}
	case kindSet:
		l := d.readUvarint()
		if d.err == nil && uint64(len(d.in)) < l {
			d.fail("truncated set")
		}
		for i := uint64(0); i < l && d.err == nil; i++ {
			n.members = append(n.members, d.readString())
		}
	default:
		d.fail(fmt.Sprintf("unknown kind %d", n.kind))
	}
	if d.err == nil && len(d.in) != 0 {
		d.fail("trailing bytes")
	}
	if d.err != nil {
		return nil, d.err
	}
	return n, nil
}

// writeTree serializes t, in path order, to w.
func writeTree(w io.Writer, t *tree, layout Layout) error {
	rw := recordio.NewWriter(w, recordio.WriterOpts{
		Marshal:      marshalNode,
		Transformers: []string{recordiozstd.Name},
	})
	rw.AddHeader(formatHeader, formatVersion)
	rw.AddHeader(layoutHeader, string(layout))
	t.do(func(n *node) bool {
		rw.Append(n)
		return true
	})
	return rw.Finish()
}

// readTree deserializes a tree written by writeTree.
func readTree(rs io.ReadSeeker) (*tree, Layout, error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshalNode,
	})
	defer scanner.Finish() // nolint: errcheck
	var (
		layout Layout
		format string
	)
	for _, kv := range scanner.Header() {
		switch kv.Key {
		case layoutHeader:
			layout = Layout(kv.Value.(string))
		case formatHeader:
			format = kv.Value.(string)
		}
		// Other keys are ignored; recordio adds its own (e.g. transformers).
	}
	if err := scanner.Err(); err != nil {
		return nil, layout, err
	}
	if format != formatVersion {
		return nil, layout, errors.E(errors.Precondition, fmt.Sprintf("store: unrecognized store format %q, want %q", format, formatVersion))
	}
	t := &tree{}
	for scanner.Scan() {
		t.nodes.Insert(scanner.Get().(*node))
	}
	if err := scanner.Err(); err != nil {
		return nil, layout, err
	}
	return t, layout, nil
}
