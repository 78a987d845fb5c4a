package interval

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/tagpile/util"
)

// PosType is the coordinate type used for interval boundaries.  It is signed
// since BED files occasionally carry negative starts (e.g. after a fixed-width
// extension around a summit near a chromosome end); those are reported as
// out-of-bounds downstream rather than rejected here.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// Strand is the orientation of an interval, stored as its BED character.
type Strand byte

const (
	// StrandFwd is the '+' strand.
	StrandFwd Strand = '+'
	// StrandRev is the '-' strand.
	StrandRev Strand = '-'
)

func (s Strand) String() string { return string(s) }

// bedNCol is the number of BED columns consumed: chrom, start, end, name,
// score, strand.  Trailing columns are ignored.
const bedNCol = 6

// Entry represents a single stranded interval, with 0-based coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
	Strand  Strand
}

// Len returns the number of bases in the interval.
func (e Entry) Len() int {
	return int(e.End) - int(e.Start0)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s:%d-%d(%v)", e.ChrName, e.Start0, e.End, e.Strand)
}

func isBEDHeader(line []byte) bool {
	return line[0] == '#' || bytes.HasPrefix(line, []byte("track")) || bytes.HasPrefix(line, []byte("browser"))
}

func parsePos(token []byte, lineIdx int, what string) (PosType, error) {
	v, err := strconv.ParseInt(gunsafe.BytesToString(token), 10, 32)
	if err != nil {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("interval.ReadStrandedBED: line %d: bad %s coordinate %q", lineIdx, what, token))
	}
	return PosType(v), nil
}

func scanStrandedBED(scanner *bufio.Scanner) (entries []Entry, err error) {
	var tokens [bedNCol][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := util.SplitFields(tokens[:], curLine)
		if nToken == 0 || isBEDHeader(tokens[0]) {
			continue
		}
		if nToken != bedNCol {
			err = errors.E(errors.Invalid, fmt.Sprintf("interval.ReadStrandedBED: line %d has %d column(s), expected at least %d", lineIdx, nToken, bedNCol))
			return
		}
		var e Entry
		if e.Start0, err = parsePos(tokens[1], lineIdx, "start"); err != nil {
			return
		}
		if e.End, err = parsePos(tokens[2], lineIdx, "end"); err != nil {
			return
		}
		if e.End < e.Start0 {
			err = errors.E(errors.Invalid, fmt.Sprintf("interval.ReadStrandedBED: line %d: end %d precedes start %d", lineIdx, e.End, e.Start0))
			return
		}
		strand := tokens[5]
		if len(strand) != 1 || (Strand(strand[0]) != StrandFwd && Strand(strand[0]) != StrandRev) {
			err = errors.E(errors.Invalid, fmt.Sprintf("interval.ReadStrandedBED: line %d: invalid strand %q", lineIdx, strand))
			return
		}
		e.Strand = Strand(strand[0])
		// tokens[0] aliases the scanner buffer, so the name must be copied.
		e.ChrName = string(tokens[0])
		entries = append(entries, e)
	}
	if err = scanner.Err(); err != nil {
		return
	}
	log.Debug.Printf("stranded BED loaded, %d interval(s)", len(entries))
	return
}

// ReadStrandedBED loads every interval from a 6-column BED, in file order.
// Intervals are not merged or sorted; each one contributes separately to a
// composite.
func ReadStrandedBED(reader io.Reader) ([]Entry, error) {
	return scanStrandedBED(bufio.NewScanner(reader))
}

// ReadStrandedBEDFromPath is a wrapper for ReadStrandedBED that takes a path
// instead of an io.Reader.  Gzipped BEDs are supported.
func ReadStrandedBEDFromPath(ctx context.Context, path string) (entries []Entry, err error) {
	err = util.ReadPath(ctx, path, func(r io.Reader) (err error) {
		entries, err = ReadStrandedBED(r)
		return
	})
	if err != nil {
		err = errors.E(err, path)
	}
	return
}
