package util

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// SplitFields identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.  The saved tokens alias curLine.
func SplitFields(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		// Simple loops beat the standard library split functions here, since we
		// never need more than a handful of columns.
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// ReadPath opens path and passes its contents to fn.  Gzipped inputs (as
// determined by fileio.DetermineType) are decompressed transparently.  Any
// error encountered while closing the file is returned if fn itself
// succeeded.
func ReadPath(ctx context.Context, path string, fn func(r io.Reader) error) (err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		gz, gerr := gzip.NewReader(reader)
		if gerr != nil {
			return errors.E(errors.Invalid, gerr, path)
		}
		defer func() {
			if cerr := gz.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		reader = gz
	}
	return fn(reader)
}
