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
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// waitStep is long enough for a contended flock attempt to be in progress.
const waitStep = 100 * time.Millisecond

func TestLockExcludes(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	path := filepath.Join(tmpdir, "store.lock")

	a, b := NewLock(path), NewLock(path)
	assert.NoError(t, a.Acquire(ctx, 0))

	data, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	expect.EQ(t, strings.TrimSpace(string(data)), strconv.Itoa(os.Getpid()))

	err = a.Acquire(ctx, 0)
	expect.True(t, errors.Is(errors.Precondition, err), "%v", err)

	err = b.Acquire(ctx, 2*waitStep)
	expect.True(t, errors.Is(errors.Timeout, err), "%v", err)
	expect.True(t, errors.IsTemporary(err), "%v", err)
	expect.HasSubstr(t, err.Error(), strconv.Itoa(os.Getpid()))

	assert.NoError(t, a.Release())
	assert.NoError(t, a.Release())
	assert.NoError(t, b.Acquire(ctx, time.Second))
	assert.NoError(t, b.Release())
}

func TestLockWaitsForRelease(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	path := filepath.Join(tmpdir, "store.lock")

	a := NewLock(path)
	assert.NoError(t, a.Acquire(ctx, 0))
	go func() {
		time.Sleep(3 * waitStep)
		a.Release() // nolint: errcheck
	}()
	b := NewLock(path)
	assert.NoError(t, b.Acquire(ctx, 0))
	assert.NoError(t, b.Release())
}

func TestLockCanceled(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "store.lock")

	a := NewLock(path)
	assert.NoError(t, a.Acquire(vcontext.Background(), 0))
	defer a.Release() // nolint: errcheck

	ctx, cancel := context.WithTimeout(vcontext.Background(), 2*waitStep)
	defer cancel()
	err := NewLock(path).Acquire(ctx, 0)
	expect.True(t, errors.Is(errors.Canceled, err), "%v", err)
}
