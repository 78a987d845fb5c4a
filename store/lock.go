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
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/flock"
	"github.com/grailbio/base/log"
)

// Lock is an exclusive, advisory, cross-process lock on a lock file, built on
// flock.T.  Since flock locks belong to an open file description, two Lock
// values on the same path exclude each other even within one process.
//
// The kernel drops the lock when the holder exits, so a crashed holder never
// leaves a stale lock behind on a local filesystem.  The holder's PID is
// written into the lock file purely for diagnostics.
type Lock struct {
	path string
	fl   *flock.T
}

// NewLock returns an unlocked Lock on path.  The file is created on first
// acquisition and is never removed.
func NewLock(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire blocks until the lock is held.  If timeout is positive and the lock
// is still contended after that long, it gives up with a temporary
// errors.Timeout error, so callers may retry.  Cancellation of ctx also ends
// the wait, with errors.Canceled.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) error {
	if l.fl != nil {
		return errors.E(errors.Precondition, fmt.Sprintf("store: lock %s already held", l.path))
	}
	lockCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	// A flock.T abandoned by a canceled Lock releases itself asynchronously,
	// so every attempt gets its own.
	fl := flock.New(l.path)
	start := time.Now()
	if err := fl.Lock(lockCtx); err != nil {
		switch {
		case ctx.Err() != nil:
			return errors.E(errors.Canceled, ctx.Err(), "store: waiting for lock", l.path)
		case lockCtx.Err() == context.DeadlineExceeded:
			return errors.E(errors.Timeout, errors.Temporary,
				fmt.Sprintf("store: lock %s still held (by pid %s) after %v", l.path, readHolder(l.path), timeout))
		}
		return errors.E(err, "store: lock", l.path)
	}
	if waited := time.Since(start); waited > time.Second {
		log.Printf("store: acquired %s after %v", l.path, waited)
	}
	// Best effort; the lock is held regardless of whether this succeeds.
	ioutil.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0666) // nolint: errcheck
	l.fl = fl
	return nil
}

// Release drops the lock.  It is a no-op if the lock is not held.
func (l *Lock) Release() error {
	if l.fl == nil {
		return nil
	}
	fl := l.fl
	l.fl = nil
	if err := fl.Unlock(); err != nil {
		return errors.E(err, "store: release lock", l.path)
	}
	return nil
}

func readHolder(path string) string {
	b, err := ioutil.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(b)) == 0 {
		return "unknown"
	}
	return string(bytes.TrimSpace(b))
}
