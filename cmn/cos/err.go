// Package cos provides common low-level types and utilities for rankmesh.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"os"
	"sync"
	ratomic "sync/atomic"
	"syscall"

	"github.com/NVIDIA/rankmesh/cmn/debug"
	"github.com/NVIDIA/rankmesh/cmn/nlog"
)

// Errs aggregates distinct errors (e.g. several peer-fd close failures seen during
// Finalize) into a single error for one log line, deduplicating by message.
type Errs struct {
	errs []error
	cnt  int64
	mu   sync.Mutex
}

const maxErrs = 4

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			e.mu.Unlock()
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
	e.mu.Unlock()
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) JoinErr() (cnt int, err error) {
	if cnt = e.Cnt(); cnt > 0 {
		e.mu.Lock()
		err = errors.Join(e.errs...)
		e.mu.Unlock()
	}
	return
}

func (e *Errs) Error() (s string) {
	cnt := e.Cnt()
	if cnt == 0 {
		return
	}
	e.mu.Lock()
	err := e.errs[0]
	n := len(e.errs)
	e.mu.Unlock()
	if n > 1 {
		plural := "s"
		if n-1 == 1 {
			plural = ""
		}
		return fmt.Sprintf("%v (and %d more error%s)", err, n-1, plural)
	}
	return err.Error()
}

//
// IS-syscall helpers — used to classify a failed pipe read/write as peer closure
//

// retriable/terminal conn-style errors surfaced by os.Pipe-backed fds
func IsErrConnectionReset(err error) (yes bool) { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) (yes bool)      { return errors.Is(err, syscall.EPIPE) }

//
// Abnormal Termination — internal allocation/syscall failures are fatal
//

const fatalPrefix = "FATAL ERROR: "

func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	nlog.Errorf("%s", msg)
	nlog.Flush(true)
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
