// Package nlog is rankmesh's logger: timestamped, leveled, with
// size-based rotation when writing to a file.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	lineSize = 2 * 1024
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{'I', 'W', 'E'}

var (
	MaxSize int64 = 4 * 1024 * 1024

	toStderr     bool
	alsoToStderr bool

	title string
	tag   string // SetTag: prefixed to every line, e.g. the rank's session id

	mu      sync.Mutex
	file    *os.File
	written atomic.Int64

	pool = sync.Pool{New: func() any { return make([]byte, 0, lineSize) }}
)

// InitFlags registers the logger's command-line flags on flset, mirroring the
// teacher's -logtostderr/-alsologtostderr pair.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", true, "log to standard error instead of a file")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as a file")
}

// SetTitle sets a line written once, at file-open or rotation time.
func SetTitle(s string) { title = s }

// SetTag prefixes every subsequent log line with tag (e.g. "rank[2]").
func SetTag(s string) { tag = s }

// SetOutput directs file-backed output at path; pass "" to drop file output. Without
// a file, info lines reach stderr only when logtostderr or alsologtostderr is set;
// warnings and errors always do.
func SetOutput(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	file = f
	written.Store(0)
	if title != "" {
		f.WriteString(title + "\n")
	}
	return nil
}

func Infof(format string, args ...any)    { log(sevInfo, 1, format, args...) }
func Warningf(format string, args ...any) { log(sevWarn, 1, format, args...) }
func Errorf(format string, args ...any)   { log(sevErr, 1, format, args...) }
func Infoln(args ...any)                  { log(sevInfo, 1, "", args...) }
func Warningln(args ...any)               { log(sevWarn, 1, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 1, "", args...) }

// Flush syncs the open log file, if any, to disk. Writes are unbuffered past the
// per-line scratch buffer, so there is nothing else to flush; with no file open it
// does nothing.
func Flush(...bool) {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Sync()
	}
}

func log(sev severity, depth int, format string, args ...any) {
	buf := pool.Get().([]byte)[:0]
	buf = formatHdr(sev, depth+1, buf)
	if format == "" {
		buf = appendSprintln(buf, args...)
	} else {
		buf = fmt.Appendf(buf, format, args...)
		if len(buf) == 0 || buf[len(buf)-1] != '\n' {
			buf = append(buf, '\n')
		}
	}

	mu.Lock()
	if toStderr || (alsoToStderr || sev >= sevWarn) {
		os.Stderr.Write(buf)
	}
	if !toStderr && file != nil {
		n, err := file.Write(buf)
		if err == nil {
			if written.Add(int64(n)) >= MaxSize {
				rotate()
			}
		}
	}
	mu.Unlock()

	//nolint:staticcheck // pool.Put of a slice header is intentional here
	pool.Put(buf[:0])
}

// under mu
func rotate() {
	if file == nil {
		return
	}
	dir := filepath.Dir(file.Name())
	base := strings.TrimSuffix(filepath.Base(file.Name()), ".log")
	file.Close()
	next := filepath.Join(dir, fmt.Sprintf("%s.%d.log", base, time.Now().UnixNano()))
	if err := os.Rename(filepath.Join(dir, base+".log"), next); err != nil {
		// best effort; keep logging to a fresh file regardless
	}
	f, err := os.OpenFile(filepath.Join(dir, base+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		file = nil
		return
	}
	file = f
	written.Store(0)
}

func formatHdr(s severity, depth int, buf []byte) []byte {
	_, fn, ln, ok := runtime.Caller(2 + depth)
	if ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
	}
	buf = append(buf, sevChar[s], ' ')
	buf = append(buf, time.Now().Format("15:04:05.000000")...)
	buf = append(buf, ' ')
	if tag != "" {
		buf = append(buf, '[')
		buf = append(buf, tag...)
		buf = append(buf, ']', ' ')
	}
	if ok {
		buf = append(buf, fn...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(ln), 10)
		buf = append(buf, ' ')
	}
	return buf
}

func appendSprintln(buf []byte, args ...any) []byte {
	s := fmt.Sprintln(args...)
	return append(buf, s...)
}
