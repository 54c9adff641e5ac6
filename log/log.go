// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides a minimal leveled, key-value logger used across the
// library. Callers plug in their own implementation through the Logger
// interface; a stdlib-backed logger is provided for the default case.
package log

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// DefaultMessageKey is the key under which formatted messages are logged.
var DefaultMessageKey = "msg"

// Logger is the logging abstraction accepted by the library.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

type stdLogger struct {
	log  *log.Logger
	pool *sync.Pool
}

// NewStdLogger returns a Logger writing one line per entry to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{
		log: log.New(w, "", 0),
		pool: &sync.Pool{
			New: func() interface{} {
				return new(buffer)
			},
		},
	}
}

type buffer struct {
	buf []byte
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if (len(keyvals) & 1) == 1 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	b := l.pool.Get().(*buffer)
	defer l.pool.Put(b)
	b.buf = b.buf[:0]

	b.buf = append(b.buf, level.String()...)
	for i := 0; i < len(keyvals); i += 2 {
		b.buf = append(b.buf, ' ')
		b.buf = append(b.buf, fmt.Sprintf("%s=%v", keyvals[i], keyvals[i+1])...)
	}
	l.log.Output(4, string(b.buf)) //nolint:errcheck
	return nil
}
