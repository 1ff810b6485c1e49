// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/distfs/govfs/cfg"
)

func newLumberjack(path string, rc cfg.LogRotateLoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rc.MaxFileSizeMb,
		MaxBackups: rc.BackupFileCount,
		Compress:   rc.Compress,
	}
}

// AsyncLogger wraps a *lumberjack.Logger (or any io.WriteCloser) with a
// bounded channel and a single writer goroutine, so a syncop thread logging
// from inside the graph mutex never blocks on disk I/O (spec ambient stack:
// logging must not serialize behind the filesystem it is describing). A
// full buffer drops the message and warns to stderr rather than blocking,
// since a lost log line is recoverable and a stalled syncop worker is not.
type AsyncLogger struct {
	lj *lumberjack.Logger

	msgs chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// NewAsyncLogger starts the writer goroutine and returns the wrapper.
// bufferSize bounds how many pending writes may queue before new ones are
// dropped.
func NewAsyncLogger(lj *lumberjack.Logger, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		lj:   lj,
		msgs: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for msg := range a.msgs {
		if _, err := a.lj.Write(msg); err != nil {
			fmt.Fprintf(os.Stderr, "asynclogger: write failed: %v\n", err)
		}
	}
}

// Write queues p for the writer goroutine, copying it since the caller may
// reuse its buffer once Write returns. A full channel drops the message.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	buf := append([]byte(nil), p...)
	select {
	case a.msgs <- buf:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close stops accepting writes and waits for the writer goroutine to drain
// and close the underlying lumberjack.Logger.
func (a *AsyncLogger) Close() error {
	a.closeOnce.Do(func() {
		close(a.msgs)
	})
	<-a.done
	return a.lj.Close()
}
