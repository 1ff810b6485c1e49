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

// Package logger provides the structured, severity-levelled logging used
// throughout the client: a slog.Logger writing either text or JSON records
// to stderr or a rotated log file, plus a bounded async io.Writer for
// high-volume destinations (spec ambient stack: "logging").
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/distfs/govfs/cfg"
)

// Custom severities bracketing slog's built-in Debug..Error range, named
// the way the rest of the stack names them (TRACE below DEBUG, OFF above
// ERROR, so a single ordered scale covers every cfg.LogSeverity value).
const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	LevelDebug slog.Level = slog.LevelDebug
	LevelWarn  slog.Level = slog.LevelWarn
	LevelError slog.Level = slog.LevelError
	LevelOff   slog.Level = slog.LevelError + 4
)

var severityLevels = map[cfg.LogSeverity]slog.Level{
	cfg.TraceLogSeverity:   LevelTrace,
	cfg.DebugLogSeverity:   LevelDebug,
	cfg.InfoLogSeverity:    slog.LevelInfo,
	cfg.WarningLogSeverity: LevelWarn,
	cfg.ErrorLogSeverity:   LevelError,
	cfg.OffLogSeverity:     LevelOff,
}

var levelNames = map[slog.Level]string{
	LevelTrace:       "TRACE",
	LevelDebug:       "DEBUG",
	slog.LevelInfo:   "INFO",
	LevelWarn:        "WARNING",
	LevelError:       "ERROR",
	LevelOff:         "OFF",
}

func levelName(l slog.Level) string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return l.String()
}

// loggerFactory owns the writable resources backing defaultLogger and lets
// SetLogFormat/InitLogFile rebuild the handler in place without callers
// having to re-fetch a *slog.Logger.
type loggerFactory struct {
	mu sync.Mutex

	// file is the rotated log file, or nil when logging to sysWriter only.
	file *AsyncLogger

	// sysWriter is where records go absent an explicit file path (stderr,
	// matching the teacher's fallback destination).
	sysWriter io.Writer

	format string // "text" or "json"

	level *slog.LevelVar

	logRotateConfig cfg.LogRotateLoggingConfig
}

var (
	defaultLoggerFactory = newLoggerFactory()
	defaultLogger        = slog.New(defaultLoggerFactory.createJsonOrTextHandler(
		defaultLoggerFactory.sysWriter, defaultLoggerFactory.level, ""))
)

func newLoggerFactory() *loggerFactory {
	lvl := &slog.LevelVar{}
	lvl.Set(slog.LevelInfo)
	return &loggerFactory{
		sysWriter: os.Stderr,
		format:    "text",
		level:     lvl,
	}
}

// createJsonOrTextHandler builds a slog.Handler writing to buf in the
// factory's current format, substituting the custom severity names above
// for slog's built-in level rendering and, in JSON format, prefixing
// every message with prefix (used to tag per-component loggers; the
// text handler does not apply ReplaceAttr, so it renders no prefix).
func (f *loggerFactory) createJsonOrTextHandler(buf io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			level, _ := a.Value.Any().(slog.Level)
			a.Key = "severity"
			a.Value = slog.StringValue(levelName(level))
		case slog.TimeKey:
			a.Key = "timestamp"
			t := a.Value.Time()
			a.Value = slog.GroupValue(
				slog.Int64("seconds", t.Unix()),
				slog.Int64("nanos", int64(t.Nanosecond())),
			)
		case slog.MessageKey:
			if prefix != "" {
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: programLevel, ReplaceAttr: replace}

	switch f.format {
	case "json":
		return slog.NewJSONHandler(buf, opts)
	default:
		return &textHandler{w: buf, opts: opts}
	}
}

// textHandler renders records as `time="..." severity=LEVEL message="..."`,
// matching the teacher's non-JSON format exactly rather than slog's default
// key=value ordering (which interleaves level/time/msg differently).
type textHandler struct {
	w    io.Writer
	opts *slog.HandlerOptions
	mu   sync.Mutex
	attrs []slog.Attr
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	sev := levelName(r.Level)
	var extra string
	for _, a := range h.attrs {
		extra += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		extra += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.w, "time=%q severity=%s message=%q%s\n",
		r.Time.Format(time.RFC3339Nano), sev, r.Message, extra)
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &textHandler{w: h.w, opts: h.opts}
	n.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return n
}

func (h *textHandler) WithGroup(_ string) slog.Handler {
	return h
}

// SetLogFormat switches the default logger between "text" and "json"
// rendering, rebuilding its handler against whatever writer is currently
// active.
func SetLogFormat(format string) {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()
	defaultLoggerFactory.format = format

	var w io.Writer = defaultLoggerFactory.sysWriter
	if defaultLoggerFactory.file != nil {
		w = defaultLoggerFactory.file
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, defaultLoggerFactory.level, ""))
}

// setLoggingLevel maps a cfg.LogSeverity string onto programLevel; unknown
// severities fall back to INFO rather than erroring, since a misconfigured
// severity should degrade logging verbosity, not abort startup.
func setLoggingLevel(severity cfg.LogSeverity, programLevel *slog.LevelVar) {
	if lvl, ok := severityLevels[severity]; ok {
		programLevel.Set(lvl)
		return
	}
	programLevel.Set(slog.LevelInfo)
}

// InitLogFile (re)configures the default logger from c: severity, output
// format, and (if FilePath is set) a lumberjack-rotated log file wrapped in
// an AsyncLogger so logging never blocks a syncop on file I/O.
func InitLogFile(c cfg.LoggingConfig) error {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()

	setLoggingLevel(c.Severity, defaultLoggerFactory.level)
	if c.Format != "" {
		defaultLoggerFactory.format = c.Format
	}
	defaultLoggerFactory.logRotateConfig = c.LogRotate

	var w io.Writer = defaultLoggerFactory.sysWriter
	if c.FilePath != "" {
		if defaultLoggerFactory.file != nil {
			defaultLoggerFactory.file.Close()
		}
		lj := newLumberjack(string(c.FilePath), c.LogRotate)
		defaultLoggerFactory.file = NewAsyncLogger(lj, 4096)
		w = defaultLoggerFactory.file
	}

	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, defaultLoggerFactory.level, ""))
	return nil
}

func Tracef(format string, args ...any) { defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...any) { defaultLogger.Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { defaultLogger.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { defaultLogger.Error(fmt.Sprintf(format, args...)) }

// Counters tracks background-work outcomes that have no synchronous caller
// to return an error to (spec §7: "logs and drops the error ... but must
// increment a statedump counter so operators can detect it"), e.g. a
// fire-and-forget FD migration failing mid-Promote, or an old graph's
// translator Fini failing during teardown. Exposed read-only via Snapshot for the
// statedump renderer.
type Counters struct {
	mu sync.Mutex

	backgroundErrors  uint64
	migrationWarnings uint64
	staleRetries      uint64
}

// DefaultCounters is the process-wide counter set every background-error
// log call increments; client.Fs.Sysrq reads it via Snapshot.
var DefaultCounters = &Counters{}

func (c *Counters) IncBackgroundError() {
	c.mu.Lock()
	c.backgroundErrors++
	c.mu.Unlock()
}

func (c *Counters) IncMigrationWarning() {
	c.mu.Lock()
	c.migrationWarnings++
	c.mu.Unlock()
}

func (c *Counters) IncStaleRetry() {
	c.mu.Lock()
	c.staleRetries++
	c.mu.Unlock()
}

// CounterSnapshot is a point-in-time, statedump-friendly copy of Counters.
type CounterSnapshot struct {
	BackgroundErrors  uint64
	MigrationWarnings uint64
	StaleRetries      uint64
}

func (c *Counters) Snapshot() CounterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CounterSnapshot{
		BackgroundErrors:  c.backgroundErrors,
		MigrationWarnings: c.migrationWarnings,
		StaleRetries:      c.staleRetries,
	}
}
