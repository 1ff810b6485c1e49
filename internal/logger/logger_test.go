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
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distfs/govfs/cfg"
)

func TestTextHandler_FormatsSeverityAndMessage(t *testing.T) {
	var buf bytes.Buffer
	h := &textHandler{w: &buf, opts: &slog.HandlerOptions{Level: slog.LevelInfo}}
	r := slog.NewRecord(time.Now(), LevelWarn, "disk full", 0)
	r.AddAttrs(slog.String("path", "/mnt"))

	require.NoError(t, h.Handle(context.Background(), r))

	out := buf.String()
	assert.Contains(t, out, `severity=WARNING`)
	assert.Contains(t, out, `message="disk full"`)
	assert.Contains(t, out, "path=/mnt")
}

func TestTextHandler_WithAttrsCarriesForwardIntoHandle(t *testing.T) {
	var buf bytes.Buffer
	h := &textHandler{w: &buf, opts: &slog.HandlerOptions{Level: slog.LevelInfo}}
	withComponent := h.WithAttrs([]slog.Attr{slog.String("component", "graph")})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	require.NoError(t, withComponent.Handle(context.Background(), r))

	assert.Contains(t, buf.String(), "component=graph")
	// the original handler must be unaffected by WithAttrs.
	assert.Empty(t, h.attrs)
}

func TestTextHandler_EnabledRespectsLevelVar(t *testing.T) {
	lvl := &slog.LevelVar{}
	lvl.Set(LevelWarn)
	h := &textHandler{opts: &slog.HandlerOptions{Level: lvl}}

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), LevelWarn))
	assert.True(t, h.Enabled(context.Background(), LevelError))
}

func TestTextHandler_WithGroupIsANoop(t *testing.T) {
	h := &textHandler{}
	assert.Same(t, h, h.WithGroup("ignored").(*textHandler))
}

func TestLevelName_FallsBackToSlogStringForUnknownLevels(t *testing.T) {
	assert.Equal(t, "WARNING", levelName(LevelWarn))
	assert.Equal(t, slog.Level(3).String(), levelName(slog.Level(3)))
}

func TestInitLogFile_RoutesBySeverityAndPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	require.NoError(t, InitLogFile(cfg.LoggingConfig{
		Severity: cfg.WarningLogSeverity,
		FilePath: cfg.ResolvedPath(first),
		Format:   "text",
	}))
	Infof("below threshold, must not appear")
	Warnf("at threshold: %d", 42)

	// Re-pointing at a second file closes (and flushes) the first's
	// AsyncLogger, giving the test a deterministic point to read it back
	// from rather than racing the writer goroutine.
	require.NoError(t, InitLogFile(cfg.LoggingConfig{
		Severity: cfg.InfoLogSeverity,
		FilePath: cfg.ResolvedPath(second),
		Format:   "text",
	}))

	content, err := os.ReadFile(first)
	require.NoError(t, err)
	out := string(content)
	assert.NotContains(t, out, "below threshold")
	assert.Contains(t, out, "at threshold: 42")
	assert.Contains(t, out, "severity=WARNING")
}

func TestSetLoggingLevel_UnknownSeverityFallsBackToInfo(t *testing.T) {
	lvl := &slog.LevelVar{}
	lvl.Set(LevelError)

	setLoggingLevel(cfg.LogSeverity("not-a-real-severity"), lvl)

	assert.Equal(t, slog.LevelInfo, lvl.Level())
}

func TestCounters_SnapshotReflectsIncrements(t *testing.T) {
	c := &Counters{}
	c.IncBackgroundError()
	c.IncBackgroundError()
	c.IncMigrationWarning()
	c.IncStaleRetry()

	snap := c.Snapshot()
	assert.Equal(t, CounterSnapshot{BackgroundErrors: 2, MigrationWarnings: 1, StaleRetries: 1}, snap)
}
