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

package graph

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distfs/govfs/cfg"
)

const sampleVolfile = `
translators:
  - name: brick1
    type: protocol/client
    options:
      remote-host: host1
  - name: replicate
    type: cluster/replicate
`

func TestParseVolfile_BuildsNullFSForAnyTranslatorType(t *testing.T) {
	doc, top, err := ParseVolfile([]byte(sampleVolfile))
	require.NoError(t, err)
	require.Len(t, doc.Translators, 2)
	assert.Equal(t, "cluster/replicate", doc.Translators[1].Type)

	_, ok := top.(*NullFS)
	assert.True(t, ok)
}

func TestParseVolfile_ErrorsOnEmptyTranslatorList(t *testing.T) {
	_, _, err := ParseVolfile([]byte("translators: []\n"))
	assert.Error(t, err)
}

func TestParseVolfile_ErrorsOnInvalidYAML(t *testing.T) {
	_, _, err := ParseVolfile([]byte("not: [valid"))
	assert.Error(t, err)
}

func fetchOnce(data []byte, err error) FetchFunc {
	return func(ctx context.Context) ([]byte, error) { return data, err }
}

func TestPoller_PollOnceStagesOnFirstFetch(t *testing.T) {
	set := NewSet(nil)
	p := NewPoller(fetchOnce([]byte(sampleVolfile), nil), cfg.VolfileConfig{}, timeutil.RealClock(), set, nil)

	changed, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, set.HasPending())
}

func TestPoller_PollOnceIsNoopWhenDigestUnchanged(t *testing.T) {
	set := NewSet(nil)
	p := NewPoller(fetchOnce([]byte(sampleVolfile), nil), cfg.VolfileConfig{}, timeutil.RealClock(), set, nil)

	changed, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, changed, "identical content must not restage a new generation")
}

func TestPoller_PollOnceStagesAgainWhenContentChanges(t *testing.T) {
	set := NewSet(nil)
	var data atomic.Value
	data.Store([]byte(sampleVolfile))
	p := NewPoller(func(ctx context.Context) ([]byte, error) {
		return data.Load().([]byte), nil
	}, cfg.VolfileConfig{}, timeutil.RealClock(), set, nil)

	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)

	data.Store([]byte(sampleVolfile + "  - name: extra\n    type: debug/io-stats\n"))
	changed, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestPoller_PollOnceWrapsFetchError(t *testing.T) {
	set := NewSet(nil)
	boom := errors.New("boom")
	p := NewPoller(fetchOnce(nil, boom), cfg.VolfileConfig{}, timeutil.RealClock(), set, nil)

	_, err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPoller_RunStopsOnContextCancellation(t *testing.T) {
	set := NewSet(nil)
	c := cfg.VolfileConfig{FetchInterval: 5 * time.Millisecond}
	p := NewPoller(fetchOnce([]byte(sampleVolfile), nil), c, timeutil.RealClock(), set, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	assert.True(t, set.HasPending())
}
