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

package client

import (
	"context"
	"testing"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distfs/govfs/cfg"
	"github.com/distfs/govfs/common"
	"github.com/distfs/govfs/ec"
	"github.com/distfs/govfs/graph"
	"github.com/distfs/govfs/inode"
	"github.com/distfs/govfs/synctask"
)

// fakeMetric is a no-op common.MetricHandle, grounded on
// metrics/otel_metrics_test.go's fakeMetricHandle pattern (a minimal
// stand-in rather than a mock framework).
type fakeMetric struct {
	staleRetries int
}

func (f *fakeMetric) OpsCount(ctx context.Context, inc int64, attrs []common.MetricAttr)        {}
func (f *fakeMetric) OpsLatency(ctx context.Context, us float64, attrs []common.MetricAttr)      {}
func (f *fakeMetric) OpsErrorCount(ctx context.Context, inc int64, attrs []common.MetricAttr)    {}
func (f *fakeMetric) MigrationDuration(ctx context.Context, ms float64, attrs []common.MetricAttr) {
}
func (f *fakeMetric) StaleHandleRetryCount(ctx context.Context, inc int64, attrs []common.MetricAttr) {
	f.staleRetries++
}
func (f *fakeMetric) SyncopLatency(ctx context.Context, us float64, attrs []common.MetricAttr) {}
func (f *fakeMetric) TaskPoolDepth(ctx context.Context, depth int64, attrs []common.MetricAttr) {}
func (f *fakeMetric) MatrixCacheHit(ctx context.Context, inc int64, attrs []common.MetricAttr)  {}
func (f *fakeMetric) MatrixCacheMiss(ctx context.Context, inc int64, attrs []common.MetricAttr) {}
func (f *fakeMetric) CodecBytesProcessed(ctx context.Context, inc int64, attrs []common.MetricAttr) {
}

// newTestFs builds an Fs wired to a fresh NullFS graph, staged and
// promoted to active, ready for lookup/resolve calls.
func newTestFs(t *testing.T) (*Fs, *graph.NullFS) {
	t.Helper()

	pool, err := synctask.NewStaticWorkerPool(1, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Stop)

	codec, err := ec.NewCodec(2, 1, 8)
	require.NoError(t, err)

	fs := New("testvol", cfg.GraphConfig{MatrixCacheSize: 8}, pool, codec, &fakeMetric{}, timeutil.RealClock(), nil)

	nfs := graph.NewNullFS()
	g := graph.New(1, nfs)
	fs.graphs.Stage(g)

	require.NoError(t, fs.Init(context.Background()))
	return fs, nfs
}

func TestFs_InitActivatesStagedGraph(t *testing.T) {
	fs, _ := newTestFs(t)

	assert.NotNil(t, fs.graphs.Active())
	assert.Equal(t, graph.StateActive, fs.graphs.Active().State())
	assert.NotNil(t, fs.Cwd())
}

func TestFs_InitFailsWithNoStagedGraph(t *testing.T) {
	pool, err := synctask.NewStaticWorkerPool(1, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Stop)
	codec, err := ec.NewCodec(2, 1, 8)
	require.NoError(t, err)

	fs := New("testvol", cfg.GraphConfig{}, pool, codec, &fakeMetric{}, timeutil.RealClock(), nil)

	err = fs.Init(context.Background())
	assert.Error(t, err)
}

func TestFs_LookupByNameFindsChild(t *testing.T) {
	fs, nfs := newTestFs(t)
	root := fs.graphs.Active().Table.Root()

	childGFID, err := nfs.Touch(root.GFID, "hello.txt", 5)
	require.NoError(t, err)

	gfid, typ, _, err := fs.LookupByName(context.Background(), root.GFID, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, childGFID, gfid)
	assert.Equal(t, inode.TypeRegular, typ)
}

func TestFs_LookupByNameMissingReturnsLookupMiss(t *testing.T) {
	fs, _ := newTestFs(t)
	root := fs.graphs.Active().Table.Root()

	_, _, _, err := fs.LookupByName(context.Background(), root.GFID, "nope")
	assert.ErrorIs(t, err, inode.ErrLookupMiss)
}

func TestFs_LookupByGFIDStatsExistingInode(t *testing.T) {
	fs, nfs := newTestFs(t)
	root := fs.graphs.Active().Table.Root()

	dirGFID, err := nfs.Mkdir(root.GFID, "sub")
	require.NoError(t, err)

	typ, attr, err := fs.LookupByGFID(context.Background(), dirGFID)
	require.NoError(t, err)
	assert.Equal(t, inode.TypeDirectory, typ)
	assert.Equal(t, dirGFID, attr.GFID)
}

func TestFs_ReadLinkReturnsTarget(t *testing.T) {
	fs, nfs := newTestFs(t)
	root := fs.graphs.Active().Table.Root()

	linkGFID, err := nfs.Symlink(root.GFID, "link", "/a/b/c")
	require.NoError(t, err)

	target, err := fs.ReadLink(context.Background(), linkGFID)
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", target)
}

func TestFs_ChdirIntoSubdirectory(t *testing.T) {
	fs, nfs := newTestFs(t)
	root := fs.graphs.Active().Table.Root()
	_, err := nfs.Mkdir(root.GFID, "sub")
	require.NoError(t, err)

	require.NoError(t, fs.Chdir(context.Background(), "sub"))
	_, name, ok := fs.Cwd().ParentName()
	require.True(t, ok)
	assert.Equal(t, "sub", name)
}

func TestFs_ChdirIntoFileFails(t *testing.T) {
	fs, nfs := newTestFs(t)
	root := fs.graphs.Active().Table.Root()
	_, err := nfs.Touch(root.GFID, "file", 0)
	require.NoError(t, err)

	err = fs.Chdir(context.Background(), "file")
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestFs_TranslateStaleHandleBumpsCounters(t *testing.T) {
	fs, _ := newTestFs(t)
	metric := fs.metric.(*fakeMetric)

	err := fs.translateStaleHandle(fs.graphs.Active(), inode.ErrStaleHandle)

	assert.ErrorIs(t, err, inode.ErrStaleHandle)
	assert.Equal(t, 1, metric.staleRetries)
}

func TestFs_FiniTearsDownActiveGraph(t *testing.T) {
	fs, nfs := newTestFs(t)
	_ = nfs

	require.NoError(t, fs.Fini(context.Background()))
}
