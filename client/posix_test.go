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
	"fmt"
	"sync"
	"testing"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/distfs/govfs/cfg"
	"github.com/distfs/govfs/ec"
	"github.com/distfs/govfs/graph"
	"github.com/distfs/govfs/inode"
	"github.com/distfs/govfs/synctask"
)

// posixEntry is one file or directory in posixStub's in-memory tree.
type posixEntry struct {
	gfid     inode.GFID
	typ      inode.Type
	attr     inode.Iatt
	data     []byte
	children map[string]*posixEntry
}

// posixStub is a Translator double covering the subset of Forward ops
// client/posix.go issues -- NullFS only answers lookup/stat/readlink,
// so exercising Create/Unlink/ReadV/WriteV/SetAttr/StatFs/Lk needs a
// slightly richer double rather than reusing NullFS directly.
type posixStub struct {
	mu     sync.Mutex
	root   *posixEntry
	xattrs map[inode.GFID]map[string][]byte
}

func newPosixStub() *posixStub {
	return &posixStub{
		root: &posixEntry{
			gfid:     inode.RootGFID,
			typ:      inode.TypeDirectory,
			attr:     inode.Iatt{GFID: inode.RootGFID, Mode: 0755, Nlink: 2},
			children: map[string]*posixEntry{},
		},
		xattrs: map[inode.GFID]map[string][]byte{},
	}
}

func (p *posixStub) find(from *posixEntry, gfid inode.GFID) (*posixEntry, bool) {
	if from.gfid == gfid {
		return from, true
	}
	for _, c := range from.children {
		if found, ok := p.find(c, gfid); ok {
			return found, true
		}
	}
	return nil, false
}

func (p *posixStub) Name() string { return "posix-stub" }

func (p *posixStub) Forward(ctx context.Context, frame graph.Frame, op graph.Op, args any) (graph.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch op {
	case graph.OpLookup:
		req := args.(graph.LookupArgs)
		parent, ok := p.find(p.root, req.Parent)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		child, ok := parent.children[req.Name]
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		return graph.Result{Value: graph.LookupReply{GFID: child.gfid, Type: child.typ, Attr: child.attr}}, nil

	case graph.OpStat:
		gfid := args.(inode.GFID)
		entry, ok := p.find(p.root, gfid)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		return graph.Result{Value: graph.StatReply{Type: entry.typ, Attr: entry.attr}}, nil

	case graph.OpCreate:
		req := args.(graph.CreateArgs)
		parent, ok := p.find(p.root, req.Parent)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		gfid := inode.NewGFID()
		entry := &posixEntry{gfid: gfid, typ: inode.TypeRegular, attr: inode.Iatt{GFID: gfid, Mode: req.Mode, Nlink: 1}}
		parent.children[req.Name] = entry
		return graph.Result{Value: graph.CreateReply{GFID: gfid, Type: entry.typ, Attr: entry.attr}}, nil

	case graph.OpOpen:
		return graph.Result{}, nil

	case graph.OpUnlink, graph.OpRmdir:
		req := args.(graph.UnlinkArgs)
		parent, ok := p.find(p.root, req.Parent)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		if _, ok := parent.children[req.Name]; !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		delete(parent.children, req.Name)
		return graph.Result{}, nil

	case graph.OpRename:
		req := args.(graph.RenameArgs)
		oldParent, ok := p.find(p.root, req.OldParent)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		entry, ok := oldParent.children[req.OldName]
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		newParent, ok := p.find(p.root, req.NewParent)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		delete(oldParent.children, req.OldName)
		newParent.children[req.NewName] = entry
		return graph.Result{}, nil

	case graph.OpReadV:
		req := args.(graph.ReadVArgs)
		entry, ok := p.find(p.root, req.GFID)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		start := req.Offset
		if start > int64(len(entry.data)) {
			start = int64(len(entry.data))
		}
		end := start + int64(req.Size)
		if end > int64(len(entry.data)) {
			end = int64(len(entry.data))
		}
		return graph.Result{Value: append([]byte(nil), entry.data[start:end]...)}, nil

	case graph.OpWriteV:
		req := args.(graph.WriteVArgs)
		entry, ok := p.find(p.root, req.GFID)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		end := req.Offset + int64(len(req.Data))
		if end > int64(len(entry.data)) {
			grown := make([]byte, end)
			copy(grown, entry.data)
			entry.data = grown
		}
		copy(entry.data[req.Offset:end], req.Data)
		entry.attr.Size = int64(len(entry.data))
		return graph.Result{Value: graph.WriteVReply{Written: len(req.Data)}}, nil

	case graph.OpSetAttr:
		req := args.(graph.SetAttrArgs)
		entry, ok := p.find(p.root, req.GFID)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		entry.attr = req.Attr
		return graph.Result{}, nil

	case graph.OpStatFs:
		return graph.Result{Value: graph.StatFs{Blocks: 1000, BFree: 500, Files: 100, FFree: 50}}, nil

	case graph.OpLk:
		return graph.Result{}, nil

	case graph.OpGetXattr:
		req := args.(graph.XattrGetArgs)
		v, ok := p.xattrs[req.GFID][req.Key]
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		return graph.Result{Value: append([]byte(nil), v...)}, nil

	case graph.OpSetXattr:
		req := args.(graph.XattrArgs)
		if p.xattrs[req.GFID] == nil {
			p.xattrs[req.GFID] = map[string][]byte{}
		}
		p.xattrs[req.GFID][req.Key] = append([]byte(nil), req.Value...)
		return graph.Result{}, nil

	case graph.OpReadDirP:
		req := args.(graph.ReadDirPArgs)
		entry, ok := p.find(p.root, req.GFID)
		if !ok {
			return graph.Result{}, inode.ErrNotFound
		}
		var entries []inode.DirEntry
		for name, c := range entry.children {
			entries = append(entries, inode.DirEntry{Name: name, GFID: c.gfid, Iatt: c.attr})
		}
		return graph.Result{Value: entries}, nil

	default:
		return graph.Result{}, fmt.Errorf("posix-stub: unsupported op %q", op)
	}
}

func (p *posixStub) Notify(event graph.Event, data any) error { return nil }
func (p *posixStub) Init() error                              { return nil }
func (p *posixStub) Fini() error                               { return nil }

func newPosixTestFs(t *testing.T) (*Fs, *posixStub) {
	t.Helper()

	pool, err := synctask.NewStaticWorkerPool(1, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Stop)

	codec, err := ec.NewCodec(2, 1, 8)
	require.NoError(t, err)

	fs := New("testvol", cfg.GraphConfig{MatrixCacheSize: 8}, pool, codec, &fakeMetric{}, timeutil.RealClock(), nil)

	stub := newPosixStub()
	g := graph.New(1, stub)
	fs.graphs.Stage(g)
	require.NoError(t, fs.Init(context.Background()))

	return fs, stub
}

func TestFs_CreateThenReadWriteRoundtrip(t *testing.T) {
	fs, _ := newPosixTestFs(t)
	ctx := context.Background()

	fd, err := fs.Create(ctx, "greeting.txt", 0, 0644)
	require.NoError(t, err)

	n, err := fs.WriteV(ctx, fd, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	fd.Seek(0)
	data, err := fs.ReadV(ctx, fd, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	fs.Close(fd)
}

func TestFs_CreateWithExclFailsWhenExists(t *testing.T) {
	fs, _ := newPosixTestFs(t)
	ctx := context.Background()

	fd, err := fs.Create(ctx, "dup.txt", 0, 0644)
	require.NoError(t, err)
	fs.Close(fd)

	_, err = fs.Create(ctx, "dup.txt", unix.O_EXCL, 0644)
	assert.ErrorIs(t, err, ErrExist)
}

func TestFs_UnlinkRemovesDentry(t *testing.T) {
	fs, _ := newPosixTestFs(t)
	ctx := context.Background()

	fd, err := fs.Create(ctx, "todelete.txt", 0, 0644)
	require.NoError(t, err)
	fs.Close(fd)

	require.NoError(t, fs.Unlink(ctx, "todelete.txt", false))

	_, _, _, err = fs.LookupByName(ctx, fs.graphs.Active().Table.Root().GFID, "todelete.txt")
	assert.ErrorIs(t, err, inode.ErrLookupMiss)
}

func TestFs_RenameMovesDentry(t *testing.T) {
	fs, _ := newPosixTestFs(t)
	ctx := context.Background()

	fd, err := fs.Create(ctx, "old.txt", 0, 0644)
	require.NoError(t, err)
	fs.Close(fd)

	require.NoError(t, fs.Rename(ctx, "old.txt", "new.txt"))

	root := fs.graphs.Active().Table.Root().GFID
	_, _, _, err = fs.LookupByName(ctx, root, "old.txt")
	assert.ErrorIs(t, err, inode.ErrLookupMiss)
	_, _, _, err = fs.LookupByName(ctx, root, "new.txt")
	assert.NoError(t, err)
}

func TestFs_SetAttrUpdatesInodeTable(t *testing.T) {
	fs, _ := newPosixTestFs(t)
	ctx := context.Background()

	fd, err := fs.Create(ctx, "attrs.txt", 0, 0644)
	require.NoError(t, err)
	defer fs.Close(fd)

	newAttr := inode.Iatt{GFID: fd.Inode.GFID, Mode: 0600, Size: 99}
	require.NoError(t, fs.SetAttr(ctx, fd.Inode.GFID, newAttr, 0))

	_, attr, err := fs.LookupByGFID(ctx, fd.Inode.GFID)
	require.NoError(t, err)
	assert.EqualValues(t, 0600, attr.Mode)
}

func TestFs_StatFsReturnsUnderlyingStats(t *testing.T) {
	fs, _ := newPosixTestFs(t)

	stats, err := fs.StatFs(context.Background(), "/")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, stats.Blocks)
	assert.EqualValues(t, 50, stats.FFree)
}

func TestFs_ReadAsyncInvokesCallbackWithData(t *testing.T) {
	fs, _ := newPosixTestFs(t)
	ctx := context.Background()

	fd, err := fs.Create(ctx, "async.txt", 0, 0644)
	require.NoError(t, err)
	defer fs.Close(fd)
	_, err = fs.WriteV(ctx, fd, []byte("async-data"))
	require.NoError(t, err)
	fd.Seek(0)

	done := make(chan struct{})
	var gotN int
	var gotErr error
	require.NoError(t, fs.ReadAsync(ctx, fd, len("async-data"), func(n int, data []byte, err error, userData any) {
		gotN = n
		gotErr = err
		close(done)
	}, nil))

	<-done
	assert.NoError(t, gotErr)
	assert.Equal(t, len("async-data"), gotN)
}
